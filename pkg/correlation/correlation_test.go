package correlation

import "testing"

func TestBuildGraphProducesSourceAndClusterNodes(t *testing.T) {
	result := Result{
		Clusters: []GlobalCluster{
			{ID: "gcluster_0", Size: 3, SourceBreakdown: map[string]int{"filetail:/var/log/syslog": 2, "snmp:host1": 1}},
		},
	}
	graph := BuildGraph(result)
	if len(graph.Edges) != 2 {
		t.Fatalf("len(edges) = %d, want 2", len(graph.Edges))
	}
	var clusterNodes, sourceNodes int
	for _, n := range graph.Nodes {
		switch n.Type {
		case "cluster":
			clusterNodes++
		case "source":
			sourceNodes++
		}
	}
	if clusterNodes != 1 || sourceNodes != 2 {
		t.Errorf("clusterNodes=%d sourceNodes=%d, want 1 and 2", clusterNodes, sourceNodes)
	}
}

func TestRunHDBSCANFindsTwoWellSeparatedGroups(t *testing.T) {
	vectors := [][]float64{
		{1, 0}, {0.98, 0.02}, {0.97, 0.03}, {0.99, 0.01},
		{0, 1}, {0.02, 0.98}, {0.03, 0.97}, {0.01, 0.99},
	}
	res := runHDBSCAN(vectors, 3, 2)
	labels := map[int]int{}
	for _, l := range res.Labels {
		if l >= 0 {
			labels[l]++
		}
	}
	if len(labels) == 0 {
		t.Fatal("expected at least one cluster, got none")
	}
	for _, count := range labels {
		if count < 3 {
			t.Errorf("cluster size %d below min_cluster_size 3", count)
		}
	}
}

func TestRunHDBSCANEmptyInput(t *testing.T) {
	res := runHDBSCAN(nil, 3, 2)
	if len(res.Labels) != 0 {
		t.Errorf("len(labels) = %d, want 0", len(res.Labels))
	}
}
