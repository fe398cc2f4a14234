package clustering

import (
	"math"
	"testing"

	"github.com/rhordoan/logpulse/pkg/models"
)

func TestNormalizeZeroVectorStaysZero(t *testing.T) {
	got := Normalize([]float64{0, 0, 0})
	for _, v := range got {
		if v != 0 {
			t.Errorf("Normalize(zero) = %v, want all zero", got)
		}
	}
}

func TestNormalizeUnitNorm(t *testing.T) {
	got := Normalize([]float64{3, 4})
	norm := math.Hypot(got[0], got[1])
	if math.Abs(norm-1) > 1e-9 {
		t.Errorf("norm = %v, want 1", norm)
	}
}

func TestCosineDistanceIdenticalVectorsIsZero(t *testing.T) {
	v := Normalize([]float64{1, 2, 3})
	d, ok := CosineDistance(v, v)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(d) > 1e-9 {
		t.Errorf("distance = %v, want ~0", d)
	}
}

func TestCosineDistanceMismatchedLengthNotOK(t *testing.T) {
	_, ok := CosineDistance([]float64{1, 2}, []float64{1, 2, 3})
	if ok {
		t.Error("expected ok=false for mismatched lengths")
	}
}

func TestClusterDropsUndersizedClusters(t *testing.T) {
	members := []Member{
		{Text: "a", Embedding: []float64{1, 0}},
		{Text: "b", Embedding: []float64{0.99, 0.01}},
		{Text: "c", Embedding: []float64{0, 1}}, // lone outlier cluster
	}
	clusters := Cluster(members, 0.1, 2)
	if len(clusters) != 1 {
		t.Fatalf("len(clusters) = %d, want 1 (outlier dropped)", len(clusters))
	}
	if len(clusters[0].Members) != 2 {
		t.Errorf("len(members) = %d, want 2", len(clusters[0].Members))
	}
}

func TestBatchClusterMemberDistancesWithinThreshold(t *testing.T) {
	members := []Member{
		{Text: "a", Embedding: []float64{1, 0, 0}},
		{Text: "b", Embedding: []float64{0.95, 0.05, 0}},
		{Text: "c", Embedding: []float64{0.9, 0.1, 0}},
	}
	threshold := 0.2
	clusters := Cluster(members, threshold, 1)
	for _, c := range clusters {
		for _, m := range c.Members {
			d, ok := CosineDistance(Normalize(m.Embedding), c.Centroid)
			if !ok {
				t.Fatal("expected ok")
			}
			if d > threshold+1e-6 {
				t.Errorf("member distance %v exceeds threshold %v", d, threshold)
			}
		}
	}
}

func TestMedoidPicksClosestMember(t *testing.T) {
	c := models.BatchCluster{
		Centroid: []float64{1, 0},
		Members: []models.BatchMember{
			{Text: "far", Embedding: []float64{0, 1}},
			{Text: "near", Embedding: []float64{0.99, 0.01}},
		},
	}
	idx := c.Medoid(func(a, b []float64) float64 {
		d, _ := CosineDistance(a, b)
		return d
	})
	if c.Members[idx].Text != "near" {
		t.Errorf("medoid = %q, want %q", c.Members[idx].Text, "near")
	}
}
