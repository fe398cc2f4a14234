// Package correlation implements cross-source correlation (§4.10): single_pass
// clustering over sampled logs across OSes, and an hdbscan mode over
// prototypes, plus a graph projection of source/cluster edges. Grounded on
// original_source/app/services/cross_correlation.py.
package correlation

import (
	"context"
	"fmt"

	"github.com/rhordoan/logpulse/pkg/clustering"
	"github.com/rhordoan/logpulse/pkg/embedding"
	"github.com/rhordoan/logpulse/pkg/vectorstore"
)

var correlatedOSes = []string{"linux", "macos", "windows", "network"}

// Defaults used by HDBSCAN's single-pass fallback when no prototypes have
// been seeded yet, matching the single_pass endpoint's own defaults.
const (
	defaultFallbackLimitPerSource = 500
	defaultFallbackThreshold      = 0.3
)

// SampleLog is one member log surfaced in a cluster's sample_logs.
type SampleLog struct {
	ID       string `json:"id"`
	Document string `json:"document"`
	OS       string `json:"os"`
	Source   string `json:"source"`
	Raw      string `json:"raw"`
}

// GlobalCluster is one cross-source cluster in either correlation mode.
type GlobalCluster struct {
	ID              string         `json:"id"`
	Size            int            `json:"size"`
	Centroid        []float64      `json:"centroid"`
	MedoidDocument  string         `json:"medoid_document"`
	SourceBreakdown map[string]int `json:"source_breakdown"`
	OSBreakdown     map[string]int `json:"os_breakdown"`
	SampleLogs      []SampleLog    `json:"sample_logs"`
}

// Params echoes the request parameters back in the response, for caller
// reproducibility.
type Params struct {
	Algorithm             string  `json:"algorithm"`
	Basis                 string  `json:"basis"`
	Threshold             float64 `json:"threshold,omitempty"`
	MinSize               int     `json:"min_size,omitempty"`
	MinClusterSize        int     `json:"min_cluster_size,omitempty"`
	MinSamples            int     `json:"min_samples,omitempty"`
	LimitPerSource        int     `json:"limit_per_source,omitempty"`
	IncludeLogsPerCluster int     `json:"include_logs_per_cluster"`
}

// Result is the response shape for both SinglePass and HDBSCAN.
type Result struct {
	Params   Params          `json:"params"`
	Clusters []GlobalCluster `json:"clusters"`
}

// Correlator runs both correlation modes against the shared vector store.
type Correlator struct {
	store    *vectorstore.Store
	embedder embedding.Provider
}

// New builds a Correlator.
func New(store *vectorstore.Store, embedder embedding.Provider) *Correlator {
	return &Correlator{store: store, embedder: embedder}
}

type logRow struct {
	id     string
	doc    string
	emb    []float64
	source string
	os     string
}

func (c *Correlator) collectLogs(ctx context.Context, limitPerSource int) []logRow {
	var rows []logRow
	for _, osName := range correlatedOSes {
		collection := vectorstore.CollectionName(vectorstore.CollectionForOS("logs_", osName), c.embedder.ID())
		data, err := c.store.Get(ctx, collection, vectorstore.GetRequest{
			Include: []string{"embeddings", "documents", "metadatas"},
			Limit:   2000,
		})
		if err != nil {
			continue
		}

		bySource := map[string][]int{}
		for i := range data.IDs {
			src := ""
			if i < len(data.Metadatas) && data.Metadatas[i] != nil {
				if s, ok := data.Metadatas[i]["source"].(string); ok {
					src = s
				}
			}
			bySource[src] = append(bySource[src], i)
		}
		for _, idxs := range bySource {
			n := limitPerSource
			if n > len(idxs) {
				n = len(idxs)
			}
			for _, i := range idxs[:n] {
				row := logRow{id: data.IDs[i], os: osName}
				if i < len(data.Documents) {
					row.doc = data.Documents[i]
				}
				if i < len(data.Embeddings) {
					row.emb = data.Embeddings[i]
				}
				if i < len(data.Metadatas) && data.Metadatas[i] != nil {
					if s, ok := data.Metadatas[i]["source"].(string); ok {
						row.source = s
					}
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// SinglePass samples up to limitPerSource logs per distinct source from each
// OS's logs_<os> collection, clusters them with the batch single-pass
// algorithm, and reports per-cluster source/os breakdowns.
func (c *Correlator) SinglePass(ctx context.Context, limitPerSource int, threshold float64, minSize, includeLogsPerCluster int) Result {
	rows := c.collectLogs(ctx, limitPerSource)
	params := Params{
		Algorithm:             "single_pass",
		Basis:                 "logs",
		Threshold:             threshold,
		MinSize:               minSize,
		LimitPerSource:        limitPerSource,
		IncludeLogsPerCluster: includeLogsPerCluster,
	}
	if len(rows) == 0 {
		return Result{Params: params, Clusters: nil}
	}

	members := make([]clustering.Member, len(rows))
	for i, r := range rows {
		members[i] = clustering.Member{Text: r.doc, Embedding: r.emb}
	}
	clusters := clustering.Cluster(members, threshold, minSize)

	out := make([]GlobalCluster, 0, len(clusters))
	for ci, cl := range clusters {
		srcCounts := map[string]int{}
		osCounts := map[string]int{}
		// Member order in cl.Members follows rows order restricted to this
		// cluster, so re-derive indices by matching document text back to rows.
		rowIdx := matchRows(rows, cl.Members)
		for _, ri := range rowIdx {
			srcCounts[rows[ri].source]++
			osCounts[rows[ri].os]++
		}
		medoidIdx := cl.Medoid(func(a, b []float64) float64 {
			d, _ := clustering.CosineDistance(a, b)
			return d
		})

		samples := make([]SampleLog, 0, includeLogsPerCluster)
		for n, ri := range rowIdx {
			if n >= includeLogsPerCluster {
				break
			}
			samples = append(samples, SampleLog{
				ID:       rows[ri].id,
				Document: rows[ri].doc,
				OS:       rows[ri].os,
				Source:   rows[ri].source,
			})
		}

		out = append(out, GlobalCluster{
			ID:              fmt.Sprintf("gcluster_%d", ci),
			Size:            len(cl.Members),
			Centroid:        cl.Centroid,
			MedoidDocument:  cl.Members[medoidIdx].Text,
			SourceBreakdown: srcCounts,
			OSBreakdown:     osCounts,
			SampleLogs:      samples,
		})
	}
	return Result{Params: params, Clusters: out}
}

func matchRows(rows []logRow, members []clustering.Member) []int {
	used := make([]bool, len(rows))
	idxs := make([]int, 0, len(members))
	for _, m := range members {
		for i, r := range rows {
			if used[i] || r.doc != m.Text {
				continue
			}
			used[i] = true
			idxs = append(idxs, i)
			break
		}
	}
	return idxs
}

// HDBSCAN loads every prototype across OSes, L2-normalizes, and runs the
// density-based clusterer, ignoring noise; for each resulting cluster it
// samples member logs to fill source/os breakdowns, taking the cluster's
// prototypes one after another with at most
// includeLogsPerCluster/len(prototypes) logs each (at least 1) until
// includeLogsPerCluster logs are collected. Samples are not interleaved
// across prototypes.
func (c *Correlator) HDBSCAN(ctx context.Context, minClusterSize, minSamples, includeLogsPerCluster int) (Result, error) {
	type protoRow struct {
		id  string
		doc string
		emb []float64
		os  string
	}
	var protos []protoRow
	for _, osName := range correlatedOSes {
		collection := vectorstore.CollectionName(vectorstore.CollectionForOS("proto_", osName), c.embedder.ID())
		data, err := c.store.Get(ctx, collection, vectorstore.GetRequest{Include: []string{"embeddings", "documents", "metadatas"}})
		if err != nil {
			continue
		}
		for i := range data.IDs {
			row := protoRow{id: data.IDs[i], os: osName}
			if i < len(data.Documents) {
				row.doc = data.Documents[i]
			}
			if i < len(data.Embeddings) {
				row.emb = data.Embeddings[i]
			}
			protos = append(protos, row)
		}
	}

	params := Params{
		Algorithm:             "hdbscan",
		Basis:                 "prototypes",
		MinClusterSize:        minClusterSize,
		MinSamples:            minSamples,
		IncludeLogsPerCluster: includeLogsPerCluster,
	}
	if len(protos) == 0 {
		// No prototypes loaded anywhere: fall back to the single-pass path
		// over logs_<os> so the caller still gets a correlation result
		// instead of an empty prototypes response.
		result := c.SinglePass(ctx, defaultFallbackLimitPerSource, defaultFallbackThreshold, minClusterSize, includeLogsPerCluster)
		return result, nil
	}

	normalized := make([][]float64, len(protos))
	for i, p := range protos {
		normalized[i] = clustering.Normalize(p.emb)
	}

	res := runHDBSCAN(normalized, minClusterSize, minSamples)

	byLabel := map[int][]int{}
	for i, lab := range res.Labels {
		if lab < 0 {
			continue
		}
		byLabel[lab] = append(byLabel[lab], i)
	}

	out := make([]GlobalCluster, 0, len(byLabel))
	for lab, idxs := range byLabel {
		centroid := clustering.Mean(subset(normalized, idxs))
		medoidLocal := 0
		bestDist := -1.0
		for li, gi := range idxs {
			d, _ := clustering.CosineDistance(normalized[gi], centroid)
			if bestDist < 0 || d < bestDist {
				bestDist = d
				medoidLocal = li
			}
		}

		srcCounts := map[string]int{}
		osCounts := map[string]int{}
		var samples []SampleLog
		perProtoCap := includeLogsPerCluster / len(idxs)
		if perProtoCap < 1 {
			perProtoCap = 1
		}
		for _, gi := range idxs {
			if len(samples) >= includeLogsPerCluster {
				break
			}
			p := protos[gi]
			logsCollection := vectorstore.CollectionName(vectorstore.CollectionForOS("logs_", p.os), c.embedder.ID())
			rows, err := c.store.Get(ctx, logsCollection, vectorstore.GetRequest{
				Where:   map[string]any{"cluster_id": p.id},
				Include: []string{"documents", "metadatas"},
				Limit:   perProtoCap,
			})
			if err != nil {
				continue
			}
			for j := range rows.IDs {
				if len(samples) >= includeLogsPerCluster {
					break
				}
				src, osn := "", p.os
				if j < len(rows.Metadatas) && rows.Metadatas[j] != nil {
					if s, ok := rows.Metadatas[j]["source"].(string); ok {
						src = s
					}
					if o, ok := rows.Metadatas[j]["os"].(string); ok {
						osn = o
					}
				}
				srcCounts[src]++
				osCounts[osn]++
				doc := ""
				if j < len(rows.Documents) {
					doc = rows.Documents[j]
				}
				samples = append(samples, SampleLog{ID: rows.IDs[j], Document: doc, OS: osn, Source: src})
			}
		}

		out = append(out, GlobalCluster{
			ID:              fmt.Sprintf("gcluster_%d", lab),
			Size:            len(idxs),
			Centroid:        centroid,
			MedoidDocument:  protos[idxs[medoidLocal]].doc,
			SourceBreakdown: srcCounts,
			OSBreakdown:     osCounts,
			SampleLogs:      samples,
		})
	}

	return Result{Params: params, Clusters: out}, nil
}

func subset(vectors [][]float64, idxs []int) [][]float64 {
	out := make([][]float64, len(idxs))
	for i, idx := range idxs {
		out[i] = vectors[idx]
	}
	return out
}

// GraphNode is one node in the source/cluster projection.
type GraphNode struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Label string `json:"label"`
	Size  int    `json:"size"`
}

// GraphEdge connects a source node to a cluster node, weighted by count.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// Graph is the node/edge projection of a Result, per §4.10.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// BuildGraph projects a correlation Result into source and cluster nodes
// with weighted source->cluster edges.
func BuildGraph(result Result) Graph {
	sourceNodes := map[string]GraphNode{}
	clusterNodes := make([]GraphNode, 0, len(result.Clusters))
	var edges []GraphEdge

	for _, cl := range result.Clusters {
		clusterNodes = append(clusterNodes, GraphNode{ID: cl.ID, Type: "cluster", Label: cl.ID, Size: cl.Size})
		for src, count := range cl.SourceBreakdown {
			sid := "source::" + src
			if _, ok := sourceNodes[sid]; !ok {
				label := src
				if label == "" {
					label = "unknown"
				}
				sourceNodes[sid] = GraphNode{ID: sid, Type: "source", Label: label, Size: 1}
			}
			edges = append(edges, GraphEdge{Source: sid, Target: cl.ID, Weight: count})
		}
	}

	nodes := make([]GraphNode, 0, len(sourceNodes)+len(clusterNodes))
	for _, n := range sourceNodes {
		nodes = append(nodes, n)
	}
	nodes = append(nodes, clusterNodes...)
	return Graph{Nodes: nodes, Edges: edges}
}
