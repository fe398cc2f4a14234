package clustering

import (
	"context"

	"github.com/rhordoan/logpulse/pkg/embedding"
	"github.com/rhordoan/logpulse/pkg/failurerules"
	"github.com/rhordoan/logpulse/pkg/models"
	"github.com/rhordoan/logpulse/pkg/vectorstore"
)

// Batch is the offline single-pass batch clusterer (§4.5), used for
// periodic prototype re-seeding and for the single_pass correlation mode.
type Batch struct {
	store    *vectorstore.Store
	embedder embedding.Provider
	rules    *failurerules.Library
}

// NewBatch builds a batch clusterer.
func NewBatch(store *vectorstore.Store, embedder embedding.Provider, rules *failurerules.Library) *Batch {
	return &Batch{store: store, embedder: embedder, rules: rules}
}

// Member is one input document to Cluster.
type Member struct {
	Text      string
	Embedding []float64
}

// Cluster runs the single-pass batch algorithm over members, normalizing
// embeddings, assigning each to the nearest centroid within threshold or
// starting a new cluster, then dropping clusters smaller than minSize.
func Cluster(members []Member, threshold float64, minSize int) []models.BatchCluster {
	var clusters []models.BatchCluster

	for _, m := range members {
		vec := Normalize(m.Embedding)
		bestIdx := -1
		bestDist := threshold
		for i := range clusters {
			d, ok := CosineDistance(vec, clusters[i].Centroid)
			if ok && d <= bestDist {
				bestDist = d
				bestIdx = i
			}
		}

		if bestIdx >= 0 {
			c := &clusters[bestIdx]
			c.Members = append(c.Members, models.BatchMember{Text: m.Text, Embedding: vec})
			vectors := make([][]float64, len(c.Members))
			for i, mem := range c.Members {
				vectors[i] = mem.Embedding
			}
			c.Centroid = Normalize(Mean(vectors))
		} else {
			clusters = append(clusters, models.BatchCluster{
				Centroid: vec,
				Members:  []models.BatchMember{{Text: m.Text, Embedding: vec}},
			})
		}
	}

	out := clusters[:0]
	for _, c := range clusters {
		if len(c.Members) >= minSize {
			out = append(out, c)
		}
	}
	return out
}

// Label picks a failure-type label for a cluster by majority vote over its
// member documents' rule-based signals (empty -> "unknown").
func (b *Batch) Label(c models.BatchCluster) models.FailureType {
	docs := make([]string, len(c.Members))
	for i, m := range c.Members {
		docs[i] = m.Text
	}
	return b.rules.MajorityLabel(docs)
}

// Reseed runs the batch clusterer over an OS's logs_<os> collection and
// upserts the resulting prototypes into proto_<os> under fresh ids.
// Prototypes from earlier passes or from the online clusterer are not
// removed.
func (b *Batch) Reseed(ctx context.Context, osName string, threshold float64, minSize int) ([]models.Prototype, error) {
	logsCollection := vectorstore.CollectionName(vectorstore.CollectionForOS("logs_", osName), b.embedder.ID())
	rows, err := b.store.Get(ctx, logsCollection, vectorstore.GetRequest{
		Include: []string{"documents", "embeddings"},
		Limit:   5000,
	})
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(rows.Documents))
	for i, doc := range rows.Documents {
		var emb []float64
		if i < len(rows.Embeddings) {
			emb = rows.Embeddings[i]
		}
		members = append(members, Member{Text: doc, Embedding: emb})
	}

	clusters := Cluster(members, threshold, minSize)
	protoCollection := vectorstore.CollectionName(vectorstore.CollectionForOS("proto_", osName), b.embedder.ID())

	prototypes := make([]models.Prototype, 0, len(clusters))
	req := vectorstore.UpsertRequest{}
	for _, c := range clusters {
		medoidIdx := c.Medoid(func(a, bVec []float64) float64 {
			d, _ := CosineDistance(a, bVec)
			return d
		})
		proto := models.Prototype{
			ID:            "cluster_" + randomHex(8),
			Document:      c.Members[medoidIdx].Text,
			Embedding:     c.Centroid,
			OS:            osName,
			Label:         string(b.Label(c)),
			Size:          len(c.Members),
			CreatedBy:     models.CreatedByBatch,
			EmbeddingMode: b.embedder.ID(),
		}
		prototypes = append(prototypes, proto)

		req.IDs = append(req.IDs, proto.ID)
		req.Documents = append(req.Documents, proto.Document)
		req.Embeddings = append(req.Embeddings, proto.Embedding)
		req.Metadatas = append(req.Metadatas, vectorstore.Metadata{
			"label":          proto.Label,
			"created_by":     string(proto.CreatedBy),
			"embedding_mode": proto.EmbeddingMode,
			"size":           proto.Size,
		})
	}

	if len(req.IDs) > 0 {
		if err := b.store.Upsert(ctx, protoCollection, req); err != nil {
			return nil, err
		}
	}
	return prototypes, nil
}
