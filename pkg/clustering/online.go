package clustering

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/rhordoan/logpulse/pkg/embedding"
	"github.com/rhordoan/logpulse/pkg/models"
	"github.com/rhordoan/logpulse/pkg/vectorstore"
)

// Online is the single-pass online clusterer (§4.4): for each incoming
// text it finds the nearest prototype in proto_<os> and either reuses it or
// mints a new provisional one.
type Online struct {
	store     *vectorstore.Store
	embedder  embedding.Provider
	threshold float64
}

// NewOnline builds an online clusterer with the given default distance
// threshold (ONLINE_CLUSTER_DISTANCE_THRESHOLD).
func NewOnline(store *vectorstore.Store, embedder embedding.Provider, threshold float64) *Online {
	return &Online{store: store, embedder: embedder, threshold: threshold}
}

// Assignment is the result of assigning a text to a prototype.
type Assignment struct {
	ClusterID string
	Distance  float64
	IsNew     bool
}

// Assign runs the §4.4 algorithm for one (os, text) pair. threshold<=0 uses
// the clusterer's configured default.
func (o *Online) Assign(ctx context.Context, osName, text string, threshold float64) (Assignment, error) {
	if threshold <= 0 {
		threshold = o.threshold
	}
	collection := vectorstore.CollectionName(vectorstore.CollectionForOS("proto_", osName), o.embedder.ID())

	nearest, distance, found, err := o.queryNearest(ctx, collection, text)
	if err != nil {
		return Assignment{}, err
	}

	if found && distance <= threshold {
		return Assignment{ClusterID: nearest, Distance: distance, IsNew: false}, nil
	}

	embeddings, err := o.embedder.Embed(ctx, []string{text})
	if err != nil {
		return Assignment{}, err
	}
	vec := Normalize(embeddings[0])

	id := "cluster_" + randomHex(8)
	err = o.store.Upsert(ctx, collection, vectorstore.UpsertRequest{
		IDs:        []string{id},
		Documents:  []string{text},
		Embeddings: [][]float64{vec},
		Metadatas: []vectorstore.Metadata{{
			"label":          "unknown",
			"created_by":     string(models.CreatedByOnline),
			"embedding_mode": o.embedder.ID(),
			"size":           1,
		}},
	})
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{ClusterID: id, IsNew: true}, nil
}

// queryNearest implements the re-embed/re-query fallback: if the text-query
// path returns no distances, it re-embeds explicitly and retries with
// query_embeddings.
func (o *Online) queryNearest(ctx context.Context, collection, text string) (id string, distance float64, found bool, err error) {
	count, err := o.store.Count(ctx, collection)
	if err != nil {
		return "", 0, false, err
	}
	if count == 0 {
		return "", 0, false, nil
	}

	result, err := o.store.Query(ctx, collection, vectorstore.QueryRequest{
		QueryTexts: []string{text},
		NResults:   1,
		Include:    []string{"distances"},
	})
	if err != nil {
		return "", 0, false, err
	}
	if id, distance, ok := firstResult(result); ok {
		return id, distance, true, nil
	}

	embeddings, err := o.embedder.Embed(ctx, []string{text})
	if err != nil {
		return "", 0, false, err
	}
	result, err = o.store.Query(ctx, collection, vectorstore.QueryRequest{
		QueryEmbeddings: [][]float64{Normalize(embeddings[0])},
		NResults:        1,
		Include:         []string{"distances"},
	})
	if err != nil {
		return "", 0, false, err
	}
	id, distance, ok := firstResult(result)
	return id, distance, ok, nil
}

func firstResult(result vectorstore.QueryResult) (id string, distance float64, ok bool) {
	if len(result.IDs) == 0 || len(result.IDs[0]) == 0 {
		return "", 0, false
	}
	if len(result.Distances) == 0 || len(result.Distances[0]) == 0 {
		return "", 0, false
	}
	d := result.Distances[0][0]
	if d != d { // NaN: non-finite distances are treated as missing.
		return "", 0, false
	}
	return result.IDs[0][0], d, true
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%x", buf)
	}
	return hex.EncodeToString(buf)
}
