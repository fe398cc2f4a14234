package models

// CreatedBy identifies what produced a Prototype.
type CreatedBy string

const (
	CreatedByBatch  CreatedBy = "batch"
	CreatedByOnline CreatedBy = "online"
)

// Prototype is a cluster centroid/medoid pair stored in proto_<os>.
type Prototype struct {
	ID            string    `json:"id"`
	Document      string    `json:"document"` // medoid text
	Embedding     []float64 `json:"-"`        // centroid
	OS            string    `json:"os"`
	Label         string    `json:"label"`
	Rationale     string    `json:"rationale,omitempty"`
	Solution      string    `json:"solution,omitempty"`
	Size          int       `json:"size"`
	CreatedBy     CreatedBy `json:"created_by"`
	EmbeddingMode string    `json:"embedding_mode"`
}

// IsUnlabeled reports whether the prototype has not yet been classified.
func (p Prototype) IsUnlabeled() bool {
	return p.Label == "" || p.Label == "unknown"
}

// ClusterCandidate is emitted on clusters_candidates exactly once, when the
// running per-cluster counter first reaches CLUSTER_MIN_LOGS_FOR_CLASSIFICATION.
type ClusterCandidate struct {
	OS        string `json:"os"`
	ClusterID string `json:"cluster_id"`
}

// BatchCluster is an in-progress cluster built by the single-pass batch
// clustering algorithm (§4.5), prior to being upserted as a Prototype.
type BatchCluster struct {
	Centroid []float64
	Members  []BatchMember
}

// BatchMember is one vector assigned to a BatchCluster.
type BatchMember struct {
	Text      string
	Embedding []float64
}

// Medoid returns the index of the member whose embedding has the smallest
// cosine distance to the cluster centroid.
func (c *BatchCluster) Medoid(cosineDistance func(a, b []float64) float64) int {
	best := 0
	bestDist := -1.0
	for i, m := range c.Members {
		d := cosineDistance(m.Embedding, c.Centroid)
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
