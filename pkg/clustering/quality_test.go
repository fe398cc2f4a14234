package clustering

import (
	"math"
	"testing"
)

func TestSilhouetteWellSeparatedClustersIsHigh(t *testing.T) {
	points := []QualityPoint{
		{ClusterID: "a", Embedding: Normalize([]float64{1, 0})},
		{ClusterID: "a", Embedding: Normalize([]float64{0.99, 0.01})},
		{ClusterID: "b", Embedding: Normalize([]float64{0, 1})},
		{ClusterID: "b", Embedding: Normalize([]float64{0.01, 0.99})},
	}
	s := Silhouette(points)
	if s < 0.5 {
		t.Errorf("silhouette = %v, want > 0.5 for well-separated clusters", s)
	}
}

func TestSilhouetteIgnoresSingletonClusters(t *testing.T) {
	points := []QualityPoint{
		{ClusterID: "solo", Embedding: Normalize([]float64{1, 0})},
	}
	s := Silhouette(points)
	if s != 0 {
		t.Errorf("silhouette = %v, want 0 (no clusters of size >= 2)", s)
	}
}

func TestCohesionIdenticalMembersIsZero(t *testing.T) {
	v := Normalize([]float64{1, 2, 3})
	points := []QualityPoint{
		{ClusterID: "a", Embedding: v},
		{ClusterID: "a", Embedding: v},
	}
	c := Cohesion(points)
	if math.Abs(c) > 1e-9 {
		t.Errorf("cohesion = %v, want ~0", c)
	}
}

func TestSeparationOrthogonalCentroidsIsOne(t *testing.T) {
	centroids := [][]float64{
		Normalize([]float64{1, 0}),
		Normalize([]float64{0, 1}),
	}
	sep := Separation(centroids)
	if math.Abs(sep-1) > 1e-9 {
		t.Errorf("separation = %v, want 1", sep)
	}
}
