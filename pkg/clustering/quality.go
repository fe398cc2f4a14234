package clustering

import "math"

// QualityPoint is one embedded member used for silhouette/cohesion scoring,
// tagged with which cluster it belongs to.
type QualityPoint struct {
	ClusterID string
	Embedding []float64 // already L2-normalized
}

// QualityReport holds the §4.8 cluster-metrics tracker outputs.
type QualityReport struct {
	Silhouette float64
	Cohesion   float64
	Separation float64
	Sizes      map[string]int
}

// Silhouette computes the mean silhouette score s(i) = (b-a)/max(a,b) over
// every point belonging to a cluster of size >= 2, per §4.8.
func Silhouette(points []QualityPoint) float64 {
	byCluster := groupByCluster(points)

	var total float64
	var n int
	for i, p := range points {
		members := byCluster[p.ClusterID]
		if len(members) < 2 {
			continue
		}
		a := meanDistanceToOthers(p, i, points, members)
		b := math.Inf(1)
		for clusterID, otherMembers := range byCluster {
			if clusterID == p.ClusterID {
				continue
			}
			d := meanDistanceToCluster(p, points, otherMembers)
			if d < b {
				b = d
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		denom := math.Max(a, b)
		s := 0.0
		if denom > 0 {
			s = (b - a) / denom
		}
		total += s
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// Cohesion is the mean pairwise intra-cluster cosine distance.
func Cohesion(points []QualityPoint) float64 {
	byCluster := groupByCluster(points)
	var total float64
	var n int
	for _, idxs := range byCluster {
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				if d, ok := CosineDistance(points[idxs[i]].Embedding, points[idxs[j]].Embedding); ok {
					total += d
					n++
				}
			}
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// Separation is the mean pairwise cosine distance between cluster centroids.
func Separation(centroids [][]float64) float64 {
	var total float64
	var n int
	for i := 0; i < len(centroids); i++ {
		for j := i + 1; j < len(centroids); j++ {
			if d, ok := CosineDistance(centroids[i], centroids[j]); ok {
				total += d
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// Report runs Silhouette/Cohesion/Separation together and tallies sizes.
func Report(points []QualityPoint, centroids map[string][]float64) QualityReport {
	byCluster := groupByCluster(points)
	sizes := make(map[string]int, len(byCluster))
	for id, idxs := range byCluster {
		sizes[id] = len(idxs)
	}
	centroidList := make([][]float64, 0, len(centroids))
	for _, c := range centroids {
		centroidList = append(centroidList, c)
	}
	return QualityReport{
		Silhouette: Silhouette(points),
		Cohesion:   Cohesion(points),
		Separation: Separation(centroidList),
		Sizes:      sizes,
	}
}

func groupByCluster(points []QualityPoint) map[string][]int {
	out := map[string][]int{}
	for i, p := range points {
		out[p.ClusterID] = append(out[p.ClusterID], i)
	}
	return out
}

func meanDistanceToOthers(p QualityPoint, selfIdx int, points []QualityPoint, members []int) float64 {
	var total float64
	var n int
	for _, idx := range members {
		if idx == selfIdx {
			continue
		}
		if d, ok := CosineDistance(p.Embedding, points[idx].Embedding); ok {
			total += d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func meanDistanceToCluster(p QualityPoint, points []QualityPoint, members []int) float64 {
	var total float64
	var n int
	for _, idx := range members {
		if d, ok := CosineDistance(p.Embedding, points[idx].Embedding); ok {
			total += d
			n++
		}
	}
	if n == 0 {
		return math.Inf(1)
	}
	return total / float64(n)
}
