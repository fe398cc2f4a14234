package correlation

import (
	"math"
	"sort"
)

// hdbscan is a from-scratch density-based clusterer over normalized vectors,
// no HDBSCAN/density-clustering library exists anywhere in the retrieval
// pack. It follows the standard algorithm shape (mutual-reachability MST,
// single-linkage hierarchy, excess-of-mass cluster stability selection) but
// simplifies condensed-tree bookkeeping: a cluster absorbing a sub-threshold
// fragment keeps its identity (no stability event); a new node is born when
// a merge of sub-threshold fragments first reaches minClusterSize, or when
// two already-official clusters merge. Noise keeps label -1.
type hdbscanResult struct {
	Labels []int // len == n, -1 for noise
}

func runHDBSCAN(vectors [][]float64, minClusterSize, minSamples int) hdbscanResult {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	if n == 0 {
		return hdbscanResult{Labels: labels}
	}
	if minClusterSize < 2 {
		minClusterSize = 2
	}
	if minSamples < 1 {
		minSamples = minClusterSize
	}

	core := coreDistances(vectors, minSamples)
	edges := mutualReachabilityMST(vectors, core)
	sort.Slice(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })

	uf := newUnionFind(n)
	members := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		members[i] = []int{i}
	}
	active := make(map[int]*hdbNode, n)
	var allNodes []*hdbNode
	nextID := 0

	toLambda := func(d float64) float64 {
		if d <= 0 {
			return 1e18
		}
		return 1 / d
	}

	for _, e := range edges {
		rootA, rootB := uf.find(e.a), uf.find(e.b)
		if rootA == rootB {
			continue
		}
		lambda := toLambda(e.weight)

		nodeA, nodeB := active[rootA], active[rootB]
		membersA, membersB := members[rootA], members[rootB]
		mergedMembers := append(append([]int{}, membersA...), membersB...)

		switch {
		case nodeA == nil && nodeB == nil:
			if len(mergedMembers) >= minClusterSize {
				node := &hdbNode{id: nextID, birth: lambda, members: append([]int{}, mergedMembers...)}
				nextID++
				allNodes = append(allNodes, node)
				newRoot := uf.union(rootA, rootB)
				active[newRoot] = node
				members[newRoot] = mergedMembers
				delete(members, otherRoot(newRoot, rootA, rootB))
			} else {
				newRoot := uf.union(rootA, rootB)
				members[newRoot] = mergedMembers
				delete(members, otherRoot(newRoot, rootA, rootB))
			}
		case nodeA != nil && nodeB == nil:
			newRoot := uf.union(rootA, rootB)
			members[newRoot] = mergedMembers
			active[newRoot] = nodeA
			if newRoot != rootA {
				delete(active, rootA)
			}
			delete(members, otherRoot(newRoot, rootA, rootB))
		case nodeA == nil && nodeB != nil:
			newRoot := uf.union(rootA, rootB)
			members[newRoot] = mergedMembers
			active[newRoot] = nodeB
			if newRoot != rootB {
				delete(active, rootB)
			}
			delete(members, otherRoot(newRoot, rootA, rootB))
		default:
			nodeA.stability += float64(len(membersA)) * (nodeA.birth - lambda)
			nodeB.stability += float64(len(membersB)) * (nodeB.birth - lambda)
			newNode := &hdbNode{
				id:       nextID,
				birth:    lambda,
				members:  append([]int{}, mergedMembers...),
				children: []*hdbNode{nodeA, nodeB},
			}
			nextID++
			allNodes = append(allNodes, newNode)
			newRoot := uf.union(rootA, rootB)
			members[newRoot] = mergedMembers
			active[newRoot] = newNode
			if newRoot != rootA {
				delete(active, rootA)
			}
			if newRoot != rootB {
				delete(active, rootB)
			}
			delete(members, otherRoot(newRoot, rootA, rootB))
		}
	}

	// Finalize any surviving root cluster at the end of the sweep.
	for root, node := range active {
		node.stability += float64(len(members[root])) * node.birth
	}

	// Roots of the forest are nodes with no parent among allNodes' children.
	hasParent := make(map[int]bool, len(allNodes))
	for _, node := range allNodes {
		for _, c := range node.children {
			hasParent[c.id] = true
		}
	}

	clusterID := 0
	for _, node := range allNodes {
		if hasParent[node.id] {
			continue
		}
		_, selected := selectStable(node)
		for _, id := range selected {
			for _, pt := range id.members {
				labels[pt] = clusterID
			}
			clusterID++
		}
	}

	return hdbscanResult{Labels: labels}
}

type hdbNode struct {
	id        int
	birth     float64
	stability float64
	members   []int
	children  []*hdbNode
}

// selectStable implements excess-of-mass: a node is selected over its
// children when its own accumulated stability exceeds the sum of its
// children's selected-subtree stability.
func selectStable(node *hdbNode) (float64, []*hdbNode) {
	if len(node.children) == 0 {
		return node.stability, []*hdbNode{node}
	}
	var childTotal float64
	var childSelected []*hdbNode
	for _, c := range node.children {
		s, sel := selectStable(c)
		childTotal += s
		childSelected = append(childSelected, sel...)
	}
	if childTotal > node.stability {
		return childTotal, childSelected
	}
	return node.stability, []*hdbNode{node}
}

func otherRoot(newRoot, a, b int) int {
	if newRoot == a {
		return b
	}
	return a
}

type ufEdge struct {
	a, b   int
	weight float64
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) int {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return ra
	}
	u.parent[rb] = ra
	return ra
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// coreDistances returns, for each point, the distance to its minSamples-th
// nearest neighbor (inclusive of itself at distance 0, matching sklearn's
// convention of counting the point itself as its own 0th neighbor).
func coreDistances(vectors [][]float64, minSamples int) []float64 {
	n := len(vectors)
	core := make([]float64, n)
	for i := 0; i < n; i++ {
		dists := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			dists = append(dists, euclidean(vectors[i], vectors[j]))
		}
		sort.Float64s(dists)
		k := minSamples - 1
		if k < 0 {
			k = 0
		}
		if k >= len(dists) {
			k = len(dists) - 1
		}
		if k < 0 {
			core[i] = 0
		} else {
			core[i] = dists[k]
		}
	}
	return core
}

// mutualReachabilityMST builds the minimum spanning tree (Prim's algorithm)
// over the mutual-reachability graph: d_mreach(i,j) = max(core[i], core[j], euclid(i,j)).
func mutualReachabilityMST(vectors [][]float64, core []float64) []ufEdge {
	n := len(vectors)
	if n <= 1 {
		return nil
	}
	inTree := make([]bool, n)
	minDist := make([]float64, n)
	parent := make([]int, n)
	for i := range minDist {
		minDist[i] = math.Inf(1)
		parent[i] = -1
	}
	minDist[0] = 0
	edges := make([]ufEdge, 0, n-1)

	for iter := 0; iter < n; iter++ {
		u := -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !inTree[i] && minDist[i] < best {
				best = minDist[i]
				u = i
			}
		}
		if u == -1 {
			break
		}
		inTree[u] = true
		if parent[u] != -1 {
			edges = append(edges, ufEdge{a: parent[u], b: u, weight: minDist[u]})
		}
		for v := 0; v < n; v++ {
			if inTree[v] {
				continue
			}
			d := math.Max(core[u], math.Max(core[v], euclidean(vectors[u], vectors[v])))
			if d < minDist[v] {
				minDist[v] = d
				parent[v] = u
			}
		}
	}
	return edges
}
