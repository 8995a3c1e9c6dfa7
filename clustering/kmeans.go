package clustering

import (
	"math"
	"math/rand"
)

type docVec struct {
	Index int
	Vec   []float32
}

type kCluster struct {
	Centroid []float32
	Members  []docVec
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalizeUnit(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum <= 0 {
		return v
	}
	den := float32(1.0 / math.Sqrt(sum))
	out := make([]float32, len(v))
	for i := range v {
		out[i] = v[i] * den
	}
	return out
}

func meanVector(vecs [][]float32) ([]float32, bool) {
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, false
	}
	dim := len(vecs[0])
	sum := make([]float64, dim)
	count := 0
	for _, v := range vecs {
		if len(v) != dim {
			continue
		}
		for i := range v {
			sum[i] += float64(v[i])
		}
		count++
	}
	if count == 0 {
		return nil, false
	}
	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(count))
	}
	return out, true
}

// chooseK picks the cluster count for a batch: one candidate cluster per
// minClusterSize documents, capped at sqrt(n).
func chooseK(n, minClusterSize int) int {
	if n <= 1 {
		return 1
	}
	if minClusterSize < 1 {
		minClusterSize = 1
	}
	k := n / minClusterSize
	if k < 1 {
		k = 1
	}
	if cap := int(math.Round(math.Sqrt(float64(n)))); k > cap {
		k = cap
	}
	if k > n {
		k = n
	}
	return k
}

// kmeans clusters unit vectors by cosine similarity. Seeding is
// deterministic k-means++: first vector, then the farthest vector from the
// chosen centroids each time.
func kmeans(vecs []docVec, k int) []kCluster {
	if len(vecs) == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	if k > len(vecs) {
		k = len(vecs)
	}

	centroids := make([][]float32, 0, k)
	centroids = append(centroids, vecs[0].Vec)
	for len(centroids) < k {
		bestIdx := 0
		bestDist := -1.0
		for i := range vecs {
			d := 1.0
			for _, c := range centroids {
				dist := 1.0 - cosineSimilarity(vecs[i].Vec, c)
				if dist < d {
					d = dist
				}
			}
			if d > bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		centroids = append(centroids, vecs[bestIdx].Vec)
	}

	assign := make([]int, len(vecs))
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < 10; iter++ {
		changed := false
		clusters := make([]kCluster, k)
		for i := range clusters {
			clusters[i].Centroid = centroids[i]
		}

		for i, dv := range vecs {
			best := 0
			bestScore := -1.0
			for c := 0; c < k; c++ {
				if s := cosineSimilarity(dv.Vec, centroids[c]); s > bestScore {
					bestScore = s
					best = c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
			clusters[best].Members = append(clusters[best].Members, dv)
		}

		for i := 0; i < k; i++ {
			if len(clusters[i].Members) == 0 {
				continue
			}
			tmp := make([][]float32, 0, len(clusters[i].Members))
			for _, m := range clusters[i].Members {
				tmp = append(tmp, m.Vec)
			}
			if mean, ok := meanVector(tmp); ok && len(mean) > 0 {
				centroids[i] = normalizeUnit(mean)
				clusters[i].Centroid = centroids[i]
			}
		}

		if !changed {
			return dropEmpty(clusters)
		}
	}

	final := make([]kCluster, k)
	for i := range final {
		final[i].Centroid = centroids[i]
	}
	for i, dv := range vecs {
		if assign[i] < 0 || assign[i] >= k {
			assign[i] = 0
		}
		final[assign[i]].Members = append(final[assign[i]].Members, dv)
	}
	return dropEmpty(final)
}

func dropEmpty(clusters []kCluster) []kCluster {
	out := make([]kCluster, 0, len(clusters))
	for _, c := range clusters {
		if len(c.Members) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

const projectionSeed = 42

// project reduces vectors to dim components with a seeded Gaussian random
// projection, so the same batch always maps the same way.
func project(vecs [][]float32, dim int) [][]float32 {
	if len(vecs) == 0 || dim <= 0 || dim >= len(vecs[0]) {
		return vecs
	}
	srcDim := len(vecs[0])
	rng := rand.New(rand.NewSource(projectionSeed))
	matrix := make([][]float64, dim)
	scale := 1.0 / math.Sqrt(float64(dim))
	for i := range matrix {
		row := make([]float64, srcDim)
		for j := range row {
			row[j] = rng.NormFloat64() * scale
		}
		matrix[i] = row
	}

	out := make([][]float32, len(vecs))
	for vi, v := range vecs {
		reduced := make([]float32, dim)
		for i := 0; i < dim; i++ {
			var sum float64
			row := matrix[i]
			for j := range v {
				sum += row[j] * float64(v[j])
			}
			reduced[i] = float32(sum)
		}
		out[vi] = normalizeUnit(reduced)
	}
	return out
}
