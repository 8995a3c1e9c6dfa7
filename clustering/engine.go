package clustering

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/wishingwell/backend/config"
)

// OutlierLabel marks documents that could not be confidently assigned to any
// cluster. Outliers are intentionally left alone, never force-classified.
const OutlierLabel = -1

// softmax sharpness over cosine similarities when turning distances into a
// probability distribution.
const similarityTemperature = 8.0

// Embedder turns documents into vectors.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Result is the clustering outcome for one document batch.
type Result struct {
	// Labels holds one cluster label per document, OutlierLabel for
	// outliers. Surviving clusters are numbered 0..n-1.
	Labels []int
	// Probabilities holds, for each non-outlier document, its probability
	// distribution over all surviving clusters. Nil for outliers.
	Probabilities []map[int]float64
	// Members lists each cluster's document indices ordered by proximity to
	// the cluster centroid, most representative first.
	Members map[int][]int
}

// ClusterLabels returns the surviving cluster labels in ascending order.
func (r *Result) ClusterLabels() []int {
	labels := make([]int, 0, len(r.Members))
	for label := range r.Members {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}

// Engine embeds documents and groups them into clusters. Clusters smaller
// than the configured minimum are dissolved into outliers.
type Engine struct {
	embedder          Embedder
	reducedDimensions int
	minClusterSize    int
	log               *zap.SugaredLogger
}

// NewEngine builds an engine from settings.
func NewEngine(embedder Embedder, settings config.Settings, log *zap.SugaredLogger) *Engine {
	return &Engine{
		embedder:          embedder,
		reducedDimensions: settings.ReducedDimensions,
		minClusterSize:    settings.MinClusterSize,
		log:               log,
	}
}

// Cluster assigns a label to every document and, for documents in surviving
// clusters, a probability distribution over all surviving clusters.
func (e *Engine) Cluster(ctx context.Context, docs []string) (*Result, error) {
	result := &Result{
		Labels:        make([]int, len(docs)),
		Probabilities: make([]map[int]float64, len(docs)),
		Members:       make(map[int][]int),
	}
	for i := range result.Labels {
		result.Labels[i] = OutlierLabel
	}
	if len(docs) == 0 {
		return result, nil
	}

	embeddings, err := e.embedder.Embed(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(embeddings), len(docs))
	}

	vectors := make([][]float32, len(embeddings))
	for i, v := range embeddings {
		vectors[i] = normalizeUnit(v)
	}
	vectors = project(vectors, e.reducedDimensions)

	vecs := make([]docVec, len(vectors))
	for i, v := range vectors {
		vecs[i] = docVec{Index: i, Vec: v}
	}

	k := chooseK(len(vecs), e.minClusterSize)
	clusters := kmeans(vecs, k)

	// Clusters below the minimum size dissolve into outliers.
	surviving := make([]kCluster, 0, len(clusters))
	for _, cl := range clusters {
		if len(cl.Members) < e.minClusterSize {
			continue
		}
		surviving = append(surviving, cl)
	}
	e.log.Infow("Clustered documents",
		"documents", len(docs),
		"k", k,
		"clusters", len(surviving),
		"dissolved", len(clusters)-len(surviving),
	)
	if len(surviving) == 0 {
		return result, nil
	}

	for label, cl := range surviving {
		members := make([]docVec, len(cl.Members))
		copy(members, cl.Members)
		sort.SliceStable(members, func(i, j int) bool {
			return cosineSimilarity(members[i].Vec, cl.Centroid) > cosineSimilarity(members[j].Vec, cl.Centroid)
		})
		for _, m := range members {
			result.Labels[m.Index] = label
			result.Probabilities[m.Index] = distribution(m.Vec, surviving)
			result.Members[label] = append(result.Members[label], m.Index)
		}
	}
	return result, nil
}

// distribution softmaxes the document's similarity to every surviving
// centroid.
func distribution(vec []float32, clusters []kCluster) map[int]float64 {
	scores := make([]float64, len(clusters))
	maxScore := math.Inf(-1)
	for i, cl := range clusters {
		scores[i] = cosineSimilarity(vec, cl.Centroid) * similarityTemperature
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
	}

	var sum float64
	for i := range scores {
		scores[i] = math.Exp(scores[i] - maxScore)
		sum += scores[i]
	}

	dist := make(map[int]float64, len(clusters))
	for i := range scores {
		dist[i] = scores[i] / sum
	}
	return dist
}
