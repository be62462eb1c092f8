package capacity

import (
	"math"
	"sort"
)

// Percentile returns the q-th quantile (0 <= q <= 1) of values using linear
// interpolation between the closest ranks. It returns NaN for no values.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return percentileSorted(sorted, q)
}

func percentileSorted(sorted []float64, q float64) float64 {
	switch {
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Median returns the middle value, averaging the two middle values of an
// even-length input.
func Median(values []float64) float64 {
	return Percentile(values, 0.5)
}

// KMeans partitions one-dimensional values into at most k clusters. The
// centroids start at evenly spaced quantiles so the result is deterministic.
// Labels are numbered by ascending centroid and centroids[label] is the mean
// of the values with that label.
func KMeans(values []float64, k int) (labels []int, centroids []float64) {
	if len(values) == 0 || k <= 0 {
		return nil, nil
	}
	if k > len(values) {
		k = len(values)
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	centroids = make([]float64, k)
	for i := range centroids {
		centroids[i] = percentileSorted(sorted, (float64(i)+0.5)/float64(k))
	}

	labels = make([]int, len(values))
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < 300; iter++ {
		changed := false
		for i, v := range values {
			best := nearest(centroids, v)
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		updateCentroids(values, labels, centroids)
	}

	return relabel(labels, centroids)
}

func updateCentroids(values []float64, labels []int, centroids []float64) {
	sums := make([]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i, v := range values {
		sums[labels[i]] += v
		counts[labels[i]]++
	}
	for c := range centroids {
		// an empty cluster keeps its previous centroid
		if counts[c] > 0 {
			centroids[c] = sums[c] / float64(counts[c])
		}
	}
}

func nearest(centroids []float64, v float64) int {
	best := 0
	for c := 1; c < len(centroids); c++ {
		if math.Abs(v-centroids[c]) < math.Abs(v-centroids[best]) {
			best = c
		}
	}
	return best
}

// relabel drops empty clusters and numbers the rest by ascending centroid.
func relabel(labels []int, centroids []float64) ([]int, []float64) {
	used := make(map[int]bool)
	for _, l := range labels {
		used[l] = true
	}
	order := make([]int, 0, len(used))
	for c := range centroids {
		if used[c] {
			order = append(order, c)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return centroids[order[i]] < centroids[order[j]]
	})

	remap := make(map[int]int, len(order))
	ordered := make([]float64, len(order))
	for to, from := range order {
		remap[from] = to
		ordered[to] = centroids[from]
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = remap[l]
	}
	return out, ordered
}
