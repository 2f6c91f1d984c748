package cluster

import "math"

// silhouetteScore is the mean silhouette coefficient over all points.
// For point i with intra-cluster mean distance a(i) and lowest mean
// distance to another cluster b(i), the coefficient is
// (b-a)/max(a,b). Singleton clusters contribute 0, matching the usual
// convention. Distances are Euclidean.
func silhouetteScore(vectors [][]float64, labels []int, k int) float64 {
	n := len(vectors)
	if n == 0 || k < 2 {
		return 0
	}

	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}

	var total float64
	sums := make([]float64, k)
	for i, v := range vectors {
		for c := range sums {
			sums[c] = 0
		}
		for j, w := range vectors {
			if i == j {
				continue
			}
			sums[labels[j]] += math.Sqrt(squaredDistance(v, w))
		}

		own := labels[i]
		if sizes[own] <= 1 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || sizes[c] == 0 {
				continue
			}
			if m := sums[c] / float64(sizes[c]); m < b {
				b = m
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}
