package cluster

import (
	"math"
	"math/rand"
)

// kmeansResult is one fitted clustering: per-point labels, final
// centroids, and the within-cluster sum of squared distances.
type kmeansResult struct {
	centroids [][]float64
	labels    []int
	inertia   float64
}

// fitKMeans runs nInit independent k-means fits and keeps the one with
// the lowest inertia. Deterministic for a given rng state.
func fitKMeans(rng *rand.Rand, vectors [][]float64, k, nInit, maxIter int) kmeansResult {
	best := kmeansResult{inertia: math.Inf(1)}
	for run := 0; run < nInit; run++ {
		res := runKMeans(rng, vectors, k, maxIter)
		if res.inertia < best.inertia {
			best = res
		}
	}
	return best
}

// runKMeans is one Lloyd fit with k-means++ initialization.
func runKMeans(rng *rand.Rand, vectors [][]float64, k, maxIter int) kmeansResult {
	centroids := seedCentroids(rng, vectors, k)
	labels := make([]int, len(vectors))

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, v := range vectors {
			nearest := nearestCentroid(v, centroids)
			if labels[i] != nearest {
				labels[i] = nearest
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}
		recomputeCentroids(rng, vectors, labels, centroids)
	}

	var inertia float64
	for i, v := range vectors {
		inertia += squaredDistance(v, centroids[labels[i]])
	}
	return kmeansResult{centroids: centroids, labels: labels, inertia: inertia}
}

// seedCentroids picks k initial centroids with k-means++ weighting:
// the first uniformly, each next proportional to squared distance from
// the nearest centroid chosen so far.
func seedCentroids(rng *rand.Rand, vectors [][]float64, k int) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := vectors[rng.Intn(len(vectors))]
	centroids = append(centroids, copyVector(first))

	dists := make([]float64, len(vectors))
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := squaredDistance(v, centroids[0])
			for _, c := range centroids[1:] {
				if dc := squaredDistance(v, c); dc < d {
					d = dc
				}
			}
			dists[i] = d
			total += d
		}
		if total == 0 {
			// All points coincide with a centroid; fill with copies.
			centroids = append(centroids, copyVector(vectors[rng.Intn(len(vectors))]))
			continue
		}
		target := rng.Float64() * total
		chosen := len(vectors) - 1
		var acc float64
		for i, d := range dists {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, copyVector(vectors[chosen]))
	}
	return centroids
}

// recomputeCentroids moves each centroid to the mean of its members.
// An emptied cluster is re-seeded on a random point so k never shrinks.
func recomputeCentroids(rng *rand.Rand, vectors [][]float64, labels []int, centroids [][]float64) {
	dim := len(vectors[0])
	counts := make([]int, len(centroids))
	for i := range centroids {
		centroids[i] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := labels[i]
		counts[c]++
		for j, x := range v {
			centroids[c][j] += x
		}
	}
	for i := range centroids {
		if counts[i] == 0 {
			centroids[i] = copyVector(vectors[rng.Intn(len(vectors))])
			continue
		}
		for j := range centroids[i] {
			centroids[i][j] /= float64(counts[i])
		}
	}
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := squaredDistance(v, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func copyVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
