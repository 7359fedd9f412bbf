package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// seed is fixed so cluster assignments are reproducible across runs;
// nInit is the number of restarts taken to avoid a poor local minimum.
const (
	seed          = 1337
	nInit         = 10
	deltaThreshold = 0.01
)

// fitKMeans clusters durations (1-dimensional) into k groups and returns
// the centroid of each group plus each duration's assigned cluster index.
// It runs nInit times with deterministic seeds and keeps the run with the
// lowest within-cluster sum of squares, so the result is reproducible
// across calls given the same input.
func fitKMeans(durations []float64, k int) (centroids []float64, assignment []int, err error) {
	if k < 1 || k > len(durations) {
		return nil, nil, fmt.Errorf("cluster: invalid k=%d for %d points", k, len(durations))
	}

	bestWCSS := math.Inf(1)
	var bestCentroids []float64
	var bestAssignment []int

	for run := 0; run < nInit; run++ {
		rand.Seed(seed + int64(run))

		obs := make(clusters.Observations, len(durations))
		for i, d := range durations {
			obs[i] = clusters.Coordinates{d}
		}

		km, kerr := kmeans.NewWithOptions(deltaThreshold, nil)
		if kerr != nil {
			err = kerr
			continue
		}
		cs, perr := km.Partition(obs, k)
		if perr != nil {
			err = perr
			continue
		}

		runCentroids := make([]float64, len(cs))
		for i, c := range cs {
			runCentroids[i] = c.Center[0]
		}
		runAssignment := assignToNearest(durations, runCentroids)
		wcss := sumSquaredError(durations, runCentroids, runAssignment)

		if wcss < bestWCSS {
			bestWCSS = wcss
			bestCentroids = runCentroids
			bestAssignment = runAssignment
			err = nil
		}
	}

	if bestCentroids == nil {
		if err == nil {
			err = fmt.Errorf("cluster: kmeans produced no usable partition for k=%d", k)
		}
		return nil, nil, err
	}
	return bestCentroids, bestAssignment, nil
}

// assignToNearest reassigns every duration to its nearest centroid. This
// is computed independently of the kmeans library's own Observations
// bookkeeping so each duration's original index is never lost, even when
// durations collide in value.
func assignToNearest(durations, centroids []float64) []int {
	assignment := make([]int, len(durations))
	for i, d := range durations {
		best, bestDist := 0, math.Inf(1)
		for ci, c := range centroids {
			if dist := math.Abs(d - c); dist < bestDist {
				bestDist, best = dist, ci
			}
		}
		assignment[i] = best
	}
	return assignment
}

func sumSquaredError(durations, centroids []float64, assignment []int) float64 {
	var sum float64
	for i, d := range durations {
		diff := d - centroids[assignment[i]]
		sum += diff * diff
	}
	return sum
}

// argsortDescending returns indices 0..len(vals)-1 sorted so the largest
// value comes first, ties broken by the lower index (stable).
func argsortDescending(vals []float64) []int {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	// insertion sort: the input is at most 15 elements (k <= 15), so
	// simplicity wins over sort.Slice's allocation.
	for i := 1; i < len(idx); i++ {
		j := i
		for j > 0 && vals[idx[j-1]] < vals[idx[j]] {
			idx[j-1], idx[j] = idx[j], idx[j-1]
			j--
		}
	}
	return idx
}
