// Package cluster runs k-means over silence-span durations, producing a
// cardinality -> cue-timestamp list mapping so the caller can offer the
// user several candidate chapter counts to choose from. The clustering
// itself is delegated to github.com/muesli/kmeans + github.com/muesli/clusters.
package cluster

import (
	"sort"

	"github.com/sirgibblets/achew-core/internal/model"
)

// Config mirrors model.SmartDetectConfig's clustering-relevant fields.
type Config struct {
	SegmentLength  float64
	MinClipLength  float64
	ASRBuffer      float64
	BookDuration   float64
}

// Cluster produces the cardinality -> cue list mapping, already passed
// through the consecutive-cardinality post-filter.
func Cluster(spans []model.SilenceSpan, cfg Config) (model.CueSet, error) {
	n := len(spans)
	if n < 2 {
		return model.CueSet{}, nil
	}

	durations := make([]float64, n)
	for i, s := range spans {
		durations[i] = s.Duration()
	}

	maxK := 15
	if n < maxK {
		maxK = n
	}

	raw := model.CueSet{}
	for k := 2; k <= maxK; k++ {
		centroids, assignment, err := fitKMeans(durations, k)
		if err != nil {
			return nil, err
		}
		order := argsortDescending(centroids)

		for topN := 1; topN < k; topN++ {
			selected := make(map[int]bool, topN)
			for _, ci := range order[:topN] {
				selected[ci] = true
			}

			cues := candidateCues(spans, assignment, selected, cfg.ASRBuffer, cfg.MinClipLength)
			cues = snapOrPrepend(cues, cfg.SegmentLength, cfg.MinClipLength)
			cues = dropTrailingNearEnd(cues, cfg.BookDuration, cfg.SegmentLength)

			raw[len(cues)] = cues
		}
	}

	return postFilter(raw), nil
}

// candidateCues collects span.End - asrBuffer for every span whose
// cluster is selected, sorted, then deduplicates any candidate within
// minClipLength of an already-kept one, keeping the earlier.
func candidateCues(spans []model.SilenceSpan, assignment []int, selected map[int]bool, asrBuffer, minClipLength float64) []float64 {
	var candidates []float64
	for i, s := range spans {
		if selected[assignment[i]] {
			candidates = append(candidates, s.End-asrBuffer)
		}
	}
	sort.Float64s(candidates)

	deduped := candidates[:0]
	for _, c := range candidates {
		if len(deduped) == 0 || c-deduped[len(deduped)-1] >= minClipLength {
			deduped = append(deduped, c)
		}
	}
	out := make([]float64, len(deduped))
	copy(out, deduped)
	return out
}

// snapOrPrepend snaps the first cue to 0 if it's within
// segmentLength+minClipLength of the start, otherwise prepends an
// explicit 0.
func snapOrPrepend(cues []float64, segmentLength, minClipLength float64) []float64 {
	if len(cues) == 0 {
		return []float64{0}
	}
	if cues[0] <= segmentLength+minClipLength {
		cues[0] = 0
		return cues
	}
	return append([]float64{0}, cues...)
}

// dropTrailingNearEnd drops the final cue if it falls within the last
// segmentLength seconds of the book.
func dropTrailingNearEnd(cues []float64, duration, segmentLength float64) []float64 {
	if len(cues) == 0 {
		return cues
	}
	last := cues[len(cues)-1]
	if last > duration-segmentLength {
		return cues[:len(cues)-1]
	}
	return cues
}

// postFilter collapses runs of consecutive cardinalities: length-1 runs
// are kept whole, length-2 runs keep the larger cardinality, length >=3
// runs keep only the first and last.
func postFilter(raw model.CueSet) model.CueSet {
	keys := make([]int, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := model.CueSet{}
	for i := 0; i < len(keys); {
		j := i
		for j+1 < len(keys) && keys[j+1] == keys[j]+1 {
			j++
		}
		run := keys[i : j+1]
		switch len(run) {
		case 1:
			out[run[0]] = raw[run[0]]
		case 2:
			k := run[1]
			out[k] = raw[k]
		default:
			first, last := run[0], run[len(run)-1]
			out[first] = raw[first]
			out[last] = raw[last]
		}
		i = j + 1
	}
	return out
}
