package vad

import (
	"runtime"
	"sort"

	"github.com/sirgibblets/achew-core/internal/model"
)

// WorkerCount returns W = max(1, floor((2/3) * cores)), leaving a third
// of the host's cores free for ffmpeg/ffprobe subprocesses.
func WorkerCount(cores int) int {
	w := (2 * cores) / 3
	if w < 1 {
		w = 1
	}
	return w
}

// DefaultWorkerCount uses the host's runtime.NumCPU().
func DefaultWorkerCount() int {
	return WorkerCount(runtime.NumCPU())
}

// ChunkRange is a worker's contiguous assignment of chunk indices [Lo, Hi).
type ChunkRange struct {
	Lo, Hi int
}

// PartitionChunks splits n chunk indices across w workers into
// contiguous, near-equal ranges. A worker gets zero chunks only if w > n.
func PartitionChunks(n, w int) []ChunkRange {
	if w < 1 {
		w = 1
	}
	if n <= 0 {
		return nil
	}
	base := n / w
	rem := n % w

	ranges := make([]ChunkRange, 0, w)
	pos := 0
	for i := 0; i < w && pos < n; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		ranges = append(ranges, ChunkRange{Lo: pos, Hi: pos + size})
		pos += size
	}
	return ranges
}

// MergeGaps sorts silence gaps by start, coalesces any pair separated by
// at most 1.0s, then drops runs shorter than minSilenceDuration.
func MergeGaps(gaps []model.SilenceSpan, minSilenceDuration float64) []model.SilenceSpan {
	if len(gaps) == 0 {
		return nil
	}
	sorted := make([]model.SilenceSpan, len(gaps))
	copy(sorted, gaps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	const coalesceGap = 1.0
	merged := make([]model.SilenceSpan, 0, len(sorted))
	cur := sorted[0]
	for _, g := range sorted[1:] {
		if g.Start-cur.End <= coalesceGap {
			if g.End > cur.End {
				cur.End = g.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = g
	}
	merged = append(merged, cur)

	out := merged[:0]
	for _, g := range merged {
		if g.Duration() >= minSilenceDuration {
			out = append(out, g)
		}
	}
	return out
}
