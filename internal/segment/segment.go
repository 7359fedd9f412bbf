// Package segment cuts a book's audio into numbered clips along a
// chosen cue list, then head-trims each clip before it is handed to an
// ASR backend.
package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirgibblets/achew-core/internal/mediaio"
)

// Segment is one extracted clip: its full (untrimmed) file, its
// head-trimmed counterpart used for ASR, and its boundaries in the
// book's global timeline.
type Segment struct {
	Index      int
	Start      float64
	End        float64
	Path       string
	TrimmedPath string
}

// Extractor cuts segments from a single audio file along a cue list.
type Extractor struct {
	Media *mediaio.Tool
}

// New returns an Extractor using a fresh mediaio.Tool.
func New() *Extractor {
	return &Extractor{Media: mediaio.New()}
}

// Extract cuts adjacent pairs from the sorted cue list into numbered
// segments 0..N-1. segmentLength caps the head-trimmed clip fed to ASR;
// a segment shorter than segmentLength is used whole.
func (e *Extractor) Extract(ctx context.Context, path string, cues []float64, duration, segmentLength float64, outDir string) ([]Segment, error) {
	if len(cues) == 0 {
		return nil, fmt.Errorf("segment: empty cue list")
	}

	paths, err := e.Media.ExtractSegments(ctx, path, cues, duration, outDir)
	if err != nil {
		return nil, fmt.Errorf("segment: extract: %w", err)
	}

	trimDir := filepath.Join(outDir, "trimmed")
	if err := os.MkdirAll(trimDir, 0o755); err != nil {
		return nil, fmt.Errorf("segment: create trim dir: %w", err)
	}
	out := make([]Segment, len(paths))
	for i, segPath := range paths {
		start := cues[i]
		end := duration
		if i+1 < len(cues) {
			end = cues[i+1]
		}

		needsTrim := (end - start) > segmentLength
		trimmed, err := e.Media.TrimHead(ctx, segPath, needsTrim, segmentLength, trimDir)
		if err != nil {
			return nil, fmt.Errorf("segment: trim head %d: %w", i, err)
		}

		out[i] = Segment{
			Index:       i,
			Start:       start,
			End:         end,
			Path:        segPath,
			TrimmedPath: trimmed,
		}
	}
	return out, nil
}
