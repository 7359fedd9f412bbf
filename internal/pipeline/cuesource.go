package pipeline

import (
	"context"
	"fmt"

	"github.com/sirgibblets/achew-core/internal/align"
	"github.com/sirgibblets/achew-core/internal/cluster"
	"github.com/sirgibblets/achew-core/internal/model"
	"github.com/sirgibblets/achew-core/internal/pipelineerr"
	"github.com/sirgibblets/achew-core/internal/segment"
	"github.com/sirgibblets/achew-core/internal/silence"
	"github.com/sirgibblets/achew-core/internal/vad"
)

// SelectCueSource dispatches on sourceID: the two scanner-backed ids
// (smart-detect, smart-detect-vad) run a scan and land on
// CueSetSelection; any other id names an already-collected CueSource
// whose cues are used directly, aligned onto the downloaded audio's
// actual timeline, and extraction starts immediately.
func (sup *Supervisor) SelectCueSource(ctx context.Context, sourceID model.CueSourceID) error {
	sup.mu.Lock()
	if err := sup.requireState(SelectCueSource); err != nil {
		sup.mu.Unlock()
		return err
	}
	book := sup.book
	sourcePath := sup.sourcePath
	tempDir := sup.tempDir
	cueSources := sup.cueSources
	sup.mu.Unlock()

	switch sourceID {
	case model.CueSourceSmartDetect:
		return sup.runSmartDetect(ctx, sourcePath, book.Duration, tempDir)
	case model.CueSourceSmartDetectVad:
		return sup.runSmartDetectVad(ctx, sourcePath, book.Duration, tempDir)
	default:
		var source *model.CueSource
		for i := range cueSources {
			if cueSources[i].ID == sourceID {
				source = &cueSources[i]
				break
			}
		}
		if source == nil {
			return fmt.Errorf("%w: unknown cue source %q", pipelineerr.ErrInput, sourceID)
		}
		return sup.useExistingCueSource(ctx, *source, sourcePath, book.Duration)
	}
}

func (sup *Supervisor) runSmartDetect(ctx context.Context, sourcePath string, bookDuration float64, tempDir string) error {
	sup.mu.Lock()
	sup.transition(ctx, AudioAnalysis, nil)
	sup.mu.Unlock()

	var spans []model.SilenceSpan
	err := sup.withTask(ctx, func(ctx context.Context) error {
		var err error
		spans, err = sup.cfg.Silence.Scan(ctx, sourcePath, bookDuration, silenceConfigFrom(sup.cfg.SmartDetect))
		return err
	})
	if err != nil {
		return sup.fail(ctx, err)
	}
	if spans == nil {
		return sup.restartAtCancellation(ctx, SelectCueSource)
	}
	return sup.finishAnalysis(ctx, spans, bookDuration)
}

func (sup *Supervisor) runSmartDetectVad(ctx context.Context, sourcePath string, bookDuration float64, tempDir string) error {
	sup.mu.Lock()
	sup.transition(ctx, VadPrep, nil)
	sup.mu.Unlock()

	sup.mu.Lock()
	sup.transition(ctx, VadAnalysis, nil)
	sup.mu.Unlock()

	var spans []model.SilenceSpan
	err := sup.withTask(ctx, func(ctx context.Context) error {
		var err error
		spans, err = sup.cfg.Vad.Scan(ctx, sourcePath, bookDuration, vadConfigFrom(sup.cfg.SmartDetect), func(pct float64) {
			sup.emitProgress(ctx, VadAnalysis.String(), pct, "scanning for voice activity", nil)
		})
		return err
	})
	if err != nil {
		return sup.fail(ctx, err)
	}
	if spans == nil {
		return sup.restartAtCancellation(ctx, SelectCueSource)
	}
	return sup.finishAnalysis(ctx, spans, bookDuration)
}

func (sup *Supervisor) finishAnalysis(ctx context.Context, spans []model.SilenceSpan, bookDuration float64) error {
	cueSets, err := cluster.Cluster(spans, cluster.Config{
		SegmentLength: sup.cfg.SmartDetect.SegmentLength,
		MinClipLength: sup.cfg.SmartDetect.MinClipLength,
		ASRBuffer:     sup.cfg.SmartDetect.ASRBuffer,
		BookDuration:  bookDuration,
	})
	if err != nil {
		return sup.fail(ctx, err)
	}

	sup.mu.Lock()
	defer sup.mu.Unlock()
	sup.spans = spans
	sup.cueSets = cueSets
	sup.transition(ctx, CueSetSelection, map[string]any{"cue_sets": cueSets})
	return nil
}

// silenceConfigFrom adapts SmartDetectConfig to silence.Config, keeping
// the scanner's own defaults for fields it doesn't name.
func silenceConfigFrom(c model.SmartDetectConfig) silence.Config {
	cfg := silence.DefaultConfig()
	cfg.MinSilenceDuration = c.MinSilenceDuration
	return cfg
}

// GetCueSets returns the cardinality -> cue list mapping produced by the
// last scan.
func (sup *Supervisor) GetCueSets() model.CueSet {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	return sup.cueSets
}

// SelectCueSet picks cardinality's cues (plus any include_unaligned
// extras the caller wants merged in), extracts segments, and lands on
// ConfigureASR.
func (sup *Supervisor) SelectCueSet(ctx context.Context, cardinality int, includeUnaligned []float64) error {
	sup.mu.Lock()
	if err := sup.requireState(CueSetSelection); err != nil {
		sup.mu.Unlock()
		return err
	}
	cues, ok := sup.cueSets[cardinality]
	if !ok {
		sup.mu.Unlock()
		return fmt.Errorf("%w: no cue set for cardinality %d", pipelineerr.ErrInput, cardinality)
	}
	merged := mergeSortedCues(cues, includeUnaligned)
	sourcePath := sup.sourcePath
	bookDuration := sup.book.Duration
	segmentLength := sup.cfg.SmartDetect.SegmentLength
	tempDir := sup.tempDir
	sup.selectedCues = merged
	sup.transition(ctx, AudioExtraction, nil)
	sup.mu.Unlock()

	return sup.extractAndAdvance(ctx, sourcePath, merged, bookDuration, segmentLength, tempDir, nil)
}

func mergeSortedCues(base []float64, extra []float64) []float64 {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[float64]bool, len(base))
	out := append([]float64{}, base...)
	for _, c := range base {
		seen[c] = true
	}
	for _, c := range extra {
		if !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	sortFloats(out)
	return out
}

func sortFloats(fs []float64) {
	for i := 1; i < len(fs); i++ {
		for j := i; j > 0 && fs[j-1] > fs[j]; j-- {
			fs[j-1], fs[j] = fs[j], fs[j-1]
		}
	}
}

// useExistingCueSource aligns an externally-supplied cue source onto
// the downloaded audio's actual timeline and extracts segments
// immediately, skipping CueSetSelection.
func (sup *Supervisor) useExistingCueSource(ctx context.Context, source model.CueSource, sourcePath string, bookDuration float64) error {
	actualDuration, err := sup.cfg.Media.ProbeDuration(ctx, sourcePath)
	if err != nil {
		return sup.fail(ctx, err)
	}

	sourceChapters := make([]align.SourceChapter, len(source.Cues))
	for i, c := range source.Cues {
		sourceChapters[i] = align.SourceChapter{Time: c.Timestamp, Title: c.Title}
	}
	aligned := align.Align(sourceChapters, nil, bookDuration, actualDuration)
	cues := make([]float64, len(aligned))
	for i, a := range aligned {
		cues[i] = a.Timestamp
	}
	sortFloats(cues)

	sup.mu.Lock()
	tempDir := sup.tempDir
	segmentLength := sup.cfg.SmartDetect.SegmentLength
	sup.selectedCues = cues
	sup.transition(ctx, AudioExtraction, nil)
	sup.mu.Unlock()

	return sup.extractAndAdvance(ctx, sourcePath, cues, actualDuration, segmentLength, tempDir, aligned)
}

func (sup *Supervisor) extractAndAdvance(ctx context.Context, sourcePath string, cues []float64, duration, segmentLength float64, tempDir string, aligned []align.AlignedChapter) error {
	var segments []segment.Segment
	err := sup.withTask(ctx, func(ctx context.Context) error {
		var err error
		segments, err = sup.cfg.Segment.Extract(ctx, sourcePath, cues, duration, segmentLength, tempDir)
		return err
	})
	if err != nil {
		return sup.fail(ctx, err)
	}

	sup.mu.Lock()
	defer sup.mu.Unlock()
	sup.segments = segments
	sup.pendingAlignment = aligned
	sup.transition(ctx, ConfigureASR, map[string]any{"segment_count": len(segments)})
	return nil
}

// restartAtCancellation is the state transition a cancelled scan lands
// on: the nearest settled level at or below target.
func (sup *Supervisor) restartAtCancellation(ctx context.Context, target State) error {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	sup.transition(ctx, NearestSettled(target), nil)
	return nil
}

// vadConfigFrom adapts SmartDetectConfig to vad.Config, keeping the
// scanner's own defaults for everything it doesn't name.
func vadConfigFrom(c model.SmartDetectConfig) (cfg vad.Config) {
	cfg = vad.DefaultConfig()
	cfg.MinSilenceDuration = c.MinSilenceDuration
	return cfg
}
