package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/sirgibblets/achew-core/internal/chapterstore"
	"github.com/sirgibblets/achew-core/internal/pipelineerr"
	"github.com/sirgibblets/achew-core/internal/transcribe"
)

// GetSegmentCount reports how many segments were extracted, so a caller
// can decide whether to bother transcribing.
func (sup *Supervisor) GetSegmentCount() int {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	return len(sup.segments)
}

// ConfigureASR either transcribes every segment with asrID (empty means
// the registry default) or skips straight to minting chapters with
// empty titles.
func (sup *Supervisor) ConfigureASR(ctx context.Context, transcribeOn bool, asrID string) error {
	sup.mu.Lock()
	if err := sup.requireState(ConfigureASR); err != nil {
		sup.mu.Unlock()
		return err
	}
	segments := sup.segments
	sup.transcribeOn = transcribeOn
	sup.mu.Unlock()

	var titles []string
	if transcribeOn {
		backend, info, ok := sup.resolveASRBackend(asrID)
		if !ok {
			return sup.fail(ctx, pipelineerr.ErrInput)
		}
		sup.mu.Lock()
		sup.asrBackendID = info.ServiceID
		sup.transition(ctx, Trimming, nil)
		sup.mu.Unlock()

		// Trimming already happened inside segment.Extract (head-trimmed
		// clips are produced alongside the full segment); this state
		// exists purely to report that work before ASR starts.
		sup.mu.Lock()
		sup.transition(ctx, AsrProcessing, nil)
		sup.mu.Unlock()

		paths := make([]string, len(segments))
		for i, s := range segments {
			paths[i] = s.TrimmedPath
		}

		err := sup.withTask(ctx, func(ctx context.Context) error {
			titles = transcribe.TranscribeBatch(ctx, backend, paths)
			return nil
		})
		if err != nil {
			return sup.fail(ctx, err)
		}
	} else {
		titles = make([]string, len(segments))
	}

	sup.mu.Lock()
	defer sup.mu.Unlock()
	sup.store = chapterstore.New(sup.cfg.Now)
	now := sup.cfg.Now()
	for i, s := range segments {
		title := strings.TrimSpace(titles[i])
		id := uuid.NewString()
		c := chapterstore.NewChapter(id, s.Start, title, now)
		if i < len(sup.pendingAlignment) {
			a := sup.pendingAlignment[i]
			c.Realignment = &chapterstore.RealignmentData{
				OriginalTimestamp: a.Timestamp,
				Confidence:        a.Confidence,
				IsGuess:           a.IsGuess,
			}
		}
		c.AudioSegmentPath = s.Path
		_ = sup.store.Do(&chapterstore.AddChapter{Chapter: c})
	}
	sup.transition(ctx, ChapterEditing, nil)
	sup.emitChapterUpdate(ctx)
	sup.emitHistoryUpdate(ctx)
	return nil
}

func (sup *Supervisor) resolveASRBackend(asrID string) (transcribe.Backend, transcribe.Info, bool) {
	if asrID == "" {
		return sup.cfg.Transcribe.Default()
	}
	return sup.cfg.Transcribe.Get(asrID)
}
