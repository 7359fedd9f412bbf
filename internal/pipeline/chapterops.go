package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sirgibblets/achew-core/internal/chapterstore"
	"github.com/sirgibblets/achew-core/internal/export"
	"github.com/sirgibblets/achew-core/internal/library"
	"github.com/sirgibblets/achew-core/internal/pipelineerr"
)

// ListChapters returns the live chapter list in timestamp order.
func (sup *Supervisor) ListChapters() []*chapterstore.Chapter {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	return sup.store.Chapters()
}

// EditTitle renames a chapter.
func (sup *Supervisor) EditTitle(ctx context.Context, id, title string) error {
	return sup.doChapterOp(ctx, &chapterstore.EditTitle{ChapterID: id, NewTitle: title})
}

// ToggleSelection sets a chapter's selection flag directly, leaving its
// title and Deleted flag untouched. There is no dedicated operation for
// this in the original history model, so — same as AICleanup — the
// title is carried through unchanged and only Selected moves; undo
// restores the chapter's previous selection, per AICleanup's own undo.
func (sup *Supervisor) ToggleSelection(ctx context.Context, id string, selected bool) error {
	sup.mu.Lock()
	if sup.store == nil {
		sup.mu.Unlock()
		return fmt.Errorf("%w: no chapter store", pipelineerr.ErrInvariant)
	}
	var title string
	found := false
	for _, c := range sup.store.Chapters() {
		if c.ID == id {
			title = c.CurrentTitle
			found = true
			break
		}
	}
	sup.mu.Unlock()
	if !found {
		return fmt.Errorf("%w: unknown chapter id %q", pipelineerr.ErrInput, id)
	}
	return sup.doChapterOp(ctx, &chapterstore.AICleanup{
		ChapterID: id,
		OldTitle:  title,
		NewTitle:  title,
		Selected:  selected,
	})
}

// DeleteChapter soft-deletes a chapter.
func (sup *Supervisor) DeleteChapter(ctx context.Context, id string) error {
	return sup.doChapterOp(ctx, &chapterstore.DeleteChapter{ChapterID: id})
}

// AddChapter inserts a brand-new chapter at timestamp with title,
// subject to the caller already having validated the timestamp falls in
// an allowed window (AddOptions below computes that window).
func (sup *Supervisor) AddChapter(ctx context.Context, timestamp float64, title string) error {
	sup.mu.Lock()
	now := sup.cfg.Now()
	sup.mu.Unlock()
	c := chapterstore.NewChapter(uuid.NewString(), timestamp, title, now)
	return sup.doChapterOp(ctx, &chapterstore.AddChapter{Chapter: c})
}

// AddOptionsResult is the permitted-window-plus-candidates response to
// AddOptions.
type AddOptionsResult struct {
	MinTimestamp    float64
	MaxTimestamp    float64
	DetectedCues    []float64
	OtherSourceCues []float64
	DeletedChapters []*chapterstore.Chapter
}

// AddOptions computes the permitted timestamp window for a new chapter
// anchored after anchorID: [anchor + 0.25, next - 0.25], where next is
// the first non-deleted chapter after the anchor (or the book's end), plus the
// detected silence cues, other cue sources' cues, and previously deleted
// chapters falling in that window.
func (sup *Supervisor) AddOptions(anchorID string) (AddOptionsResult, error) {
	const buffer = 0.25

	sup.mu.Lock()
	defer sup.mu.Unlock()
	if sup.store == nil {
		return AddOptionsResult{}, fmt.Errorf("%w: no chapter store", pipelineerr.ErrInvariant)
	}
	chapters := sup.store.Chapters()

	var anchorIdx = -1
	for i, c := range chapters {
		if c.ID == anchorID {
			anchorIdx = i
			break
		}
	}
	if anchorIdx == -1 {
		return AddOptionsResult{}, fmt.Errorf("%w: unknown chapter id %q", pipelineerr.ErrInput, anchorID)
	}

	min := chapters[anchorIdx].Timestamp + buffer
	max := sup.book.Duration
	for _, c := range chapters[anchorIdx+1:] {
		if !c.Deleted {
			max = c.Timestamp - buffer
			break
		}
	}

	res := AddOptionsResult{MinTimestamp: min, MaxTimestamp: max}
	for _, span := range sup.spans {
		cue := span.End
		if cue >= min && cue <= max {
			res.DetectedCues = append(res.DetectedCues, cue)
		}
	}
	for _, source := range sup.cueSources {
		for _, c := range source.Cues {
			if c.Timestamp >= min && c.Timestamp <= max {
				res.OtherSourceCues = append(res.OtherSourceCues, c.Timestamp)
			}
		}
	}
	for _, c := range chapters {
		if c.Deleted && c.Timestamp >= min && c.Timestamp <= max {
			res.DeletedChapters = append(res.DeletedChapters, c)
		}
	}
	return res, nil
}

// Undo reverts the most recently applied chapter operation.
func (sup *Supervisor) Undo(ctx context.Context) error {
	return sup.withStoreOp(ctx, func() error { return sup.store.Undo() })
}

// Redo re-applies the most recently undone chapter operation.
func (sup *Supervisor) Redo(ctx context.Context) error {
	return sup.withStoreOp(ctx, func() error { return sup.store.Redo() })
}

// SelectAll marks every non-deleted chapter selected.
func (sup *Supervisor) SelectAll(ctx context.Context) error {
	return sup.bulkSelect(ctx, true)
}

// DeselectAll marks every non-deleted chapter unselected.
func (sup *Supervisor) DeselectAll(ctx context.Context) error {
	return sup.bulkSelect(ctx, false)
}

func (sup *Supervisor) bulkSelect(ctx context.Context, selected bool) error {
	sup.mu.Lock()
	if sup.store == nil {
		sup.mu.Unlock()
		return fmt.Errorf("%w: no chapter store", pipelineerr.ErrInvariant)
	}
	var ops []chapterstore.Operation
	for _, c := range sup.store.Chapters() {
		if c.Deleted || c.Selected() == selected {
			continue
		}
		ops = append(ops, &chapterstore.AICleanup{
			ChapterID: c.ID,
			OldTitle:  c.CurrentTitle,
			NewTitle:  c.CurrentTitle,
			Selected:  selected,
		})
	}
	sup.mu.Unlock()
	if len(ops) == 0 {
		return nil
	}
	return sup.doChapterOp(ctx, &chapterstore.Batch{Operations: ops})
}

// doChapterOp applies op through the store and broadcasts the resulting
// chapter/history snapshots.
func (sup *Supervisor) doChapterOp(ctx context.Context, op chapterstore.Operation) error {
	sup.mu.Lock()
	if sup.store == nil {
		sup.mu.Unlock()
		return fmt.Errorf("%w: no chapter store", pipelineerr.ErrInvariant)
	}
	err := sup.store.Do(op)
	sup.mu.Unlock()
	if err != nil {
		return err
	}
	sup.mu.Lock()
	sup.emitChapterUpdate(ctx)
	sup.emitHistoryUpdate(ctx)
	sup.mu.Unlock()
	return nil
}

func (sup *Supervisor) withStoreOp(ctx context.Context, fn func() error) error {
	sup.mu.Lock()
	if sup.store == nil {
		sup.mu.Unlock()
		return fmt.Errorf("%w: no chapter store", pipelineerr.ErrInvariant)
	}
	err := fn()
	sup.mu.Unlock()
	if err != nil {
		return err
	}
	sup.mu.Lock()
	sup.emitChapterUpdate(ctx)
	sup.emitHistoryUpdate(ctx)
	sup.mu.Unlock()
	return nil
}

// Submit uploads every selected, non-deleted chapter to the library
// server and transitions to Completed.
func (sup *Supervisor) Submit(ctx context.Context) error {
	sup.mu.Lock()
	if sup.store == nil {
		sup.mu.Unlock()
		return fmt.Errorf("%w: no chapter store", pipelineerr.ErrInvariant)
	}
	itemID := sup.book.ID
	var submission []library.SubmittedChapter
	for _, c := range sup.store.Chapters() {
		if !c.Selected() {
			continue
		}
		submission = append(submission, library.SubmittedChapter{Timestamp: c.Timestamp, Title: c.CurrentTitle})
	}
	sup.mu.Unlock()

	if err := sup.cfg.Library.Submit(ctx, itemID, submission); err != nil {
		return sup.fail(ctx, err)
	}

	sup.mu.Lock()
	defer sup.mu.Unlock()
	sup.transition(ctx, Completed, nil)
	return nil
}

// ExportCSV renders the selected chapters as CSV.
func (sup *Supervisor) ExportCSV() (string, error) {
	return export.CSV(sup.exportableChapters())
}

// ExportJSON renders the selected chapters as JSON.
func (sup *Supervisor) ExportJSON(exportTimestamp time.Time) (string, error) {
	return export.JSON(sup.exportableChapters(), exportTimestamp.Format(time.RFC3339))
}

// ExportCUE renders the selected chapters as a CD-audio CUE sheet.
func (sup *Supervisor) ExportCUE() string {
	return export.CUESheet(sup.exportableChapters())
}

func (sup *Supervisor) exportableChapters() []export.Chapter {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	if sup.store == nil {
		return nil
	}
	var out []export.Chapter
	n := 1
	for _, c := range sup.store.Chapters() {
		if !c.Selected() {
			continue
		}
		out = append(out, export.Chapter{Number: n, Timestamp: c.Timestamp, Title: c.CurrentTitle})
		n++
	}
	return out
}
