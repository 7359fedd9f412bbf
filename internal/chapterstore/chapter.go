// Package chapterstore implements a reversible-operation log over a
// live chapter list, addressed by stable id, with on-demand selection
// statistics. Each edit (add, delete, restore, title edit, AI clean-up,
// batch) is a tagged-variant Operation with its own apply/undo pair.
package chapterstore

import "time"

// RealignmentData records the pre-alignment guess for a chapter whose
// timestamp was later adjusted by ChapterAligner.
type RealignmentData struct {
	OriginalTimestamp float64
	Confidence        float64
	IsGuess           bool
}

// Chapter is one entry in the live chapter list. selected is unexported:
// callers observe the combined Selected() predicate, matching the
// original model's computed `selected = _selected and not deleted`.
type Chapter struct {
	ID               string
	Timestamp        float64
	ASRTitle         string
	CurrentTitle     string
	Deleted          bool
	AudioSegmentPath string
	CreatedAt        time.Time
	ModifiedAt       time.Time
	Realignment      *RealignmentData

	selected bool
}

// NewChapter returns a selected, non-deleted chapter minted 1-for-1
// from an ASR segment.
func NewChapter(id string, timestamp float64, title string, now time.Time) *Chapter {
	return &Chapter{
		ID:           id,
		Timestamp:    timestamp,
		ASRTitle:     title,
		CurrentTitle: title,
		selected:     true,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
}

// Selected reports the caller-visible selection state: selected and not
// deleted.
func (c *Chapter) Selected() bool {
	return c.selected && !c.Deleted
}

// SetSelected sets the underlying selection flag (independent of Deleted).
func (c *Chapter) SetSelected(v bool) {
	c.selected = v
}

// Clone returns a deep-enough copy safe to hand to a caller without
// risking mutation of the store's internal state.
func (c *Chapter) Clone() *Chapter {
	cp := *c
	if c.Realignment != nil {
		r := *c.Realignment
		cp.Realignment = &r
	}
	return &cp
}
