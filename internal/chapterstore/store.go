package chapterstore

import (
	"fmt"
	"time"
)

// Stats are the on-demand selection statistics, excluding deleted
// chapters from both total and selected.
type Stats struct {
	Total      int
	Selected   int
	Unselected int
}

// Store is the live chapter list plus its reversible-operation history.
// Chapters are looked up by id via a map, so ids survive re-sorting the
// display order.
type Store struct {
	chapters map[string]*Chapter
	order    []string // ids, kept sorted by Chapter.Timestamp
	history  *History
	now      func() time.Time
}

// New returns an empty store. now is injectable for deterministic tests;
// pass time.Now in production.
func New(now func() time.Time) *Store {
	return &Store{
		chapters: make(map[string]*Chapter),
		history:  newHistory(),
		now:      now,
	}
}

// Do applies op, records it in history (truncating any redo tail), and
// returns any error from the apply step. A failed apply is not recorded.
func (s *Store) Do(op Operation) error {
	if err := op.Apply(s); err != nil {
		return err
	}
	s.history.push(op)
	return nil
}

// Undo reverts the most recently applied (and not-yet-undone) operation.
func (s *Store) Undo() error {
	op, ok := s.history.current()
	if !ok {
		return fmt.Errorf("chapterstore: nothing to undo")
	}
	op.Undo(s)
	s.history.stepBack()
	return nil
}

// Redo re-applies the next operation in the redo tail.
func (s *Store) Redo() error {
	op, ok := s.history.next()
	if !ok {
		return fmt.Errorf("chapterstore: nothing to redo")
	}
	if err := op.Apply(s); err != nil {
		return err
	}
	s.history.stepForward()
	return nil
}

// CanUndo reports whether Undo would succeed.
func (s *Store) CanUndo() bool { return s.history.canUndo() }

// CanRedo reports whether Redo would succeed.
func (s *Store) CanRedo() bool { return s.history.canRedo() }

// find returns the chapter with the given id, or an error if absent.
func (s *Store) find(id string) (*Chapter, error) {
	c, ok := s.chapters[id]
	if !ok {
		return nil, fmt.Errorf("chapterstore: chapter with id %q not found", id)
	}
	return c, nil
}

// insertSorted inserts c before the first existing chapter with a
// strictly greater timestamp.
func (s *Store) insertSorted(c *Chapter) {
	s.chapters[c.ID] = c

	idx := len(s.order)
	for i, id := range s.order {
		if s.chapters[id].Timestamp > c.Timestamp {
			idx = i
			break
		}
	}
	s.order = append(s.order, "")
	copy(s.order[idx+1:], s.order[idx:])
	s.order[idx] = c.ID
}

// removeByID deletes a chapter outright (used only by AddChapter's
// undo — deletion as a user operation is DeleteChapter's soft-delete
// flag, never a removal from the store).
func (s *Store) removeByID(id string) {
	delete(s.chapters, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Chapters returns the live chapter list in timestamp order. Callers get
// clones; mutate only through Operations.
func (s *Store) Chapters() []*Chapter {
	out := make([]*Chapter, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.chapters[id].Clone())
	}
	return out
}

// StatsNow computes selection statistics over the live list.
func (s *Store) StatsNow() Stats {
	var st Stats
	for _, id := range s.order {
		c := s.chapters[id]
		if c.Deleted {
			continue
		}
		st.Total++
		if c.Selected() {
			st.Selected++
		}
	}
	st.Unselected = st.Total - st.Selected
	return st
}

// touch stamps ModifiedAt on a chapter mutation.
func (s *Store) touch(c *Chapter) {
	c.ModifiedAt = s.now()
}
