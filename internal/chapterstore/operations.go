package chapterstore

// Operation is a reversible edit against a Store.
type Operation interface {
	Apply(s *Store) error
	Undo(s *Store)
}

// AddChapter inserts Chapter before the first existing chapter with a
// greater timestamp; undo removes it by id.
type AddChapter struct {
	Chapter *Chapter
}

func (op *AddChapter) Apply(s *Store) error {
	s.insertSorted(op.Chapter)
	return nil
}

func (op *AddChapter) Undo(s *Store) {
	s.removeByID(op.Chapter.ID)
}

// DeleteChapter sets deleted = true; undo clears it.
type DeleteChapter struct {
	ChapterID string
}

func (op *DeleteChapter) Apply(s *Store) error {
	c, err := s.find(op.ChapterID)
	if err != nil {
		return err
	}
	c.Deleted = true
	s.touch(c)
	return nil
}

func (op *DeleteChapter) Undo(s *Store) {
	c, err := s.find(op.ChapterID)
	if err != nil {
		return
	}
	c.Deleted = false
	s.touch(c)
}

// RestoreChapter clears deleted and sets selected = true; if NewTitle is
// non-nil it also swaps the title, capturing the prior title for undo.
type RestoreChapter struct {
	ChapterID string
	NewTitle  *string

	oldTitle string
}

func (op *RestoreChapter) Apply(s *Store) error {
	c, err := s.find(op.ChapterID)
	if err != nil {
		return err
	}
	c.SetSelected(true)
	c.Deleted = false
	if op.NewTitle != nil {
		op.oldTitle = c.CurrentTitle
		c.CurrentTitle = *op.NewTitle
	}
	s.touch(c)
	return nil
}

func (op *RestoreChapter) Undo(s *Store) {
	c, err := s.find(op.ChapterID)
	if err != nil {
		return
	}
	if op.NewTitle != nil {
		c.CurrentTitle = op.oldTitle
	}
	c.Deleted = true
	s.touch(c)
}

// EditTitle captures the old title at apply time; undo writes it back.
type EditTitle struct {
	ChapterID string
	NewTitle  string

	oldTitle string
}

func (op *EditTitle) Apply(s *Store) error {
	c, err := s.find(op.ChapterID)
	if err != nil {
		return err
	}
	op.oldTitle = c.CurrentTitle
	c.CurrentTitle = op.NewTitle
	s.touch(c)
	return nil
}

func (op *EditTitle) Undo(s *Store) {
	c, err := s.find(op.ChapterID)
	if err != nil {
		return
	}
	c.CurrentTitle = op.oldTitle
	s.touch(c)
}

// AICleanup behaves like EditTitle but also sets Selected; undo restores
// both the title and the selection flag captured at apply time.
type AICleanup struct {
	ChapterID string
	OldTitle  string
	NewTitle  string
	Selected  bool

	oldSelected bool
}

func (op *AICleanup) Apply(s *Store) error {
	c, err := s.find(op.ChapterID)
	if err != nil {
		return err
	}
	op.oldSelected = c.selected
	c.CurrentTitle = op.NewTitle
	c.SetSelected(op.Selected)
	s.touch(c)
	return nil
}

func (op *AICleanup) Undo(s *Store) {
	c, err := s.find(op.ChapterID)
	if err != nil {
		return
	}
	c.CurrentTitle = op.OldTitle
	c.SetSelected(op.oldSelected)
	s.touch(c)
}

// Batch applies its operations in order; undo runs them in reverse.
type Batch struct {
	Operations []Operation
}

func (op *Batch) Apply(s *Store) error {
	for i, sub := range op.Operations {
		if err := sub.Apply(s); err != nil {
			// Roll back everything already applied in this batch so a
			// partial failure never leaves the store half-mutated.
			for j := i - 1; j >= 0; j-- {
				op.Operations[j].Undo(s)
			}
			return err
		}
	}
	return nil
}

func (op *Batch) Undo(s *Store) {
	for i := len(op.Operations) - 1; i >= 0; i-- {
		op.Operations[i].Undo(s)
	}
}
