package chapterstore

import (
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func newTestStore(t *testing.T) (*Store, []*Chapter) {
	t.Helper()
	s := New(fixedNow)
	chs := []*Chapter{
		NewChapter("1", 0, "ch 1", fixedNow()),
		NewChapter("2", 100, "ch 2", fixedNow()),
		NewChapter("3", 200, "ch 3", fixedNow()),
	}
	for _, c := range chs {
		s.insertSorted(c)
	}
	return s, chs
}

func TestAddChapterInsertsSortedAndUndoRemoves(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	newCh := NewChapter("new", 150, "inserted", fixedNow())
	if err := s.Do(&AddChapter{Chapter: newCh}); err != nil {
		t.Fatalf("Do: %v", err)
	}

	ids := idsInOrder(s)
	want := []string{"1", "2", "new", "3"}
	if !equalStrings(ids, want) {
		t.Fatalf("order = %v, want %v", ids, want)
	}

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	ids = idsInOrder(s)
	want = []string{"1", "2", "3"}
	if !equalStrings(ids, want) {
		t.Fatalf("order after undo = %v, want %v", ids, want)
	}
}

func TestDeleteAndUndo(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	if err := s.Do(&DeleteChapter{ChapterID: "2"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !s.chapters["2"].Deleted {
		t.Fatalf("chapter 2 should be deleted")
	}
	if err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if s.chapters["2"].Deleted {
		t.Fatalf("chapter 2 should not be deleted after undo")
	}
}

func TestAICleanupUndoRestoresTitleAndSelection(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	op := &AICleanup{ChapterID: "2", OldTitle: "ch 2", NewTitle: "", Selected: false}
	if err := s.Do(op); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if s.chapters["2"].CurrentTitle != "" {
		t.Errorf("title = %q, want empty", s.chapters["2"].CurrentTitle)
	}
	if s.chapters["2"].Selected() {
		t.Errorf("chapter 2 should be deselected")
	}
	if s.chapters["1"].CurrentTitle != "ch 1" || s.chapters["3"].CurrentTitle != "ch 3" {
		t.Errorf("other chapters should be untouched")
	}

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if s.chapters["2"].CurrentTitle != "ch 2" {
		t.Errorf("title after undo = %q, want ch 2", s.chapters["2"].CurrentTitle)
	}
	if !s.chapters["2"].Selected() {
		t.Errorf("chapter 2 should be reselected after undo")
	}
}

func TestRedoReappliesOperation(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	if err := s.Do(&EditTitle{ChapterID: "1", NewTitle: "renamed"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if s.chapters["1"].CurrentTitle != "ch 1" {
		t.Fatalf("title after undo = %q, want ch 1", s.chapters["1"].CurrentTitle)
	}
	if err := s.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if s.chapters["1"].CurrentTitle != "renamed" {
		t.Fatalf("title after redo = %q, want renamed", s.chapters["1"].CurrentTitle)
	}
}

func TestAppendAfterUndoTruncatesRedoTail(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	_ = s.Do(&EditTitle{ChapterID: "1", NewTitle: "a"})
	_ = s.Undo()
	_ = s.Do(&EditTitle{ChapterID: "1", NewTitle: "b"})

	if s.CanRedo() {
		t.Fatalf("should have no redo tail after a fresh append")
	}
	if s.chapters["1"].CurrentTitle != "b" {
		t.Fatalf("title = %q, want b", s.chapters["1"].CurrentTitle)
	}
}

func TestBatchAppliesInOrderUndoesInReverse(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	batch := &Batch{Operations: []Operation{
		&EditTitle{ChapterID: "1", NewTitle: "x"},
		&DeleteChapter{ChapterID: "2"},
	}}
	if err := s.Do(batch); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if s.chapters["1"].CurrentTitle != "x" || !s.chapters["2"].Deleted {
		t.Fatalf("batch did not apply both operations")
	}

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if s.chapters["1"].CurrentTitle != "ch 1" || s.chapters["2"].Deleted {
		t.Fatalf("batch undo did not revert both operations")
	}
}

func TestStatsExcludeDeletedFromTotalAndSelected(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	_ = s.Do(&DeleteChapter{ChapterID: "2"})
	_ = s.Do(&AICleanup{ChapterID: "3", OldTitle: "ch 3", NewTitle: "ch 3", Selected: false})

	stats := s.StatsNow()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.Selected != 1 {
		t.Errorf("Selected = %d, want 1", stats.Selected)
	}
	if stats.Unselected != 1 {
		t.Errorf("Unselected = %d, want 1", stats.Unselected)
	}
}

func idsInOrder(s *Store) []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
