package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirgibblets/achew-core/internal/chapterstore"
	"github.com/sirgibblets/achew-core/internal/events"
	"github.com/sirgibblets/achew-core/internal/library"
	"github.com/sirgibblets/achew-core/internal/mediaio"
	"github.com/sirgibblets/achew-core/internal/model"
	"github.com/sirgibblets/achew-core/internal/pipelineerr"
	"github.com/sirgibblets/achew-core/internal/segment"
)

type fakeEmitter struct {
	events []events.Event
}

func (f *fakeEmitter) Broadcast(ctx context.Context, ev events.Event) {
	f.events = append(f.events, ev)
}

func fixedNow() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

func newTestSupervisor() (*Supervisor, *fakeEmitter) {
	emitter := &fakeEmitter{}
	cfg := Config{
		Media:       mediaio.New(),
		Events:      emitter,
		SmartDetect: model.DefaultSmartDetectConfig(),
		Now:         fixedNow,
	}
	return NewSupervisor(cfg), emitter
}

func TestMergeSortedCuesDedupesAndSorts(t *testing.T) {
	t.Parallel()

	got := mergeSortedCues([]float64{0, 120, 600}, []float64{600, 300})
	want := []float64{0, 120, 300, 600}
	if !floatsEqual(got, want) {
		t.Errorf("mergeSortedCues = %v, want %v", got, want)
	}
}

func TestMergeSortedCuesNoExtra(t *testing.T) {
	t.Parallel()

	base := []float64{0, 10, 20}
	got := mergeSortedCues(base, nil)
	if !floatsEqual(got, base) {
		t.Errorf("mergeSortedCues with no extra = %v, want %v", got, base)
	}
}

func TestBuildCueSourcesIncludesEmbeddedAndFileStarts(t *testing.T) {
	t.Parallel()

	book := &library.Book{
		ID:       "abc",
		Duration: 200,
		Files: []model.AudioFile{
			{Ino: "1", Duration: 100},
			{Ino: "2", Duration: 100},
		},
		Chapters: []model.SimpleChapter{{Timestamp: 0, Title: "Ch 1"}},
	}
	sources := buildCueSources(book)

	var sawEmbedded, sawFileStarts bool
	for _, s := range sources {
		switch s.ID {
		case model.CueSourceEmbedded:
			sawEmbedded = true
			if len(s.Cues) != 1 {
				t.Errorf("embedded source cues = %v, want 1 entry", s.Cues)
			}
		case model.CueSourceFileStarts:
			sawFileStarts = true
			if len(s.Cues) != 2 || s.Cues[1].Timestamp != 100 {
				t.Errorf("file-starts source cues = %v, want [0, 100]", s.Cues)
			}
		}
	}
	if !sawEmbedded || !sawFileStarts {
		t.Errorf("buildCueSources missing expected sources: %+v", sources)
	}
}

func TestBuildCueSourcesNoEmbeddedWhenBookHasNoChapters(t *testing.T) {
	t.Parallel()

	book := &library.Book{Duration: 100, Files: []model.AudioFile{{Duration: 100}}}
	sources := buildCueSources(book)
	for _, s := range sources {
		if s.ID == model.CueSourceEmbedded {
			t.Errorf("buildCueSources included embedded source with no book chapters")
		}
	}
}

func TestAddOptionsComputesWindowAndCandidates(t *testing.T) {
	t.Parallel()

	sup, _ := newTestSupervisor()
	sup.book = &library.Book{Duration: 1000}
	sup.store = chapterstore.New(fixedNow)
	sup.spans = []model.SilenceSpan{{Start: 50, End: 55}, {Start: 500, End: 505}}
	sup.cueSources = []model.CueSource{
		{ID: model.CueSourceEmbedded, Cues: []model.SimpleChapter{{Timestamp: 60, Title: "other"}}},
	}

	c1 := chapterstore.NewChapter("a", 0, "First", fixedNow())
	c2 := chapterstore.NewChapter("b", 200, "Second", fixedNow())
	if err := sup.store.Do(&chapterstore.AddChapter{Chapter: c1}); err != nil {
		t.Fatalf("seed chapter a: %v", err)
	}
	if err := sup.store.Do(&chapterstore.AddChapter{Chapter: c2}); err != nil {
		t.Fatalf("seed chapter b: %v", err)
	}

	res, err := sup.AddOptions("a")
	if err != nil {
		t.Fatalf("AddOptions: %v", err)
	}
	if res.MinTimestamp != 0.25 {
		t.Errorf("MinTimestamp = %v, want 0.25", res.MinTimestamp)
	}
	if res.MaxTimestamp != 200-0.25 {
		t.Errorf("MaxTimestamp = %v, want %v", res.MaxTimestamp, 200-0.25)
	}
	if len(res.DetectedCues) != 1 || res.DetectedCues[0] != 55 {
		t.Errorf("DetectedCues = %v, want [55]", res.DetectedCues)
	}
	if len(res.OtherSourceCues) != 1 || res.OtherSourceCues[0] != 60 {
		t.Errorf("OtherSourceCues = %v, want [60]", res.OtherSourceCues)
	}
}

func TestAddOptionsUnknownAnchorIsInputError(t *testing.T) {
	t.Parallel()

	sup, _ := newTestSupervisor()
	sup.book = &library.Book{Duration: 1000}
	sup.store = chapterstore.New(fixedNow)

	if _, err := sup.AddOptions("nope"); err == nil {
		t.Errorf("AddOptions with unknown anchor: want error, got nil")
	}
}

func TestSelectAllAndDeselectAllSkipDeletedChapters(t *testing.T) {
	t.Parallel()

	sup, _ := newTestSupervisor()
	sup.store = chapterstore.New(fixedNow)

	live := chapterstore.NewChapter("a", 0, "Live", fixedNow())
	deleted := chapterstore.NewChapter("b", 10, "Gone", fixedNow())
	if err := sup.store.Do(&chapterstore.AddChapter{Chapter: live}); err != nil {
		t.Fatalf("seed live chapter: %v", err)
	}
	if err := sup.store.Do(&chapterstore.AddChapter{Chapter: deleted}); err != nil {
		t.Fatalf("seed deleted chapter: %v", err)
	}
	if err := sup.store.Do(&chapterstore.DeleteChapter{ChapterID: "b"}); err != nil {
		t.Fatalf("delete chapter b: %v", err)
	}

	if err := sup.DeselectAll(context.Background()); err != nil {
		t.Fatalf("DeselectAll: %v", err)
	}

	for _, c := range sup.store.Chapters() {
		if c.ID == "b" {
			continue // deleted chapters are untouched by bulk selection
		}
		if c.Selected() {
			t.Errorf("chapter %s still selected after DeselectAll", c.ID)
		}
	}

	if err := sup.SelectAll(context.Background()); err != nil {
		t.Fatalf("SelectAll: %v", err)
	}

	for _, c := range sup.store.Chapters() {
		if c.ID == "b" {
			if !c.Deleted {
				t.Errorf("deleted chapter b was restored by SelectAll")
			}
			continue
		}
		if !c.Selected() {
			t.Errorf("chapter %s not selected after SelectAll", c.ID)
		}
	}
}

func TestCancelMidTaskRewindsToNearestSettledNotIdle(t *testing.T) {
	t.Parallel()

	sup, _ := newTestSupervisor()
	sup.mu.Lock()
	sup.state = AudioAnalysis // mid-task state above SelectCueSource's settled level
	sup.mu.Unlock()

	started := make(chan struct{})
	taskDone := make(chan error, 1)
	go func() {
		taskDone <- sup.withTask(context.Background(), func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return fmt.Errorf("%w: scanner aborted", pipelineerr.ErrTransient)
		})
	}()

	<-started
	sup.Cancel()
	taskErr := <-taskDone
	if taskErr == nil {
		t.Fatalf("withTask: expected an error after Cancel")
	}

	if err := sup.fail(context.Background(), taskErr); err == nil {
		t.Fatalf("fail: expected the wrapped error back")
	}

	if got, want := sup.State(), SelectCueSource; got != want {
		t.Errorf("state after cancel+fail = %s, want %s (nearest settled, not idle)", got, want)
	}
}

func TestRestartAtStepRewindsStateAndDiscardsArtifacts(t *testing.T) {
	t.Parallel()

	sup, emitter := newTestSupervisor()
	sup.mu.Lock()
	sup.state = ChapterEditing
	sup.cueSets = model.CueSet{2: {0, 100}}
	sup.spans = []model.SilenceSpan{{Start: 10, End: 12}}
	sup.selectedCues = []float64{0, 100}
	sup.segments = []segment.Segment{{Index: 0, Path: "/tmp/achew-test-missing-0.wav"}}
	sup.transcribeOn = true
	sup.asrBackendID = "sherpa"
	sup.store = chapterstore.New(fixedNow)
	sup.mu.Unlock()

	if err := sup.RestartAtStep(context.Background(), CueSetSelection); err != nil {
		t.Fatalf("RestartAtStep: %v", err)
	}

	if got, want := sup.State(), CueSetSelection; got != want {
		t.Errorf("state after RestartAtStep = %s, want %s", got, want)
	}

	sup.mu.Lock()
	if sup.segments != nil {
		t.Errorf("segments not discarded: %v", sup.segments)
	}
	if sup.selectedCues != nil {
		t.Errorf("selectedCues not discarded: %v", sup.selectedCues)
	}
	if sup.transcribeOn {
		t.Errorf("transcribeOn not cleared")
	}
	if sup.asrBackendID != "" {
		t.Errorf("asrBackendID not cleared: %q", sup.asrBackendID)
	}
	if sup.store != nil {
		t.Errorf("chapter store not discarded")
	}
	if sup.cueSets == nil {
		t.Errorf("cueSets should survive a rewind to CueSetSelection")
	}
	sup.mu.Unlock()

	var sawStepChange bool
	for _, ev := range emitter.events {
		if ev.Kind == events.KindStepChange {
			sawStepChange = true
		}
	}
	if !sawStepChange {
		t.Errorf("expected a step_change event from RestartAtStep")
	}
}

func floatsEqual(a, b []float64) bool {
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
