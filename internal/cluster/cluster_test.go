package cluster

import (
	"reflect"
	"testing"

	"github.com/sirgibblets/achew-core/internal/model"
)

func TestCandidateCuesDedup(t *testing.T) {
	t.Parallel()

	spans := []model.SilenceSpan{
		{Start: 0, End: 10},  // cluster 0
		{Start: 20, End: 30}, // cluster 0, 20s after the prior candidate after buffer
		{Start: 100, End: 110},
	}
	assignment := []int{0, 0, 1}
	selected := map[int]bool{0: true}

	got := candidateCues(spans, assignment, selected, 1.0, 15.0)
	// candidates: 9, 29 -> 29-9=20 >= minClipLength(15) so both kept
	want := []float64{9, 29}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidateCues = %v, want %v", got, want)
	}
}

func TestCandidateCuesDedupKeepsEarlier(t *testing.T) {
	t.Parallel()

	spans := []model.SilenceSpan{
		{Start: 0, End: 10},
		{Start: 0, End: 12}, // candidate 11, within 15 of candidate 9 -> dropped
	}
	assignment := []int{0, 0}
	selected := map[int]bool{0: true}

	got := candidateCues(spans, assignment, selected, 1.0, 15.0)
	want := []float64{9}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidateCues = %v, want %v", got, want)
	}
}

func TestSnapOrPrependSnapsWhenClose(t *testing.T) {
	t.Parallel()
	got := snapOrPrepend([]float64{5}, 8.0, 1.0)
	want := []float64{0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSnapOrPrependPrependsWhenFar(t *testing.T) {
	t.Parallel()
	got := snapOrPrepend([]float64{50}, 8.0, 1.0)
	want := []float64{0, 50}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSnapOrPrependEmpty(t *testing.T) {
	t.Parallel()
	got := snapOrPrepend(nil, 8.0, 1.0)
	want := []float64{0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDropTrailingNearEnd(t *testing.T) {
	t.Parallel()
	got := dropTrailingNearEnd([]float64{0, 100, 195}, 200, 8.0)
	want := []float64{0, 100}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDropTrailingNearEndKeepsFarCue(t *testing.T) {
	t.Parallel()
	got := dropTrailingNearEnd([]float64{0, 100}, 200, 8.0)
	want := []float64{0, 100}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPostFilterRunLengths(t *testing.T) {
	t.Parallel()

	raw := model.CueSet{
		3: {1, 2, 3},
		4: {1, 2, 3, 4},
		5: {1, 2, 3, 4, 5},
		8: {1},
		9: {2},
	}
	got := postFilter(raw)

	// run {3,4,5}: keep first (3) and last (5); run {8,9}: keep larger (9)
	want := model.CueSet{
		3: {1, 2, 3},
		5: {1, 2, 3, 4, 5},
		9: {2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("postFilter = %v, want %v", got, want)
	}
}

func TestPostFilterSingleton(t *testing.T) {
	t.Parallel()
	raw := model.CueSet{7: {1, 2}}
	got := postFilter(raw)
	if !reflect.DeepEqual(got, raw) {
		t.Errorf("postFilter = %v, want %v", got, raw)
	}
}

func TestClusterTooFewSpans(t *testing.T) {
	t.Parallel()
	got, err := Cluster([]model.SilenceSpan{{Start: 0, End: 1}}, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty set", got)
	}
}
