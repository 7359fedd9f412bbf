package align

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestAlignIdentity(t *testing.T) {
	t.Parallel()

	source := []SourceChapter{{Time: 0, Title: "A"}, {Time: 600, Title: "B"}}
	cues := []DetectedCue{{Time: 0, Silence: 3}, {Time: 600, Silence: 3}}

	got := Align(source, cues, 1200, 1200)
	if len(got) != 2 {
		t.Fatalf("got %d chapters, want 2", len(got))
	}
	for i, want := range []float64{0, 600} {
		if got[i].IsGuess {
			t.Errorf("chapter %d: is_guess = true, want false", i)
		}
		if !approxEqual(got[i].Timestamp, want, 0.01) {
			t.Errorf("chapter %d: timestamp = %v, want %v", i, got[i].Timestamp, want)
		}
		if got[i].Confidence < 0.9 {
			t.Errorf("chapter %d: confidence = %v, want >= 0.9", i, got[i].Confidence)
		}
	}
}

func TestAlignDilation(t *testing.T) {
	t.Parallel()

	source := []SourceChapter{{Time: 0, Title: "A"}, {Time: 600, Title: "B"}}
	cues := []DetectedCue{{Time: 0, Silence: 3}, {Time: 660, Silence: 3}}

	got := Align(source, cues, 1200, 1320)
	if len(got) != 2 {
		t.Fatalf("got %d chapters, want 2", len(got))
	}
	if got[1].IsGuess {
		t.Fatalf("chapter B: is_guess = true, want matched to cue at 660")
	}
	if !approxEqual(got[1].Timestamp, 660, 0.01) {
		t.Errorf("chapter B timestamp = %v, want ~660", got[1].Timestamp)
	}
}

func TestAlignEmptyCuesFallback(t *testing.T) {
	t.Parallel()

	source := []SourceChapter{{Time: 0, Title: "A"}, {Time: 300, Title: "B"}}
	got := Align(source, nil, 1000, 1000)

	for i, c := range got {
		if !c.IsGuess {
			t.Errorf("chapter %d: is_guess = false, want true (empty cues)", i)
		}
		if c.Confidence != 0.2 {
			t.Errorf("chapter %d: confidence = %v, want 0.2", i, c.Confidence)
		}
	}
	if got[1].Timestamp != 300 {
		t.Errorf("chapter B timestamp = %v, want 300", got[1].Timestamp)
	}
}

func TestMatchCostWithinDrift(t *testing.T) {
	t.Parallel()
	c := matchCost(100, 101, 3)
	want := math.Pow(1.0/2, 1.5) - math.Min(7.5*3, 25)
	if !approxEqual(c, want, 1e-9) {
		t.Errorf("matchCost = %v, want %v", c, want)
	}
}

func TestMatchCostBeyondDriftPenalized(t *testing.T) {
	t.Parallel()
	near := matchCost(100, 200, 0)
	far := matchCost(100, 400, 0)
	if far-near < driftPenalty/2 {
		t.Errorf("expected a large jump beyond max_drift: near=%v far=%v", near, far)
	}
}

func TestMatchDPPrefersCloseCue(t *testing.T) {
	t.Parallel()
	expected := []float64{100}
	cues := []DetectedCue{{Time: 50, Silence: 0}, {Time: 101, Silence: 3}}
	got := matchDP(expected, cues)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("matchDP = %v, want [1]", got)
	}
}

func TestMatchDPNoMatchWhenNothingClose(t *testing.T) {
	t.Parallel()
	expected := []float64{1000}
	cues := []DetectedCue{{Time: 0, Silence: 3}}
	got := matchDP(expected, cues)
	if len(got) != 1 || got[0] != -1 {
		t.Errorf("matchDP = %v, want [-1]", got)
	}
}
