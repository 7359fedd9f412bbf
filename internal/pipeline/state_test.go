package pipeline

import "testing"

func TestStateString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{SelectCueSource, "select_cue_source"},
		{ChapterEditing, "chapter_editing"},
		{Completed, "completed"},
		{State(999), "unknown"},
	}
	for _, c := range cases {
		if got := c.state.String(); got != c.want {
			t.Errorf("State(%d).String() = %q, want %q", c.state, got, c.want)
		}
	}
}

func TestNearestSettledOrdering(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state State
		want  State
	}{
		{Idle, Idle},
		{Validating, Idle},
		{Downloading, Idle},
		{FilePrep, Idle},
		{SelectCueSource, SelectCueSource},
		{AudioAnalysis, SelectCueSource},
		{VadAnalysis, SelectCueSource},
		{CueSetSelection, CueSetSelection},
		{ConfigureASR, ConfigureASR},
		{Trimming, ConfigureASR},
		{AsrProcessing, ConfigureASR},
		{ChapterEditing, ChapterEditing},
		{Reviewing, ChapterEditing},
		{Completed, ChapterEditing},
	}
	for _, c := range cases {
		if got := NearestSettled(c.state); got != c.want {
			t.Errorf("NearestSettled(%s) = %s, want %s", c.state, got, c.want)
		}
	}
}

func TestSettledLevelMonotonicWithPolicyOrder(t *testing.T) {
	t.Parallel()

	// IDLE < SELECT_CUE_SOURCE < CUE_SET_SELECTION < CONFIGURE_ASR < CHAPTER_EDITING
	order := []State{Idle, SelectCueSource, CueSetSelection, ConfigureASR, ChapterEditing}
	for i := 1; i < len(order); i++ {
		if settledLevel(order[i-1]) >= settledLevel(order[i]) {
			t.Errorf("settledLevel(%s) = %d, want strictly less than settledLevel(%s) = %d",
				order[i-1], settledLevel(order[i-1]), order[i], settledLevel(order[i]))
		}
	}
}
