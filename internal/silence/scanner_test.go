package silence

import (
	"testing"

	"github.com/sirgibblets/achew-core/internal/model"
)

func TestFramesToSilenceSpans(t *testing.T) {
	t.Parallel()

	cfg := Config{Threshold: 0.5, MinSilenceDuration: 0.3, FrameSize: 100, SampleRate: 1000}
	// frameDuration = 0.1s, minSilenceFrames = 3

	tests := []struct {
		name  string
		rms   []float64
		want  []model.SilenceSpan
	}{
		{
			name: "no silence",
			rms:  []float64{0.9, 0.9, 0.9},
			want: nil,
		},
		{
			name: "short silence below floor is dropped",
			rms:  []float64{0.9, 0.1, 0.1, 0.9},
			want: nil,
		},
		{
			name: "silence run meets floor",
			rms:  []float64{0.9, 0.1, 0.1, 0.1, 0.9},
			want: []model.SilenceSpan{{Start: 0.1, End: 0.4}},
		},
		{
			name: "trailing silence to end of stream",
			rms:  []float64{0.9, 0.1, 0.1, 0.1},
			want: []model.SilenceSpan{{Start: 0.1, End: 0.4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := framesToSilenceSpans(tt.rms, cfg)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v spans, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("span %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestClampToDuration(t *testing.T) {
	t.Parallel()

	spans := []model.SilenceSpan{{Start: -1, End: 5}, {Start: 10, End: 20}}
	got := clampToDuration(spans, 12)

	if len(got) != 2 {
		t.Fatalf("got %d spans, want 2", len(got))
	}
	if got[0].Start != 0 || got[0].End != 5 {
		t.Errorf("span 0 = %v, want clamped start 0", got[0])
	}
	if got[1].Start != 10 || got[1].End != 12 {
		t.Errorf("span 1 = %v, want clamped end 12", got[1])
	}
}
