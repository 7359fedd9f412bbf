package vad

import (
	"reflect"
	"testing"

	"github.com/sirgibblets/achew-core/internal/model"
)

func TestWorkerCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		cores int
		want  int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
		{6, 4},
		{12, 8},
		{0, 1},
	}
	for _, tt := range tests {
		if got := WorkerCount(tt.cores); got != tt.want {
			t.Errorf("WorkerCount(%d) = %d, want %d", tt.cores, got, tt.want)
		}
	}
}

func TestPartitionChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n, w int
		want []ChunkRange
	}{
		{"even split", 10, 2, []ChunkRange{{0, 5}, {5, 10}}},
		{"remainder spread to early workers", 10, 3, []ChunkRange{{0, 4}, {4, 7}, {7, 10}}},
		{"more workers than chunks", 2, 5, []ChunkRange{{0, 1}, {1, 2}}},
		{"zero chunks", 0, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PartitionChunks(tt.n, tt.w)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PartitionChunks(%d, %d) = %v, want %v", tt.n, tt.w, got, tt.want)
			}
		})
	}
}

func TestMergeGaps(t *testing.T) {
	t.Parallel()

	gaps := []model.SilenceSpan{
		{Start: 10, End: 12},
		{Start: 12.5, End: 14}, // within 1.0s of prior end -> coalesces
		{Start: 20, End: 20.2}, // too short after merge -> dropped
		{Start: 0, End: 1.5},   // shorter than min duration alone
	}
	got := MergeGaps(gaps, 2.0)
	want := []model.SilenceSpan{{Start: 10, End: 14}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeGaps = %v, want %v", got, want)
	}
}

func TestMergeGapsEmpty(t *testing.T) {
	t.Parallel()
	if got := MergeGaps(nil, 1.0); got != nil {
		t.Errorf("MergeGaps(nil) = %v, want nil", got)
	}
}
