package cluster

import (
	"reflect"
	"testing"
)

func TestArgsortDescending(t *testing.T) {
	t.Parallel()
	got := argsortDescending([]float64{1, 5, 3, 5, 0})
	want := []int{1, 3, 2, 0, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("argsortDescending = %v, want %v", got, want)
	}
}

func TestAssignToNearest(t *testing.T) {
	t.Parallel()
	durations := []float64{1, 2, 9, 10, 11}
	centroids := []float64{1.5, 10}
	got := assignToNearest(durations, centroids)
	want := []int{0, 0, 1, 1, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("assignToNearest = %v, want %v", got, want)
	}
}

func TestSumSquaredError(t *testing.T) {
	t.Parallel()
	durations := []float64{1, 3}
	centroids := []float64{2}
	assignment := []int{0, 0}
	got := sumSquaredError(durations, centroids, assignment)
	want := 2.0 // (1-2)^2 + (3-2)^2
	if got != want {
		t.Errorf("sumSquaredError = %v, want %v", got, want)
	}
}
