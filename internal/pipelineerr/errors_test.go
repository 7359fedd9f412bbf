package pipelineerr_test

// Coverage Notes:
// - Tests verify sentinel error identity with errors.Is.
// - Tests verify wrapping behavior with fmt.Errorf("%s: %w", ...).
// - All sentinels are covered: ErrInput, ErrTransient, ErrInvariant, ErrCancelled.

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirgibblets/achew-core/internal/pipelineerr"
)

func TestSentinelErrorIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sentinel error
	}{
		{"ErrInput", pipelineerr.ErrInput},
		{"ErrTransient", pipelineerr.ErrTransient},
		{"ErrInvariant", pipelineerr.ErrInvariant},
		{"ErrCancelled", pipelineerr.ErrCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tt.sentinel, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.sentinel, tt.sentinel)
			}
		})
	}
}

func TestSentinelErrorWrapping(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("bad timestamp: %w", pipelineerr.ErrInput)
	if !errors.Is(wrapped, pipelineerr.ErrInput) {
		t.Errorf("errors.Is(wrapped, ErrInput) = false, want true")
	}
	if errors.Is(wrapped, pipelineerr.ErrTransient) {
		t.Errorf("errors.Is(wrapped, ErrTransient) = true, want false")
	}
}
