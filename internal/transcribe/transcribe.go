// Package transcribe provides a pluggable ASR backend registry plus a
// batch transcription helper: transcribe([paths]) -> [strings], where a
// per-file failure yields the sentinel "[Transcription Error]" instead
// of aborting the whole batch.
package transcribe

import (
	"context"
	"fmt"

	"github.com/sirgibblets/achew-core/internal/logging"
)

// TranscriptionError is the sentinel literal substituted for a segment
// whose ASR call failed.
const TranscriptionError = "[Transcription Error]"

// Backend is the narrow operation trait every ASR provider implements.
type Backend interface {
	// Transcribe returns the literal recognizer output for audioPath.
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ModelVariant names one selectable model within a backend (e.g. a
// language or size variant of the same engine).
type ModelVariant struct {
	ID   string
	Name string
}

// Info is the metadata a backend exposes at registration time: display
// name, capabilities, and the selectable model variants within it.
type Info struct {
	ServiceID         string
	Name              string
	Desc              string
	UsesGPU           bool
	SupportsBiasWords bool
	Variants          []ModelVariant
	Priority          int // higher registers as the default; ties are a registration error
}

// Registry holds the set of available ASR backends, keyed by id.
type Registry struct {
	backends map[string]Backend
	infos    map[string]Info
	order    []string // registration order, for deterministic iteration
}

// NewRegistry returns an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
		infos:    make(map[string]Info),
	}
}

// Register adds a backend under info.ServiceID. It returns an error if
// another already-registered backend declares the same Priority, since
// Default()'s tie-break would otherwise be ambiguous.
func (r *Registry) Register(info Info, backend Backend) error {
	for id, existing := range r.infos {
		if id != info.ServiceID && existing.Priority == info.Priority {
			return fmt.Errorf("transcribe: priority %d already claimed by %q", info.Priority, id)
		}
	}
	if _, exists := r.backends[info.ServiceID]; !exists {
		r.order = append(r.order, info.ServiceID)
	}
	r.backends[info.ServiceID] = backend
	r.infos[info.ServiceID] = info
	return nil
}

// Get returns the backend registered under id.
func (r *Registry) Get(id string) (Backend, Info, bool) {
	b, ok := r.backends[id]
	if !ok {
		return nil, Info{}, false
	}
	return b, r.infos[id], true
}

// Default returns the highest-priority registered backend, ties broken
// by registration order (Register rejects true priority ties).
func (r *Registry) Default() (Backend, Info, bool) {
	var bestID string
	bestPriority := -1 << 31
	for _, id := range r.order {
		info := r.infos[id]
		if info.Priority > bestPriority {
			bestPriority = info.Priority
			bestID = id
		}
	}
	if bestID == "" {
		return nil, Info{}, false
	}
	return r.backends[bestID], r.infos[bestID], true
}

// TranscribeBatch runs backend over every path, substituting
// TranscriptionError for any path that fails rather than aborting the
// batch.
func TranscribeBatch(ctx context.Context, backend Backend, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		text, err := backend.Transcribe(ctx, p)
		if err != nil {
			logging.Warnf(ctx, "transcription failed for %s: %v", p, err)
			out[i] = TranscriptionError
			continue
		}
		out[i] = text
	}
	return out
}
