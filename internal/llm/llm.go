// Package llm implements the AI clean-up pass over a chapter list: given
// a chapter list and a CleanupOptions record, each registered Provider
// produces a new title or nil per chapter (nil meaning "not a real
// chapter" -> deselect). Each provider is a thin wrapper around a single
// third-party client.
package llm

import "context"

// ChapterInput is one chapter offered to a Provider for cleanup.
type ChapterInput struct {
	ID    string
	Title string
}

// ChapterResult is a provider's verdict for one chapter. NewTitle == nil
// means the provider judged this not a real chapter; the caller
// deselects it.
type ChapterResult struct {
	ID       string
	NewTitle *string
}

// CleanupOptions is the AI clean-up preferences record, including
// AssumeAllValid and PreferredTitlesSource.
type CleanupOptions struct {
	InferOpeningCredits    bool
	InferEndCredits        bool
	DeselectNonChapters    bool
	KeepDeselectedTitles   bool
	UsePreferredTitles     bool
	PreferredTitlesSource  string
	AdditionalInstructions string
	ProviderID             string
	ModelID                string
	AssumeAllValid         bool

	// PreferredTitles, when UsePreferredTitles is set, maps chapter id
	// to the title from PreferredTitlesSource's cue list. Cleanup uses
	// the map as given; internal/pipeline does not call Cleanup.
	PreferredTitles map[string]string
}

// Provider is the narrow trait every LLM backend implements.
type Provider interface {
	Cleanup(ctx context.Context, chapters []ChapterInput, opts CleanupOptions) ([]ChapterResult, error)
}

// Registry holds the configured providers, keyed by id.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces the provider under id.
func (r *Registry) Register(id string, p Provider) {
	r.providers[id] = p
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}
