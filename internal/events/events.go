// Package events pushes step_change, progress_update, chapter_update,
// history_update, and error events to the UI layer over a websocket
// fan-out hub built on coder/websocket and wsjson.
package events

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Kind identifies an outbound event's shape.
type Kind string

const (
	KindStepChange      Kind = "step_change"
	KindProgressUpdate  Kind = "progress_update"
	KindChapterUpdate   Kind = "chapter_update"
	KindHistoryUpdate   Kind = "history_update"
	KindError           Kind = "error"
)

// Event is the envelope broadcast to every connected client.
type Event struct {
	Kind Kind `json:"kind"`
	Data any  `json:"data"`
}

// StepChange is emitted before any progress event for the new step.
type StepChange struct {
	Old    string         `json:"old"`
	New    string         `json:"new"`
	Extras map[string]any `json:"extras,omitempty"`
}

// ProgressUpdate reports monotonic (step, percent) progress within a
// step.
type ProgressUpdate struct {
	Step    string  `json:"step"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
	Details any     `json:"details,omitempty"`
}

// ChapterUpdate carries a consistent ChapterStore snapshot.
type ChapterUpdate struct {
	Chapters any `json:"chapters"`
}

// HistoryUpdate reports undo/redo availability.
type HistoryUpdate struct {
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

// ErrorEvent reports a caller-visible error. Recoverable distinguishes
// input/transient errors (recoverable) from invariant violations (not).
type ErrorEvent struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// Hub fans out Events to every connected websocket client. One Hub
// serves the single process-wide pipeline.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Add registers a newly accepted connection.
func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

// Remove drops a connection, e.g. after its read loop exits.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Broadcast sends ev to every connected client, best-effort: a write
// failure only drops that client, never blocks the others.
func (h *Hub) Broadcast(ctx context.Context, ev Event) {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		go func(conn *websocket.Conn) {
			_ = wsjson.Write(ctx, conn, ev)
		}(c)
	}
}

// Emitter is the narrow interface pipeline.Supervisor depends on, so it
// can be swapped for a test double that records events instead of
// broadcasting them.
type Emitter interface {
	Broadcast(ctx context.Context, ev Event)
}
