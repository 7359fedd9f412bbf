package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirgibblets/achew-core/internal/events"
	"github.com/sirgibblets/achew-core/internal/pipelineerr"
)

// RestartAtStep cancels all in-flight work and rewinds to level,
// discarding every derived artifact strictly above it.
func (sup *Supervisor) RestartAtStep(ctx context.Context, level State) error {
	sup.Cancel()

	target := settledLevel(level)
	if _, ok := settledStates[target]; !ok {
		return fmt.Errorf("%w: %s is not a settled state", pipelineerr.ErrInput, level)
	}

	sup.mu.Lock()
	defer sup.mu.Unlock()

	sup.cleanupToLevel(target)

	old := sup.state
	sup.state = settledStates[target]
	sup.cfg.Events.Broadcast(ctx, events.Event{
		Kind: events.KindStepChange,
		Data: events.StepChange{Old: old.String(), New: sup.state.String()},
	})
	if sup.store != nil {
		sup.emitChapterUpdate(ctx)
		sup.emitHistoryUpdate(ctx)
	}
	return nil
}

// cleanupToLevel discards every derived artifact strictly above
// target, the settled level being rewound to. Callers must hold sup.mu.
func (sup *Supervisor) cleanupToLevel(target int) {
	if target <= settledLevel(ConfigureASR) {
		sup.cleanupTranscriptions()
		sup.cleanupTrimmedFiles()
		sup.asrBackendID = ""
		sup.transcribeOn = false
	}
	if target <= settledLevel(CueSetSelection) {
		sup.cleanupSegmentFiles()
		sup.selectedCues = nil
		sup.pendingAlignment = nil
	}
	if target <= settledLevel(SelectCueSource) {
		sup.cueSets = nil
		sup.spans = nil
	}
}

// cleanupSegmentFiles removes every extracted segment's full audio file;
// the head-trimmed clips are removed by cleanupTrimmedFiles, which
// cleanupToLevel runs first. Callers must hold sup.mu.
func (sup *Supervisor) cleanupSegmentFiles() {
	for _, s := range sup.segments {
		_ = os.Remove(s.Path)
	}
	sup.segments = nil
}

// cleanupTrimmedFiles removes only the head-trimmed clips fed to ASR,
// leaving the full segment files intact (used when rewinding to
// ConfigureASR, which keeps segments but discards everything ASR
// produced). Callers must hold sup.mu.
func (sup *Supervisor) cleanupTrimmedFiles() {
	for i, s := range sup.segments {
		if s.TrimmedPath != "" && s.TrimmedPath != s.Path {
			_ = os.Remove(s.TrimmedPath)
		}
		sup.segments[i].TrimmedPath = ""
	}
	if sup.tempDir != "" {
		_ = os.RemoveAll(filepath.Join(sup.tempDir, "trimmed"))
	}
}

// cleanupTranscriptions discards the chapter store built from ASR
// output — transcriptions live only as chapter titles, so there is no
// separate transcript file to remove. Callers must hold sup.mu.
func (sup *Supervisor) cleanupTranscriptions() {
	sup.store = nil
}
