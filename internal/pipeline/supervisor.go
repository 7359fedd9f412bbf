package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sirgibblets/achew-core/internal/align"
	"github.com/sirgibblets/achew-core/internal/chapterstore"
	"github.com/sirgibblets/achew-core/internal/events"
	"github.com/sirgibblets/achew-core/internal/library"
	"github.com/sirgibblets/achew-core/internal/llm"
	"github.com/sirgibblets/achew-core/internal/logging"
	"github.com/sirgibblets/achew-core/internal/mediaio"
	"github.com/sirgibblets/achew-core/internal/model"
	"github.com/sirgibblets/achew-core/internal/pipelineerr"
	"github.com/sirgibblets/achew-core/internal/procreg"
	"github.com/sirgibblets/achew-core/internal/segment"
	"github.com/sirgibblets/achew-core/internal/silence"
	"github.com/sirgibblets/achew-core/internal/transcribe"
	"github.com/sirgibblets/achew-core/internal/vad"
)

// Config collects every collaborator the supervisor drives. All fields
// are required except where noted.
type Config struct {
	Media      *mediaio.Tool
	Silence    *silence.Scanner
	Vad        *vad.Scanner
	Segment    *segment.Extractor
	Transcribe *transcribe.Registry
	LLM        *llm.Registry
	Library    *library.Client
	Events     events.Emitter
	SmartDetect model.SmartDetectConfig
	// TempRoot is the parent of every per-pipeline temp dir; defaults to
	// os.TempDir() + "/achew".
	TempRoot string
	// Now is injectable for deterministic tests; defaults to time.Now.
	Now func() time.Time
}

func (c *Config) withDefaults() {
	if c.TempRoot == "" {
		c.TempRoot = filepath.Join(os.TempDir(), "achew")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Supervisor is the single process-wide pipeline object: only one
// pipeline exists at a time. Every mutating method serializes on mu;
// long-running work releases mu while it runs and re-acquires it to
// commit the resulting transition.
type Supervisor struct {
	cfg Config

	mu    sync.Mutex
	state State

	id      string
	tempDir string

	registry *procreg.Registry
	cancel   context.CancelFunc // cancels the in-flight task, if any

	book        *library.Book
	sourcePath  string // concatenated/local audio for the whole book
	cueSources  []model.CueSource
	cueSets     model.CueSet
	spans       []model.SilenceSpan
	selectedCues []float64
	segments    []segment.Segment
	pendingAlignment []align.AlignedChapter
	transcribeOn bool
	asrBackendID string

	store *chapterstore.Store
}

// NewSupervisor returns an idle supervisor bound to cfg.
func NewSupervisor(cfg Config) *Supervisor {
	cfg.withDefaults()
	return &Supervisor{
		cfg:      cfg,
		state:    Idle,
		registry: cfg.Media.Registry,
	}
}

// State returns the current pipeline state.
func (sup *Supervisor) State() State {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	return sup.state
}

// requireState returns ErrInvariant if the current state isn't want.
// Callers must hold sup.mu.
func (sup *Supervisor) requireState(want State) error {
	if sup.state != want {
		return fmt.Errorf("%w: expected state %s, got %s", pipelineerr.ErrInvariant, want, sup.state)
	}
	return nil
}

// transition moves to next and emits step_change before any progress
// event for the new step. Callers must hold sup.mu.
func (sup *Supervisor) transition(ctx context.Context, next State, extras map[string]any) {
	old := sup.state
	sup.state = next
	sup.cfg.Events.Broadcast(ctx, events.Event{
		Kind: events.KindStepChange,
		Data: events.StepChange{Old: old.String(), New: next.String(), Extras: extras},
	})
}

func (sup *Supervisor) emitProgress(ctx context.Context, step string, percent float64, message string, details any) {
	sup.cfg.Events.Broadcast(ctx, events.Event{
		Kind: events.KindProgressUpdate,
		Data: events.ProgressUpdate{Step: step, Percent: percent, Message: message, Details: details},
	})
}

func (sup *Supervisor) emitError(ctx context.Context, err error, recoverable bool) {
	logging.Errorf(ctx, "pipeline error: %v", err)
	sup.cfg.Events.Broadcast(ctx, events.Event{
		Kind: events.KindError,
		Data: events.ErrorEvent{Message: err.Error(), Recoverable: recoverable},
	})
}

func (sup *Supervisor) emitChapterUpdate(ctx context.Context) {
	sup.cfg.Events.Broadcast(ctx, events.Event{
		Kind: events.KindChapterUpdate,
		Data: events.ChapterUpdate{Chapters: sup.store.Chapters()},
	})
}

func (sup *Supervisor) emitHistoryUpdate(ctx context.Context) {
	sup.cfg.Events.Broadcast(ctx, events.Event{
		Kind: events.KindHistoryUpdate,
		Data: events.HistoryUpdate{CanUndo: sup.store.CanUndo(), CanRedo: sup.store.CanRedo()},
	})
}

// CreatePipeline validates itemID, downloads/concatenates its audio, and
// collects candidate cue sources, landing in SelectCueSource. The whole
// download/concat phase runs under withTask so Cancel can abort it; a
// failure at any step rewinds to the nearest settled level (see fail).
func (sup *Supervisor) CreatePipeline(ctx context.Context, itemID string) error {
	sup.mu.Lock()
	if err := sup.requireState(Idle); err != nil {
		sup.mu.Unlock()
		return err
	}
	sup.id = uuid.NewString()
	sup.tempDir = filepath.Join(sup.cfg.TempRoot, sup.id)
	sup.transition(ctx, Validating, nil)
	sup.mu.Unlock()

	var book *library.Book
	var sourcePath string
	err := sup.withTask(ctx, func(ctx context.Context) error {
		if err := os.MkdirAll(sup.tempDir, 0o755); err != nil {
			return fmt.Errorf("%w: create temp dir: %v", pipelineerr.ErrTransient, err)
		}

		if !sup.cfg.Library.Reachable(ctx) {
			return fmt.Errorf("%w: library server unreachable", pipelineerr.ErrTransient)
		}

		var err error
		book, err = sup.cfg.Library.FetchBook(ctx, itemID)
		if err != nil {
			return err
		}
		if len(supportedFiles(book.Files)) == 0 {
			return fmt.Errorf("%w: no supported audio files for item %s", pipelineerr.ErrInput, itemID)
		}

		sup.mu.Lock()
		sup.book = book
		sup.transition(ctx, Downloading, nil)
		sup.mu.Unlock()

		localPaths, err := sup.downloadAll(ctx, book)
		if err != nil {
			return err
		}

		sup.mu.Lock()
		sup.transition(ctx, FilePrep, nil)
		sup.mu.Unlock()

		sourcePath, err = sup.prepareSourceAudio(ctx, localPaths)
		return err
	})
	if err != nil {
		err = sup.fail(ctx, err)
		if errors.Is(err, pipelineerr.ErrInput) {
			// fail leaves the state alone on input errors; a pipeline that
			// never got past validation goes back to Idle.
			sup.mu.Lock()
			old, dir := sup.state, sup.tempDir
			sup.state, sup.id, sup.tempDir, sup.book = Idle, "", "", nil
			sup.mu.Unlock()
			_ = os.RemoveAll(dir)
			sup.cfg.Events.Broadcast(ctx, events.Event{
				Kind: events.KindStepChange,
				Data: events.StepChange{Old: old.String(), New: Idle.String()},
			})
		}
		return err
	}

	sup.mu.Lock()
	defer sup.mu.Unlock()
	sup.sourcePath = sourcePath
	sup.store = chapterstore.New(sup.cfg.Now)
	sup.cueSources = buildCueSources(book)
	sup.transition(ctx, SelectCueSource, map[string]any{"cue_sources": sup.cueSources})
	return nil
}

func supportedFiles(files []model.AudioFile) []model.AudioFile {
	var out []model.AudioFile
	for _, f := range files {
		if model.SupportedMimeTypes[f.MimeType] {
			out = append(out, f)
		}
	}
	return out
}

func (sup *Supervisor) downloadAll(ctx context.Context, book *library.Book) ([]string, error) {
	files := supportedFiles(book.Files)
	paths := make([]string, len(files))
	for i, f := range files {
		dest := filepath.Join(sup.tempDir, fmt.Sprintf("source_%04d%s", i, extForMime(f.MimeType)))
		total := len(files)
		idx := i
		err := sup.cfg.Library.DownloadFile(ctx, f.Ino, dest, func(downloaded, size int64) {
			pct := float64(idx)/float64(total)*100 + 0
			if size > 0 {
				pct = (float64(idx) + float64(downloaded)/float64(size)) / float64(total) * 100
			}
			sup.emitProgress(ctx, Downloading.String(), pct, fmt.Sprintf("downloading file %d/%d", idx+1, total), nil)
		})
		if err != nil {
			return nil, err
		}
		paths[i] = dest
	}
	return paths, nil
}

func extForMime(mime string) string {
	switch mime {
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4":
		return ".m4b"
	case "audio/flac":
		return ".flac"
	case "audio/wav":
		return ".wav"
	case "audio/aac":
		return ".aac"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".bin"
	}
}

func (sup *Supervisor) prepareSourceAudio(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 1 {
		return paths[0], nil
	}
	return sup.cfg.Media.Concat(ctx, paths, sup.tempDir)
}

func buildCueSources(book *library.Book) []model.CueSource {
	var sources []model.CueSource
	if len(book.Chapters) > 0 {
		sources = append(sources, model.CueSource{
			ID: model.CueSourceEmbedded, ShortName: "Embedded", Description: "Chapters embedded in the source file",
			Cues: book.Chapters,
		})
	}
	starts := make([]model.SimpleChapter, len(book.Files))
	var acc float64
	for i, f := range book.Files {
		starts[i] = model.SimpleChapter{Timestamp: acc, Title: fmt.Sprintf("File %d", i+1)}
		acc += f.Duration
	}
	sources = append(sources, model.CueSource{
		ID: model.CueSourceFileStarts, ShortName: "File starts", Description: "One chapter per source file", Cues: starts,
	})
	return sources
}

// fail emits an error event and classifies err to decide how the
// pipeline reacts. An Input error means the caller's request was
// invalid: the pipeline stays exactly where it was, with no step
// change and nothing discarded. Any other error — a transient external
// failure or an internal invariant violation — rewinds to the nearest
// settled level at or below the current state, discarding only the
// derived artifacts that level no longer needs; a rewind all the way to
// Idle also tears down the temp dir. err is always returned unchanged.
func (sup *Supervisor) fail(ctx context.Context, err error) error {
	sup.emitError(ctx, err, !errors.Is(err, pipelineerr.ErrInvariant))

	if errors.Is(err, pipelineerr.ErrInput) {
		return err
	}

	sup.mu.Lock()
	old := sup.state
	target := settledLevel(old)
	sup.cleanupToLevel(target)
	sup.state = settledStates[target]
	var dir string
	if target == settledLevel(Idle) {
		dir = sup.tempDir
		sup.tempDir = ""
	}
	sup.mu.Unlock()

	sup.cfg.Events.Broadcast(ctx, events.Event{
		Kind: events.KindStepChange,
		Data: events.StepChange{Old: old.String(), New: sup.state.String()},
	})
	if dir != "" {
		_ = os.RemoveAll(dir)
	}
	return err
}

// DeletePipeline cancels any in-flight work, discards every temp file,
// and returns to Idle.
func (sup *Supervisor) DeletePipeline(ctx context.Context) error {
	sup.Cancel()

	sup.mu.Lock()
	dir := sup.tempDir
	old := sup.state
	sup.state = Idle
	sup.id = ""
	sup.tempDir = ""
	sup.book = nil
	sup.sourcePath = ""
	sup.cueSources = nil
	sup.cueSets = nil
	sup.spans = nil
	sup.selectedCues = nil
	sup.segments = nil
	sup.pendingAlignment = nil
	sup.transcribeOn = false
	sup.asrBackendID = ""
	sup.store = nil
	sup.mu.Unlock()

	if dir != "" {
		_ = os.RemoveAll(dir)
	}
	sup.cfg.Events.Broadcast(ctx, events.Event{
		Kind: events.KindStepChange,
		Data: events.StepChange{Old: old.String(), New: Idle.String()},
	})
	return nil
}

// Cancel aborts the in-flight task (if any) and drains every registered
// subprocess: graceful signal, 2s grace period, then force-kill. It
// does not itself change state — callers transition afterward
// (DeletePipeline or RestartAtStep).
func (sup *Supervisor) Cancel() {
	sup.mu.Lock()
	cancel := sup.cancel
	sup.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	sup.registry.DrainAll()
}

// withTask runs fn under a cancellable context registered as the
// in-flight task, clearing it on return.
func (sup *Supervisor) withTask(parent context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(parent)
	sup.mu.Lock()
	sup.cancel = cancel
	sup.mu.Unlock()
	defer func() {
		sup.mu.Lock()
		sup.cancel = nil
		sup.mu.Unlock()
		cancel()
	}()
	return fn(ctx)
}
