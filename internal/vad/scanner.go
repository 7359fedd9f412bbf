package vad

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirgibblets/achew-core/internal/logging"
	"github.com/sirgibblets/achew-core/internal/mediaio"
	"github.com/sirgibblets/achew-core/internal/model"
	"github.com/sirgibblets/achew-core/internal/procreg"
)

// Config tunes the VAD scan.
type Config struct {
	ChunkSeconds       float64
	ModelPath          string
	Threshold          float32
	MinSilenceDuration float64
	SampleRate         int
	WorkerCount        int // 0 means DefaultWorkerCount()
	WorkerBinary       string
}

// DefaultConfig returns sane defaults for chunked VAD scanning.
func DefaultConfig() Config {
	return Config{
		ChunkSeconds:       600,
		Threshold:          0.5,
		MinSilenceDuration: 2.0,
		SampleRate:         16000,
		WorkerBinary:       "achew-vad-worker",
	}
}

// ProgressFunc reports the unified percent for the whole step, averaged
// across all chunks.
type ProgressFunc func(percent float64)

// Scanner drives the split -> worker-fanout -> merge pipeline.
type Scanner struct {
	Media    *mediaio.Tool
	Registry *procreg.Registry
}

// New returns a Scanner using a fresh mediaio.Tool and process registry.
func New() *Scanner {
	media := mediaio.New()
	return &Scanner{Media: media, Registry: media.Registry}
}

// Scan splits path into chunkSeconds pieces, fans them out across workers,
// and returns merged silence spans over [0, duration). Returns (nil, nil)
// if ctx is cancelled — partial results are always discarded (§4.3
// cancellation: "parent kills all worker processes on cancel").
func (s *Scanner) Scan(ctx context.Context, path string, duration float64, cfg Config, onProgress ProgressFunc) ([]model.SilenceSpan, error) {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount()
	}
	if cfg.WorkerBinary == "" {
		cfg.WorkerBinary = "achew-vad-worker"
	}

	outDir, err := os.MkdirTemp("", "achew-vad-chunks-*")
	if err != nil {
		return nil, fmt.Errorf("vad scan: temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	chunkPaths, err := s.Media.SplitUniform(ctx, path, cfg.ChunkSeconds, outDir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("vad scan: split_uniform: %w", err)
	}
	sort.Strings(chunkPaths)

	if ctx.Err() != nil {
		return nil, nil
	}

	ranges := PartitionChunks(len(chunkPaths), cfg.WorkerCount)

	var (
		mu       sync.Mutex
		allGaps  []model.SilenceSpan
		percents = make([]float64, len(chunkPaths))
		wg       sync.WaitGroup
		firstErr error
	)

	reportUnified := throttled(100*time.Millisecond, func() {
		if onProgress == nil {
			return
		}
		mu.Lock()
		var sum float64
		for _, p := range percents {
			sum += p
		}
		n := float64(len(percents))
		mu.Unlock()
		if n > 0 {
			onProgress(sum / n)
		}
	})

	for _, rng := range ranges {
		wg.Add(1)
		go func(rng ChunkRange) {
			defer wg.Done()
			gaps, err := s.runWorker(ctx, cfg, chunkPaths, rng, func(chunkIdx int, pct float64) {
				mu.Lock()
				if chunkIdx >= 0 && chunkIdx < len(percents) {
					percents[chunkIdx] = pct
				}
				mu.Unlock()
				reportUnified()
			})
			mu.Lock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			allGaps = append(allGaps, gaps...)
			mu.Unlock()
		}(rng)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, nil
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return MergeGaps(allGaps, cfg.MinSilenceDuration), nil
}

func (s *Scanner) runWorker(ctx context.Context, cfg Config, chunkPaths []string, rng ChunkRange, onProgress func(chunkIdx int, pct float64)) ([]model.SilenceSpan, error) {
	req := WorkerRequest{
		ChunkPaths:         chunkPaths[rng.Lo:rng.Hi],
		ChunkSeconds:       cfg.ChunkSeconds,
		StartChunkIndex:    rng.Lo,
		ModelPath:          cfg.ModelPath,
		Threshold:          cfg.Threshold,
		MinSilenceDuration: cfg.MinSilenceDuration,
		SampleRate:         cfg.SampleRate,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("vad worker: encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, cfg.WorkerBinary)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("vad worker: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("vad worker: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("vad worker: start: %w", err)
	}
	unregister := s.Registry.Register(cmd)
	defer unregister()

	if _, err := stdin.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("vad worker: write request: %w", err)
	}
	_ = stdin.Close()

	var gaps []model.SilenceSpan
	var workerErr error
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "PROGRESS:"):
			var p ProgressMsg
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "PROGRESS:")), &p); err == nil {
				onProgress(p.ChunkIndex, p.Percent)
			}
		case strings.HasPrefix(line, "RESULT:"):
			var r ResultMsg
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "RESULT:")), &r); err == nil {
				if r.Err != "" {
					logging.Warnf(ctx, "vad chunk %d failed: %s", r.ChunkIndex, r.Err)
					continue
				}
				for _, g := range r.Gaps {
					gaps = append(gaps, model.SilenceSpan{Start: g.Start, End: g.End})
				}
				onProgress(r.ChunkIndex, 100)
			}
		}
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		workerErr = fmt.Errorf("vad worker exited: %w", err)
	}
	return gaps, workerErr
}

// throttled returns a function that invokes fn at most once per interval,
// dropping intervening calls. Used to bound the worker->supervisor
// progress channel's update rate.
func throttled(interval time.Duration, fn func()) func() {
	var mu sync.Mutex
	var last time.Time
	return func() {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if now.Sub(last) < interval {
			return
		}
		last = now
		fn()
	}
}
