// Package mediaio wraps the external media tool (ffmpeg/ffprobe by
// default) that performs all audio decode/re-encode/segment work on the
// pipeline's behalf. The engine itself never decodes audio; every tool
// invocation here is registered with a procreg.Registry so cancellation
// can terminate it promptly. TrimHead without trimming is a plain file
// copy and runs no tool.
package mediaio

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirgibblets/achew-core/internal/pipelineerr"
	"github.com/sirgibblets/achew-core/internal/procreg"
)

// Tool is a handle to the external media binaries.
type Tool struct {
	FFmpegPath  string
	FFprobePath string
	Registry    *procreg.Registry
}

// New returns a Tool using "ffmpeg"/"ffprobe" from PATH and a fresh
// process registry.
func New() *Tool {
	return &Tool{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe", Registry: procreg.New()}
}

func (t *Tool) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout strings.Builder
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", pipelineerr.ErrTransient, name, err)
	}
	unregister := t.Registry.Register(cmd)
	defer unregister()

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s exited: %v: %s", pipelineerr.ErrTransient, name, err, stderr.String())
	}
	return []byte(stdout.String()), nil
}

// ProbeDuration returns the duration in seconds of the media at path.
func (t *Tool) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := t.run(ctx, t.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	d, parseErr := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if parseErr != nil {
		return 0, fmt.Errorf("%w: parse ffprobe duration %q: %v", pipelineerr.ErrTransient, string(out), parseErr)
	}
	return d, nil
}

// Concat performs a lossless concatenation of paths, in order, into a
// single file under outDir. Failure is always fatal (§4.1).
func (t *Tool) Concat(ctx context.Context, paths []string, outDir string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: concat requires at least one input", pipelineerr.ErrInput)
	}
	listPath := filepath.Join(outDir, "concat_list.txt")
	var sb strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("%w: resolve %s: %v", pipelineerr.ErrInput, p, err)
		}
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(abs, "'", "'\\''"))
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("%w: write concat list: %v", pipelineerr.ErrTransient, err)
	}

	out := filepath.Join(outDir, "concatenated"+filepath.Ext(paths[0]))
	_, err := t.run(ctx, t.FFmpegPath,
		"-y", "-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		out,
	)
	if err != nil {
		return "", err
	}
	return out, nil
}

// ExtractSegments cuts path at every point in cutPoints (ascending) into
// len(cutPoints) files, the last spanning to duration. Filenames are
// deterministic: segment_0000.ext, segment_0001.ext, ...
func (t *Tool) ExtractSegments(ctx context.Context, path string, cutPoints []float64, duration float64, outDir string) ([]string, error) {
	if len(cutPoints) == 0 {
		return nil, fmt.Errorf("%w: extract_segments requires at least one cut point", pipelineerr.ErrInput)
	}
	ext := filepath.Ext(path)
	paths := make([]string, len(cutPoints))

	for i, start := range cutPoints {
		end := duration
		if i+1 < len(cutPoints) {
			end = cutPoints[i+1]
		}
		segPath := filepath.Join(outDir, fmt.Sprintf("segment_%04d%s", i, ext))
		args := []string{
			"-y", "-ss", formatSeconds(start), "-i", path,
			"-t", formatSeconds(end - start),
			"-c", "copy",
			segPath,
		}
		if _, err := t.run(ctx, t.FFmpegPath, args...); err != nil {
			return nil, fmt.Errorf("extract segment %d: %w", i, err)
		}
		paths[i] = segPath
	}
	return paths, nil
}

// TrimHead produces a head-only clip bounded by segmentLength seconds, for
// ASR input. When trim is false a byte-copy is acceptable (no re-encode).
func (t *Tool) TrimHead(ctx context.Context, segPath string, trim bool, segmentLength float64, outDir string) (string, error) {
	ext := filepath.Ext(segPath)
	out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(segPath), ext)+"_trim"+ext)

	if !trim {
		data, err := os.ReadFile(segPath)
		if err != nil {
			return "", fmt.Errorf("%w: copy %s: %v", pipelineerr.ErrTransient, segPath, err)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return "", fmt.Errorf("%w: write %s: %v", pipelineerr.ErrTransient, out, err)
		}
		return out, nil
	}

	_, err := t.run(ctx, t.FFmpegPath,
		"-y", "-i", segPath,
		"-t", formatSeconds(segmentLength),
		"-c", "copy",
		out,
	)
	if err != nil {
		return "", err
	}
	return out, nil
}

// SplitUniform segments path into fixed-stride chunks of chunkSeconds each,
// written under outDir, and returns the chunk paths found there once
// ffmpeg exits. It counts the files ffmpeg's segment muxer reports on
// stderr but reports no progress to the caller while the split runs.
func (t *Tool) SplitUniform(ctx context.Context, path string, chunkSeconds float64, outDir string) ([]string, error) {
	pattern := filepath.Join(outDir, "chunk_%04d.wav")
	cmd := exec.CommandContext(ctx, t.FFmpegPath,
		"-y", "-i", path,
		"-f", "segment",
		"-segment_time", formatSeconds(chunkSeconds),
		"-c", "copy",
		"-reset_timestamps", "1",
		pattern,
	)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", pipelineerr.ErrTransient, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", pipelineerr.ErrTransient, err)
	}
	unregister := t.Registry.Register(cmd)
	defer unregister()

	emitted := 0
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), "Opening") {
			emitted++
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg split_uniform: %v", pipelineerr.ErrTransient, err)
	}

	entries, err := filepath.Glob(filepath.Join(outDir, "chunk_*.wav"))
	if err != nil {
		return nil, fmt.Errorf("%w: glob chunks: %v", pipelineerr.ErrTransient, err)
	}
	return entries, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}
