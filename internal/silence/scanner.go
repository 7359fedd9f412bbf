// Package silence implements energy-threshold silence detection with
// hysteresis over a single decoded PCM stream.
package silence

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"

	"github.com/sirgibblets/achew-core/internal/model"
)

// Config tunes the energy-threshold scan.
type Config struct {
	// Threshold is the RMS level below which a frame is silent (0-1).
	Threshold float64
	// MinSilenceDuration is the floor below which a silence run is
	// discarded, in seconds.
	MinSilenceDuration float64
	// FrameSize is samples per RMS frame.
	FrameSize int
	SampleRate int
}

// DefaultConfig returns sane defaults for the energy-threshold scan.
func DefaultConfig() Config {
	return Config{
		Threshold:          0.01,
		MinSilenceDuration: 2.0,
		FrameSize:          480,
		SampleRate:         16000,
	}
}

// Scanner runs the energy-threshold scan via an external ffmpeg-compatible
// decode-to-PCM pipe.
type Scanner struct {
	FFmpegPath string
}

// New returns a Scanner using "ffmpeg" from PATH.
func New() *Scanner {
	return &Scanner{FFmpegPath: "ffmpeg"}
}

// Scan decodes path to mono 16-bit PCM at cfg.SampleRate and returns the
// silence spans found over [0, duration). Returns (nil, nil) if ctx is
// cancelled mid-stream — the pipeline treats that as "no result, step
// aborted", not an error.
func (s *Scanner) Scan(ctx context.Context, path string, duration float64, cfg Config) ([]model.SilenceSpan, error) {
	cmd := exec.CommandContext(ctx, s.FFmpegPath,
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("silence scan: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("silence scan: start ffmpeg: %w", err)
	}

	frames, scanErr := readRMSFrames(stdout, cfg.FrameSize)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil, nil
	}
	if scanErr != nil {
		return nil, fmt.Errorf("silence scan: read audio: %w", scanErr)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("silence scan: ffmpeg: %w", waitErr)
	}

	spans := framesToSilenceSpans(frames, cfg)
	return clampToDuration(spans, duration), nil
}

func readRMSFrames(r io.Reader, frameSize int) ([]float64, error) {
	reader := bufio.NewReader(r)
	var frames []float64
	frameSamples := make([]float32, 0, frameSize)

	buf := make([]byte, 2)
	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		sample := float32(int16(binary.LittleEndian.Uint16(buf))) / 32768.0
		frameSamples = append(frameSamples, sample)
		if len(frameSamples) >= frameSize {
			frames = append(frames, calculateRMS(frameSamples))
			frameSamples = frameSamples[:0]
		}
	}
	if len(frameSamples) > 0 {
		frames = append(frames, calculateRMS(frameSamples))
	}
	return frames, nil
}

func calculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// framesToSilenceSpans walks the per-frame RMS track and emits runs below
// Threshold that are at least MinSilenceDuration long.
func framesToSilenceSpans(frames []float64, cfg Config) []model.SilenceSpan {
	if len(frames) == 0 {
		return nil
	}
	frameDuration := float64(cfg.FrameSize) / float64(cfg.SampleRate)
	// Round up so a run is never shorter than MinSilenceDuration; the
	// epsilon keeps exact multiples (0.3 / 0.1 = 2.9999...) from rounding
	// down.
	minSilenceFrames := int(math.Ceil(cfg.MinSilenceDuration/frameDuration - 1e-9))

	var spans []model.SilenceSpan
	inSilence := false
	silenceStart := 0

	for i, rms := range frames {
		isSilent := rms < cfg.Threshold
		switch {
		case isSilent && !inSilence:
			inSilence = true
			silenceStart = i
		case !isSilent && inSilence:
			if i-silenceStart >= minSilenceFrames {
				spans = append(spans, model.SilenceSpan{
					Start: float64(silenceStart) * frameDuration,
					End:   float64(i) * frameDuration,
				})
			}
			inSilence = false
		}
	}
	if inSilence && len(frames)-silenceStart >= minSilenceFrames {
		spans = append(spans, model.SilenceSpan{
			Start: float64(silenceStart) * frameDuration,
			End:   float64(len(frames)) * frameDuration,
		})
	}
	return spans
}

func clampToDuration(spans []model.SilenceSpan, duration float64) []model.SilenceSpan {
	out := spans[:0]
	for _, s := range spans {
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > duration {
			s.End = duration
		}
		if s.End > s.Start {
			out = append(out, s)
		}
	}
	return out
}
