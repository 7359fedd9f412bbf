// Command achew-vad-worker is the isolated subprocess spawned by
// internal/vad.Scanner, one per worker slot. It reads a
// single vad.WorkerRequest JSON line from stdin, runs sherpa-onnx's Silero
// VAD over its assigned chunk files in order, inverts the detected speech
// intervals into silence gaps in global timeline coordinates, and streams
// "PROGRESS:{json}" / "RESULT:{json}" lines to stdout — one RESULT per
// chunk, so the parent can merge incrementally instead of waiting for the
// whole worker to finish.
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/sirgibblets/achew-core/internal/vad"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	reqBytes, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	var req vad.WorkerRequest
	if err := json.Unmarshal(reqBytes, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	vadModelConfig := sherpa.VadModelConfig{
		SileroVad: sherpa.SileroVadModelConfig{
			Model:              req.ModelPath,
			Threshold:          req.Threshold,
			MinSilenceDuration: float32(req.MinSilenceDuration),
			MinSpeechDuration:  0.25,
			WindowSize:         512,
		},
		SampleRate: sampleRate,
		NumThreads: 1,
		Debug:      0,
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	lastEmit := make(map[int]time.Time)

	for i, path := range req.ChunkPaths {
		chunkIdx := req.StartChunkIndex + i
		gaps, err := processChunk(path, chunkIdx, req.ChunkSeconds, sampleRate, &vadModelConfig, func(pct float64) {
			if t, ok := lastEmit[chunkIdx]; ok && time.Since(t) < 100*time.Millisecond && pct < 100 {
				return
			}
			lastEmit[chunkIdx] = time.Now()
			emit(out, "PROGRESS", vad.ProgressMsg{ChunkIndex: chunkIdx, Percent: pct})
		})
		result := vad.ResultMsg{ChunkIndex: chunkIdx, Gaps: gaps}
		if err != nil {
			result.Err = err.Error()
		}
		emit(out, "RESULT", result)
		out.Flush()
	}
	return nil
}

// processChunk decodes one chunk file to mono PCM via ffmpeg, feeds it
// through a fresh VoiceActivityDetector, and inverts the detected speech
// intervals into silence gaps expressed in global timeline seconds
// (chunkIdx * chunkSeconds + local offset).
func processChunk(path string, chunkIdx int, chunkSeconds float64, sampleRate int, vadCfg *sherpa.VadModelConfig, onProgress func(pct float64)) ([]vad.Gap, error) {
	v := sherpa.NewVoiceActivityDetector(vadCfg, 30)
	if v == nil {
		return nil, fmt.Errorf("create voice activity detector")
	}
	defer sherpa.DeleteVoiceActivityDetector(v)

	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	reader := bufio.NewReader(stdout)
	const windowSize = 512
	windowBytes := windowSize * 2

	var speechSpans []vad.Gap
	var processedSamples int64

	for {
		buf := make([]byte, windowBytes)
		n, rerr := io.ReadFull(reader, buf)
		if n == 0 {
			break
		}
		samples := bytesToFloat32(buf[:n])
		v.AcceptWaveform(samples)
		processedSamples += int64(len(samples))

		for !v.IsEmpty() {
			seg := v.Front()
			v.Pop()
			start := float64(seg.Start) / float64(sampleRate)
			end := start + float64(len(seg.Samples))/float64(sampleRate)
			speechSpans = append(speechSpans, vad.Gap{Start: start, End: end})
		}

		if onProgress != nil && chunkSeconds > 0 {
			pct := 100 * (float64(processedSamples) / float64(sampleRate)) / chunkSeconds
			if pct > 99 {
				pct = 99
			}
			onProgress(pct)
		}

		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
	}

	v.Flush()
	for !v.IsEmpty() {
		seg := v.Front()
		v.Pop()
		start := float64(seg.Start) / float64(sampleRate)
		end := start + float64(len(seg.Samples))/float64(sampleRate)
		speechSpans = append(speechSpans, vad.Gap{Start: start, End: end})
	}

	_ = cmd.Wait()

	chunkDuration := float64(processedSamples) / float64(sampleRate)
	if chunkSeconds > 0 && chunkDuration < chunkSeconds {
		chunkDuration = chunkSeconds
	}
	globalOffset := float64(chunkIdx) * chunkSeconds

	gaps := invertToSilence(speechSpans, chunkDuration, globalOffset)
	if onProgress != nil {
		onProgress(100)
	}
	return gaps, nil
}

// invertToSilence turns speech intervals (local chunk time, sorted by
// construction since VAD emits them in stream order) into the
// complementary silence intervals over [0, chunkDuration), then shifts
// everything into global timeline coordinates.
func invertToSilence(speech []vad.Gap, chunkDuration float64, globalOffset float64) []vad.Gap {
	var gaps []vad.Gap
	cursor := 0.0
	for _, s := range speech {
		if s.Start > cursor {
			gaps = append(gaps, vad.Gap{Start: globalOffset + cursor, End: globalOffset + s.Start})
		}
		if s.End > cursor {
			cursor = s.End
		}
	}
	if cursor < chunkDuration {
		gaps = append(gaps, vad.Gap{Start: globalOffset + cursor, End: globalOffset + chunkDuration})
	}
	return gaps
}

func bytesToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

func emit(w *bufio.Writer, prefix string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "%s:%s\n", prefix, b)
}
