package transcribe

import (
	"context"
	"fmt"
	"strings"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// SherpaConfig configures the offline transducer model used by
// SherpaBackend: model paths, decoding parameters, and an optional
// bias-word list.
type SherpaConfig struct {
	EncoderPath    string
	DecoderPath    string
	JoinerPath     string
	TokensPath     string
	SampleRate     int
	NumThreads     int
	DecodingMethod string
	MaxActivePaths int
	BiasWords      []string
}

func (c SherpaConfig) validate() error {
	if c.EncoderPath == "" || c.DecoderPath == "" || c.JoinerPath == "" || c.TokensPath == "" {
		return fmt.Errorf("sherpa: model paths must be set")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sherpa: sample rate must be positive")
	}
	return nil
}

// SherpaBackend is the default on-device ASR backend, wrapping
// sherpa-onnx's offline transducer recognizer.
type SherpaBackend struct {
	config     SherpaConfig
	recognizer *sherpa.OfflineRecognizer
}

// NewSherpaBackend constructs and loads the offline recognizer model.
func NewSherpaBackend(cfg SherpaConfig) (*SherpaBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 1
	}
	if cfg.DecodingMethod == "" {
		cfg.DecodingMethod = "greedy_search"
	}

	sherpaConfig := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: cfg.SampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Transducer: sherpa.OfflineTransducerModelConfig{
				Encoder: cfg.EncoderPath,
				Decoder: cfg.DecoderPath,
				Joiner:  cfg.JoinerPath,
			},
			Tokens:     cfg.TokensPath,
			NumThreads: cfg.NumThreads,
			Debug:      0,
		},
		DecodingMethod: cfg.DecodingMethod,
		MaxActivePaths: cfg.MaxActivePaths,
		HotwordsScore:  1.5,
	}
	if len(cfg.BiasWords) > 0 {
		sherpaConfig.Hotwords = strings.Join(cfg.BiasWords, "/")
	}

	recognizer := sherpa.NewOfflineRecognizer(&sherpaConfig)
	if recognizer == nil {
		return nil, fmt.Errorf("sherpa: failed to create offline recognizer")
	}
	return &SherpaBackend{config: cfg, recognizer: recognizer}, nil
}

// Close releases the underlying ONNX runtime resources.
func (b *SherpaBackend) Close() {
	if b.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(b.recognizer)
		b.recognizer = nil
	}
}

// Transcribe implements Backend by decoding a WAV file in one shot. The
// caller is expected to have already head-trimmed the file to a
// reasonable length (segment.Extractor does this).
func (b *SherpaBackend) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wave := sherpa.ReadWave(audioPath)
	if wave == nil || len(wave.Samples) == 0 {
		return "", fmt.Errorf("sherpa: failed to read or empty wav: %s", audioPath)
	}

	stream := sherpa.NewOfflineStream(b.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(b.config.SampleRate, wave.Samples)
	b.recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil {
		return "", fmt.Errorf("sherpa: decode produced no result")
	}
	return result.Text, nil
}
