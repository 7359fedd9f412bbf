package transcribe

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the Whisper-API backend.
type OpenAIConfig struct {
	APIKey    string
	Model     string // defaults to openai.Whisper1
	Language  string
	BiasWords []string
}

// OpenAIBackend transcribes via OpenAI's hosted Whisper endpoint, the
// cloud alternative to SherpaBackend's on-device model. Bias words are
// folded into the request's Prompt field, the closest equivalent the
// Whisper API exposes to sherpa-onnx's hotword biasing.
type OpenAIBackend struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIBackend returns a backend using the given API key.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	return &OpenAIBackend{
		client: openai.NewClient(cfg.APIKey),
		config: cfg,
	}, nil
}

// Transcribe implements Backend via OpenAI's audio transcription
// endpoint.
func (b *OpenAIBackend) Transcribe(ctx context.Context, audioPath string) (string, error) {
	req := openai.AudioRequest{
		Model:    b.config.Model,
		FilePath: audioPath,
		Language: b.config.Language,
	}
	if len(b.config.BiasWords) > 0 {
		req.Prompt = strings.Join(b.config.BiasWords, ", ")
	}

	resp, err := b.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: transcription request: %w", err)
	}
	return resp.Text, nil
}
