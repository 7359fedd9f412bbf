package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider via go-openai's chat completion
// endpoint, prompting the model to return a strict
// {"chapters": [{"id": "...", "title": "..."|null}]} document.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider returns a provider using apiKey, defaulting model to
// gpt-4o-mini when unset.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{client: openai.NewClient(apiKey), model: model}
}

type cleanupResponse struct {
	Chapters []struct {
		ID    string  `json:"id"`
		Title *string `json:"title"`
	} `json:"chapters"`
}

// Cleanup asks the model to judge and retitle each chapter.
func (p *OpenAIProvider) Cleanup(ctx context.Context, chapters []ChapterInput, opts CleanupOptions) ([]ChapterResult, error) {
	if opts.AssumeAllValid && opts.AdditionalInstructions == "" && !opts.UsePreferredTitles {
		// No judgment or retitling requested: pass titles through
		// unchanged rather than spend a model call.
		out := make([]ChapterResult, len(chapters))
		for i, c := range chapters {
			title := c.Title
			out[i] = ChapterResult{ID: c.ID, NewTitle: &title}
		}
		return out, nil
	}

	prompt := buildPrompt(chapters, opts)
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: empty completion")
	}

	var parsed cleanupResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("llm: parse response: %w", err)
	}

	out := make([]ChapterResult, len(parsed.Chapters))
	for i, c := range parsed.Chapters {
		out[i] = ChapterResult{ID: c.ID, NewTitle: c.Title}
	}
	return out, nil
}

const systemPrompt = `You clean up audiobook chapter titles. For each chapter, decide whether ` +
	`it is a real chapter or front/back matter (credits, copyright, table of contents). ` +
	`Reply as strict JSON: {"chapters": [{"id": "...", "title": "..."}]}, using title: null ` +
	`for anything that is not a real chapter.`

func buildPrompt(chapters []ChapterInput, opts CleanupOptions) string {
	var sb strings.Builder
	sb.WriteString("Chapters:\n")
	for _, c := range chapters {
		fmt.Fprintf(&sb, "- id=%s title=%q\n", c.ID, c.Title)
	}
	if opts.InferOpeningCredits {
		sb.WriteString("Treat a leading credits/intro segment as not a real chapter.\n")
	}
	if opts.InferEndCredits {
		sb.WriteString("Treat a trailing credits/outro segment as not a real chapter.\n")
	}
	if opts.AssumeAllValid {
		sb.WriteString("Assume every chapter is real; only clean up titles, never null them out.\n")
	}
	if opts.UsePreferredTitles && len(opts.PreferredTitles) > 0 {
		sb.WriteString("Prefer these known titles when available:\n")
		for id, title := range opts.PreferredTitles {
			fmt.Fprintf(&sb, "- id=%s preferred=%q\n", id, title)
		}
	}
	if opts.AdditionalInstructions != "" {
		sb.WriteString("Additional instructions: ")
		sb.WriteString(opts.AdditionalInstructions)
		sb.WriteString("\n")
	}
	return sb.String()
}
