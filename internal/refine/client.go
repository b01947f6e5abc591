package refine

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const systemPrompt = `You are a audio transcription text refiner. You may refer to the context to correct the transcription text.
Your task is to correct the transcribed text by removing redundant and repetitive words, resolving any contradictions, and fixing punctuation errors.
Keep my spoken language as it is, and do not change my speaking style. Only fix the text.
Response directly with the text.`

// Error reports a refinement failure. Callers decide whether to propagate or
// fall back to the unrefined text.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "refine: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config contains refinement client configuration
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

// Client calls a chat-completion endpoint to correct transcription text.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
}

// NewClient creates a refinement client
func NewClient(cfg Config) *Client {
	requestOpts := make([]option.RequestOption, 0, 2)
	if cfg.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(cfg.APIKey))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	return &Client{
		api:         openai.NewClient(requestOpts...),
		model:       model,
		temperature: temperature,
	}
}

// Refine sends the transcription text with its context to the configured
// endpoint and returns the first completion verbatim. Empty input after
// trimming short-circuits to an empty string without a network call.
func (c *Client) Refine(ctx context.Context, text, contextText string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("context: " + contextText + "\n---\ntranscription: " + text),
		},
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &Error{Err: err}
	}

	if len(completion.Choices) == 0 {
		return "", &Error{Err: fmt.Errorf("completion has no choices")}
	}

	return completion.Choices[0].Message.Content, nil
}
