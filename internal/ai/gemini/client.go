// Package gemini adapts the Google GenAI SDK to the ai.Invoker primitive.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spigell/interviewd/internal/ai"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-pro"

// Client wraps the Google GenAI client behind the ai.Invoker interface.
type Client struct {
	models contentGenerator
	model  string
}

// contentGenerator mirrors the slice of the SDK surface the client uses, so
// tests can substitute a fake.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// New creates a Client configured for the Gemini API backend.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Client{models: client.Models, model: model}, nil
}

// Invoke sends the prompt to Gemini and returns the concatenated textual
// response. Provider failures are classified into ai.CallError so the
// gateway can decide whether a retry is worthwhile.
func (c *Client) Invoke(ctx context.Context, system, prompt string) (string, error) {
	if c == nil || c.models == nil {
		return "", errors.New("gemini client is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", classify(err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		// An empty body with no error is usually a safety block or a
		// truncated stream; retrying gets a fresh sample.
		return "", &ai.CallError{Err: errors.New("gemini api returned empty response"), Transient: true}
	}

	return output, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// classify maps SDK errors onto the transient/fatal split. Rate limits and
// server-side failures are worth retrying; auth and malformed-request errors
// are not.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		transient := apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code == http.StatusRequestTimeout ||
			apiErr.Code >= http.StatusInternalServerError
		return &ai.CallError{Err: err, Transient: transient}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ai.CallError{Err: err, Transient: true}
	}

	return &ai.CallError{Err: err, Transient: false}
}
