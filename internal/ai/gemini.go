package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

// ModelUnavailableError means the model could not produce a response:
// transport failure, rate limiting, or an empty completion. These are
// transient from the pipeline's point of view.
type ModelUnavailableError struct {
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable: %v", e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// Client wraps the Gemini SDK behind the one call the pipeline needs:
// describe an image according to a prompt.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

type Options struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if opts.Model == "" {
		opts.Model = "gemini-flash-latest"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		client:  client,
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  slog.Default().With("component", "ai"),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// DescribeImage sends a PNG screenshot plus an instruction prompt to
// the model and returns its text response verbatim.
func (c *Client) DescribeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, "image/png"),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}, nil)
	if err != nil {
		return "", &ModelUnavailableError{Model: c.model, Err: err}
	}

	text := resp.Text()
	if text == "" {
		return "", &ModelUnavailableError{Model: c.model, Err: fmt.Errorf("empty completion")}
	}

	c.logger.Debug("model responded",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_len", len(text))

	return text, nil
}
