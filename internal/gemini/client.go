package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"banner-text-advisor/internal/logging"
)

const (
	defaultModel       = "gemini-1.5-flash"
	defaultTemperature = float32(0.3)
)

type Options struct {
	APIKey      string
	Model       string
	// Temperature is sent as given, zero included. Nil means 0.3.
	Temperature *float32
	BaseURL     string
	APIVersion  string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client adapts the hosted Gemini API to the two request shapes the advisor
// needs: text only, and text plus inline images.
type Client struct {
	genai       *genai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: API key is empty")
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	temperature := defaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    strings.TrimSpace(opts.BaseURL),
			APIVersion: strings.TrimSpace(opts.APIVersion),
		},
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		genai:       client,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// GenerateText sends a text-only prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil, c.config())
}

// GenerateWithImages sends the prompt followed by the images as inline parts.
func (c *Client) GenerateWithImages(ctx context.Context, prompt string, images ...ImageInput) (string, error) {
	return c.generate(ctx, prompt, images, c.config())
}

// GenerateJSON is GenerateWithImages with a JSON response contract shaped
// like a list of suggestions.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, images ...ImageInput) (string, error) {
	cfg := c.config()
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = suggestionSchema()
	return c.generate(ctx, prompt, images, cfg)
}

func (c *Client) config() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
}

func (c *Client) generate(ctx context.Context, prompt string, images []ImageInput, cfg *genai.GenerateContentConfig) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("gemini: prompt is empty")
	}

	parts := make([]*genai.Part, 0, len(images)+1)
	parts = append(parts, genai.NewPartFromText(prompt))
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		mimeType := img.MimeType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, mimeType))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		c.logger.Error("gemini request failed", "model", c.model, "images", len(parts)-1, "err", err)
		return "", classify(err)
	}

	text := resp.Text()
	c.logger.Debug("gemini request done",
		"model", c.model,
		"images", len(parts)-1,
		"chars", len(text),
		"dur_ms", time.Since(start).Milliseconds(),
	)

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// classify wraps API errors with a sentinel callers can match on while
// keeping the original message.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case apiErr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrQuota, err)
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota") {
		return fmt.Errorf("%w: %v", ErrQuota, err)
	}
	return fmt.Errorf("gemini generate: %w", err)
}
