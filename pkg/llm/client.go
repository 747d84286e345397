// Package llm wraps the Gemini SDK for the research pipeline.
//
// Three generation modes are exposed: plain text, web-grounded text
// (GoogleSearch tool), and schema-constrained JSON. All calls share a
// rate limiter and retry with backoff on transient failures.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Config controls client construction.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// Model is the model identifier. Defaults to DefaultModel.
	Model string

	// RequestsPerSecond caps outbound calls. Zero means 1 rps.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Zero means 1.
	Burst int

	// MaxRetries bounds retry attempts per call. Zero means 3.
	MaxRetries int

	// CallTimeout bounds a single generation call. Zero means 5 minutes.
	CallTimeout time.Duration

	// Logger receives retry warnings. Nil means no logging.
	Logger *zap.Logger
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Source is a web source surfaced by grounded generation.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// GroundedResult is the output of a grounded generation call: the model's
// answer plus the search metadata the grounding run produced.
type GroundedResult struct {
	Text          string
	Sources       []Source
	SearchQueries []string
}

// Client is a rate-limited, retrying Gemini client.
type Client struct {
	genai      *genai.Client
	model      string
	limiter    *rate.Limiter
	maxRetries int
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a client against the Gemini API backend.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	cfg.applyDefaults()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		genai:      client,
		model:      cfg.Model,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.CallTimeout,
		logger:     cfg.Logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// GenerateText runs a plain text generation call.
func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.generate(ctx, prompt, config)
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

// GenerateJSON runs a schema-constrained generation call and decodes the
// JSON response into out.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema, out any) error {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.generate(ctx, prompt, config)
	if err != nil {
		return err
	}

	text := stripCodeFence(responseText(resp))
	if text == "" {
		return fmt.Errorf("empty structured response")
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode structured response: %w", err)
	}
	return nil
}

// GenerateGrounded runs a generation call with the GoogleSearch tool and
// returns the answer together with grounding sources and the queries the
// model issued.
func (c *Client) GenerateGrounded(ctx context.Context, prompt string) (*GroundedResult, error) {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	resp, err := c.generate(ctx, prompt, config)
	if err != nil {
		return nil, err
	}

	result := &GroundedResult{Text: responseText(resp)}

	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		gm := resp.Candidates[0].GroundingMetadata
		if gm.WebSearchQueries != nil {
			result.SearchQueries = gm.WebSearchQueries
		}
		for _, chunk := range gm.GroundingChunks {
			if chunk.Web != nil {
				result.Sources = append(result.Sources, Source{
					URL:   chunk.Web.URI,
					Title: chunk.Web.Title,
				})
			}
		}
	}

	return result, nil
}

// generate makes the API call with rate limiting and retry with backoff.
func (c *Client) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	var resp *genai.GenerateContentResponse
	var apiErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(callCtx); err != nil {
			return nil, err
		}

		resp, apiErr = c.genai.Models.GenerateContent(callCtx, c.model, contents, config)
		if apiErr == nil {
			return resp, nil
		}
		if attempt == c.maxRetries {
			break
		}

		backoff := retryBackoff(attempt)
		c.logger.Warn("generation call failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(apiErr))

		select {
		case <-callCtx.Done():
			return nil, callCtx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("generation failed after %d retries: %w", c.maxRetries, apiErr)
}

// retryBackoff returns the wait before retry attempt+1. Linear backoff is
// enough here: the limiter already smooths sustained request rates.
func retryBackoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 2 * time.Second
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// stripCodeFence removes a surrounding markdown code fence, if present.
// Models occasionally fence JSON output despite the response MIME type.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
