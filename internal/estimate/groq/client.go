// Package groq implements the estimation collaborators on top of an
// OpenAI-compatible chat-completions endpoint.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"kcal/internal/core"
	"kcal/internal/estimate"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultTextModel   = "llama-3.3-70b-versatile"
	DefaultVisionModel = "llama-3.2-90b-vision-preview"

	temperature = 0.1
	maxBodySize = 1 << 20
)

var ErrMissingAPIKey = errors.New("missing model API key")

type Config struct {
	APIKey         string
	BaseURL        string
	TextModel      string
	VisionModel    string
	Timeout        time.Duration
	RequestsPerSec float64 // 0 disables pacing
	HTTPClient     *http.Client
}

// Client talks to the chat-completions API. It satisfies
// estimate.Interpreter, estimate.NutrientLookup and estimate.LabelScanner.
type Client struct {
	apiKey      string
	baseURL     string
	textModel   string
	visionModel string
	http        *http.Client
	limiter     *rate.Limiter
}

var (
	_ estimate.Interpreter    = (*Client)(nil)
	_ estimate.NutrientLookup = (*Client)(nil)
	_ estimate.LabelScanner   = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimSuffix(firstNonEmpty(cfg.BaseURL, DefaultBaseURL), "/"),
		textModel:   firstNonEmpty(cfg.TextModel, DefaultTextModel),
		visionModel: firstNonEmpty(cfg.VisionModel, DefaultVisionModel),
		http:        cfg.HTTPClient,
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if cfg.RequestsPerSec > 0 {
		burst := int(cfg.RequestsPerSec * 2)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), burst)
	}
	return c, nil
}

type (
	chatRequest struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		Temperature float64       `json:"temperature"`
	}

	chatMessage struct {
		Role    string `json:"role"`
		Content any    `json:"content"` // string or []contentPart
	}

	contentPart struct {
		Type     string    `json:"type"`
		Text     string    `json:"text,omitempty"`
		ImageURL *imageURL `json:"image_url,omitempty"`
	}

	imageURL struct {
		URL string `json:"url"`
	}

	chatResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
)

// complete sends one chat request and returns the first choice's content.
func (c *Client) complete(ctx context.Context, model string, content any) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: content}},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.WarnContext(ctx, "Model API error", "model", model, "status", resp.StatusCode, "body", truncate(string(body), 200))
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	slog.DebugContext(ctx, "Model call completed", "model", model, "duration_ms", time.Since(start).Milliseconds())
	return out.Choices[0].Message.Content, nil
}

// InterpretFoods implements estimate.Interpreter.
func (c *Client) InterpretFoods(ctx context.Context, text string) (estimate.Interpretation, error) {
	content, err := c.complete(ctx, c.textModel, interpretPrompt(text))
	if err != nil {
		return estimate.Interpretation{}, core.InterpretationError("food interpreter unreachable", err)
	}
	interp, err := parseInterpretation(content)
	if err != nil {
		return estimate.Interpretation{}, core.InterpretationError("unreadable interpretation", err)
	}
	return interp, nil
}

// LookupNutrients implements estimate.NutrientLookup with a single request
// for all names.
func (c *Client) LookupNutrients(ctx context.Context, names []string) ([]estimate.NutrientProfile, error) {
	if len(names) == 0 {
		return nil, nil
	}
	content, err := c.complete(ctx, c.textModel, nutrientsPrompt(names))
	if err != nil {
		return nil, core.LookupError("nutrient lookup unreachable", err)
	}
	profiles, err := parseNutrients(content)
	if err != nil {
		return nil, core.LookupError("unreadable nutrient data", err)
	}
	return profiles, nil
}

// ScanLabel implements estimate.LabelScanner using the vision model.
func (c *Client) ScanLabel(ctx context.Context, img estimate.Image) (estimate.LabelScan, error) {
	parts := []contentPart{
		{Type: "text", Text: labelPrompt},
		{Type: "image_url", ImageURL: &imageURL{URL: img.DataURL()}},
	}
	content, err := c.complete(ctx, c.visionModel, parts)
	if err != nil {
		return estimate.LabelScan{}, core.ScanError("label scanner unreachable", err)
	}
	scan, err := parseLabel(content)
	if err != nil {
		return estimate.LabelScan{}, core.ScanError("could not read the label", err)
	}
	return scan, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
