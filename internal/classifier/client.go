// Package classifier calls an OpenAI-compatible chat-completions endpoint to
// decide whether user content may be published.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/agora-community/agora/pkg/config"
	"github.com/agora-community/agora/pkg/logging"
	"github.com/agora-community/agora/pkg/telemetry"
)

const maxResponseBytes = 1 << 20

var systemPrompt = strings.Join([]string{
	"You are a strict content moderation system.",
	"Decide if the content is safe for a public community app.",
	"If the content should be rejected, provide a short reason in Chinese (<= 40 characters).",
	"The rejection reason must not be empty.",
	"If the content is allowed, return an empty reason string.",
	`Return ONLY valid JSON: {"allow":true|false,"reason":"short"}.`,
}, "\n")

// ErrStatus is returned for non-2xx responses
var ErrStatus = errors.New("classifier: unexpected status")

// Verdict is the classifier's decision
type Verdict struct {
	Allow  bool
	Reason string
}

// Client is a chat-completions moderation client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *zap.Logger
	latency    metric.Float64Histogram
	failures   metric.Int64Counter
}

// New creates a classifier client
func New(cfg *config.ClassifierConfig) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logging.WithComponent("classifier"),
		latency:    telemetry.Histogram("agora_classifier_request_duration", "Classifier round-trip latency"),
		failures:   telemetry.Counter("agora_classifier_failures_total", "Classifier calls that returned an error"),
	}

	if c.Enabled() {
		c.logger.Info("Classifier initialized", zap.String("url", c.baseURL), zap.String("model", c.model))
	} else {
		c.logger.Warn("Classifier disabled: no API key configured, all content is allowed")
	}
	return c
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// Classify asks the endpoint whether text and images may be published.
// Any transport, status or parse problem is returned as an error.
func (c *Client) Classify(ctx context.Context, text string, images []string) (Verdict, error) {
	if !c.Enabled() {
		return Verdict{Allow: true}, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "classifier.classify")
	defer span.End()
	span.SetAttributes(attribute.Int("images", len(images)))

	verdict, err := c.classify(ctx, text, images)
	if err != nil {
		c.failures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verdict{}, err
	}
	span.SetAttributes(attribute.Bool("allow", verdict.Allow))
	return verdict, nil
}

func (c *Client) classify(ctx context.Context, text string, images []string) (Verdict, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Verdict{}, fmt.Errorf("classifier throttle: %w", err)
	}

	parts := []contentPart{{Type: "text", Text: text}}
	for _, img := range images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: img}})
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: parts},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.latency.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return Verdict{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to read classifier response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("classifier request failed", zap.Int("status", resp.StatusCode))
		return Verdict{}, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	verdict, err := ParseResponse(body)
	if err != nil {
		c.logger.Error("classifier response parse failed",
			zap.Int("content_length", len(body)),
			zap.String("preview", preview(body)),
			zap.Error(err),
		)
		return Verdict{}, err
	}
	return verdict, nil
}

const previewRunes = 200

// preview returns at most the first previewRunes characters of body without
// splitting a multi-byte character
func preview(body []byte) string {
	s := strings.ToValidUTF8(string(body), "\uFFFD")
	n := 0
	for i := range s {
		if n == previewRunes {
			return s[:i]
		}
		n++
	}
	return s
}
