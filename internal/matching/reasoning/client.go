// Package reasoning asks an external language model to pair invoice and
// declaration items the heuristic could not.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/clearline/internal/config"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	"github.com/smallbiznis/clearline/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	anthropicVersion = "2023-06-01"
	maxResponseBytes = 1 << 20

	defaultMaxAttempts = 3
	retryInitialDelay  = 250 * time.Millisecond
	retryMaxDelay      = 2 * time.Second

	systemPrompt = "You reconcile customs paperwork. You pair commercial invoice line items with customs declaration line items that describe the same goods. Respond only with JSON in the exact format requested."
)

var (
	ErrNotConfigured = errors.New("reasoning_not_configured")
	ErrEmptyResponse = errors.New("reasoning_empty_response")
)

// Client calls the Anthropic messages API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	log        *zap.Logger

	maxAttempts  uint
	initialDelay time.Duration
}

// StatusError is a non-200 answer from the reasoning service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("reasoning service error (status %d)", e.Code)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// NewClient returns nil when reasoning is disabled so the matcher skips its fallback.
func NewClient(cfg config.Config, log *zap.Logger) (matchingdomain.SupplementaryMatcher, error) {
	rc := cfg.Reasoning
	if !rc.Enabled {
		return nil, nil
	}
	client, err := newClient(rc, &http.Client{
		Timeout: rc.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newClient(rc config.ReasoningConfig, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(rc.APIKey) == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrNotConfigured)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(rc.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	maxTokens := rc.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	maxAttempts := defaultMaxAttempts
	if rc.MaxAttempts > 0 {
		maxAttempts = rc.MaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		apiKey:       rc.APIKey,
		model:        rc.Model,
		maxTokens:    maxTokens,
		log:          log.Named("matching.reasoning"),
		maxAttempts:  uint(maxAttempts),
		initialDelay: retryInitialDelay,
	}, nil
}

// Propose sends the unmatched items to the model. Rate limiting and 5xx answers
// are retried with exponential backoff until the attempts run out or ctx expires.
func (c *Client) Propose(ctx context.Context, req matchingdomain.SupplementaryRequest) (_ []matchingdomain.Candidate, err error) {
	if len(req.InvoiceItems) == 0 || len(req.DeclarationItems) == 0 {
		return nil, nil
	}

	ctx, span := otel.Tracer("clearline/matching").Start(ctx, "reasoning.propose",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("invoice_items", len(req.InvoiceItems)),
			attribute.Int("declaration_items", len(req.DeclarationItems)),
		),
	)
	defer func() { tracing.EndSpan(span, err) }()

	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: 0,
		System:      systemPrompt,
		Messages:    []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	attempts := 0
	decoded, err := backoff.Retry(ctx,
		func() (messagesResponse, error) {
			attempts++
			return c.send(ctx, body)
		},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.attempts()),
		backoff.WithNotify(func(err error, delay time.Duration) {
			c.log.Warn("reasoning request failed, retrying",
				zap.Int("attempt", attempts),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}),
	)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, ErrEmptyResponse
	}

	proposals, err := ParseProposals(text.String())
	if err != nil {
		return nil, err
	}
	c.log.Debug("reasoning proposals received",
		zap.String("org_id", req.OrgID.String()),
		zap.Int("proposals", len(proposals)),
		zap.Int("attempts", attempts),
		zap.Int("input_tokens", decoded.Usage.InputTokens),
		zap.Int("output_tokens", decoded.Usage.OutputTokens),
	)
	return proposals, nil
}

// send performs one request. Errors that another attempt cannot fix are wrapped as permanent.
func (c *Client) send(ctx context.Context, body []byte) (messagesResponse, error) {
	var decoded messagesResponse

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return decoded, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return decoded, backoff.Permanent(fmt.Errorf("request failed: %w", err))
		}
		return decoded, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return decoded, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Code: resp.StatusCode}
		if !statusErr.Retryable() {
			return decoded, backoff.Permanent(statusErr)
		}
		return decoded, statusErr
	}

	if err := json.Unmarshal(raw, &decoded); err != nil {
		return decoded, backoff.Permanent(fmt.Errorf("parse response: %w", err))
	}
	return decoded, nil
}

func (c *Client) attempts() uint {
	if c.maxAttempts == 0 {
		return defaultMaxAttempts
	}
	return c.maxAttempts
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = retryInitialDelay
	}
	b.MaxInterval = retryMaxDelay
	return b
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// flexibleID accepts snowflake IDs as JSON strings or numbers.
type flexibleID snowflake.ID

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item id %q", s)
	}
	*f = flexibleID(id)
	return nil
}

type proposalEnvelope struct {
	Matches []struct {
		InvoiceItemID     flexibleID `json:"invoice_item_id"`
		DeclarationItemID flexibleID `json:"declaration_item_id"`
		Confidence        float64    `json:"confidence"`
		Reason            string     `json:"reason"`
	} `json:"matches"`
}

// ParseProposals decodes the model's JSON answer, tolerating a markdown code fence.
func ParseProposals(content string) ([]matchingdomain.Candidate, error) {
	var envelope proposalEnvelope
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &envelope); err != nil {
		return nil, fmt.Errorf("parse proposals: %w", err)
	}

	out := make([]matchingdomain.Candidate, 0, len(envelope.Matches))
	for _, m := range envelope.Matches {
		out = append(out, matchingdomain.Candidate{
			InvoiceItemID:     snowflake.ID(m.InvoiceItemID),
			DeclarationItemID: snowflake.ID(m.DeclarationItemID),
			Confidence:        clampConfidence(m.Confidence),
			Method:            matchingdomain.MethodAI,
			Reason:            strings.TrimSpace(m.Reason),
		})
	}
	return out, nil
}

func clampConfidence(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}
