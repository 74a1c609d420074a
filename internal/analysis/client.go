// Package analysis calls the external language-model service and turns its reply into typed results.
package analysis

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recallcontext/backend/config"
	"github.com/recallcontext/backend/internal/apperr"
)

const (
	headerAPIKey  = "x-api-key"
	headerVersion = "anthropic-version"
	maxBodyBytes  = 10 << 20
)

//go:embed prompts/meeting_analysis.txt
var defaultPrompt string

// Client sends transcripts to the analysis service. It performs exactly one call per Analyze, no retries.
type Client struct {
	baseURL    string
	model      string
	maxTokens  int
	apiVersion string
	timeout    time.Duration
	prompt     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an analysis client from configuration.
func NewClient(cfg config.AnthropicConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		apiVersion: cfg.APIVersion,
		timeout:    cfg.Timeout(),
		prompt:     defaultPrompt,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// BuildPrompt embeds the transcript into the prompt template.
func (c *Client) BuildPrompt(transcript string) string {
	return strings.Replace(c.prompt, "{transcript}", transcript, 1)
}

// Analyze posts the transcript and returns the raw payload.
// Failures are *apperr.Error values of kind AI_SERVICE_ERROR with a sub-code.
func (c *Client) Analyze(ctx context.Context, transcript, apiKey string) (*Payload, error) {
	c.logger.Info("analyzing transcript", zap.Int("transcript_chars", len(transcript)), zap.String("model", c.model))

	body, err := json.Marshal(MessagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []Message{{Role: "user", Content: c.BuildPrompt(transcript)}},
	})
	if err != nil {
		return nil, apperr.External(apperr.CodeTransport, 0, "failed to encode analysis request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.External(apperr.CodeTransport, 0, "failed to create analysis request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIKey, apiKey)
	req.Header.Set(headerVersion, c.apiVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := classifyStatus(resp.StatusCode, raw)
		c.logger.Error("analysis service error", zap.Int("status", resp.StatusCode), zap.String("code", e.Code), zap.String("message", e.Message))
		return nil, e
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.External(apperr.CodeTransport, resp.StatusCode, "malformed response from analysis service", err)
	}
	c.logger.Info("analysis service responded",
		zap.Duration("latency", time.Since(start)),
		zap.String("model", payload.Model),
		zap.String("stop_reason", payload.StopReason),
	)
	return &payload, nil
}

func (c *Client) transportError(ctx context.Context, err error) *apperr.Error {
	if isTimeout(ctx, err) {
		c.logger.Error("analysis service timed out", zap.Duration("timeout", c.timeout), zap.Error(err))
		return apperr.External(apperr.CodeTimeout, 0, fmt.Sprintf("analysis service request timed out after %s", c.timeout), err)
	}
	c.logger.Error("analysis service unreachable", zap.Error(err))
	return apperr.External(apperr.CodeTransport, 0, "failed to call analysis service", err)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func classifyStatus(status int, body []byte) *apperr.Error {
	msg := http.StatusText(status)
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
	}
	message := fmt.Sprintf("analysis service error: status %d: %s", status, msg)

	var code string
	switch status {
	case http.StatusUnauthorized:
		code = apperr.CodeUnauthorized
	case http.StatusTooManyRequests:
		code = apperr.CodeRateLimited
	case http.StatusBadRequest:
		code = apperr.CodeBadRequest
	default:
		code = apperr.CodeOther
	}
	return apperr.External(code, status, message, nil)
}
