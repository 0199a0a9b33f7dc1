// Package ollama talks to a local Ollama server: streamed text generation
// for the prompt pipeline and model listing for the CLI.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultTimeout = 120 * time.Second

	// FallbackModel is offered when the server cannot list its models.
	FallbackModel = "gemma3:27b"
)

// maxLineSize bounds a single NDJSON record.
const maxLineSize = 1 << 20

// Options are the sampling parameters sent with every generation call.
type Options struct {
	NumPredict  int     `json:"num_predict"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

type streamRecord struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ollama returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ollama returned status %d: %s", e.StatusCode, e.Body)
}

// Client is a minimal Ollama client. It is safe for sequential use and holds
// no per-call state.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a client for the server at baseURL. Each call is bounded
// by timeout in addition to the caller's context.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "ollama")),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate posts req and folds the streamed response fragments into one
// string. The body is consumed to completion before returning.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	text, err := Accumulate(resp.Body)
	if err != nil {
		return "", err
	}

	c.logger.Debug("generation finished",
		zap.String("model", req.Model),
		zap.Int("chars", len(text)),
		zap.Duration("latency", time.Since(start)))
	return text, nil
}

// Accumulate reads newline-delimited JSON records from r and concatenates
// their response fields in arrival order. Blank lines and lines that are not
// JSON objects are skipped. A record that fails to decode or that carries an
// error field aborts the stream.
func Accumulate(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var sb strings.Builder
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var rec streamRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return "", fmt.Errorf("failed to decode stream record: %w", err)
		}
		if rec.Error != "" {
			return "", fmt.Errorf("ollama stream error: %s", rec.Error)
		}
		sb.WriteString(rec.Response)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stream: %w", err)
	}
	return sb.String(), nil
}

// ListModels returns the names of the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", c.baseURL, err)
	}

	resp, err := api.NewClient(base, c.client).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// ModelsOrFallback never fails: an unreachable server or an empty catalog
// yields the single fallback model.
func (c *Client) ModelsOrFallback(ctx context.Context) []string {
	names, err := c.ListModels(ctx)
	if err != nil {
		c.logger.Warn("model listing failed, using fallback",
			zap.String("fallback", FallbackModel), zap.Error(err))
		return []string{FallbackModel}
	}
	if len(names) == 0 {
		return []string{FallbackModel}
	}
	return names
}
