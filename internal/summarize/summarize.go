// Package summarize turns transcripts into a title and summary through a
// chat-completion service, with bounded retries and a failure report.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"video-transcriber/internal/domain"
)

// DefaultSystemPrompt is used when no custom prompt is configured.
const DefaultSystemPrompt = `You are an expert at summarizing video transcripts. Given a transcript text:
1. Create a clear, concise title that accurately represents the core content
2. Summarize the key points in plain language without jargon
3. Be straightforward and avoid clickbait language
4. Don't leave out important details from the transcript
5. Format your response as JSON with "title" and "summary" fields`

const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = 2 * time.Second
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("summarizer API key is not set")
	// ErrTranscriptTooShort is returned before any network call.
	ErrTranscriptTooShort = errors.New("transcript is too short to summarize")
	// ErrMissingFields marks a response without title or summary.
	ErrMissingFields = errors.New("response is missing required fields")
)

// Backend is one chat-completion provider.
type Backend interface {
	Name() string
	// Complete returns the raw JSON content produced for the transcript.
	Complete(ctx context.Context, apiKey, model, systemPrompt, transcript string) (string, error)
	Test(ctx context.Context, apiKey string) error
}

// Failure is one summarization that exhausted its retries.
type Failure struct {
	File      string    `json:"file"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Client wraps a Backend with credentials, retries and failure tracking.
type Client struct {
	backend Backend
	logger  *slog.Logger

	MaxRetries int
	RetryDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu       sync.Mutex
	apiKey   string
	prompt   string
	model    string
	failures []Failure
}

// New creates a client for backend.
func New(backend Backend, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend:    backend,
		logger:     logger,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		sleep:      sleepContext,
		now:        time.Now,
	}
}

// Provider returns the backend name.
func (c *Client) Provider() string {
	return c.backend.Name()
}

// SetAPIKey sets or replaces the API key.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = strings.TrimSpace(key)
}

// SetSystemPrompt sets the prompt; empty restores the default.
func (c *Client) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = strings.TrimSpace(prompt)
}

// SetModel overrides the provider's default model.
func (c *Client) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = strings.TrimSpace(model)
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apiKey != ""
}

// TestConnection performs a cheap authenticated call.
func (c *Client) TestConnection(ctx context.Context) error {
	key, _, _ := c.settings()
	if key == "" {
		return ErrNotConfigured
	}
	return c.backend.Test(ctx, key)
}

// Summarize returns a title and summary for transcript. Short transcripts
// are rejected immediately. Transport errors, bad statuses, malformed JSON
// and missing fields are retried MaxRetries times; when retries run out
// one Failure is recorded for source.
func (c *Client) Summarize(ctx context.Context, source, transcript string) (domain.Summary, error) {
	key, prompt, model := c.settings()
	if key == "" {
		return domain.Summary{}, ErrNotConfigured
	}

	text := strings.TrimSpace(transcript)
	if len([]rune(text)) < domain.MinTranscriptChars {
		return domain.Summary{}, ErrTranscriptTooShort
	}

	attempts := c.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.Warn("retrying summarization", "provider", c.backend.Name(), "file", source, "attempt", attempt, "error", lastErr)
			if err := c.sleep(ctx, c.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}

		content, err := c.backend.Complete(ctx, key, model, prompt, text)
		if err == nil {
			var summary domain.Summary
			if summary, err = parseSummary(content); err == nil {
				return summary, nil
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() == nil {
		c.recordFailure(source, lastErr)
	}
	return domain.Summary{}, fmt.Errorf("%s summarization failed: %w", c.backend.Name(), lastErr)
}

// Failures returns a copy of recorded failures.
func (c *Client) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Failure(nil), c.failures...)
}

// ResetFailures clears recorded failures.
func (c *Client) ResetFailures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = nil
}

// SaveFailureReport writes recorded failures to dir and clears them. It
// returns "" when there is nothing to report.
func (c *Client) SaveFailureReport(dir string) (string, error) {
	c.mu.Lock()
	failures := append([]Failure(nil), c.failures...)
	c.mu.Unlock()
	if len(failures) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarization Failures Report - %s\n", c.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Provider: %s\n", c.backend.Name())
	fmt.Fprintf(&b, "Total failures: %d\n\n", len(failures))
	for i, f := range failures {
		fmt.Fprintf(&b, "%d. File: %s\n   Time: %s\n   Error: %s\n\n", i+1, f.File, f.Timestamp.Format("2006-01-02 15:04:05"), f.Error)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "summarization_errors_"+c.now().Format("20060102_150405")+".txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}

	c.ResetFailures()
	return path, nil
}

func (c *Client) settings() (key, prompt, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prompt = c.prompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return c.apiKey, prompt, c.model
}

func (c *Client) recordFailure(source string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, Failure{File: source, Error: msg, Timestamp: c.now()})
}

// parseSummary decodes the model's JSON content.
func parseSummary(content string) (domain.Summary, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw struct {
		Title   *string `json:"title"`
		Summary *string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return domain.Summary{}, fmt.Errorf("parse response as JSON: %w", err)
	}
	if raw.Title == nil || raw.Summary == nil {
		return domain.Summary{}, ErrMissingFields
	}
	s := domain.Summary{Title: strings.TrimSpace(*raw.Title), Summary: strings.TrimSpace(*raw.Summary)}
	if s.Empty() {
		return domain.Summary{}, ErrMissingFields
	}
	return s, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForProvider returns the backend for a provider name.
func ForProvider(provider string, groq *Groq) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", domain.ProviderGroq:
		if groq == nil {
			groq = NewGroq(nil)
		}
		return groq, nil
	case domain.ProviderGemini:
		return NewGemini(), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider: %s", provider)
	}
}
