// Package notion publishes transcripts as pages in a Notion database.
package notion

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
	"sync"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/httpx"
)

const (
	BaseURL    = "https://api.notion.com"
	APIVersion = "2022-06-28"
)

var (
	// ErrNotConfigured is returned when the token or database id is missing.
	ErrNotConfigured = errors.New("notion API token or database ID is not set")
	// ErrTranscriptTooShort is returned before any request for near-empty transcripts.
	ErrTranscriptTooShort = errors.New("transcript is too short to publish")
)

// Client is a minimal Notion API client. Requests are never retried.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	logger  *slog.Logger

	mu         sync.Mutex
	token      string
	databaseID string
}

// New creates a client using httpClient, or a non-retrying default.
func New(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = httpx.NewClient(httpx.Options{NoRetry: true})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{BaseURL: BaseURL, HTTP: httpClient, logger: logger}
}

// SetToken replaces the integration token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// SetDatabaseID replaces the target database.
func (c *Client) SetDatabaseID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.databaseID = strings.TrimSpace(id)
}

// Configured reports whether both token and database id are set.
func (c *Client) Configured() bool {
	token, db := c.credentials()
	return token != "" && db != ""
}

// TestConnection checks the token against /v1/users/me.
func (c *Client) TestConnection(ctx context.Context) error {
	token, _ := c.credentials()
	if token == "" {
		return ErrNotConfigured
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/users/me", token, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notion connection: %w", err)
	}
	defer resp.Body.Close()
	return httpx.CheckResponse("notion", resp, http.StatusOK)
}

// Publish creates one page for p. Blocks past the per-request limit are
// appended to the new page in follow-up calls.
func (c *Client) Publish(ctx context.Context, p Page) error {
	token, db := c.credentials()
	if token == "" || db == "" {
		return ErrNotConfigured
	}
	if len([]rune(strings.TrimSpace(p.Transcript))) < domain.MinTranscriptChars {
		return ErrTranscriptTooShort
	}

	page := buildRequest(db, p)
	batches := splitChildren(&page)

	var created struct {
		ID string `json:"id"`
	}
	if err := c.send(ctx, http.MethodPost, "/v1/pages", token, page, &created); err != nil {
		return err
	}
	if len(batches) > 0 && created.ID == "" {
		return errors.New("notion response did not include a page id")
	}
	for i, children := range batches {
		path := "/v1/blocks/" + created.ID + "/children"
		if err := c.send(ctx, http.MethodPatch, path, token, appendRequest{Children: children}, nil); err != nil {
			return fmt.Errorf("append blocks (batch %d of %d): %w", i+1, len(batches), err)
		}
	}
	c.logger.Info("published notion page", "title", p.Title(), "append_batches", len(batches))
	return nil
}

// send posts payload and decodes the response into out when out is non-nil.
func (c *Client) send(ctx context.Context, method, path, token string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notion request: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("notion request: %w", err)
	}
	defer resp.Body.Close()
	if err := httpx.CheckResponse("notion", resp, http.StatusOK); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode notion response: %w", err)
	}
	return nil
}

func (c *Client) credentials() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.databaseID
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body []byte) (*http.Request, error) {
	base := c.BaseURL
	if base == "" {
		base = BaseURL
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
