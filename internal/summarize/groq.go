package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"video-transcriber/internal/httpx"
)

const (
	GroqBaseURL      = "https://api.groq.com/openai/v1"
	GroqDefaultModel = "llama-3.3-70b-versatile"
)

// Groq talks to the OpenAI-compatible Groq chat completions API.
type Groq struct {
	BaseURL string
	HTTP    *http.Client
}

// NewGroq creates a backend using client, or a non-retrying default.
// Retries are owned by Client.
func NewGroq(client *http.Client) *Groq {
	if client == nil {
		client = httpx.NewClient(httpx.Options{NoRetry: true})
	}
	return &Groq{BaseURL: GroqBaseURL, HTTP: client}
}

// Name identifies the provider.
func (g *Groq) Name() string { return "groq" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete posts one chat completion requesting a JSON object.
func (g *Groq) Complete(ctx context.Context, apiKey, model, systemPrompt, transcript string) (string, error) {
	if model == "" {
		model = GroqDefaultModel
	}
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Here is the transcript to process:\n\n" + transcript},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url("/chat/completions"), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq request: %w", err)
	}
	defer resp.Body.Close()
	if err := httpx.CheckResponse("groq", resp, http.StatusOK); err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode groq response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("groq response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Test lists models to validate the key.
func (g *Groq) Test(ctx context.Context, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url("/models"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("groq connection: %w", err)
	}
	defer resp.Body.Close()
	return httpx.CheckResponse("groq", resp, http.StatusOK)
}

func (g *Groq) url(path string) string {
	base := g.BaseURL
	if base == "" {
		base = GroqBaseURL
	}
	return strings.TrimRight(base, "/") + path
}
