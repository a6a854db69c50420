package summarize

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiDefaultModel is used when no summarizer model is configured.
const GeminiDefaultModel = "gemini-2.5-flash"

// Gemini uses the Google GenAI SDK against the Gemini API.
type Gemini struct{}

// NewGemini creates the Gemini backend.
func NewGemini() *Gemini { return &Gemini{} }

// Name identifies the provider.
func (Gemini) Name() string { return "gemini" }

func (Gemini) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

// Complete asks for a JSON response with title and summary.
func (g Gemini) Complete(ctx context.Context, apiKey, model, systemPrompt, transcript string) (string, error) {
	if model == "" {
		model = GeminiDefaultModel
	}
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	result, err := client.Models.GenerateContent(ctx, model, genai.Text("Here is the transcript to process:\n\n"+transcript), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		var text strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				text.WriteString(part.Text)
			}
		}
		if text.Len() > 0 {
			return text.String(), nil
		}
	}
	return "", fmt.Errorf("empty response from Gemini")
}

// Test lists models to validate the key.
func (g Gemini) Test(ctx context.Context, apiKey string) error {
	client, err := g.client(ctx, apiKey)
	if err != nil {
		return err
	}
	if _, err := client.Models.List(ctx, nil); err != nil {
		return fmt.Errorf("gemini connection: %w", err)
	}
	return nil
}
