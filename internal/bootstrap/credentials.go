package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/notion"
	"video-transcriber/internal/summarize"
)

const connectionTestTimeout = 30 * time.Second

// GetCredentials returns the saved credential status.
func (a *App) GetCredentials() (domain.CredentialStatus, error) {
	creds, err := a.loadCredentials()
	if err != nil {
		return domain.CredentialStatus{}, err
	}
	return domain.CredentialStatus{
		NotionConfigured: creds.NotionToken != "" && creds.NotionDatabaseID != "",
		NotionDatabaseID: creds.NotionDatabaseID,
		GroqConfigured:   creds.GroqAPIKey != "",
		GroqPrompt:       creds.GroqPrompt,
		GeminiConfigured: creds.GeminiAPIKey != "",
		GeminiPrompt:     creds.GeminiPrompt,

		InstagramConfigured: creds.InstagramSession != "",
		InstagramUsername:   creds.InstagramUsername,
	}, nil
}

// SaveNotionCredentials writes the Notion token and database id.
func (a *App) SaveNotionCredentials(token, databaseID string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(databaseID) == "" {
		return errors.New("notion token and database ID are required")
	}
	if a.Credentials == nil {
		return errors.New("credential store is not configured")
	}
	if err := a.Credentials.SaveNotion(token, databaseID); err != nil {
		return fmt.Errorf("save notion credentials: %w", err)
	}
	a.refreshDiagnosticsFromSettings(a.currentSettings())
	return nil
}

// SaveSummarizerCredentials writes the API key and system prompt for
// provider. An empty provider means the configured one.
func (a *App) SaveSummarizerCredentials(provider, apiKey, prompt string) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("API key is required")
	}
	if a.Credentials == nil {
		return errors.New("credential store is not configured")
	}
	provider = a.resolveProvider(provider)
	if err := a.Credentials.SaveSummarizer(provider, apiKey, prompt); err != nil {
		return fmt.Errorf("save %s credentials: %w", provider, err)
	}
	a.refreshDiagnosticsFromSettings(a.currentSettings())
	return nil
}

// TestNotion checks the saved Notion token against the API.
func (a *App) TestNotion() error {
	creds, err := a.loadCredentials()
	if err != nil {
		return err
	}
	client := notion.New(nil, a.Logger)
	client.SetToken(creds.NotionToken)
	client.SetDatabaseID(creds.NotionDatabaseID)

	ctx, cancel := context.WithTimeout(a.lifetime, connectionTestTimeout)
	defer cancel()
	return client.TestConnection(ctx)
}

// TestSummarizer checks the saved API key for provider.
func (a *App) TestSummarizer(provider string) error {
	creds, err := a.loadCredentials()
	if err != nil {
		return err
	}
	client, err := newSummarizer(a.resolveProvider(provider), creds, a.Logger)
	if err != nil {
		return err
	}
	if !client.Configured() {
		return summarize.ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(a.lifetime, connectionTestTimeout)
	defer cancel()
	return client.TestConnection(ctx)
}

func (a *App) loadCredentials() (domain.Credentials, error) {
	if a.Credentials == nil {
		return domain.Credentials{}, nil
	}
	creds, err := a.Credentials.Load()
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("load credentials: %w", err)
	}
	return creds, nil
}

func (a *App) resolveProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != "" {
		return provider
	}
	if p := a.currentSettings().SummarizerProvider; p != "" {
		return p
	}
	return domain.ProviderGroq
}

func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Settings
}
