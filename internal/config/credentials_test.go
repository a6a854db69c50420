package config

import (
	"os"
	"path/filepath"
	"testing"

	"video-transcriber/internal/domain"
)

// TestCredentialStoreMissingFilesAreEmpty checks first-run behavior.
func TestCredentialStoreMissingFilesAreEmpty(t *testing.T) {
	creds, err := NewCredentialStore(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds != (domain.Credentials{}) {
		t.Fatalf("creds = %+v, want empty", creds)
	}
}

// TestCredentialStoreMultiLinePrompt checks the prompt keeps inner newlines.
func TestCredentialStoreMultiLinePrompt(t *testing.T) {
	dir := t.TempDir()
	store := NewCredentialStore(dir)
	prompt := "You are a helper.\n1. Summarize\n2. Title"

	if err := store.SaveSummarizer(domain.ProviderGroq, "gsk_123", prompt); err != nil {
		t.Fatalf("SaveSummarizer() error = %v", err)
	}
	if err := store.SaveNotion("secret_abc", "db-42"); err != nil {
		t.Fatalf("SaveNotion() error = %v", err)
	}

	creds, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds.GroqAPIKey != "gsk_123" || creds.GroqPrompt != prompt {
		t.Fatalf("groq creds = %q / %q", creds.GroqAPIKey, creds.GroqPrompt)
	}
	if creds.NotionToken != "secret_abc" || creds.NotionDatabaseID != "db-42" {
		t.Fatalf("notion creds = %q / %q", creds.NotionToken, creds.NotionDatabaseID)
	}

	info, err := os.Stat(filepath.Join(dir, notionFile))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("perm = %v, want 0600", info.Mode().Perm())
	}
}

// TestCredentialStoreReadsWindowsLineEndings checks CRLF files from older installs.
func TestCredentialStoreReadsWindowsLineEndings(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, notionFile), []byte("tok\r\ndb\r\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	creds, err := NewCredentialStore(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds.NotionToken != "tok" || creds.NotionDatabaseID != "db" {
		t.Fatalf("notion creds = %q / %q", creds.NotionToken, creds.NotionDatabaseID)
	}
}

// TestCredentialStoreRejectsUnknownProvider checks provider validation.
func TestCredentialStoreRejectsUnknownProvider(t *testing.T) {
	if err := NewCredentialStore(t.TempDir()).SaveSummarizer("openai", "k", ""); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

// TestCredentialStoreInstagramSession round-trips the cookie and username.
func TestCredentialStoreInstagramSession(t *testing.T) {
	store := NewCredentialStore(t.TempDir())
	if err := store.SaveInstagram(" abc%3A123 ", ""); err != nil {
		t.Fatalf("SaveInstagram() error = %v", err)
	}
	creds, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds.InstagramSession != "abc%3A123" || creds.InstagramUsername != "" {
		t.Fatalf("instagram creds = %q / %q", creds.InstagramSession, creds.InstagramUsername)
	}

	if err := store.SaveInstagram(creds.InstagramSession, "catlover"); err != nil {
		t.Fatalf("SaveInstagram() error = %v", err)
	}
	if creds, _ = store.Load(); creds.InstagramUsername != "catlover" {
		t.Fatalf("username = %q, want catlover", creds.InstagramUsername)
	}
}
