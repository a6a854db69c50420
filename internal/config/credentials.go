package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"video-transcriber/internal/domain"
)

const (
	notionFile = "notion_config.txt"
	groqFile   = "groq_config.txt"
	geminiFile = "gemini_config.txt"
	// instagramFile holds the sessionid cookie and the account it belongs to.
	instagramFile = "instagram_config.txt"
)

// CredentialStore reads and writes the plaintext per-service credential
// files. Each file holds a secret on the first line followed by a secondary
// value (database id or a multi-line system prompt).
type CredentialStore struct {
	dir string
}

// NewCredentialStore creates a store rooted at dir.
func NewCredentialStore(dir string) *CredentialStore {
	return &CredentialStore{dir: dir}
}

// Load reads every credential file. Missing files yield empty fields.
func (s *CredentialStore) Load() (domain.Credentials, error) {
	var creds domain.Credentials
	var err error

	if creds.NotionToken, creds.NotionDatabaseID, err = s.read(notionFile); err != nil {
		return domain.Credentials{}, err
	}
	// The database id is a single line; anything after it is ignored.
	creds.NotionDatabaseID, _, _ = strings.Cut(creds.NotionDatabaseID, "\n")
	creds.NotionDatabaseID = strings.TrimSpace(creds.NotionDatabaseID)

	if creds.GroqAPIKey, creds.GroqPrompt, err = s.read(groqFile); err != nil {
		return domain.Credentials{}, err
	}
	if creds.GeminiAPIKey, creds.GeminiPrompt, err = s.read(geminiFile); err != nil {
		return domain.Credentials{}, err
	}
	if creds.InstagramSession, creds.InstagramUsername, err = s.read(instagramFile); err != nil {
		return domain.Credentials{}, err
	}
	creds.InstagramUsername, _, _ = strings.Cut(creds.InstagramUsername, "\n")
	return creds, nil
}

// SaveNotion writes the Notion token and database id.
func (s *CredentialStore) SaveNotion(token, databaseID string) error {
	return s.write(notionFile, token, databaseID)
}

// SaveInstagram writes the session cookie and, when known, its username.
func (s *CredentialStore) SaveInstagram(sessionID, username string) error {
	return s.write(instagramFile, sessionID, username)
}

// SaveSummarizer writes the API key and system prompt for a provider.
func (s *CredentialStore) SaveSummarizer(provider, apiKey, prompt string) error {
	switch provider {
	case domain.ProviderGroq:
		return s.write(groqFile, apiKey, prompt)
	case domain.ProviderGemini:
		return s.write(geminiFile, apiKey, prompt)
	default:
		return fmt.Errorf("unknown summarizer provider: %s", provider)
	}
}

func (s *CredentialStore) read(name string) (string, string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("read %s: %w", name, err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	first, rest, _ := strings.Cut(content, "\n")
	return strings.TrimSpace(first), strings.TrimSpace(rest), nil
}

func (s *CredentialStore) write(name, secret, secondary string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	body := strings.TrimSpace(secret) + "\n" + strings.TrimSpace(secondary)
	return os.WriteFile(filepath.Join(s.dir, name), []byte(body), 0o600)
}
