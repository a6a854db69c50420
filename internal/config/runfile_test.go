package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"video-transcriber/internal/domain"
)

func TestLoadRunFile(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "inputs and overrides",
			body: "inputs:\n  - /videos\nsettings:\n  summarize: true\n  output_dir: /out\n",
		},
		{
			name: "url file only",
			body: "url_file: urls.txt\n",
		},
		{
			name:    "no work",
			body:    "settings:\n  publish: true\n",
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			body:    "inputs: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "run.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadRunFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadRunFile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestOverridesApply checks nil toggles keep saved values.
func TestOverridesApply(t *testing.T) {
	on := true
	off := false
	base := domain.Settings{OutputDir: "/saved", Summarize: false, AutoDelete: true, Language: "en"}

	got := Overrides{OutputDir: " /run ", Summarize: &on, AutoDelete: &off}.Apply(base)
	if got.OutputDir != "/run" {
		t.Fatalf("output dir = %q, want /run", got.OutputDir)
	}
	if !got.Summarize || got.AutoDelete {
		t.Fatalf("toggles not applied: %+v", got)
	}
	if got.Language != "en" {
		t.Fatalf("language = %q, want saved value", got.Language)
	}
	if got.DownloadOnly {
		t.Fatal("download only should keep its saved value")
	}
	if !(Overrides{DownloadOnly: &on}).Apply(base).DownloadOnly {
		t.Fatal("download only override not applied")
	}
}

// TestSetupLoggerWithWritersFansOut checks both sinks receive records.
func TestSetupLoggerWithWritersFansOut(t *testing.T) {
	var text, jsonBuf bytes.Buffer
	logger := SetupLoggerWithWriters(&text, &jsonBuf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("batch started", "items", 3)

	if !strings.Contains(text.String(), "batch started") {
		t.Fatalf("text sink = %q", text.String())
	}
	if !strings.Contains(jsonBuf.String(), `"msg":"batch started"`) {
		t.Fatalf("json sink = %q", jsonBuf.String())
	}
	if strings.Contains(text.String(), "hidden") {
		t.Fatal("debug record should be filtered at info level")
	}
	if ParseLogLevel("WARN") != slog.LevelWarn || ParseLogLevel("bogus") != slog.LevelInfo {
		t.Fatal("unexpected log level parsing")
	}
}
