package config

import (
	"os"
	"path/filepath"
	"strings"

	"video-transcriber/internal/domain"
)

// HomeEnv overrides the per-user configuration directory.
const HomeEnv = "VIDEO_TRANSCRIBER_HOME"

// Dir returns the per-user configuration directory.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(HomeEnv)); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".video-transcriber")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelPath:          filepath.Join(Dir(), "models"),
		OutputDir:          filepath.Join(homeDir, "Documents", "Transcripts"),
		DownloadDir:        filepath.Join(homeDir, "Downloads", "InstagramVideos"),
		Language:           "auto",
		FFmpegPath:         "ffmpeg",
		WhisperPath:        "whisper-cli",
		SummarizerProvider: domain.ProviderGroq,
		LogLevel:           "info",
	}
}

// ApplyDefaults fills empty fields of settings from DefaultSettings.
// Boolean toggles are left untouched.
func ApplyDefaults(settings domain.Settings) domain.Settings {
	def := DefaultSettings()
	fill := func(dst *string, fallback string) {
		*dst = strings.TrimSpace(*dst)
		if *dst == "" {
			*dst = fallback
		}
	}
	fill(&settings.ModelPath, def.ModelPath)
	fill(&settings.OutputDir, def.OutputDir)
	fill(&settings.DownloadDir, def.DownloadDir)
	fill(&settings.Language, def.Language)
	fill(&settings.FFmpegPath, def.FFmpegPath)
	fill(&settings.WhisperPath, def.WhisperPath)
	fill(&settings.SummarizerProvider, def.SummarizerProvider)
	fill(&settings.LogLevel, def.LogLevel)
	settings.SummarizerModel = strings.TrimSpace(settings.SummarizerModel)
	settings.SummarizerProvider = strings.ToLower(settings.SummarizerProvider)
	return settings
}
