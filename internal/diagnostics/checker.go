// Package diagnostics checks the external tools, paths and credentials a
// batch run depends on.
package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/transcribe"
)

// Check ids shared with the fix action and the front ends.
const (
	IDFFmpeg      = "tool_ffmpeg"
	IDFFprobe     = "tool_ffprobe"
	IDWhisper     = "tool_whisper"
	IDBrowser     = "tool_browser"
	IDModelPath   = "model_path"
	IDOutputDir   = "output_dir"
	IDDownloadDir = "download_dir"
	IDSummarizer  = "summarizer_credentials"
	IDNotion      = "notion_credentials"
)

// browserCandidates are the Chrome binaries chromedp can drive.
var browserCandidates = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}

// Checker validates external tools, filesystem paths and credentials.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// Run executes all checks and returns a combined report. Credential and
// browser checks only warn, and only for features that are enabled.
func (c *Checker) Run(settings domain.Settings, creds domain.Credentials) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool(IDFFmpeg, "ffmpeg", orDefault(settings.FFmpegPath, "ffmpeg")),
		c.checkTool(IDFFprobe, "ffprobe", "ffprobe"),
		c.checkTool(IDWhisper, "whisper.cpp", orDefault(settings.WhisperPath, "whisper-cli")),
		c.checkModelPath(settings.ModelPath),
		c.checkWritableDir(IDOutputDir, "Output directory", settings.OutputDir, domain.DiagnosticStatusFail),
		c.checkWritableDir(IDDownloadDir, "Download directory", settings.DownloadDir, domain.DiagnosticStatusWarn),
	}
	if settings.UseBrowser {
		items = append(items, c.checkBrowser())
	}
	if settings.Summarize {
		items = append(items, checkSummarizer(settings.SummarizerProvider, creds))
	}
	if settings.Publish {
		items = append(items, checkNotion(creds))
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies an executable resolves, either as a path or on PATH.
func (c *Checker) checkTool(id, name, binary string) domain.DiagnosticItem {
	path, err := c.lookPath(binary)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      id,
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found: %s", binary),
			Hint:    "Use Fix to install it with the system package manager, then restart the application.",
			Fixable: true,
		}
	}

	return domain.DiagnosticItem{
		ID:      id,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

func (c *Checker) checkBrowser() domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: IDBrowser, Name: "Headless browser"}
	for _, name := range browserCandidates {
		if path, err := c.lookPath(name); err == nil {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Found at %s", path)
			return item
		}
	}
	item.Status = domain.DiagnosticStatusWarn
	item.Message = "No Chrome or Chromium binary found."
	item.Hint = "Install Chrome to download posts whose pages need JavaScript, or disable the browser fallback."
	return item
}

// checkModelPath validates configured model file or model directory.
func (c *Checker) checkModelPath(modelPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDModelPath,
		Name: "Model path",
	}

	if strings.TrimSpace(modelPath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Model path is empty."
		item.Hint = "Set a valid model file path or a directory containing whisper models."
		return item
	}

	info, err := c.stat(modelPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Model path does not exist: %s", modelPath)
		} else {
			item.Message = fmt.Sprintf("Cannot access model path: %s", modelPath)
		}
		item.Hint = "Download a whisper.cpp model from the model catalog or configure the path in settings."
		return item
	}

	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Model file found: %s", modelPath)
		return item
	}

	entries, err := c.readDir(modelPath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read model directory: %s", modelPath)
		item.Hint = "Check permissions for the model directory."
		return item
	}

	for _, entry := range entries {
		if !entry.IsDir() && transcribe.IsModelFile(entry.Name()) {
			item.Status = domain.DiagnosticStatusPass
			item.Message = fmt.Sprintf("Model directory is valid: %s", modelPath)
			return item
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No model files found in directory: %s", modelPath)
	item.Hint = "Place a .bin or .gguf model file in this directory or point to a model file directly."
	return item
}

// checkWritableDir validates existence and write access. An empty path
// reports failStatus.
func (c *Checker) checkWritableDir(id, name, dir string, failStatus domain.DiagnosticStatus) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: id, Name: name}

	if strings.TrimSpace(dir) == "" {
		item.Status = failStatus
		item.Message = name + " is empty."
		item.Hint = "Choose a directory in settings."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = failStatus
		item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = failStatus
		item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

func checkSummarizer(provider string, creds domain.Credentials) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: IDSummarizer, Name: "Summarizer API key"}
	key := creds.GroqAPIKey
	if provider == domain.ProviderGemini {
		key = creds.GeminiAPIKey
	}
	if strings.TrimSpace(key) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = fmt.Sprintf("No API key saved for %s.", orDefault(provider, domain.ProviderGroq))
		item.Hint = "Save an API key in settings or disable summarization."
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = "API key configured."
	return item
}

func checkNotion(creds domain.Credentials) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: IDNotion, Name: "Notion credentials"}
	if strings.TrimSpace(creds.NotionToken) == "" || strings.TrimSpace(creds.NotionDatabaseID) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Notion token or database ID is missing."
		item.Hint = "Save Notion credentials in settings or disable publishing."
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = "Notion credentials configured."
	return item
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		now:        time.Now,
	}
}
