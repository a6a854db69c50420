package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"video-transcriber/internal/batch"
	"video-transcriber/internal/config"
	"video-transcriber/internal/diagnostics"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/history"
	"video-transcriber/internal/instagram"
	"video-transcriber/internal/jobs"
	"video-transcriber/internal/notion"
	"video-transcriber/internal/summarize"
	"video-transcriber/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// EventName is the runtime event carrying batch events to the desktop UI.
const EventName = "batch:event"

var videoDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Video files",
		Pattern:     "*.mp4;*.mov;*.avi;*.mkv;*.webm;*.m4v;*.flv;*.wmv",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var modelDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Whisper models",
		Pattern:     "*.bin;*.gguf",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var urlFileDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Text files",
		Pattern:     "*.txt",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// DepsFunc builds the batch collaborators for one run.
type DepsFunc func(settings domain.Settings, creds domain.Credentials) batch.Deps

// App wires configuration, credentials, the batch runner and UI runtime
// callbacks. Both front ends drive the same App.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Credentials *config.CredentialStore
	Jobs        *jobs.Manager
	Ledger      *history.Store
	Diagnostics domain.DiagnosticReport
	Logger      *slog.Logger

	assets     fs.FS
	checker    *diagnostics.Checker
	gate       *transcribe.Gate
	dispatcher *jobs.Dispatcher
	events     *jobs.EventBus
	buildDeps  DepsFunc
	installer  *installer
	// newSession opens the saved-posts client for a sessionid cookie.
	newSession func(sessionID string) *instagram.Session

	// lifetime ends on Close; batches run under it so shutdown interrupts
	// in-flight external calls.
	lifetime context.Context
	stop     context.CancelFunc

	mu          sync.Mutex
	runner      *batch.Runner
	runtimeCtx  context.Context
	fixAttempts map[string]bool

	closeOnce sync.Once
	closeErr  error
}

// New builds the application with persisted settings and startup diagnostics.
func New(logger *slog.Logger) (*App, error) {
	return NewWithAssets(nil, logger)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dir := config.Dir()
	if err := ensureLocalBinOnPATH(dir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(dir, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	historyStore, err := history.Open(filepath.Join(dir, history.FileName))
	if err != nil {
		logger.Warn("history disabled", "error", err)
		historyStore = nil
	}

	a := newApp(store, config.NewCredentialStore(dir), logger)
	a.Settings = settings
	a.Ledger = historyStore
	a.assets = assets
	a.checker = diagnostics.NewChecker()

	creds, err := a.Credentials.Load()
	if err != nil {
		logger.Warn("read credentials", "error", err)
	}
	a.Diagnostics = a.checker.Run(settings, creds)
	return a, nil
}

// newApp builds an App with in-memory plumbing and production adapters.
func newApp(store config.Store, creds *config.CredentialStore, logger *slog.Logger) *App {
	lifetime, stop := context.WithCancel(context.Background())
	a := &App{
		Store:       store,
		Credentials: creds,
		Jobs:        jobs.NewManager(),
		Logger:      logger,
		gate:        transcribe.NewGate(),
		dispatcher:  jobs.NewDispatcher(logger),
		events:      jobs.NewEventBus(1000),
		installer:   newInstaller(),
		lifetime:    lifetime,
		stop:        stop,
	}
	a.buildDeps = a.productionDeps
	a.newSession = func(sessionID string) *instagram.Session {
		return instagram.NewSession(nil, sessionID, logger)
	}
	return a
}

// Close cancels running work and releases resources. Later calls return
// the first result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.stop()
		a.dispatcher.Close()
		if a.Ledger != nil {
			a.closeErr = a.Ledger.Close()
		}
	})
	return a.closeErr
}

// Events exposes the event bus to the web front end.
func (a *App) Events() *jobs.EventBus {
	return a.events
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Video Transcriber",
		Width:       1180,
		Height:      820,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			a.runtimeCtx = nil
			a.mu.Unlock()
			if err := a.Close(); err != nil {
				a.Logger.Warn("shutdown", "error", err)
			}
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// productionDeps wires the real adapters for settings and creds.
func (a *App) productionDeps(settings domain.Settings, creds domain.Credentials) batch.Deps {
	deps := batch.Deps{
		Transcriber: transcribe.NewSerial(transcribe.NewPipeline(settings.FFmpegPath, settings.WhisperPath), a.gate),
		History:     a.recorder(),
	}

	if client, err := newSummarizer(settings.SummarizerProvider, creds, a.Logger); err == nil {
		client.SetModel(settings.SummarizerModel)
		deps.Summarizer = client
	} else {
		a.Logger.Warn("summarizer unavailable", "error", err)
	}

	publisher := notion.New(nil, a.Logger)
	publisher.SetToken(creds.NotionToken)
	publisher.SetDatabaseID(creds.NotionDatabaseID)
	deps.Publisher = publisher

	var browser instagram.Renderer
	if settings.UseBrowser {
		browser = instagram.NewChromeRenderer()
	}
	downloader := instagram.NewDownloader(nil, browser, a.Logger)
	downloader.SessionID = creds.InstagramSession
	deps.Downloader = downloader
	return deps
}

// recorder avoids handing the runner a typed nil.
func (a *App) recorder() history.Recorder {
	if a.Ledger == nil {
		return nil
	}
	return a.Ledger
}

// newSummarizer builds a client for provider with the saved key and prompt.
func newSummarizer(provider string, creds domain.Credentials, logger *slog.Logger) (*summarize.Client, error) {
	backend, err := summarize.ForProvider(provider, nil)
	if err != nil {
		return nil, err
	}
	client := summarize.New(backend, logger)
	switch backend.Name() {
	case domain.ProviderGemini:
		client.SetAPIKey(creds.GeminiAPIKey)
		client.SetSystemPrompt(creds.GeminiPrompt)
	default:
		client.SetAPIKey(creds.GroqAPIKey)
		client.SetSystemPrompt(creds.GroqPrompt)
	}
	return client, nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// PickInputFiles opens a native dialog for selecting one or more videos.
func (a *App) PickInputFiles() ([]string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}
	return wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select video files",
		Filters: videoDialogFilter,
	})
}

// PickInputDirectory opens a native directory picker for a folder of videos.
func (a *App) PickInputDirectory() (string, error) {
	return a.pickDirectory("Select folder with videos")
}

// PickURLFile opens a native dialog for a text file of post URLs.
func (a *App) PickURLFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}
	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select URL list",
		Filters: urlFileDialogFilter,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(path), nil
}

// PickModelFile opens a native file dialog for whisper model selection.
func (a *App) PickModelFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select whisper model",
		Filters: modelDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	return a.pickDirectory("Select model directory")
}

// PickOutputDirectory opens a native directory picker for transcript exports.
func (a *App) PickOutputDirectory() (string, error) {
	return a.pickDirectory("Select output directory")
}

// PickDownloadDirectory opens a native directory picker for downloaded posts.
func (a *App) PickDownloadDirectory() (string, error) {
	return a.pickDirectory("Select download directory")
}

func (a *App) pickDirectory(title string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.GetSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// refreshDiagnosticsFromSettings caches settings and reruns the checker.
func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	var creds domain.Credentials
	if a.Credentials != nil {
		loaded, err := a.Credentials.Load()
		if err != nil {
			a.Logger.Warn("read credentials", "error", err)
		}
		creds = loaded
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings, creds)
	}
	return a.Diagnostics
}

// History returns the most recent processed items, newest first.
func (a *App) History(limit int) ([]domain.HistoryEntry, error) {
	if a.Ledger == nil {
		return nil, nil
	}
	return a.Ledger.List(context.Background(), limit)
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and fills defaults for empty fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	return config.ApplyDefaults(settings)
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
