package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"video-transcriber/internal/diagnostics"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/httpx"
	"video-transcriber/internal/transcribe"
)

const (
	defaultWhisperModelFilename = "ggml-base.en.bin"

	modelDownloadTimeout = 45 * time.Minute
)

// ErrRestartRequired accompanies a finished install attempt.
var ErrRestartRequired = errors.New("restart the application to pick up newly installed tools")

// whisperCandidates are the executable names whisper.cpp installs under.
var whisperCandidates = []string{"whisper-cli", "whisper-cpp", "whisper.cpp", "main"}

type modelDownloadPlan struct {
	targetFile   string
	settingsPath string
}

// InstallOrFixDiagnostic applies a remediation for one failed diagnostic
// item. Tools get a single package manager attempt per session; after it
// the caller is asked to restart.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.GetSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.IDFFmpeg, diagnostics.IDFFprobe:
		fixErr = a.installOnce("ffmpeg")
	case diagnostics.IDWhisper:
		fixErr = a.installOnce("whisper.cpp")
		if path, ok := findWhisperBinary(); ok && path != settings.WhisperPath {
			settings.WhisperPath = path
			settingsChanged = true
		}
	case diagnostics.IDModelPath:
		settings, settingsChanged, fixErr = installOrFixModelPath(settings)
	case diagnostics.IDOutputDir:
		fixErr = installOrFixDir(settings.OutputDir)
	case diagnostics.IDDownloadDir:
		fixErr = installOrFixDir(settings.DownloadDir)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	return report, fixErr
}

// installOnce runs the package manager install for tool the first time it
// is requested and reports ErrRestartRequired afterwards.
func (a *App) installOnce(tool string) error {
	a.mu.Lock()
	if a.fixAttempts == nil {
		a.fixAttempts = make(map[string]bool)
	}
	attempted := a.fixAttempts[tool]
	a.fixAttempts[tool] = true
	a.mu.Unlock()

	if attempted {
		return fmt.Errorf("automatic install of %s was already attempted; install it manually, then %w", tool, ErrRestartRequired)
	}

	a.Logger.Info("installing tool", "tool", tool, "os", a.installer.goos)
	if err := a.installer.install(tool); err != nil {
		return fmt.Errorf("install %s: %w; install it manually, then %w", tool, err, ErrRestartRequired)
	}
	return fmt.Errorf("%s installed: %w", tool, ErrRestartRequired)
}

// findWhisperBinary returns the first whisper.cpp executable on PATH.
func findWhisperBinary() (string, bool) {
	for _, name := range whisperCandidates {
		if _, err := exec.LookPath(name); err == nil {
			return name, true
		}
	}
	return "", false
}

// downloadURLToFile streams sourceURL into destinationPath through a
// temporary file so a failed download never leaves a partial model.
func downloadURLToFile(destinationPath, sourceURL string, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	client := httpx.NewClient(httpx.Options{Timeout: timeout})
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()
	if err := httpx.CheckResponse("download", resp, http.StatusOK); err != nil {
		return err
	}

	tmpPath := destinationPath + ".download"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w", errors.Join(copyErr, closeErr))
	}

	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}
	return nil
}

func installOrFixModelPath(settings domain.Settings) (domain.Settings, bool, error) {
	plan, err := resolveModelDownloadPlan(settings.ModelPath)
	if err != nil {
		return settings, false, err
	}

	if err := downloadURLToFile(plan.targetFile, modelURL(defaultWhisperModelFilename), modelDownloadTimeout); err != nil {
		return settings, false, fmt.Errorf("download model: %w", err)
	}

	changed := strings.TrimSpace(settings.ModelPath) != plan.settingsPath
	settings.ModelPath = plan.settingsPath
	return settings, changed, nil
}

// resolveModelDownloadPlan picks where the default model goes: into a
// configured directory, over a configured model file, or into the per-user
// models directory.
func resolveModelDownloadPlan(modelPath string) (modelDownloadPlan, error) {
	trimmed := strings.TrimSpace(modelPath)
	if trimmed == "" {
		dir := localModelsDir()
		return modelDownloadPlan{
			targetFile:   filepath.Join(dir, defaultWhisperModelFilename),
			settingsPath: dir,
		}, nil
	}

	info, err := os.Stat(trimmed)
	switch {
	case err == nil && info.IsDir():
		return modelDownloadPlan{targetFile: filepath.Join(trimmed, defaultWhisperModelFilename), settingsPath: trimmed}, nil
	case err == nil && !transcribe.IsModelFile(trimmed):
		return modelDownloadPlan{}, fmt.Errorf("model path points to a non-model file: %s", trimmed)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return modelDownloadPlan{}, fmt.Errorf("check model path: %w", err)
	}

	if transcribe.IsModelFile(trimmed) {
		return modelDownloadPlan{targetFile: trimmed, settingsPath: trimmed}, nil
	}
	return modelDownloadPlan{targetFile: filepath.Join(trimmed, defaultWhisperModelFilename), settingsPath: trimmed}, nil
}

func installOrFixDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("directory is not configured; choose one in settings")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
