package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"video-transcriber/internal/config"
	"video-transcriber/internal/domain"
)

// modelBaseURL hosts the ggml model files.
var modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

var whisperModelCatalog = []domain.WhisperModelOption{
	{ID: "tiny.en", Name: "Tiny (English)", FileName: "ggml-tiny.en.bin", SizeLabel: "~75 MB", English: true},
	{ID: "tiny", Name: "Tiny (Multilingual)", FileName: "ggml-tiny.bin", SizeLabel: "~75 MB"},
	{ID: "base.en", Name: "Base (English)", FileName: "ggml-base.en.bin", SizeLabel: "~142 MB", English: true},
	{ID: "base", Name: "Base (Multilingual)", FileName: "ggml-base.bin", SizeLabel: "~142 MB"},
	{ID: "small.en", Name: "Small (English)", FileName: "ggml-small.en.bin", SizeLabel: "~466 MB", English: true},
	{ID: "small", Name: "Small (Multilingual)", FileName: "ggml-small.bin", SizeLabel: "~466 MB"},
	{ID: "medium.en", Name: "Medium (English)", FileName: "ggml-medium.en.bin", SizeLabel: "~1.5 GB", English: true},
	{ID: "medium", Name: "Medium (Multilingual)", FileName: "ggml-medium.bin", SizeLabel: "~1.5 GB"},
	{ID: "large-v3", Name: "Large v3", FileName: "ggml-large-v3.bin", SizeLabel: "~2.9 GB"},
	{ID: "large-v3-turbo", Name: "Large v3 Turbo", FileName: "ggml-large-v3-turbo.bin", SizeLabel: "~1.6 GB"},
}

func modelURL(fileName string) string {
	return modelBaseURL + fileName
}

func localModelsDir() string {
	return filepath.Clean(filepath.Join(config.Dir(), "models"))
}

// GetWhisperModels returns the built-in model presets, marking the ones
// already present in a known model directory.
func (a *App) GetWhisperModels() []domain.WhisperModelOption {
	models := make([]domain.WhisperModelOption, len(whisperModelCatalog))
	copy(models, whisperModelCatalog)

	markDownloadedModels(models, resolveKnownModelDirs(a.currentSettings().ModelPath))
	return models
}

// DownloadWhisperModel downloads the selected model and points
// settings.ModelPath at it.
func (a *App) DownloadWhisperModel(modelID string) (domain.Settings, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		return domain.Settings{}, fmt.Errorf("model id is required")
	}

	model, found := getWhisperModelByID(id)
	if !found {
		return domain.Settings{}, fmt.Errorf("unknown model id: %s", id)
	}

	settings, err := a.GetSettings()
	if err != nil {
		return domain.Settings{}, err
	}

	downloadDir, err := resolveModelDownloadDirectory(settings.ModelPath)
	if err != nil {
		return domain.Settings{}, err
	}

	targetPath := filepath.Join(downloadDir, model.FileName)
	a.Logger.Info("downloading whisper model", "model", model.ID, "path", targetPath)
	if err := downloadURLToFile(targetPath, modelURL(model.FileName), modelDownloadTimeout); err != nil {
		return domain.Settings{}, fmt.Errorf("download model %s: %w", model.Name, err)
	}

	settings.ModelPath = targetPath
	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(settings)
	return settings, nil
}

func getWhisperModelByID(id string) (domain.WhisperModelOption, bool) {
	i := slices.IndexFunc(whisperModelCatalog, func(m domain.WhisperModelOption) bool { return m.ID == id })
	if i < 0 {
		return domain.WhisperModelOption{}, false
	}
	return whisperModelCatalog[i], true
}

// resolveModelDownloadDirectory returns the directory new models go into:
// the folder holding the default model under the current model path.
func resolveModelDownloadDirectory(modelPath string) (string, error) {
	plan, err := resolveModelDownloadPlan(modelPath)
	if err != nil {
		return "", err
	}
	return filepath.Dir(plan.targetFile), nil
}

// resolveKnownModelDirs returns the per-user models directory followed by
// the folder implied by modelPath, without duplicates.
func resolveKnownModelDirs(modelPath string) []string {
	dirs := []string{localModelsDir()}
	if dir, err := resolveModelDownloadDirectory(modelPath); err == nil {
		if dir = filepath.Clean(dir); !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// markDownloadedModels flags catalog entries whose file exists in one of
// dirs, recording the first match.
func markDownloadedModels(models []domain.WhisperModelOption, dirs []string) {
	for i := range models {
		for _, dir := range dirs {
			path := filepath.Join(dir, models[i].FileName)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				models[i].Downloaded, models[i].LocalPath = true, path
				break
			}
		}
	}
}
