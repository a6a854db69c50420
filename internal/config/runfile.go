package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"video-transcriber/internal/domain"
)

// RunFile is a YAML manifest for a headless batch run.
type RunFile struct {
	Inputs   []string  `yaml:"inputs"`
	URLs     []string  `yaml:"urls"`
	URLFile  string    `yaml:"url_file"`
	Settings Overrides `yaml:"settings"`
}

// Overrides replaces individual saved settings for one run. Nil or empty
// fields keep the saved value.
type Overrides struct {
	ModelPath   string `yaml:"model_path"`
	OutputDir   string `yaml:"output_dir"`
	DownloadDir string `yaml:"download_dir"`
	Language    string `yaml:"language"`
	Provider    string `yaml:"summarizer_provider"`
	Model       string `yaml:"summarizer_model"`

	Timestamps *bool `yaml:"timestamps"`
	KeepAudio  *bool `yaml:"keep_audio"`
	ExportDocx *bool `yaml:"export_docx"`
	Summarize  *bool `yaml:"summarize"`
	Publish    *bool `yaml:"publish"`
	AutoDelete *bool `yaml:"auto_delete"`
	UseBrowser *bool `yaml:"use_browser"`

	DownloadOnly *bool `yaml:"download_only"`
}

// LoadRunFile reads and validates a manifest.
func LoadRunFile(path string) (RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunFile{}, err
	}

	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return RunFile{}, fmt.Errorf("parse run file %s: %w", path, err)
	}
	if err := rf.Validate(); err != nil {
		return RunFile{}, err
	}
	return rf, nil
}

// Validate requires at least one source of work.
func (rf *RunFile) Validate() error {
	rf.URLFile = strings.TrimSpace(rf.URLFile)
	if len(rf.Inputs) == 0 && len(rf.URLs) == 0 && rf.URLFile == "" {
		return fmt.Errorf("run file needs inputs, urls or url_file")
	}
	return nil
}

// Apply returns settings with the overrides applied.
func (o Overrides) Apply(s domain.Settings) domain.Settings {
	str := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	flag := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}

	str(&s.ModelPath, o.ModelPath)
	str(&s.OutputDir, o.OutputDir)
	str(&s.DownloadDir, o.DownloadDir)
	str(&s.Language, o.Language)
	str(&s.SummarizerProvider, o.Provider)
	str(&s.SummarizerModel, o.Model)

	flag(&s.Timestamps, o.Timestamps)
	flag(&s.KeepAudio, o.KeepAudio)
	flag(&s.ExportDocx, o.ExportDocx)
	flag(&s.Summarize, o.Summarize)
	flag(&s.Publish, o.Publish)
	flag(&s.AutoDelete, o.AutoDelete)
	flag(&s.UseBrowser, o.UseBrowser)
	flag(&s.DownloadOnly, o.DownloadOnly)
	return s
}
