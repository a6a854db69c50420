package domain

import "path/filepath"

// JobStatus tracks the lifecycle of the single active batch run.
type JobStatus string

const (
	JobStatusIdle       JobStatus = "idle"
	JobStatusRunning    JobStatus = "running"
	JobStatusCancelling JobStatus = "cancelling"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusFailed     JobStatus = "failed"
)

// MinTranscriptChars is the shortest transcript accepted by the summarizer and publisher.
const MinTranscriptChars = 10

// Summarizer providers.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ModelPath   string `json:"modelPath" yaml:"model_path"`
	OutputDir   string `json:"outputDir" yaml:"output_dir"`
	DownloadDir string `json:"downloadDir" yaml:"download_dir"`
	Language    string `json:"language" yaml:"language"`
	FFmpegPath  string `json:"ffmpegPath" yaml:"ffmpeg_path"`
	WhisperPath string `json:"whisperPath" yaml:"whisper_path"`

	Timestamps bool `json:"timestamps" yaml:"timestamps"`
	KeepAudio  bool `json:"keepAudio" yaml:"keep_audio"`
	ExportDocx bool `json:"exportDocx" yaml:"export_docx"`

	Summarize          bool   `json:"summarize" yaml:"summarize"`
	SummarizerProvider string `json:"summarizerProvider" yaml:"summarizer_provider"`
	SummarizerModel    string `json:"summarizerModel" yaml:"summarizer_model"`

	Publish      bool `json:"publish" yaml:"publish"`
	AutoDelete   bool `json:"autoDelete" yaml:"auto_delete"`
	UseBrowser   bool `json:"useBrowser" yaml:"use_browser"`
	// DownloadOnly saves URL items without transcribing them.
	DownloadOnly bool `json:"downloadOnly" yaml:"download_only"`

	LogLevel string `json:"logLevel" yaml:"log_level"`
}

// Job stores the current batch identity and lifecycle status.
type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}

// WorkKind distinguishes local files from remote post URLs.
type WorkKind string

const (
	WorkKindFile WorkKind = "file"
	WorkKindURL  WorkKind = "url"
)

// WorkItem is one unit of batch processing. Derived paths are filled in as
// the item moves through the pipeline.
type WorkItem struct {
	Kind        WorkKind `json:"kind"`
	Source      string   `json:"source"`
	MediaPath   string   `json:"mediaPath,omitempty"`
	AudioPath   string   `json:"audioPath,omitempty"`
	OutputPath  string   `json:"outputPath,omitempty"`
	Description string   `json:"description,omitempty"`
}

// DisplayName returns the label used in log lines.
func (w WorkItem) DisplayName() string {
	if w.MediaPath != "" {
		return filepath.Base(w.MediaPath)
	}
	if w.Kind == WorkKindURL {
		return w.Source
	}
	return filepath.Base(w.Source)
}

// Segment is one timed span of recognized speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the speech model output for one media file.
type Transcription struct {
	Text     string    `json:"text"`
	Detailed string    `json:"detailed"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// Summary is the title and summary produced by a summarizer.
type Summary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Empty reports whether either field is missing.
func (s Summary) Empty() bool {
	return s.Title == "" || s.Summary == ""
}
