package domain

// WhisperModelOption describes one downloadable ggml speech model.
type WhisperModelOption struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FileName   string `json:"fileName"`
	SizeLabel  string `json:"sizeLabel,omitempty"`
	English    bool   `json:"english"`
	Downloaded bool   `json:"downloaded"`
	LocalPath  string `json:"localPath,omitempty"`
}
