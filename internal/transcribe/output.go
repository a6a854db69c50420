package transcribe

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"video-transcriber/internal/domain"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".avi":  {},
	".mov":  {},
	".mkv":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
}

// IsVideo reports whether path has a supported video extension.
func IsVideo(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// DiscoverVideos walks dir and returns every video file in lexical order.
func DiscoverVideos(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasPrefix(d.Name(), ".") && IsVideo(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// OutputPathFor returns <outputDir>/<name>_transcript.txt for a media file.
func OutputPathFor(outputDir, mediaPath string) string {
	return filepath.Join(outputDir, baseName(mediaPath)+"_transcript.txt")
}

// RenderTranscript returns the file body. With a summary the transcript is
// prefixed by a Title/Summary block.
func RenderTranscript(t domain.Transcription, summary *domain.Summary) string {
	body := t.Detailed
	if body == "" {
		body = t.Text
	}
	if summary == nil || summary.Empty() {
		return body
	}

	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(summary.Title)
	b.WriteString("\n\nSummary: ")
	b.WriteString(summary.Summary)
	b.WriteString("\n\n--- Original Transcript ---\n\n")
	b.WriteString(body)
	return b.String()
}

// WriteTranscript writes the rendered transcript as UTF-8 text.
func WriteTranscript(path string, t domain.Transcription, summary *domain.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(RenderTranscript(t, summary)), 0o644)
}
