package transcribe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"video-transcriber/internal/domain"
)

// TestOutputPathFor checks the transcript naming convention.
func TestOutputPathFor(t *testing.T) {
	got := OutputPathFor("/out", "/videos/My Clip.final.mp4")
	if want := filepath.Join("/out", "My Clip.final_transcript.txt"); got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
	if DocxPathFor(got) != filepath.Join("/out", "My Clip.final_transcript.docx") {
		t.Fatalf("docx path = %q", DocxPathFor(got))
	}
}

// TestRenderTranscriptPlainAndEnhanced checks both file layouts.
func TestRenderTranscriptPlainAndEnhanced(t *testing.T) {
	tr := domain.Transcription{Text: "plain", Detailed: "[00:00:00.000] plain"}

	if got := RenderTranscript(tr, nil); got != "[00:00:00.000] plain" {
		t.Fatalf("plain = %q", got)
	}
	if got := RenderTranscript(tr, &domain.Summary{Title: "T"}); got != "[00:00:00.000] plain" {
		t.Fatalf("incomplete summary should fall back to plain, got %q", got)
	}

	got := RenderTranscript(tr, &domain.Summary{Title: "Cats", Summary: "About cats."})
	want := "Title: Cats\n\nSummary: About cats.\n\n--- Original Transcript ---\n\n[00:00:00.000] plain"
	if got != want {
		t.Fatalf("enhanced = %q, want %q", got, want)
	}
}

// TestWriteTranscriptCreatesParent checks directory creation.
func TestWriteTranscriptCreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "a_transcript.txt")
	if err := WriteTranscript(path, domain.Transcription{Text: "héllo"}, nil); err != nil {
		t.Fatalf("WriteTranscript() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "héllo" {
		t.Fatalf("content = %q", data)
	}
}

// TestDiscoverVideos checks filtering, recursion and ordering.
func TestDiscoverVideos(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.MP4", "a.mov", "notes.txt", "sub/c.webm", ".hidden/d.mp4", ".e.mkv"} {
		mustWriteFile(t, filepath.Join(root, name), "x")
	}

	files, err := DiscoverVideos(root)
	if err != nil {
		t.Fatalf("DiscoverVideos() error = %v", err)
	}
	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		names = append(names, filepath.ToSlash(rel))
	}
	if got := strings.Join(names, ","); got != "a.mov,b.MP4,sub/c.webm" {
		t.Fatalf("files = %s", got)
	}
}

// TestWriteDocx checks a document is produced for the enhanced layout.
func TestWriteDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a_transcript.docx")
	err := WriteDocx(path, "a.mp4", domain.Transcription{Text: "one\ntwo"}, &domain.Summary{Title: "T", Summary: "S"})
	if err != nil {
		t.Fatalf("WriteDocx() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("docx missing or empty: %v", err)
	}
}
