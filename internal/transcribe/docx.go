package transcribe

import (
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"video-transcriber/internal/domain"
)

const (
	docxFont     = "Calibri"
	docxBodySize = 11
)

// DocxPathFor swaps the .txt extension of a transcript path for .docx.
func DocxPathFor(textPath string) string {
	return strings.TrimSuffix(textPath, ".txt") + ".docx"
}

// WriteDocx renders the same content as WriteTranscript into a Word file.
func WriteDocx(path, name string, t domain.Transcription, summary *domain.Summary) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}

	title := "Transcription of " + name
	if summary != nil && !summary.Empty() {
		title = summary.Title
	}
	addRun(doc.AddParagraph(""), title, true, 16)

	if summary != nil && !summary.Empty() {
		addRun(doc.AddParagraph(""), "Summary", true, 13)
		for _, para := range splitParagraphs(summary.Summary) {
			addRun(doc.AddParagraph(""), para, false, docxBodySize)
		}
		addRun(doc.AddParagraph(""), "Original Transcript", true, 13)
	}

	body := t.Detailed
	if body == "" {
		body = t.Text
	}
	for _, para := range splitParagraphs(body) {
		addRun(doc.AddParagraph(""), para, false, docxBodySize)
	}

	return doc.SaveTo(path)
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(docxFont).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}

func splitParagraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
