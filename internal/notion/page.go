package notion

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"video-transcriber/internal/domain"
)

const (
	// MaxBlockChars is the largest rich text content Notion accepts per block.
	MaxBlockChars = 2000
	// MaxChildrenPerRequest is the most blocks one create or append call takes.
	MaxChildrenPerRequest = 100
)

// Page is the content published for one transcribed item.
type Page struct {
	// MediaPath names the transcribed file; its base name labels the page.
	MediaPath   string
	SourceURL   string
	Description string
	Transcript  string
	Duration    float64
	Summary     domain.Summary
	Generated   time.Time
}

type richText struct {
	Type string `json:"type"`
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

type textBody struct {
	RichText []richText `json:"rich_text"`
}

type block struct {
	Object    string    `json:"object"`
	Type      string    `json:"type"`
	Heading2  *textBody `json:"heading_2,omitempty"`
	Heading3  *textBody `json:"heading_3,omitempty"`
	Paragraph *textBody `json:"paragraph,omitempty"`
	Divider   *struct{} `json:"divider,omitempty"`
}

type titleProperty struct {
	Title []richText `json:"title"`
}

type pageRequest struct {
	Parent struct {
		DatabaseID string `json:"database_id"`
	} `json:"parent"`
	Properties map[string]titleProperty `json:"properties"`
	Children   []block                  `json:"children"`
}

func text(content string) []richText {
	rt := richText{Type: "text"}
	rt.Text.Content = content
	return []richText{rt}
}

func heading2(s string) block  { return block{Object: "block", Type: "heading_2", Heading2: &textBody{RichText: text(s)}} }
func heading3(s string) block  { return block{Object: "block", Type: "heading_3", Heading3: &textBody{RichText: text(s)}} }
func paragraph(s string) block { return block{Object: "block", Type: "paragraph", Paragraph: &textBody{RichText: text(s)}} }
func divider() block           { return block{Object: "block", Type: "divider", Divider: &struct{}{}} }

// Title returns the page title: the summary title when present, otherwise
// "Transcription: <name>".
func (p Page) Title() string {
	if t := strings.TrimSpace(p.Summary.Title); t != "" {
		return t
	}
	base := filepath.Base(p.MediaPath)
	return "Transcription: " + strings.TrimSuffix(base, filepath.Ext(base))
}

// buildRequest renders p as a page under databaseID.
func buildRequest(databaseID string, p Page) pageRequest {
	generated := p.Generated
	if generated.IsZero() {
		generated = time.Now()
	}

	var req pageRequest
	req.Parent.DatabaseID = databaseID
	req.Properties = map[string]titleProperty{"Name": {Title: text(p.Title())}}

	children := []block{
		heading2("Transcription of " + filepath.Base(p.MediaPath)),
		paragraph("Generated on: " + generated.Format("2006-01-02")),
	}
	if p.SourceURL != "" {
		children = append(children, paragraph("Source: "+p.SourceURL))
	}
	for _, chunk := range chunkRunes(strings.TrimSpace(p.Description), MaxBlockChars) {
		children = append(children, paragraph("Description: "+chunk))
	}
	if p.Duration > 0 {
		children = append(children, paragraph(FormatDuration(p.Duration)))
	}
	if summary := strings.TrimSpace(p.Summary.Summary); summary != "" {
		children = append(children, heading3("Summary:"))
		for _, chunk := range chunkRunes(summary, MaxBlockChars) {
			children = append(children, paragraph(chunk))
		}
	}

	children = append(children, divider(), heading3("Transcription Text:"))
	for _, chunk := range chunkRunes(p.Transcript, MaxBlockChars) {
		children = append(children, paragraph(chunk))
	}
	req.Children = children
	return req
}

type appendRequest struct {
	Children []block `json:"children"`
}

// splitChildren keeps the first MaxChildrenPerRequest blocks on req and
// returns the rest in append-sized batches.
func splitChildren(req *pageRequest) [][]block {
	if len(req.Children) <= MaxChildrenPerRequest {
		return nil
	}
	rest := req.Children[MaxChildrenPerRequest:]
	req.Children = req.Children[:MaxChildrenPerRequest]
	var batches [][]block
	for len(rest) > 0 {
		n := min(len(rest), MaxChildrenPerRequest)
		batches = append(batches, rest[:n])
		rest = rest[n:]
	}
	return batches
}

// FormatDuration renders seconds as "Duration: Xm Ys".
func FormatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("Duration: %dm %ds", total/60, total%60)
}

// chunkRunes splits s into pieces of at most size runes.
func chunkRunes(s string, size int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
