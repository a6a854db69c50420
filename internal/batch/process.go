package batch

import (
	"context"
	"path/filepath"
	"strings"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/notion"
	"video-transcriber/internal/transcribe"
)

// process runs the fixed per-item pipeline. Every failure is logged; a
// download, transcription or save failure skips the remaining steps. In
// download-only mode URL items stop after the download.
func (r *Runner) process(ctx context.Context, rs *run, item domain.WorkItem) {
	s := rs.settings

	if item.Kind == domain.WorkKindURL {
		dir := s.DownloadDir
		if strings.TrimSpace(dir) == "" {
			dir = s.OutputDir
		}
		post, err := r.deps.Downloader.Download(ctx, item.Source, dir)
		if err != nil {
			r.logLine(rs, "✗ Error downloading "+item.Source+": "+err.Error())
			r.record(ctx, rs, item, domain.Summary{}, 0, err)
			return
		}
		item.MediaPath = post.MediaPath
		item.Description = post.Description
		r.logLine(rs, "✓ Downloaded: "+filepath.Base(post.MediaPath))
		if s.DownloadOnly {
			item.OutputPath = post.MediaPath
			r.recordDownload(ctx, rs, item)
			return
		}
	} else {
		item.MediaPath = item.Source
	}
	name := filepath.Base(item.MediaPath)

	result, err := r.deps.Transcriber.Run(ctx, transcribe.Request{
		InputPath:  item.MediaPath,
		ModelPath:  s.ModelPath,
		Language:   s.Language,
		Timestamps: s.Timestamps,
		KeepAudio:  s.KeepAudio,
		AudioDir:   s.OutputDir,
	})
	if err != nil {
		r.logLine(rs, "✗ Error transcribing "+name+": "+err.Error())
		r.record(ctx, rs, item, domain.Summary{}, 0, err)
		return
	}
	defer func() {
		if cerr := result.Cleanup(); cerr != nil {
			r.logger.Warn("could not remove temporary audio", "file", name, "error", cerr)
		}
	}()
	if s.KeepAudio {
		item.AudioPath = result.AudioPath
	}
	t := result.Transcription
	r.logLine(rs, "✓ Transcribed: "+name)

	if s.AutoDelete && item.Kind == domain.WorkKindURL {
		rs.pendingDeletes = append(rs.pendingDeletes, item.MediaPath)
	}

	var summary *domain.Summary
	if s.Summarize {
		sum, err := r.deps.Summarizer.Summarize(ctx, name, t.Text)
		if err != nil {
			r.logLine(rs, "✗ Summarization failed: "+err.Error())
		} else {
			summary = &sum
			r.logLine(rs, "✓ Summarized: "+name)
		}
	}

	item.OutputPath = transcribe.OutputPathFor(s.OutputDir, item.MediaPath)
	if err := transcribe.WriteTranscript(item.OutputPath, t, summary); err != nil {
		r.logLine(rs, "✗ Error saving transcription: "+err.Error())
		r.record(ctx, rs, item, derefSummary(summary), t.Duration, err)
		return
	}
	r.logLine(rs, "✓ Saved: "+filepath.Base(item.OutputPath))

	if s.ExportDocx {
		docxPath := transcribe.DocxPathFor(item.OutputPath)
		if err := transcribe.WriteDocx(docxPath, name, t, summary); err != nil {
			r.logLine(rs, "✗ Error exporting DOCX: "+err.Error())
		} else {
			r.logLine(rs, "✓ Exported DOCX: "+filepath.Base(docxPath))
		}
	}

	var publishErr error
	if s.Publish {
		page := notion.Page{
			MediaPath:   item.MediaPath,
			Description: item.Description,
			Transcript:  t.Detailed,
			Duration:    t.Duration,
			Summary:     derefSummary(summary),
		}
		if item.Kind == domain.WorkKindURL {
			page.SourceURL = item.Source
		}
		if publishErr = r.deps.Publisher.Publish(ctx, page); publishErr != nil {
			r.logLine(rs, "✗ Notion error: "+publishErr.Error())
		} else {
			r.logLine(rs, "✓ Added to Notion: "+name)
		}
	}

	r.record(ctx, rs, item, derefSummary(summary), t.Duration, publishErr)
}

func derefSummary(s *domain.Summary) domain.Summary {
	if s == nil {
		return domain.Summary{}
	}
	return *s
}
