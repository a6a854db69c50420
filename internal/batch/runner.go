// Package batch drains a list of work items through the per-item pipeline,
// one item at a time, with cooperative cancellation between items.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-transcriber/internal/domain"
	"video-transcriber/internal/history"
	"video-transcriber/internal/instagram"
	"video-transcriber/internal/notion"
	"video-transcriber/internal/transcribe"
)

var (
	ErrAlreadyRunning          = errors.New("batch processing is already running")
	ErrMissingOutputDir        = errors.New("please select an output directory")
	ErrSummarizerNotConfigured = errors.New("summarization is enabled but no API key is configured")
	ErrPublisherNotConfigured  = errors.New("publishing is enabled but Notion credentials are not configured")
	ErrDownloaderNotConfigured = errors.New("URL items require an Instagram downloader")
	ErrNoInputs                = errors.New("no video files selected")
	ErrNoURLs                  = errors.New("no valid Instagram URLs found")
)

// Summarizer is the summarization adapter used by the runner.
type Summarizer interface {
	Configured() bool
	Summarize(ctx context.Context, source, transcript string) (domain.Summary, error)
	ResetFailures()
	SaveFailureReport(dir string) (string, error)
}

// Publisher is the note publishing adapter used by the runner.
type Publisher interface {
	Configured() bool
	Publish(ctx context.Context, p notion.Page) error
}

// Downloader fetches a remote post into a directory.
type Downloader interface {
	Download(ctx context.Context, url, dir string) (instagram.Post, error)
}

// Callbacks receive progress from the worker goroutine. Each may be nil.
// They are called synchronously; presentation layers should hand the work
// to their own event loop.
type Callbacks struct {
	OnLog      func(line string)
	OnStatus   func(status string)
	OnProgress func(processed, total int, fraction float64)
}

// Deps are the collaborators of a Runner. Only Transcriber is required.
type Deps struct {
	Transcriber transcribe.Runner
	Summarizer  Summarizer
	Publisher   Publisher
	Downloader  Downloader
	History     history.Recorder
}

// Runner executes batches. One Runner runs at most one batch at a time.
type Runner struct {
	deps   Deps
	state  *State
	logger *slog.Logger

	remove func(name string) error
}

// NewRunner creates a runner.
func NewRunner(deps Deps, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{deps: deps, state: NewState(), logger: logger, remove: os.Remove}
}

// State exposes the run state for snapshots and cancellation.
func (r *Runner) State() *State {
	return r.state
}

// Cancel stops the batch before its next item.
func (r *Runner) Cancel() bool {
	return r.state.Cancel()
}

// Validate checks the configuration a batch needs before any work starts.
func (r *Runner) Validate(settings domain.Settings, items []domain.WorkItem) error {
	if strings.TrimSpace(settings.OutputDir) == "" {
		return ErrMissingOutputDir
	}
	if settings.Summarize && (r.deps.Summarizer == nil || !r.deps.Summarizer.Configured()) {
		return ErrSummarizerNotConfigured
	}
	if settings.Publish && (r.deps.Publisher == nil || !r.deps.Publisher.Configured()) {
		return ErrPublisherNotConfigured
	}
	if r.deps.Downloader == nil {
		for _, item := range items {
			if item.Kind == domain.WorkKindURL {
				return ErrDownloaderNotConfigured
			}
		}
	}
	if r.deps.Transcriber == nil {
		return errors.New("no transcriber configured")
	}
	return nil
}

// run carries per-batch bookkeeping.
type run struct {
	id       string
	settings domain.Settings
	cb       Callbacks
	// pendingDeletes holds media whose transcription succeeded.
	pendingDeletes []string
}

// Run processes items in order and returns once the batch has finished or
// was canceled. Configuration errors are returned before the first item.
// ctx is passed to every external call; Cancel does not cancel it.
func (r *Runner) Run(ctx context.Context, runID string, settings domain.Settings, items []domain.WorkItem, cb Callbacks) error {
	if err := r.Validate(settings, items); err != nil {
		return err
	}
	if err := r.state.begin(runID, len(items)); err != nil {
		return err
	}

	rs := &run{id: runID, settings: settings, cb: cb}
	total := len(items)
	r.status(rs, fmt.Sprintf("Processing %d files...", total))
	r.progress(rs, 0, total)

	if settings.Summarize {
		r.deps.Summarizer.ResetFailures()
	}

	for i, item := range items {
		if ctx.Err() != nil {
			r.state.Cancel()
		}
		if !r.state.Active() {
			break
		}
		r.flushDeletes(rs)

		r.logLine(rs, fmt.Sprintf("Processing (%d/%d): %s", i+1, total, item.DisplayName()))
		r.status(rs, "Processing: "+item.DisplayName())
		r.processSafely(ctx, rs, item)

		processed, total := r.state.advance()
		r.progress(rs, processed, total)
	}

	r.flushDeletes(rs)
	r.flushFailureReport(rs)

	processed, total, canceled := r.state.counts()
	final := fmt.Sprintf("Batch processing completed. Processed %d of %d files.", processed, total)
	if canceled {
		final = fmt.Sprintf("Batch processing canceled after %d of %d files", processed, total)
	}
	r.state.finish(final)
	if cb.OnStatus != nil {
		cb.OnStatus(final)
	}
	r.logger.Info("batch finished", "run_id", runID, "processed", processed, "total", total, "canceled", canceled)
	return nil
}

// processSafely turns a panic in one item into a logged failure.
func (r *Runner) processSafely(ctx context.Context, rs *run, item domain.WorkItem) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic while processing item", "source", item.Source, "panic", p)
			r.logLine(rs, fmt.Sprintf("✗ Error processing %s: %v", item.DisplayName(), p))
			r.record(ctx, rs, item, domain.Summary{}, 0, fmt.Errorf("panic: %v", p))
		}
	}()
	r.process(ctx, rs, item)
}

func (r *Runner) flushDeletes(rs *run) {
	if len(rs.pendingDeletes) == 0 {
		return
	}
	kept := rs.pendingDeletes[:0]
	for _, path := range rs.pendingDeletes {
		err := r.remove(path)
		switch {
		case err == nil:
			r.logLine(rs, "✓ Deleted video after processing: "+filepath.Base(path))
		case errors.Is(err, fs.ErrNotExist):
			// Already removed, possibly by an earlier duplicate entry.
		default:
			r.logLine(rs, fmt.Sprintf("✗ Error deleting video: %s - %v", filepath.Base(path), err))
			kept = append(kept, path)
		}
	}
	rs.pendingDeletes = kept
}

func (r *Runner) flushFailureReport(rs *run) {
	if !rs.settings.Summarize || r.deps.Summarizer == nil {
		return
	}
	path, err := r.deps.Summarizer.SaveFailureReport(rs.settings.OutputDir)
	if err != nil {
		r.logLine(rs, "✗ Error saving summarization failure report: "+err.Error())
		return
	}
	if path != "" {
		r.logLine(rs, "Summarization failures saved to: "+path)
	}
}

func (r *Runner) record(ctx context.Context, rs *run, item domain.WorkItem, summary domain.Summary, duration float64, failure error) {
	if r.deps.History == nil {
		return
	}
	entry := domain.HistoryEntry{
		RunID:      rs.id,
		Kind:       item.Kind,
		Source:     item.Source,
		OutputPath: item.OutputPath,
		Title:      summary.Title,
		Status:     domain.HistoryStatusDone,
		Duration:   duration,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	switch {
	case failure == nil:
	case ctx.Err() != nil && errors.Is(failure, ctx.Err()):
		entry.Status = domain.HistoryStatusCanceled
		entry.Error = failure.Error()
	default:
		entry.Status = domain.HistoryStatusFailed
		entry.Error = failure.Error()
	}
	if err := r.deps.History.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Warn("record history failed", "source", item.Source, "error", err)
	}
}

func (r *Runner) recordDownload(ctx context.Context, rs *run, item domain.WorkItem) {
	if r.deps.History == nil {
		return
	}
	entry := domain.HistoryEntry{
		RunID:      rs.id,
		Kind:       item.Kind,
		Source:     item.Source,
		OutputPath: item.OutputPath,
		Status:     domain.HistoryStatusDownloaded,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.deps.History.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Warn("record history failed", "source", item.Source, "error", err)
	}
}

func (r *Runner) logLine(rs *run, line string) {
	r.state.appendLog(line)
	r.logger.Info(line, "run_id", rs.id)
	if rs.cb.OnLog != nil {
		rs.cb.OnLog(line)
	}
}

func (r *Runner) status(rs *run, status string) {
	r.state.setStatus(status)
	if rs.cb.OnStatus != nil {
		rs.cb.OnStatus(status)
	}
}

func (r *Runner) progress(rs *run, processed, total int) {
	if rs.cb.OnProgress == nil {
		return
	}
	fraction := 0.0
	if total > 0 {
		fraction = float64(processed) / float64(total)
	}
	rs.cb.OnProgress(processed, total, fraction)
}
