package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"video-transcriber/internal/batch"
	"video-transcriber/internal/config"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/instagram"
	"video-transcriber/internal/jobs"
	"video-transcriber/internal/transcribe"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// StartBatch processes video files and directories of videos in the
// background. Configuration problems are returned before anything starts.
func (a *App) StartBatch(paths []string) (domain.Job, error) {
	items, err := FileItems(paths)
	if err != nil {
		return domain.Job{}, err
	}
	_, job, err := a.launch(a.lifetime, items, config.Overrides{})
	return job, err
}

// StartDirectoryBatch processes every video found under dir.
func (a *App) StartDirectoryBatch(dir string) (domain.Job, error) {
	return a.StartBatch([]string{dir})
}

// StartInstagramBatch downloads and processes post URLs. Lines that are not
// post URLs are skipped.
func (a *App) StartInstagramBatch(urls []string) (domain.Job, error) {
	items, err := URLItems(urls)
	if err != nil {
		return domain.Job{}, err
	}
	_, job, err := a.launch(a.lifetime, items, config.Overrides{})
	return job, err
}

// LoadURLsFromFile returns the post URLs listed in a text file.
func (a *App) LoadURLsFromFile(path string) ([]string, error) {
	urls, err := instagram.LoadURLFile(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("load URL file: %w", err)
	}
	return urls, nil
}

// RunBatch processes items and blocks until the batch ends.
func (a *App) RunBatch(ctx context.Context, items []domain.WorkItem) error {
	return a.RunBatchWithOverrides(ctx, items, config.Overrides{})
}

// RunBatchWithOverrides is RunBatch with per-run settings that are not
// persisted.
func (a *App) RunBatchWithOverrides(ctx context.Context, items []domain.WorkItem, overrides config.Overrides) error {
	done, _, err := a.launch(ctx, items, overrides)
	if err != nil {
		return err
	}
	return <-done
}

// CancelBatch stops the running batch before its next item. The item in
// flight finishes normally.
func (a *App) CancelBatch() error {
	if err := a.Jobs.Cancel(); err != nil {
		return err
	}

	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()
	if runner != nil {
		runner.Cancel()
	}

	job := a.Jobs.Current()
	a.publishStatus(job.ID, domain.JobStatusCancelling, "Canceling batch processing...")
	return nil
}

// CurrentJob returns current batch metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// BatchSnapshot returns the state of the current or last batch.
func (a *App) BatchSnapshot() domain.BatchSnapshot {
	a.mu.Lock()
	runner := a.runner
	a.mu.Unlock()

	var snap domain.BatchSnapshot
	if runner != nil {
		snap = runner.State().Snapshot()
	} else {
		snap = batch.NewState().Snapshot()
	}
	snap.Job = a.Jobs.Current().Status
	return snap
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// FileItems expands paths into work items. Directories contribute every
// video below them; files are taken as given.
func FileItems(paths []string) ([]domain.WorkItem, error) {
	var items []domain.WorkItem
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("resolve input %s: %w", path, err)
		}
		if !info.IsDir() {
			items = append(items, domain.WorkItem{Kind: domain.WorkKindFile, Source: path, MediaPath: path})
			continue
		}
		videos, err := transcribe.DiscoverVideos(path)
		if err != nil {
			return nil, fmt.Errorf("scan directory %s: %w", path, err)
		}
		for _, video := range videos {
			items = append(items, domain.WorkItem{Kind: domain.WorkKindFile, Source: video, MediaPath: video})
		}
	}
	if len(items) == 0 {
		return nil, batch.ErrNoInputs
	}
	return items, nil
}

// URLItems turns post URLs into work items.
func URLItems(urls []string) ([]domain.WorkItem, error) {
	filtered := instagram.FilterURLs(urls)
	if len(filtered) == 0 {
		return nil, batch.ErrNoURLs
	}
	items := make([]domain.WorkItem, 0, len(filtered))
	for _, url := range filtered {
		items = append(items, domain.WorkItem{Kind: domain.WorkKindURL, Source: url})
	}
	return items, nil
}

// launch validates, registers the batch and runs it on its own goroutine.
// The returned channel yields the runner's result once events are flushed.
func (a *App) launch(ctx context.Context, items []domain.WorkItem, overrides config.Overrides) (<-chan error, domain.Job, error) {
	settings, err := a.GetSettings()
	if err != nil {
		return nil, domain.Job{}, err
	}
	settings = normalizeSettings(overrides.Apply(settings))
	creds, err := a.loadCredentials()
	if err != nil {
		return nil, domain.Job{}, err
	}

	runner := batch.NewRunner(a.buildDeps(settings, creds), a.Logger)
	if err := runner.Validate(settings, items); err != nil {
		return nil, domain.Job{}, err
	}

	runID := uuid.NewString()
	if err := a.Jobs.Start(runID); err != nil {
		return nil, domain.Job{}, err
	}
	a.mu.Lock()
	a.runner = runner
	a.mu.Unlock()

	a.publishStatus(runID, domain.JobStatusRunning, fmt.Sprintf("Batch started with %d items", len(items)))
	a.Logger.Info("batch started", "run_id", runID, "items", len(items))

	done := make(chan error, 1)
	go func() {
		done <- a.runBatch(ctx, runner, runID, settings, items)
	}()
	return done, a.Jobs.Current(), nil
}

// runBatch executes the runner and maps its outcome to job events.
func (a *App) runBatch(ctx context.Context, runner *batch.Runner, runID string, settings domain.Settings, items []domain.WorkItem) error {
	cb := batch.Callbacks{
		OnLog: func(line string) {
			a.post(jobs.Event{RunID: runID, Type: jobs.EventTypeLog, Message: line})
		},
		OnStatus: func(status string) {
			a.post(jobs.Event{RunID: runID, Type: jobs.EventTypeStatus, Status: a.Jobs.Current().Status, Message: status})
		},
		OnProgress: func(processed, total int, fraction float64) {
			// A cancel that arrived before the runner started still applies.
			if processed == 0 && a.Jobs.Current().Status == domain.JobStatusCancelling {
				runner.Cancel()
			}
			a.post(jobs.Event{
				RunID:     runID,
				Type:      jobs.EventTypeProgress,
				Processed: processed,
				Total:     total,
				Fraction:  fraction,
			})
		},
	}

	err := runner.Run(ctx, runID, settings, items, cb)
	snap := runner.State().Snapshot()

	final := domain.JobStatusCompleted
	switch {
	case err != nil:
		final = domain.JobStatusFailed
		a.post(jobs.Event{RunID: runID, Type: jobs.EventTypeError, Status: final, Message: err.Error()})
	case snap.Canceled:
		final = domain.JobStatusCancelled
	}
	if tErr := a.Jobs.Transition(final); tErr != nil {
		a.Logger.Warn("batch transition", "run_id", runID, "error", tErr)
	}

	a.post(jobs.Event{
		RunID:     runID,
		Type:      jobs.EventTypeResult,
		Status:    final,
		Message:   snap.Status,
		Processed: snap.Processed,
		Total:     snap.Total,
		Fraction:  snap.Fraction(),
	})
	a.flush()
	return err
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(runID string, status domain.JobStatus, message string) {
	a.post(jobs.Event{
		RunID:   runID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// post hands event to the dispatcher so UI updates apply in order on one
// goroutine.
func (a *App) post(event jobs.Event) {
	event.Timestamp = time.Now().UTC()
	a.dispatcher.Post(func() { a.publishEvent(event) })
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, EventName, published)
	}
}

// flush waits until every event posted so far has been published.
func (a *App) flush() {
	done := make(chan struct{})
	a.dispatcher.Post(func() { close(done) })
	select {
	case <-done:
	case <-a.lifetime.Done():
	}
}
