// Package watch feeds new video files in a directory to a single consumer.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"video-transcriber/internal/transcribe"
)

// Handler processes one newly created video. Calls never overlap.
type Handler func(ctx context.Context, path string) error

// Watcher monitors one directory. Events are queued on a channel drained by
// one goroutine, so files are handled strictly one at a time in arrival
// order.
type Watcher struct {
	dir     string
	handler Handler
	logger  *slog.Logger
	fs      *fsnotify.Watcher

	// Settle is how long a new file must go without writes before it is
	// handled. Zero hands files over as soon as they appear.
	Settle time.Duration
	// QueueSize bounds pending files; further files wait in Run.
	QueueSize int
}

// New starts watching dir.
func New(dir string, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:       dir,
		handler:   handler,
		logger:    logger,
		fs:        fw,
		Settle:    2 * time.Second,
		QueueSize: 64,
	}, nil
}

// settling tracks new files until their writes go quiet.
type settling struct {
	order   []string
	quietAt map[string]time.Time
}

func (s *settling) touch(path string, at time.Time) {
	if _, ok := s.quietAt[path]; !ok {
		s.order = append(s.order, path)
	}
	s.quietAt[path] = at
}

// ready pops files in arrival order, stopping at the first still written.
func (s *settling) ready(now time.Time) []string {
	var out []string
	for len(s.order) > 0 {
		path := s.order[0]
		if now.Before(s.quietAt[path]) {
			break
		}
		out = append(out, path)
		delete(s.quietAt, path)
		s.order = s.order[1:]
	}
	return out
}

// Run blocks until ctx ends or the watcher fails. Files already queued when
// ctx ends are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	queue := make(chan string, w.QueueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.consume(ctx, queue)
	}()
	defer func() {
		close(queue)
		<-done
	}()

	interval := w.Settle / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	enqueue := func(paths []string) error {
		for _, path := range paths {
			select {
			case queue <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	w.logger.Info("watching for new videos", "dir", w.dir)
	seen := make(map[string]struct{})
	pending := &settling{quietAt: make(map[string]time.Time)}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-tick.C:
			if err := enqueue(pending.ready(now)); err != nil {
				return err
			}

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Has(fsnotify.Write) {
				if _, waiting := pending.quietAt[event.Name]; waiting {
					pending.touch(event.Name, time.Now().Add(w.Settle))
				}
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !transcribe.IsVideo(event.Name) {
				w.logger.Debug("ignoring non-video file", "path", event.Name)
				continue
			}
			if _, dup := seen[event.Name]; dup {
				continue
			}
			seen[event.Name] = struct{}{}
			w.logger.Info("new video detected", "path", event.Name)
			pending.touch(event.Name, time.Now().Add(w.Settle))
			if w.Settle <= 0 {
				if err := enqueue(pending.ready(time.Now())); err != nil {
					return err
				}
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) consume(ctx context.Context, queue <-chan string) {
	for path := range queue {
		if ctx.Err() != nil {
			continue
		}
		if err := w.handler(ctx, path); err != nil {
			w.logger.Error("failed to process video", "path", path, "error", err)
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
