package jobs

import (
	"log/slog"
	"sync"
)

// Dispatcher runs posted functions one at a time on a single goroutine,
// in the order they were posted. It stands in for a UI event loop: workers
// hand it state updates and continue without waiting.
type Dispatcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	closed  bool
	stopped chan struct{}
}

// NewDispatcher starts the dispatch goroutine.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

// Post enqueues fn and returns immediately. Posts after Close are dropped.
func (d *Dispatcher) Post(fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close drains queued functions and stops the goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.stopped
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.stopped
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				closed := d.closed
				d.mu.Unlock()
				if closed {
					return
				}
				break
			}
			fn := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.mu.Unlock()

			d.run(fn)
		}
	}
}

func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatched function panicked", "panic", r)
		}
	}()
	fn()
}
