package transcribe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingRunner struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
}

func (r *countingRunner) Run(ctx context.Context, req Request) (Result, error) {
	n := r.active.Add(1)
	for {
		seen := r.maxSeen.Load()
		if n <= seen || r.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	r.active.Add(-1)
	r.calls.Add(1)
	return Result{}, nil
}

// TestSerialAllowsOneTranscriptionAtATime checks mutual exclusion across goroutines.
func TestSerialAllowsOneTranscriptionAtATime(t *testing.T) {
	inner := &countingRunner{}
	gate := NewGate()
	a := NewSerial(inner, gate)
	b := NewSerial(inner, gate)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(r Runner) {
			defer wg.Done()
			if _, err := r.Run(context.Background(), Request{}); err != nil {
				t.Errorf("Run() error = %v", err)
			}
		}([]Runner{a, b}[i%2])
	}
	wg.Wait()

	if inner.calls.Load() != 8 {
		t.Fatalf("calls = %d, want 8", inner.calls.Load())
	}
	if inner.maxSeen.Load() != 1 {
		t.Fatalf("max concurrent = %d, want 1", inner.maxSeen.Load())
	}
	if gate.Busy() {
		t.Fatal("gate should be released")
	}
}

// TestGateAcquireHonorsContext checks a waiter gives up when its context ends.
func TestGateAcquireHonorsContext(t *testing.T) {
	gate := NewGate()
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := gate.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second acquire error = %v, want deadline exceeded", err)
	}

	gate.Release()
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}
