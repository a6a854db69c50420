package transcribe

import "context"

// Runner is anything that turns a media file into a transcription.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Gate admits one transcription at a time. Waiters block on the channel
// until the holder releases or their context ends.
type Gate struct {
	slot chan struct{}
}

// NewGate creates an open gate.
func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// Acquire blocks until the gate is free.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the gate. It must follow a successful Acquire.
func (g *Gate) Release() {
	<-g.slot
}

// Busy reports whether a transcription currently holds the gate.
func (g *Gate) Busy() bool {
	return len(g.slot) == 1
}

// Serial wraps a Runner so every call goes through a shared Gate.
type Serial struct {
	runner Runner
	gate   *Gate
}

// NewSerial guards runner with gate.
func NewSerial(runner Runner, gate *Gate) *Serial {
	return &Serial{runner: runner, gate: gate}
}

// Run waits for the gate, then delegates.
func (s *Serial) Run(ctx context.Context, req Request) (Result, error) {
	if err := s.gate.Acquire(ctx); err != nil {
		return Result{}, err
	}
	defer s.gate.Release()
	return s.runner.Run(ctx, req)
}
