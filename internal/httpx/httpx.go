// Package httpx builds the HTTP clients shared by the service adapters.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultRetryMax = 2
)

// Transport adds a browser user agent and bounded retry for replayable
// requests on top of a base transport.
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// RetryMax is the number of retries after the first attempt.
	RetryMax int

	// Sleep waits between retries and returns early when ctx ends. Nil
	// retries immediately.
	Sleep func(ctx context.Context, d time.Duration) error
	Delay time.Duration
}

// RoundTrip implements http.RoundTripper. Only GET and HEAD without a body
// are retried, and only on transport errors.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		if attempt > 0 && t.Sleep != nil {
			if err := t.Sleep(req.Context(), t.Delay); err != nil {
				return nil, lastErr
			}
		}
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.ua != nil {
			r.Header.Set("User-Agent", t.ua.random())
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// Options tune NewClient.
type Options struct {
	Timeout  time.Duration
	RetryMax int
	// NoRetry disables transport retries entirely.
	NoRetry bool
}

// NewClient returns a client with a total timeout and the retrying transport.
func NewClient(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retry := opts.RetryMax
	if retry == 0 {
		retry = defaultRetryMax
	}
	if opts.NoRetry {
		retry = 0
	}

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
	return &http.Client{
		Transport: &Transport{
			Base:     base,
			ua:       globalUA,
			RetryMax: retry,
			Sleep:    SleepContext,
			Delay:    500 * time.Millisecond,
		},
		Timeout: timeout,
	}
}

// Streaming returns a copy of c without the total timeout, for bodies whose
// transfer time is unbounded. Header and handshake timeouts still apply
// through the transport, and the request context still cancels.
func Streaming(c *http.Client) *http.Client {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Timeout = 0
	return &cp
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// UserAgent returns a random desktop browser user agent.
func UserAgent() string {
	return globalUA.random()
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = &uaPool{
	rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	uas: []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	},
}
