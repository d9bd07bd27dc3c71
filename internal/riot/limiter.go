package riot

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// Window is one rolling request budget: at most Limit requests in any Period.
type Window struct {
	Limit  int
	Period time.Duration
}

// Default budgets for a development key, kept just under the published
// 20 req/s and 100 req/2min so clock skew never trips the server limiter.
var DefaultWindows = []Window{
	{Limit: 20, Period: time.Second},
	{Limit: 95, Period: 2 * time.Minute},
}

// Limiter blocks callers until every window has room for one more request.
// It keeps the timestamps of recent requests per window, the same way the
// server counts them.
type Limiter struct {
	mu      sync.Mutex
	windows []Window
	history [][]time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter enforcing all of the given windows.
func NewLimiter(windows ...Window) *Limiter {
	return &Limiter{
		windows: windows,
		history: make([][]time.Time, len(windows)),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Wait blocks until a request may be issued and records it. Every attempt is
// recorded, including ones that later come back 429 or 5xx, since the server
// counts those too.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()

		var wait time.Duration
		for i, w := range l.windows {
			l.history[i] = pruneBefore(l.history[i], now.Add(-w.Period))
			if len(l.history[i]) < w.Limit {
				continue
			}
			// The request that must age out before another one fits.
			oldest := l.history[i][len(l.history[i])-w.Limit]
			if d := oldest.Add(w.Period).Sub(now); d > wait {
				wait = d
			}
		}

		if wait <= 0 {
			for i := range l.history {
				l.history[i] = append(l.history[i], now)
			}
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// pruneBefore drops timestamps that are not after cutoff. The slice is
// ordered, so this is a prefix trim.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// limitedTransport runs every outgoing attempt through the limiter, so
// retries issued by the retry loop are budgeted like first attempts. The
// per-attempt timeout starts once the limiter lets the request go; a full
// window can hold a request far longer than one attempt may take.
type limitedTransport struct {
	limiter *Limiter
	base    http.RoundTripper
	timeout time.Duration
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	if t.timeout <= 0 {
		return t.base.RoundTrip(req)
	}

	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	// The timeout also covers reading the body, as http.Client.Timeout does.
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
