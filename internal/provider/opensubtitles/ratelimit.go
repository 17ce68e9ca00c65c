package opensubtitles

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Rate limiting configuration for API calls. The API allows roughly one
// request per second per client.
const (
	MinInterval    = time.Second
	MaxRateRetries = 6
	InitialBackoff = 2 * time.Second
	MaxBackoff     = 60 * time.Second
)

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// throttle spaces requests at least interval apart.
type throttle struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval}
}

func (t *throttle) wait(ctx context.Context) error {
	if t == nil || t.interval <= 0 {
		return ctx.Err()
	}
	t.mu.Lock()
	now := time.Now()
	start := t.next
	if start.Before(now) {
		start = now
	}
	t.next = start.Add(t.interval)
	t.mu.Unlock()
	return SleepWithContext(ctx, time.Until(start))
}

// retryAfter honours a Retry-After header given in seconds.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	if value := resp.Header.Get("Retry-After"); value != "" {
		if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, MaxBackoff)
		}
	}
	return fallback
}

func nextBackoff(current time.Duration) time.Duration {
	if current <= 0 {
		return 0
	}
	return min(current*2, MaxBackoff)
}
