package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces requests between scrape targets so the pipeline never
// hammers a platform. A target can suggest its own delay (platforms
// carry a configured scraping delay); the limiter enforces at least
// its own window and widens it when failures pile up, since bursts of
// failures usually mean a platform is pushing back.
type Limiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	jitter     bool
	lastAction time.Time

	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64

	floorMin time.Duration
	floorMax time.Duration
}

func NewLimiter(minDelay, maxDelay time.Duration) *Limiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Limiter{
		minDelay:      minDelay,
		maxDelay:      maxDelay,
		jitter:        true,
		maxErrorCount: 3,
		backoffFactor: 1.5,
		floorMin:      minDelay,
		floorMax:      maxDelay,
	}
}

// Wait blocks until enough time has passed since the previous action.
// suggested is the platform's own scraping delay; the effective delay
// is whichever of the limiter window and the suggestion is longer.
// Returns early if the context is cancelled.
func (l *Limiter) Wait(ctx context.Context, suggested time.Duration) {
	l.mu.Lock()

	delay := l.calculateDelay()
	if suggested > delay {
		delay = suggested
	}

	elapsed := time.Since(l.lastAction)
	var waitTime time.Duration
	if elapsed < delay {
		waitTime = delay - elapsed
	}
	l.mu.Unlock()

	if waitTime > 0 {
		t := time.NewTimer(waitTime)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}

	l.mu.Lock()
	l.lastAction = time.Now()
	l.mu.Unlock()
}

// RecordSuccess narrows the window back toward the configured floor
// after a streak of clean targets.
func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.successCount++
	l.errorCount = 0

	if l.successCount > 5 {
		newMin := time.Duration(float64(l.minDelay) * 0.9)
		if newMin < l.floorMin {
			newMin = l.floorMin
		}
		newMax := time.Duration(float64(l.maxDelay) * 0.9)
		if newMax < l.floorMax {
			newMax = l.floorMax
		}
		l.minDelay = newMin
		l.maxDelay = newMax
		l.successCount = 0
	}
}

// RecordFailure widens the window after repeated failures.
func (l *Limiter) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.errorCount++
	l.successCount = 0

	if l.errorCount >= l.maxErrorCount {
		newMin := time.Duration(float64(l.minDelay) * l.backoffFactor)
		newMax := time.Duration(float64(l.maxDelay) * l.backoffFactor)

		if newMin > 60*time.Second {
			newMin = 60 * time.Second
		}
		if newMax > 120*time.Second {
			newMax = 120 * time.Second
		}

		l.minDelay = newMin
		l.maxDelay = newMax
		l.errorCount = 0
	}
}

// Window returns the current delay bounds.
func (l *Limiter) Window() (time.Duration, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minDelay, l.maxDelay
}

func (l *Limiter) calculateDelay() time.Duration {
	if !l.jitter || l.minDelay >= l.maxDelay {
		return l.minDelay
	}

	delta := l.maxDelay - l.minDelay
	jitter := time.Duration(rand.Int63n(int64(delta)))
	return l.minDelay + jitter
}
