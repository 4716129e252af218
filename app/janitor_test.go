package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPurger struct {
	mu      sync.Mutex
	calls   int
	cutoffs []time.Time
	err     error
}

func (p *countingPurger) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.cutoffs = append(p.cutoffs, before)
	return 1, p.err
}

func (p *countingPurger) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestRunJanitor_PurgesUntilCancelled(t *testing.T) {
	p := &countingPurger{}
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runJanitor(ctx, p, 5*time.Millisecond, 24*time.Hour, func() time.Time { return fixed })
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.count() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestRunJanitor_CutoffKeepsRetentionWindow(t *testing.T) {
	p := &countingPurger{}
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	retention := 24 * time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runJanitor(ctx, p, 5*time.Millisecond, retention, func() time.Time { return fixed })

	assert.Eventually(t, func() bool { return p.count() >= 1 }, time.Second, time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	justExpired := fixed.Add(-time.Second)
	for _, cutoff := range p.cutoffs {
		assert.True(t, fixed.Add(-retention).Equal(cutoff), "cutoff %s", cutoff)
		// the store deletes rows with expires_at < cutoff
		assert.False(t, justExpired.Before(cutoff), "a token expired one second ago must survive the purge")
	}
}

func TestPurgeCutoff(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC), purgeCutoff(now, 24*time.Hour))
	assert.Equal(t, now.Add(-time.Minute), purgeCutoff(now, time.Minute))
}

func TestRunJanitor_KeepsRunningAfterError(t *testing.T) {
	p := &countingPurger{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runJanitor(ctx, p, 5*time.Millisecond, time.Hour, time.Now)

	assert.Eventually(t, func() bool { return p.count() >= 3 }, time.Second, time.Millisecond)
}

func TestRunJanitor_ZeroIntervalReturnsImmediately(t *testing.T) {
	p := &countingPurger{}
	done := make(chan struct{})
	go func() {
		runJanitor(context.Background(), p, 0, time.Hour, time.Now)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor should return when disabled")
	}
	assert.Zero(t, p.count())
}
