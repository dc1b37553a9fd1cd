package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEveryRunsUntilStopped(t *testing.T) {
	s := New()
	var runs atomic.Int32
	s.Every("tick", 10*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	cancel()
	s.Wait()

	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestNextRunSameDay(t *testing.T) {
	// Wednesday morning, target later the same day.
	now := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	next := nextRun(now, 22, 0, true)
	assert.Equal(t, time.Date(2026, 1, 7, 22, 0, 0, 0, time.UTC), next)
}

func TestNextRunRollsToNextDay(t *testing.T) {
	now := time.Date(2026, 1, 7, 23, 0, 0, 0, time.UTC)
	next := nextRun(now, 22, 0, false)
	assert.Equal(t, time.Date(2026, 1, 8, 22, 0, 0, 0, time.UTC), next)
}

func TestNextRunSkipsWeekend(t *testing.T) {
	// Friday evening past the slot: Saturday and Sunday are skipped.
	now := time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)
	next := nextRun(now, 22, 0, true)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, time.Date(2026, 1, 12, 22, 0, 0, 0, time.UTC), next)
}

func TestNextRunKeepsWeekendWhenAllowed(t *testing.T) {
	now := time.Date(2026, 1, 9, 23, 0, 0, 0, time.UTC)
	next := nextRun(now, 22, 0, false)
	assert.Equal(t, time.Saturday, next.Weekday())
}
