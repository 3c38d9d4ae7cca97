package httpapi

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func buckets(l *RateLimiter) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.callers)
}

func TestRateLimiter_SweepsIdleBucketsPeriodically(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(0.001, 1)
	l.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		assert.True(t, l.Allow(fmt.Sprintf("addr:10.0.0.%d", i)))
	}
	assert.Equal(t, 50, buckets(l))

	// Idle buckets survive until the next sweep is due.
	now = now.Add(limiterIdle + time.Second)
	assert.True(t, l.Allow("player:x"))
	assert.Equal(t, 1, buckets(l))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("player:y"))
	now = now.Add(time.Second)
	assert.False(t, l.Allow("player:y"), "burst of one is spent")
	assert.Equal(t, 2, buckets(l))
}
