package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter_BurstFloor(t *testing.T) {
	assert.Equal(t, 1, NewLimiter(10, 0).burst)
	assert.Equal(t, 1, NewLimiter(10, -2).burst)
	assert.Equal(t, 3, NewLimiter(10, 3).burst)
}

func TestLimiter_KeysHaveSeparateBuckets(t *testing.T) {
	limiter := NewLimiter(0.5, 1)

	require.NoError(t, limiter.Wait(context.Background(), "entities"))
	assert.False(t, limiter.Allow("entities"), "entities bucket is empty")
	assert.True(t, limiter.Allow("person_relations"), "other tasks are unaffected")
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	require.True(t, limiter.Allow("entities"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "entities"))
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("entities"))
	}
}

func TestLimiter_Nil(t *testing.T) {
	var limiter *Limiter
	assert.NoError(t, limiter.Wait(context.Background(), "entities"))
	assert.True(t, limiter.Allow("entities"))
}
