package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failing(context.Context, goredis.Cmder) error { return errors.New("connection refused") }

func TestCircuitBreakerHook_StaysClosedOnSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook()
	ctx := context.Background()

	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return nil })
	for range 10 {
		require.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
	assert.Equal(t, uint32(10), hook.Counts().TotalSuccesses)
}

func TestCircuitBreakerHook_MissingKeyIsSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook()
	ctx := context.Background()

	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	for range 10 {
		err := process(ctx, goredis.NewStringCmd(ctx, "get", "key"))
		assert.ErrorIs(t, err, goredis.Nil)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
	assert.Zero(t, hook.Counts().TotalFailures)
}

func TestCircuitBreakerHook_FewFailuresDoNotTrip(t *testing.T) {
	hook := NewCircuitBreakerHook()
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 4 {
		assert.Error(t, process(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.State())
}

func TestCircuitBreakerHook_OpensAndFailsFast(t *testing.T) {
	hook := NewCircuitBreakerHook()
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 5 {
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.State())

	called := false
	process = hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})
	cmd := goredis.NewStringCmd(ctx, "set", "key", "value")
	err := process(ctx, cmd)

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.ErrorIs(t, cmd.Err(), gobreaker.ErrOpenState)
	assert.False(t, called)
}

func TestCircuitBreakerHook_PipelineRejectedWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook()
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 5 {
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}

	cmds := []goredis.Cmder{goredis.NewStringCmd(ctx, "get", "a"), goredis.NewStringCmd(ctx, "get", "b")}
	err := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error { return nil })(ctx, cmds)

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	for _, cmd := range cmds {
		assert.Error(t, cmd.Err())
	}
}

func TestCircuitBreakerHook_RecoversAfterTimeout(t *testing.T) {
	hook := newCircuitBreakerHook(gobreaker.Settings{
		Name:        "redis-test",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     50 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 3 {
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}
	require.Equal(t, gobreaker.StateOpen, hook.State())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, hook.State())

	process = hook.ProcessHook(func(context.Context, goredis.Cmder) error { return nil })
	for range 2 {
		require.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}
	assert.Equal(t, gobreaker.StateClosed, hook.State())
}

func TestStateToFloat(t *testing.T) {
	assert.Equal(t, 0.0, stateToFloat(gobreaker.StateClosed))
	assert.Equal(t, 1.0, stateToFloat(gobreaker.StateHalfOpen))
	assert.Equal(t, 2.0, stateToFloat(gobreaker.StateOpen))
}
