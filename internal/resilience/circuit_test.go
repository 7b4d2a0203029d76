package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookmark-cli/internal/clock"
)

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }

func succeed(context.Context) error { return nil }

func newFakeBreaker(threshold int) (*CircuitBreaker, *clock.Fake) {
	clk := clock.NewFake(time.Unix(1000, 0))
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     time.Minute,
		Clock:            clk,
	})
	return cb, clk
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newFakeBreaker(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	}
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
	assert.Equal(t, 3, cb.Failures())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newFakeBreaker(3)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clk := newFakeBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, CircuitOpen, cb.State())

	clk.Advance(time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clk := newFakeBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clk.Advance(2 * time.Minute)
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_ShouldTripAndStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ShouldTrip:       func(err error) bool { return IsTransient(err) },
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
		Clock: clock.NewFake(time.Unix(0, 0)),
	})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, CircuitClosed, cb.State(), "non-transient errors do not trip")

	_ = cb.Execute(ctx, func(context.Context) error { return NewTransientError(errBoom, 503) })
	assert.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, []string{"closed->open", "open->closed"}, transitions)
}

func TestExecuteVal(t *testing.T) {
	cb, _ := newFakeBreaker(1)
	v, err := ExecuteVal(context.Background(), cb, func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, _ = ExecuteVal(context.Background(), cb, func(context.Context) (string, error) { return "", errBoom })
	v, err = ExecuteVal(context.Background(), cb, func(context.Context) (string, error) { return "late", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Empty(t, v)
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb, _ := newFakeBreaker(1000)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = cb.Execute(context.Background(), fail)
			} else {
				_ = cb.Execute(context.Background(), succeed)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(2, 10)
	assert.Equal(t, 2, cfg.FailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.ResetTimeout)

	cfg = FromCircuitConfig(0, 0)
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.ResetTimeout)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
