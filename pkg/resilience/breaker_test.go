package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

func failing(ctx context.Context) (interface{}, error) {
	return nil, errUpstream
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-open",
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, nil)

	for i := 0; i < 2; i++ {
		_, err := breaker.Execute(context.Background(), failing)
		assert.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	called := false
	_, err := breaker.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_FallbackOnOpen(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-fallback",
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, StaticFallback("default"))

	_, _ = breaker.Execute(context.Background(), failing)

	result, err := breaker.Execute(context.Background(), failing)
	require.NoError(t, err)
	assert.Equal(t, "default", result)
}

func TestCircuitBreaker_GracefulDegradation(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-degrade",
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, GracefulDegradation("email"))

	_, _ = breaker.Execute(context.Background(), failing)

	_, err := breaker.Execute(context.Background(), failing)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_CanceledCallerDoesNotTrip(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{Name: "test-cancel", FailureThreshold: 1}, nil)

	_, err := breaker.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
}

func TestCircuitBreaker_DoneContextSkipsCall(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{Name: "test-done"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		t.Fatal("operation must not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithBreaker_StopsWhenOpen(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-retry-open",
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, nil)
	calls := 0

	_, err := RetryWithBreaker(context.Background(), fastRetryConfig(), breaker, func(ctx context.Context) (interface{}, error) {
		calls++
		return nil, errUpstream
	})

	// two failures trip the breaker, the third attempt is rejected
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestBuildSettings_Defaults(t *testing.T) {
	s := BuildSettings("classifier", 0, 0, 0, 0)

	assert.Equal(t, "classifier", s.Name)
	assert.Equal(t, time.Minute, s.Interval)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.Equal(t, uint32(5), s.FailureThreshold)
	assert.Equal(t, uint32(1), s.SuccessThreshold)
}
