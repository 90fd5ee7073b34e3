package resilience

import (
	"context"

	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
)

// FallbackFunc is executed when the breaker rejects a call.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// StaticFallback returns a fixed value when the circuit is open.
func StaticFallback(defaultValue interface{}) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WithContext(ctx).Warn("circuit breaker open, returning static fallback", zap.Error(err))
		return defaultValue, nil
	}
}

// GracefulDegradation logs the rejection and still fails with ErrCircuitOpen,
// leaving the caller to decide what degraded behaviour means.
func GracefulDegradation(serviceName string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WithContext(ctx).Warn("circuit breaker open, service degraded",
			zap.String("service", serviceName),
			zap.Error(err),
		)
		return nil, ErrCircuitOpen
	}
}
