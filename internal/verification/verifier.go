package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/civic-reports/pkg/logger"
	"github.com/richxcame/civic-reports/pkg/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single classification call.
const DefaultTimeout = 20 * time.Second

// Verifier checks media against its claimed category. Verify never fails:
// every error is turned into a FailClosed result.
type Verifier struct {
	classifier Classifier
	breaker    *resilience.CircuitBreaker
	timeout    time.Duration
}

// NewVerifier creates a Verifier. breaker may be nil.
func NewVerifier(classifier Classifier, breaker *resilience.CircuitBreaker, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Verifier{classifier: classifier, breaker: breaker, timeout: timeout}
}

type classifyOutcome struct {
	reply string
	err   error
}

// Verify classifies image for category.
func (v *Verifier) Verify(ctx context.Context, image []byte, mimeType, category string) (result Result) {
	ctx, span := otel.Tracer("verification").Start(ctx, "verification.Verify")
	defer span.End()

	log := logger.WithContext(ctx).With(zap.String("category", category))

	defer func() {
		if r := recover(); r != nil {
			log.Error("classifier panicked", zap.Any("panic", r))
			result = FailClosed("internal error")
		}
		span.SetAttributes(
			attribute.Bool("verification.relevant", result.IsRelevant),
			attribute.Float64("verification.confidence", result.Confidence),
			attribute.Bool("verification.failed", result.Failed()),
		)
	}()

	if len(image) == 0 {
		return FailClosed("empty media")
	}

	reply, err := v.classify(ctx, image, mimeType, category)
	if err != nil {
		log.Warn("classification failed, using fail-closed result", zap.Error(err))
		return FailClosed(failureReason(err))
	}

	decoded := DecodeVerdict(reply)
	if !decoded.OK() {
		log.Warn("unparseable classifier reply, using fail-closed result",
			zap.Error(decoded.Err),
			zap.Int("reply_length", len(reply)),
		)
		return FailClosed("unreadable classifier reply")
	}

	return decoded.Result
}

func (v *Verifier) classify(ctx context.Context, image []byte, mimeType, category string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	call := func(ctx context.Context) (interface{}, error) {
		return v.classifier.Classify(ctx, image, mimeType, category, Instruction(category))
	}

	// buffered so the worker never leaks when we stop waiting
	done := make(chan classifyOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- classifyOutcome{err: fmt.Errorf("classifier panic: %v", r)}
			}
		}()

		var (
			out interface{}
			err error
		)
		if v.breaker != nil {
			out, err = v.breaker.Execute(ctx, call)
		} else {
			out, err = call(ctx)
		}
		reply, _ := out.(string)
		done <- classifyOutcome{reply: reply, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case o := <-done:
		return o.reply, o.err
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "classifier timed out"
	case errors.Is(err, context.Canceled):
		return "verification canceled"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "classifier unavailable"
	default:
		return "classifier error"
	}
}
