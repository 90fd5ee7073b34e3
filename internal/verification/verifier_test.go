package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richxcame/civic-reports/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, image []byte, mimeType, category, instruction string) (string, error) {
	args := m.Called(ctx, image, mimeType, category, instruction)
	return args.String(0), args.Error(1)
}

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0}

func assertFailClosed(t *testing.T, r Result) {
	t.Helper()
	assert.False(t, r.IsRelevant)
	assert.Equal(t, 0, r.Severity)
	assert.Equal(t, 0.0, r.Confidence)
	assert.NotEmpty(t, r.Description)
}

func TestVerify_Success(t *testing.T) {
	classifier := new(mockClassifier)
	classifier.On("Classify", mock.Anything, jpeg, "image/jpeg", "garbage", Instruction("garbage")).
		Return(`{"is_relevant": true, "severity": 6, "description": "Garbage pile.", "confidence": 0.9}`, nil).Once()

	result := NewVerifier(classifier, nil, time.Second).Verify(context.Background(), jpeg, "image/jpeg", "garbage")

	assert.Equal(t, Result{IsRelevant: true, Severity: 6, Confidence: 0.9, Description: "Garbage pile."}, result)
	classifier.AssertExpectations(t)
}

func TestVerify_UpstreamError(t *testing.T) {
	classifier := new(mockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("503 service unavailable")).Once()

	result := NewVerifier(classifier, nil, time.Second).Verify(context.Background(), jpeg, "image/jpeg", "pothole")

	assertFailClosed(t, result)
	assert.Equal(t, "classifier error", result.Error)
}

func TestVerify_MalformedReply(t *testing.T) {
	classifier := new(mockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("I think this is a pothole", nil).Once()

	result := NewVerifier(classifier, nil, time.Second).Verify(context.Background(), jpeg, "image/jpeg", "pothole")

	assertFailClosed(t, result)
}

func TestVerify_TimeoutIsBounded(t *testing.T) {
	classifier := new(mockClassifier)
	// ignores ctx entirely
	classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { time.Sleep(500 * time.Millisecond) }).
		Return(`{"is_relevant": true, "confidence": 0.9}`, nil).Once()

	start := time.Now()
	result := NewVerifier(classifier, nil, 20*time.Millisecond).Verify(context.Background(), jpeg, "image/jpeg", "garbage")

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assertFailClosed(t, result)
	assert.Equal(t, "classifier timed out", result.Error)
}

func TestVerify_EmptyMediaSkipsClassifier(t *testing.T) {
	classifier := new(mockClassifier)

	result := NewVerifier(classifier, nil, time.Second).Verify(context.Background(), nil, "image/jpeg", "garbage")

	assertFailClosed(t, result)
	classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_ClassifierPanic(t *testing.T) {
	classifier := new(mockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { panic("nil pointer") }).
		Return("", nil).Once()

	result := NewVerifier(classifier, nil, time.Second).Verify(context.Background(), jpeg, "image/jpeg", "garbage")

	assertFailClosed(t, result)
}

func TestVerify_OpenBreakerFailsClosed(t *testing.T) {
	classifier := new(mockClassifier)
	classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("upstream down")).Once()

	breaker := resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "classifier-test",
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, nil)
	verifier := NewVerifier(classifier, breaker, time.Second)

	first := verifier.Verify(context.Background(), jpeg, "image/jpeg", "garbage")
	second := verifier.Verify(context.Background(), jpeg, "image/jpeg", "garbage")

	assertFailClosed(t, first)
	assertFailClosed(t, second)
	assert.Equal(t, "classifier unavailable", second.Error)
	classifier.AssertNumberOfCalls(t, "Classify", 1)
}
