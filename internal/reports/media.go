package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/richxcame/civic-reports/pkg/logger"
	"github.com/richxcame/civic-reports/pkg/resilience"
	"github.com/richxcame/civic-reports/pkg/storage"
	"go.uber.org/zap"
)

// MediaStore stores submitted media and returns a reference to it.
type MediaStore interface {
	Upload(ctx context.Context, data []byte, mimeType string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Upload deadlines used unless overridden with WithUploadTimeouts.
const (
	DefaultUploadTimeout        = 15 * time.Second
	DefaultUploadAttemptTimeout = 5 * time.Second
)

// ObjectMediaStore stores media in an object storage bucket.
type ObjectMediaStore struct {
	storage        storage.Storage
	retry          resilience.RetryConfig
	timeout        time.Duration
	attemptTimeout time.Duration
}

// MediaOption configures an ObjectMediaStore.
type MediaOption func(*ObjectMediaStore)

// WithUploadTimeouts bounds a whole upload, retries and backoff included, by
// total and each storage call by attempt.
func WithUploadTimeouts(total, attempt time.Duration) MediaOption {
	return func(m *ObjectMediaStore) {
		if total > 0 {
			m.timeout = total
		}
		if attempt > 0 {
			m.attemptTimeout = attempt
		}
	}
}

// NewObjectMediaStore creates a MediaStore backed by store.
func NewObjectMediaStore(store storage.Storage, retry resilience.RetryConfig, opts ...MediaOption) *ObjectMediaStore {
	m := &ObjectMediaStore{
		storage:        store,
		retry:          retry,
		timeout:        DefaultUploadTimeout,
		attemptTimeout: DefaultUploadAttemptTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Upload writes data under a fresh report media key and returns its URL.
// It gives up once the upload deadline passes even if attempts remain.
func (m *ObjectMediaStore) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	key := storage.GenerateReportMediaKey(mimeType)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := resilience.Retry(ctx, m.retry, func(ctx context.Context) (interface{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, m.attemptTimeout)
		defer cancel()
		return m.storage.Upload(attemptCtx, key, bytes.NewReader(data), int64(len(data)), mimeType)
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	uploaded, ok := result.(*storage.UploadResult)
	if !ok || uploaded == nil {
		return m.storage.GetURL(key), nil
	}
	return uploaded.URL, nil
}

// Delete removes previously uploaded media identified by its URL.
func (m *ObjectMediaStore) Delete(ctx context.Context, ref string) error {
	key, ok := m.storage.KeyFromURL(ref)
	if !ok {
		logger.WithContext(ctx).Warn("media reference not owned by this bucket", zap.String("ref", ref))
		return nil
	}
	return m.storage.Delete(ctx, key)
}
