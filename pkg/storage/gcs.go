package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCSStorage implements Storage for Google Cloud Storage
type GCSStorage struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

// GCSConfig holds GCS-specific configuration
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	BaseURL         string
}

// NewGCSStorage creates a new GCS storage instance. Without a credentials
// file, application default credentials are used.
func NewGCSStorage(ctx context.Context, cfg GCSConfig) (*GCSStorage, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://storage.googleapis.com/%s", cfg.Bucket)
	}

	return &GCSStorage{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Upload uploads an object to GCS
func (g *GCSStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error) {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		logger.Error("Failed to upload to GCS", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to upload to GCS: %w", err)
	}
	// the object is only committed on Close
	if err := w.Close(); err != nil {
		logger.Error("Failed to finalize GCS upload", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to upload to GCS: %w", err)
	}

	logger.Info("Media uploaded to GCS", zap.String("key", key), zap.Int64("size", size))

	return &UploadResult{
		Key:        key,
		URL:        g.GetURL(key),
		Size:       size,
		MimeType:   contentType,
		UploadedAt: time.Now(),
	}, nil
}

// Delete deletes an object from GCS
func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// Exists checks if an object exists in GCS
func (g *GCSStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.Bucket(g.bucket).Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat GCS object: %w", err)
	}
	return true, nil
}

// GetURL returns the public URL for an object
func (g *GCSStorage) GetURL(key string) string {
	return joinURL(g.baseURL, key)
}

// KeyFromURL implements Storage
func (g *GCSStorage) KeyFromURL(url string) (string, bool) {
	return keyFromURL(g.baseURL, url)
}

// Close releases the underlying client
func (g *GCSStorage) Close() error {
	return g.client.Close()
}
