package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider represents a storage provider type
type Provider string

const (
	ProviderS3  Provider = "s3"
	ProviderGCS Provider = "gcs"
)

// UploadResult contains the result of an upload operation
type UploadResult struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Storage is an object storage bucket.
type Storage interface {
	// Upload uploads an object
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error)

	// Delete deletes an object
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the public URL for a key
	GetURL(key string) string

	// KeyFromURL reverses GetURL; ok is false for URLs outside this bucket
	KeyFromURL(url string) (string, bool)
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

// GenerateReportMediaKey generates a unique key for report media.
// Format: reports/{yyyy}/{mm}/{uuid}{ext}
func GenerateReportMediaKey(mimeType string) string {
	return generateKeyAt(time.Now().UTC(), mimeType)
}

func generateKeyAt(now time.Time, mimeType string) string {
	ext := imageExtensions[strings.ToLower(strings.TrimSpace(mimeType))]
	return fmt.Sprintf("reports/%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.New().String(), ext)
}

// IsImageMimeType checks if the mime type is an image
func IsImageMimeType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

func joinURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(key, "/")
}

func keyFromURL(baseURL, url string) (string, bool) {
	prefix := strings.TrimSuffix(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) || len(url) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
