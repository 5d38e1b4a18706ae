// Package storage stores inbound MMS media in S3-compatible object storage
// and serves it back through short-lived presigned URLs.
package storage

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"time"

	"clinic_engage_backend/platform/config"
	"clinic_engage_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// PresignedURLTTL is the expiration time for presigned download URLs.
	PresignedURLTTL = 15 * time.Minute

	fetchTimeout = 30 * time.Second
)

// PresignedURL is a short-lived download link for a stored media object.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MediaStore persists provider-hosted MMS media into a MinIO bucket.
type MediaStore struct {
	client *minio.Client
	http   *http.Client
	bucket string
	log    *logger.Logger
}

// NewMediaStore creates a media store, or nil when MinIO is not configured.
// Media handling is optional: without a store, messages keep their text body
// and media is dropped with a log line.
func NewMediaStore(cfg config.StorageConfig, log *logger.Logger) (*MediaStore, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MediaStore{
		client: client,
		http:   &http.Client{Timeout: fetchTimeout},
		bucket: cfg.GetMinioBucketMessageMedia(),
		log:    log,
	}, nil
}

// EnsureBucket creates the media bucket if it does not exist.
func (s *MediaStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// StoreFromURL fetches one media item from the provider's CDN and stores it
// under the owning message's provider id. Returns the object key.
func (s *MediaStore) StoreFromURL(ctx context.Context, providerMessageID, mediaURL, contentType string) (string, error) {
	if err := ValidateContentType(contentType); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build media request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > maxMediaBytes {
		return "", fmt.Errorf("media size %d exceeds maximum of %d bytes", resp.ContentLength, maxMediaBytes)
	}

	fileKey := fmt.Sprintf("messages/%s/%s%s", providerMessageID, uuid.New().String()[:8], extensionFor(contentType))

	// ContentLength can be -1; minio streams with unknown size in that case.
	_, err = s.client.PutObject(ctx, s.bucket, fileKey,
		http.MaxBytesReader(nil, resp.Body, maxMediaBytes), resp.ContentLength,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to store media %s: %w", fileKey, err)
	}
	return fileKey, nil
}

// DownloadURL creates a presigned download URL for a stored media object.
func (s *MediaStore) DownloadURL(ctx context.Context, fileKey string) (*PresignedURL, error) {
	expiresAt := time.Now().Add(PresignedURLTTL)

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, fileKey, PresignedURLTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned download URL: %w", err)
	}

	return &PresignedURL{
		URL:       presigned.String(),
		FileKey:   fileKey,
		ExpiresAt: expiresAt,
	}, nil
}

// Delete removes a stored media object.
func (s *MediaStore) Delete(ctx context.Context, fileKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, fileKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete media %s: %w", fileKey, err)
	}
	return nil
}

func extensionFor(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
