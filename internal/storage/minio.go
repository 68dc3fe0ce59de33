// Package storage holds the MinIO-backed document store used for patient
// uploads (smile photos, x-rays, medical reports).
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"smiledesign_backend/platform/config"
)

// PresignedURLTTL bounds how long an issued upload or download URL works.
const PresignedURLTTL = 15 * time.Minute

// PresignedURL is a time-limited URL plus the object key it targets.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DocumentStore is the storage surface handlers depend on.
type DocumentStore interface {
	EnsureBucketExists(ctx context.Context, bucket string) error
	GenerateUploadURL(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (*PresignedURL, error)
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error)
	DeleteObject(ctx context.Context, bucket, fileKey string) error
}

// MinIOService implements DocumentStore against a MinIO or S3-compatible
// endpoint.
type MinIOService struct {
	client      *minio.Client
	maxFileSize int64
}

func NewMinIOService(cfg config.StorageConfig) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	return &MinIOService{client: client, maxFileSize: cfg.GetMinIOMaxFileSize()}, nil
}

func (s *MinIOService) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// GenerateUploadURL validates the file and returns a presigned PUT URL.
// The object key gets a short random suffix so repeat uploads of the same
// file name never overwrite each other.
func (s *MinIOService) GenerateUploadURL(ctx context.Context, bucket, folder, fileName, contentType string, sizeBytes int64) (*PresignedURL, error) {
	if err := s.ValidateContentType(contentType); err != nil {
		return nil, err
	}
	if err := s.ValidateFileSize(sizeBytes); err != nil {
		return nil, err
	}

	fileKey := uniqueFileKey(folder, fileName)
	expiresAt := time.Now().Add(PresignedURLTTL)
	presignedURL, err := s.client.PresignedPutObject(ctx, bucket, fileKey, PresignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("generate presigned upload URL: %w", err)
	}

	return &PresignedURL{URL: presignedURL.String(), FileKey: fileKey, ExpiresAt: expiresAt}, nil
}

func (s *MinIOService) GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error) {
	expiresAt := time.Now().Add(PresignedURLTTL)
	presignedURL, err := s.client.PresignedGetObject(ctx, bucket, fileKey, PresignedURLTTL, nil)
	if err != nil {
		return nil, fmt.Errorf("generate presigned download URL: %w", err)
	}
	return &PresignedURL{URL: presignedURL.String(), FileKey: fileKey, ExpiresAt: expiresAt}, nil
}

func (s *MinIOService) DeleteObject(ctx context.Context, bucket, fileKey string) error {
	if err := s.client.RemoveObject(ctx, bucket, fileKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object %s: %w", fileKey, err)
	}
	return nil
}

func uniqueFileKey(folder, fileName string) string {
	ext := path.Ext(fileName)
	baseName := strings.TrimSuffix(fileName, ext)
	unique := fmt.Sprintf("%s_%s%s", baseName, uuid.New().String()[:8], ext)
	return filepath.ToSlash(filepath.Join(folder, unique))
}
