package storage

import (
	"fmt"
	"strings"
)

// AllowedContentTypes lists the MIME types patients may upload. The portal
// collects photos, scans, and medical reports; nothing executable.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/heic": true,
	"image/webp": true,

	"application/pdf":   true,
	"application/dicom": true,

	"text/plain": true,
}

// ValidateContentType rejects MIME types outside the allowlist. Parameters
// such as charset are stripped before matching.
func (s *MinIOService) ValidateContentType(contentType string) error {
	normalized := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	if !AllowedContentTypes[normalized] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

func (s *MinIOService) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes <= 0 {
		return fmt.Errorf("file size must be greater than 0")
	}
	if sizeBytes > s.maxFileSize {
		return fmt.Errorf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, s.maxFileSize)
	}
	return nil
}

// IsImageContentType reports whether the MIME type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}
