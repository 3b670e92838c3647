package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
)

const uriScheme = "gs://"

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

// FetchFromGCS delegates to the package level FetchFromGCS function.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}

// IsGCSURI reports whether location points at a bucket object.
func IsGCSURI(location string) bool {
	return strings.HasPrefix(location, uriScheme)
}

// SplitURI splits "gs://bucket/path/to/object" into bucket and object path.
func SplitURI(gcsURI string) (bucket, object string, err error) {
	if !IsGCSURI(gcsURI) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, uriScheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}

	return parts[0], parts[1], nil
}

// FetchFromGCS downloads the file bytes from the given GCS URI.
// It assumes Application Default Credentials are configured.
func FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := SplitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: creating storage client: %w", err)
	}
	defer storageClient.Close()

	rc, err := storageClient.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}

	return data, nil
}

// ReadSource reads location from GCS when it is a gs:// URI and from the
// local filesystem otherwise. A nil svc uses GCSStorageService.
func ReadSource(ctx context.Context, svc StorageService, location string) ([]byte, error) {
	if IsGCSURI(location) {
		if svc == nil {
			svc = NewGCSStorageService()
		}
		return svc.FetchFromGCS(ctx, location)
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("ReadSource: %w", err)
	}
	return data, nil
}

// BaseName extracts the file name from a local path or a GCS URI.
// e.g., "gs://bucket/exports/closures.json" → "closures.json"
func BaseName(location string) string {
	if !IsGCSURI(location) {
		return filepath.Base(location)
	}

	trimmed := strings.TrimPrefix(location, uriScheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}
