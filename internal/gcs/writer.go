package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds a single object upload.
const uploadTimeout = 2 * time.Minute

// UploadToGCS writes data to the object named by gcsURI.
// It assumes Application Default Credentials are configured.
func UploadToGCS(ctx context.Context, gcsURI string, data []byte) error {
	bucketName, objectPath, err := SplitURI(gcsURI)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("UploadToGCS: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectPath).NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadToGCS: copy to writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadToGCS: finalize upload: %w", err)
	}
	return nil
}

// WriteDestination writes data to a gs:// URI or a local file.
func WriteDestination(ctx context.Context, location string, data []byte) error {
	if IsGCSURI(location) {
		return UploadToGCS(ctx, location, data)
	}
	if err := os.WriteFile(location, data, 0o644); err != nil {
		return fmt.Errorf("WriteDestination: %w", err)
	}
	return nil
}
