// Package gcsuploader archives statements in Google Cloud Storage and reads
// them back from gs:// URIs.
package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/statement-kfi/internal/pipeline"
)

// StatementPrefix is the object prefix archived statements are stored under.
const StatementPrefix = "statements/"

const uploadTimeout = 2 * time.Minute

// Uploader writes statements into one bucket. The storage client is shared and
// owned by the caller.
type Uploader struct {
	client *storage.Client
	bucket string
}

// NewUploader creates an Uploader for bucket.
func NewUploader(client *storage.Client, bucket string) *Uploader {
	return &Uploader{client: client, bucket: bucket}
}

// UploadStatement stores the PDF as statements/<applicantID>.pdf and returns
// its gs:// URI. It implements pipeline.Archiver.
func (u *Uploader) UploadStatement(ctx context.Context, applicantID string, data []byte) (string, error) {
	if applicantID == "" {
		return "", fmt.Errorf("UploadStatement: applicant id is required")
	}
	objectName := StatementPrefix + applicantID + ".pdf"
	if err := u.Upload(ctx, objectName, pipeline.PDFContentType, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("UploadStatement: %w", err)
	}
	return GCSURI(u.bucket, objectName), nil
}

// Upload copies r into objectName.
func (u *Uploader) Upload(ctx context.Context, objectName, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := u.client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", objectName, err)
	}
	return nil
}

// Ensure Uploader implements pipeline.Archiver.
var _ pipeline.Archiver = (*Uploader)(nil)
