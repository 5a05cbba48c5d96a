package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ewilliams-labs/songform/internal/core/ports"
)

// GCSStore writes objects to a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ ports.AudioStore = (*GCSStore)(nil)

// NewGCSStore creates a client from credentialsFile, or from application
// default credentials when it is empty.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("blob: gcs bucket is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(s.objectName(key)).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("blob: gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blob: gcs commit %s: %w", key, err)
	}
	return nil
}

// Delete removes the object. A missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(s.objectName(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("blob: gcs delete %s: %w", key, err)
	}
	return nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) objectName(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}
