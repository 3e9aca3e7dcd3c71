package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"greencredits/pkg/platform/sentinel"
)

// GCSStore keeps blobs in a Google Cloud Storage bucket. References are object
// names generated at write time.
type GCSStore struct {
	bucket *storage.BucketHandle
}

// NewGCSStore opens a client against the given bucket. Credentials come from
// the ambient environment (ADC).
func NewGCSStore(ctx context.Context, bucketName string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{bucket: client.Bucket(bucketName)}, nil
}

func (s *GCSStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	ref := fmt.Sprintf("certificates/%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], safeExt(name))
	w := s.bucket.Object(ref).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write gcs object %s: %w", ref, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gcs object %s: %w", ref, err)
	}
	return ref, nil
}

func (s *GCSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	r, err := s.bucket.Object(ref).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gcs object %s: %w", ref, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("open gcs object %s: %w", ref, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gcs object %s: %w", ref, err)
	}
	return data, nil
}

func (s *GCSStore) Delete(ctx context.Context, ref string) error {
	err := s.bucket.Object(ref).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gcs object %s: %w", ref, err)
	}
	return nil
}

var (
	_ Store = (*DiskStore)(nil)
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*GCSStore)(nil)
)
