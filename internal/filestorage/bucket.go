package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
)

// BucketStore keeps files in a Cloud Storage bucket reached through the Firebase Admin SDK.
type BucketStore struct {
	bucket *gcs.BucketHandle
	name   string
	logger *zap.Logger
}

// NewBucketStore opens bucketName with the storage client of app.
func NewBucketStore(ctx context.Context, app *firebase.App, bucketName string, logger *zap.Logger) (*BucketStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firebase Storage client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("error opening bucket %s: %w", bucketName, err)
	}
	logger.Info("Bucket file storage initialized", zap.String("bucket", bucketName))
	return &BucketStore{bucket: bucket, name: bucketName, logger: logger}, nil
}

func (s *BucketStore) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return 0, err
	}
	w := s.bucket.Object(cleaned).NewWriter(ctx)
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("failed to upload %s: %w", cleaned, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize upload %s: %w", cleaned, err)
	}
	return n, nil
}

func (s *BucketStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	rc, err := s.bucket.Object(cleaned).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotExist
	}
	return rc, err
}

func (s *BucketStore) Delete(ctx context.Context, key string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.bucket.Object(cleaned).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", cleaned, err)
	}
	return nil
}

func (s *BucketStore) DeletePrefix(ctx context.Context, prefix string) error {
	cleaned, err := CleanKey(prefix)
	if err != nil {
		return err
	}
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: strings.TrimSuffix(cleaned, "/") + "/"})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", cleaned, err)
		}
		if err := s.bucket.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			s.logger.Warn("Failed to delete object", zap.String("object", attrs.Name), zap.Error(err))
		}
	}
}

// EnsureFolder writes the empty placeholder object that represents a folder in the bucket.
func (s *BucketStore) EnsureFolder(ctx context.Context, prefix string) error {
	cleaned, err := CleanKey(prefix)
	if err != nil {
		return err
	}
	w := s.bucket.Object(strings.TrimSuffix(cleaned, "/") + "/").NewWriter(ctx)
	return w.Close()
}
