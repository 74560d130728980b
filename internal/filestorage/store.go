// Package filestorage persists user files (documents, images, generated reports) either on the
// local disk or in the users bucket when running on GCP.
package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"texplicit_backend/internal/config"
	"texplicit_backend/internal/firebase"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidKey is returned for keys that are empty or escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// ErrNotExist is returned by Open when the object is missing.
var ErrNotExist = errors.New("file does not exist")

// Store is the storage backend. Keys are slash separated, e.g. "<userId>/<virtualName>".
type Store interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	EnsureFolder(ctx context.Context, prefix string) error
}

// New selects the bucket store when GCP_PROD_ENV is set and the local store otherwise.
func New(cfg *config.Config, logger *zap.Logger) (Store, error) {
	if cfg.GCPProdEnv {
		app, err := firebase.NewApp(cfg, logger)
		if err != nil {
			return nil, err
		}
		return NewBucketStore(context.Background(), app, cfg.GCPBucketUsers, logger)
	}
	return NewLocalStore(cfg.UserFolder, logger)
}

// CleanKey normalises a key and rejects traversal outside the root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(filepath.ToSlash(key))
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)
	if strings.Contains(key, "..") || cleaned == "/" {
		return "", ErrInvalidKey
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// SaveUploadedFile stores a multipart file under dir with a generated name that keeps the
// original extension. It returns the stored key and the number of bytes written.
func SaveUploadedFile(ctx context.Context, store Store, fileHeader *multipart.FileHeader, dir string) (string, int64, error) {
	if fileHeader == nil {
		return "", 0, fmt.Errorf("fileHeader cannot be nil")
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileHeader.Filename)))
	if ext == "" {
		return "", 0, fmt.Errorf("unsupported file type or missing extension: %s", fileHeader.Filename)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", 0, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	key := path.Join(dir, uuid.NewString()+ext)
	n, err := store.Save(ctx, key, src)
	if err != nil {
		return "", 0, err
	}
	return key, n, nil
}
