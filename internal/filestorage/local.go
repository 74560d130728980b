package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// LocalStore keeps files under a base directory on disk.
type LocalStore struct {
	storagePath string
	logger      *zap.Logger
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(storagePath string, logger *zap.Logger) (*LocalStore, error) {
	if storagePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if err := os.MkdirAll(storagePath, os.ModePerm); err != nil {
		logger.Error("Failed to create storage path directory", zap.String("path", storagePath), zap.Error(err))
		return nil, fmt.Errorf("failed to create storage path %s: %w", storagePath, err)
	}
	logger.Info("Local file storage initialized", zap.String("storagePath", storagePath))
	return &LocalStore{storagePath: storagePath, logger: logger}, nil
}

func (s *LocalStore) fullPath(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		s.logger.Warn("Rejected storage key", zap.String("key", key))
		return "", err
	}
	return filepath.Join(s.storagePath, filepath.FromSlash(cleaned)), nil
}

// Save writes r to key, replacing any existing file.
func (s *LocalStore) Save(_ context.Context, key string, r io.Reader) (int64, error) {
	dest, err := s.fullPath(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	dst, err := os.Create(dest)
	if err != nil {
		s.logger.Error("Failed to create destination file", zap.String("path", dest), zap.Error(err))
		return 0, fmt.Errorf("failed to create file %s: %w", key, err)
	}
	n, err := io.Copy(dst, r)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("failed to save file: %w", err)
	}

	s.logger.Debug("File saved", zap.String("path", dest), zap.Int64("bytes", n))
	return n, nil
}

// Open returns the content stored at key.
func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	return f, err
}

// Delete removes key. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("Failed to delete file", zap.String("path", p), zap.Error(err))
		return fmt.Errorf("failed to delete file %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes the directory at prefix and everything below it.
func (s *LocalStore) DeletePrefix(_ context.Context, prefix string) error {
	p, err := s.fullPath(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("failed to delete %s: %w", prefix, err)
	}
	return nil
}

// EnsureFolder creates the directory at prefix.
func (s *LocalStore) EnsureFolder(_ context.Context, prefix string) error {
	p, err := s.fullPath(prefix)
	if err != nil {
		return err
	}
	return os.MkdirAll(p, os.ModePerm)
}
