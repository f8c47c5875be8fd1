package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/AnTengye/contractscore/config"
)

// FileStorage keeps the original uploaded bytes under an object key.
type FileStorage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// PresignedURL returns a time-limited download link, or
	// ErrPresignUnsupported when the backend cannot issue one.
	PresignedURL(ctx context.Context, key string) (string, error)
}

// OpenStorage builds the FileStorage selected by cfg.Driver.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (FileStorage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir)
	case "minio":
		s, err := NewMinioStorage(&cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// LocalStorage writes objects below a root directory.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

func (s *LocalStorage) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create object: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write object: %w", err)
	}
	return f.Close()
}

func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

func (s *LocalStorage) PresignedURL(context.Context, string) (string, error) {
	return "", ErrPresignUnsupported
}

// resolve maps key to a path and refuses keys that escape the root.
func (s *LocalStorage) resolve(key string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return path, nil
}
