package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage keeps artifacts as plain files under a root directory,
// mirroring the storage key as a relative path. It is the default
// backend for single-node deployments and tests.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a LocalStorage rooted at root, creating the
// directory if needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = "./storage"
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root %s: %w", root, err)
	}
	return &LocalStorage{root: root}, nil
}

// Root returns the artifact root directory.
func (s *LocalStorage) Root() string { return s.root }

func (s *LocalStorage) keyPath(key string) string {
	return filepath.Join(s.root, key)
}

// writeTo copies reader into the artifact file for key, creating
// parent directories on demand.
func (s *LocalStorage) writeTo(key string, reader io.Reader) error {
	dst := s.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory for %q: %w", key, err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create artifact %q: %w", key, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("failed to write artifact %q: %w", key, err)
	}
	return nil
}

// Upload stores the bytes from reader under key.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeTo(key, reader)
}

// UploadFile stores a local file (typically a freshly built .diskann
// index) under key.
func (s *LocalStorage) UploadFile(ctx context.Context, key string, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()
	return s.writeTo(key, src)
}

// Download streams the artifact stored under key.
func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact %q not found", key)
		}
		return nil, fmt.Errorf("failed to open artifact %q: %w", key, err)
	}
	return f, nil
}

// DownloadFile copies the artifact stored under key (typically an input
// corpus) to a local file.
func (s *LocalStorage) DownloadFile(ctx context.Context, key string, localPath string) error {
	src, err := s.Download(ctx, key)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy artifact %q: %w", key, err)
	}
	return nil
}

// Delete removes the artifact stored under key.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.keyPath(key)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("artifact %q not found", key)
		}
		return fmt.Errorf("failed to delete artifact %q: %w", key, err)
	}
	return nil
}

// Exists reports whether an artifact is stored under key.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat artifact %q: %w", key, err)
	}
	return true, nil
}

// GetURL returns the filesystem path of the artifact under key.
func (s *LocalStorage) GetURL(key string) string {
	return s.keyPath(key)
}
