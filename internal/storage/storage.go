// Package storage persists vecindex artifacts — input corpus files and
// built .diskann indexes — behind a common interface with local-FS and
// Tencent COS backends. The build scheduler downloads corpora and
// uploads finished indexes through it.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/vecindex/pkg/config"
)

// Storage stores and retrieves index artifacts by key.
type Storage interface {
	// Upload stores the bytes from reader under key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// UploadFile stores a local file under key.
	UploadFile(ctx context.Context, key string, localPath string) error

	// Download streams the artifact stored under key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// DownloadFile copies the artifact stored under key to a local file.
	DownloadFile(ctx context.Context, key string, localPath string) error

	// Delete removes the artifact stored under key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an artifact is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the URL (or local path) of the artifact under key.
	GetURL(key string) string
}

// Artifact key conventions. Build tasks may carry explicit keys; when
// they do not, these derive the canonical locations.

// CorpusKey returns the canonical key for an input corpus.
func CorpusKey(uuid string) string {
	return path.Join("corpora", uuid+".bin")
}

// IndexKey returns the canonical key for a built index artifact.
func IndexKey(name string) string {
	return path.Join("indexes", name+".diskann")
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeCOS   StorageType = "cos"
)

// NewStorage creates a Storage backend from the configuration.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch StorageType(cfg.Type) {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeCOS:
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// ValidateConfig validates the storage configuration.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return fmt.Errorf("storage config is nil")
	}

	storageType := StorageType(cfg.Type)
	if storageType == "" {
		storageType = StorageTypeLocal
	}
	if storageType != StorageTypeCOS && storageType != StorageTypeLocal {
		return fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	if storageType == StorageTypeCOS {
		if cfg.Bucket == "" {
			return fmt.Errorf("COS bucket is required")
		}
		if cfg.Region == "" {
			return fmt.Errorf("COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return fmt.Errorf("COS credentials are required")
		}
	}
	if storageType == StorageTypeLocal && cfg.LocalPath == "" {
		return fmt.Errorf("local storage path is required")
	}

	return nil
}
