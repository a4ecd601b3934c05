package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/tencentyun/cos-go-sdk-v5"
)

// COSConfig holds Tencent COS connection settings.
type COSConfig struct {
	Bucket    string
	Region    string
	SecretID  string
	SecretKey string
	Domain    string // defaults to "myqcloud.com"
	Scheme    string // defaults to "https"
}

// COSStorage stores corpus and index artifacts in a Tencent COS bucket,
// so builds can run on machines other than the one holding the corpus.
type COSStorage struct {
	client *cos.Client
	cfg    COSConfig
}

// NewCOSStorage creates a COSStorage for the configured bucket.
func NewCOSStorage(cfg *COSConfig) (*COSStorage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("bucket and region are required for COS artifact storage")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("credentials are required for COS artifact storage")
	}

	norm := *cfg
	if norm.Domain == "" {
		norm.Domain = "myqcloud.com"
	}
	if norm.Scheme == "" {
		norm.Scheme = "https"
	}

	bucketURL, err := url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s",
		norm.Scheme, norm.Bucket, norm.Region, norm.Domain))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}
	serviceURL, err := url.Parse(fmt.Sprintf("%s://cos.%s.%s",
		norm.Scheme, norm.Region, norm.Domain))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{
		BucketURL:  bucketURL,
		ServiceURL: serviceURL,
	}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  norm.SecretID,
			SecretKey: norm.SecretKey,
		},
	})

	return &COSStorage{client: client, cfg: norm}, nil
}

// Upload stores the bytes from reader under key.
func (s *COSStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	if _, err := s.client.Object.Put(ctx, key, reader, nil); err != nil {
		return fmt.Errorf("failed to upload artifact %q: %w", key, err)
	}
	return nil
}

// UploadFile stores a local file (typically a built .diskann index)
// under key.
func (s *COSStorage) UploadFile(ctx context.Context, key string, localPath string) error {
	if _, err := s.client.Object.PutFromFile(ctx, key, localPath, nil); err != nil {
		return fmt.Errorf("failed to upload artifact %q from %s: %w", key, localPath, err)
	}
	return nil
}

// Download streams the artifact stored under key.
func (s *COSStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact %q: %w", key, err)
	}
	return resp.Body, nil
}

// DownloadFile copies the artifact stored under key (typically an input
// corpus) to a local file.
func (s *COSStorage) DownloadFile(ctx context.Context, key string, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}
	if _, err := s.client.Object.GetToFile(ctx, key, localPath, nil); err != nil {
		return fmt.Errorf("failed to download artifact %q to %s: %w", key, localPath, err)
	}
	return nil
}

// Delete removes the artifact stored under key.
func (s *COSStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Object.Delete(ctx, key, nil); err != nil {
		return fmt.Errorf("failed to delete artifact %q: %w", key, err)
	}
	return nil
}

// Exists reports whether an artifact is stored under key.
func (s *COSStorage) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.Object.IsExist(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check artifact %q: %w", key, err)
	}
	return ok, nil
}

// GetURL returns the public URL of the artifact under key.
func (s *COSStorage) GetURL(key string) string {
	return fmt.Sprintf("%s://%s.cos.%s.%s/%s",
		s.cfg.Scheme, s.cfg.Bucket, s.cfg.Region, s.cfg.Domain, key)
}
