package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecindex/pkg/config"
)

func TestNewCOSStorageValidation(t *testing.T) {
	base := COSConfig{
		Bucket:    "test-bucket",
		Region:    "ap-guangzhou",
		SecretID:  "test-id",
		SecretKey: "test-key",
	}

	t.Run("MissingBucket", func(t *testing.T) {
		cfg := base
		cfg.Bucket = ""
		store, err := NewCOSStorage(&cfg)
		require.Error(t, err)
		assert.Nil(t, store)
		assert.Contains(t, err.Error(), "bucket and region are required")
	})

	t.Run("MissingRegion", func(t *testing.T) {
		cfg := base
		cfg.Region = ""
		store, err := NewCOSStorage(&cfg)
		require.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("MissingCredentials", func(t *testing.T) {
		cfg := base
		cfg.SecretID, cfg.SecretKey = "", ""
		store, err := NewCOSStorage(&cfg)
		require.Error(t, err)
		assert.Nil(t, store)
		assert.Contains(t, err.Error(), "credentials are required")
	})

	t.Run("ValidConfig", func(t *testing.T) {
		cfg := base
		store, err := NewCOSStorage(&cfg)
		require.NoError(t, err)
		assert.NotNil(t, store)
	})
}

func TestCOSStorageGetURL(t *testing.T) {
	store, err := NewCOSStorage(&COSConfig{
		Bucket:    "my-bucket",
		Region:    "ap-guangzhou",
		SecretID:  "test-id",
		SecretKey: "test-key",
	})
	require.NoError(t, err)

	url := store.GetURL(IndexKey("embeddings"))
	assert.Equal(t,
		"https://my-bucket.cos.ap-guangzhou.myqcloud.com/indexes/embeddings.diskann", url)
}

func TestNewStorageSelectsBackend(t *testing.T) {
	t.Run("COS", func(t *testing.T) {
		store, err := NewStorage(&config.StorageConfig{
			Type:      "cos",
			Bucket:    "test-bucket",
			Region:    "ap-guangzhou",
			SecretID:  "test-id",
			SecretKey: "test-key",
		})
		require.NoError(t, err)
		_, ok := store.(*COSStorage)
		assert.True(t, ok)
	})

	t.Run("Local", func(t *testing.T) {
		store, err := NewStorage(&config.StorageConfig{
			Type:      "local",
			LocalPath: t.TempDir(),
		})
		require.NoError(t, err)
		_, ok := store.(*LocalStorage)
		assert.True(t, ok)
	})
}

func TestValidateConfig(t *testing.T) {
	t.Run("NilConfig", func(t *testing.T) {
		err := ValidateConfig(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage config is nil")
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		err := ValidateConfig(&config.StorageConfig{Type: "s3"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported storage type")
	})

	t.Run("COSMissingBucket", func(t *testing.T) {
		err := ValidateConfig(&config.StorageConfig{
			Type: "cos", Region: "ap-guangzhou", SecretID: "id", SecretKey: "key",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "COS bucket is required")
	})

	t.Run("COSMissingCredentials", func(t *testing.T) {
		err := ValidateConfig(&config.StorageConfig{
			Type: "cos", Bucket: "b", Region: "ap-guangzhou",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "COS credentials are required")
	})

	t.Run("LocalMissingPath", func(t *testing.T) {
		err := ValidateConfig(&config.StorageConfig{Type: "local"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "local storage path is required")
	})

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, ValidateConfig(&config.StorageConfig{
			Type: "local", LocalPath: "/tmp/artifacts",
		}))
	})
}
