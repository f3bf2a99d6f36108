package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngdarren/mr-team/internal/apperr"
)

func TestNewMinioPublisher(t *testing.T) {
	t.Run("requires endpoint and bucket", func(t *testing.T) {
		_, err := NewMinioPublisher(MinioConfig{Bucket: "videos"})
		assert.True(t, apperr.Is(err, apperr.ErrConfig))

		_, err = NewMinioPublisher(MinioConfig{Endpoint: "localhost:9000"})
		assert.True(t, apperr.Is(err, apperr.ErrConfig))
	})

	t.Run("builds object urls", func(t *testing.T) {
		p, err := NewMinioPublisher(MinioConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "videos",
		})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000/videos/videos/abc.mp4",
			objectURL(p.client.EndpointURL(), p.bucket, ObjectKey("abc")))
	})

	t.Run("tls endpoint", func(t *testing.T) {
		p, err := NewMinioPublisher(MinioConfig{
			Endpoint: "s3.example.com",
			Bucket:   "media",
			UseSSL:   true,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://s3.example.com/media/videos/x.mp4",
			objectURL(p.client.EndpointURL(), p.bucket, ObjectKey("x")))
	})
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "videos/123e4567.mp4", ObjectKey("123e4567"))
}
