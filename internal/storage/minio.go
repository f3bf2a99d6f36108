package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/pkg/log"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioPublisher copies finished videos into a bucket.
type MinioPublisher struct {
	client *miniogo.Client
	bucket string
}

func NewMinioPublisher(cfg MinioConfig) (*MinioPublisher, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, apperr.New(apperr.ErrConfig, "minio endpoint and bucket are required")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrConfig, "create minio client")
	}
	return &MinioPublisher{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *MinioPublisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrRemoteService, "check bucket %s", p.bucket)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, miniogo.MakeBucketOptions{}); err != nil {
		return apperr.Wrap(err, apperr.ErrRemoteService, "create bucket %s", p.bucket)
	}
	log.Info("Created bucket %s", p.bucket)
	return nil
}

// Publish uploads the video at path and returns its object URL.
func (p *MinioPublisher) Publish(ctx context.Context, videoID, path string) (string, error) {
	key := ObjectKey(videoID)
	info, err := p.client.FPutObject(ctx, p.bucket, key, path, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrRemoteService, "upload %s", key)
	}
	log.Debug("Uploaded %s to bucket %s (%d bytes)", key, p.bucket, info.Size)
	return objectURL(p.client.EndpointURL(), p.bucket, key), nil
}

// Remove deletes a published video.
func (p *MinioPublisher) Remove(ctx context.Context, videoID string) error {
	if err := p.client.RemoveObject(ctx, p.bucket, ObjectKey(videoID), miniogo.RemoveObjectOptions{}); err != nil {
		return apperr.Wrap(err, apperr.ErrRemoteService, "remove %s", ObjectKey(videoID))
	}
	return nil
}

func ObjectKey(videoID string) string {
	return fmt.Sprintf("videos/%s.mp4", videoID)
}

func objectURL(endpoint *url.URL, bucket, key string) string {
	return strings.TrimSuffix(endpoint.String(), "/") + "/" + bucket + "/" + key
}
