package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openfoodhub/insight-server/common/config"
)

// Client is the object-storage surface the server needs: model weight
// artifacts and dataset dumps.
type Client interface {
	PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) error
	GetObject(ctx context.Context, objectName string) (io.ReadCloser, error)
	StatObject(ctx context.Context, objectName string) (minio.ObjectInfo, error)
	ObjectExists(ctx context.Context, objectName string) (bool, error)
}

type minioClient struct {
	core   *minio.Client
	bucket string
}

func NewMinio(cfg *config.Config) (Client, error) {
	core, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKeyID, cfg.S3.AccessKeySecret, ""),
		Secure: cfg.S3.EnableSSL,
		Region: cfg.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing minio client: %w", err)
	}
	return &minioClient{
		core:   core,
		bucket: cfg.S3.Bucket,
	}, nil
}

func (c *minioClient) PutObject(ctx context.Context, objectName string, reader io.Reader, objectSize int64, contentType string) error {
	_, err := c.core.PutObject(ctx, c.bucket, objectName, reader, objectSize, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("uploading object %q: %w", objectName, err)
	}
	return nil
}

func (c *minioClient) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := c.core.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching object %q: %w", objectName, err)
	}
	return obj, nil
}

func (c *minioClient) StatObject(ctx context.Context, objectName string) (minio.ObjectInfo, error) {
	return c.core.StatObject(ctx, c.bucket, objectName, minio.StatObjectOptions{})
}

func (c *minioClient) ObjectExists(ctx context.Context, objectName string) (bool, error) {
	_, err := c.core.StatObject(ctx, c.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
