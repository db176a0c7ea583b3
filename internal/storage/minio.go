package storage

import (
	"context"
	"io"
	"net/http"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/internal/config"
)

// MinioStore keeps attachments in an S3 compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

var _ Store = (*MinioStore)(nil)

// NewMinioStore connects and creates the bucket when it does not exist.
func NewMinioStore(ctx context.Context, cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio client")
	}
	s := &MinioStore{client: client, bucket: cfg.MinioBucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err == nil {
		return nil
	}
	exists, existsErr := s.client.BucketExists(ctx, s.bucket)
	if existsErr == nil && exists {
		return nil
	}
	return errors.Wrapf(err, "create bucket %s", s.bucket)
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	clean, err := CleanKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, clean, r, size, minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrap(err, "put attachment")
}

func (s *MinioStore) Open(ctx context.Context, key string) (*Object, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, clean, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "get attachment")
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "stat attachment")
	}
	return &Object{ReadSeekCloser: obj, Name: path.Base(clean), Size: info.Size, ModTime: info.LastModified}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	clean, err := CleanKey(key)
	if err != nil {
		return err
	}
	return errors.Wrap(s.client.RemoveObject(ctx, s.bucket, clean, minio.RemoveObjectOptions{}), "delete attachment")
}

// RemovePrefix deletes every object below prefix.
func (s *MinioStore) RemovePrefix(ctx context.Context, prefix string) error {
	clean, err := CleanKey(prefix)
	if err != nil {
		return err
	}
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: clean + "/", Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			return errors.Wrap(obj.Err, "list attachments")
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrapf(err, "delete %s", obj.Key)
		}
	}
	return nil
}
