package datalayer

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/glizzus/cobot/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type PutOptions struct {
	Size        int64
	ContentType string
}

type BlobStorage interface {
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error
}

// MinioStorage serves sounds from an S3-compatible bucket.
// Objects are named after the sound plus the store's extension.
type MinioStorage struct {
	client *minio.Client
	bucket string
	ext    string
}

func NewMinioStorageFromEnv(ext string) (*MinioStorage, error) {
	cfg, err := config.NewMinioConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewMinioStorage(cfg, ext)
}

func NewMinioStorage(cfg *config.MinioConfig, ext string) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Username, cfg.Password, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
		ext:    ext,
	}, nil
}

func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	// If the bucket is already owned, succeed
	if err != nil {
		if minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return err
	}
	return nil
}

var (
	_ BlobStorage = (*MinioStorage)(nil)
	_ AudioStore  = (*MinioStorage)(nil)
)

func (s *MinioStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, data, opts.Size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	return err
}

// PutSound uploads a clip under the object key for name.
func (s *MinioStorage) PutSound(ctx context.Context, name string, data io.Reader, size int64) error {
	if !validName(name) {
		return fmt.Errorf("invalid sound name %q", name)
	}
	return s.Put(ctx, name+s.ext, data, PutOptions{Size: size, ContentType: "audio/ogg"})
}

// List returns the sounds at the top level of the bucket. Objects under a
// prefix are not playable by name, so they are left out the same way LocalStore
// ignores subdirectories.
func (s *MinioStorage) List(ctx context.Context) ([]string, error) {
	var names []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", s.bucket, object.Err)
		}
		if strings.Contains(object.Key, "/") {
			continue
		}
		if name, ok := soundName(object.Key, s.ext); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *MinioStorage) Fetch(ctx context.Context, name, scratchDir string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrSoundNotFound, name)
	}
	key := name + s.ext

	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", s.fetchError(name, err)
	}
	defer object.Close()

	// GetObject is lazy; Stat surfaces a missing key before anything is written.
	if _, err := object.Stat(); err != nil {
		return "", s.fetchError(name, err)
	}

	dest, err := copyIntoScratch(object, scratchDir, key)
	if err != nil {
		return "", s.fetchError(name, err)
	}
	return dest, nil
}

func (s *MinioStorage) fetchError(name string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %q", ErrSoundNotFound, name)
	}
	return fmt.Errorf("failed to fetch sound %q from bucket %s: %w", name, s.bucket, err)
}
