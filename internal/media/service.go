// Package media stores uploaded files in S3-compatible object storage.
// Objects are partitioned by MIME class and deduplicated by filename suffix.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxUploadSize caps a single upload at 100 MiB.
const MaxUploadSize = 100 << 20

var ErrTooLarge = errors.New("upload exceeds size limit")

type Service struct {
	client *minio.Client
	bucket string
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Service{client: client, bucket: cfg.Bucket}, nil
}

// folderFor partitions uploads by their MIME class.
func folderFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "images"
	case strings.HasPrefix(contentType, "video/"):
		return "videos"
	default:
		return "files"
	}
}

// Upload stores the file and returns its object key. Name collisions get a
// numeric suffix before the extension (pic.png, pic-1.png, pic-2.png).
func (s *Service) Upload(ctx context.Context, filename, contentType string, size int64, reader io.Reader) (string, error) {
	if size > MaxUploadSize {
		return "", ErrTooLarge
	}

	key, err := s.availableKey(ctx, folderFor(contentType), path.Base(filename))
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

// candidateKey builds the object key for the given collision attempt.
// Attempt 0 is the plain filename.
func candidateKey(folder, filename string, attempt int) string {
	if attempt == 0 {
		return path.Join(folder, filename)
	}
	ext := path.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	return path.Join(folder, fmt.Sprintf("%s-%d%s", stem, attempt, ext))
}

func (s *Service) availableKey(ctx context.Context, folder, filename string) (string, error) {
	for i := 0; ; i++ {
		key := candidateKey(folder, filename, i)
		taken, err := s.exists(ctx, key)
		if err != nil {
			return "", err
		}
		if !taken {
			return key, nil
		}
	}
}

func (s *Service) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat object: %w", err)
}

// Open streams an object for serving. The caller closes the reader.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object: %w", err)
	}
	info, err := object.Stat()
	if err != nil {
		object.Close()
		return nil, "", fmt.Errorf("stat object: %w", err)
	}
	return object, info.ContentType, nil
}

// Delete removes an object. Missing objects are not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
