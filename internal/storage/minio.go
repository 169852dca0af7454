package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures a MinioBackend.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// MinioBackend implements Backend using MinIO or any S3-compatible service.
type MinioBackend struct {
	client *minio.Client
	bucket string
	region string
	logger *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewMinioBackend creates a MinIO client. It does not touch the network;
// call EnsureContainer before the first write.
func NewMinioBackend(opts MinioOptions, logger *slog.Logger) (*MinioBackend, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioBackend{
		client: client,
		bucket: opts.Bucket,
		region: opts.Region,
		logger: logger.With(slog.String("component", "storage_minio")),
	}, nil
}

// Name implements Backend.
func (s *MinioBackend) Name() string { return "minio" }

// EnsureContainer creates the bucket when missing. A bucket that already exists,
// including one created concurrently by another instance, is usable.
func (s *MinioBackend) EnsureContainer(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return true
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		s.logger.Error("check bucket existence", slog.String("bucket", s.bucket), slog.String("error", err.Error()))
		return false
	}
	if !exists {
		err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		if err != nil {
			code := minio.ToErrorResponse(err).Code
			if code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				s.logger.Error("create bucket", slog.String("bucket", s.bucket), slog.String("error", err.Error()))
				return false
			}
		} else {
			s.logger.Info("created bucket", slog.String("bucket", s.bucket))
		}
	}

	s.ready = true
	return true
}

// Put streams r to MinIO under folder/fileName.
func (s *MinioBackend) Put(ctx context.Context, r io.Reader, fileName, contentType, folder string) (string, error) {
	key := JoinKey(folder, fileName)
	if !s.EnsureContainer(ctx) {
		return "", fmt.Errorf("%w: bucket %q unavailable", ErrWrite, s.bucket)
	}

	body, size, err := prepareBody(r)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrWrite, key, err)
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.logger.Error("put object", slog.String("key", key), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: put object %q: %v", ErrWrite, key, err)
	}
	if info.ETag == "" {
		return "", fmt.Errorf("%w: put object %q: no etag returned", ErrWrite, key)
	}
	return key, nil
}

// Get downloads the object at key into memory.
func (s *MinioBackend) Get(ctx context.Context, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.readError(key, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return nil, s.readError(key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.readError(key, err)
	}

	return &Object{
		Body:        bytes.NewReader(data),
		ContentType: stat.ContentType,
		Size:        int64(len(data)),
	}, nil
}

// Delete removes key and optionally its derivatives. Derivative failures are
// logged and do not fail the call.
func (s *MinioBackend) Delete(ctx context.Context, key string, includeDerivatives bool) error {
	if err := s.remove(ctx, key); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	if includeDerivatives {
		_ = removeDerivatives(ctx, s.logger, key, s.remove)
	}
	return nil
}

func (s *MinioBackend) remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && isMinioNotFound(err) {
		return nil
	}
	return err
}

func (s *MinioBackend) readError(key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isMinioNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	s.logger.Error("get object", slog.String("key", key), slog.String("error", err.Error()))
	return fmt.Errorf("%w: get object %q: %v", ErrRead, key, err)
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey", resp.Code == "NoSuchObject":
		return true
	case resp.Code == "NoSuchBucket":
		return false
	}
	return resp.StatusCode == http.StatusNotFound || errors.Is(err, ErrNotFound)
}
