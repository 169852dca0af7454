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

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSOptions configures a GCSBackend.
type GCSOptions struct {
	ProjectID       string
	CredentialsFile string
	// Endpoint overrides the API endpoint, e.g. for a local emulator.
	Endpoint string
	Location string
	Bucket   string
}

// GCSBackend implements Backend on Google Cloud Storage.
type GCSBackend struct {
	client    *gcs.Client
	bucket    string
	projectID string
	location  string
	logger    *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewGCSBackend creates a Cloud Storage client with the given options.
func NewGCSBackend(ctx context.Context, opts GCSOptions, logger *slog.Logger) (*GCSBackend, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	}

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSBackend{
		client:    client,
		bucket:    opts.Bucket,
		projectID: opts.ProjectID,
		location:  opts.Location,
		logger:    logger.With(slog.String("component", "storage_gcs")),
	}, nil
}

// Name implements Backend.
func (s *GCSBackend) Name() string { return "gcs" }

// Close releases the underlying client.
func (s *GCSBackend) Close() error {
	return s.client.Close()
}

// EnsureContainer creates the bucket in the configured project when missing.
func (s *GCSBackend) EnsureContainer(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return true
	}

	bkt := s.client.Bucket(s.bucket)
	_, err := bkt.Attrs(ctx)
	switch {
	case err == nil:
	case errors.Is(err, gcs.ErrBucketNotExist):
		attrs := &gcs.BucketAttrs{Location: s.location}
		if err := bkt.Create(ctx, s.projectID, attrs); err != nil && !isGoogleStatus(err, http.StatusConflict) {
			s.logger.Error("create bucket", slog.String("bucket", s.bucket), slog.String("error", err.Error()))
			return false
		}
		s.logger.Info("created bucket", slog.String("bucket", s.bucket))
	default:
		s.logger.Error("check bucket existence", slog.String("bucket", s.bucket), slog.String("error", err.Error()))
		return false
	}

	s.ready = true
	return true
}

// Put uploads r to folder/fileName. The write is acknowledged only when the
// service returns an MD5, CRC32C or etag for the new object.
func (s *GCSBackend) Put(ctx context.Context, r io.Reader, fileName, contentType, folder string) (string, error) {
	key := JoinKey(folder, fileName)
	if !s.EnsureContainer(ctx) {
		return "", fmt.Errorf("%w: bucket %q unavailable", ErrWrite, s.bucket)
	}

	body, _, err := prepareBody(r)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrWrite, key, err)
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		s.logger.Error("write object", slog.String("key", key), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: write object %q: %v", ErrWrite, key, err)
	}
	if err := w.Close(); err != nil {
		s.logger.Error("finalize object", slog.String("key", key), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: finalize object %q: %v", ErrWrite, key, err)
	}

	attrs := w.Attrs()
	if attrs == nil || (len(attrs.MD5) == 0 && attrs.CRC32C == 0 && attrs.Etag == "") {
		return "", fmt.Errorf("%w: object %q: no integrity tag returned", ErrWrite, key)
	}
	return key, nil
}

// Get downloads the object at key into memory.
func (s *GCSBackend) Get(ctx context.Context, key string) (*Object, error) {
	rd, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, s.readError(key, err)
	}
	defer rd.Close()

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, s.readError(key, err)
	}

	return &Object{
		Body:        bytes.NewReader(data),
		ContentType: rd.Attrs.ContentType,
		Size:        int64(len(data)),
	}, nil
}

// Delete removes key and optionally its derivatives.
func (s *GCSBackend) Delete(ctx context.Context, key string, includeDerivatives bool) error {
	if err := s.remove(ctx, key); err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	if includeDerivatives {
		_ = removeDerivatives(ctx, s.logger, key, s.remove)
	}
	return nil
}

func (s *GCSBackend) remove(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *GCSBackend) readError(key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	s.logger.Error("read object", slog.String("key", key), slog.String("error", err.Error()))
	return fmt.Errorf("%w: read object %q: %v", ErrRead, key, err)
}

func isGoogleStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
