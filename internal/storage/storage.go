// Package storage defines the object store abstraction used for media bytes.
// Two interchangeable backends exist: MinIO (any S3-compatible service) and
// Google Cloud Storage. The implementation is chosen once at startup.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/travelsidecar/service/internal/config"
	"github.com/travelsidecar/service/internal/domain/model"
	"github.com/travelsidecar/service/internal/imaging"
)

var (
	// ErrNotFound is returned when the requested key does not exist.
	ErrNotFound = errors.New("storage: object not found")
	// ErrWrite is returned when the backend does not acknowledge a write.
	ErrWrite = errors.New("storage: write failed")
	// ErrRead is returned for backend read failures other than a missing key.
	ErrRead = errors.New("storage: read failed")
)

// Object is a fully materialized copy of a stored object, positioned at offset 0.
type Object struct {
	Body        *bytes.Reader
	ContentType string
	Size        int64
}

// Backend is the interface every object store implementation satisfies.
// Implementations are safe for concurrent use.
type Backend interface {
	// EnsureContainer creates the bucket if it is absent and reports whether it is usable.
	EnsureContainer(ctx context.Context) bool
	// Put streams r to folder/fileName and returns the composed key.
	Put(ctx context.Context, r io.Reader, fileName, contentType, folder string) (string, error)
	// Get returns a fresh in-memory copy of the object at key.
	Get(ctx context.Context, key string) (*Object, error)
	// Delete removes key and, when includeDerivatives is set, its resized variants.
	Delete(ctx context.Context, key string, includeDerivatives bool) error
	// Name identifies the provider in logs and metrics.
	Name() string
}

// New builds the backend selected by cfg.StorageProvider and ensures its bucket.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.StorageProvider {
	case config.ProviderMinio:
		b, err = NewMinioBackend(MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.StorageBucket,
		}, logger)
	case config.ProviderGCS:
		b, err = NewGCSBackend(ctx, GCSOptions{
			ProjectID:       cfg.GCSProjectID,
			CredentialsFile: cfg.GCSCredentialsFile,
			Endpoint:        cfg.GCSEndpoint,
			Location:        cfg.GCSLocation,
			Bucket:          cfg.StorageBucket,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
	}
	if err != nil {
		return nil, err
	}

	if !b.EnsureContainer(ctx) {
		logger.Warn("storage container not usable at startup, writes will retry",
			slog.String("provider", b.Name()),
			slog.String("bucket", cfg.StorageBucket),
		)
	}
	return b, nil
}

// PathFor returns the folder-qualified key for a new file. It is a pure function
// of its inputs; the result is stored once and never recomputed.
func PathFor(kind model.Kind, ownerID string, parentID *string, fileName string) (string, error) {
	folder, err := FolderFor(kind, ownerID, parentID)
	if err != nil {
		return "", err
	}
	return JoinKey(folder, fileName), nil
}

// FolderFor returns the folder part of PathFor.
func FolderFor(kind model.Kind, ownerID string, parentID *string) (string, error) {
	if ownerID == "" {
		return "", errors.New("owner id is required")
	}

	if kind.IsTripScoped() {
		if parentID == nil || *parentID == "" {
			return "", fmt.Errorf("kind %s requires a parent trip id", kind)
		}
		return "trips/" + *parentID + "/" + tripRoleFolder(kind), nil
	}

	switch kind {
	case model.KindAvatar:
		return "avatars/" + ownerID, nil
	case model.KindWishlistItemImage:
		return "wishlist-items/" + ownerID, nil
	case model.KindOther:
		return "other/user-" + ownerID, nil
	}
	return "", fmt.Errorf("unknown kind %q", kind)
}

func tripRoleFolder(kind model.Kind) string {
	switch kind {
	case model.KindTripCover:
		return "cover"
	case model.KindTripDocument:
		return "documents"
	case model.KindTripPhoto:
		return "photos"
	case model.KindActivityImage:
		return "activity-images"
	default:
		return "activity-documents"
	}
}

// JoinKey composes folder and fileName into a backend key.
func JoinKey(folder, fileName string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return fileName
	}
	return folder + "/" + fileName
}

// SplitKey splits a key into its folder and file name.
func SplitKey(key string) (folder, fileName string) {
	folder, fileName = path.Split(key)
	return strings.TrimSuffix(folder, "/"), fileName
}

// DerivativeKeys returns the keys of every possible resized variant of key.
func DerivativeKeys(key string) []string {
	keys := make([]string, 0, len(model.DerivativeSizes))
	for _, tag := range model.DerivativeSizes {
		keys = append(keys, imaging.DerivedPath(key, tag))
	}
	return keys
}

// prepareBody rewinds seekable sources and reports their remaining length,
// or -1 when it cannot be known without reading.
func prepareBody(r io.Reader) (io.Reader, int64, error) {
	s, ok := r.(io.Seeker)
	if !ok {
		return r, -1, nil
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("seek source: %w", err)
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("rewind source: %w", err)
	}
	return r, end, nil
}

// removeDerivatives deletes each derivative key with remove, logging and
// aggregating failures instead of returning them.
func removeDerivatives(ctx context.Context, logger *slog.Logger, key string, remove func(context.Context, string) error) error {
	var errs []error
	for _, dk := range DerivativeKeys(key) {
		if err := remove(ctx, dk); err != nil {
			logger.Warn("derivative cleanup failed",
				slog.String("key", dk),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", dk, err))
		}
	}
	return errors.Join(errs...)
}
