// Package media stores, serves and deletes user files: trip documents and
// photos, cover images, avatars and wish-list images.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/travelsidecar/service/internal/domain/model"
	"github.com/travelsidecar/service/internal/filecrypto"
	"github.com/travelsidecar/service/internal/imaging"
	"github.com/travelsidecar/service/internal/middleware"
	"github.com/travelsidecar/service/internal/storage"
)

// UploadInput describes a file to store.
type UploadInput struct {
	Data        []byte
	FileName    string
	ContentType string
	Kind        model.Kind
	// Visibility defaults to public for visual assets and private otherwise.
	Visibility model.Visibility
	OwnerID    string
	ParentID   *string
	Category   *string
}

// File is a readable, decrypted file body.
type File struct {
	Body        io.ReadSeeker
	ContentType string
	FileName    string
	Size        int64
}

// Service orchestrates uploads, reads and deletes across the object store,
// the encryption unit and the derivative pipeline.
type Service struct {
	repo      Repository
	backend   storage.Backend
	cipher    *filecrypto.Cipher
	derivator *imaging.Derivator
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a media Service.
func NewService(
	repo Repository,
	backend storage.Backend,
	cipher *filecrypto.Cipher,
	derivator *imaging.Derivator,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		backend:   backend,
		cipher:    cipher,
		derivator: derivator,
		logger:    logger.With(slog.String("component", "media_service")),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Upload writes the file (and its derivatives or ciphertext) to the backend,
// then inserts the record. The record is never inserted before the write succeeds.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*model.FileRecord, error) {
	rec, err := s.write(ctx, in)
	if err != nil {
		uploadsTotal.WithLabelValues(string(in.Kind), "error").Inc()
		return nil, err
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		uploadsTotal.WithLabelValues(string(in.Kind), "error").Inc()
		return nil, fmt.Errorf("insert file record: %w", err)
	}

	uploadsTotal.WithLabelValues(string(in.Kind), "ok").Inc()
	return rec, nil
}

// ReplaceCover uploads a new trip cover and, in the same transaction as the
// insert, soft-deletes the trip's previous live cover.
func (s *Service) ReplaceCover(ctx context.Context, in UploadInput) (*model.FileRecord, error) {
	if in.Kind != model.KindTripCover {
		return nil, fmt.Errorf("%w: kind %s is not a trip cover", ErrInvalidInput, in.Kind)
	}

	rec, err := s.write(ctx, in)
	if err != nil {
		uploadsTotal.WithLabelValues(string(in.Kind), "error").Inc()
		return nil, err
	}

	prev, err := s.repo.InsertReplacingCover(ctx, rec)
	if err != nil {
		uploadsTotal.WithLabelValues(string(in.Kind), "error").Inc()
		return nil, fmt.Errorf("insert cover record: %w", err)
	}
	if prev != nil {
		s.logger.Info("trip cover replaced",
			slog.String("trip_id", *rec.ParentID),
			slog.String("file_id", rec.ID),
			slog.String("previous_file_id", prev.ID),
		)
	}

	uploadsTotal.WithLabelValues(string(in.Kind), "ok").Inc()
	return rec, nil
}

// write validates in, stores its bytes and returns the populated record.
func (s *Service) write(ctx context.Context, in UploadInput) (*model.FileRecord, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}

	id := s.newID()
	objectName := id + strings.ToLower(path.Ext(in.FileName))
	folder, err := storage.FolderFor(in.Kind, in.OwnerID, in.ParentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	rec := &model.FileRecord{
		ID:             id,
		OwnerID:        in.OwnerID,
		ParentID:       in.ParentID,
		FileName:       in.FileName,
		ContentType:    in.ContentType,
		SizeBytes:      int64(len(in.Data)),
		StoragePath:    storage.JoinKey(folder, objectName),
		Visibility:     in.Visibility,
		Kind:           in.Kind,
		Category:       in.Category,
		StorageHealth:  model.HealthAvailable,
		CreatedAt:      now,
		LastModifiedAt: now,
	}

	switch {
	case filecrypto.ShouldEncrypt(in.ContentType, in.Kind):
		keyID, err := s.putEncrypted(ctx, in, id, objectName, folder)
		if err != nil {
			return nil, err
		}
		rec.IsEncrypted = true
		rec.EncryptionKeyID = &keyID

	case imaging.ShouldProcess(in.ContentType, in.Kind):
		written, err := s.putWithDerivatives(ctx, in, objectName, folder)
		if err != nil {
			return nil, err
		}
		rec.HasDerivatives = written > 0

	default:
		if _, err := s.backend.Put(ctx, bytes.NewReader(in.Data), objectName, in.ContentType, folder); err != nil {
			return nil, err
		}
	}

	s.logger.Info("file stored",
		slog.String("file_id", id),
		slog.String("kind", string(in.Kind)),
		slog.String("storage_path", rec.StoragePath),
		slog.Int64("size", rec.SizeBytes),
		slog.Bool("encrypted", rec.IsEncrypted),
		slog.Bool("derivatives", rec.HasDerivatives),
	)
	return rec, nil
}

func (s *Service) putEncrypted(ctx context.Context, in UploadInput, id, objectName, folder string) (string, error) {
	enc, keyID, err := s.cipher.Encrypt(bytes.NewReader(in.Data), id)
	if err != nil {
		return "", err
	}
	// Buffered so the backend receives a seekable body of known length.
	ciphertext, err := io.ReadAll(enc)
	if err != nil {
		return "", fmt.Errorf("%w: encrypt %s: %v", filecrypto.ErrCrypto, id, err)
	}
	if _, err := s.backend.Put(ctx, bytes.NewReader(ciphertext), objectName, in.ContentType, folder); err != nil {
		return "", err
	}
	return keyID, nil
}

// putWithDerivatives uploads the original and every resized variant concurrently
// and returns how many variants were written. A derivation failure is not fatal:
// the original is stored alone and delivery falls back to it.
func (s *Service) putWithDerivatives(ctx context.Context, in UploadInput, objectName, folder string) (int, error) {
	variants, err := s.derivator.DeriveSizes(ctx, in.Data, in.ContentType)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		derivationFailuresTotal.Inc()
		s.logger.Warn("image derivation failed, storing original only",
			slog.String("object", objectName),
			slog.String("content_type", in.ContentType),
			slog.String("error", err.Error()),
		)
		variants = nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.backend.Put(gctx, bytes.NewReader(in.Data), objectName, in.ContentType, folder)
		return err
	})

	written := 0
	for _, tag := range model.DerivativeSizes {
		v, ok := variants[tag]
		if !ok || !v.Resized {
			continue
		}
		written++
		name := imaging.DerivedPath(objectName, tag)
		g.Go(func() error {
			_, err := s.backend.Put(gctx, v.Reader(), name, v.ContentType, folder)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	derivativesWrittenTotal.Add(float64(written))
	return written, nil
}

func validate(in *UploadInput) error {
	switch {
	case len(in.Data) == 0:
		return fmt.Errorf("%w: empty file", ErrInvalidInput)
	case strings.TrimSpace(in.FileName) == "":
		return fmt.Errorf("%w: file name is required", ErrInvalidInput)
	case in.OwnerID == "":
		return fmt.Errorf("%w: owner is required", ErrInvalidInput)
	case !in.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, in.Kind)
	}

	if in.ContentType == "" {
		in.ContentType = "application/octet-stream"
	}
	if in.Visibility == "" {
		in.Visibility = defaultVisibility(in.Kind)
	}
	if !in.Visibility.Valid() {
		return fmt.Errorf("%w: unknown visibility %q", ErrInvalidInput, in.Visibility)
	}
	return nil
}

func defaultVisibility(kind model.Kind) model.Visibility {
	switch kind {
	case model.KindAvatar, model.KindTripCover, model.KindActivityImage, model.KindWishlistItemImage:
		return model.VisibilityPublic
	}
	return model.VisibilityPrivate
}

// Lookup returns the live record for fileID if p may read it. Records with
// visibility None are reported as not found.
func (s *Service) Lookup(ctx context.Context, fileID string, p middleware.Principal) (*model.FileRecord, error) {
	rec, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted || rec.Visibility == model.VisibilityNone {
		return nil, ErrNotFound
	}
	if rec.Visibility == model.VisibilityPrivate && !p.CanAccess(rec.OwnerID) {
		return nil, ErrForbidden
	}
	return rec, nil
}

// Retrieve returns the decrypted original of fileID and records the observed
// storage health.
func (s *Service) Retrieve(ctx context.Context, fileID string, p middleware.Principal) (*File, error) {
	rec, err := s.Lookup(ctx, fileID, p)
	if err != nil {
		readsTotal.WithLabelValues(readResult(err)).Inc()
		return nil, err
	}

	f, err := s.open(ctx, rec, rec.StoragePath)
	s.observe(ctx, rec, err)
	readsTotal.WithLabelValues(readResult(err)).Inc()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// open fetches key from the backend and decrypts it when rec is encrypted.
func (s *Service) open(ctx context.Context, rec *model.FileRecord, key string) (*File, error) {
	obj, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	f := &File{
		Body:        obj.Body,
		ContentType: obj.ContentType,
		FileName:    rec.FileName,
		Size:        obj.Size,
	}
	if f.ContentType == "" || key == rec.StoragePath {
		f.ContentType = rec.ContentType
	}

	if !rec.IsEncrypted {
		return f, nil
	}
	if rec.EncryptionKeyID == nil {
		return nil, fmt.Errorf("%w: record %s is encrypted without a key id", filecrypto.ErrCrypto, rec.ID)
	}

	dec, err := s.cipher.Decrypt(obj.Body, *rec.EncryptionKeyID)
	if err != nil {
		return nil, err
	}
	plain, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt %s: %v", filecrypto.ErrCrypto, rec.ID, err)
	}
	f.Body = bytes.NewReader(plain)
	f.Size = int64(len(plain))
	return f, nil
}

// observe updates rec's storage health from the outcome of a backend read.
// Only missing objects and read failures mark it unavailable; a decrypt
// failure still means the backend answered. A failed save is logged, not returned.
func (s *Service) observe(ctx context.Context, rec *model.FileRecord, readErr error) {
	next := model.HealthAvailable
	switch {
	case readErr == nil:
	case errors.Is(readErr, storage.ErrNotFound), errors.Is(readErr, storage.ErrRead):
		next = model.HealthUnavailable
	case errors.Is(readErr, context.Canceled), errors.Is(readErr, context.DeadlineExceeded):
		return
	}

	if rec.StorageHealth == next {
		return
	}

	prev := rec.StorageHealth
	rec.StorageHealth = next
	healthTransitionsTotal.WithLabelValues(string(next)).Inc()

	attrs := []any{
		slog.String("file_id", rec.ID),
		slog.String("from", string(prev)),
		slog.String("to", string(next)),
	}
	if readErr != nil {
		attrs = append(attrs, slog.String("error", readErr.Error()))
	}
	s.logger.Warn("storage health changed", attrs...)

	// The request context may already be done; the update should still land.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.repo.Save(saveCtx, rec); err != nil {
		s.logger.Error("persist storage health", slog.String("file_id", rec.ID), slog.String("error", err.Error()))
	}
}

// Delete removes the backend object (and any derivatives) and soft-deletes the
// record. It reports false when no live record exists. Both steps are idempotent,
// so a failed metadata update may simply be retried.
func (s *Service) Delete(ctx context.Context, fileID string, p middleware.Principal) (bool, error) {
	rec, err := s.repo.FindByID(ctx, fileID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.IsDeleted {
		return false, nil
	}
	if !p.CanAccess(rec.OwnerID) {
		return false, ErrForbidden
	}

	withDerivatives := rec.HasDerivatives || imaging.ShouldProcess(rec.ContentType, rec.Kind)
	if err := s.backend.Delete(ctx, rec.StoragePath, withDerivatives); err != nil {
		s.logger.Error("delete backend object",
			slog.String("file_id", rec.ID),
			slog.String("storage_path", rec.StoragePath),
			slog.String("error", err.Error()),
		)
		return false, err
	}

	now := s.now()
	rec.IsDeleted = true
	rec.DeletedAt = &now
	rec.LastModifiedAt = now
	if err := s.repo.Save(ctx, rec); err != nil {
		return false, fmt.Errorf("soft-delete file record: %w", err)
	}

	s.logger.Info("file deleted", slog.String("file_id", rec.ID), slog.String("by", p.ID))
	return true, nil
}

func readResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, filecrypto.ErrCrypto):
		return "crypto_error"
	default:
		return "backend_error"
	}
}
