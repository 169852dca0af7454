package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/travelsidecar/service/internal/domain/model"
	"github.com/travelsidecar/service/internal/imaging"
	"github.com/travelsidecar/service/internal/storage"
)

// Delivered is the outcome of serving a file. When NotModified is set, Body is nil.
type Delivered struct {
	Body         io.ReadSeeker
	ContentType  string
	FileName     string
	Size         int64
	ETag         string
	LastModified time.Time
	// Variant is the size actually served, which may be the original after a fallback.
	Variant      model.SizeTag
	NotModified  bool
	AcceptRanges bool
}

// Delivery serves originals and derivatives with conditional-request support.
type Delivery struct {
	svc    *Service
	logger *slog.Logger
}

// NewDelivery creates a Delivery over svc.
func NewDelivery(svc *Service, logger *slog.Logger) *Delivery {
	return &Delivery{
		svc:    svc,
		logger: logger.With(slog.String("component", "media_delivery")),
	}
}

// ResolveVariant returns the storage key to read for size. Only records with
// derivatives have non-original keys.
func ResolveVariant(rec *model.FileRecord, size model.SizeTag) (string, model.SizeTag) {
	if size == model.SizeOriginal || size == "" || !rec.HasDerivatives {
		return rec.StoragePath, model.SizeOriginal
	}
	return imaging.DerivedPath(rec.StoragePath, size), size
}

// ComputeETag derives a strong validator from the file identity, the requested
// size tag and the modification time. Each variant of a file gets its own tag.
func ComputeETag(fileID string, size model.SizeTag, lastModified time.Time) string {
	if size == "" {
		size = model.SizeOriginal
	}
	sum := sha256.Sum256([]byte(fileID + "|" + string(size) + "|" + strconv.FormatInt(lastModified.UnixMilli(), 10)))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// ETagMatches reports whether an If-None-Match header value matches etag.
// Weak comparison is used, as for GET requests.
func ETagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}

// Serve returns the bytes for rec at the requested size. A matching
// ifNoneMatch short-circuits before any backend read. A missing derivative
// falls back to the original.
func (d *Delivery) Serve(ctx context.Context, rec *model.FileRecord, size model.SizeTag, ifNoneMatch string) (*Delivered, error) {
	if size == "" {
		size = model.SizeOriginal
	}
	etag := ComputeETag(rec.ID, size, rec.LastModifiedAt)
	out := &Delivered{
		ETag:         etag,
		LastModified: rec.LastModifiedAt,
		FileName:     rec.FileName,
		AcceptRanges: true,
	}

	if ETagMatches(ifNoneMatch, etag) {
		out.NotModified = true
		out.Variant = size
		readsTotal.WithLabelValues("not_modified").Inc()
		return out, nil
	}

	key, variant := ResolveVariant(rec, size)
	f, err := d.svc.open(ctx, rec, key)
	if err != nil && variant != model.SizeOriginal && errors.Is(err, storage.ErrNotFound) {
		d.logger.Warn("derivative missing, serving original",
			slog.String("file_id", rec.ID),
			slog.String("size", string(variant)),
			slog.String("key", key),
		)
		variantFallbacksTotal.Inc()
		variant = model.SizeOriginal
		f, err = d.svc.open(ctx, rec, rec.StoragePath)
	}

	d.svc.observe(ctx, rec, err)
	readsTotal.WithLabelValues(readResult(err)).Inc()
	if err != nil {
		return nil, err
	}

	out.Body = f.Body
	out.ContentType = f.ContentType
	out.Size = f.Size
	out.Variant = variant
	return out, nil
}
