// Package imaging produces the fixed set of resized variants for visual
// image uploads.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/travelsidecar/service/internal/domain/model"
)

// ErrProcessing is returned when an image cannot be decoded or encoded.
// No partial variant set is ever returned alongside it.
var ErrProcessing = errors.New("imaging: processing failed")

const jpegQuality = 85

// Variant is one derived size of an image.
type Variant struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	// Resized is false when the original bytes were reused verbatim.
	Resized bool
}

// Reader returns a seekable reader over the variant bytes.
func (v Variant) Reader() *bytes.Reader {
	return bytes.NewReader(v.Data)
}

// ShouldProcess reports whether uploads of kind with contentType get derivatives.
func ShouldProcess(contentType string, kind model.Kind) bool {
	if !isImage(contentType) {
		return false
	}
	switch kind {
	case model.KindTripCover, model.KindActivityImage, model.KindWishlistItemImage:
		return true
	}
	return false
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// DerivedPath inserts _{tag} before the extension of p. Original returns p unchanged.
func DerivedPath(p string, tag model.SizeTag) string {
	if tag == model.SizeOriginal || tag == "" {
		return p
	}
	dir, file := path.Split(p)
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	return dir + base + "_" + strings.ToLower(string(tag)) + ext
}

// Derivator resizes images into the four derivative sizes.
type Derivator struct {
	logger *slog.Logger
}

// NewDerivator creates a Derivator.
func NewDerivator(logger *slog.Logger) *Derivator {
	return &Derivator{logger: logger.With(slog.String("component", "imaging"))}
}

// DeriveSizes decodes data once and returns a variant for every derivative tag.
func (d *Derivator) DeriveSizes(ctx context.Context, data []byte, contentType string) (map[model.SizeTag]Variant, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrProcessing, contentType, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrProcessing)
	}

	out := make(map[model.SizeTag]Variant, len(model.DerivativeSizes))
	for _, tag := range model.DerivativeSizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tw, th, resize := TargetSize(w, h, tag)
		if !resize {
			out[tag] = Variant{Data: data, ContentType: contentType, Width: w, Height: h}
			continue
		}

		dst := image.NewRGBA(image.Rect(0, 0, tw, th))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

		encoded, ct, err := encode(dst, format)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s: %v", ErrProcessing, tag, err)
		}
		out[tag] = Variant{Data: encoded, ContentType: ct, Width: tw, Height: th, Resized: true}
	}

	d.logger.Debug("derived image sizes",
		slog.String("format", format),
		slog.Int("width", w),
		slog.Int("height", h),
	)
	return out, nil
}

// TargetSize computes the output dimensions of tag for a w×h source.
// For Normal the dominant axis is bounded; for smaller tags the short axis is.
// resize is false when the source already fits or when bounding would upscale.
func TargetSize(w, h int, tag model.SizeTag) (tw, th int, resize bool) {
	limit := tag.MaxDimension()
	if limit == 0 || (w <= limit && h <= limit) {
		return w, h, false
	}

	portrait := h > w
	boundByHeight := portrait
	if tag != model.SizeNormal {
		boundByHeight = !portrait
	}

	if boundByHeight {
		if h <= limit {
			return w, h, false
		}
		return scaled(w, limit, h), limit, true
	}
	if w <= limit {
		return w, h, false
	}
	return limit, scaled(h, limit, w), true
}

// scaled returns v*num/den rounded to the nearest pixel, never below 1.
func scaled(v, num, den int) int {
	n := (v*num + den/2) / den
	if n < 1 {
		return 1
	}
	return n
}

func encode(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case "png", "bmp":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/gif", nil
	default:
		// jpeg, and formats without an encoder such as webp.
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}
