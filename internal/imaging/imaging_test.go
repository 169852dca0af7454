package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/travelsidecar/service/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 7 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode variant: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestShouldProcess(t *testing.T) {
	tests := []struct {
		contentType string
		kind        model.Kind
		want        bool
	}{
		{"image/jpeg", model.KindTripCover, true},
		{"image/png", model.KindActivityImage, true},
		{"IMAGE/WEBP", model.KindWishlistItemImage, true},
		{"image/jpeg", model.KindAvatar, false},
		{"image/jpeg", model.KindTripPhoto, false},
		{"application/pdf", model.KindTripCover, false},
		{"image/png", model.KindOther, false},
	}
	for _, tt := range tests {
		if got := ShouldProcess(tt.contentType, tt.kind); got != tt.want {
			t.Errorf("ShouldProcess(%q, %s) = %v, want %v", tt.contentType, tt.kind, got, tt.want)
		}
	}
}

func TestDerivedPath(t *testing.T) {
	tests := []struct {
		path string
		tag  model.SizeTag
		want string
	}{
		{"trips/t1/cover/abc.jpg", model.SizeNormal, "trips/t1/cover/abc_normal.jpg"},
		{"trips/t1/cover/abc.jpg", model.SizeTiny, "trips/t1/cover/abc_tiny.jpg"},
		{"trips/t1/cover/abc.jpg", model.SizeOriginal, "trips/t1/cover/abc.jpg"},
		{"wishlist-items/u.1/abc", model.SizeSmall, "wishlist-items/u.1/abc_small"},
		{"abc.tar.gz", model.SizeMedium, "abc.tar_medium.gz"},
	}
	for _, tt := range tests {
		if got := DerivedPath(tt.path, tt.tag); got != tt.want {
			t.Errorf("DerivedPath(%q, %s) = %q, want %q", tt.path, tt.tag, got, tt.want)
		}
	}
}

func TestTargetSize_Orientation(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		tag        model.SizeTag
		wantW      int
		wantH      int
		wantResize bool
	}{
		{"landscape normal bounded by width", 4000, 2000, model.SizeNormal, 1920, 960, true},
		{"landscape tiny bounded by height", 4000, 2000, model.SizeTiny, 256, 128, true},
		{"portrait normal bounded by height", 2000, 4000, model.SizeNormal, 960, 1920, true},
		{"portrait small bounded by width", 2000, 4000, model.SizeSmall, 512, 1024, true},
		{"fits both axes", 100, 80, model.SizeTiny, 100, 80, false},
		{"short axis already within bound", 300, 100, model.SizeTiny, 300, 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, resize := TargetSize(tt.w, tt.h, tt.tag)
			if w != tt.wantW || h != tt.wantH || resize != tt.wantResize {
				t.Errorf("TargetSize = (%d, %d, %v), want (%d, %d, %v)",
					w, h, resize, tt.wantW, tt.wantH, tt.wantResize)
			}
		})
	}
}

func TestDeriveSizes_LandscapeJPEG(t *testing.T) {
	src := makeJPEG(t, 4000, 2000)
	d := NewDerivator(testLogger())

	variants, err := d.DeriveSizes(context.Background(), src, "image/jpeg")
	if err != nil {
		t.Fatalf("DeriveSizes: %v", err)
	}
	if len(variants) != 4 {
		t.Fatalf("got %d variants, want 4", len(variants))
	}

	normal := variants[model.SizeNormal]
	w, h := decodeSize(t, normal.Data)
	if w != model.SizeNormal.MaxDimension() {
		t.Errorf("normal width = %d, want %d", w, model.SizeNormal.MaxDimension())
	}
	if h > model.SizeNormal.MaxDimension()*2000/4000 {
		t.Errorf("normal height = %d, too large", h)
	}
	if normal.ContentType != "image/jpeg" {
		t.Errorf("normal content type = %q", normal.ContentType)
	}

	tiny := variants[model.SizeTiny]
	w, h = decodeSize(t, tiny.Data)
	if h != model.SizeTiny.MaxDimension() {
		t.Errorf("tiny height = %d, want %d", h, model.SizeTiny.MaxDimension())
	}
	if w != 2*model.SizeTiny.MaxDimension() {
		t.Errorf("tiny width = %d, want %d", w, 2*model.SizeTiny.MaxDimension())
	}

	for tag, v := range variants {
		if !v.Resized {
			t.Errorf("%s: expected a resized variant", tag)
		}
	}
}

func TestDeriveSizes_SmallImageReusesOriginalBytes(t *testing.T) {
	src := makePNG(t, 100, 60)
	d := NewDerivator(testLogger())

	variants, err := d.DeriveSizes(context.Background(), src, "image/png")
	if err != nil {
		t.Fatalf("DeriveSizes: %v", err)
	}
	for _, tag := range model.DerivativeSizes {
		v, ok := variants[tag]
		if !ok {
			t.Fatalf("missing variant %s", tag)
		}
		if v.Resized {
			t.Errorf("%s: unexpected resize", tag)
		}
		if !bytes.Equal(v.Data, src) {
			t.Errorf("%s: bytes differ from original", tag)
		}
	}
}

func TestDeriveSizes_MixedReuse(t *testing.T) {
	src := makePNG(t, 800, 600)
	d := NewDerivator(testLogger())

	variants, err := d.DeriveSizes(context.Background(), src, "image/png")
	if err != nil {
		t.Fatalf("DeriveSizes: %v", err)
	}
	if variants[model.SizeNormal].Resized || variants[model.SizeMedium].Resized {
		t.Error("normal and medium should reuse the original")
	}
	small := variants[model.SizeSmall]
	if !small.Resized {
		t.Fatal("small should be resized")
	}
	if small.ContentType != "image/png" {
		t.Errorf("small content type = %q, want image/png", small.ContentType)
	}
	if w, h := decodeSize(t, small.Data); h != 512 || w != 683 {
		t.Errorf("small size = %dx%d, want 683x512", w, h)
	}
}

func TestDeriveSizes_CorruptInput(t *testing.T) {
	d := NewDerivator(testLogger())
	variants, err := d.DeriveSizes(context.Background(), []byte("not an image"), "image/jpeg")
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("err = %v, want ErrProcessing", err)
	}
	if variants != nil {
		t.Error("expected no variants on failure")
	}
}

func TestDeriveSizes_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDerivator(testLogger())
	_, err := d.DeriveSizes(ctx, makePNG(t, 64, 64), "image/png")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
