package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/travelsidecar/service/internal/domain/model"
)

func ptr(s string) *string { return &s }

func TestPathFor(t *testing.T) {
	tests := []struct {
		kind   model.Kind
		parent *string
		want   string
	}{
		{model.KindAvatar, nil, "avatars/u1/f.jpg"},
		{model.KindTripCover, ptr("t9"), "trips/t9/cover/f.jpg"},
		{model.KindTripDocument, ptr("t9"), "trips/t9/documents/f.jpg"},
		{model.KindTripPhoto, ptr("t9"), "trips/t9/photos/f.jpg"},
		{model.KindActivityImage, ptr("t9"), "trips/t9/activity-images/f.jpg"},
		{model.KindActivityDocument, ptr("t9"), "trips/t9/activity-documents/f.jpg"},
		{model.KindWishlistItemImage, ptr("w3"), "wishlist-items/u1/f.jpg"},
		{model.KindOther, nil, "other/user-u1/f.jpg"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := PathFor(tt.kind, "u1", tt.parent, "f.jpg")
			if err != nil {
				t.Fatalf("PathFor: %v", err)
			}
			if got != tt.want {
				t.Errorf("PathFor = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPathFor_Errors(t *testing.T) {
	if _, err := PathFor(model.KindTripCover, "u1", nil, "f.jpg"); err == nil {
		t.Error("trip kind without parent should fail")
	}
	if _, err := PathFor(model.KindAvatar, "", nil, "f.jpg"); err == nil {
		t.Error("missing owner should fail")
	}
	if _, err := PathFor(model.Kind("poster"), "u1", nil, "f.jpg"); err == nil {
		t.Error("unknown kind should fail")
	}
}

func TestDerivativeKeys(t *testing.T) {
	got := DerivativeKeys("trips/t1/cover/abc.png")
	want := []string{
		"trips/t1/cover/abc_normal.png",
		"trips/t1/cover/abc_medium.png",
		"trips/t1/cover/abc_small.png",
		"trips/t1/cover/abc_tiny.png",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("DerivativeKeys = %v, want %v", got, want)
	}
}

func TestJoinAndSplitKey(t *testing.T) {
	if got := JoinKey("/avatars/u1/", "a.jpg"); got != "avatars/u1/a.jpg" {
		t.Errorf("JoinKey = %q", got)
	}
	if got := JoinKey("", "a.jpg"); got != "a.jpg" {
		t.Errorf("JoinKey without folder = %q", got)
	}
	folder, name := SplitKey("avatars/u1/a.jpg")
	if folder != "avatars/u1" || name != "a.jpg" {
		t.Errorf("SplitKey = %q, %q", folder, name)
	}
}

func TestPrepareBody_RewindsSeekers(t *testing.T) {
	src := bytes.NewReader([]byte("hello world"))
	_, _ = io.ReadAll(src) // leave the reader at EOF as a previous upload would

	body, size, err := prepareBody(src)
	if err != nil {
		t.Fatalf("prepareBody: %v", err)
	}
	if size != 11 {
		t.Errorf("size = %d, want 11", size)
	}
	data, _ := io.ReadAll(body)
	if string(data) != "hello world" {
		t.Errorf("body = %q, want full content", data)
	}
}

func TestPrepareBody_UnknownLength(t *testing.T) {
	_, size, err := prepareBody(strings.NewReader("x"))
	if err != nil {
		t.Fatalf("prepareBody: %v", err)
	}
	// strings.Reader is seekable.
	if size != 1 {
		t.Errorf("size = %d, want 1", size)
	}

	_, size, err = prepareBody(io.LimitReader(strings.NewReader("abc"), 2))
	if err != nil {
		t.Fatalf("prepareBody: %v", err)
	}
	if size != -1 {
		t.Errorf("size = %d, want -1 for non-seekable", size)
	}
}

func TestRemoveDerivatives_ToleratesFailures(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var removed []string
	remove := func(_ context.Context, key string) error {
		if strings.Contains(key, "_medium") {
			return errors.New("boom")
		}
		removed = append(removed, key)
		return nil
	}

	err := removeDerivatives(context.Background(), logger, "a/b.jpg", remove)
	if err == nil || !strings.Contains(err.Error(), "a/b_medium.jpg") {
		t.Errorf("aggregated error = %v, want medium failure", err)
	}
	if len(removed) != 3 {
		t.Errorf("removed %d keys, want 3 (sweep must continue past failures)", len(removed))
	}
}
