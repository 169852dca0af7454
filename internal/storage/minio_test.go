package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

// setupMinio starts a MinIO container and returns a backend bound to a fresh bucket.
func setupMinio(t *testing.T) *MinioBackend {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := tcminio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate minio container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("minio endpoint: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	b, err := NewMinioBackend(MinioOptions{
		Endpoint:  endpoint,
		AccessKey: container.Username,
		SecretKey: container.Password,
		Bucket:    "travel-media-test",
	}, logger)
	if err != nil {
		t.Fatalf("NewMinioBackend: %v", err)
	}
	return b
}

func TestMinio_EnsureContainerIdempotent(t *testing.T) {
	b := setupMinio(t)
	ctx := context.Background()

	if !b.EnsureContainer(ctx) {
		t.Fatal("first EnsureContainer should succeed")
	}
	if !b.EnsureContainer(ctx) {
		t.Fatal("second EnsureContainer should succeed")
	}
}

func TestMinio_PutGetDelete(t *testing.T) {
	b := setupMinio(t)
	ctx := context.Background()

	src := bytes.NewReader([]byte("boarding pass"))
	_, _ = io.ReadAll(src)

	key, err := b.Put(ctx, src, "pass.pdf", "application/pdf", "trips/t1/documents")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if key != "trips/t1/documents/pass.pdf" {
		t.Errorf("key = %q", key)
	}

	obj, err := b.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(obj.Body)
	if string(data) != "boarding pass" {
		t.Errorf("body = %q, want rewound source content", data)
	}
	if obj.ContentType != "application/pdf" {
		t.Errorf("content type = %q", obj.ContentType)
	}

	if err := b.Delete(ctx, key, true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestMinio_DeleteWithDerivatives(t *testing.T) {
	b := setupMinio(t)
	ctx := context.Background()

	for _, name := range []string{"c.jpg", "c_normal.jpg", "c_tiny.jpg"} {
		if _, err := b.Put(ctx, bytes.NewReader([]byte(name)), name, "image/jpeg", "trips/t1/cover"); err != nil {
			t.Fatalf("Put %s: %v", name, err)
		}
	}

	if err := b.Delete(ctx, "trips/t1/cover/c.jpg", true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, key := range []string{"trips/t1/cover/c.jpg", "trips/t1/cover/c_normal.jpg", "trips/t1/cover/c_tiny.jpg"} {
		if _, err := b.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s still present: %v", key, err)
		}
	}
}
