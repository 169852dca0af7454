package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/travelsidecar/service/internal/domain/model"
	"github.com/travelsidecar/service/internal/filecrypto"
	"github.com/travelsidecar/service/internal/imaging"
	"github.com/travelsidecar/service/internal/storage"
)

// memBackend is an in-memory storage.Backend. The optional hooks run before
// the default behavior and may return an error to short-circuit it.
type memBackend struct {
	mu      sync.Mutex
	objects map[string]storedObject
	gets    int
	deletes []string

	getErr func(key string) error
	putErr func(key string) error
}

type storedObject struct {
	data        []byte
	contentType string
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string]storedObject)}
}

func (b *memBackend) Name() string { return "mem" }
func (b *memBackend) EnsureContainer(ctx context.Context) bool { return true }

func (b *memBackend) Put(ctx context.Context, r io.Reader, fileName, contentType, folder string) (string, error) {
	key := storage.JoinKey(folder, fileName)
	if b.putErr != nil {
		if err := b.putErr(key); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = storedObject{data: data, contentType: contentType}
	return key, nil
}

func (b *memBackend) Get(ctx context.Context, key string) (*storage.Object, error) {
	b.mu.Lock()
	b.gets++
	b.mu.Unlock()

	if b.getErr != nil {
		if err := b.getErr(key); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	data := append([]byte(nil), obj.data...)
	return &storage.Object{Body: bytes.NewReader(data), ContentType: obj.contentType, Size: int64(len(data))}, nil
}

func (b *memBackend) Delete(ctx context.Context, key string, includeDerivatives bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := []string{key}
	if includeDerivatives {
		keys = append(keys, storage.DerivativeKeys(key)...)
	}
	for _, k := range keys {
		b.deletes = append(b.deletes, k)
		delete(b.objects, k)
	}
	return nil
}

func (b *memBackend) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (b *memBackend) object(key string) (storedObject, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	return obj, ok
}

func (b *memBackend) getCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets
}

// memRepo is an in-memory Repository that records Save calls.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*model.FileRecord
	saves   int
	finds   int

	saveErr   func(rec *model.FileRecord) error
	insertErr func(rec *model.FileRecord) error
}

func newMemRepo(recs ...*model.FileRecord) *memRepo {
	r := &memRepo{records: make(map[string]*model.FileRecord)}
	for _, rec := range recs {
		r.records[rec.ID] = rec.Clone()
	}
	return r
}

func (r *memRepo) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *memRepo) Insert(ctx context.Context, rec *model.FileRecord) error {
	if r.insertErr != nil {
		if err := r.insertErr(rec); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return ErrConflict
	}
	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *memRepo) Save(ctx context.Context, rec *model.FileRecord) error {
	r.mu.Lock()
	r.saves++
	r.mu.Unlock()
	if r.saveErr != nil {
		if err := r.saveErr(rec); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; !ok {
		return ErrNotFound
	}
	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *memRepo) FindLatestCoverFor(ctx context.Context, parentID, excludingID string) (*model.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.FileRecord
	for _, rec := range r.records {
		if rec.Kind != model.KindTripCover || rec.IsDeleted || rec.ID == excludingID {
			continue
		}
		if rec.ParentID == nil || *rec.ParentID != parentID {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest.Clone(), nil
}

func (r *memRepo) InsertReplacingCover(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	prev, err := r.FindLatestCoverFor(ctx, *rec.ParentID, rec.ID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if prev != nil {
		supersede(prev, rec.CreatedAt)
		if err := r.Save(ctx, prev); err != nil {
			return nil, err
		}
	}
	if err := r.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return prev, nil
}

func (r *memRepo) get(id string) *model.FileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		return rec.Clone()
	}
	return nil
}

func (r *memRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestService(t *testing.T, repo Repository, backend storage.Backend) *Service {
	t.Helper()
	c, err := filecrypto.NewCipher("test-master-secret")
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	svc := NewService(repo, backend, c, imaging.NewDerivator(testLogger()), testLogger())
	svc.now = func() time.Time { return testNow }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("file-%d", n)
	}
	return svc
}

func ptr(s string) *string { return &s }

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 8 {
		for x := 0; x < w; x += 8 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func storedRecord(id, owner string, vis model.Visibility) *model.FileRecord {
	return &model.FileRecord{
		ID:             id,
		OwnerID:        owner,
		FileName:       "notes.txt",
		ContentType:    "text/plain",
		SizeBytes:      5,
		StoragePath:    "other/user-" + owner + "/" + id + ".txt",
		Visibility:     vis,
		Kind:           model.KindOther,
		StorageHealth:  model.HealthAvailable,
		CreatedAt:      testNow,
		LastModifiedAt: testNow,
	}
}
