package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestError_WritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Conflict(rec, "cover replaced")

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error != "cover replaced" || env.Data != nil {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestServiceUnavailable_RetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	ServiceUnavailable(rec, "storage down", 30)
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") != "30" {
		t.Fatalf("status = %d, Retry-After = %q", rec.Code, rec.Header().Get("Retry-After"))
	}

	rec = httptest.NewRecorder()
	ServiceUnavailable(rec, "storage down", 0)
	if _, ok := rec.Header()["Retry-After"]; ok {
		t.Fatal("Retry-After set for zero hint")
	}
}

func TestUnauthorized_Challenge(t *testing.T) {
	rec := httptest.NewRecorder()
	Unauthorized(rec, "missing token")
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("status = %d, WWW-Authenticate = %q", rec.Code, rec.Header().Get("WWW-Authenticate"))
	}
}

func TestNotModified_KeepsValidatorsAndDropsBody(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	rec := httptest.NewRecorder()
	rec.Header().Set("ETag", `"abc"`)
	rec.Header().Set("Content-Type", "image/jpeg")

	NotModified(rec, at)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("ETag") != `"abc"` {
		t.Errorf("ETag = %q", rec.Header().Get("ETag"))
	}
	if got := rec.Header().Get("Last-Modified"); got != "Sat, 14 Mar 2026 09:26:53 GMT" {
		t.Errorf("Last-Modified = %q", got)
	}
	if rec.Header().Get("Content-Type") != "" || rec.Body.Len() != 0 {
		t.Errorf("Content-Type = %q, body = %q", rec.Header().Get("Content-Type"), rec.Body.String())
	}
}

func TestNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	NoContent(rec)
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}
