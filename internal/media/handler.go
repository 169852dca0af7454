package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/travelsidecar/service/internal/domain/model"
	"github.com/travelsidecar/service/internal/filecrypto"
	"github.com/travelsidecar/service/internal/middleware"
	"github.com/travelsidecar/service/internal/response"
	"github.com/travelsidecar/service/internal/storage"
)

// retryAfterSeconds is the Retry-After hint sent with 503 responses.
const retryAfterSeconds = 30

// Handler holds HTTP handlers for file endpoints.
type Handler struct {
	svc            *Service
	delivery       *Delivery
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler creates a new file Handler.
func NewHandler(svc *Service, delivery *Delivery, maxUploadBytes int64, logger *slog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		delivery:       delivery,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "media_handler")),
	}
}

// Routes mounts the file endpoints. Reads accept anonymous callers so public
// files can be embedded directly; writes require a token.
func (h *Handler) Routes(jwtSecret string) chi.Router {
	r := chi.NewRouter()
	r.With(middleware.OptionalAuth(jwtSecret)).Get("/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtSecret))
		r.Post("/", h.Upload)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Stores a file for the caller. Documents are encrypted at rest; trip covers, activity images and wish-list images get resized variants. Uploading a trip cover replaces the trip's previous cover.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file		formData	file	true	"File contents"
//	@Param			kind		formData	string	true	"File kind"	Enums(avatar, trip-cover, trip-document, trip-photo, activity-image, activity-document, wishlist-item-image, other)
//	@Param			visibility	formData	string	false	"Visibility"	Enums(public, private)
//	@Param			parentId	formData	string	false	"Owning trip id (required for trip kinds)"
//	@Param			category	formData	string	false	"Free-form category"
//	@Success		201			{object}	response.Envelope{data=model.FileRecord}
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		409			{object}	response.Envelope
//	@Failure		413			{object}	response.Envelope
//	@Failure		503			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/files [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if r.ContentLength > h.maxUploadBytes {
		response.PayloadTooLarge(w, fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		if isTooLarge(err) {
			response.PayloadTooLarge(w, fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isTooLarge(err) {
			response.PayloadTooLarge(w, fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
			return
		}
		response.BadRequest(w, "could not read file")
		return
	}

	kind := model.Kind(r.FormValue("kind"))
	if !kind.Valid() {
		response.BadRequest(w, "invalid kind")
		return
	}

	contentType := contentTypeOf(header.Header.Get("Content-Type"), data)
	if kind.IsImageOnly() && (!strings.HasPrefix(contentType, "image/") || !strings.HasPrefix(http.DetectContentType(data), "image/")) {
		response.BadRequest(w, "kind "+string(kind)+" accepts images only")
		return
	}

	in := UploadInput{
		Data:        data,
		FileName:    header.Filename,
		ContentType: contentType,
		Kind:        kind,
		Visibility:  model.Visibility(r.FormValue("visibility")),
		OwnerID:     p.ID,
		ParentID:    optional(r.FormValue("parentId")),
		Category:    optional(r.FormValue("category")),
	}
	if in.Visibility == model.VisibilityNone {
		response.BadRequest(w, "visibility must be public or private")
		return
	}
	if kind.IsTripScoped() && in.ParentID == nil {
		response.BadRequest(w, "parentId is required for trip files")
		return
	}

	var rec *model.FileRecord
	if kind == model.KindTripCover {
		rec, err = h.svc.ReplaceCover(r.Context(), in)
	} else {
		rec, err = h.svc.Upload(r.Context(), in)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, rec)
}

// Get godoc
//
//	@Summary		Download a file
//	@Description	Streams a file or one of its resized variants. Supports If-None-Match and Range. Missing variants fall back to the original.
//	@Tags			files
//	@Produce		octet-stream
//	@Param			id				path		string	true	"File id"
//	@Param			size			query		string	false	"Variant size"	Enums(original, normal, medium, small, tiny)
//	@Param			If-None-Match	header		string	false	"Cached ETag"
//	@Success		200				{file}		binary
//	@Success		206				{file}		binary
//	@Success		304
//	@Failure		400				{object}	response.Envelope
//	@Failure		403				{object}	response.Envelope
//	@Failure		404				{object}	response.Envelope
//	@Failure		503				{object}	response.Envelope
//	@Router			/files/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	size, err := model.ParseSizeTag(r.URL.Query().Get("size"))
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	p, _ := middleware.PrincipalFrom(r.Context())
	rec, err := h.svc.Lookup(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out, err := h.delivery.Serve(r.Context(), rec, size, r.Header.Get("If-None-Match"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	hdr := w.Header()
	hdr.Set("ETag", out.ETag)
	hdr.Set("Cache-Control", cacheControl(rec.Visibility))
	if out.NotModified {
		response.NotModified(w, out.LastModified)
		return
	}

	if out.AcceptRanges {
		hdr.Set("Accept-Ranges", "bytes")
	}
	hdr.Set("Content-Type", out.ContentType)
	hdr.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": out.FileName}))
	http.ServeContent(w, r, out.FileName, out.LastModified, out.Body)
}

// Delete godoc
//
//	@Summary		Delete a file
//	@Description	Removes a file and its variants from storage and marks the record deleted.
//	@Tags			files
//	@Security		BearerAuth
//	@Param			id	path	string	true	"File id"
//	@Success		204
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		503	{object}	response.Envelope
//	@Router			/files/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	deleted, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		response.NotFound(w, "file not found")
		return
	}
	response.NoContent(w)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		response.NotFound(w, "file not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "access denied")
	case errors.Is(err, ErrInvalidInput):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrConflict):
		response.Conflict(w, "a concurrent upload replaced this resource, retry")
	case errors.Is(err, storage.ErrRead), errors.Is(err, storage.ErrWrite):
		response.ServiceUnavailable(w, "storage temporarily unavailable", retryAfterSeconds)
	default:
		attrs := []any{slog.String("path", r.URL.Path), slog.String("error", err.Error())}
		if errors.Is(err, filecrypto.ErrCrypto) {
			attrs = append(attrs, slog.Bool("crypto", true))
		}
		h.logger.Error("request failed", attrs...)
		response.InternalError(w)
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// contentTypeOf prefers the declared media type and sniffs when it is absent
// or generic. Parameters are dropped.
func contentTypeOf(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return strings.ToLower(mt)
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

func cacheControl(v model.Visibility) string {
	if v == model.VisibilityPublic {
		return "public, max-age=86400"
	}
	return "private, no-cache"
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
