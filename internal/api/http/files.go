package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blobrelay/blobfs/internal/blob"
	"github.com/blobrelay/blobfs/internal/fsstore"
	"github.com/blobrelay/blobfs/internal/sharelink"
)

// FilesHandler is the management surface used by the owning metadata
// service: store, re-link and remove objects. JWT-protected; never exposed
// to download clients.
type FilesHandler struct {
	Svc *blob.Service
}

type linkResponse struct {
	ContentURL string    `json:"content_url"`
	Token      string    `json:"token"`
	ValidUntil time.Time `json:"valid_until"`
}

// PUT /buckets/{bucketID}/objects/{objectID} — body is the object bytes.
func (h *FilesHandler) Save(w http.ResponseWriter, r *http.Request) {
	bucketID := chi.URLParam(r, "bucketID")
	objectID := chi.URLParam(r, "objectID")
	res, err := h.Svc.SaveStream(r.Context(), bucketID, objectID, r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(linkResponse{
		ContentURL: res.ContentURL,
		Token:      res.Record.Identifier,
		ValidUntil: res.Record.ValidUntil,
	})
}

// GET /buckets/{bucketID}/objects/{objectID}/link?expiresIn=<Go duration>
func (h *FilesHandler) Link(w http.ResponseWriter, r *http.Request) {
	bucketID := chi.URLParam(r, "bucketID")
	objectID := chi.URLParam(r, "objectID")
	var ttl time.Duration
	if v := r.URL.Query().Get("expiresIn"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, "bad-expires-in", "expiresIn is not a valid duration")
			return
		}
		ttl = d
	}
	res, err := h.Svc.GetLink(r.Context(), bucketID, objectID, ttl)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(linkResponse{
		ContentURL: res.ContentURL,
		Token:      res.Record.Identifier,
		ValidUntil: res.Record.ValidUntil,
	})
}

// DELETE /buckets/{bucketID}/objects/{objectID}
func (h *FilesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	bucketID := chi.URLParam(r, "bucketID")
	objectID := chi.URLParam(r, "objectID")
	if err := h.Svc.RemoveFile(r.Context(), bucketID, objectID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /buckets/{bucketID}/objects
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	bucketID := chi.URLParam(r, "bucketID")
	ids, err := h.Svc.FS.List(bucketID)
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	_ = json.NewEncoder(w).Encode(map[string][]string{"objects": ids})
}

// GET /buckets/{bucketID}/stats
func (h *FilesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	bucketID := chi.URLParam(r, "bucketID")
	total, err := h.Svc.FS.TotalSize(bucketID)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := h.Svc.FS.FileCount(bucketID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]int64{
		"total_size": total,
		"file_count": int64(count),
	})
}

// writeError maps the closed error kinds to statuses and a machine-readable
// code. Management callers get structured errors; only the download path
// hides causes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fsstore.ErrInvalidIdentifier):
		writeErrorCode(w, http.StatusBadRequest, "invalid-identifier", err.Error())
	case errors.Is(err, blob.ErrUnknownBucket):
		writeErrorCode(w, http.StatusBadRequest, "unknown-bucket", err.Error())
	case errors.Is(err, fsstore.ErrNotFound), errors.Is(err, sharelink.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not-found", err.Error())
	case errors.Is(err, fsstore.ErrStorageUnavailable):
		writeErrorCode(w, http.StatusServiceUnavailable, "storage-unavailable", err.Error())
	case errors.Is(err, fsstore.ErrDirectoryCreate),
		errors.Is(err, fsstore.ErrTempFileMisplaced),
		errors.Is(err, fsstore.ErrSyncFailed),
		errors.Is(err, fsstore.ErrMoveFailed),
		errors.Is(err, fsstore.ErrIO),
		errors.Is(err, sharelink.ErrPersist):
		writeErrorCode(w, http.StatusInternalServerError, "storage-error", err.Error())
	default:
		writeErrorCode(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
