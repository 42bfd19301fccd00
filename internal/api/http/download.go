package http

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blobrelay/blobfs/internal/blob"
	"github.com/blobrelay/blobfs/internal/sharelink"
	"github.com/blobrelay/blobfs/internal/signing"
)

// DownloadHandler serves unauthenticated retrieval. Two URL shapes exist:
// a signed query string over the object id, and an opaque share token that
// resolves through the share-link store. In both cases an expired link, a
// bad signature and a file that never existed all produce the same
// not-found response; the distinction is only logged.
type DownloadHandler struct {
	Svc *blob.Service
	Now func() time.Time
}

// GET /blob/filesystem/{identifier}?validUntil=<RFC3339>&sig=<hex>
func (h *DownloadHandler) Signed(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	if identifier == "" {
		http.Error(w, "no identifier set", http.StatusBadRequest)
		return
	}
	validUntil := r.URL.Query().Get("validUntil")
	if validUntil == "" {
		http.Error(w, "validUntil missing", http.StatusBadRequest)
		return
	}
	sig := r.URL.Query().Get("sig")
	if sig == "" {
		http.Error(w, "signature missing", http.StatusBadRequest)
		return
	}

	records, err := h.Svc.LookupByFileID(r.Context(), identifier)
	if err != nil {
		log.Printf("download %s: record lookup: %v", identifier, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if len(records) == 0 {
		log.Printf("download %s: no share-link record", identifier)
		fileNotFound(w)
		return
	}
	rec := records[0]

	key, err := h.Svc.BucketKey(rec.BucketIdentifier)
	if err != nil {
		log.Printf("download %s: %v", identifier, err)
		fileNotFound(w)
		return
	}
	vu, err := signing.Verify(key, identifier, validUntil, sig)
	if errors.Is(err, signing.ErrMalformed) {
		http.Error(w, "validUntil date format malformed", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("download %s: bad signature", identifier)
		fileNotFound(w)
		return
	}
	if err := signing.CheckTemporalValidity(h.Now(), vu); err != nil {
		log.Printf("download %s: link expired at %s", identifier, vu.Format(time.RFC3339))
		fileNotFound(w)
		return
	}

	h.stream(w, rec.BucketIdentifier, identifier)
}

// GET /blob/{token} — stateful variant: the URL carries only the share
// token, everything else comes from its record.
func (h *DownloadHandler) Token(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, "no token set", http.StatusBadRequest)
		return
	}
	rec, err := h.Svc.ResolveToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, sharelink.ErrNotFound) {
			log.Printf("download token %s: no record", token)
		} else {
			log.Printf("download token %s: %v", token, err)
		}
		fileNotFound(w)
		return
	}
	if rec.Expired(h.Now()) {
		log.Printf("download token %s: expired at %s", token, rec.ValidUntil.Format(time.RFC3339))
		fileNotFound(w)
		return
	}
	h.stream(w, rec.BucketIdentifier, rec.FileDataIdentifier)
}

func (h *DownloadHandler) stream(w http.ResponseWriter, bucketID, objectID string) {
	rc, err := h.Svc.FS.Open(bucketID, objectID)
	if err != nil {
		log.Printf("download %s/%s: %v", bucketID, objectID, err)
		fileNotFound(w)
		return
	}
	defer rc.Close()

	// Sniff the content type from the leading bytes; text/plain when the
	// sniffer has nothing better to offer.
	head := make([]byte, 512)
	n, err := io.ReadFull(rc, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		log.Printf("download %s/%s: read: %v", bucketID, objectID, err)
		fileNotFound(w)
		return
	}
	head = head[:n]
	ct := http.DetectContentType(head)
	if ct == "application/octet-stream" {
		ct = "text/plain"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+objectID+`"`)
	if _, err := w.Write(head); err != nil {
		return
	}
	_, _ = io.Copy(w, rc)
}

const fileNotFoundPage = `<!DOCTYPE html>
<html>
<head><title>File not found</title></head>
<body><h1>File not found</h1></body>
</html>
`

// fileNotFound is the single response for missing, expired and unauthorized
// alike, so a caller probing identifiers learns nothing.
func fileNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, fileNotFoundPage)
}
