// Package blob ties the filesystem store, the capability-link codec and the
// share-link registry together behind the operations the management API and
// the download endpoint call.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/blobrelay/blobfs/internal/fsstore"
	"github.com/blobrelay/blobfs/internal/sharelink"
	"github.com/blobrelay/blobfs/internal/signing"
)

// ErrUnknownBucket means no signing key is configured for the bucket; no
// link can be issued or verified for it.
var ErrUnknownBucket = errors.New("no key configured for bucket")

type Service struct {
	FS    *fsstore.Store
	Links sharelink.Store

	// BucketKeys holds each bucket's signing secret.
	BucketKeys map[string]string
	// BaseURL prefixes issued content URLs, e.g. https://blob.example.com.
	BaseURL string
	// DefaultTTL is the validity window used when the caller names none.
	DefaultTTL time.Duration

	Now func() time.Time
}

func NewService(fs *fsstore.Store, links sharelink.Store, bucketKeys map[string]string, baseURL string, defaultTTL time.Duration) *Service {
	return &Service{
		FS:         fs,
		Links:      links,
		BucketKeys: bucketKeys,
		BaseURL:    baseURL,
		DefaultTTL: defaultTTL,
		Now:        time.Now,
	}
}

func (s *Service) BucketKey(bucketID string) ([]byte, error) {
	k, ok := s.BucketKeys[bucketID]
	if !ok || k == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBucket, bucketID)
	}
	return []byte(k), nil
}

// SaveResult reports where the object landed and the link that was minted
// for it.
type SaveResult struct {
	ContentURL string
	Record     sharelink.ShareLink
}

// SaveFile durably stores a staged file (same filesystem as the root) and
// mints a signed link plus its persisted record.
func (s *Service) SaveFile(ctx context.Context, bucketID, objectID, sourcePath string) (SaveResult, error) {
	if err := s.FS.Save(bucketID, objectID, sourcePath); err != nil {
		return SaveResult{}, err
	}
	return s.issueLink(ctx, bucketID, objectID, s.DefaultTTL, false)
}

// SaveStream is SaveFile for callers holding the payload as a stream.
func (s *Service) SaveStream(ctx context.Context, bucketID, objectID string, r io.Reader) (SaveResult, error) {
	if err := s.FS.SaveFrom(bucketID, objectID, r); err != nil {
		return SaveResult{}, err
	}
	return s.issueLink(ctx, bucketID, objectID, s.DefaultTTL, false)
}

// GetLink mints a fresh signed link for an already-stored object. The URL
// additionally carries the content checksum (cs parameter). ttl <= 0 falls
// back to the service default.
func (s *Service) GetLink(ctx context.Context, bucketID, objectID string, ttl time.Duration) (SaveResult, error) {
	ok, err := s.FS.Exists(bucketID, objectID)
	if err != nil {
		return SaveResult{}, err
	}
	if !ok {
		return SaveResult{}, fmt.Errorf("%w: %s/%s", fsstore.ErrNotFound, bucketID, objectID)
	}
	if ttl <= 0 {
		ttl = s.DefaultTTL
	}
	return s.issueLink(ctx, bucketID, objectID, ttl, true)
}

func (s *Service) issueLink(ctx context.Context, bucketID, objectID string, ttl time.Duration, withChecksum bool) (SaveResult, error) {
	key, err := s.BucketKey(bucketID)
	if err != nil {
		return SaveResult{}, err
	}
	fsPath, err := s.FS.Path(bucketID, objectID)
	if err != nil {
		return SaveResult{}, err
	}
	validUntil := s.Now().UTC().Add(ttl).Truncate(time.Second)
	p := signing.SignedURL(key, objectID, validUntil)
	if withChecksum {
		p += "&cs=" + signing.Checksum(objectID, validUntil)
	}
	rec := sharelink.ShareLink{
		Identifier:         uuid.NewString(),
		FileDataIdentifier: objectID,
		BucketIdentifier:   bucketID,
		FilesystemPath:     fsPath,
		Link:               s.BaseURL + p,
		ValidUntil:         validUntil,
	}
	if err := s.Links.Create(ctx, rec); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{ContentURL: rec.Link, Record: rec}, nil
}

// RemoveFile deletes the object and cascades over every share-link record
// referencing it. Records are cleaned even when the file was already gone;
// the filesystem outcome is what the caller gets back.
func (s *Service) RemoveFile(ctx context.Context, bucketID, objectID string) error {
	removeErr := s.FS.Remove(bucketID, objectID)
	if removeErr != nil && !errors.Is(removeErr, fsstore.ErrNotFound) {
		return removeErr
	}
	records, err := s.Links.GetAllByFileID(ctx, objectID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Identifier)
	}
	if err := s.Links.DeleteMany(ctx, ids); err != nil {
		return err
	}
	return removeErr
}

// LookupByFileID returns the authoritative record set for an object. The
// download endpoint uses it to recover bucket and path from a bare object
// identifier.
func (s *Service) LookupByFileID(ctx context.Context, objectID string) ([]sharelink.ShareLink, error) {
	return s.Links.GetAllByFileID(ctx, objectID)
}

// ResolveToken returns the record behind a stateful share token.
func (s *Service) ResolveToken(ctx context.Context, token string) (sharelink.ShareLink, error) {
	return s.Links.GetByID(ctx, token)
}

// Health verifies the storage root and the share-link store are usable.
func (s *Service) Health(ctx context.Context) error {
	if _, err := s.FS.EnsureRoot(); err != nil {
		return err
	}
	return s.Links.Ping(ctx)
}
