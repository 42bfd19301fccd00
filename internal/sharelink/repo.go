package sharelink

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("share link not found")
	ErrPersist  = errors.New("share link persist failed")
)

// ShareLink is one issued authorization record: its own identifier (the
// token carried in the URL), the object it targets, where that object lives
// on disk, the issued link and the expiry.
type ShareLink struct {
	Identifier         string
	FileDataIdentifier string
	BucketIdentifier   string
	FilesystemPath     string
	Link               string
	ValidUntil         time.Time
}

// Expired reports whether the record is past its validity window. The
// boundary instant itself is still valid.
func (l ShareLink) Expired(now time.Time) bool {
	return now.After(l.ValidUntil)
}

type Store interface {
	Create(ctx context.Context, l ShareLink) error
	GetByID(ctx context.Context, identifier string) (ShareLink, error)
	GetAllByFileID(ctx context.Context, fileDataIdentifier string) ([]ShareLink, error)
	Delete(ctx context.Context, identifier string) error
	DeleteMany(ctx context.Context, identifiers []string) error
	// SweepExpired deletes every record with validUntil < now and returns
	// how many were removed. Each delete is independent; the sweep is safe
	// to run concurrently with Create/GetByID.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	// Ping reports whether the backing store is reachable (health check).
	Ping(ctx context.Context) error
}
