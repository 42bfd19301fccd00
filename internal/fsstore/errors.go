package fsstore

import "errors"

// Closed set of failure kinds for the filesystem store. Handlers map these
// to HTTP statuses; nothing here is a programming-bug signal.
var (
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrStorageUnavailable = errors.New("storage root unavailable")
	ErrDirectoryCreate    = errors.New("directory create failed")
	ErrTempFileMisplaced  = errors.New("temp file outside destination directory")
	ErrSyncFailed         = errors.New("fsync failed")
	ErrMoveFailed         = errors.New("move failed")
	ErrNotFound           = errors.New("file not found")
	ErrIO                 = errors.New("io failure")
)
