package fsstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store persists object bytes under a single filesystem root using the
// sharded layout from ComputePath. Writes follow a temp-file, fsync, rename
// protocol so a reader never observes a partial object under its canonical
// name. The tree is shared: every mutation tolerates another process having
// already created or removed the same entry.
type Store struct {
	root       string
	createRoot bool
}

func New(root string, createRoot bool) *Store {
	return &Store{root: root, createRoot: createRoot}
}

func (s *Store) Root() string { return s.root }

// EnsureRoot verifies the storage root exists, is a directory and is usable
// for both reading and writing. With createRoot set a missing root is
// created first. Doubles as the liveness probe.
func (s *Store) EnsureRoot() (string, error) {
	fi, err := os.Stat(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("%w: stat %s: %v", ErrStorageUnavailable, s.root, err)
		}
		// A dangling symlink stats as missing but cannot be mkdir'd over.
		if _, lerr := os.Lstat(s.root); lerr == nil {
			return "", fmt.Errorf("%w: %s is a broken symlink", ErrStorageUnavailable, s.root)
		}
		if !s.createRoot {
			return "", fmt.Errorf("%w: %s does not exist", ErrStorageUnavailable, s.root)
		}
		if err := os.MkdirAll(s.root, 0o755); err != nil {
			return "", fmt.Errorf("%w: create %s: %v", ErrStorageUnavailable, s.root, err)
		}
		fi, err = os.Stat(s.root)
		if err != nil {
			return "", fmt.Errorf("%w: stat %s: %v", ErrStorageUnavailable, s.root, err)
		}
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrStorageUnavailable, s.root)
	}
	if f, err := os.Open(s.root); err != nil {
		return "", fmt.Errorf("%w: %s not readable: %v", ErrStorageUnavailable, s.root, err)
	} else {
		f.Close()
	}
	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return "", fmt.Errorf("%w: %s not writable: %v", ErrStorageUnavailable, s.root, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return s.root, nil
}

// Save moves an existing file into the store. The source must live on the
// same filesystem as the root: the bytes are renamed into place, never
// copied, so the atomicity guarantee holds end to end.
func (s *Store) Save(bucketID, objectID, sourcePath string) error {
	tmp, dest, err := s.prepare(bucketID, objectID)
	if err != nil {
		return err
	}
	defer os.Remove(tmp) // no-op once renamed to dest
	if err := os.Rename(sourcePath, tmp); err != nil {
		return fmt.Errorf("%w: stage %s: %v", ErrMoveFailed, sourcePath, err)
	}
	return s.finalize(tmp, dest)
}

// SaveFrom streams r into the store under the same durability protocol.
// Used by upload handlers that hold the payload as a stream, not a file.
func (s *Store) SaveFrom(bucketID, objectID string, r io.Reader) error {
	tmp, dest, err := s.prepare(bucketID, objectID)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open temp: %v", ErrIO, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("%w: write temp: %v", ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close temp: %v", ErrIO, err)
	}
	return s.finalize(tmp, dest)
}

// prepare ensures the destination directory chain exists and creates the
// temp file inside the leaf directory. A temp file anywhere else (e.g. a
// system temp dir on another filesystem) would turn the final rename into a
// copy and void the atomicity guarantee, so that case is fatal.
func (s *Store) prepare(bucketID, objectID string) (tmp, dest string, err error) {
	if _, err := s.EnsureRoot(); err != nil {
		return "", "", err
	}
	sp, err := ComputePath(s.root, bucketID, objectID)
	if err != nil {
		return "", "", err
	}
	dir := s.root
	for _, seg := range sp.Segments {
		dir = filepath.Join(dir, seg)
		if err := os.Mkdir(dir, 0o755); err != nil {
			// A concurrent saver may have won the race; only a directory
			// that still does not exist is a real failure.
			if fi, serr := os.Stat(dir); serr != nil || !fi.IsDir() {
				return "", "", fmt.Errorf("%w: %s: %v", ErrDirectoryCreate, dir, err)
			}
		}
	}
	f, err := os.CreateTemp(dir, "."+objectID+".tmp-*")
	if err != nil {
		return "", "", fmt.Errorf("%w: temp in %s: %v", ErrIO, dir, err)
	}
	f.Close()
	if filepath.Dir(f.Name()) != dir {
		os.Remove(f.Name())
		return "", "", fmt.Errorf("%w: %s not in %s", ErrTempFileMisplaced, f.Name(), dir)
	}
	return f.Name(), sp.Full(), nil
}

// finalize forces the temp file's bytes to durable storage, then renames it
// to the canonical name. The rename is the single moment the object becomes
// visible. A directory-entry fsync is deliberately not issued (not portably
// available); a crash right after the rename may leave it un-persisted on
// some filesystems.
func (s *Store) finalize(tmp, dest string) error {
	if err := os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("%w: chmod: %v", ErrIO, err)
	}
	f, err := os.Open(tmp)
	if err != nil {
		return fmt.Errorf("%w: reopen temp: %v", ErrSyncFailed, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrSyncFailed, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("%w: rename to %s: %v", ErrMoveFailed, dest, err)
	}
	return nil
}

// Open returns a streaming reader for the object.
func (s *Store) Open(bucketID, objectID string) (io.ReadCloser, error) {
	p, err := s.resolve(bucketID, objectID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucketID, objectID)
		}
		return nil, fmt.Errorf("%w: open: %v", ErrIO, err)
	}
	return f, nil
}

// Remove deletes the object file. Leaf directories stay behind: they are
// cheap and later objects sharing the shard prefix reuse them.
func (s *Store) Remove(bucketID, objectID string) error {
	p, err := s.resolve(bucketID, objectID)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, bucketID, objectID)
		}
		return fmt.Errorf("%w: remove: %v", ErrIO, err)
	}
	return nil
}

func (s *Store) Exists(bucketID, objectID string) (bool, error) {
	p, err := s.resolve(bucketID, objectID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat: %v", ErrIO, err)
	}
	return true, nil
}

// Path resolves the canonical path without touching the filesystem.
func (s *Store) Path(bucketID, objectID string) (string, error) {
	return s.resolve(bucketID, objectID)
}

func (s *Store) resolve(bucketID, objectID string) (string, error) {
	sp, err := ComputePath(s.root, bucketID, objectID)
	if err != nil {
		return "", err
	}
	return sp.Full(), nil
}

// Walk calls fn for every object id stored in the bucket. The walk is
// stateless and restartable; dotfiles (temp files, journals) are skipped.
func (s *Store) Walk(bucketID string, fn func(objectID string) error) error {
	if err := ValidateIdentifier(bucketID); err != nil {
		return fmt.Errorf("bucket: %w", err)
	}
	dir := filepath.Join(s.root, bucketID)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // empty bucket
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		return fn(d.Name())
	})
	if err != nil {
		return fmt.Errorf("%w: walk %s: %v", ErrIO, dir, err)
	}
	return nil
}

// List collects every object id in the bucket.
func (s *Store) List(bucketID string) ([]string, error) {
	var ids []string
	err := s.Walk(bucketID, func(objectID string) error {
		ids = append(ids, objectID)
		return nil
	})
	return ids, err
}

// Size reports the stored byte size of one object.
func (s *Store) Size(bucketID, objectID string) (int64, error) {
	p, err := s.resolve(bucketID, objectID)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, bucketID, objectID)
		}
		return 0, fmt.Errorf("%w: stat: %v", ErrIO, err)
	}
	return fi.Size(), nil
}

// ContentHash returns the hex sha-256 digest of the stored bytes.
func (s *Store) ContentHash(bucketID, objectID string) (string, error) {
	rc, err := s.Open(bucketID, objectID)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("%w: hash: %v", ErrIO, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TotalSize folds Size over every object in the bucket.
func (s *Store) TotalSize(bucketID string) (int64, error) {
	var total int64
	err := s.Walk(bucketID, func(objectID string) error {
		n, err := s.Size(bucketID, objectID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		total += n
		return nil
	})
	return total, err
}

// FileCount reports how many objects the bucket holds.
func (s *Store) FileCount(bucketID string) (int, error) {
	var n int
	err := s.Walk(bucketID, func(string) error {
		n++
		return nil
	})
	return n, err
}
