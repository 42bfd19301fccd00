package fsstore

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Journal is the per-bucket metadata backup side-channel: an append-only,
// line-delimited file read and written sequentially by an external
// backup/restore process. A handle is open for reading or appending, never
// both.
type Journal struct {
	f   *os.File
	r   *bufio.Reader
	w   *bufio.Writer
	eof bool
}

const journalSuffix = ".backup"

// journalPath puts the journal next to the bucket directory, not inside it,
// so bucket walks never see it.
func (s *Store) journalPath(bucketID string) (string, error) {
	if err := ValidateIdentifier(bucketID); err != nil {
		return "", fmt.Errorf("bucket: %w", err)
	}
	return filepath.Join(s.root, bucketID+journalSuffix), nil
}

// OpenJournal opens the bucket's backup journal. Mode "r" reads from the
// start, mode "w" appends, creating the file if needed.
func (s *Store) OpenJournal(bucketID, mode string) (*Journal, error) {
	p, err := s.journalPath(bucketID)
	if err != nil {
		return nil, err
	}
	switch mode {
	case "r":
		f, err := os.Open(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: journal for %s", ErrNotFound, bucketID)
			}
			return nil, fmt.Errorf("%w: open journal: %v", ErrIO, err)
		}
		return &Journal{f: f, r: bufio.NewReader(f)}, nil
	case "w":
		if _, err := s.EnsureRoot(); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("%w: open journal: %v", ErrIO, err)
		}
		return &Journal{f: f, w: bufio.NewWriter(f)}, nil
	default:
		return nil, fmt.Errorf("journal mode %q: want \"r\" or \"w\"", mode)
	}
}

// AppendLine writes one record. The trailing newline is added here; the
// text itself must not contain one.
func (j *Journal) AppendLine(text string) error {
	if j.w == nil {
		return fmt.Errorf("%w: journal not open for writing", ErrIO)
	}
	if strings.ContainsRune(text, '\n') {
		return fmt.Errorf("%w: journal line contains newline", ErrIO)
	}
	if _, err := j.w.WriteString(text + "\n"); err != nil {
		return fmt.Errorf("%w: append: %v", ErrIO, err)
	}
	return nil
}

// ReadLine returns the next record without its newline. io.EOF after the
// last line.
func (j *Journal) ReadLine() (string, error) {
	if j.r == nil {
		return "", fmt.Errorf("%w: journal not open for reading", ErrIO)
	}
	line, err := j.r.ReadString('\n')
	if err == io.EOF {
		j.eof = true
		if line == "" {
			return "", io.EOF
		}
		return line, nil // final line without trailing newline
	}
	if err != nil {
		return "", fmt.Errorf("%w: read: %v", ErrIO, err)
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// AtEOF reports whether a previous ReadLine hit the end of the journal.
func (j *Journal) AtEOF() bool { return j.eof }

// Close flushes pending writes and releases the file handle. Safe to call
// on every exit path.
func (j *Journal) Close() error {
	if j.f == nil {
		return nil
	}
	var flushErr error
	if j.w != nil {
		flushErr = j.w.Flush()
	}
	closeErr := j.f.Close()
	j.f, j.r, j.w = nil, nil, nil
	if flushErr != nil {
		return fmt.Errorf("%w: flush journal: %v", ErrIO, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close journal: %v", ErrIO, closeErr)
	}
	return nil
}

// JournalRef returns the journal's path for external tooling.
func (s *Store) JournalRef(bucketID string) (string, error) {
	return s.journalPath(bucketID)
}

// JournalHash returns the hex sha-256 digest of the bucket's journal file.
func (s *Store) JournalHash(bucketID string) (string, error) {
	p, err := s.journalPath(bucketID)
	if err != nil {
		return "", err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: journal for %s", ErrNotFound, bucketID)
		}
		return "", fmt.Errorf("%w: open journal: %v", ErrIO, err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: hash journal: %v", ErrIO, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
