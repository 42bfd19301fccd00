package fsstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "blobs"), true)
}

func TestEnsureRootCreates(t *testing.T) {
	s := newTestStore(t)
	p, err := s.EnsureRoot()
	if err != nil {
		t.Fatalf("EnsureRoot: %v", err)
	}
	fi, err := os.Stat(p)
	if err != nil || !fi.IsDir() {
		t.Fatalf("root not a directory after EnsureRoot: %v", err)
	}
}

func TestEnsureRootMissingWithoutCreate(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"), false)
	if _, err := s.EnsureRoot(); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("got %v, want ErrStorageUnavailable", err)
	}
}

func TestEnsureRootNotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(f, true)
	if _, err := s.EnsureRoot(); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("got %v, want ErrStorageUnavailable", err)
	}
}

func TestEnsureRootBrokenSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "root")
	if err := os.Symlink(filepath.Join(dir, "gone"), link); err != nil {
		t.Skipf("symlink: %v", err)
	}
	s := New(link, true)
	if _, err := s.EnsureRoot(); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("got %v, want ErrStorageUnavailable", err)
	}
}

func TestSaveFromRoundTrip(t *testing.T) {
	s := newTestStore(t)
	payload := bytes.Repeat([]byte("blobfs!"), 1321)[:9243]

	if err := s.SaveFrom(testBucket, testObject, bytes.NewReader(payload)); err != nil {
		t.Fatalf("SaveFrom: %v", err)
	}

	want := filepath.Join(s.Root(), testBucket, "a9", "11", testObject)
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("object not at sharded path %s: %v", want, err)
	}

	rc, err := s.Open(testBucket, testObject)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}

	if n, err := s.Size(testBucket, testObject); err != nil || n != 9243 {
		t.Fatalf("Size = %d, %v; want 9243", n, err)
	}
	wantHash := sha256.Sum256(payload)
	if h, err := s.ContentHash(testBucket, testObject); err != nil || h != hex.EncodeToString(wantHash[:]) {
		t.Fatalf("ContentHash = %q, %v", h, err)
	}
	if total, err := s.TotalSize(testBucket); err != nil || total != 9243 {
		t.Fatalf("TotalSize = %d, %v; want 9243", total, err)
	}
	if n, err := s.FileCount(testBucket); err != nil || n != 1 {
		t.Fatalf("FileCount = %d, %v; want 1", n, err)
	}
}

func TestSaveMovesStagedFile(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.EnsureRoot(); err != nil {
		t.Fatal(err)
	}
	// Stage inside the root so the rename stays on one filesystem.
	src := filepath.Join(s.Root(), ".staged")
	if err := os.WriteFile(src, []byte("staged bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Save(testBucket, testObject, src); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source still present after Save: %v", err)
	}
	rc, err := s.Open(testBucket, testObject)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "staged bytes" {
		t.Fatalf("content = %q", got)
	}
}

func TestSaveMissingSource(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(testBucket, testObject, filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrMoveFailed) {
		t.Fatalf("got %v, want ErrMoveFailed", err)
	}
	if ok, _ := s.Exists(testBucket, testObject); ok {
		t.Fatal("destination exists after failed Save")
	}
}

func TestSaveRejectsBeforeIO(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")
	s := New(root, true)
	if err := s.SaveFrom("buck.et", testObject, bytes.NewReader(nil)); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("got %v, want ErrInvalidIdentifier", err)
	}
	// Rejection happens before any filesystem mutation.
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("root was created for a rejected save: %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveFrom(testBucket, testObject, bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("SaveFrom: %v", err)
	}
	leaf := filepath.Join(s.Root(), testBucket, "a9", "11")
	entries, err := os.ReadDir(leaf)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != testObject {
		t.Fatalf("leaf dir not clean: %v", entries)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveFrom(testBucket, testObject, bytes.NewReader([]byte("data"))); err != nil {
		t.Fatalf("SaveFrom: %v", err)
	}
	if err := s.Remove(testBucket, testObject); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ok, err := s.Exists(testBucket, testObject); err != nil || ok {
		t.Fatalf("Exists after Remove = %v, %v", ok, err)
	}
	// Leaf directories survive removal.
	if fi, err := os.Stat(filepath.Join(s.Root(), testBucket, "a9", "11")); err != nil || !fi.IsDir() {
		t.Fatalf("leaf dir gone after Remove: %v", err)
	}
	if total, _ := s.TotalSize(testBucket); total != 0 {
		t.Fatalf("TotalSize after Remove = %d", total)
	}
	if n, _ := s.FileCount(testBucket); n != 0 {
		t.Fatalf("FileCount after Remove = %d", n)
	}
	// Removing again is NotFound and mutates nothing.
	if err := s.Remove(testBucket, testObject); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Remove = %v, want ErrNotFound", err)
	}
}

func TestOpenAndSizeNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Open(testBucket, testObject); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open = %v, want ErrNotFound", err)
	}
	if _, err := s.Size(testBucket, testObject); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Size = %v, want ErrNotFound", err)
	}
	if _, err := s.ContentHash(testBucket, testObject); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ContentHash = %v, want ErrNotFound", err)
	}
}

func TestListSkipsDotfilesAndWalksShards(t *testing.T) {
	s := newTestStore(t)
	other := "ffffffff-ffff-ffff-ffff-0000c5aac1b7" // different shard
	for _, id := range []string{testObject, other} {
		if err := s.SaveFrom(testBucket, id, bytes.NewReader([]byte(id))); err != nil {
			t.Fatalf("SaveFrom %s: %v", id, err)
		}
	}
	// A stray dotfile in a leaf dir must not be listed.
	if err := os.WriteFile(filepath.Join(s.Root(), testBucket, "a9", "11", ".stray"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := s.List(testBucket)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("List = %v, want 2 ids", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[testObject] || !seen[other] {
		t.Fatalf("List missing ids: %v", ids)
	}
}

func TestListEmptyBucket(t *testing.T) {
	s := newTestStore(t)
	ids, err := s.List(testBucket)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("List = %v, want empty", ids)
	}
}

func TestSaveOverwriteLastWriterWins(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveFrom(testBucket, testObject, bytes.NewReader([]byte("first"))); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveFrom(testBucket, testObject, bytes.NewReader([]byte("second"))); err != nil {
		t.Fatal(err)
	}
	rc, err := s.Open(testBucket, testObject)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "second" {
		t.Fatalf("content = %q, want %q", got, "second")
	}
}
