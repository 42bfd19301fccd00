package fsstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"
)

func TestJournalAppendAndRead(t *testing.T) {
	s := newTestStore(t)

	j, err := s.OpenJournal(testBucket, "w")
	if err != nil {
		t.Fatalf("OpenJournal w: %v", err)
	}
	for _, line := range []string{"one", "two", "three"} {
		if err := j.AppendLine(line); err != nil {
			t.Fatalf("AppendLine: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := s.OpenJournal(testBucket, "r")
	if err != nil {
		t.Fatalf("OpenJournal r: %v", err)
	}
	defer r.Close()
	var got []string
	for {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		got = append(got, line)
	}
	if !r.AtEOF() {
		t.Fatal("AtEOF false after draining journal")
	}
	if len(got) != 3 || got[0] != "one" || got[2] != "three" {
		t.Fatalf("lines = %v", got)
	}
}

func TestJournalAppendIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	for _, line := range []string{"a", "b"} {
		j, err := s.OpenJournal(testBucket, "w")
		if err != nil {
			t.Fatal(err)
		}
		if err := j.AppendLine(line); err != nil {
			t.Fatal(err)
		}
		if err := j.Close(); err != nil {
			t.Fatal(err)
		}
	}
	r, err := s.OpenJournal(testBucket, "r")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	first, _ := r.ReadLine()
	second, _ := r.ReadLine()
	if first != "a" || second != "b" {
		t.Fatalf("got %q, %q", first, second)
	}
}

func TestJournalRejectsEmbeddedNewline(t *testing.T) {
	s := newTestStore(t)
	j, err := s.OpenJournal(testBucket, "w")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	if err := j.AppendLine("bad\nline"); err == nil {
		t.Fatal("embedded newline accepted")
	}
}

func TestJournalHashAndRef(t *testing.T) {
	s := newTestStore(t)
	j, err := s.OpenJournal(testBucket, "w")
	if err != nil {
		t.Fatal(err)
	}
	if err := j.AppendLine("entry"); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	want := sha256.Sum256([]byte("entry\n"))
	h, err := s.JournalHash(testBucket)
	if err != nil {
		t.Fatalf("JournalHash: %v", err)
	}
	if h != hex.EncodeToString(want[:]) {
		t.Fatalf("JournalHash = %q", h)
	}
	ref, err := s.JournalRef(testBucket)
	if err != nil || ref == "" {
		t.Fatalf("JournalRef = %q, %v", ref, err)
	}
}

func TestJournalMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.EnsureRoot(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.OpenJournal(testBucket, "r"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := s.JournalHash(testBucket); !errors.Is(err, ErrNotFound) {
		t.Fatalf("hash: got %v, want ErrNotFound", err)
	}
}
