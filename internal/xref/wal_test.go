package xref

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/isopsephy/gematria-crossref/internal/codec"
)

func TestWALRoundtrip(t *testing.T) {
	dir := t.TempDir()

	w, err := OpenWAL(dir, 1)
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	refs := []Ref{
		{Alphabet: "english", Method: codec.MethodSum, Value: 54, PhraseID: "love", Hierarchy: true},
		{Alphabet: "english", Method: codec.MethodProduct, Value: 19800, PhraseID: "love"},
		{Alphabet: "hebrew", Method: codec.MethodMirror, Value: 400, PhraseID: "א"},
	}
	for _, r := range refs {
		if _, err := w.Append(r); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if w.Pending() == 0 {
		t.Error("Pending should track unflushed bytes")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var replayed []LogRecord
	lastSeq, err := ReplayWAL(dir, func(rec LogRecord) error {
		replayed = append(replayed, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("ReplayWAL failed: %v", err)
	}
	if lastSeq != 3 {
		t.Errorf("lastSeq = %d, want 3", lastSeq)
	}
	if len(replayed) != len(refs) {
		t.Fatalf("replayed %d records, want %d", len(replayed), len(refs))
	}
	for i, rec := range replayed {
		want := refs[i]
		if rec.Seq != uint64(i+1) {
			t.Errorf("record %d has seq %d, want %d", i, rec.Seq, i+1)
		}
		if rec.Alphabet != want.Alphabet || rec.Method != string(want.Method) ||
			rec.Value != want.Value || rec.PhraseID != want.PhraseID || rec.Hierarchy != want.Hierarchy {
			t.Errorf("record %d = %+v, want %+v", i, rec, want)
		}
	}
}

func TestWALReplayMissingFile(t *testing.T) {
	lastSeq, err := ReplayWAL(t.TempDir(), func(LogRecord) error {
		t.Fatal("no records expected")
		return nil
	})
	if err != nil || lastSeq != 0 {
		t.Errorf("replay of absent log = (%d, %v), want (0, nil)", lastSeq, err)
	}
}

func TestWALReplayToleratesTornTail(t *testing.T) {
	dir := t.TempDir()

	w, err := OpenWAL(dir, 1)
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	if _, err := w.Append(Ref{Alphabet: "english", Method: codec.MethodSum, Value: 1, PhraseID: "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Simulate a crash mid-append: a frame length with no payload behind it.
	path := filepath.Join(dir, WALName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("opening log for corruption: %v", err)
	}
	if _, err := f.Write([]byte{0x40, 0x00}); err != nil {
		t.Fatalf("writing torn tail: %v", err)
	}
	f.Close()

	var count int
	lastSeq, err := ReplayWAL(dir, func(LogRecord) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("torn tail should not fail replay: %v", err)
	}
	if lastSeq != 1 || count != 1 {
		t.Errorf("replay = (%d records, lastSeq %d), want (1, 1)", count, lastSeq)
	}
}

func TestWALReplayRejectsNonIncreasingSequence(t *testing.T) {
	dir := t.TempDir()

	w, err := OpenWAL(dir, 5)
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	if _, err := w.Append(Ref{Alphabet: "english", Method: codec.MethodSum, Value: 1, PhraseID: "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Appending with a stale sequence counter regresses mid-file ordering.
	w2, err := OpenWAL(dir, 2)
	if err != nil {
		t.Fatalf("reopening log: %v", err)
	}
	if _, err := w2.Append(Ref{Alphabet: "english", Method: codec.MethodSum, Value: 2, PhraseID: "b"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = ReplayWAL(dir, func(LogRecord) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "corrupt") {
		t.Errorf("expected corruption error for regressed sequence, got %v", err)
	}
}

func TestWALTruncate(t *testing.T) {
	dir := t.TempDir()

	w, err := OpenWAL(dir, 1)
	if err != nil {
		t.Fatalf("OpenWAL failed: %v", err)
	}
	if _, err := w.Append(Ref{Alphabet: "english", Method: codec.MethodSum, Value: 1, PhraseID: "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := w.Truncate(); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	if w.NextSeq() != 1 {
		t.Errorf("NextSeq after truncate = %d, want 1", w.NextSeq())
	}
	if _, err := w.Append(Ref{Alphabet: "english", Method: codec.MethodSum, Value: 2, PhraseID: "b"}); err != nil {
		t.Fatalf("Append after truncate failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var replayed []LogRecord
	if _, err := ReplayWAL(dir, func(rec LogRecord) error {
		replayed = append(replayed, rec)
		return nil
	}); err != nil {
		t.Fatalf("ReplayWAL failed: %v", err)
	}
	if len(replayed) != 1 || replayed[0].PhraseID != "b" {
		t.Errorf("replay after truncate = %v, want only the post-truncate record", replayed)
	}
}
