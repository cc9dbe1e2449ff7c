package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/isopsephy/gematria-crossref/internal/alphabet"
	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/internal/xref"
	"github.com/isopsephy/gematria-crossref/pkg/config"
	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
)

func newTestPipeline(t *testing.T) (*Pipeline, *xref.Store) {
	t.Helper()
	reg, err := alphabet.Builtin()
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	c, err := codec.New(reg, config.CodecConfig{})
	if err != nil {
		t.Fatalf("building codec: %v", err)
	}
	index, err := xref.Open(config.IndexConfig{
		DataDir:       t.TempDir(),
		Partitions:    4,
		FlushInterval: 50 * time.Millisecond,
		FlushBytes:    1 << 16,
		CommitQueue:   64,
	}, nil)
	if err != nil {
		t.Fatalf("opening index store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		index.Close()
	})
	index.Start(ctx)

	p := NewPipeline(c, nil, index, config.IngestConfig{
		Workers:         4,
		DefaultAlphabet: "english",
		RetryAttempts:   2,
		RetryDelay:      time.Millisecond,
	}, nil)
	return p, index
}

func TestPipelineRun(t *testing.T) {
	p, index := newTestPipeline(t)

	phrases := []PhraseRecord{
		{Phrase: "love"},
		{Phrase: "Sun"},
		{Phrase: "ג", Alphabet: "hebrew"},
	}
	in := make(chan PhraseRecord)
	go func() {
		defer close(in)
		for _, rec := range phrases {
			in <- rec
		}
	}()

	report, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Attempted != 3 || report.Succeeded != 3 || report.Failed != 0 {
		t.Errorf("report = %+v, want 3 attempted, 3 succeeded", report)
	}

	// love and sun share sum 54 in english.
	got := index.Lookup("english", codec.MethodSum, 54)
	if len(got) != 2 {
		t.Errorf("Lookup(sum, 54) = %v, want both phrases", got)
	}
	if rels := index.LookupHierarchy(3); len(rels) != 1 || rels[0].Alphabet != "hebrew" {
		t.Errorf("LookupHierarchy(3) = %v, want the hebrew phrase", rels)
	}
}

func TestPipelineIsIdempotent(t *testing.T) {
	p, index := newTestPipeline(t)

	for i := 0; i < 3; i++ {
		if err := p.Process(context.Background(), PhraseRecord{Phrase: "  Love "}); err != nil {
			t.Fatalf("Process failed on attempt %d: %v", i, err)
		}
	}
	got := index.Lookup("english", codec.MethodSum, 54)
	if len(got) != 1 || got[0] != "love" {
		t.Errorf("repeated ingestion duplicated the phrase: %v", got)
	}
}

func TestPipelineRejectsEmptyPhrase(t *testing.T) {
	p, _ := newTestPipeline(t)

	err := p.Process(context.Background(), PhraseRecord{Phrase: "   "})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPipelineRejectsUnknownAlphabet(t *testing.T) {
	p, _ := newTestPipeline(t)

	err := p.Process(context.Background(), PhraseRecord{Phrase: "x", Alphabet: "klingon"})
	if !errors.Is(err, apperrors.ErrUnknownAlphabet) {
		t.Errorf("expected ErrUnknownAlphabet, got %v", err)
	}
}

func TestPipelineSkipsOverflowingMethodOnly(t *testing.T) {
	p, index := newTestPipeline(t)

	// 20 z's overflow the product; every other method still lands.
	phrase := "zzzzzzzzzzzzzzzzzzzz"
	if err := p.Process(context.Background(), PhraseRecord{Phrase: phrase}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if got := index.Lookup("english", codec.MethodSum, 520); len(got) != 1 {
		t.Errorf("sum value missing after product overflow: %v", got)
	}
	if p.skippedMethods.Load() != 1 {
		t.Errorf("skippedMethods = %d, want 1", p.skippedMethods.Load())
	}
}

func TestHandleMessageSkipsPoisonMessages(t *testing.T) {
	p, _ := newTestPipeline(t)
	handler := HandleMessage(p)
	ctx := context.Background()

	// Undecodable payloads and invalid input commit past, not redeliver.
	if err := handler(ctx, []byte("ingest"), []byte("{not json")); err != nil {
		t.Errorf("bad JSON should be skipped, got %v", err)
	}
	if err := handler(ctx, []byte("ingest"), []byte(`{"phrase":"  ","batch_id":"b1"}`)); err != nil {
		t.Errorf("empty phrase should be skipped, got %v", err)
	}
	if err := handler(ctx, []byte("ingest"), []byte(`{"phrase":"x","alphabet":"klingon","batch_id":"b1"}`)); err != nil {
		t.Errorf("unknown alphabet should be skipped, got %v", err)
	}
	if err := handler(ctx, []byte("ingest"), []byte(`{"phrase":"love","batch_id":"b1"}`)); err != nil {
		t.Errorf("valid message failed: %v", err)
	}
}
