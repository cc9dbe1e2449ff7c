package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/internal/store"
	"github.com/isopsephy/gematria-crossref/internal/xref"
	"github.com/isopsephy/gematria-crossref/pkg/config"
	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
	"github.com/isopsephy/gematria-crossref/pkg/metrics"
	"github.com/isopsephy/gematria-crossref/pkg/resilience"
)

// Pipeline computes and indexes phrases. records may be nil when no Postgres
// store is configured; the index and its checkpoint log still make ingestion
// durable.
type Pipeline struct {
	codec   *codec.Codec
	records *store.Records
	index   *xref.Store
	cfg     config.IngestConfig
	metrics *metrics.Metrics
	logger  *slog.Logger

	skippedMethods atomic.Int64
}

// NewPipeline wires the ingestion stages together.
func NewPipeline(c *codec.Codec, records *store.Records, index *xref.Store, cfg config.IngestConfig, m *metrics.Metrics) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Pipeline{
		codec:   c,
		records: records,
		index:   index,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "ingest-pipeline"),
	}
}

// Run drains the input channel with a pool of workers and reports per-phrase
// outcomes. A cancelled context stops the pool; phrases already accepted by
// the committer stay indexed, leaving the index valid but incomplete.
func (p *Pipeline) Run(ctx context.Context, in <-chan PhraseRecord) (*Report, error) {
	var attempted, succeeded, failed atomic.Int64
	start := time.Now()
	p.skippedMethods.Store(0)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < p.cfg.Workers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case rec, ok := <-in:
					if !ok {
						return nil
					}
					attempted.Add(1)
					if err := p.Process(ctx, rec); err != nil {
						failed.Add(1)
						p.logger.Error("phrase ingestion failed", "phrase", rec.Phrase, "error", err)
						continue
					}
					succeeded.Add(1)
				}
			}
		})
	}
	err := g.Wait()
	report := &Report{
		Attempted:      attempted.Load(),
		Succeeded:      succeeded.Load(),
		Failed:         failed.Load(),
		SkippedMethods: p.skippedMethods.Load(),
	}
	p.logger.Info("ingestion run complete",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped_methods", report.SkippedMethods,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return report, err
	}
	return report, nil
}

// Process ingests a single phrase: compute all method values, persist the
// value records, then commit each to the index. Index commits are retried
// with the same idempotent key before the phrase is marked failed.
func (p *Pipeline) Process(ctx context.Context, rec PhraseRecord) error {
	alphabetID := rec.Alphabet
	if alphabetID == "" {
		alphabetID = p.cfg.DefaultAlphabet
	}
	id := codec.PhraseID(rec.Phrase)
	if id == "" {
		return fmt.Errorf("%w: empty phrase", apperrors.ErrInvalidInput)
	}

	values, methodErrs, err := p.codec.ComputeAll(id, alphabetID)
	if err != nil {
		return err
	}
	for m, merr := range methodErrs {
		// Overflow and recursion-limit failures skip the method, not the
		// phrase.
		p.skippedMethods.Add(1)
		if p.metrics != nil {
			p.metrics.ComputeErrorsTotal.WithLabelValues(m.String(), errorKind(merr)).Inc()
		}
		p.logger.Warn("method skipped", "phrase_id", id, "method", m, "error", merr)
	}
	if p.metrics != nil {
		for m := range values {
			p.metrics.ValuesComputedTotal.WithLabelValues(m.String()).Inc()
		}
	}

	now := time.Now().UTC()
	recs := make([]codec.ValueRecord, 0, len(values))
	for m, v := range values {
		recs = append(recs, codec.ValueRecord{
			PhraseID:   id,
			Phrase:     rec.Phrase,
			Alphabet:   alphabetID,
			Method:     m,
			Value:      v,
			ComputedAt: now,
		})
	}
	if p.records != nil {
		if err := p.records.UpsertBatch(ctx, recs, p.codec.PrimaryMethod()); err != nil {
			p.countOutcome("failed")
			return fmt.Errorf("persisting value records for %q: %w", id, err)
		}
	}

	primary := p.codec.PrimaryMethod()
	for m, v := range values {
		ref := xref.Ref{
			Alphabet:  alphabetID,
			Method:    m,
			Value:     v,
			PhraseID:  id,
			Hierarchy: m == primary,
		}
		err := resilience.Retry(ctx, "index-commit", resilience.RetryConfig{
			MaxAttempts:  p.cfg.RetryAttempts,
			InitialDelay: p.cfg.RetryDelay,
		}, func() error {
			return p.index.Commit(ctx, ref)
		})
		if err != nil {
			// The phrase is not ingested unless every computed value is
			// durably indexed.
			p.countOutcome("failed")
			return fmt.Errorf("indexing %s=%d for %q: %w", m, v, id, err)
		}
	}
	p.countOutcome("ok")
	return nil
}

func (p *Pipeline) countOutcome(outcome string) {
	if p.metrics != nil {
		p.metrics.PhrasesIngestedTotal.WithLabelValues(outcome).Inc()
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrOverflow):
		return "overflow"
	case errors.Is(err, apperrors.ErrRecursionLimit):
		return "recursion"
	default:
		return "other"
	}
}
