package baseline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/pkg/metrics"
)

// Record is one externally supplied ground-truth value. Method carries the
// dataset's own naming and is resolved through the alias table.
type Record struct {
	Phrase   string
	Alphabet string
	Method   string
	Expected int64
}

// Result is the outcome of validating a single record. A mismatch is data,
// not an error: validation never throws for disagreement.
type Result struct {
	Phrase   string         `json:"phrase"`
	Alphabet string         `json:"alphabet"`
	Method   codec.MethodID `json:"method"`
	Match    bool           `json:"match"`
	Expected int64          `json:"expected"`
	Computed int64          `json:"computed"`
}

// Report aggregates a validation run.
type Report struct {
	Checked    int      `json:"checked"`
	Matches    int      `json:"matches"`
	Mismatches []Result `json:"mismatches"`
	Errors     int      `json:"errors"`
}

// Source streams baseline records into a validation run.
type Source func(ctx context.Context, emit func(Record) error) error

// Validator compares codec output against baseline records. It holds no
// mutable state and never writes to the index or the value-record store.
type Validator struct {
	codec   *codec.Codec
	aliases *AliasTable
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Validator using the given alias table version.
func New(c *codec.Codec, aliasVersion string, m *metrics.Metrics) (*Validator, error) {
	table, err := NewAliasTable(aliasVersion)
	if err != nil {
		return nil, err
	}
	return &Validator{
		codec:   c,
		aliases: table,
		logger:  slog.Default().With("component", "baseline-validator"),
		metrics: m,
	}, nil
}

// Validate checks one record, resolving its method name through the alias
// table and recomputing the phrase's value.
func (v *Validator) Validate(rec Record) (Result, error) {
	method, err := v.aliases.Resolve(rec.Method)
	if err != nil {
		return Result{}, err
	}
	computed, err := v.codec.Compute(rec.Phrase, rec.Alphabet, method)
	if err != nil {
		return Result{}, fmt.Errorf("computing %s for %q: %w", method, rec.Phrase, err)
	}
	res := Result{
		Phrase:   rec.Phrase,
		Alphabet: rec.Alphabet,
		Method:   method,
		Match:    computed == rec.Expected,
		Expected: rec.Expected,
		Computed: computed,
	}
	if v.metrics != nil {
		outcome := "match"
		if !res.Match {
			outcome = "mismatch"
		}
		v.metrics.BaselineChecksTotal.WithLabelValues(outcome).Inc()
	}
	return res, nil
}

// ValidateAll streams a source through Validate and aggregates a Report.
// Per-record errors (unknown alias, overflow) are counted and logged;
// the run continues.
func (v *Validator) ValidateAll(ctx context.Context, source Source) (*Report, error) {
	report := &Report{}
	err := source(ctx, func(rec Record) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := v.Validate(rec)
		if err != nil {
			report.Errors++
			if v.metrics != nil {
				v.metrics.BaselineChecksTotal.WithLabelValues("error").Inc()
			}
			v.logger.Warn("baseline record skipped", "phrase", rec.Phrase, "method", rec.Method, "error", err)
			return nil
		}
		report.Checked++
		if res.Match {
			report.Matches++
		} else {
			report.Mismatches = append(report.Mismatches, res)
			v.logger.Info("baseline mismatch",
				"phrase", res.Phrase,
				"method", res.Method,
				"expected", res.Expected,
				"computed", res.Computed,
			)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("reading baseline source: %w", err)
	}
	return report, nil
}
