// Package grouper answers "what else shares this value" queries against the
// cross-reference index, per method and across the hierarchy value.
package grouper

import (
	"fmt"
	"log/slog"

	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/internal/xref"
	"github.com/isopsephy/gematria-crossref/pkg/metrics"
)

// Groups maps each method to the other phrases sharing the phrase's value
// under it, in index insertion order. A method under which the phrase's value
// is unique maps to an empty slice.
type Groups map[codec.MethodID][]string

// Result is the full relationship answer for one phrase.
type Result struct {
	PhraseID  string                   `json:"phrase_id"`
	Alphabet  string                   `json:"alphabet"`
	Values    map[codec.MethodID]int64 `json:"values"`
	Groups    Groups                   `json:"groups"`
	Hierarchy int64                    `json:"hierarchy_value"`
	Related   []xref.Relation          `json:"hierarchy_related"`
}

// Grouper resolves relationship queries. Values are recomputed from the
// phrase identifier on demand: methods are referentially transparent, so the
// recomputation always lands on the same bucket the ingest pipeline filled.
type Grouper struct {
	codec   *codec.Codec
	store   *xref.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Grouper over the given codec and index store.
func New(c *codec.Codec, store *xref.Store, m *metrics.Metrics) *Grouper {
	return &Grouper{
		codec:   c,
		store:   store,
		logger:  slog.Default().With("component", "grouper"),
		metrics: m,
	}
}

// Group returns, per method, the other phrases equal in value to phraseID
// under its alphabet. Methods whose computation fails for this phrase
// (overflow, recursion bound) are omitted rather than failing the query.
func (g *Grouper) Group(phraseID, alphabetID string) (Groups, map[codec.MethodID]int64, error) {
	id := codec.PhraseID(phraseID)
	values, errs, err := g.codec.ComputeAll(id, alphabetID)
	if err != nil {
		return nil, nil, fmt.Errorf("computing values for %q: %w", id, err)
	}
	for m, merr := range errs {
		g.logger.Debug("method skipped in group query", "phrase_id", id, "method", m, "error", merr)
	}
	groups := make(Groups, len(values))
	for m, v := range values {
		members := g.store.Lookup(alphabetID, m, v)
		others := make([]string, 0, len(members))
		for _, member := range members {
			if member != id {
				others = append(others, member)
			}
		}
		groups[m] = others
		if g.metrics != nil {
			g.metrics.GroupSizes.Observe(float64(len(others)))
			result := "hit"
			if len(others) == 0 {
				result = "empty"
			}
			g.metrics.LookupsTotal.WithLabelValues("value", result).Inc()
		}
	}
	return groups, values, nil
}

// GroupByHierarchy returns every relation sharing phraseID's hierarchy value,
// across all alphabets and methods, self excluded. Collisions between
// unrelated alphabets are reported, not filtered: the hierarchy value exists
// to join phrases across alphabets.
func (g *Grouper) GroupByHierarchy(phraseID, alphabetID string) (int64, []xref.Relation, error) {
	id := codec.PhraseID(phraseID)
	hv, err := g.codec.HierarchyValue(id, alphabetID)
	if err != nil {
		return 0, nil, fmt.Errorf("computing hierarchy value for %q: %w", id, err)
	}
	rels := g.store.LookupHierarchy(hv)
	others := make([]xref.Relation, 0, len(rels))
	for _, rel := range rels {
		if rel.PhraseID == id {
			continue
		}
		others = append(others, rel)
	}
	if g.metrics != nil {
		result := "hit"
		if len(others) == 0 {
			result = "empty"
		}
		g.metrics.LookupsTotal.WithLabelValues("hierarchy", result).Inc()
	}
	return hv, others, nil
}

// Resolve combines Group and GroupByHierarchy into one Result.
func (g *Grouper) Resolve(phraseID, alphabetID string) (*Result, error) {
	id := codec.PhraseID(phraseID)
	groups, values, err := g.Group(id, alphabetID)
	if err != nil {
		return nil, err
	}
	hv, related, err := g.GroupByHierarchy(id, alphabetID)
	if err != nil {
		return nil, err
	}
	return &Result{
		PhraseID:  id,
		Alphabet:  alphabetID,
		Values:    values,
		Groups:    groups,
		Hierarchy: hv,
		Related:   related,
	}, nil
}
