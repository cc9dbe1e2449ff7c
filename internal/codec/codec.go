// Package codec computes numeric values for phrases under the catalog of
// encoding methods. Every method is a pure function of (alphabet, phrase):
// identical input always yields the identical value, which is the invariant
// the cross-reference index is built on.
package codec

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/isopsephy/gematria-crossref/internal/alphabet"
	"github.com/isopsephy/gematria-crossref/pkg/config"
	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
)

// ValueRecord is one computed (phrase, alphabet, method) value. Records are
// never mutated; recomputation produces a fresh record with the same value.
type ValueRecord struct {
	PhraseID   string    `json:"phrase_id"`
	Phrase     string    `json:"phrase"`
	Alphabet   string    `json:"alphabet"`
	Method     MethodID  `json:"method"`
	Value      int64     `json:"value"`
	ComputedAt time.Time `json:"computed_at"`
}

type computeFn func(c *Codec, a *alphabet.Alphabet, phrase string) (int64, error)

// Codec evaluates catalog methods against a fixed alphabet registry.
type Codec struct {
	reg       *alphabet.Registry
	catalog   map[MethodID]computeFn
	primary   MethodID
	lengthK   int64
	nameDepth int
	logger    *slog.Logger
}

// New builds a Codec from the registry and codec configuration. The method
// catalog is bound to function values here, once; dispatch never goes through
// a string lookup afterwards.
func New(reg *alphabet.Registry, cfg config.CodecConfig) (*Codec, error) {
	primary := MethodID(cfg.PrimaryMethod)
	if cfg.PrimaryMethod == "" {
		primary = MethodSum
	} else if _, err := ParseMethod(cfg.PrimaryMethod); err != nil {
		return nil, fmt.Errorf("primary method: %w", err)
	}
	lengthK := cfg.LengthAdditiveK
	if lengthK == 0 {
		lengthK = 1000
	}
	nameDepth := cfg.NameExpansionDepth
	if nameDepth <= 0 {
		nameDepth = 32
	}
	c := &Codec{
		reg:       reg,
		primary:   primary,
		lengthK:   lengthK,
		nameDepth: nameDepth,
		logger:    slog.Default().With("component", "codec"),
	}
	c.catalog = map[MethodID]computeFn{
		MethodSum:            (*Codec).sum,
		MethodOrdinal:        (*Codec).ordinal,
		MethodReduced:        (*Codec).reduced,
		MethodMirror:         (*Codec).mirror,
		MethodCumulative:     (*Codec).cumulative,
		MethodProduct:        (*Codec).product,
		MethodNameExpansion:  (*Codec).nameExpansion,
		MethodLengthAdditive: (*Codec).lengthAdditive,
	}
	return c, nil
}

// PrimaryMethod returns the designated hierarchy method.
func (c *Codec) PrimaryMethod() MethodID { return c.primary }

// Registry returns the alphabet registry the codec computes over.
func (c *Codec) Registry() *alphabet.Registry { return c.reg }

// Compute evaluates a single method for the phrase in the given alphabet.
func (c *Codec) Compute(phrase, alphabetID string, method MethodID) (int64, error) {
	a, err := c.reg.Alphabet(alphabetID)
	if err != nil {
		return 0, err
	}
	fn, ok := c.catalog[method]
	if !ok {
		return 0, fmt.Errorf("%w: %q", apperrors.ErrUnknownMethod, method)
	}
	return fn(c, a, phrase)
}

// ComputeAll evaluates every catalog method for the phrase. Per-method
// recoverable failures (overflow, recursion limit) are returned in errs so
// the caller can index the methods that did succeed.
func (c *Codec) ComputeAll(phrase, alphabetID string) (map[MethodID]int64, map[MethodID]error, error) {
	a, err := c.reg.Alphabet(alphabetID)
	if err != nil {
		return nil, nil, err
	}
	values := make(map[MethodID]int64, len(AllMethods))
	var errs map[MethodID]error
	for _, m := range AllMethods {
		v, err := c.catalog[m](c, a, phrase)
		if err != nil {
			if errs == nil {
				errs = make(map[MethodID]error)
			}
			errs[m] = err
			continue
		}
		values[m] = v
	}
	return values, errs, nil
}

// HierarchyValue computes the phrase's value under the designated primary
// method, the join key that relates phrases across alphabets and methods.
func (c *Codec) HierarchyValue(phrase, alphabetID string) (int64, error) {
	return c.Compute(phrase, alphabetID, c.primary)
}

// PhraseID derives the canonical identifier for a phrase: the lower-cased,
// whitespace-collapsed text. Deterministic so repeated ingestion of the same
// phrase is idempotent all the way down to the index.
func PhraseID(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

func (c *Codec) sum(a *alphabet.Alphabet, phrase string) (int64, error) {
	var total int64
	for _, r := range phrase {
		if v, ok := a.ValueOf(r); ok {
			total += v
		}
	}
	return total, nil
}

func (c *Codec) ordinal(a *alphabet.Alphabet, phrase string) (int64, error) {
	var total int64
	for _, r := range phrase {
		if l, ok := a.Letter(r); ok {
			total += int64(l.Ordinal)
		}
	}
	return total, nil
}

func (c *Codec) reduced(a *alphabet.Alphabet, phrase string) (int64, error) {
	var total int64
	for _, r := range phrase {
		if v, ok := a.ValueOf(r); ok {
			total += digitRoot(v)
		}
	}
	return total, nil
}

// digitRoot repeatedly replaces v with the sum of its decimal digits until a
// single digit remains. Strictly decreasing above 9, so it terminates.
func digitRoot(v int64) int64 {
	for v > 9 {
		var s int64
		for v > 0 {
			s += v % 10
			v /= 10
		}
		v = s
	}
	return v
}

func (c *Codec) mirror(a *alphabet.Alphabet, phrase string) (int64, error) {
	var total int64
	for _, r := range phrase {
		if l, ok := a.Letter(r); ok {
			total += a.Mirror(l).Value
		}
	}
	return total, nil
}

func (c *Codec) cumulative(a *alphabet.Alphabet, phrase string) (int64, error) {
	var running, total int64
	for _, r := range phrase {
		if v, ok := a.ValueOf(r); ok {
			running += v
			total += running
		}
	}
	return total, nil
}

// product multiplies base values with exact big-integer arithmetic. A phrase
// with no letters in the alphabet yields the empty product, 1. Products that
// do not fit an int64 fail loudly instead of wrapping.
func (c *Codec) product(a *alphabet.Alphabet, phrase string) (int64, error) {
	acc := big.NewInt(1)
	factor := new(big.Int)
	for _, r := range phrase {
		if v, ok := a.ValueOf(r); ok {
			acc.Mul(acc, factor.SetInt64(v))
		}
	}
	if !acc.IsInt64() {
		return 0, fmt.Errorf("%w: product of %q exceeds int64 (%s)", apperrors.ErrOverflow, phrase, acc.String())
	}
	return acc.Int64(), nil
}

func (c *Codec) lengthAdditive(a *alphabet.Alphabet, phrase string) (int64, error) {
	var total, letters int64
	for _, r := range phrase {
		if v, ok := a.ValueOf(r); ok {
			total += v
			letters++
		}
	}
	return total + letters*c.lengthK, nil
}
