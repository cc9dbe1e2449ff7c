package codec

import (
	"errors"
	"testing"

	"github.com/isopsephy/gematria-crossref/pkg/config"
	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
)

func TestNameExpansionWorkedExamples(t *testing.T) {
	c := newTestCodec(t, config.CodecConfig{})

	tests := []struct {
		name     string
		phrase   string
		alphabet string
		want     int64
	}{
		// "a" is named "a": the revisit scores the base value, so a -> 1.
		{"self-named letter", "a", "english", 1},
		// "b" is named "bee": b revisited -> 2, each e expands to 5.
		{"simple expansion", "b", "english", 12},
		{"phrase sums per-letter expansions", "ab", "english", 13},
		{"non-letters are skipped", "a b!", "english", 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Compute(tt.phrase, tt.alphabet, MethodNameExpansion)
			if err != nil {
				t.Fatalf("Compute(%q) failed: %v", tt.phrase, err)
			}
			if got != tt.want {
				t.Errorf("name-expansion(%q) = %d, want %d", tt.phrase, got, tt.want)
			}
		})
	}
}

func TestNameExpansionTerminatesOnCycles(t *testing.T) {
	c := newTestCodec(t, config.CodecConfig{})

	// Hebrew letter names are written in Hebrew letters, so expansion is
	// mutually recursive across most of the alphabet. The visited set must
	// bottom it out without hitting the depth bound.
	reg := c.Registry()
	heb, err := reg.Alphabet("hebrew")
	if err != nil {
		t.Fatalf("Alphabet(hebrew) failed: %v", err)
	}
	for _, l := range heb.Letters {
		if _, err := c.Compute(string(l.Char), "hebrew", MethodNameExpansion); err != nil {
			t.Errorf("name-expansion(%q) failed: %v", l.Char, err)
		}
	}
}

func TestNameExpansionDepthBound(t *testing.T) {
	c := newTestCodec(t, config.CodecConfig{NameExpansionDepth: 1})

	// At depth bound 1 the 'e' inside "bee" cannot expand its own name.
	_, err := c.Compute("b", "english", MethodNameExpansion)
	if !errors.Is(err, apperrors.ErrRecursionLimit) {
		t.Fatalf("expected ErrRecursionLimit, got %v", err)
	}
}

func TestNameExpansionUnnamedLetterScoresBaseValue(t *testing.T) {
	c := newTestCodec(t, config.CodecConfig{})

	// Latin letters carry no names, so expansion degenerates to sum.
	got, err := c.Compute("lux", "latin", MethodNameExpansion)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	want, err := c.Compute("lux", "latin", MethodSum)
	if err != nil {
		t.Fatalf("Compute(sum) failed: %v", err)
	}
	if got != want {
		t.Errorf("name-expansion over unnamed letters = %d, want sum %d", got, want)
	}
}
