// Package alphabet holds the static letter tables the codec computes over.
// Alphabets are defined in YAML (embedded defaults or an external data
// directory), validated once at startup, and immutable afterwards, so
// concurrent reads need no locking.
package alphabet

import (
	"strings"
	"unicode"
)

// Letter is a single character of an alphabet with its base numeric value,
// ordinal position, optional full name, and (Hebrew only) the value its
// final-form variant scores.
type Letter struct {
	Char       rune
	Value      int64
	Ordinal    int
	Name       string
	FinalChar  rune
	FinalValue int64
}

// Alphabet is an ordered, immutable sequence of Letters. byRune maps every
// recognised character, including final forms and fold variants, to its
// letter index.
type Alphabet struct {
	ID      string
	Letters []Letter

	byRune map[rune]int
}

// Len returns the number of letters in the alphabet.
func (a *Alphabet) Len() int {
	return len(a.Letters)
}

// Letter resolves a rune to its Letter. Characters absent from the alphabet
// (spaces, punctuation, foreign script) report ok=false and are skipped by
// the codec.
func (a *Alphabet) Letter(r rune) (Letter, bool) {
	idx, ok := a.byRune[unicode.ToLower(r)]
	if !ok {
		return Letter{}, false
	}
	return a.Letters[idx], true
}

// ValueOf returns the base value a rune scores, honouring final-form values
// when the rune is a final variant.
func (a *Alphabet) ValueOf(r rune) (int64, bool) {
	folded := unicode.ToLower(r)
	idx, ok := a.byRune[folded]
	if !ok {
		return 0, false
	}
	l := a.Letters[idx]
	if l.FinalChar != 0 && folded == l.FinalChar && l.FinalValue != 0 {
		return l.FinalValue, true
	}
	return l.Value, true
}

// Mirror returns the letter at the reflected position of l: position p maps
// to position N+1-p, so applying Mirror twice restores the original letter.
func (a *Alphabet) Mirror(l Letter) Letter {
	return a.Letters[len(a.Letters)-l.Ordinal]
}

// Contains reports whether the alphabet recognises at least one rune of s.
func (a *Alphabet) Contains(s string) bool {
	for _, r := range strings.ToLower(s) {
		if _, ok := a.byRune[r]; ok {
			return true
		}
	}
	return false
}
