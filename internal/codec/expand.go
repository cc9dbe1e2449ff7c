package codec

import (
	"fmt"

	"github.com/isopsephy/gematria-crossref/internal/alphabet"
	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
)

// nameExpansion values each letter by the expansion of its full name: the
// name's own letters are expanded in turn, so the definition is recursive and
// frequently self-referential (aleph's name contains aleph). Each top-level
// call carries a visited set that stops cycles by scoring a revisited letter
// at its base value, and a depth bound as a hard stop against registry data
// that defeats the visited set.
func (c *Codec) nameExpansion(a *alphabet.Alphabet, phrase string) (int64, error) {
	var total int64
	for _, r := range phrase {
		l, ok := a.Letter(r)
		if !ok {
			continue
		}
		visited := make(map[rune]bool, a.Len())
		v, err := c.expandLetter(a, l, 0, visited)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

func (c *Codec) expandLetter(a *alphabet.Alphabet, l alphabet.Letter, depth int, visited map[rune]bool) (int64, error) {
	if l.Name == "" || visited[l.Char] {
		return l.Value, nil
	}
	if depth >= c.nameDepth {
		return 0, fmt.Errorf("%w: letter %q at depth %d", apperrors.ErrRecursionLimit, string(l.Char), depth)
	}
	visited[l.Char] = true

	var total int64
	for _, r := range l.Name {
		nl, ok := a.Letter(r)
		if !ok {
			continue
		}
		v, err := c.expandLetter(a, nl, depth+1, visited)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}
