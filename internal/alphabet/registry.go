package alphabet

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
)

//go:embed data/*.yaml
var builtinData embed.FS

// definition is the YAML shape of an alphabet data file.
type definition struct {
	ID      string `yaml:"id"`
	Letters []struct {
		Char       string   `yaml:"char"`
		Value      int64    `yaml:"value"`
		Name       string   `yaml:"name"`
		FinalChar  string   `yaml:"finalChar"`
		FinalValue int64    `yaml:"finalValue"`
		Alts       []string `yaml:"alts"`
	} `yaml:"letters"`
}

// Registry holds every loaded alphabet. It is built once at startup and never
// mutated, so lookups are safe for unlocked concurrent use.
type Registry struct {
	alphabets map[string]*Alphabet
	ids       []string
}

// Builtin loads the embedded alphabet data files (hebrew, greek, english,
// latin).
func Builtin() (*Registry, error) {
	return loadFS(builtinData, "data")
}

// LoadDir loads alphabet definitions from *.yaml files in dir, replacing the
// built-in tables entirely.
func LoadDir(dir string) (*Registry, error) {
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, root string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("%w: reading alphabet data: %v", apperrors.ErrConfig, err)
	}
	defs := make([]definition, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrConfig, entry.Name(), err)
		}
		var def definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", apperrors.ErrConfig, entry.Name(), err)
		}
		defs = append(defs, def)
	}
	return build(defs)
}

// build assembles and validates the registry. Validation is fatal: a registry
// with conflicting characters or dangling letter names must never start.
func build(defs []definition) (*Registry, error) {
	r := &Registry{alphabets: make(map[string]*Alphabet, len(defs))}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("%w: alphabet with empty id", apperrors.ErrConfig)
		}
		if _, dup := r.alphabets[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate alphabet %q", apperrors.ErrConfig, def.ID)
		}
		if len(def.Letters) == 0 {
			return nil, fmt.Errorf("%w: alphabet %q has no letters", apperrors.ErrConfig, def.ID)
		}
		a := &Alphabet{
			ID:      def.ID,
			Letters: make([]Letter, 0, len(def.Letters)),
			byRune:  make(map[rune]int, len(def.Letters)*2),
		}
		for i, ld := range def.Letters {
			char, err := singleRune(def.ID, ld.Char)
			if err != nil {
				return nil, err
			}
			letter := Letter{
				Char:    char,
				Value:   ld.Value,
				Ordinal: i + 1,
				Name:    ld.Name,
			}
			if ld.Value <= 0 {
				return nil, fmt.Errorf("%w: alphabet %q letter %q has non-positive value %d", apperrors.ErrConfig, def.ID, ld.Char, ld.Value)
			}
			if ld.FinalChar != "" {
				fc, err := singleRune(def.ID, ld.FinalChar)
				if err != nil {
					return nil, err
				}
				letter.FinalChar = fc
				letter.FinalValue = ld.FinalValue
			}
			idx := len(a.Letters)
			a.Letters = append(a.Letters, letter)
			if err := mapRune(a, def.ID, char, idx); err != nil {
				return nil, err
			}
			if letter.FinalChar != 0 {
				if err := mapRune(a, def.ID, letter.FinalChar, idx); err != nil {
					return nil, err
				}
			}
			for _, alt := range ld.Alts {
				ar, err := singleRune(def.ID, alt)
				if err != nil {
					return nil, err
				}
				if err := mapRune(a, def.ID, ar, idx); err != nil {
					return nil, err
				}
			}
		}
		r.alphabets[def.ID] = a
		r.ids = append(r.ids, def.ID)
	}
	sort.Strings(r.ids)

	// Letter names are themselves strings over the registered alphabets;
	// a name containing a character no alphabet recognises is dead data.
	for _, a := range r.alphabets {
		for _, l := range a.Letters {
			if l.Name == "" {
				continue
			}
			for _, nr := range strings.ToLower(l.Name) {
				if !r.recognises(nr) {
					return nil, fmt.Errorf("%w: alphabet %q letter %q: name %q contains unregistered character %q",
						apperrors.ErrConfig, a.ID, string(l.Char), l.Name, string(nr))
				}
			}
		}
	}
	slog.Default().With("component", "alphabet-registry").Info("registry loaded", "alphabets", r.ids)
	return r, nil
}

func mapRune(a *Alphabet, alphabetID string, r rune, idx int) error {
	folded := unicode.ToLower(r)
	if prev, exists := a.byRune[folded]; exists {
		if a.Letters[prev].Value != a.Letters[idx].Value {
			return fmt.Errorf("%w: alphabet %q maps character %q to conflicting values %d and %d",
				apperrors.ErrConfig, alphabetID, string(r), a.Letters[prev].Value, a.Letters[idx].Value)
		}
		return nil
	}
	a.byRune[folded] = idx
	return nil
}

func singleRune(alphabetID, s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: alphabet %q: %q is not a single character", apperrors.ErrConfig, alphabetID, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.ToLower(r), nil
}

// recognises reports whether any registered alphabet maps the rune.
func (r *Registry) recognises(ru rune) bool {
	if unicode.IsSpace(ru) || ru == '-' || ru == '\'' {
		return true
	}
	for _, a := range r.alphabets {
		if _, ok := a.byRune[unicode.ToLower(ru)]; ok {
			return true
		}
	}
	return false
}

// Alphabet returns the alphabet with the given id.
func (r *Registry) Alphabet(id string) (*Alphabet, error) {
	a, ok := r.alphabets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownAlphabet, id)
	}
	return a, nil
}

// IDs returns the sorted identifiers of all registered alphabets.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// LetterValue returns the base value of a character in the named alphabet.
func (r *Registry) LetterValue(alphabetID string, ch rune) (int64, error) {
	a, err := r.Alphabet(alphabetID)
	if err != nil {
		return 0, err
	}
	v, ok := a.ValueOf(ch)
	if !ok {
		return 0, fmt.Errorf("%w: %q in alphabet %q", apperrors.ErrLetterNotFound, string(ch), alphabetID)
	}
	return v, nil
}
