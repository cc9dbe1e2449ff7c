package alphabet

import (
	"errors"
	"testing"
	"testing/fstest"

	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
)

func TestBuiltinLoadsAllAlphabets(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() failed: %v", err)
	}
	want := []string{"english", "greek", "hebrew", "latin"}
	got := reg.IDs()
	if len(got) != len(want) {
		t.Fatalf("expected %d alphabets, got %v", len(want), got)
	}
	for i, id := range want {
		if got[i] != id {
			t.Errorf("IDs()[%d] = %q, want %q", i, got[i], id)
		}
	}
}

func TestLetterValue(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() failed: %v", err)
	}

	tests := []struct {
		alphabet string
		char     rune
		want     int64
	}{
		{"english", 'a', 1},
		{"english", 'A', 1},
		{"english", 'z', 26},
		{"hebrew", 'א', 1},
		{"hebrew", 'ת', 400},
		{"hebrew", 'כ', 20},
		{"hebrew", 'ך', 500}, // final kaf scores the final-form value
		{"hebrew", 'ם', 600},
		{"hebrew", 'ץ', 900},
		{"greek", 'α', 1},
		{"greek", 'ω', 800},
		{"greek", 'ς', 200}, // final sigma maps onto sigma
		{"latin", 'i', 9},
		{"latin", 'w', 900},
	}
	for _, tt := range tests {
		got, err := reg.LetterValue(tt.alphabet, tt.char)
		if err != nil {
			t.Errorf("LetterValue(%s, %q) failed: %v", tt.alphabet, tt.char, err)
			continue
		}
		if got != tt.want {
			t.Errorf("LetterValue(%s, %q) = %d, want %d", tt.alphabet, tt.char, got, tt.want)
		}
	}
}

func TestLetterValueUnknownCharacter(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() failed: %v", err)
	}
	if _, err := reg.LetterValue("english", 'א'); !errors.Is(err, apperrors.ErrLetterNotFound) {
		t.Errorf("expected ErrLetterNotFound, got %v", err)
	}
	if _, err := reg.LetterValue("klingon", 'a'); !errors.Is(err, apperrors.ErrUnknownAlphabet) {
		t.Errorf("expected ErrUnknownAlphabet, got %v", err)
	}
}

func TestMirrorIsAnInvolution(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() failed: %v", err)
	}
	for _, id := range reg.IDs() {
		a, err := reg.Alphabet(id)
		if err != nil {
			t.Fatalf("Alphabet(%s) failed: %v", id, err)
		}
		for _, l := range a.Letters {
			m := a.Mirror(l)
			back := a.Mirror(m)
			if back.Char != l.Char {
				t.Errorf("%s: Mirror(Mirror(%q)) = %q, want %q", id, l.Char, back.Char, l.Char)
			}
			if l.Ordinal+m.Ordinal != a.Len()+1 {
				t.Errorf("%s: %q (pos %d) mirrors to %q (pos %d), positions should sum to %d",
					id, l.Char, l.Ordinal, m.Char, m.Ordinal, a.Len()+1)
			}
		}
	}
}

func TestMirrorAtbashPairs(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() failed: %v", err)
	}
	heb, err := reg.Alphabet("hebrew")
	if err != nil {
		t.Fatalf("Alphabet(hebrew) failed: %v", err)
	}
	aleph, ok := heb.Letter('א')
	if !ok {
		t.Fatal("hebrew has no aleph")
	}
	if got := heb.Mirror(aleph).Char; got != 'ת' {
		t.Errorf("Mirror(aleph) = %q, want tav", got)
	}
}

func TestLoadFSValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "empty id",
			yaml: "id: \"\"\nletters:\n  - { char: \"a\", value: 1 }\n",
		},
		{
			name: "no letters",
			yaml: "id: test\nletters: []\n",
		},
		{
			name: "non-positive value",
			yaml: "id: test\nletters:\n  - { char: \"a\", value: 0 }\n",
		},
		{
			name: "multi-rune char",
			yaml: "id: test\nletters:\n  - { char: \"ab\", value: 1 }\n",
		},
		{
			name: "conflicting duplicate char",
			yaml: "id: test\nletters:\n  - { char: \"a\", value: 1 }\n  - { char: \"a\", value: 2 }\n",
		},
		{
			name: "name with unregistered character",
			yaml: "id: test\nletters:\n  - { char: \"a\", value: 1, name: \"aq\" }\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				"test.yaml": &fstest.MapFile{Data: []byte(tt.yaml)},
			}
			_, err := loadFS(fsys, ".")
			if !errors.Is(err, apperrors.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadFSAcceptsSameValueDuplicate(t *testing.T) {
	// A variant form mapping to the same value is legal (final sigma).
	fsys := fstest.MapFS{
		"test.yaml": &fstest.MapFile{
			Data: []byte("id: test\nletters:\n  - { char: \"a\", value: 1, alts: [\"b\"] }\n"),
		},
	}
	reg, err := loadFS(fsys, ".")
	if err != nil {
		t.Fatalf("loadFS failed: %v", err)
	}
	v, err := reg.LetterValue("test", 'b')
	if err != nil || v != 1 {
		t.Errorf("alt character value = %d, %v; want 1, nil", v, err)
	}
}

func TestContains(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("Builtin() failed: %v", err)
	}
	eng, _ := reg.Alphabet("english")
	if !eng.Contains("hello, world") {
		t.Error("Contains should recognise english text")
	}
	if eng.Contains("123 !?") {
		t.Error("Contains should reject text with no alphabet characters")
	}
}
