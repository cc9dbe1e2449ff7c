package baseline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/isopsephy/gematria-crossref/internal/alphabet"
	"github.com/isopsephy/gematria-crossref/internal/codec"
	"github.com/isopsephy/gematria-crossref/pkg/config"
	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	reg, err := alphabet.Builtin()
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	c, err := codec.New(reg, config.CodecConfig{})
	if err != nil {
		t.Fatalf("building codec: %v", err)
	}
	v, err := New(c, "v1", nil)
	if err != nil {
		t.Fatalf("building validator: %v", err)
	}
	return v
}

func TestValidateMatch(t *testing.T) {
	v := newTestValidator(t)

	res, err := v.Validate(Record{
		Phrase:   "love",
		Alphabet: "english",
		Method:   "jewish gematria", // space-form alias for sum
		Expected: 54,
	})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !res.Match {
		t.Errorf("expected match, got %+v", res)
	}
	if res.Method != codec.MethodSum {
		t.Errorf("resolved method = %s, want sum", res.Method)
	}
	if res.Computed != 54 {
		t.Errorf("computed = %d, want 54", res.Computed)
	}
}

func TestValidateMismatchIsDataNotError(t *testing.T) {
	v := newTestValidator(t)

	res, err := v.Validate(Record{
		Phrase:   "love",
		Alphabet: "english",
		Method:   "sum",
		Expected: 55,
	})
	if err != nil {
		t.Fatalf("a wrong expectation must not raise an error: %v", err)
	}
	if res.Match {
		t.Error("expected mismatch")
	}
	if res.Expected != 55 || res.Computed != 54 {
		t.Errorf("result = %+v, want expected 55 / computed 54", res)
	}
}

func TestValidateUnknownAlias(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate(Record{Phrase: "love", Alphabet: "english", Method: "square", Expected: 1})
	if !errors.Is(err, apperrors.ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestValidateAllFromCSV(t *testing.T) {
	v := newTestValidator(t)

	// "ef" sums to 11 and its ordinal total is also 11; one deliberate
	// mismatch and one empty cell. The jewish and english gematria columns
	// both resolve to the sum method.
	csv := "word,jewish gematria,english gematria,simple gematria\n" +
		"love,54,54,54\n" +
		"ef,11,11,12\n" +
		"solo,61,61,\n"
	dir := t.TempDir()
	path := filepath.Join(dir, "baseline.csv")
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatalf("writing csv: %v", err)
	}

	table, err := NewAliasTable("v1")
	if err != nil {
		t.Fatalf("NewAliasTable failed: %v", err)
	}
	report, err := v.ValidateAll(context.Background(), CSVSource(path, "english", table))
	if err != nil {
		t.Fatalf("ValidateAll failed: %v", err)
	}

	// 8 populated cells: love x3, ef x3, solo x2. One mismatch (ef simple=12,
	// ordinal total is 11).
	if report.Checked != 8 {
		t.Errorf("checked = %d, want 8", report.Checked)
	}
	if report.Matches != 7 {
		t.Errorf("matches = %d, want 7", report.Matches)
	}
	if len(report.Mismatches) != 1 {
		t.Fatalf("mismatches = %+v, want exactly one", report.Mismatches)
	}
	miss := report.Mismatches[0]
	if miss.Phrase != "ef" || miss.Method != codec.MethodOrdinal || miss.Expected != 12 || miss.Computed != 11 {
		t.Errorf("mismatch = %+v, want ef/ordinal expected 12 computed 11", miss)
	}
	if report.Errors != 0 {
		t.Errorf("errors = %d, want 0", report.Errors)
	}
}

func TestValidateAllContinuesPastBadRecords(t *testing.T) {
	v := newTestValidator(t)

	source := func(ctx context.Context, emit func(Record) error) error {
		if err := emit(Record{Phrase: "love", Alphabet: "english", Method: "sum", Expected: 54}); err != nil {
			return err
		}
		// Unknown alphabet: counted as an error, run continues.
		if err := emit(Record{Phrase: "love", Alphabet: "klingon", Method: "sum", Expected: 54}); err != nil {
			return err
		}
		return emit(Record{Phrase: "ab", Alphabet: "english", Method: "atbash", Expected: 51})
	}

	report, err := v.ValidateAll(context.Background(), source)
	if err != nil {
		t.Fatalf("ValidateAll failed: %v", err)
	}
	if report.Checked != 2 || report.Matches != 2 || report.Errors != 1 {
		t.Errorf("report = %+v, want checked 2, matches 2, errors 1", report)
	}
}

func TestCSVSourceRequiresPhraseColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(path, []byte("jewish gematria\n54\n"), 0644); err != nil {
		t.Fatalf("writing csv: %v", err)
	}
	table, err := NewAliasTable("v1")
	if err != nil {
		t.Fatalf("NewAliasTable failed: %v", err)
	}
	err = CSVSource(path, "english", table)(context.Background(), func(Record) error { return nil })
	if err == nil {
		t.Fatal("expected error for csv without a phrase column")
	}
}
