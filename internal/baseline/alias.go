// Package baseline validates codec output against externally supplied
// ground-truth datasets. Baselines are read-only inputs: a mismatch is
// reported, never auto-corrected.
package baseline

import (
	"fmt"
	"strings"

	"github.com/isopsephy/gematria-crossref/internal/codec"
	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
)

// aliasTables maps a table version to the external-name → method mapping for
// that version. Baseline sources disagree on column naming ("jewish gematria"
// vs "g_full" for the same transform), so the mapping is explicit and
// versioned rather than guessed per dataset.
var aliasTables = map[string]map[string]codec.MethodID{
	"v1": {
		"sum":              codec.MethodSum,
		"jewish_gematria":  codec.MethodSum,
		"g_full":           codec.MethodSum,
		"full":             codec.MethodSum,
		"english_gematria": codec.MethodSum,
		"g_std":            codec.MethodSum,
		"mispar_hechrachi": codec.MethodSum,

		"ordinal":         codec.MethodOrdinal,
		"simple_gematria": codec.MethodOrdinal,
		"g_ord":           codec.MethodOrdinal,
		"simple":          codec.MethodOrdinal,
		"mispar_siduri":   codec.MethodOrdinal,

		"reduced":      codec.MethodReduced,
		"g_red":        codec.MethodReduced,
		"pythagorean":  codec.MethodReduced,
		"mispar_katan": codec.MethodReduced,

		"mirror": codec.MethodMirror,
		"atbash": codec.MethodMirror,

		"cumulative": codec.MethodCumulative,
		"g_cum":      codec.MethodCumulative,

		"product":       codec.MethodProduct,
		"g_prod":        codec.MethodProduct,
		"mispar_perati": codec.MethodProduct,

		"name-expansion": codec.MethodNameExpansion,
		"milui":          codec.MethodNameExpansion,

		"length-additive": codec.MethodLengthAdditive,
		"musafi":          codec.MethodLengthAdditive,
	},
}

// AliasTable resolves a dataset's method names onto the catalog for one
// specific table version.
type AliasTable struct {
	version string
	aliases map[string]codec.MethodID
}

// NewAliasTable returns the alias table for the given version.
func NewAliasTable(version string) (*AliasTable, error) {
	aliases, ok := aliasTables[version]
	if !ok {
		return nil, fmt.Errorf("%w: unknown baseline alias table version %q", apperrors.ErrConfig, version)
	}
	return &AliasTable{version: version, aliases: aliases}, nil
}

// Version returns the table version identifier.
func (t *AliasTable) Version() string { return t.version }

// Resolve maps an external method name onto a MethodID. Unknown names fail at
// this boundary, before any record reaches the validator.
func (t *AliasTable) Resolve(name string) (codec.MethodID, error) {
	normalized := normalizeAlias(name)
	if m, ok := t.aliases[normalized]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: baseline method name %q (alias table %s)", apperrors.ErrUnknownMethod, name, t.version)
}

// Known reports whether the name resolves without committing to a method.
func (t *AliasTable) Known(name string) bool {
	_, ok := t.aliases[normalizeAlias(name)]
	return ok
}

func normalizeAlias(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
