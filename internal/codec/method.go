package codec

import (
	"fmt"

	apperrors "github.com/isopsephy/gematria-crossref/pkg/errors"
)

// MethodID identifies one of the closed set of text-to-integer transforms.
// The set is fixed at compile time; unknown method strings are rejected at
// the parse boundary, never inside the codec.
type MethodID string

const (
	MethodSum            MethodID = "sum"
	MethodOrdinal        MethodID = "ordinal"
	MethodReduced        MethodID = "reduced"
	MethodMirror         MethodID = "mirror"
	MethodCumulative     MethodID = "cumulative"
	MethodProduct        MethodID = "product"
	MethodNameExpansion  MethodID = "name-expansion"
	MethodLengthAdditive MethodID = "length-additive"
)

// AllMethods lists every method in catalog order.
var AllMethods = []MethodID{
	MethodSum,
	MethodOrdinal,
	MethodReduced,
	MethodMirror,
	MethodCumulative,
	MethodProduct,
	MethodNameExpansion,
	MethodLengthAdditive,
}

func (m MethodID) String() string { return string(m) }

// ParseMethod maps an external method name onto a MethodID, failing fast on
// unknown strings.
func ParseMethod(s string) (MethodID, error) {
	m := MethodID(s)
	for _, known := range AllMethods {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownMethod, s)
}
