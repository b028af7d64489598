// Package symbol turns raw user input into canonical provider symbols.
package symbol

import (
	"fmt"
	"strings"

	"AlphaPulse/internal/model"
)

// DefaultSuffix is appended to digit-only local exchange codes.
const DefaultSuffix = ".TW"

// Normalizer canonicalises symbols for one default market.
type Normalizer struct {
	Suffix string
}

// NewNormalizer returns a Normalizer for suffix, or DefaultSuffix when empty.
func NewNormalizer(suffix string) Normalizer {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return Normalizer{Suffix: strings.ToUpper(suffix)}
}

// Normalize trims and upper-cases raw; digit-only codes get the market suffix.
// Empty input is rejected with model.ErrInvalidSymbol.
func (n Normalizer) Normalize(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("normalize %q: %w", raw, model.ErrInvalidSymbol)
	}
	if isDigits(s) {
		suffix := n.Suffix
		if suffix == "" {
			suffix = DefaultSuffix
		}
		return s + suffix, nil
	}
	return s, nil
}

// Normalize uses the default market suffix.
func Normalize(raw string) (string, error) {
	return Normalizer{Suffix: DefaultSuffix}.Normalize(raw)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
