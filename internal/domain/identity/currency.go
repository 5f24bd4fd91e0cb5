package identity

import (
	"strings"

	"github.com/pos/backoffice/internal/domain/shared"
)

// Currency is a row of the global currency reference table.
type Currency struct {
	Code   string
	Name   string
	Symbol string
}

// NormalizeCurrencyCode uppercases a three-letter ISO 4217 code.
func NormalizeCurrencyCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", shared.InvalidInput("Currency code must have 3 letters")
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", shared.InvalidInput("Currency code must have 3 letters")
		}
	}
	return code, nil
}
