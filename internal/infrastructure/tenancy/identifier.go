package tenancy

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTenantKey is what the ORM resolver reports when no tenant is active.
// It is never a valid tenant identifier.
const DefaultTenantKey = "default"

const (
	maxPrefixLength = 20
	suffixLength    = 8
	fallbackPrefix  = "tenant"
)

// PostgreSQL truncates identifiers at 63 bytes.
var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]{0,62}$`)

// ValidateIdentifier rejects blank, reserved and malformed tenant identifiers.
func ValidateIdentifier(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: blank", ErrInvalidTenantIdentifier)
	}
	if tenantID == DefaultTenantKey {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidTenantIdentifier, tenantID)
	}
	if !identifierPattern.MatchString(tenantID) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantIdentifier, tenantID)
	}
	return nil
}

// GenerateIdentifier derives a new tenant identifier from a business name:
// a sanitized prefix, an underscore and eight random lowercase alphanumerics.
// "My Shop" yields something like "myshop_3f9a0c1e".
func GenerateIdentifier(businessName string) (string, error) {
	prefix, err := sanitizePrefix(businessName)
	if err != nil {
		return "", err
	}
	id := prefix + "_" + randomSuffix()
	if err := ValidateIdentifier(id); err != nil {
		return "", err
	}
	return id, nil
}

func sanitizePrefix(name string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("normalize business name: %w", err)
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == maxPrefixLength {
				break
			}
		}
	}
	if b.Len() == 0 {
		return fallbackPrefix, nil
	}
	return b.String(), nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
}
