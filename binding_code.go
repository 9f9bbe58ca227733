package imkey

import (
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Binding codes use 8 characters from an alphabet without I, O, 0 and 1.
var bindingCodePattern = regexp.MustCompile(`^[A-HJ-NP-Z2-9]{8}$`)

// NormalizeBindingCode upper-cases code. Nothing else is rewritten, so
// surrounding whitespace or full-width characters still fail validation.
func NormalizeBindingCode(code string) string {
	return cases.Upper(language.Und).String(code)
}

// ValidateBindingCode returns the normalized code or an IllegalArgumentError.
func ValidateBindingCode(code string) (string, error) {
	normalized := NormalizeBindingCode(code)
	if !bindingCodePattern.MatchString(normalized) {
		return "", &IllegalArgumentError{
			Name:   "binding code",
			Reason: "must be 8 characters from A-H, J-N, P-Z and 2-9",
		}
	}

	return normalized, nil
}
