package settings

import (
	"regexp"
	"strings"
)

// MeasurementIDOption is the option key (and form field name) of the GA4
// Measurement ID.
const MeasurementIDOption = "ga4_measurement_id"

var measurementIDPattern = regexp.MustCompile(`^G-[A-Z0-9]+$`)

// trimCutset matches the whitespace a form submission may carry, NUL included.
const trimCutset = " \t\n\r\x00\x0B"

// ValidationResult is the outcome of a sanitizer. Value is the normalized
// input when OK, otherwise "".
type ValidationResult struct {
	OK    bool
	Value string
}

func ValidateMeasurementID(input string) ValidationResult {
	v := asciiUpper(strings.Trim(input, trimCutset))
	if !measurementIDPattern.MatchString(v) {
		return ValidationResult{}
	}
	return ValidationResult{OK: true, Value: v}
}

// SanitizeMeasurementID returns the trimmed, uppercased ID, or "" when the
// input is not a GA4 Measurement ID.
func SanitizeMeasurementID(input string) string {
	return ValidateMeasurementID(input).Value
}

// asciiUpper only folds a-z. strings.ToUpper would turn e.g. U+0131 into
// 'I' and let it through the pattern.
func asciiUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
