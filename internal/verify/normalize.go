package verify

import (
	"regexp"
	"strconv"
	"strings"
)

var nonNumericRE = regexp.MustCompile(`[^\d.]`)

// Normalize converts a messy string-encoded number (currency symbols, stray
// punctuation, OCR-injected dots) into a float. The second return value is
// false when no number can be recovered; callers treat that as "unknown",
// never as an error.
//
// Every string-to-number conversion in the verification path goes through
// this function so tolerance comparisons behave consistently.
func Normalize(raw string) (float64, bool) {
	val := nonNumericRE.ReplaceAllString(raw, "")

	// OCR often injects spurious dots; treat the first as the real decimal
	// separator and fold the rest into the fraction ("12.34.56" -> "12.3456")
	if parts := strings.Split(val, "."); len(parts) > 2 {
		val = parts[0] + "." + strings.Join(parts[1:], "")
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
