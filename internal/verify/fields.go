package verify

import (
	"strings"

	"github.com/zombor/invoice-audit/internal/ocr"
)

// FieldVerification is the evidence-backed confidence for one header field
type FieldVerification struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// ScoreField scores a header field value against the bag of OCR fragments.
// Any fragment containing the value as a case-insensitive substring counts as
// evidence; the field takes the best matching fragment's confidence, not an
// average, since one strong hit is sufficient. Fragment confidences above 1
// are treated as percentages and divided by 100.
//
// Substring matching can spuriously verify short values that appear inside
// unrelated fragments; that is a known limitation of the heuristic, traded
// for robustness against OCR splitting labels and values apart.
func (e *Engine) ScoreField(value string, fragments []ocr.TextFragment) FieldVerification {
	confidence := 0.0
	if value != "" {
		needle := strings.ToLower(value)
		for _, f := range fragments {
			if !strings.Contains(strings.ToLower(f.Text), needle) {
				continue
			}
			c := f.Confidence
			if c > 1 {
				c /= 100
			}
			if c > confidence {
				confidence = c
			}
		}
	}

	confidence = round2(confidence)
	return FieldVerification{
		Value:      value,
		Confidence: confidence,
		Verified:   confidence >= e.Threshold,
	}
}
