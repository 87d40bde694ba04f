package verify

import "math"

// TotalChecks is the invoice-level arithmetic reconciliation result
type TotalChecks struct {
	Subtotal           float64  `json:"subtotal"`
	Discount           float64  `json:"discount"`
	GSTAmount          float64  `json:"gst_amount"`
	ExpectedFinalTotal float64  `json:"expected_final_total"`
	ParsedFinalTotal   *float64 `json:"parsed_final_total"`
	FormulaVerified    bool     `json:"formula_verified"`
}

// Reconcile recomputes the invoice total from verified line items and checks
// it against the stated final total. Only items that verified with a non-nil,
// non-zero total contribute to the subtotal, so corrupted rows cannot pollute
// the reconciled sum. The formula is subtotal - discount + gst; discount
// subtracts, tax adds. A stated total of zero is treated as absent.
//
// Comparison happens on un-rounded values; reported amounts are rounded to
// two decimals afterwards.
func (e *Engine) Reconcile(checks []LineItemVerification, discount, gst, finalTotal float64) TotalChecks {
	subtotal := 0.0
	for _, c := range checks {
		if c.Verified && c.TotalAmount != nil && *c.TotalAmount != 0 {
			subtotal += *c.TotalAmount
		}
	}

	expected := subtotal - discount + gst

	var parsed *float64
	verified := false
	if finalTotal != 0 {
		v := finalTotal
		parsed = &v
		verified = math.Abs(v-expected) < e.Tolerance
	}

	return TotalChecks{
		Subtotal:           round2(subtotal),
		Discount:           round2(discount),
		GSTAmount:          round2(gst),
		ExpectedFinalTotal: round2(expected),
		ParsedFinalTotal:   parsed,
		FormulaVerified:    verified,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
