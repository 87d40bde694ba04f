package verify

import "math"

// Item is the validator's view of a line item: the serial number plus the
// three string-encoded numeric fields it checks.
type Item struct {
	SerialNumber string
	UnitPrice    string
	Quantity     string
	TotalAmount  string
}

// LineItemVerification is the arithmetic check result for one line item.
// Numeric fields are nil when normalization failed.
type LineItemVerification struct {
	SerialNumber string   `json:"serial_number"`
	UnitPrice    *float64 `json:"unit_price"`
	Quantity     *float64 `json:"quantity"`
	TotalAmount  *float64 `json:"total_amount"`
	Verified     bool     `json:"verified"`
}

// ValidateItem recomputes unit price times quantity and compares it to the
// stated total. Verified requires all three numerics to parse and the
// difference to fall inside the absolute tolerance; OCR rounding noise is
// sub-unit currency error, not proportional, so the tolerance is not
// relative. Items that fail to parse are still reported, with nil numerics.
func (e *Engine) ValidateItem(item Item) LineItemVerification {
	unit, unitOK := Normalize(item.UnitPrice)
	qty, qtyOK := Normalize(item.Quantity)
	total, totalOK := Normalize(item.TotalAmount)

	verified := unitOK && qtyOK && totalOK && math.Abs(unit*qty-total) < e.Tolerance

	check := LineItemVerification{
		SerialNumber: item.SerialNumber,
		Verified:     verified,
	}
	if unitOK {
		check.UnitPrice = &unit
	}
	if qtyOK {
		check.Quantity = &qty
	}
	if totalOK {
		check.TotalAmount = &total
	}
	return check
}
