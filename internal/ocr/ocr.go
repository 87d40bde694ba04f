package ocr

import "strconv"

// TextFragment is a single piece of recognized text with its location on the
// page and the recognizer's confidence. Fragments carry no reading order
// beyond the order the engine emitted them.
type TextFragment struct {
	Text       string        `json:"text"`
	BBox       [4][2]float64 `json:"bbox"`
	Confidence float64       `json:"confidence"`
}

// Engine defines the interface for OCR operations on a single page image.
// Page images are always PNG encoded; see PageImages for conversion.
type Engine interface {
	// ExtractText recognizes all text on the page and returns one fragment
	// per detected region.
	ExtractText(pageImage []byte) ([]TextFragment, error)
	// ExtractTable segments the table grid on the page and returns one
	// string-keyed mapping per row. Rows with at least six cells use the
	// named line-item keys; shorter rows fall back to col_0..col_n keys.
	ExtractTable(pageImage []byte) ([]map[string]string, error)
	// Close closes the engine and releases resources
	Close() error
}

// lineItemColumns is the expected column order of an invoice line-item table.
var lineItemColumns = []string{
	"serial_number",
	"description",
	"hsn_sac",
	"quantity",
	"unit_price",
	"total_amount",
}

// rowFields maps a row of raw table cells onto the named line-item columns.
// Rows that don't produce at least six cells are kept under numbered fallback
// keys so the caller can see them without mistaking them for line items.
func rowFields(cells []string) map[string]string {
	row := make(map[string]string, len(cells))
	if len(cells) >= len(lineItemColumns) {
		for i, name := range lineItemColumns {
			row[name] = cells[i]
		}
		return row
	}
	for i, cell := range cells {
		row["col_"+strconv.Itoa(i)] = cell
	}
	return row
}
