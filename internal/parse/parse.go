package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/zombor/invoice-audit/internal/ocr"
	"github.com/zombor/invoice-audit/internal/verify"
)

// LineItem is one row of the invoice items table. Numeric fields stay
// strings until the verification engine normalizes them.
type LineItem struct {
	SerialNumber string `json:"serial_number"`
	Description  string `json:"description"`
	HSNSAC       string `json:"hsn_sac"`
	Quantity     string `json:"quantity"`
	UnitPrice    string `json:"unit_price"`
	TotalAmount  string `json:"total_amount"`
}

// Record is the candidate invoice record extracted from OCR output. It is an
// unverified best guess; the verification engine decides what can be trusted.
type Record struct {
	InvoiceNumber     string     `json:"invoice_number"`
	InvoiceDate       string     `json:"invoice_date"`
	SupplierGSTNumber string     `json:"supplier_gst_number"`
	BillToGSTNumber   string     `json:"bill_to_gst_number"`
	PONumber          string     `json:"po_number"`
	ShippingAddress   string     `json:"shipping_address"`
	Items             []LineItem `json:"items"`
	Discount          float64    `json:"discount"`
	GST               float64    `json:"gst"`
	FinalTotal        float64    `json:"final_total"`
	Subtotal          float64    `json:"subtotal"`
}

// DefaultNoiseTokens are cell values that indicate OCR leaked a table header
// row or garbage into the items table. The set is configurable so other
// invoice layouts and languages can extend it.
var DefaultNoiseTokens = []string{
	"DESCRIPTION",
	"HSN NO_",
	"QTY",
	"QTY.",
	"RATE",
	"AMOUNT",
}

var (
	invoiceNumberRE = regexp.MustCompile(`(?i)(?:Invoice\s*No|Invoice\s*#|Inv\s*No)\s*[.:\-]?\s*([A-Za-z0-9\-/]+)`)
	invoiceDateRE   = regexp.MustCompile(`(?i)(?:Invoice\s*Date|Date)\s*[.:\-]?\s*(\d{2}[/\-]\d{2}[/\-]\d{4})`)
	gstinRE         = regexp.MustCompile(`(?i)(?:GSTIN|GSTIN\s*No|GST\s*Number)[\s:\-]*([0-9A-Z]{13,17})`)
	poNumberRE      = regexp.MustCompile(`(?i)(?:PO\s*Number|P\.O\. No|Purchase Order)\s*[:\-]?\s*([\w\-/]+)`)
	shipToRE        = regexp.MustCompile(`(?i)(?:Ship\s*To|Shipping Address)\s*[:\-]?\s*(.*?)(?:GSTIN|GST|Phone|PO|Invoice)`)
	phoneRE         = regexp.MustCompile(`(?i)Phone\s*\d{10}`)
	spacesRE        = regexp.MustCompile(`\s+`)

	discountRE   = regexp.MustCompile(`(?i)Discount\s*[:\-]?\s*₹?\s*([\d.]+)`)
	cgstRE       = regexp.MustCompile(`(?i)CGST\s*(?:@[\d%]+)?\s*[:\-]?\s*₹?\s*([\d.]+)`)
	sgstRE       = regexp.MustCompile(`(?i)SGST\s*(?:@[\d%]+)?\s*[:\-]?\s*₹?\s*([\d.]+)`)
	igstRE       = regexp.MustCompile(`(?i)IGST\s*(?:@[\d%]+)?\s*[:\-]?\s*₹?\s*([\d.]+)`)
	finalTotalRE = regexp.MustCompile(`(?i)(?:Total Amount|Grand Total|Payable Amount)\s*[:\-]?\s*₹?\s*([\d.]+)`)

	currencyRE = regexp.MustCompile(`[^\d.]`)
)

// Parser turns OCR text fragments and raw table rows into a candidate
// invoice record
type Parser struct {
	noise map[string]struct{}
}

// NewParser creates a Parser. An empty noiseTokens slice uses
// DefaultNoiseTokens.
func NewParser(noiseTokens []string) *Parser {
	if len(noiseTokens) == 0 {
		noiseTokens = DefaultNoiseTokens
	}
	noise := make(map[string]struct{}, len(noiseTokens))
	for _, t := range noiseTokens {
		noise[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
	}
	return &Parser{noise: noise}
}

// joinFragments concatenates fragment texts into one searchable string
func joinFragments(fragments []ocr.TextFragment) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, " ")
}

// extract returns the first capture group of re in text, or ""
func extract(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// cleanAddress strips phone numbers, stuttered OCR words, and stray
// punctuation from a shipping address
func cleanAddress(addr string) string {
	addr = phoneRE.ReplaceAllString(addr, "")
	addr = dedupeWords(addr)
	addr = spacesRE.ReplaceAllString(addr, " ")
	return strings.Trim(addr, ", ;:- ")
}

// dedupeWords collapses consecutive repeated words, a common OCR stutter in
// address blocks
func dedupeWords(s string) string {
	words := strings.Fields(s)
	out := words[:0]
	var prev string
	for _, w := range words {
		if strings.EqualFold(w, prev) {
			continue
		}
		out = append(out, w)
		prev = w
	}
	return strings.Join(out, " ")
}

// ParseHeader extracts the six named header fields from OCR fragments.
// GST numbers are truncated to the 15-character GSTIN length; the first
// occurrence is assumed to be the supplier, the second the bill-to party.
func (p *Parser) ParseHeader(fragments []ocr.TextFragment) Record {
	text := joinFragments(fragments)
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, ":", " : ")
	text = spacesRE.ReplaceAllString(text, " ")

	var gstins []string
	for _, m := range gstinRE.FindAllStringSubmatch(text, -1) {
		g := m[1]
		if len(g) > 15 {
			g = g[:15]
		}
		gstins = append(gstins, g)
	}

	rec := Record{
		InvoiceNumber:   extract(invoiceNumberRE, text),
		InvoiceDate:     extract(invoiceDateRE, text),
		PONumber:        extract(poNumberRE, text),
		ShippingAddress: cleanAddress(extract(shipToRE, text)),
	}
	if len(gstins) > 0 {
		rec.SupplierGSTNumber = gstins[0]
	}
	if len(gstins) > 1 {
		rec.BillToGSTNumber = gstins[1]
	}
	return rec
}

// ParseFinancials extracts discount, total GST (CGST+SGST+IGST), and the
// stated final total from OCR fragments. Absent values default to 0.
func (p *Parser) ParseFinancials(fragments []ocr.TextFragment) (discount, gst, finalTotal float64) {
	text := strings.ReplaceAll(joinFragments(fragments), ",", "")

	value := func(re *regexp.Regexp) (float64, bool) {
		if m := re.FindStringSubmatch(text); m != nil {
			return verify.Normalize(m[1])
		}
		return 0, false
	}

	discount, _ = value(discountRE)
	for _, re := range []*regexp.Regexp{cgstRE, sgstRE, igstRE} {
		if v, ok := value(re); ok {
			gst += v
		}
	}
	finalTotal, _ = value(finalTotalRE)
	return discount, gst, finalTotal
}

// cleanCurrency keeps only digits and decimal points in a money cell
func cleanCurrency(value string) string {
	return strings.TrimSpace(currencyRE.ReplaceAllString(value, ""))
}

// isValidItem reports whether a table row looks like a real line item: rows
// tagged with fallback col_i keys never qualify, and at least 3 of the known
// fields must be non-empty and not a recognized noise token.
func (p *Parser) isValidItem(row map[string]string) bool {
	for k := range row {
		if strings.HasPrefix(k, "col_") {
			return false
		}
	}
	nonEmpty := 0
	for _, f := range []string{"description", "hsn_sac", "quantity", "unit_price", "total_amount"} {
		v := strings.TrimSpace(row[f])
		if v == "" {
			continue
		}
		if _, noisy := p.noise[strings.ToUpper(v)]; noisy {
			continue
		}
		nonEmpty++
	}
	return nonEmpty >= 3
}

// CleanItems filters raw table rows down to plausible line items: all-empty
// rows and fallback-keyed rows are dropped, serial numbers are reassigned
// sequentially, and money cells are stripped of currency symbols.
func (p *Parser) CleanItems(rows []map[string]string) []LineItem {
	items := make([]LineItem, 0, len(rows))
	for _, row := range rows {
		hasContent := false
		for _, v := range row {
			if strings.TrimSpace(v) != "" {
				hasContent = true
				break
			}
		}
		if !hasContent || !p.isValidItem(row) {
			continue
		}
		items = append(items, LineItem{
			SerialNumber: strconv.Itoa(len(items) + 1),
			Description:  strings.TrimSpace(row["description"]),
			HSNSAC:       strings.TrimSpace(row["hsn_sac"]),
			Quantity:     strings.TrimSpace(row["quantity"]),
			UnitPrice:    cleanCurrency(row["unit_price"]),
			TotalAmount:  cleanCurrency(row["total_amount"]),
		})
	}
	return items
}

// ParseRecord builds the full candidate record from OCR fragments and raw
// table rows. The subtotal is the sum of every item total that parses; the
// verification engine recomputes its own subtotal from verified items only.
func (p *Parser) ParseRecord(fragments []ocr.TextFragment, rows []map[string]string) *Record {
	rec := p.ParseHeader(fragments)
	rec.Items = p.CleanItems(rows)
	rec.Discount, rec.GST, rec.FinalTotal = p.ParseFinancials(fragments)

	subtotal := 0.0
	for _, item := range rec.Items {
		if v, ok := verify.Normalize(item.TotalAmount); ok {
			subtotal += v
		}
	}
	rec.Subtotal = math.Round(subtotal*100) / 100

	return &rec
}
