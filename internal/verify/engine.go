package verify

import (
	"sync"

	"github.com/zombor/invoice-audit/internal/ocr"
)

// DefaultThreshold is the confidence below which a field is flagged for
// manual review. Tunable on the Engine.
const DefaultThreshold = 0.6

// DefaultTolerance is the absolute margin, in currency units, within which
// recomputed and stated amounts are considered equal.
const DefaultTolerance = 1.0

// Engine runs the verification checks over one extracted invoice. It holds
// no per-invoice state; the same engine can verify any number of invoices,
// concurrently if desired.
type Engine struct {
	Threshold float64
	Tolerance float64
}

// NewEngine creates an Engine with the default threshold and tolerance
func NewEngine() *Engine {
	return &Engine{
		Threshold: DefaultThreshold,
		Tolerance: DefaultTolerance,
	}
}

// Candidate is the engine's read-only view of an unverified invoice record
type Candidate struct {
	HeaderFields map[string]string
	Items        []Item
	Discount     float64
	GST          float64
	FinalTotal   float64
}

// SealCheck is the seal/signature presence result in the same shape as a
// field verification
type SealCheck struct {
	Value      bool    `json:"value"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// NewSealCheck wraps a detector's presence flag for the report
func NewSealCheck(present bool) SealCheck {
	return SealCheck{Value: present, Confidence: 1.0, Verified: present}
}

// Verify runs all checks over one invoice and assembles the report. Field
// scoring and line-item arithmetic have no data dependency on each other and
// run concurrently; assembly waits for both, so a report is always complete
// or absent, never partial.
func (e *Engine) Verify(candidate Candidate, fragments []ocr.TextFragment, seal SealCheck) *Report {
	var (
		wg     sync.WaitGroup
		fields map[string]FieldVerification
		checks []LineItemVerification
		totals TotalChecks
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		fields = make(map[string]FieldVerification, len(headerFieldNames))
		for _, name := range headerFieldNames {
			fields[name] = e.ScoreField(candidate.HeaderFields[name], fragments)
		}
	}()
	go func() {
		defer wg.Done()
		checks = make([]LineItemVerification, 0, len(candidate.Items))
		for _, item := range candidate.Items {
			checks = append(checks, e.ValidateItem(item))
		}
		totals = e.Reconcile(checks, candidate.Discount, candidate.GST, candidate.FinalTotal)
	}()
	wg.Wait()

	return assemble(fields, checks, totals, seal)
}
