package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// headerFieldNames fixes the field order in serialized reports so identical
// inputs always produce byte-identical output
var headerFieldNames = []string{
	"invoice_number",
	"invoice_date",
	"supplier_gst_number",
	"bill_to_gst_number",
	"po_number",
	"shipping_address",
}

const (
	sealKey      = "seal_and_sign_present"
	lineItemsKey = "line_items"
	totalsKey    = "total_checks"
	reviewKey    = "fields_flagged_for_review"
)

// Report is the verification result for one invoice. It serializes to a
// single JSON object with one entry per header field alongside the seal
// check, line-item checks, total reconciliation, and the review list.
type Report struct {
	Fields      map[string]FieldVerification
	SealAndSign SealCheck
	LineItems   []LineItemVerification
	TotalChecks TotalChecks
	ReviewList  []string

	fieldOrder []string
}

// assemble merges the per-component results into one report. It does no
// computation beyond the structural merge and building the review list,
// which holds exactly the unverified field names, in field order, without
// duplicates.
func assemble(fields map[string]FieldVerification, checks []LineItemVerification, totals TotalChecks, seal SealCheck) *Report {
	order := fieldOrderFor(fields)

	review := make([]string, 0, len(order))
	for _, name := range order {
		if !fields[name].Verified {
			review = append(review, name)
		}
	}

	if checks == nil {
		checks = []LineItemVerification{}
	}

	return &Report{
		Fields:      fields,
		SealAndSign: seal,
		LineItems:   checks,
		TotalChecks: totals,
		ReviewList:  review,
		fieldOrder:  order,
	}
}

// fieldOrderFor returns the canonical header order followed by any extra
// field names sorted alphabetically
func fieldOrderFor(fields map[string]FieldVerification) []string {
	order := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, name := range headerFieldNames {
		if _, ok := fields[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range fields {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// MarshalJSON writes the report as one flat JSON object with deterministic
// key order
func (r *Report) MarshalJSON() ([]byte, error) {
	order := r.fieldOrder
	if order == nil {
		order = fieldOrderFor(r.Fields)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	writeEntry := func(key string, value interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, name := range order {
		if err := writeEntry(name, r.Fields[name]); err != nil {
			return nil, err
		}
	}
	if err := writeEntry(sealKey, r.SealAndSign); err != nil {
		return nil, err
	}
	if err := writeEntry(lineItemsKey, r.LineItems); err != nil {
		return nil, err
	}
	if err := writeEntry(totalsKey, r.TotalChecks); err != nil {
		return nil, err
	}
	review := r.ReviewList
	if review == nil {
		review = []string{}
	}
	if err := writeEntry(reviewKey, review); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a report from its flat JSON object form
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if msg, ok := raw[sealKey]; ok {
		if err := json.Unmarshal(msg, &r.SealAndSign); err != nil {
			return fmt.Errorf("unmarshaling seal check: %w", err)
		}
		delete(raw, sealKey)
	}
	if msg, ok := raw[lineItemsKey]; ok {
		if err := json.Unmarshal(msg, &r.LineItems); err != nil {
			return fmt.Errorf("unmarshaling line items: %w", err)
		}
		delete(raw, lineItemsKey)
	}
	if msg, ok := raw[totalsKey]; ok {
		if err := json.Unmarshal(msg, &r.TotalChecks); err != nil {
			return fmt.Errorf("unmarshaling total checks: %w", err)
		}
		delete(raw, totalsKey)
	}
	if msg, ok := raw[reviewKey]; ok {
		if err := json.Unmarshal(msg, &r.ReviewList); err != nil {
			return fmt.Errorf("unmarshaling review list: %w", err)
		}
		delete(raw, reviewKey)
	}

	r.Fields = make(map[string]FieldVerification, len(raw))
	for name, msg := range raw {
		var fv FieldVerification
		if err := json.Unmarshal(msg, &fv); err != nil {
			return fmt.Errorf("unmarshaling field %q: %w", name, err)
		}
		r.Fields[name] = fv
	}
	r.fieldOrder = fieldOrderFor(r.Fields)

	return nil
}
