package verify_test

import (
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-audit/internal/ocr"
	"github.com/zombor/invoice-audit/internal/verify"
)

var _ = Describe("Engine.Verify", func() {
	var (
		engine    *verify.Engine
		candidate verify.Candidate
		fragments []ocr.TextFragment
		seal      verify.SealCheck
		report    *verify.Report
	)

	BeforeEach(func() {
		engine = verify.NewEngine()
		seal = verify.NewSealCheck(true)
		candidate = verify.Candidate{
			HeaderFields: map[string]string{
				"invoice_number":      "INV-001",
				"invoice_date":        "01/04/2024",
				"supplier_gst_number": "27AAPFU0939F1ZV",
				"bill_to_gst_number":  "",
				"po_number":           "PO-77",
				"shipping_address":    "12 Industrial Estate Pune",
			},
			Items: []verify.Item{
				{SerialNumber: "1", UnitPrice: "10", Quantity: "2", TotalAmount: "20"},
				{SerialNumber: "2", UnitPrice: "50", Quantity: "1", TotalAmount: "80"},
			},
			Discount:   0,
			GST:        3.6,
			FinalTotal: 23.6,
		}
		fragments = []ocr.TextFragment{
			{Text: "Invoice No: INV-001", Confidence: 0.95},
			{Text: "Date: 01/04/2024", Confidence: 0.91},
			{Text: "GSTIN: 27AAPFU0939F1ZV", Confidence: 0.88},
			{Text: "PO-77", Confidence: 0.42},
		}
	})

	JustBeforeEach(func() {
		report = engine.Verify(candidate, fragments, seal)
	})

	It("should verify fields with strong evidence", func() {
		Expect(report.Fields["invoice_number"].Verified).To(BeTrue())
		Expect(report.Fields["invoice_date"].Verified).To(BeTrue())
		Expect(report.Fields["supplier_gst_number"].Verified).To(BeTrue())
	})

	It("should flag weak and missing fields for review in canonical order", func() {
		Expect(report.ReviewList).To(Equal([]string{
			"bill_to_gst_number",
			"po_number",
			"shipping_address",
		}))
	})

	It("should check every line item", func() {
		Expect(report.LineItems).To(HaveLen(2))
		Expect(report.LineItems[0].Verified).To(BeTrue())
		Expect(report.LineItems[1].Verified).To(BeFalse())
	})

	It("should reconcile the totals", func() {
		Expect(report.TotalChecks.Subtotal).To(Equal(20.0))
		Expect(report.TotalChecks.ExpectedFinalTotal).To(Equal(23.6))
		Expect(report.TotalChecks.FormulaVerified).To(BeTrue())
	})

	It("should carry the seal check through", func() {
		Expect(report.SealAndSign.Value).To(BeTrue())
		Expect(report.SealAndSign.Confidence).To(Equal(1.0))
		Expect(report.SealAndSign.Verified).To(BeTrue())
	})

	When("run twice on identical inputs", func() {
		It("should produce byte-identical reports", func() {
			again := engine.Verify(candidate, fragments, seal)
			first, err := json.Marshal(report)
			Expect(err).ToNot(HaveOccurred())
			second, err := json.Marshal(again)
			Expect(err).ToNot(HaveOccurred())
			Expect(second).To(Equal(first))
		})
	})
})

var _ = Describe("Report JSON", func() {
	var report *verify.Report

	BeforeEach(func() {
		report = verify.NewEngine().Verify(verify.Candidate{
			HeaderFields: map[string]string{
				"invoice_number":      "INV-001",
				"invoice_date":        "",
				"supplier_gst_number": "",
				"bill_to_gst_number":  "",
				"po_number":           "",
				"shipping_address":    "",
			},
			Items: []verify.Item{
				{SerialNumber: "1", UnitPrice: "10", Quantity: "1", TotalAmount: "10"},
			},
			FinalTotal: 10,
		}, []ocr.TextFragment{
			{Text: "INV-001", Confidence: 0.9},
		}, verify.NewSealCheck(false))
	})

	It("should marshal fields in canonical order", func() {
		data, err := json.Marshal(report)
		Expect(err).ToNot(HaveOccurred())
		text := string(data)
		Expect(text).To(MatchRegexp(`^\{"invoice_number":`))
		Expect(strings.Index(text, `"invoice_date"`)).To(BeNumerically("<", strings.Index(text, `"supplier_gst_number"`)))
		Expect(strings.Index(text, `"total_checks"`)).To(BeNumerically("<", strings.Index(text, `"fields_flagged_for_review"`)))
	})

	It("should round-trip through JSON", func() {
		data, err := json.Marshal(report)
		Expect(err).ToNot(HaveOccurred())

		var restored verify.Report
		Expect(json.Unmarshal(data, &restored)).To(Succeed())

		again, err := json.Marshal(&restored)
		Expect(err).ToNot(HaveOccurred())
		Expect(again).To(Equal(data))
	})

	It("should marshal an empty review list as an empty array", func() {
		report.ReviewList = nil
		data, err := json.Marshal(report)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"fields_flagged_for_review":[]`))
	})
})
