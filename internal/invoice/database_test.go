package invoice

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/invoice-audit/internal/parse"
	"github.com/zombor/invoice-audit/internal/verify"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveInvoice", func() {
		var (
			inv *Invoice
			err error
		)

		BeforeEach(func() {
			inv = &Invoice{
				ID:          "test-id",
				Filename:    "test-id_scan.pdf",
				ContentType: "application/pdf",
				Record: &parse.Record{
					InvoiceNumber: "INV-001",
					FinalTotal:    118.0,
				},
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveInvoice(inv)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the invoice to the database", func() {
				saved, getErr := db.GetInvoice("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("test-id"))
			})
		})
	})

	Describe("GetInvoice", func() {
		var (
			invoiceID string
			inv       *Invoice
			err       error
		)

		JustBeforeEach(func() {
			inv, err = db.GetInvoice(invoiceID)
		})

		When("invoice exists", func() {
			BeforeEach(func() {
				invoiceID = "test-id"
				testInvoice := &Invoice{
					ID:          "test-id",
					Filename:    "test-id_scan.pdf",
					ContentType: "application/pdf",
					Record: &parse.Record{
						InvoiceNumber: "INV-001",
						Items: []parse.LineItem{
							{SerialNumber: "1", UnitPrice: "10", Quantity: "2", TotalAmount: "20"},
						},
					},
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveInvoice(testInvoice)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the correct invoice ID", func() {
				Expect(inv.ID).To(Equal("test-id"))
			})

			It("should return the parsed record", func() {
				Expect(inv.Record.InvoiceNumber).To(Equal("INV-001"))
				Expect(inv.Record.Items).To(HaveLen(1))
			})
		})

		When("invoice does not exist", func() {
			var expectedErr error

			BeforeEach(func() {
				invoiceID = "nonexistent"
				expectedErr = errors.New("invoice not found: nonexistent")
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(expectedErr))
			})
		})
	})

	Describe("ListInvoices", func() {
		var (
			invoices []*Invoice
			err      error
		)

		JustBeforeEach(func() {
			invoices, err = db.ListInvoices()
		})

		When("invoices exist", func() {
			BeforeEach(func() {
				inv1 := &Invoice{
					ID:        "id1",
					Filename:  "id1_a.pdf",
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				inv2 := &Invoice{
					ID:        "id2",
					Filename:  "id2_b.pdf",
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveInvoice(inv1)).NotTo(HaveOccurred())
				Expect(db.SaveInvoice(inv2)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return all invoices", func() {
				Expect(invoices).To(HaveLen(2))
			})
		})

		When("no invoices exist", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an empty list", func() {
				Expect(invoices).To(BeEmpty())
			})
		})
	})

	Describe("DeleteInvoice", func() {
		var (
			invoiceID string
			err       error
		)

		JustBeforeEach(func() {
			err = db.DeleteInvoice(invoiceID)
		})

		When("invoice exists", func() {
			BeforeEach(func() {
				invoiceID = "test-id"
				inv := &Invoice{
					ID:        "test-id",
					Filename:  "test-id_scan.pdf",
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveInvoice(inv)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should remove the invoice from the database", func() {
				_, getErr := db.GetInvoice("test-id")
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("invoice does not exist", func() {
			BeforeEach(func() {
				invoiceID = "nonexistent"
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("SaveReport", func() {
		var (
			report *verify.Report
			err    error
		)

		BeforeEach(func() {
			report = verify.NewEngine().Verify(verify.Candidate{
				HeaderFields: map[string]string{"invoice_number": "INV-001"},
				FinalTotal:   118.0,
			}, nil, verify.NewSealCheck(true))
		})

		JustBeforeEach(func() {
			err = db.SaveReport("test-id", report)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should round-trip the report", func() {
				saved, getErr := db.GetReport("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.SealAndSign.Value).To(BeTrue())
				Expect(saved.Fields).To(HaveKey("invoice_number"))
				Expect(saved.ReviewList).To(Equal(report.ReviewList))
			})
		})
	})

	Describe("GetReport", func() {
		When("report does not exist", func() {
			It("returns the error", func() {
				_, err := db.GetReport("nonexistent")
				Expect(err).To(MatchError(errors.New("report not found: nonexistent")))
			})
		})
	})

	Describe("DeleteReport", func() {
		BeforeEach(func() {
			report := verify.NewEngine().Verify(verify.Candidate{}, nil, verify.NewSealCheck(false))
			Expect(db.SaveReport("test-id", report)).NotTo(HaveOccurred())
		})

		It("should remove the report from the database", func() {
			Expect(db.DeleteReport("test-id")).To(Succeed())
			_, err := db.GetReport("test-id")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Close", func() {
		It("should not return an error", func() {
			err := db.Close()
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
