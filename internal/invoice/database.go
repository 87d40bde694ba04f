package invoice

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/invoice-audit/internal/verify"
)

const (
	invoiceBucketName = "invoices"
	reportBucketName  = "reports"
)

// DB defines the interface for database operations
type DB interface {
	// SaveInvoice saves an invoice to the database
	SaveInvoice(inv *Invoice) error

	// GetInvoice retrieves an invoice by ID
	GetInvoice(id string) (*Invoice, error)

	// ListInvoices returns all invoices
	ListInvoices() ([]*Invoice, error)

	// DeleteInvoice removes an invoice from the database
	DeleteInvoice(id string) error

	// SaveReport saves an invoice's verification report
	SaveReport(invoiceID string, report *verify.Report) error

	// GetReport retrieves the verification report for an invoice
	GetReport(invoiceID string) (*verify.Report, error)

	// DeleteReport removes an invoice's verification report
	DeleteReport(invoiceID string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(invoiceBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(reportBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveInvoice saves an invoice to the database
func (b *BoltDB) SaveInvoice(inv *Invoice) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(invoiceBucketName))
		data, err := json.Marshal(inv)
		if err != nil {
			return fmt.Errorf("marshaling invoice: %w", err)
		}
		return bucket.Put([]byte(inv.ID), data)
	})
}

// GetInvoice retrieves an invoice by ID
func (b *BoltDB) GetInvoice(id string) (*Invoice, error) {
	var inv *Invoice
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(invoiceBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("invoice not found: %s", id)
		}
		return json.Unmarshal(data, &inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns all invoices
func (b *BoltDB) ListInvoices() ([]*Invoice, error) {
	invoices := make([]*Invoice, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(invoiceBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var inv Invoice
			if err := json.Unmarshal(v, &inv); err != nil {
				return fmt.Errorf("unmarshaling invoice: %w", err)
			}
			invoices = append(invoices, &inv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// DeleteInvoice removes an invoice from the database
func (b *BoltDB) DeleteInvoice(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(invoiceBucketName))
		return bucket.Delete([]byte(id))
	})
}

// SaveReport saves an invoice's verification report
func (b *BoltDB) SaveReport(invoiceID string, report *verify.Report) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		return bucket.Put([]byte(invoiceID), data)
	})
}

// GetReport retrieves the verification report for an invoice
func (b *BoltDB) GetReport(invoiceID string) (*verify.Report, error) {
	var report *verify.Report
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		data := bucket.Get([]byte(invoiceID))
		if data == nil {
			return fmt.Errorf("report not found: %s", invoiceID)
		}
		return json.Unmarshal(data, &report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// DeleteReport removes an invoice's verification report
func (b *BoltDB) DeleteReport(invoiceID string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucketName))
		return bucket.Delete([]byte(invoiceID))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
