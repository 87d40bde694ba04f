package invoice

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/zombor/invoice-audit/internal/ocr"
	"github.com/zombor/invoice-audit/internal/parse"
	"github.com/zombor/invoice-audit/internal/seal"
	"github.com/zombor/invoice-audit/internal/verify"
)

// IDGenerator generates unique IDs for invoices
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the full verification pipeline for one invoice at a time:
// rasterize, OCR, parse, detect the seal, verify, persist.
type Service struct {
	db          DB
	storage     Storage
	engine      ocr.Engine
	detector    seal.Detector
	parser      *parse.Parser
	verifier    *verify.Engine
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage, engine ocr.Engine, detector seal.Detector, parser *parse.Parser, verifier *verify.Engine) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		engine:      engine,
		detector:    detector,
		parser:      parser,
		verifier:    verifier,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, engine ocr.Engine, detector seal.Detector, parser *parse.Parser, verifier *verify.Engine, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		engine:      engine,
		detector:    detector,
		parser:      parser,
		verifier:    verifier,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Scanner-generated filenames can be very long
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "invoice"
	}

	return base + ext
}

// candidateFor converts a parsed record into the verification engine's input
func candidateFor(rec *parse.Record) verify.Candidate {
	items := make([]verify.Item, 0, len(rec.Items))
	for _, item := range rec.Items {
		items = append(items, verify.Item{
			SerialNumber: item.SerialNumber,
			UnitPrice:    item.UnitPrice,
			Quantity:     item.Quantity,
			TotalAmount:  item.TotalAmount,
		})
	}

	return verify.Candidate{
		HeaderFields: map[string]string{
			"invoice_number":      rec.InvoiceNumber,
			"invoice_date":        rec.InvoiceDate,
			"supplier_gst_number": rec.SupplierGSTNumber,
			"bill_to_gst_number":  rec.BillToGSTNumber,
			"po_number":           rec.PONumber,
			"shipping_address":    rec.ShippingAddress,
		},
		Items:      items,
		Discount:   rec.Discount,
		GST:        rec.GST,
		FinalTotal: rec.FinalTotal,
	}
}

// ProcessInvoice runs the full pipeline over one uploaded document and
// persists both the extracted record and its verification report. A failure
// here is scoped to this invoice only; callers processing batches log and
// move on.
func (s *Service) ProcessInvoice(filename string, data []byte, contentType string) (*Invoice, *verify.Report, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	// Sanitize filename to clean up scanner-generated long filenames
	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(UploadName(id, cleanFilename), data)
	if err != nil {
		return nil, nil, fmt.Errorf("saving file: %w", err)
	}

	pages, err := ocr.PageImages(data, contentType)
	if err != nil {
		slog.Error("Failed to rasterize invoice",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.storage.Delete(savedPath)
		return nil, nil, fmt.Errorf("rasterizing invoice: %w", err)
	}
	// Line-item tables and seals sit on the final page
	lastPage := pages[len(pages)-1]

	// Seal detection shares nothing with OCR; run it alongside
	var (
		sealResult seal.Result
		sealErr    error
		wg         sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		img, err := ocr.DecodePage(lastPage)
		if err != nil {
			sealErr = fmt.Errorf("decoding final page: %w", err)
			return
		}
		sealResult = s.detector.Detect(img)
	}()

	var fragments []ocr.TextFragment
	var rows []map[string]string
	var ocrErr error
	for i, page := range pages {
		frags, err := s.engine.ExtractText(page)
		if err != nil {
			ocrErr = fmt.Errorf("extracting text from page %d: %w", i+1, err)
			break
		}
		fragments = append(fragments, frags...)
	}
	if ocrErr == nil {
		rows, err = s.engine.ExtractTable(lastPage)
		if err != nil {
			ocrErr = fmt.Errorf("extracting table: %w", err)
		}
	}
	wg.Wait()

	if ocrErr == nil && sealErr != nil {
		ocrErr = sealErr
	}
	if ocrErr != nil {
		slog.Error("Failed to scan invoice", "filename", filename, "error", ocrErr)
		s.storage.Delete(savedPath)
		return nil, nil, ocrErr
	}

	rec := s.parser.ParseRecord(fragments, rows)

	sealCropFile := ""
	if sealResult.Present && sealResult.Crop != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, sealResult.Crop); err != nil {
			slog.Warn("Failed to encode seal crop", "invoice_id", id, "error", err)
		} else if path, err := s.storage.Save(SealCropName(id), buf.Bytes()); err != nil {
			slog.Warn("Failed to save seal crop", "invoice_id", id, "error", err)
		} else {
			sealCropFile = path
		}
	}

	report := s.verifier.Verify(candidateFor(rec), fragments, verify.NewSealCheck(sealResult.Present))

	inv := &Invoice{
		ID:           id,
		Filename:     savedPath,
		ContentType:  contentType,
		Record:       rec,
		SealCropFile: sealCropFile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.SaveInvoice(inv); err != nil {
		s.cleanupFiles(inv)
		return nil, nil, fmt.Errorf("saving invoice to database: %w", err)
	}
	if err := s.db.SaveReport(id, report); err != nil {
		s.db.DeleteInvoice(id)
		s.cleanupFiles(inv)
		return nil, nil, fmt.Errorf("saving report to database: %w", err)
	}

	return inv, report, nil
}

// cleanupFiles removes an invoice's stored files after a failed save
func (s *Service) cleanupFiles(inv *Invoice) {
	s.storage.Delete(inv.Filename)
	if inv.SealCropFile != "" {
		s.storage.Delete(inv.SealCropFile)
	}
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(id string) (*Invoice, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return inv, nil
}

// ListInvoices returns all invoices
func (s *Service) ListInvoices() ([]*Invoice, error) {
	invoices, err := s.db.ListInvoices()
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return invoices, nil
}

// GetReport retrieves the verification report for an invoice
func (s *Service) GetReport(id string) (*verify.Report, error) {
	report, err := s.db.GetReport(id)
	if err != nil {
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return report, nil
}

// DeleteInvoice removes an invoice, its report, and its stored files
func (s *Service) DeleteInvoice(id string) error {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return fmt.Errorf("getting invoice for deletion: %w", err)
	}

	// Remove files first; a leftover file is recoverable, a dangling DB row is not
	if err := s.storage.Delete(inv.Filename); err != nil {
		slog.Warn("Failed to delete file", "filename", inv.Filename, "error", err)
	}
	if inv.SealCropFile != "" {
		if err := s.storage.Delete(inv.SealCropFile); err != nil {
			slog.Warn("Failed to delete seal crop", "filename", inv.SealCropFile, "error", err)
		}
	}

	if err := s.db.DeleteReport(id); err != nil {
		slog.Warn("Failed to delete report", "invoice_id", id, "error", err)
	}
	if err := s.db.DeleteInvoice(id); err != nil {
		return fmt.Errorf("deleting invoice from database: %w", err)
	}
	return nil
}

// GetInvoiceFile retrieves the original uploaded file for an invoice
func (s *Service) GetInvoiceFile(id string) ([]byte, string, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice: %w", err)
	}

	data, err := s.storage.Get(inv.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice file: %w", err)
	}

	return data, inv.ContentType, nil
}

// GetSealCrop retrieves the cropped seal image for an invoice
func (s *Service) GetSealCrop(id string) ([]byte, error) {
	inv, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	if inv.SealCropFile == "" {
		return nil, fmt.Errorf("no seal detected for invoice %s", id)
	}

	data, err := s.storage.Get(inv.SealCropFile)
	if err != nil {
		return nil, fmt.Errorf("getting seal crop: %w", err)
	}

	return data, nil
}
