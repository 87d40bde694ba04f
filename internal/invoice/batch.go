package invoice

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// BatchResult summarizes one directory run
type BatchResult struct {
	Processed int
	Failed    int
}

// ProcessDirectory runs the pipeline over every PDF in inputDir and writes
// each invoice's extracted record and verification report as JSON into
// outputDir. A failure on one invoice is logged and skipped; it never stops
// the rest of the batch.
func (s *Service) ProcessDirectory(inputDir, outputDir string) (BatchResult, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return BatchResult{}, fmt.Errorf("reading input directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return BatchResult{}, fmt.Errorf("creating output directory: %w", err)
	}

	var result BatchResult
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		path := filepath.Join(inputDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("Failed to read invoice", "file", path, "error", err)
			result.Failed++
			continue
		}

		slog.Info("Processing invoice", "file", entry.Name())
		inv, report, err := s.ProcessInvoice(entry.Name(), data, "application/pdf")
		if err != nil {
			slog.Error("Failed to process invoice", "file", entry.Name(), "error", err)
			result.Failed++
			continue
		}

		if err := writeJSON(filepath.Join(outputDir, inv.ID+"_record.json"), inv.Record); err != nil {
			slog.Warn("Failed to write record", "invoice_id", inv.ID, "error", err)
		}
		if err := writeJSON(filepath.Join(outputDir, inv.ID+"_report.json"), report); err != nil {
			slog.Warn("Failed to write report", "invoice_id", inv.ID, "error", err)
		}
		result.Processed++
	}

	return result, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
