package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/invoice-audit/internal/invoice"
	"github.com/zombor/invoice-audit/internal/ocr"
	"github.com/zombor/invoice-audit/internal/parse"
	"github.com/zombor/invoice-audit/internal/seal"
	"github.com/zombor/invoice-audit/internal/verify"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("invoice-audit")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "invoice-audit.db", "Database file path")
		storagePath = fs.StringLong("storage", "./invoices", "Storage directory path")
		engineType  = fs.StringLong("engine", "gemini", "OCR engine: 'gemini' or 'easyocr'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		easyocrURL  = fs.StringLong("easyocr-url", "http://localhost:8866", "EasyOCR sidecar base URL")
		threshold   = fs.Float64Long("threshold", verify.DefaultThreshold, "Confidence threshold below which fields are flagged for review")
		tolerance   = fs.Float64Long("tolerance", verify.DefaultTolerance, "Absolute tolerance for arithmetic reconciliation, in currency units")
		noiseTokens = fs.StringLong("noise-tokens", "", "Comma-separated table cell values treated as header leakage (default built-in set)")
		inputDir    = fs.StringLong("input", "", "Process all PDFs in this directory and exit instead of serving")
		outputDir   = fs.StringLong("output", "./output", "Directory for batch-mode JSON output")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_AUDIT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := invoice.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize OCR engine based on type
	var engine ocr.Engine
	switch *engineType {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini OCR engine...", "model", *geminiModel)
		engine, err = ocr.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "easyocr":
		slog.Info("Initializing EasyOCR engine...", "url", *easyocrURL)
		engine, err = ocr.NewEasyOCR(*easyocrURL)
		if err != nil {
			slog.Error("Failed to initialize EasyOCR", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid OCR engine type", "type", *engineType, "valid", "gemini or easyocr")
		os.Exit(1)
	}
	defer engine.Close()

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := invoice.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize verification pipeline
	var tokens []string
	if *noiseTokens != "" {
		for _, t := range strings.Split(*noiseTokens, ",") {
			tokens = append(tokens, strings.TrimSpace(t))
		}
	}
	parser := parse.NewParser(tokens)
	verifier := &verify.Engine{
		Threshold: *threshold,
		Tolerance: *tolerance,
	}
	detector := seal.NewBlobDetector()

	service := invoice.NewService(db, store, engine, detector, parser, verifier)

	// Batch mode: process a directory and exit
	if *inputDir != "" {
		result, err := service.ProcessDirectory(*inputDir, *outputDir)
		if err != nil {
			slog.Error("Batch processing failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Batch complete", "processed", result.Processed, "failed", result.Failed)
		if result.Processed == 0 && result.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	// Initialize server
	basicAuth := invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := invoice.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
