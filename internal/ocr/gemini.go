package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// textExtractPrompt asks a vision model to behave like a detector-style OCR
// engine: every detected text region with its quadrilateral and confidence.
const textExtractPrompt = `You are performing OCR on a scanned invoice page. Detect every piece of text on the page.

Return ONLY a valid JSON array in this exact format:
[
  {"text": "Invoice No: INV-001", "bbox": [[10, 12], [210, 12], [210, 30], [10, 30]], "confidence": 0.97}
]

Important:
- One entry per visually distinct text region (label, value, table cell, address line)
- bbox is the four corners of the region in pixel coordinates: top-left, top-right, bottom-right, bottom-left
- confidence is your certainty the text was read correctly, between 0 and 1
- Transcribe text exactly as printed, including punctuation and currency symbols
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// tableExtractPrompt asks the model to act as the table-grid segmenter,
// returning raw cell text row by row without interpretation.
const tableExtractPrompt = `You are segmenting the line-item table on a scanned invoice page. Find the main items table and read its cells.

Return ONLY a valid JSON array of rows, each row an array of cell strings in left-to-right order, in this exact format:
[
  ["1", "Widget A", "8471", "2", "150.00", "300.00"],
  ["2", "Widget B", "8473", "1", "99.50", "99.50"]
]

Important:
- Skip the header row of the table
- Include every body row, even rows that look like noise or partial text
- Keep cell text exactly as printed; use "" for empty cells
- If a row has fewer or more than 6 cells, return it with however many cells it has
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// Gemini implements the Engine interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Engine instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// generate sends a page image plus prompt to the model and returns the raw
// text response
func (g *Gemini) generate(pageImage []byte, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	parts := []genai.Part{
		genai.ImageData("png", pageImage),
		genai.Text(prompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return responseText.String(), nil
}

// ExtractText recognizes all text regions on a page
func (g *Gemini) ExtractText(pageImage []byte) ([]TextFragment, error) {
	text, err := g.generate(pageImage, textExtractPrompt)
	if err != nil {
		return nil, err
	}

	fragments, err := parseFragmentsJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing text fragments: %w", err)
	}

	return fragments, nil
}

// ExtractTable segments the line-item table on a page into raw rows
func (g *Gemini) ExtractTable(pageImage []byte) ([]map[string]string, error) {
	text, err := g.generate(pageImage, tableExtractPrompt)
	if err != nil {
		return nil, err
	}

	cells, err := parseTableJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing table rows: %w", err)
	}

	rows := make([]map[string]string, 0, len(cells))
	for _, row := range cells {
		rows = append(rows, rowFields(row))
	}

	return rows, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
