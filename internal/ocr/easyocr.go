package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EasyOCR implements the Engine interface against an EasyOCR HTTP sidecar.
// The sidecar wraps the detector and the table-grid segmenter behind two
// endpoints; this client only moves bytes and decodes responses.
type EasyOCR struct {
	baseURL string
	client  *http.Client
}

// NewEasyOCR creates a new EasyOCR Engine instance
func NewEasyOCR(baseURL string) (*EasyOCR, error) {
	if baseURL == "" {
		baseURL = "http://localhost:8866"
	}

	return &EasyOCR{
		baseURL: baseURL,
		client: &http.Client{
			// Detection on large pages is slow on CPU-only hosts
			Timeout: 120 * time.Second,
		},
	}, nil
}

// easyOCRRequest represents the request body for both sidecar endpoints
type easyOCRRequest struct {
	Image string `json:"image"` // base64-encoded PNG
}

// easyOCRTextResponse represents the response from the sidecar's /ocr endpoint
type easyOCRTextResponse struct {
	Results []TextFragment `json:"results"`
}

// easyOCRTableResponse represents the response from the sidecar's /table endpoint
type easyOCRTableResponse struct {
	Rows [][]string `json:"rows"`
}

// post sends a page image to a sidecar endpoint and decodes the response into out
func (e *EasyOCR) post(path string, pageImage []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	reqBody := easyOCRRequest{
		Image: base64.StdEncoding.EncodeToString(pageImage),
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s%s", e.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling easyocr sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("easyocr sidecar error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// ExtractText recognizes all text regions on a page
func (e *EasyOCR) ExtractText(pageImage []byte) ([]TextFragment, error) {
	var textResp easyOCRTextResponse
	if err := e.post("/ocr", pageImage, &textResp); err != nil {
		return nil, err
	}

	return textResp.Results, nil
}

// ExtractTable segments the line-item table on a page into raw rows
func (e *EasyOCR) ExtractTable(pageImage []byte) ([]map[string]string, error) {
	var tableResp easyOCRTableResponse
	if err := e.post("/table", pageImage, &tableResp); err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(tableResp.Rows))
	for _, row := range tableResp.Rows {
		rows = append(rows, rowFields(row))
	}

	return rows, nil
}

// Close closes the EasyOCR client (no-op for HTTP client)
func (e *EasyOCR) Close() error {
	return nil
}
