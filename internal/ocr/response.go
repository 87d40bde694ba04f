package ocr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripResponse removes markdown code fences and any prose around the first
// JSON array in a model response.
func stripResponse(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON array found in response")
	}
	endIdx := strings.LastIndex(text, "]")
	if endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON array in response")
	}

	return text[startIdx : endIdx+1], nil
}

// parseFragmentsJSON parses the text-extraction JSON response from a model
func parseFragmentsJSON(text string) ([]TextFragment, error) {
	text, err := stripResponse(text)
	if err != nil {
		return nil, err
	}

	var fragments []TextFragment
	if err := json.Unmarshal([]byte(text), &fragments); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// Drop empty detections; they carry no evidence
	kept := fragments[:0]
	for _, f := range fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		if f.Confidence < 0 {
			f.Confidence = 0
		}
		kept = append(kept, f)
	}

	return kept, nil
}

// parseTableJSON parses the table-extraction JSON response from a model into
// raw cell rows
func parseTableJSON(text string) ([][]string, error) {
	text, err := stripResponse(text)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if err := json.Unmarshal([]byte(text), &rows); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	for i, row := range rows {
		for j, cell := range row {
			rows[i][j] = strings.TrimSpace(cell)
		}
	}

	return rows, nil
}
