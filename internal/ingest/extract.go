// File path: internal/ingest/extract.go
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".json": true,
	".txt":  true,
	".md":   true,
}

// SupportedFile reports whether the file extension is one the pipeline can
// extract text from.
func SupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

func extractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func extractPDF(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// extractJSONRecords maps a JSON file to indexable records. A top-level array
// yields one record per element, anything else yields a single record. String
// values are used as-is, other values are re-serialized.
func extractJSONRecords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	elements, ok := payload.([]interface{})
	if !ok {
		elements = []interface{}{payload}
	}
	records := make([]string, 0, len(elements))
	for _, element := range elements {
		text, ok := element.(string)
		if !ok {
			encoded, err := json.Marshal(element)
			if err != nil {
				return nil, fmt.Errorf("encode json record: %w", err)
			}
			text = string(encoded)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		records = append(records, text)
	}
	return records, nil
}
