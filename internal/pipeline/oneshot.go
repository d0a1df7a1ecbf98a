package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// ExtractInvoiceFromInput extracts invoice documents from a single input
// without touching storage. inputType is one of pdf, html, text or eml.
func ExtractInvoiceFromInput(inputType string, path string) ([]ExtractedInvoice, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)

	switch inputType {
	case "pdf":
		text, err := parsePDF(blob)
		if err != nil {
			return nil, err
		}
		return []ExtractedInvoice{{Filename: name, Text: text, Fields: ExtractInvoiceFields(text)}}, nil
	case "html":
		text, err := htmlText(string(blob))
		if err != nil {
			return nil, err
		}
		return []ExtractedInvoice{{Filename: name, Text: text, Fields: ExtractInvoiceFields(text)}}, nil
	case "text":
		text := string(blob)
		return []ExtractedInvoice{{Filename: name, Text: text, Fields: ExtractInvoiceFields(text)}}, nil
	case "eml":
		invoices, _, _, _, err := ExtractInvoicesFromEmailRaw(blob)
		return invoices, err
	default:
		return nil, fmt.Errorf("unsupported input type: %s", inputType)
	}
}
