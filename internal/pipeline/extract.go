package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"

	"lotlister/internal"
	"lotlister/internal/util"
)

var (
	reNetShipping = regexp.MustCompile(`(?i)Net\s+shipping.*?Â?£\s*(\d+\.?\d*)`)
	reShipping    = regexp.MustCompile(`(?i)shipping.*?Â?£\s*(\d+\.?\d*)`)
	reOrderDate   = regexp.MustCompile(`(?i)ORDER\s+DATE[:\s]+(\d{2}[-/]\d{2}[-/]\d{4})`)
	reVendor      = regexp.MustCompile(`(?i)INVOICE\s+([A-Z0-9]+)`)
)

// ExtractInvoiceFields pulls the shipping total, order date and vendor
// number out of raw invoice text. Missing fields stay zero.
func ExtractInvoiceFields(text string) internal.InvoiceFields {
	var fields internal.InvoiceFields

	m := reNetShipping.FindStringSubmatch(text)
	if m == nil {
		m = reShipping.FindStringSubmatch(text)
	}
	if m != nil {
		fields.ShippingTotal = util.CellFloat(m[1])
	}
	if m := reOrderDate.FindStringSubmatch(text); m != nil {
		fields.InvoiceDate = m[1]
	}
	if m := reVendor.FindStringSubmatch(text); m != nil {
		fields.VendorNumber = m[1]
	}
	return fields
}

// NewInvoiceDocument wraps extracted text with its scalar fields.
func NewInvoiceDocument(index int, filename, text string) internal.InvoiceDocument {
	fields := ExtractInvoiceFields(text)
	return internal.InvoiceDocument{
		Index:         index,
		Filename:      filename,
		Text:          text,
		ShippingTotal: fields.ShippingTotal,
		InvoiceDate:   fields.InvoiceDate,
		VendorNumber:  fields.VendorNumber,
	}
}

// LoadInvoiceFile reads a PDF, HTML or plain-text invoice from disk.
func LoadInvoiceFile(path string, index int) (internal.InvoiceDocument, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.InvoiceDocument{}, err
	}
	text, err := invoiceText(filepath.Base(path), blob)
	if err != nil {
		return internal.InvoiceDocument{}, fmt.Errorf("invoice %s: %w", path, err)
	}
	return NewInvoiceDocument(index, filepath.Base(path), text), nil
}

func invoiceText(filename string, content []byte) (string, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return parsePDF(content)
	case strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm"):
		return htmlText(string(content))
	default:
		return string(content), nil
	}
}

// ExtractedInvoice is one invoice document found inside an e-mail.
type ExtractedInvoice struct {
	Filename string
	Text     string
	Fields   internal.InvoiceFields
}

// ExtractInvoicesFromEmailRaw parses a raw RFC 822 message and returns its
// invoice documents: every PDF attachment, plus the HTML or text body when it
// carries priced lines.
func ExtractInvoicesFromEmailRaw(raw []byte) ([]ExtractedInvoice, string, string, []string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", nil, err
	}

	var out []ExtractedInvoice
	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachmentNames = append(attachmentNames, filename)
		lower := strings.ToLower(filename)
		if !strings.HasSuffix(lower, ".pdf") && !strings.HasSuffix(lower, ".html") && !strings.HasSuffix(lower, ".htm") {
			continue
		}
		text, err := invoiceText(filename, att.Content)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, ExtractedInvoice{Filename: filename, Text: text, Fields: ExtractInvoiceFields(text)})
	}

	body := env.Text
	if env.HTML != "" {
		if text, err := htmlText(env.HTML); err == nil {
			body = text
		}
	}
	if hasPricedLines(body) {
		out = append(out, ExtractedInvoice{Filename: "body.txt", Text: body, Fields: ExtractInvoiceFields(body)})
	}

	return out, env.GetHeader("Subject"), env.Text, attachmentNames, nil
}

func parsePDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// htmlText flattens an HTML invoice into text, one line per table row with
// cells separated by spaces.
func htmlText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script,style").Remove()

	var lines []string
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			if c := util.NormalizeSpaces(cell.Text()); c != "" {
				cells = append(cells, c)
			}
		})
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " "))
		}
	})
	doc.Find("table").Remove()

	rest := splitLines(doc.Text())
	return strings.Join(append(rest, lines...), "\n"), nil
}

func hasPricedLines(text string) bool {
	return reMoney.MatchString(text) && (reShipping.MatchString(text) || reVendor.MatchString(text))
}

var reMoney = regexp.MustCompile(`£\s*\d`)

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = util.NormalizeSpaces(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
