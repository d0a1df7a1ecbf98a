package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lotlister/internal"
)

func TestExtractInvoiceFields(t *testing.T) {
	text := "INVOICE INV2041\nORDER DATE: 03/03/2025\nShipping £7.00\nNet shipping Â£5.50\n"
	f := ExtractInvoiceFields(text)
	if f.ShippingTotal != 5.5 || f.InvoiceDate != "03/03/2025" || f.VendorNumber != "INV2041" {
		t.Fatalf("fields=%+v", f)
	}

	f = ExtractInvoiceFields("Delivery note")
	if f.ShippingTotal != 0 || f.InvoiceDate != "" || f.VendorNumber != "" {
		t.Fatalf("fields=%+v", f)
	}
}

func TestHTMLInvoiceText(t *testing.T) {
	html := `<html><body><p>INVOICE INV77</p>
<table>
<tr><th>SKU</th><th>Item</th><th>Price</th></tr>
<tr><td>ABC-123</td><td>Garden   hose</td><td>£40.00</td></tr>
</table>
<script>var x = 1;</script>
</body></html>`
	text, err := htmlText(html)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "ABC-123 Garden hose £40.00") {
		t.Fatalf("text=%q", text)
	}
	if strings.Contains(text, "var x") {
		t.Fatalf("script kept: %q", text)
	}
	doc := NewInvoiceDocument(0, "inv.html", text)
	if l := NewInvoiceLinker([]internal.InvoiceDocument{doc}).Link("ABC-123"); l.UnitCost != 40 {
		t.Fatalf("link=%+v", l)
	}
}

func TestExtractInvoicesFromEmailRaw(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "sample_invoice.eml"))
	if err != nil {
		t.Fatal(err)
	}
	invoices, subject, text, names, err := ExtractInvoicesFromEmailRaw(raw)
	if err != nil {
		t.Fatal(err)
	}
	if subject != "Invoice INV2041 for your order" || len(names) != 0 {
		t.Fatalf("subject=%q names=%v", subject, names)
	}
	if len(invoices) != 1 || invoices[0].Filename != "body.txt" {
		t.Fatalf("invoices=%+v", invoices)
	}
	if invoices[0].Fields.ShippingTotal != 5 || invoices[0].Fields.VendorNumber != "INV2041" {
		t.Fatalf("fields=%+v", invoices[0].Fields)
	}
	if !DetectInvoice(subject, text, "", names).IsInvoice {
		t.Fatal("not detected as invoice")
	}
}

func TestDetectInvoiceRejectsNewsletter(t *testing.T) {
	res := DetectInvoice("Spring newsletter", "Read about our new garden range.", "", nil)
	if res.IsInvoice || res.Reason != "rules_negative" {
		t.Fatalf("res=%+v", res)
	}
	res = DetectInvoice("Your receipt", "Total £12.00 incl VAT £2.00", "", []string{"receipt.PDF"})
	if !res.IsInvoice {
		t.Fatalf("res=%+v", res)
	}
}

func TestExtractInvoiceFromInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inv.txt")
	if err := os.WriteFile(path, []byte("INVOICE V9\nShipping £3.25"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := ExtractInvoiceFromInput("text", path)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Filename != "inv.txt" || out[0].Fields.ShippingTotal != 3.25 {
		t.Fatalf("out=%+v", out)
	}

	out, err = ExtractInvoiceFromInput("eml", filepath.Join("testdata", "sample_invoice.eml"))
	if err != nil || len(out) != 1 {
		t.Fatalf("out=%+v err=%v", out, err)
	}

	if _, err := ExtractInvoiceFromInput("docx", path); err == nil {
		t.Fatal("expected unsupported input error")
	}
}

func TestLoadInvoiceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inv.htm")
	if err := os.WriteFile(path, []byte("<table><tr><td>INVOICE Q1</td></tr><tr><td>Shipping</td><td>£2.00</td></tr></table>"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := LoadInvoiceFile(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Index != 3 || doc.Filename != "inv.htm" || doc.ShippingTotal != 2 || doc.VendorNumber != "Q1" {
		t.Fatalf("doc=%+v", doc)
	}
}
