package pipeline

import (
	"regexp"
	"strings"

	"lotlister/internal"
	"lotlister/internal/util"
)

// priceWindow is how many characters after a SKU hit are searched for its
// unit price.
const priceWindow = 200

// InvoiceLinker resolves manifest SKUs to the first invoice that lists them
// with a price. Results are memoized per SKU.
type InvoiceLinker struct {
	invoices []internal.InvoiceDocument
	links    map[string]internal.InvoiceLink
	order    []string
}

func NewInvoiceLinker(invoices []internal.InvoiceDocument) *InvoiceLinker {
	return &InvoiceLinker{invoices: invoices, links: map[string]internal.InvoiceLink{}}
}

// Link returns the invoice link for sku, computing it on first use.
func (l *InvoiceLinker) Link(sku string) internal.InvoiceLink {
	if link, ok := l.links[sku]; ok {
		return link
	}
	link := l.resolve(sku)
	l.links[sku] = link
	l.order = append(l.order, sku)
	return link
}

// Links returns every computed link in first-seen order.
func (l *InvoiceLinker) Links() []internal.InvoiceLink {
	out := make([]internal.InvoiceLink, 0, len(l.order))
	for _, sku := range l.order {
		out = append(out, l.links[sku])
	}
	return out
}

func (l *InvoiceLinker) resolve(sku string) internal.InvoiceLink {
	if strings.TrimSpace(sku) == "" {
		return internal.NotFoundLink(sku)
	}
	re, err := skuPattern(sku)
	if err != nil {
		return internal.NotFoundLink(sku)
	}

	for _, inv := range l.invoices {
		loc := re.FindStringIndex(inv.Text)
		if loc == nil {
			continue
		}
		price, ok := util.FirstMoney(runeWindow(inv.Text[loc[0]:], priceWindow))
		if !ok {
			return internal.NotFoundLink(sku)
		}
		return internal.InvoiceLink{
			SKU:                sku,
			UnitCost:           price,
			SourceInvoiceIndex: inv.Index,
			SourceFilename:     inv.Filename,
			InvoiceDate:        inv.InvoiceDate,
			VendorNumber:       inv.VendorNumber,
			Shipping:           inv.ShippingTotal,
		}
	}
	return internal.NotFoundLink(sku)
}

// skuPattern matches sku as a whole word, case-insensitively, with every
// hyphen optional.
func skuPattern(sku string) (*regexp.Regexp, error) {
	quoted := strings.ReplaceAll(regexp.QuoteMeta(sku), "-", "-?")
	return regexp.Compile(`(?i)\b` + quoted + `\b`)
}

func runeWindow(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// ApplyShippingDiscount splits discount equally across invoices and returns
// copies with reduced shipping totals, floored at zero.
func ApplyShippingDiscount(invoices []internal.InvoiceDocument, discount float64) []internal.InvoiceDocument {
	out := make([]internal.InvoiceDocument, len(invoices))
	copy(out, invoices)
	if discount <= 0 || len(out) == 0 {
		return out
	}
	share := discount / float64(len(out))
	for i := range out {
		out[i].ShippingTotal -= share
		if out[i].ShippingTotal < 0 {
			out[i].ShippingTotal = 0
		}
	}
	return out
}

// TotalShipping sums the shipping totals of invoices.
func TotalShipping(invoices []internal.InvoiceDocument) float64 {
	total := 0.0
	for _, inv := range invoices {
		total += inv.ShippingTotal
	}
	return total
}
