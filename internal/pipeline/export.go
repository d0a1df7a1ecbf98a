package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"lotlister/internal"
	"lotlister/internal/config"
	"lotlister/internal/util"
)

// Listing sheet column positions (0-based). The manifest block is shifted
// right by the Order Date and Vendor columns.
const (
	manifestOffset = 2

	colQuantity     = internal.ColQuantity + manifestOffset
	colWeight       = internal.ColWeight + manifestOffset
	colWeightMetric = internal.ColCurrency + manifestOffset
	colRRP          = internal.ColRRP + manifestOffset

	colCost        = 26
	colShipping    = 27
	colVAT         = 28
	colTotalCost   = 29
	colCostPerUnit = 30
	colPostage     = 31
	colPrice       = 45
	colPrice3D     = 66
	colBestOffer   = 69
)

const postageSheet = "Postage Rate Table"

var listingHeaderTail = []string{
	"Cost", "Shipping ", "VAT", "Total Cost", "Cost Per one", "Postage", "Postage code",
	"SKU", "Location", "SKU Location ", "Shorten Name", "", "", "",
	// draft block; the first header is the site header from the profile
	"", "Custom label (SKU)", "Category ID", "Title", "UPC", "Price", "Quantity",
	"Item photo URL", "Condition ID", "Description", "Format", "", "",
	// 3Dsellers block
	"SKU", "Title", "Description", "Tags", "MetaKeywords", "MetaDescription", "MobileDescription",
	"CategoryID", "StoreCategory", "PrivateListing", "UpToQuantity", "WarehouseQuantity",
	"InventoryControl", "Price", "WholesalePrice", "BestOffer", "BestOfferAccept", "BestOfferDecline",
	"C:MPN", "C:Brand", "C:Size", "Condition", "CountryCode", "Location", "PostalCode",
	"PolicyPayment", "PolicyShipping", "PolicyReturn", "PackageType", "MeasurementSystem",
	"PackageLength", "PackageWidth", "PackageDepth", "WeightMajor", "WeightMinor",
	"Image 1", "Image 2", "Image 3", "Image 4", "Image 5", "Image 6",
	"ASIN", "ConditionNote", "OriginalRetailPrice", "Model", "EAN", "3DsellersCSVTemplateVersion",
	"", "", "SKU", "CONDITION", "EBAY Title", "BRAND",
}

// siteHeaderOffset is the index of the site header within listingHeaderTail.
const siteHeaderOffset = 14

var uploadPreamble = []string{
	"#INFO,Version=0.0.2,Template= eBay-draft-listings-template_GB,,,,,,,",
	"#INFO Action and Category ID are required fields. 1) Set Action to Draft 2) Please find the category ID for your listings here: https://pages.ebay.com/sellerinformation/news/categorychanges.html,,,,,,,,,,",
	"#INFO After you've successfully uploaded your draft from the Seller Hub Reports tab, complete your drafts to active listings here: https://www.ebay.co.uk/sh/lst/drafts,,,,,,,,,",
	"#INFO,,,,,,,,,,",
}

var uploadBaseHeader = []string{
	"Custom label (SKU)", "Category ID", "Title", "UPC", "Price", "Quantity",
	"Item photo URL", "Condition ID", "Description", "Format",
}

// ListingHeader returns the listing sheet header for a manifest header.
func ListingHeader(manifestHeader []string, profile config.Profile) []string {
	header := make([]string, 0, manifestOffset+internal.ManifestWidth+len(listingHeaderTail))
	header = append(header, "Order Date", "Vendor")
	header = append(header, padCells(manifestHeader, internal.ManifestWidth)...)
	tail := append([]string(nil), listingHeaderTail...)
	tail[siteHeaderOffset] = profile.SiteHeader
	return append(header, tail...)
}

// listingValues lays out one AllocatedRow as listing sheet cells. Cells that
// also carry a formula hold the value the formula evaluates to.
func listingValues(a internal.AllocatedRow, datePrefix string, p config.Profile) []any {
	row := make([]any, 0, manifestOffset+internal.ManifestWidth+len(listingHeaderTail))
	row = append(row, a.Link.InvoiceDate, a.Link.VendorNumber)
	for i, cell := range a.Cells {
		switch i {
		case internal.ColQuantity:
			row = append(row, a.Quantity)
		case internal.ColWeight:
			row = append(row, a.Weight)
		case internal.ColCurrency:
			row = append(row, a.WeightMetric())
		case internal.ColRRP:
			row = append(row, a.RRP)
		default:
			row = append(row, cell)
		}
	}

	img := func(i int) string { return a.Cells[internal.ColImageFirst+i] }
	return append(row,
		a.Cost, a.Shipping, a.VAT, a.TotalCost, a.CostPerUnit,
		a.Postage.Postage, a.Postage.Code, a.ListingSKU, "", a.SKULocation, a.ShortTitle,
		"RRP £", a.RoundedRRP, fmt.Sprintf("RRP £%d", a.RoundedRRP),
		p.Action, a.SKULocation, a.Category.CategoryID, a.ListingTitle, a.SKU, a.SalePrice,
		a.Quantity, a.ImageURLs, a.Condition, a.Description, p.Format, "", "",
		a.SKULocation, a.ListingTitle, a.Description, datePrefix, a.Tags, a.MetaDesc, a.MetaDesc,
		p.StoreCategory, 1, "", a.Quantity, a.Quantity, "", a.SalePrice, a.CostPerUnit, "true",
		a.BestOffer, "", "N/A", a.Brand, "", a.Condition,
		p.CountryCode, p.Location, p.PostalCode, p.PolicyPayment, p.PolicyShipping, p.PolicyReturn,
		p.PackageType, p.MeasurementSystem, p.PackageLength, p.PackageWidth, p.PackageDepth,
		int(math.Ceil(a.Weight)), "",
		img(0), img(1), img(2), img(3), img(4), img(5),
		a.AccountingID, "", a.RRP, a.Brand, a.EAN, p.TemplateVersion,
		"", "", a.SKULocation, a.Condition, a.ListingTitle, a.Brand,
	)
}

type formulaCell struct {
	col     int
	formula string
}

func rowFormulas(r int) []formulaCell {
	ref := func(col int) string { return colName(col) + strconv.Itoa(r) }
	price := fmt.Sprintf("ROUND((%s*0.85)+0.15+%s,2)", ref(colRRP), ref(colPostage))
	return []formulaCell{
		{colWeightMetric, fmt.Sprintf("%s*%s", ref(colWeight), ref(colQuantity))},
		{colVAT, fmt.Sprintf("ROUND((%s+%s)*0.2,2)", ref(colCost), ref(colShipping))},
		{colTotalCost, fmt.Sprintf("ROUND(%s+%s+%s,2)", ref(colCost), ref(colShipping), ref(colVAT))},
		{colCostPerUnit, fmt.Sprintf("ROUND(%s/%s,2)", ref(colTotalCost), ref(colQuantity))},
		{colPrice, price},
		{colPrice3D, price},
		{colBestOffer, fmt.Sprintf("ROUND(%s*0.93,2)", ref(colPrice))},
	}
}

var subtotalColumns = []int{colWeight, colWeightMetric, colRRP, colCost, colShipping, colVAT, colTotalCost}

func subtotalValue(a internal.AllocatedRow, col int) float64 {
	switch col {
	case colWeight:
		return a.Weight
	case colWeightMetric:
		return a.WeightMetric()
	case colRRP:
		return a.RRP
	case colCost:
		return a.Cost
	case colShipping:
		return a.Shipping
	case colVAT:
		return a.VAT
	case colTotalCost:
		return a.TotalCost
	}
	return 0
}

// BuildListingWorkbook renders the listing sheet, named after datePrefix,
// and the postage audit sheet.
func BuildListingWorkbook(rows []internal.AllocatedRow, manifestHeader []string, datePrefix string, tiers []internal.PostageTier, p config.Profile) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), datePrefix); err != nil {
		return nil, err
	}
	sheet := datePrefix

	header := ListingHeader(manifestHeader, p)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, a := range rows {
		r := i + 2
		values := listingValues(a, datePrefix, p)
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(r), &values); err != nil {
			return nil, err
		}
		for _, fc := range rowFormulas(r) {
			if err := f.SetCellFormula(sheet, colName(fc.col)+strconv.Itoa(r), fc.formula); err != nil {
				return nil, err
			}
		}
	}

	if len(rows) > 0 {
		totalsRow := len(rows) + 2
		for _, col := range subtotalColumns {
			sum := 0.0
			for _, a := range rows {
				sum += subtotalValue(a, col)
			}
			cell := colName(col) + strconv.Itoa(totalsRow)
			if err := f.SetCellValue(sheet, cell, sum); err != nil {
				return nil, err
			}
			formula := fmt.Sprintf("SUBTOTAL(9,%s2:%s%d)", colName(col), colName(col), totalsRow-1)
			if err := f.SetCellFormula(sheet, cell, formula); err != nil {
				return nil, err
			}
		}
	}

	if err := writePostageSheet(f, tiers); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PostageAudit is one tier of the carrier cost reconstruction.
type PostageAudit struct {
	Tier  internal.PostageTier
	Basic float64
	Fuel  float64
	VAT   float64
	Diff  float64
}

func AuditPostage(t internal.PostageTier) PostageAudit {
	basic := util.Round2(t.Postage / 0.74)
	fuel := util.Round2(basic * 1.08)
	vat := util.Round2(fuel * 1.2)
	return PostageAudit{Tier: t, Basic: basic, Fuel: fuel, VAT: vat, Diff: util.Round2(vat - t.Postage)}
}

func writePostageSheet(f *excelize.File, tiers []internal.PostageTier) error {
	if len(tiers) == 0 {
		tiers = defaultPostageTiers
	}
	if _, err := f.NewSheet(postageSheet); err != nil {
		return err
	}
	header := []any{"Weight (Max)", "Postage (£)", "Royal Mail Basic", "Fuel", "Vat", "Diff", "Code"}
	if err := f.SetSheetRow(postageSheet, "A1", &header); err != nil {
		return err
	}
	for i, t := range tiers {
		a := AuditPostage(t)
		row := []any{t.MaxWeight, t.Postage, a.Basic, a.Fuel, a.VAT, a.Diff, t.Code}
		if err := f.SetSheetRow(postageSheet, "A"+strconv.Itoa(i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

// UploadSpecificKeys is the sorted union of specifics keys across rows,
// always including Brand and Type.
func UploadSpecificKeys(rows []internal.AllocatedRow) []string {
	set := map[string]struct{}{"Brand": {}, "Type": {}}
	for _, a := range rows {
		for k := range a.Specifics {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildUploadCSV renders the marketplace bulk upload file.
func BuildUploadCSV(rows []internal.AllocatedRow, p config.Profile) []byte {
	keys := UploadSpecificKeys(rows)

	lines := append([]string(nil), uploadPreamble...)
	header := append([]string{p.SiteHeader}, uploadBaseHeader...)
	for _, k := range keys {
		header = append(header, "C:"+k)
	}
	lines = append(lines, strings.Join(header, ","))

	for _, a := range rows {
		specifics := map[string]string{"Brand": a.Brand, "Type": a.Subcategory}
		for k, v := range a.Specifics {
			specifics[k] = v
		}
		fields := []string{
			p.Action,
			escapeCSV(a.ListingSKU),
			escapeCSV(a.Category.CategoryID),
			escapeCSV(a.ListingTitle),
			escapeCSV(strings.ToLower(a.AccountingID)),
			formatNumber(a.SalePrice),
			strconv.Itoa(a.Quantity),
			escapeCSV(a.ImageURLs),
			strconv.Itoa(p.ConditionID),
			escapeCSV(a.Description),
			p.Format,
		}
		for _, k := range keys {
			fields = append(fields, escapeCSV(specifics[k]))
		}
		lines = append(lines, strings.Join(fields, ","))
	}
	return []byte(strings.Join(lines, "\n"))
}

// escapeCSV quotes a field containing a comma, quote or newline and doubles
// embedded quotes. Other fields pass through untouched.
func escapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

// ListingFilename and UploadFilename name the two artifacts of a run.
func ListingFilename(datePrefix string) string {
	return "LISTING_" + datePrefix + ".xlsx"
}

func UploadFilename(datePrefix string) string {
	return "ebay_upload_" + datePrefix + ".csv"
}
