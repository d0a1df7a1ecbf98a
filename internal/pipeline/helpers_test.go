package pipeline

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"lotlister/internal"
	"lotlister/internal/config"
)

type sheetData struct {
	name string
	rows [][]any
}

func mkXLSX(rows [][]any) []byte {
	return mkWorkbook(sheetData{rows: rows})
}

func mkWorkbook(sheets ...sheetData) []byte {
	f := excelize.NewFile()
	for i, s := range sheets {
		name := s.name
		if i == 0 {
			if name == "" {
				name = f.GetSheetName(0)
			} else {
				_ = f.SetSheetName(f.GetSheetName(0), name)
			}
		} else {
			_, _ = f.NewSheet(name)
		}
		for r, row := range s.rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				_ = f.SetCellValue(name, cell, v)
			}
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func manifestHeader() []any {
	header := make([]any, internal.ManifestWidth)
	for i := range header {
		header[i] = ""
	}
	header[internal.ColSKU] = "SKU"
	header[internal.ColTitle] = "Title"
	header[internal.ColDescription] = "Description"
	header[internal.ColASIN] = "ASIN"
	header[internal.ColEAN] = "EAN"
	header[internal.ColBrand] = "Brand"
	header[internal.ColSubcategory] = "Subcategory"
	header[internal.ColImageFirst] = "Image 1"
	header[internal.ColQuantity] = "Qty"
	header[internal.ColCondition] = "Condition"
	header[internal.ColWeight] = "Weight"
	header[internal.ColCurrency] = "Currency"
	header[internal.ColRRP] = "RRP"
	return header
}

func manifestCells(sku, title, asin string, qty int, weight, rrp float64) []any {
	row := make([]any, internal.ManifestWidth)
	for i := range row {
		row[i] = ""
	}
	row[internal.ColSKU] = sku
	row[internal.ColTitle] = title
	row[internal.ColDescription] = "Brand new item in original packaging"
	row[internal.ColASIN] = asin
	row[internal.ColBrand] = "Acme"
	row[internal.ColSubcategory] = "Garden"
	row[internal.ColImageFirst] = "https://img.example.com/" + sku + ".jpg"
	row[internal.ColQuantity] = qty
	row[internal.ColCondition] = "New"
	row[internal.ColWeight] = weight
	row[internal.ColCurrency] = "GBP"
	row[internal.ColRRP] = rrp
	return row
}

func mkManifest(rows ...[]any) []byte {
	return mkXLSX(append([][]any{manifestHeader()}, rows...))
}

func manifestRow(index int, sku, asin string, qty int, weight, rrp float64) internal.ManifestRow {
	cells := make([]string, internal.ManifestWidth)
	cells[internal.ColSKU] = sku
	cells[internal.ColASIN] = asin
	return internal.ManifestRow{
		Index:        index,
		Cells:        cells,
		SKU:          sku,
		Title:        "Test item " + sku,
		AccountingID: asin,
		Quantity:     qty,
		Weight:       weight,
		RRP:          rrp,
	}
}

func newTestService(t *testing.T, groupBy string) *Service {
	t.Helper()
	cfg := config.Config{
		OutputDir:         t.TempDir(),
		CostGroupKey:      groupBy,
		ProgressLinkEvery: 1,
		ProgressRowEvery:  1,
	}
	return NewService(nil, cfg, config.DefaultProfile(), nil)
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}
