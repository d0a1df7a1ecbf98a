package pipeline

import (
	"strings"

	"lotlister/internal"
	"lotlister/internal/util"
)

// NormalizeManifestRow maps raw manifest cells onto a ManifestRow. Numeric
// cells that do not parse become 0, and quantity falls back to 1.
func NormalizeManifestRow(index int, cells []string) internal.ManifestRow {
	padded := padCells(cells, internal.ManifestWidth)

	qty := util.CellInt(padded[internal.ColQuantity])
	if qty <= 0 {
		qty = 1
	}

	images := make([]string, 0, internal.ColImageLast-internal.ColImageFirst+1)
	for i := internal.ColImageFirst; i <= internal.ColImageLast; i++ {
		img := strings.TrimSpace(padded[i])
		if img == "" || img == "N/A" {
			continue
		}
		images = append(images, img)
	}

	return internal.ManifestRow{
		Index:        index,
		Cells:        padded,
		SKU:          strings.TrimSpace(padded[internal.ColSKU]),
		Title:        padded[internal.ColTitle],
		Description:  padded[internal.ColDescription],
		AccountingID: strings.TrimSpace(padded[internal.ColASIN]),
		EAN:          padded[internal.ColEAN],
		Brand:        padded[internal.ColBrand],
		Subcategory:  padded[internal.ColSubcategory],
		Condition:    padded[internal.ColCondition],
		Images:       images,
		Quantity:     qty,
		Weight:       util.CellFloat(padded[internal.ColWeight]),
		RRP:          util.CellFloat(padded[internal.ColRRP]),
	}
}
