package pipeline

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"lotlister/internal"
	"lotlister/internal/util"
)

// Workbook is an opened spreadsheet whose sheets are read as raw cell text.
type Workbook struct {
	f *excelize.File
}

func OpenWorkbook(content []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	return &Workbook{f: f}, nil
}

func (w *Workbook) Close() error {
	return w.f.Close()
}

func (w *Workbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// Rows returns every row of sheet with unformatted cell values.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	return w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

// FirstSheetRows returns the rows of the first sheet in the workbook.
func (w *Workbook) FirstSheetRows() ([][]string, error) {
	names := w.SheetNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return w.Rows(names[0])
}

// FindSheet returns the first sheet whose lowercased name contains any of
// the fragments, or "" when none does.
func (w *Workbook) FindSheet(fragments ...string) string {
	for _, name := range w.SheetNames() {
		lower := strings.ToLower(name)
		for _, frag := range fragments {
			if strings.Contains(lower, frag) {
				return name
			}
		}
	}
	return ""
}

// TaxonomySheet picks the category sheet of a taxonomy workbook, falling
// back to the first sheet.
func (w *Workbook) TaxonomySheet() string {
	if name := w.FindSheet("category", "map"); name != "" {
		return name
	}
	if names := w.SheetNames(); len(names) > 0 {
		return names[0]
	}
	return ""
}

// KeyedRows reads sheet as header-keyed records, one per non-blank data row.
func (w *Workbook) KeyedRows(sheet string) ([]map[string]string, error) {
	rows, err := w.Rows(sheet)
	if err != nil {
		return nil, err
	}
	return keyRows(rows), nil
}

func keyRows(rows [][]string) []map[string]string {
	if len(rows) == 0 {
		return nil
	}
	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		rec := make(map[string]string, len(header))
		for i, h := range header {
			h = strings.TrimSpace(h)
			if h == "" || i >= len(row) {
				continue
			}
			rec[h] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// Manifest is the parsed manifest sheet: its header row and one
// ManifestRow per non-blank data row.
type Manifest struct {
	Header []string
	Rows   []internal.ManifestRow
}

func ParseManifest(rows [][]string) (Manifest, error) {
	if len(rows) == 0 {
		return Manifest{}, fmt.Errorf("manifest sheet is empty")
	}
	m := Manifest{Header: padCells(rows[0], internal.ManifestWidth)}
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		m.Rows = append(m.Rows, NormalizeManifestRow(len(m.Rows), row))
	}
	return m, nil
}

var defaultPostageTiers = []internal.PostageTier{
	{MaxWeight: 0, Postage: 1.9662, Code: 2},
	{MaxWeight: 2, Postage: 3.8136, Code: 5},
	{MaxWeight: 5, Postage: 4.156, Code: 10},
	{MaxWeight: 10, Postage: 3.656, Code: 10},
}

func DefaultPostageTiers() []internal.PostageTier {
	out := make([]internal.PostageTier, len(defaultPostageTiers))
	copy(out, defaultPostageTiers)
	return out
}

// ParsePostageTiers reads tier rows laid out as
// [maxWeight, postage, _, _, _, _, code] after one header row. Rows without a
// positive postage are dropped and the result is sorted by weight.
func ParsePostageTiers(rows [][]string) []internal.PostageTier {
	var tiers []internal.PostageTier
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		tier := internal.PostageTier{
			MaxWeight: util.CellFloat(cellAt(row, 0)),
			Postage:   util.CellFloat(cellAt(row, 1)),
			Code:      util.CellInt(cellAt(row, 6)),
		}
		if tier.Postage > 0 {
			tiers = append(tiers, tier)
		}
	}
	sort.SliceStable(tiers, func(a, b int) bool { return tiers[a].MaxWeight < tiers[b].MaxWeight })
	return tiers
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func padCells(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
