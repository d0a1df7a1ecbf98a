package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	leadingNumber = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)
	moneyPattern  = regexp.MustCompile(`£\s*(\d+\.?\d*)`)
)

// Round2 rounds half away from zero to two decimal places. It works on the
// shortest decimal representation of v, so 1.005 becomes 1.01.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	out, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return out
}

// CellFloat reads a leading number from a spreadsheet cell. Currency
// symbols and thousands separators are ignored; anything unparsable is 0.
func CellFloat(cell string) float64 {
	s := strings.TrimSpace(cell)
	s = strings.TrimLeft(s, "£$€ ")
	s = strings.ReplaceAll(s, ",", "")
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// CellInt reads the integer part of a leading number, like CellFloat.
func CellInt(cell string) int {
	return int(math.Trunc(CellFloat(cell)))
}

// FirstMoney returns the first "£<amount>" in text.
func FirstMoney(text string) (float64, bool) {
	m := moneyPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(m[1], "."))
	if err != nil {
		return 0, false
	}
	v, _ := d.Float64()
	return v, true
}
