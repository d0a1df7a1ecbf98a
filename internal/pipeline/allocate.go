package pipeline

import (
	"fmt"
	"math"
	"strings"

	"lotlister/internal"
	"lotlister/internal/config"
	"lotlister/internal/util"
)

const (
	vatRate       = 0.20
	rrpMarkdown   = 0.85
	listingFee    = 0.15
	bestOfferRate = 0.93
)

const (
	GroupBySKU  = "sku"
	GroupByASIN = "asin"
)

// Classifier maps a free-text title to a taxonomy category.
type Classifier interface {
	Match(title string) internal.CategoryMatch
}

// AllocationEngine turns manifest rows and their invoice links into priced
// listing rows.
type AllocationEngine struct {
	DatePrefix string
	GroupBy    string
	Tiers      []internal.PostageTier
	Profile    config.Profile
	Classifier Classifier
	// Progress, when set, is called after every ProgressEvery rows.
	Progress      func(done, total int)
	ProgressEvery int
}

// Allocate returns one AllocatedRow per manifest row, in input order.
func (e *AllocationEngine) Allocate(rows []internal.ManifestRow, linker *InvoiceLinker) []internal.AllocatedRow {
	links := make([]internal.InvoiceLink, len(rows))
	for i, r := range rows {
		links[i] = linker.Link(r.SKU)
	}

	costs := allocateCost(rows, links, e.groupKey)
	shipping := allocateShipping(rows, links)

	budget := e.Profile.TitleBudget
	if budget <= 0 {
		budget = config.DefaultProfile().TitleBudget
	}

	skuByASIN := map[string]string{}
	out := make([]internal.AllocatedRow, len(rows))
	for i, r := range rows {
		a := internal.AllocatedRow{ManifestRow: r, Link: links[i]}
		a.Cost = util.Round2(costs[i])
		a.Shipping = util.Round2(shipping[i])
		a.VAT = util.Round2((a.Cost + a.Shipping) * vatRate)
		a.TotalCost = util.Round2(a.Cost + a.Shipping + a.VAT)
		a.CostPerUnit = util.Round2(a.TotalCost / float64(r.Quantity))

		a.ListingSKU = e.listingSKU(skuByASIN, r.AccountingID, a.CostPerUnit)
		a.Postage = PostageFor(r.Weight, e.Tiers)
		a.SKULocation = fmt.Sprintf("/%s/%d", a.ListingSKU, a.Postage.Code)

		a.ShortTitle = ShortenTitle(r.Title, budget)
		a.RoundedRRP = int(math.Ceil(r.RRP))
		a.ListingTitle = ListingTitle(a.ShortTitle, r.RRP)
		a.Category = internal.DefaultCategory()
		if e.Classifier != nil {
			a.Category = e.Classifier.Match(r.Title)
		}

		a.SalePrice = util.Round2(r.RRP*rrpMarkdown + listingFee + a.Postage.Postage)
		a.BestOffer = util.Round2(a.SalePrice * bestOfferRate)

		a.Tags = GenerateTags(a.ListingTitle)
		a.MetaDesc = MetaDescription(a.Tags, r.Description)
		a.ImageURLs = strings.Join(r.Images, "|")
		a.Specifics = ExtractItemSpecifics(r.Title, r.Description)

		out[i] = a
		if e.Progress != nil && e.ProgressEvery > 0 && (i+1)%e.ProgressEvery == 0 {
			e.Progress(i+1, len(rows))
		}
	}
	return out
}

// listingSKU memoizes the generated SKU per accounting identifier, so rows
// of one lot share the SKU of the first row seen.
func (e *AllocationEngine) listingSKU(memo map[string]string, accountingID string, costPerUnit float64) string {
	sku := fmt.Sprintf("%s/%d/", e.DatePrefix, int(math.Ceil(costPerUnit)))
	key := strings.ToLower(accountingID)
	if key == "" {
		return sku
	}
	if existing, ok := memo[key]; ok {
		return existing
	}
	memo[key] = sku
	return sku
}

func (e *AllocationEngine) groupKey(r internal.ManifestRow) string {
	if e.GroupBy == GroupByASIN {
		return strings.ToLower(r.AccountingID)
	}
	return r.SKU
}

// allocateCost spreads each group's linked invoice cost, taken from the first
// row with a found link, over its rows by RRP share. A group whose RRP sums to zero gets zero everywhere. Rows with
// an empty key stand alone.
func allocateCost(rows []internal.ManifestRow, links []internal.InvoiceLink, key func(internal.ManifestRow) string) []float64 {
	groups := map[string][]int{}
	var order []string
	for i, r := range rows {
		k := key(r)
		if k == "" {
			k = fmt.Sprintf("\x00row-%d", i)
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	out := make([]float64, len(rows))
	for _, k := range order {
		idx := groups[k]
		cost := 0.0
		for _, i := range idx {
			if links[i].Found() {
				cost = links[i].UnitCost
				break
			}
		}
		if len(idx) == 1 {
			out[idx[0]] = cost
			continue
		}
		sumRRP := 0.0
		for _, i := range idx {
			sumRRP += rows[i].RRP
		}
		for _, i := range idx {
			if sumRRP > 0 {
				out[i] = rows[i].RRP / sumRRP * cost
			}
		}
	}
	return out
}

// allocateShipping spreads each invoice's shipping over the rows linked to
// it by weight metric share. Unlinked rows form one group with no shipping.
func allocateShipping(rows []internal.ManifestRow, links []internal.InvoiceLink) []float64 {
	type group struct {
		rows     []int
		shipping float64
		metric   float64
	}
	groups := map[int]*group{}
	for i, r := range rows {
		inv := links[i].SourceInvoiceIndex
		g, ok := groups[inv]
		if !ok {
			g = &group{}
			if links[i].Found() {
				g.shipping = links[i].Shipping
			}
			groups[inv] = g
		}
		g.rows = append(g.rows, i)
		g.metric += r.WeightMetric()
	}

	out := make([]float64, len(rows))
	for _, g := range groups {
		if g.metric <= 0 {
			continue
		}
		for _, i := range g.rows {
			out[i] = rows[i].WeightMetric() / g.metric * g.shipping
		}
	}
	return out
}
