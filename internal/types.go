package internal

// Fixed manifest column positions (0-based).
const (
	ColSKU         = 2
	ColTitle       = 3
	ColDescription = 4
	ColASIN        = 5
	ColEAN         = 6
	ColBrand       = 8
	ColSubcategory = 10
	ColImageFirst  = 11
	ColImageLast   = 16
	ColQuantity    = 17
	ColCondition   = 18
	ColWeight      = 20
	ColCurrency    = 21
	ColRRP         = 22

	// ManifestWidth is the number of manifest columns carried into the listing sheet.
	ManifestWidth = 24
)

const (
	DefaultCategoryID   = "47155"
	DefaultCategoryPath = "Default"
)

type ManifestRow struct {
	Index        int
	Cells        []string
	SKU          string
	Title        string
	Description  string
	AccountingID string
	EAN          string
	Brand        string
	Subcategory  string
	Condition    string
	Images       []string
	Quantity     int
	Weight       float64
	RRP          float64
}

// WeightMetric is declared weight × quantity, the shipping allocation weight.
func (r ManifestRow) WeightMetric() float64 {
	return r.Weight * float64(r.Quantity)
}

type InvoiceDocument struct {
	Index         int
	Filename      string
	Text          string
	ShippingTotal float64
	InvoiceDate   string
	VendorNumber  string
}

// InvoiceFields are the scalar fields pulled out of raw invoice text.
type InvoiceFields struct {
	ShippingTotal float64
	InvoiceDate   string
	VendorNumber  string
}

type InvoiceLink struct {
	SKU                string  `json:"sku"`
	UnitCost           float64 `json:"unitCost"`
	SourceInvoiceIndex int     `json:"sourceInvoiceIndex"`
	SourceFilename     string  `json:"sourceFilename"`
	InvoiceDate        string  `json:"invoiceDate"`
	VendorNumber       string  `json:"vendorNumber"`
	Shipping           float64 `json:"shipping"`
}

func (l InvoiceLink) Found() bool {
	return l.SourceInvoiceIndex >= 0
}

// NotFoundLink is the sentinel link for a SKU absent from every invoice.
func NotFoundLink(sku string) InvoiceLink {
	return InvoiceLink{SKU: sku, SourceInvoiceIndex: -1, SourceFilename: "Not found"}
}

type TaxonomyNode struct {
	Ordinal int
	ID      string
	Path    string
	Tokens  []string
	Depth   int
}

type CategoryMatch struct {
	CategoryID   string `json:"categoryId"`
	CategoryPath string `json:"categoryPath"`
	Score        int    `json:"score"`
}

func DefaultCategory() CategoryMatch {
	return CategoryMatch{CategoryID: DefaultCategoryID, CategoryPath: DefaultCategoryPath}
}

type PostageTier struct {
	MaxWeight float64 `yaml:"max_weight"`
	Postage   float64 `yaml:"postage"`
	Code      int     `yaml:"code"`
}

type AllocatedRow struct {
	ManifestRow

	Link         InvoiceLink
	Cost         float64
	Shipping     float64
	VAT          float64
	TotalCost    float64
	CostPerUnit  float64
	Postage      PostageTier
	ListingSKU   string
	SKULocation  string
	ShortTitle   string
	RoundedRRP   int
	ListingTitle string
	Category     CategoryMatch
	SalePrice    float64
	BestOffer    float64
	Tags         string
	MetaDesc     string
	ImageURLs    string
	Specifics    map[string]string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// InboxInvoice is an invoice document extracted from a stored e-mail.
type InboxInvoice struct {
	ID           int
	EmailID      int
	Filename     string
	Text         string
	Shipping     float64
	InvoiceDate  string
	VendorNumber string
	Status       string
	CreatedAt    string
}
