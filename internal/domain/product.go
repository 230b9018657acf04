package domain

// VendorInfo identifies the seller or store behind a product.
type VendorInfo struct {
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// ProductAvailability describes stock status when a provider reports it.
type ProductAvailability struct {
	InStock      *bool `json:"inStock,omitempty"`
	StockCount   *int  `json:"stockCount,omitempty"`
	LeadTimeDays *int  `json:"leadTimeDays,omitempty"`
}

// ShippingInfo describes shipping options when a provider reports them.
type ShippingInfo struct {
	Cost     *float64 `json:"cost,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Methods  []string `json:"methods,omitempty"`
}

// ProductRating is a 0-5 rating with a sample count.
type ProductRating struct {
	Value *float64 `json:"value,omitempty"`
	Count *int     `json:"count,omitempty"`
}

// Product is the standardized product shape shared across all providers.
//
// Lifecycle: created by a provider during Search, scored once more by the
// aggregator (Score overwritten), then treated as immutable until the
// response is sent. Products are never persisted.
type Product struct {
	ID             string               `json:"id"` // unique within its source provider
	Title          string               `json:"title"`
	Description    *string              `json:"description,omitempty"`
	Images         []string             `json:"images"`
	Price          float64              `json:"price"`
	Currency       string               `json:"currency"`
	Vendor         VendorInfo           `json:"vendor"`
	URL            string               `json:"url"`
	SourceProvider string               `json:"sourceProvider"`
	Categories     []string             `json:"categories"`
	Tags           []string             `json:"tags"`
	Availability   *ProductAvailability `json:"availability,omitempty"`
	Shipping       *ShippingInfo        `json:"shipping,omitempty"`
	Rating         *ProductRating       `json:"rating,omitempty"`
	Score          *float64             `json:"score,omitempty"` // 0-1, nil until scored
	Raw            map[string]any       `json:"raw,omitempty"`   // provider debug payload
}

// ScoreOrZero returns the relevance score, treating unscored products as 0.
func (p Product) ScoreOrZero() float64 {
	if p.Score == nil {
		return 0
	}
	return *p.Score
}
