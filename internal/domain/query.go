package domain

const (
	// DefaultLimit is the result count used when a query does not set one.
	DefaultLimit = 10

	// MaxLimit caps how many products a single query may request.
	MaxLimit = 30

	// MaxKeywords caps how many keywords a query carries.
	MaxKeywords = 6
)

// RecipientProfile describes who the gift is for.
type RecipientProfile struct {
	Type         string   `json:"type"`
	Age          *int     `json:"age,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	Interests    []string `json:"interests"`
	Relationship string   `json:"relationship,omitempty"`
}

// LocationFilter restricts results to a geographic area.
type LocationFilter struct {
	Country string `json:"country,omitempty"` // ISO 3166-1 alpha-2
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// ProductQuery is the structured search intent extracted from the user's
// free-text request. Providers and the aggregator treat it as read-only.
type ProductQuery struct {
	Keywords       []string         `json:"keywords"`
	Category       string           `json:"category,omitempty"`
	PriceMin       *float64         `json:"priceMin,omitempty"`
	PriceMax       *float64         `json:"priceMax,omitempty"`
	Currency       string           `json:"currency,omitempty"` // ISO 4217
	Locale         string           `json:"locale,omitempty"`   // e.g. "es-AR"
	Location       *LocationFilter  `json:"location,omitempty"`
	Occasion       string           `json:"occasion,omitempty"`
	Recipient      RecipientProfile `json:"recipientProfile"`
	Limit          int              `json:"limit"`
	IncludeVendors []string         `json:"includeVendors,omitempty"`
	ExcludeVendors []string         `json:"excludeVendors,omitempty"`
	SafeSearch     bool             `json:"safeSearch"`
	Debug          bool             `json:"debug"`
}

// NewProductQuery builds a query with keywords trimmed to MaxKeywords and
// safe search enabled.
func NewProductQuery(keywords []string) ProductQuery {
	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}
	return ProductQuery{
		Keywords:   keywords,
		Recipient:  RecipientProfile{Type: "unknown"},
		Limit:      DefaultLimit,
		SafeSearch: true,
	}
}

// ResultLimit returns the effective result limit, always within [1, MaxLimit].
// A zero or negative limit falls back to DefaultLimit. All truncation in the
// pipeline goes through this method, so an out-of-range Limit field can never
// leak into output sizes.
func (q ProductQuery) ResultLimit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	if q.Limit > MaxLimit {
		return MaxLimit
	}
	return q.Limit
}

// InterpretedIntent is the best-effort structure a query interpreter derives
// from raw user text. Interpreters always return a usable value: on failure
// they fall back to recipientType "unknown" with the original text as the
// single interest.
type InterpretedIntent struct {
	RecipientType string   `json:"recipient"`
	Age           *int     `json:"age"`
	BudgetMin     *float64 `json:"budgetMin"`
	BudgetMax     *float64 `json:"budgetMax"`
	Interests     []string `json:"interests"`
}
