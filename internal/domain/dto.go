package domain

// PublicProduct is the client-facing product representation. It mirrors
// Product except for the Raw debug payload, which is only present when the
// request asked for debug output.
type PublicProduct struct {
	ID             string               `json:"id"`
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
	Score          *float64             `json:"score,omitempty"`
	Raw            map[string]any       `json:"raw,omitempty"`
}

// ToPublicProduct converts an internal Product into its public DTO, stripping
// the raw provider payload unless debug is set.
func ToPublicProduct(p Product, debug bool) PublicProduct {
	out := PublicProduct{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Images:         p.Images,
		Price:          p.Price,
		Currency:       p.Currency,
		Vendor:         p.Vendor,
		URL:            p.URL,
		SourceProvider: p.SourceProvider,
		Categories:     p.Categories,
		Tags:           p.Tags,
		Availability:   p.Availability,
		Shipping:       p.Shipping,
		Rating:         p.Rating,
		Score:          p.Score,
	}
	if debug {
		out.Raw = p.Raw
	}
	return out
}
