package mercadolibre

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/giftfinder/scraper/internal/domain"
)

// Provider is the live-data product source. It wraps a Fetcher and converts
// its raw listings into canonical products with a basic local score; the
// aggregator re-scores them after merge.
type Provider struct {
	fetcher Fetcher
	log     *logrus.Logger
}

// NewProvider creates the scraping provider over a live-fetch collaborator.
func NewProvider(fetcher Fetcher, log *logrus.Logger) *Provider {
	return &Provider{fetcher: fetcher, log: log}
}

// Name implements domain.Provider.
func (p *Provider) Name() string { return "scraping" }

// Capabilities implements domain.Provider.
func (p *Provider) Capabilities() domain.ProviderCapabilities {
	return domain.ProviderCapabilities{
		SupportsImages:      true,
		SupportsPriceFilter: true,
		SupportsDeepLink:    true, // direct product URLs
	}
}

// Supports implements domain.Provider: no keyword, no fetch.
func (p *Provider) Supports(query domain.ProductQuery) bool {
	return len(query.Keywords) > 0
}

// Search fetches live listings for the query's first keyword, converts them
// to products, scores them, re-applies the price filter, and truncates to
// the query limit. Any fetch failure surfaces as a warning with zero
// products, never as an error.
func (p *Provider) Search(ctx context.Context, query domain.ProductQuery) domain.ProviderResult {
	start := time.Now()

	if len(query.Keywords) == 0 {
		return domain.EmptyResult(p.Name(), time.Since(start), "No keywords provided for scraping")
	}

	keyword := query.Keywords[0]
	tags := append(append([]string{}, query.Keywords...), query.Recipient.Interests...)

	p.log.WithFields(logrus.Fields{
		"keyword": keyword,
		"tags":    tags,
	}).Info("Scraping provider searching")

	listings, err := p.fetcher.Fetch(ctx, keyword, tags)
	if err != nil {
		p.log.WithError(err).Error("Scraping provider fetch failed")
		return domain.EmptyResult(p.Name(), time.Since(start), fmt.Sprintf("Scraping failed: %v", err))
	}

	products := make([]domain.Product, 0, len(listings))
	for _, listing := range listings {
		product := convertListing(listing, query)
		score := basicScore(product, query)
		product.Score = &score
		products = append(products, product)
	}

	// Defensive double-check: the upstream page ignores price filters, so
	// out-of-range items are dropped here as well.
	if query.PriceMin != nil || query.PriceMax != nil {
		filtered := products[:0]
		for _, product := range products {
			if query.PriceMin != nil && product.Price < *query.PriceMin {
				continue
			}
			if query.PriceMax != nil && product.Price > *query.PriceMax {
				continue
			}
			filtered = append(filtered, product)
		}
		products = filtered
	}

	if limit := query.ResultLimit(); len(products) > limit {
		products = products[:limit]
	}

	warnings := []string{}
	if len(products) == 0 {
		warnings = append(warnings, "No products found for this search")
	}

	p.log.WithFields(logrus.Fields{
		"keyword": keyword,
		"results": len(products),
	}).Info("Scraping provider returned")

	return domain.ProviderResult{
		Products: products,
		Meta: domain.ProviderMetadata{
			ProviderName: p.Name(),
			FetchedAt:    time.Now(),
			LatencyMs:    time.Since(start).Milliseconds(),
			Warnings:     warnings,
		},
	}
}

// convertListing maps a raw listing onto the canonical product shape.
// Missing fields default: description nil, currency "ARS", score nil until
// assigned. The raw payload is retained for debug responses.
func convertListing(listing Listing, query domain.ProductQuery) domain.Product {
	id := listing.ID
	if id == "" {
		id = uuid.NewString()
	}

	images := []string{}
	if listing.ImageURL != "" {
		images = append(images, listing.ImageURL)
	}

	price := 0.0
	if listing.Price != nil {
		price = *listing.Price
	}

	currency := listing.Currency
	if currency == "" {
		currency = "ARS"
	}

	store := listing.Store
	if store == "" {
		store = "MercadoLibre"
	}

	var rating *domain.ProductRating
	if listing.Rating != nil {
		rating = &domain.ProductRating{Value: listing.Rating}
	}

	tags := listing.Tags
	if tags == nil {
		tags = []string{}
	}

	return domain.Product{
		ID:             id,
		Title:          listing.Title,
		Images:         images,
		Price:          price,
		Currency:       currency,
		Vendor:         domain.VendorInfo{Name: store},
		URL:            listing.ProductURL,
		SourceProvider: "scraping",
		Categories:     []string{},
		Tags:           tags,
		Rating:         rating,
		Raw: map[string]any{
			"title":       listing.Title,
			"price":       listing.Price,
			"image_url":   listing.ImageURL,
			"product_url": listing.ProductURL,
			"store":       store,
		},
	}
}

// basicScore computes the provider-local relevance estimate: base 0.5, up to
// +0.3 for keyword presence in the title, -0.1 per violated price bound,
// +0.1 for having an image; clamped to [0,1].
func basicScore(product domain.Product, query domain.ProductQuery) float64 {
	score := 0.5

	if len(query.Keywords) > 0 && product.Title != "" {
		titleLower := strings.ToLower(product.Title)
		matches := 0
		for _, kw := range query.Keywords {
			if strings.Contains(titleLower, strings.ToLower(kw)) {
				matches++
			}
		}
		frac := float64(matches) / float64(len(query.Keywords))
		if frac > 1 {
			frac = 1
		}
		score += frac * 0.3
	}

	if product.Price > 0 {
		if query.PriceMin != nil && product.Price < *query.PriceMin {
			score -= 0.1
		}
		if query.PriceMax != nil && product.Price > *query.PriceMax {
			score -= 0.1
		}
	}

	if len(product.Images) > 0 {
		score += 0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
