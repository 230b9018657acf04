// Package reference implements the curated-catalog product provider. It is
// the guaranteed-available baseline: no external dependencies, deterministic
// output, search-style URLs rather than direct product links.
package reference

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/giftfinder/scraper/internal/domain"
)

//go:embed catalog.json
var catalogJSON []byte

// entry is one curated catalog record.
type entry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Keywords    []string  `json:"keywords"`
	Interests   []string  `json:"interests"`
	PriceRange  []float64 `json:"priceRange"` // [min, max]
}

type catalog struct {
	Products []entry `json:"products"`
}

// Provider scores and filters the embedded catalog. A catalog that fails to
// decode degrades to an empty dataset with a warning on every search; it
// never crashes the process.
type Provider struct {
	entries []entry
	log     *logrus.Logger
}

// New creates the reference provider and decodes its catalog once.
func New(log *logrus.Logger) *Provider {
	p := &Provider{log: log}

	var c catalog
	if err := json.Unmarshal(catalogJSON, &c); err != nil {
		log.WithError(err).Error("Failed to load reference catalog")
		return p
	}
	p.entries = c.Products
	log.WithField("products", len(p.entries)).Info("Loaded reference catalog")
	return p
}

// Name implements domain.Provider.
func (p *Provider) Name() string { return "reference" }

// Capabilities implements domain.Provider.
func (p *Provider) Capabilities() domain.ProviderCapabilities {
	return domain.ProviderCapabilities{
		SupportsImages:      true,
		SupportsPriceFilter: true,
		SupportsDeepLink:    false, // search URLs, not direct links
		SupportsCategories:  true,
	}
}

// Supports implements domain.Provider. The reference provider is the
// fallback baseline, so it accepts every query.
func (p *Provider) Supports(query domain.ProductQuery) bool { return true }

// Search filters the catalog by keywords and price overlap, scores matches,
// and returns them sorted descending, truncated to the query limit.
func (p *Provider) Search(ctx context.Context, query domain.ProductQuery) domain.ProviderResult {
	start := time.Now()

	if len(p.entries) == 0 {
		return domain.EmptyResult(p.Name(), time.Since(start), "Reference data not available")
	}

	type scored struct {
		entry entry
		score float64
	}
	var matched []scored
	for _, e := range p.entries {
		if !matchesKeywords(e, query.Keywords) {
			continue
		}
		if !matchesPriceRange(e, query.PriceMin, query.PriceMax) {
			continue
		}
		matched = append(matched, scored{entry: e, score: calculateScore(e, query)})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})

	if limit := query.ResultLimit(); len(matched) > limit {
		matched = matched[:limit]
	}

	products := make([]domain.Product, 0, len(matched))
	for _, m := range matched {
		products = append(products, p.buildProduct(m.entry, query, m.score))
	}

	p.log.WithFields(logrus.Fields{
		"keywords": query.Keywords,
		"results":  len(products),
	}).Info("Reference provider returned")

	return domain.ProviderResult{
		Products: products,
		Meta: domain.ProviderMetadata{
			ProviderName: p.Name(),
			FetchedAt:    time.Now(),
			LatencyMs:    time.Since(start).Milliseconds(),
			Warnings:     []string{},
		},
	}
}

// matchesKeywords reports whether a catalog entry intersects the query
// keywords: exact membership in the entry's keyword/interest lists, or a
// substring hit in title/description. Empty query keywords match everything.
func matchesKeywords(e entry, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}

	titleLower := strings.ToLower(e.Title)
	descLower := strings.ToLower(e.Description)
	for _, kw := range keywords {
		kwLower := strings.ToLower(kw)
		if containsFold(e.Keywords, kwLower) || containsFold(e.Interests, kwLower) {
			return true
		}
		if strings.Contains(titleLower, kwLower) || strings.Contains(descLower, kwLower) {
			return true
		}
	}
	return false
}

// matchesPriceRange reports whether the entry's price range overlaps the
// query's [priceMin, priceMax]; either bound may be open. Entries without a
// price range always match.
func matchesPriceRange(e entry, priceMin, priceMax *float64) bool {
	if len(e.PriceRange) < 2 {
		return true
	}
	entryMin, entryMax := e.PriceRange[0], e.PriceRange[1]

	if priceMin != nil && entryMax < *priceMin {
		return false
	}
	if priceMax != nil && entryMin > *priceMax {
		return false
	}
	return true
}

// calculateScore computes the weighted relevance of an entry: keyword match
// fraction (0.5), interest match fraction (0.3), and price fit (0.2). When a
// filter criterion is absent from the query, its component gets full credit.
func calculateScore(e entry, query domain.ProductQuery) float64 {
	score := 0.0

	if len(query.Keywords) > 0 {
		matches := 0
		for _, kw := range query.Keywords {
			kwLower := strings.ToLower(kw)
			if containsFold(e.Keywords, kwLower) || containsFold(e.Interests, kwLower) {
				matches++
			}
		}
		frac := float64(matches) / float64(len(query.Keywords))
		if frac > 1 {
			frac = 1
		}
		score += frac * 0.5
	} else {
		score += 0.5
	}

	if interests := query.Recipient.Interests; len(interests) > 0 {
		matches := 0
		for _, interest := range interests {
			if containsFold(e.Interests, strings.ToLower(interest)) {
				matches++
			}
		}
		frac := float64(matches) / float64(len(interests))
		if frac > 1 {
			frac = 1
		}
		score += frac * 0.3
	} else {
		score += 0.3
	}

	if query.PriceMin != nil || query.PriceMax != nil {
		if len(e.PriceRange) >= 2 {
			entryMid := (e.PriceRange[0] + e.PriceRange[1]) / 2
			if query.PriceMin != nil && query.PriceMax != nil {
				queryMid := (*query.PriceMin + *query.PriceMax) / 2
				diff := entryMid - queryMid
				if diff < 0 {
					diff = -diff
				}
				maxDiff := queryMid
				if entryMid > maxDiff {
					maxDiff = entryMid
				}
				if maxDiff > 0 {
					normalized := diff / maxDiff
					if normalized > 1 {
						normalized = 1
					}
					score += (1 - normalized) * 0.2
				} else {
					score += 0.2
				}
			} else {
				score += 0.2 // one bound only, cannot compare midpoints
			}
		} else {
			score += 0.2 // entry has no price range, assume it fits
		}
	} else {
		score += 0.2
	}

	if score > 1 {
		score = 1
	}
	return score
}

// buildProduct converts a catalog entry into the canonical product shape.
// The URL is a synthetic search link, never a direct product page, so the
// aggregator dedups it by title|vendor|price.
func (p *Provider) buildProduct(e entry, query domain.ProductQuery, score float64) domain.Product {
	searchTerm := strings.ToLower(strings.ReplaceAll(e.Title, " ", "-"))

	price := 0.0
	if len(e.PriceRange) >= 2 {
		price = (e.PriceRange[0] + e.PriceRange[1]) / 2
	}

	imageKeyword := "product"
	if len(e.Keywords) > 0 {
		imageKeyword = e.Keywords[0]
	}

	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}

	category := e.Category
	if category == "" {
		category = "general"
	}

	var description *string
	if e.Description != "" {
		description = &e.Description
	}

	return domain.Product{
		ID:             id,
		Title:          e.Title,
		Description:    description,
		Images:         []string{fmt.Sprintf("https://http2.mlstatic.com/D_NQ_NP_2X_%s_placeholder.jpg", imageKeyword)},
		Price:          price,
		Currency:       "ARS",
		Vendor:         domain.VendorInfo{Name: "Sugerencia"},
		URL:            "https://listado.mercadolibre.com.ar/" + searchTerm,
		SourceProvider: p.Name(),
		Categories:     []string{category},
		Tags:           append(append([]string{}, query.Keywords...), query.Recipient.Interests...),
		Score:          &score,
	}
}

// containsFold reports whether list contains target (target already lowercased).
func containsFold(list []string, target string) bool {
	for _, s := range list {
		if strings.ToLower(s) == target {
			return true
		}
	}
	return false
}
