package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/giftfinder/scraper/internal/domain"
	"github.com/giftfinder/scraper/internal/monitoring"
)

// ListingURLPrefix is the scraping provider's generic search-listing URL
// template. Products whose URL lives under it are not direct product links,
// so they deduplicate by title|vendor|price instead of URL.
//
// This is a literal prefix test, not general URL-shape detection: a new
// provider emitting a different style of listing URL would not be folded.
const ListingURLPrefix = "https://listado.mercadolibre.com.ar/"

// Provider weights applied during re-scoring. Live data ranks above curated
// reference data; providers outside the table get 0.5.
var providerWeights = map[string]float64{
	"scraping":  1.0,
	"reference": 0.7,
}

const defaultProviderWeight = 0.5

// AggregatorConfig holds tuning knobs for the aggregation pipeline.
type AggregatorConfig struct {
	MaxConcurrentProviders int
	ProviderTimeout        time.Duration
}

// Aggregator fans a query out to every registered provider, then merges,
// deduplicates, re-scores, ranks, and truncates the union. It holds no
// per-request state: each call builds its own working set, so no locks are
// needed past the read-only registry.
type Aggregator struct {
	registry        *Registry
	maxConcurrent   int
	providerTimeout time.Duration
	metrics         *monitoring.Metrics
	log             *logrus.Logger
}

// NewAggregator creates an aggregator over the given registry.
func NewAggregator(registry *Registry, cfg AggregatorConfig, metrics *monitoring.Metrics, log *logrus.Logger) *Aggregator {
	maxConcurrent := cfg.MaxConcurrentProviders
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Aggregator{
		registry:        registry,
		maxConcurrent:   maxConcurrent,
		providerTimeout: timeout,
		metrics:         metrics,
		log:             log,
	}
}

// SearchProducts searches all enabled providers and returns the merged,
// deduplicated, ranked product list. It has no error return: every failure
// mode below this point degrades result count, never request success.
func (a *Aggregator) SearchProducts(ctx context.Context, query domain.ProductQuery) []domain.Product {
	providers := a.registry.All()

	a.log.WithFields(logrus.Fields{
		"keywords":  query.Keywords,
		"interests": query.Recipient.Interests,
		"limit":     query.ResultLimit(),
		"providers": len(providers),
	}).Info("Aggregator searching")

	if len(providers) == 0 {
		a.log.Warn("No providers available")
		return []domain.Product{}
	}

	results := make([]domain.ProviderResult, len(providers))

	// Bounded fan-out: all providers are queried, at most maxConcurrent at a
	// time, and every slot is guaranteed to resolve by searchWithTimeout.
	g := &errgroup.Group{}
	g.SetLimit(a.maxConcurrent)
	for i, p := range providers {
		g.Go(func() error {
			results[i] = a.searchWithTimeout(ctx, p, query)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	return a.mergeAndRank(results, query)
}

// searchWithTimeout wraps a single provider call. It upgrades the provider
// contract's "never fail" promise into a hard guarantee: a provider that
// hangs past the timeout, ignores context cancellation, or panics still
// resolves to an empty result with a warning.
func (a *Aggregator) searchWithTimeout(ctx context.Context, p domain.Provider, query domain.ProductQuery) domain.ProviderResult {
	if !p.Supports(query) {
		a.log.WithField("provider", p.Name()).Debug("Provider does not support this query")
		return domain.EmptyResult(p.Name(), 0, "Provider does not support this query")
	}

	ctx, cancel := context.WithTimeout(ctx, a.providerTimeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan domain.ProviderResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.log.WithFields(logrus.Fields{
					"provider": p.Name(),
					"panic":    r,
				}).Error("Provider panicked")
				resultCh <- domain.EmptyResult(p.Name(), time.Since(start), fmt.Sprintf("Provider error: %v", r))
			}
		}()
		resultCh <- p.Search(ctx, query)
	}()

	select {
	case result := <-resultCh:
		a.log.WithFields(logrus.Fields{
			"provider":   p.Name(),
			"products":   len(result.Products),
			"latency_ms": result.Meta.LatencyMs,
			"warnings":   result.Meta.Warnings,
		}).Info("Provider returned")
		a.metrics.ObserveProviderSearch(p.Name(), time.Since(start), len(result.Products))
		return result

	case <-ctx.Done():
		a.log.WithField("provider", p.Name()).Error("Provider timed out")
		a.metrics.IncProviderTimeout(p.Name())
		return domain.EmptyResult(p.Name(), a.providerTimeout,
			fmt.Sprintf("Provider timed out after %s", a.providerTimeout))
	}
}

// mergeAndRank flattens provider results, deduplicates, re-scores, sorts
// descending by score, and truncates to the query limit.
func (a *Aggregator) mergeAndRank(results []domain.ProviderResult, query domain.ProductQuery) []domain.Product {
	var all []domain.Product
	for _, r := range results {
		all = append(all, r.Products...)
	}

	deduped := a.deduplicate(all)

	for i := range deduped {
		score := a.enhanceScore(deduped[i], query)
		deduped[i].Score = &score
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].ScoreOrZero() > deduped[j].ScoreOrZero()
	})

	limit := query.ResultLimit()
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}

	a.log.WithFields(logrus.Fields{
		"merged": len(all),
		"final":  len(deduped),
	}).Info("Aggregation complete")

	if deduped == nil {
		deduped = []domain.Product{}
	}
	return deduped
}

// deduplicate keeps one product per dedup key. Products are first stably
// sorted by existing score descending, so when keys collide the
// higher-scored instance survives.
func (a *Aggregator) deduplicate(products []domain.Product) []domain.Product {
	sorted := make([]domain.Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScoreOrZero() > sorted[j].ScoreOrZero()
	})

	seen := make(map[string]struct{}, len(sorted))
	deduped := sorted[:0]
	for _, p := range sorted {
		key := dedupKey(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, p)
	}

	if dropped := len(products) - len(deduped); dropped > 0 {
		a.metrics.AddDedupDrops(dropped)
		a.log.WithFields(logrus.Fields{
			"before": len(products),
			"after":  len(deduped),
		}).Debug("Deduplication dropped products")
	}

	return deduped
}

// dedupKey derives the normalized identity of a product. Direct product URLs
// key on the lowercased URL; listing-style URLs (including all reference
// provider output) key on title, vendor, and price.
func dedupKey(p domain.Product) string {
	url := strings.TrimSpace(p.URL)
	if url != "" && !strings.HasPrefix(url, ListingURLPrefix) {
		return strings.ToLower(url)
	}

	price := "0"
	if p.Price != 0 {
		price = strconv.FormatFloat(p.Price, 'f', -1, 64)
	}
	return strings.ToLower(strings.TrimSpace(p.Title)) + "|" +
		strings.ToLower(strings.TrimSpace(p.Vendor.Name)) + "|" + price
}

// enhanceScore recomputes a product's relevance after merge. The provider's
// own score keeps 60% weight; the rest comes from provider trust, keyword
// presence in the title, and price fit.
func (a *Aggregator) enhanceScore(p domain.Product, query domain.ProductQuery) float64 {
	base := p.ScoreOrZero()

	weight, ok := providerWeights[p.SourceProvider]
	if !ok {
		weight = defaultProviderWeight
	}

	keywordBonus := 0.0
	if len(query.Keywords) > 0 && p.Title != "" {
		titleLower := strings.ToLower(p.Title)
		matches := 0
		for _, kw := range query.Keywords {
			if strings.Contains(titleLower, strings.ToLower(kw)) {
				matches++
			}
		}
		keywordBonus = float64(matches) / float64(len(query.Keywords)) * 0.2
	}

	priceBonus := 0.0
	if p.Price > 0 {
		switch {
		case query.PriceMin != nil && query.PriceMax != nil:
			if *query.PriceMin <= p.Price && p.Price <= *query.PriceMax {
				mid := (*query.PriceMin + *query.PriceMax) / 2
				rangeSize := *query.PriceMax - *query.PriceMin
				if rangeSize > 0 {
					distance := p.Price - mid
					if distance < 0 {
						distance = -distance
					}
					normalized := distance / rangeSize
					if normalized > 1 {
						normalized = 1
					}
					priceBonus = 0.1 * (1 - normalized)
				}
			}
		case query.PriceMin != nil && p.Price >= *query.PriceMin:
			priceBonus = 0.05
		case query.PriceMax != nil && p.Price <= *query.PriceMax:
			priceBonus = 0.05
		}
	}

	final := base*0.6 + weight*0.2 + keywordBonus + priceBonus
	if final > 1 {
		final = 1
	}
	if final < 0 {
		final = 0
	}
	return final
}
