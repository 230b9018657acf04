package usecase

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftfinder/scraper/internal/domain"
)

// stubProvider is a configurable in-memory provider for pipeline tests.
type stubProvider struct {
	name      string
	supported bool
	products  []domain.Product
	delay     time.Duration
	ignoreCtx bool
	panics    bool
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Capabilities() domain.ProviderCapabilities {
	return domain.ProviderCapabilities{}
}

func (s *stubProvider) Supports(domain.ProductQuery) bool { return s.supported }

func (s *stubProvider) Search(ctx context.Context, query domain.ProductQuery) domain.ProviderResult {
	if s.panics {
		panic("stub provider exploded")
	}
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return domain.EmptyResult(s.name, s.delay, "cancelled")
			}
		}
	}
	return domain.ProviderResult{
		Products: s.products,
		Meta:     domain.ProviderMetadata{ProviderName: s.name, Warnings: []string{}},
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestAggregator(t *testing.T, cfg AggregatorConfig, providers ...domain.Provider) *Aggregator {
	t.Helper()
	require.NotEmpty(t, providers)

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	registry := NewRegistry(names, providers, providers[0], testLogger())
	return NewAggregator(registry, cfg, nil, testLogger())
}

func scoredProduct(id, title, url string, price, score float64) domain.Product {
	return domain.Product{
		ID:             id,
		Title:          title,
		URL:            url,
		Price:          price,
		Currency:       "ARS",
		Vendor:         domain.VendorInfo{Name: "Tienda"},
		SourceProvider: "scraping",
		Score:          &score,
	}
}

func TestSearchProductsMergesProviders(t *testing.T) {
	p1 := &stubProvider{name: "scraping", supported: true, products: []domain.Product{
		scoredProduct("a", "Mate Imperial", "https://articulo.mercadolibre.com.ar/a", 100, 0.9),
	}}
	p2 := &stubProvider{name: "reference", supported: true, products: []domain.Product{
		scoredProduct("b", "Set de Mates", "https://articulo.mercadolibre.com.ar/b", 200, 0.5),
	}}

	agg := newTestAggregator(t, AggregatorConfig{}, p1, p2)
	got := agg.SearchProducts(context.Background(), domain.NewProductQuery([]string{"mate"}))

	require.Len(t, got, 2)
	// higher-scored product ranks first
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestSearchProductsHangingProviderResolves(t *testing.T) {
	hanging := &stubProvider{
		name:      "scraping",
		supported: true,
		delay:     500 * time.Millisecond,
		ignoreCtx: true, // does not honor cancellation
		products:  []domain.Product{scoredProduct("slow", "Slow", "https://articulo.mercadolibre.com.ar/slow", 1, 0.9)},
	}
	healthy := &stubProvider{name: "reference", supported: true, products: []domain.Product{
		scoredProduct("fast", "Fast", "https://articulo.mercadolibre.com.ar/fast", 1, 0.5),
	}}

	agg := newTestAggregator(t, AggregatorConfig{ProviderTimeout: 50 * time.Millisecond}, hanging, healthy)

	start := time.Now()
	got := agg.SearchProducts(context.Background(), domain.NewProductQuery([]string{"x"}))
	elapsed := time.Since(start)

	require.Len(t, got, 1)
	assert.Equal(t, "fast", got[0].ID)
	assert.Less(t, elapsed, 400*time.Millisecond, "hard timeout must cut off the hanging provider")
}

func TestSearchProductsPanickingProviderResolves(t *testing.T) {
	panicking := &stubProvider{name: "scraping", supported: true, panics: true}
	healthy := &stubProvider{name: "reference", supported: true, products: []domain.Product{
		scoredProduct("ok", "Ok", "https://articulo.mercadolibre.com.ar/ok", 1, 0.5),
	}}

	agg := newTestAggregator(t, AggregatorConfig{ProviderTimeout: time.Second}, panicking, healthy)
	got := agg.SearchProducts(context.Background(), domain.NewProductQuery([]string{"x"}))

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ID)
}

func TestSearchProductsUnsupportedProviderSkipped(t *testing.T) {
	unsupported := &stubProvider{name: "scraping", supported: false, products: []domain.Product{
		scoredProduct("no", "No", "https://articulo.mercadolibre.com.ar/no", 1, 0.9),
	}}
	healthy := &stubProvider{name: "reference", supported: true, products: []domain.Product{
		scoredProduct("yes", "Yes", "https://articulo.mercadolibre.com.ar/yes", 1, 0.5),
	}}

	agg := newTestAggregator(t, AggregatorConfig{}, unsupported, healthy)
	got := agg.SearchProducts(context.Background(), domain.NewProductQuery([]string{"x"}))

	require.Len(t, got, 1)
	assert.Equal(t, "yes", got[0].ID)
}

func TestSearchProductsEmptyRegistry(t *testing.T) {
	registry := &Registry{providers: map[string]domain.Provider{}}
	agg := NewAggregator(registry, AggregatorConfig{}, nil, testLogger())

	got := agg.SearchProducts(context.Background(), domain.NewProductQuery([]string{"x"}))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchProductsRespectsLimit(t *testing.T) {
	var products []domain.Product
	for i := 0; i < 40; i++ {
		id := string(rune('a' + i%26))
		products = append(products, scoredProduct(
			id+"-"+string(rune('0'+i/26)),
			"Product "+id,
			"https://articulo.mercadolibre.com.ar/item-"+id+"-"+string(rune('0'+i/26)),
			float64(100+i), 0.5,
		))
	}
	p := &stubProvider{name: "scraping", supported: true, products: products}

	agg := newTestAggregator(t, AggregatorConfig{}, p)

	query := domain.NewProductQuery([]string{"x"})
	query.Limit = 5
	assert.Len(t, agg.SearchProducts(context.Background(), query), 5)

	query.Limit = 1000
	assert.LessOrEqual(t, len(agg.SearchProducts(context.Background(), query)), domain.MaxLimit)
}

func TestSearchProductsScoresInRange(t *testing.T) {
	p := &stubProvider{name: "scraping", supported: true, products: []domain.Product{
		scoredProduct("a", "Mate Imperial Premium", "https://articulo.mercadolibre.com.ar/a", 100, 0.99),
		scoredProduct("b", "Otro", "https://articulo.mercadolibre.com.ar/b", 100, 0.0),
	}}
	agg := newTestAggregator(t, AggregatorConfig{}, p)

	min, max := 50.0, 150.0
	query := domain.NewProductQuery([]string{"mate", "imperial", "premium"})
	query.PriceMin = &min
	query.PriceMax = &max

	for _, product := range agg.SearchProducts(context.Background(), query) {
		require.NotNil(t, product.Score)
		assert.GreaterOrEqual(t, *product.Score, 0.0)
		assert.LessOrEqual(t, *product.Score, 1.0)
	}
}

func TestSearchProductsIdempotent(t *testing.T) {
	p := &stubProvider{name: "scraping", supported: true, products: []domain.Product{
		scoredProduct("a", "Uno", "https://articulo.mercadolibre.com.ar/a", 100, 0.9),
		scoredProduct("b", "Dos", "https://articulo.mercadolibre.com.ar/b", 200, 0.7),
		scoredProduct("c", "Tres", "https://articulo.mercadolibre.com.ar/c", 300, 0.5),
	}}
	agg := newTestAggregator(t, AggregatorConfig{}, p)
	query := domain.NewProductQuery([]string{"x"})

	first := agg.SearchProducts(context.Background(), query)
	second := agg.SearchProducts(context.Background(), query)
	assert.Equal(t, first, second)
}

func TestDeduplicateByURL(t *testing.T) {
	low, high := 0.3, 0.9
	products := []domain.Product{
		{ID: "low", Title: "A", URL: "https://articulo.mercadolibre.com.ar/item-1", Score: &low},
		{ID: "high", Title: "B", URL: "https://ARTICULO.mercadolibre.com.ar/item-1", Score: &high},
	}

	agg := newTestAggregator(t, AggregatorConfig{}, &stubProvider{name: "scraping", supported: true})
	got := agg.deduplicate(products)

	require.Len(t, got, 1)
	assert.Equal(t, "high", got[0].ID, "higher-scored duplicate must survive")
}

func TestDeduplicateListingURLs(t *testing.T) {
	low, high := 0.3, 0.9
	products := []domain.Product{
		{
			ID: "ref", Title: "Mate Imperial", Price: 100,
			Vendor: domain.VendorInfo{Name: "Sugerencia"},
			URL:    ListingURLPrefix + "mate-imperial",
			Score:  &low,
		},
		{
			ID: "ref2", Title: "mate imperial", Price: 100,
			Vendor: domain.VendorInfo{Name: "sugerencia"},
			URL:    ListingURLPrefix + "mate-imperial-premium",
			Score:  &high,
		},
		{
			ID: "other-price", Title: "Mate Imperial", Price: 200,
			Vendor: domain.VendorInfo{Name: "Sugerencia"},
			URL:    ListingURLPrefix + "mate-imperial",
			Score:  &low,
		},
	}

	agg := newTestAggregator(t, AggregatorConfig{}, &stubProvider{name: "scraping", supported: true})
	got := agg.deduplicate(products)

	// Same title|vendor|price folds despite different listing URLs; the
	// different price survives separately.
	require.Len(t, got, 2)
	assert.Equal(t, "ref2", got[0].ID)
}

func TestDedupKey(t *testing.T) {
	t.Run("direct URL lowercased", func(t *testing.T) {
		p := domain.Product{URL: "https://Articulo.MercadoLibre.com.ar/Item-1"}
		assert.Equal(t, "https://articulo.mercadolibre.com.ar/item-1", dedupKey(p))
	})

	t.Run("listing URL uses title vendor price", func(t *testing.T) {
		p := domain.Product{
			Title:  " Mate Imperial ",
			Vendor: domain.VendorInfo{Name: "Tienda"},
			Price:  1500.5,
			URL:    ListingURLPrefix + "mate",
		}
		assert.Equal(t, "mate imperial|tienda|1500.5", dedupKey(p))
	})

	t.Run("zero price renders as 0", func(t *testing.T) {
		p := domain.Product{Title: "X", Vendor: domain.VendorInfo{Name: "Y"}}
		assert.Equal(t, "x|y|0", dedupKey(p))
	})
}

func TestEnhanceScore(t *testing.T) {
	agg := newTestAggregator(t, AggregatorConfig{}, &stubProvider{name: "scraping", supported: true})
	price := func(v float64) *float64 { return &v }

	t.Run("scraping weight and full keyword match", func(t *testing.T) {
		base := 0.5
		p := domain.Product{Title: "Mate Imperial", SourceProvider: "scraping", Score: &base}
		query := domain.NewProductQuery([]string{"mate"})

		// 0.5*0.6 + 1.0*0.2 + 1.0*0.2 = 0.7
		assert.InDelta(t, 0.7, agg.enhanceScore(p, query), 1e-9)
	})

	t.Run("unknown provider gets default weight", func(t *testing.T) {
		base := 0.5
		p := domain.Product{Title: "Algo", SourceProvider: "mystery", Score: &base}
		query := domain.NewProductQuery([]string{"zzz"})

		// 0.5*0.6 + 0.5*0.2 + 0 + 0 = 0.4
		assert.InDelta(t, 0.4, agg.enhanceScore(p, query), 1e-9)
	})

	t.Run("price at midpoint earns full bonus", func(t *testing.T) {
		base := 0.0
		p := domain.Product{Title: "X", SourceProvider: "reference", Price: 100, Score: &base}
		query := domain.NewProductQuery([]string{"zzz"})
		query.PriceMin = price(50)
		query.PriceMax = price(150)

		// 0 + 0.7*0.2 + 0 + 0.1 = 0.24
		assert.InDelta(t, 0.24, agg.enhanceScore(p, query), 1e-9)
	})

	t.Run("price outside both bounds earns nothing", func(t *testing.T) {
		base := 0.0
		p := domain.Product{Title: "X", SourceProvider: "reference", Price: 500, Score: &base}
		query := domain.NewProductQuery([]string{"zzz"})
		query.PriceMin = price(50)
		query.PriceMax = price(150)

		assert.InDelta(t, 0.14, agg.enhanceScore(p, query), 1e-9)
	})

	t.Run("single bound satisfied earns half bonus", func(t *testing.T) {
		base := 0.0
		p := domain.Product{Title: "X", SourceProvider: "reference", Price: 100, Score: &base}
		query := domain.NewProductQuery([]string{"zzz"})
		query.PriceMax = price(150)

		// 0 + 0.14 + 0 + 0.05
		assert.InDelta(t, 0.19, agg.enhanceScore(p, query), 1e-9)
	})

	t.Run("result clamped to one", func(t *testing.T) {
		base := 1.0
		p := domain.Product{Title: "Mate Imperial Premium", SourceProvider: "scraping", Price: 100, Score: &base}
		query := domain.NewProductQuery([]string{"mate", "imperial", "premium"})
		query.PriceMin = price(50)
		query.PriceMax = price(150)

		assert.Equal(t, 1.0, agg.enhanceScore(p, query))
	})
}
