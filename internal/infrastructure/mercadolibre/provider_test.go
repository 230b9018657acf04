package mercadolibre

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftfinder/scraper/internal/domain"
)

// stubFetcher serves canned listings without touching the network.
type stubFetcher struct {
	listings []Listing
	err      error

	gotKeyword string
	gotTags    []string
}

func (s *stubFetcher) Fetch(ctx context.Context, keyword string, tags []string) ([]Listing, error) {
	s.gotKeyword = keyword
	s.gotTags = tags
	return s.listings, s.err
}

func price(v float64) *float64 { return &v }

func TestProviderIdentity(t *testing.T) {
	p := NewProvider(&stubFetcher{}, testLogger())

	assert.Equal(t, "scraping", p.Name())

	caps := p.Capabilities()
	assert.True(t, caps.SupportsImages)
	assert.True(t, caps.SupportsPriceFilter)
	assert.True(t, caps.SupportsDeepLink)
}

func TestProviderSupports(t *testing.T) {
	p := NewProvider(&stubFetcher{}, testLogger())

	assert.True(t, p.Supports(domain.NewProductQuery([]string{"mate"})))
	assert.False(t, p.Supports(domain.NewProductQuery(nil)))
}

func TestSearchConvertsListings(t *testing.T) {
	fetcher := &stubFetcher{listings: []Listing{
		{
			ID:         "ml-1",
			Title:      "Mate Imperial",
			Price:      price(12500),
			ImageURL:   "https://http2.mlstatic.com/mate.jpg",
			ProductURL: "https://articulo.mercadolibre.com.ar/MLA-111",
			Store:      "Tienda Oficial",
			Tags:       []string{"mate"},
		},
		{
			// Missing optional fields take defaults.
			Title:      "Bombilla",
			ProductURL: "https://articulo.mercadolibre.com.ar/MLA-222",
		},
	}}
	p := NewProvider(fetcher, testLogger())

	query := domain.NewProductQuery([]string{"mate"})
	query.Recipient.Interests = []string{"cocina"}
	result := p.Search(context.Background(), query)

	assert.Equal(t, "mate", fetcher.gotKeyword)
	assert.Equal(t, []string{"mate", "cocina"}, fetcher.gotTags)

	require.Len(t, result.Products, 2)

	first := result.Products[0]
	assert.Equal(t, "ml-1", first.ID)
	assert.Equal(t, "Mate Imperial", first.Title)
	assert.Equal(t, 12500.0, first.Price)
	assert.Equal(t, "ARS", first.Currency)
	assert.Equal(t, "Tienda Oficial", first.Vendor.Name)
	assert.Equal(t, "scraping", first.SourceProvider)
	assert.NotEmpty(t, first.Raw, "raw payload retained for debug output")
	require.NotNil(t, first.Score)
	assert.GreaterOrEqual(t, *first.Score, 0.0)
	assert.LessOrEqual(t, *first.Score, 1.0)

	second := result.Products[1]
	assert.NotEmpty(t, second.ID, "listing without ID gets a generated one")
	assert.Equal(t, "ARS", second.Currency)
	assert.Equal(t, "MercadoLibre", second.Vendor.Name)
	assert.Empty(t, second.Images)
}

func TestSearchFetchError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	p := NewProvider(fetcher, testLogger())

	result := p.Search(context.Background(), domain.NewProductQuery([]string{"mate"}))

	assert.Empty(t, result.Products)
	require.Len(t, result.Meta.Warnings, 1)
	assert.Contains(t, result.Meta.Warnings[0], "Scraping failed")
	assert.Contains(t, result.Meta.Warnings[0], "connection refused")
}

func TestSearchNoKeywords(t *testing.T) {
	p := NewProvider(&stubFetcher{}, testLogger())

	result := p.Search(context.Background(), domain.NewProductQuery(nil))
	assert.Empty(t, result.Products)
	assert.Contains(t, result.Meta.Warnings, "No keywords provided for scraping")
}

func TestSearchEmptyListings(t *testing.T) {
	p := NewProvider(&stubFetcher{}, testLogger())

	result := p.Search(context.Background(), domain.NewProductQuery([]string{"mate"}))
	assert.Empty(t, result.Products)
	assert.Contains(t, result.Meta.Warnings, "No products found for this search")
}

func TestSearchPriceFilter(t *testing.T) {
	fetcher := &stubFetcher{listings: []Listing{
		{Title: "Barato", Price: price(50), ProductURL: "https://articulo.mercadolibre.com.ar/a"},
		{Title: "Justo", Price: price(500), ProductURL: "https://articulo.mercadolibre.com.ar/b"},
		{Title: "Caro", Price: price(5000), ProductURL: "https://articulo.mercadolibre.com.ar/c"},
	}}
	p := NewProvider(fetcher, testLogger())

	query := domain.NewProductQuery([]string{"mate"})
	query.PriceMin = price(100)
	query.PriceMax = price(1000)

	result := p.Search(context.Background(), query)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Justo", result.Products[0].Title)
}

func TestSearchRespectsLimit(t *testing.T) {
	var listings []Listing
	for i := 0; i < 25; i++ {
		listings = append(listings, Listing{
			Title:      "Producto",
			ProductURL: "https://articulo.mercadolibre.com.ar/item",
		})
	}
	p := NewProvider(&stubFetcher{listings: listings}, testLogger())

	query := domain.NewProductQuery([]string{"mate"})
	query.Limit = 7

	result := p.Search(context.Background(), query)
	assert.Len(t, result.Products, 7)
}

func TestBasicScore(t *testing.T) {
	query := domain.NewProductQuery([]string{"mate", "imperial"})
	query.PriceMin = price(100)
	query.PriceMax = price(1000)

	t.Run("full title match with image", func(t *testing.T) {
		p := domain.Product{
			Title:  "Mate Imperial Premium",
			Price:  500,
			Images: []string{"img"},
		}
		// 0.5 + 0.3 + 0.1 = 0.9
		assert.InDelta(t, 0.9, basicScore(p, query), 1e-9)
	})

	t.Run("price below minimum penalized", func(t *testing.T) {
		p := domain.Product{Title: "Mate Imperial", Price: 50}
		// 0.5 + 0.3 - 0.1 = 0.7
		assert.InDelta(t, 0.7, basicScore(p, query), 1e-9)
	})

	t.Run("no matches stays at base", func(t *testing.T) {
		p := domain.Product{Title: "Otra Cosa", Price: 500}
		assert.InDelta(t, 0.5, basicScore(p, query), 1e-9)
	})

	t.Run("clamped to range", func(t *testing.T) {
		p := domain.Product{Title: "Mate Imperial", Price: 500, Images: []string{"img"}}
		got := basicScore(p, query)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	})
}
