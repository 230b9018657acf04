// Package mercadolibre implements the live-fetch collaborator and the
// scraping provider backed by it. The client fetches MercadoLibre listing
// pages under a rate limiter with retry and a read-through cache; the
// provider converts its raw listings into canonical products.
package mercadolibre

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/giftfinder/scraper/internal/domain"
	"github.com/giftfinder/scraper/internal/monitoring"
)

// DefaultBaseURL is the MercadoLibre Argentina listing endpoint.
const DefaultBaseURL = "https://listado.mercadolibre.com.ar"

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Listing is one raw scraped result before conversion to the canonical
// product shape.
type Listing struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Price      *float64 `json:"price"`
	Currency   string   `json:"currency"`
	ImageURL   string   `json:"image_url"`
	ProductURL string   `json:"product_url"`
	Rating     *float64 `json:"rating"`
	Store      string   `json:"store"`
	Tags       []string `json:"tags"`
}

// Fetcher is the live-fetch collaborator contract: given a keyword and tag
// list it returns raw listings, or an empty list on any soft failure. The
// scraping provider depends on this, not on the concrete client.
type Fetcher interface {
	Fetch(ctx context.Context, keyword string, tags []string) ([]Listing, error)
}

// Package-level compiled regex patterns for performance
var (
	unsafeKeywordRegex = regexp.MustCompile(`[^\p{L}\p{N}\s\-]`)
	spacesRegex        = regexp.MustCompile(`\s+`)
	hyphenRunRegex     = regexp.MustCompile(`-+`)
	allowedURLRegex    = regexp.MustCompile(`(?i)^https?://([a-z0-9\-.]+\.)?(mercadolibre\.com\.ar|listado\.mercadolibre\.com\.ar|articulo\.mercadolibre\.com\.ar)(/.*)?$`)
)

// ClientConfig holds tuning knobs for the listing client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	MaxItems   int
	CacheTTL   time.Duration
	UserAgent  string
}

// Client fetches and parses MercadoLibre listing pages. Requests go through
// a token-bucket rate limiter and a retry policy; successful non-empty
// results are cached by sanitized keyword.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	maxItems   int
	limiter    *rate.Limiter
	executor   failsafe.Executor[*http.Response]
	cache      domain.CacheRepository
	cacheTTL   time.Duration
	metrics    *monitoring.Metrics
	log        *logrus.Logger
}

// NewClient creates a listing client.
func NewClient(cfg ClientConfig, cache domain.CacheRepository, metrics *monitoring.Metrics, log *logrus.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 20
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(500*time.Millisecond, 5*time.Second).
		WithMaxRetries(maxRetries).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil || resp == nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		}).
		Build()

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		maxItems:   maxItems,
		// one listing request per second, small burst for warm-up
		limiter:  rate.NewLimiter(rate.Limit(1), 2),
		executor: failsafe.With(retry),
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  metrics,
		log:      log,
	}
}

// Fetch retrieves listings for a keyword. It returns an empty slice for
// soft failures it can classify itself (empty keyword, no items) and an
// error for transport-level problems; the scraping provider converts either
// into warnings.
func (c *Client) Fetch(ctx context.Context, keyword string, tags []string) ([]Listing, error) {
	keyword = SanitizeKeyword(keyword)
	if keyword == "" {
		c.log.Warn("Empty keyword after sanitization")
		return []Listing{}, nil
	}

	cacheKey := "ml::" + keyword
	if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
		if listings, ok := cached.([]Listing); ok && len(listings) > 0 {
			c.log.WithField("keyword", keyword).Info("Scrape cache hit")
			c.metrics.IncCacheHit()
			return listings, nil
		}
	}
	c.metrics.IncCacheMiss()

	// The keyword is sanitized to [letters digits hyphens], so the request
	// URL cannot escape the configured listing base.
	reqURL := c.baseURL + "/" + keyword

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	c.log.WithField("url", reqURL).Info("Fetching listing page")

	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if reqErr != nil {
			return nil, reqErr
		}
		c.setHeaders(req)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("listing fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading listing body: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"status":         resp.StatusCode,
		"content_length": len(body),
	}).Info("Listing response")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned status %d", resp.StatusCode)
	}

	if looksBlocked(body) {
		return nil, domain.ErrFetchBlocked
	}

	listings, err := c.parseListings(body, tags)
	if err != nil {
		return nil, err
	}

	// Empty results are not cached so a transient blank page cannot stick.
	if len(listings) > 0 {
		if err := c.cache.Set(ctx, cacheKey, listings, c.cacheTTL); err != nil {
			c.log.WithError(err).Warn("Failed to cache listings")
		}
	}

	return listings, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Referer", "https://www.mercadolibre.com.ar/")
}

// parseListings extracts products from a listing page.
func (c *Client) parseListings(body []byte, tags []string) ([]Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing listing HTML: %w", err)
	}

	listings := make([]Listing, 0, c.maxItems)
	doc.Find("li.ui-search-layout__item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if listing, ok := c.extractListing(item, tags); ok {
			listings = append(listings, listing)
		}
		return len(listings) < c.maxItems
	})

	return listings, nil
}

// extractListing pulls one product out of a listing item. Items missing a
// title or a valid product URL are skipped, not errored.
func (c *Client) extractListing(item *goquery.Selection, tags []string) (Listing, bool) {
	title := strings.TrimSpace(item.Find("h2.ui-search-item__title").First().Text())
	productURL, _ := item.Find("a").First().Attr("href")
	imageURL, _ := item.Find("img").First().Attr("src")

	if title == "" || productURL == "" {
		return Listing{}, false
	}
	if !ValidListingURL(productURL) {
		c.log.WithField("url", productURL).Warn("Skipping item with invalid product URL")
		return Listing{}, false
	}

	var price *float64
	if raw := strings.TrimSpace(item.Find("span.andes-money-amount__fraction").First().Text()); raw != "" {
		if parsed, err := parsePrice(raw); err == nil {
			price = &parsed
		} else {
			c.log.WithField("raw", raw).Debug("Could not parse price")
		}
	}

	if tags == nil {
		tags = []string{}
	}

	return Listing{
		ID:         uuid.NewString(),
		Title:      title,
		Price:      price,
		Currency:   "ARS",
		ImageURL:   imageURL,
		ProductURL: productURL,
		Store:      "MercadoLibre",
		Tags:       tags,
	}, true
}

// parsePrice handles the Argentine number format: "12.345" -> 12345,
// "12.345,67" -> 12345.67.
func parsePrice(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(raw, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	return strconv.ParseFloat(cleaned, 64)
}

// looksBlocked detects anti-bot interstitials so they are reported as a
// block instead of parsed as an empty page.
func looksBlocked(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, marker := range []string{"captcha", "robot check", "access denied", "hemos detectado"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SanitizeKeyword makes a keyword safe for URL path use: strips everything
// but letters, digits, spaces and hyphens, collapses spaces to single
// hyphens, lowercases, and caps the length at 100.
func SanitizeKeyword(keyword string) string {
	keyword = unsafeKeywordRegex.ReplaceAllString(keyword, "")
	keyword = spacesRegex.ReplaceAllString(strings.TrimSpace(keyword), "-")
	keyword = hyphenRunRegex.ReplaceAllString(keyword, "-")
	keyword = strings.ToLower(keyword)
	if len(keyword) > 100 {
		keyword = keyword[:100]
	}
	return strings.Trim(keyword, "-")
}

// ValidListingURL reports whether a URL belongs to the allowed MercadoLibre
// domains. Everything else is refused, which keeps scraped hrefs from
// pointing the service at arbitrary hosts.
func ValidListingURL(url string) bool {
	return url != "" && allowedURLRegex.MatchString(url)
}
