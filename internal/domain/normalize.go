package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// Package-level compiled regex patterns for performance
var (
	whitespaceRegex      = regexp.MustCompile(`\s+`)
	repeatedPunctRegex   = regexp.MustCompile(`([!?.]){2,}`)
	searchPageIndicators = []string{"/search", "/buscar", "/s/", "/q/", "/query"}
)

// NormalizeTitle normalizes a product title for consistent display and
// comparison: trims and collapses whitespace, collapses repeated punctuation,
// and title-cases each word.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	title = whitespaceRegex.ReplaceAllString(strings.TrimSpace(title), " ")
	title = repeatedPunctRegex.ReplaceAllString(title, "$1")

	words := strings.Fields(title)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// NormalizePrice rounds a price to 2 decimal places. Negative or missing
// prices normalize to nil.
func NormalizePrice(price *float64) *float64 {
	if price == nil || *price < 0 {
		return nil
	}
	rounded := math.Round(*price*100) / 100
	return &rounded
}

// CanonicalURL canonicalizes a URL for deduplication: lowercases scheme, host,
// and path, strips query parameters and fragments, and removes trailing
// slashes. An unparseable URL falls back to its lowercase trimmed form.
func CanonicalURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}

	canonical := url.URL{
		Scheme: strings.ToLower(parsed.Scheme),
		Host:   strings.ToLower(parsed.Host),
		Path:   strings.TrimRight(strings.ToLower(parsed.Path), "/"),
	}
	return canonical.String()
}

// StableDedupKey builds a stable deduplication key for a product.
//
// Direct product links key on the canonical URL; search-page URLs key on
// normalized title, vendor, and price, since the same item shows up under
// arbitrarily many search links. The result is a SHA-256 hex digest so keys
// are uniform regardless of source material.
func StableDedupKey(title, vendorName string, price *float64, rawURL string) string {
	canonical := CanonicalURL(rawURL)

	isSearchPage := false
	for _, indicator := range searchPageIndicators {
		if strings.Contains(canonical, indicator) {
			isSearchPage = true
			break
		}
	}

	material := canonical
	if isSearchPage || canonical == "" {
		normalized := NormalizePrice(price)
		priceStr := "<nil>"
		if normalized != nil {
			priceStr = fmt.Sprintf("%.2f", *normalized)
		}
		material = fmt.Sprintf("%s|%s|%s", NormalizeTitle(title), strings.ToLower(vendorName), priceStr)
	}

	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
