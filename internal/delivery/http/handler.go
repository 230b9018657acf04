// Package http is the Gin delivery layer: request validation, intent
// interpretation, and the aggregation call, plus health and metrics wiring.
package http

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/giftfinder/scraper/internal/domain"
)

const (
	minQueryLength = 3
	maxQueryLength = 500

	// searchResponseLimit is how many recommendations one search returns.
	searchResponseLimit = 20
)

// safeQueryRegex accepts Spanish text with common punctuation and nothing
// else; queries failing it are rejected before reaching the interpreter.
var safeQueryRegex = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ0-9\s\-\.,;:¿?¡!()]+$`)

// ProductSearcher runs the aggregation pipeline for a structured query.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, query domain.ProductQuery) []domain.Product
}

// ProviderLister exposes the names of registered providers, used by the
// readiness probe.
type ProviderLister interface {
	Names() []string
}

// LLMPinger reports whether the language model endpoint is reachable. A
// failing ping degrades readiness output but never fails the probe.
type LLMPinger interface {
	Ping(ctx context.Context) error
}

// CacheInspector reports the cache entry count for the readiness probe.
type CacheInspector interface {
	Size() int
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	searcher    ProductSearcher
	interpreter domain.QueryInterpreter
	providers   ProviderLister
	llm         LLMPinger
	cache       CacheInspector
	log         *logrus.Logger
}

// NewHandler creates a new HTTP handler. llm and cache are optional; when nil
// the readiness probe simply omits them.
func NewHandler(searcher ProductSearcher, interpreter domain.QueryInterpreter, providers ProviderLister, llm LLMPinger, cache CacheInspector, log *logrus.Logger) *Handler {
	return &Handler{
		searcher:    searcher,
		interpreter: interpreter,
		providers:   providers,
		llm:         llm,
		cache:       cache,
		log:         log,
	}
}

// searchRequest is the body of POST /api/v1/gifts/search.
type searchRequest struct {
	Query string `json:"query" binding:"required"`
	Debug bool   `json:"debug"`
}

// searchResponse is the reply to a gift search.
type searchResponse struct {
	RequestID         string                  `json:"requestId"`
	InterpretedIntent domain.InterpretedIntent `json:"interpretedIntent"`
	Recommendations   []domain.PublicProduct  `json:"recommendations"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "giftfinder-backend",
		"version": "1.0.0",
	})
}

// ReadinessCheck reports whether the service can serve searches. With no
// providers registered there is nothing to aggregate, so readiness fails.
// An unreachable LLM only marks the component degraded: searches still work
// through the interpreter's fallback intent.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	names := h.providers.Names()
	if len(names) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "no providers registered",
		})
		return
	}

	body := gin.H{
		"status":    "ready",
		"providers": names,
	}
	if h.cache != nil {
		body["cacheEntries"] = h.cache.Size()
	}
	if h.llm != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.llm.Ping(ctx); err != nil {
			body["llm"] = "degraded"
		} else {
			body["llm"] = "ok"
		}
	}

	c.JSON(http.StatusOK, body)
}

// SearchGifts handles gift search requests: validates the free-text query,
// interprets it into a structured intent, runs the aggregation pipeline, and
// returns ranked recommendations.
func (h *Handler) SearchGifts(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: query is required"})
		return
	}

	query := strings.TrimSpace(req.Query)
	if msg, ok := validateQuery(query); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	requestID := c.GetString("request_id")
	log := h.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"query_len":  len(query),
	})
	log.Info("Gift search started")

	intent := h.interpreter.Interpret(c.Request.Context(), query)

	productQuery := buildProductQuery(intent, query, req.Debug)

	products := h.searcher.SearchProducts(c.Request.Context(), productQuery)

	recommendations := make([]domain.PublicProduct, 0, len(products))
	for _, p := range products {
		recommendations = append(recommendations, domain.ToPublicProduct(p, req.Debug))
	}

	log.WithField("results", len(recommendations)).Info("Gift search finished")

	c.JSON(http.StatusOK, searchResponse{
		RequestID:         requestID,
		InterpretedIntent: intent,
		Recommendations:   recommendations,
	})
}

// validateQuery enforces length and character-set limits on raw user text.
func validateQuery(query string) (string, bool) {
	runes := []rune(query)
	if len(runes) < minQueryLength {
		return "Query too short: minimum 3 characters", false
	}
	if len(runes) > maxQueryLength {
		return "Query too long: maximum 500 characters", false
	}
	if !safeQueryRegex.MatchString(query) {
		return "Query contains unsupported characters", false
	}
	return "", true
}

// buildProductQuery maps an interpreted intent onto the structured query the
// aggregation pipeline consumes. Interests become keywords; with none, the
// raw text itself is the keyword.
func buildProductQuery(intent domain.InterpretedIntent, rawQuery string, debug bool) domain.ProductQuery {
	keywords := intent.Interests
	if len(keywords) == 0 {
		keywords = []string{rawQuery}
	}

	query := domain.NewProductQuery(keywords)
	query.PriceMin = intent.BudgetMin
	query.PriceMax = intent.BudgetMax
	query.Currency = "ARS"
	query.Locale = "es-AR"
	query.Recipient = domain.RecipientProfile{
		Type:      intent.RecipientType,
		Age:       intent.Age,
		Interests: intent.Interests,
	}
	query.Limit = searchResponseLimit
	query.Debug = debug
	return query
}
