package domain

import (
	"context"
	"time"
)

// ProviderCapabilities declares what features a provider supports. The flags
// are advertised, not enforced: callers may use them for routing decisions
// but providers stay responsible for their own behavior.
type ProviderCapabilities struct {
	SupportsImages      bool `json:"supportsImages"`
	SupportsPriceFilter bool `json:"supportsPriceFilter"`
	SupportsLocation    bool `json:"supportsLocation"`
	SupportsStock       bool `json:"supportsStock"`
	SupportsDeepLink    bool `json:"supportsDeepLink"`
	SupportsCategories  bool `json:"supportsCategories"`
	SupportsRatings     bool `json:"supportsRatings"`
	SupportsShipping    bool `json:"supportsShipping"`
}

// ProviderMetadata is a provider's self-report about one search call.
type ProviderMetadata struct {
	ProviderName string    `json:"providerName"`
	FetchedAt    time.Time `json:"fetchedAt"`
	LatencyMs    int64     `json:"latencyMs"`
	Warnings     []string  `json:"warnings"`
}

// ProviderResult is what every provider search resolves to. Soft failures
// (unsupported query, timeout, upstream error, no results) surface as
// warnings with an empty product list, never as an error.
type ProviderResult struct {
	Products []Product        `json:"products"`
	Meta     ProviderMetadata `json:"meta"`
}

// EmptyResult builds the zero-product result shape used by every soft-failure
// path in the pipeline.
func EmptyResult(providerName string, latency time.Duration, warnings ...string) ProviderResult {
	return ProviderResult{
		Products: []Product{},
		Meta: ProviderMetadata{
			ProviderName: providerName,
			FetchedAt:    time.Now(),
			LatencyMs:    latency.Milliseconds(),
			Warnings:     warnings,
		},
	}
}

// Provider is the capability contract every product data source implements.
//
// Supports must be cheap, synchronous, and free of I/O; it decides whether a
// network call is attempted at all. Search is the only operation allowed to
// perform I/O, and it has no error return on purpose: any internal failure is
// converted into an empty ProviderResult with a descriptive warning. One
// provider's failure can never abort the aggregate request.
type Provider interface {
	Name() string
	Capabilities() ProviderCapabilities
	Supports(query ProductQuery) bool
	Search(ctx context.Context, query ProductQuery) ProviderResult
}

// QueryInterpreter turns raw user text into a structured intent. It never
// fails: implementations absorb every internal error into a deterministic
// fallback intent.
type QueryInterpreter interface {
	Interpret(ctx context.Context, text string) InterpretedIntent
}
