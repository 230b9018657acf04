package domain

import "errors"

var (
	// ErrProviderNotFound is returned when a registry lookup misses.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrCacheMiss is returned when data is not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidQuery is returned when request parameters are invalid.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrFetchBlocked is returned when the upstream site refuses the scrape.
	ErrFetchBlocked = errors.New("upstream blocked the request")

	// ErrLLMUnavailable is returned when the language model cannot be reached.
	ErrLLMUnavailable = errors.New("language model unavailable")
)
