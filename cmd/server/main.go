package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/giftfinder/scraper/config"
	httpDelivery "github.com/giftfinder/scraper/internal/delivery/http"
	"github.com/giftfinder/scraper/internal/domain"
	"github.com/giftfinder/scraper/internal/infrastructure/cache"
	"github.com/giftfinder/scraper/internal/infrastructure/mercadolibre"
	"github.com/giftfinder/scraper/internal/infrastructure/ollama"
	"github.com/giftfinder/scraper/internal/infrastructure/reference"
	"github.com/giftfinder/scraper/internal/monitoring"
	"github.com/giftfinder/scraper/internal/usecase"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	if cfg.Server.Environment == "development" {
		log.SetLevel(logrus.DebugLevel)
	}

	log.WithFields(logrus.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"providers":   cfg.Providers.Enabled,
	}).Info("Starting GiftFinder backend v1.0.0")

	// Metrics registry shared by collectors and the /metrics endpoint
	promRegistry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(promRegistry)

	// Infrastructure dependencies
	memoryCache := cache.NewMemoryCache(cfg.Cache.MaxSize)
	log.WithFields(logrus.Fields{
		"ttl":      cfg.Cache.TTL,
		"max_size": cfg.Cache.MaxSize,
	}).Info("Cache initialized")

	scraperClient := mercadolibre.NewClient(mercadolibre.ClientConfig{
		BaseURL:    cfg.Scraper.BaseURL,
		Timeout:    cfg.Scraper.Timeout,
		MaxRetries: cfg.Scraper.MaxRetries,
		MaxItems:   cfg.Scraper.MaxItems,
		CacheTTL:   cfg.Cache.TTL,
		UserAgent:  cfg.Scraper.UserAgent,
	}, memoryCache, metrics, log)

	referenceProvider := reference.New(log)
	scrapingProvider := mercadolibre.NewProvider(scraperClient, log)

	// Provider registry: reference is the fallback when nothing loads
	registry := usecase.NewRegistry(
		cfg.Providers.Enabled,
		[]domain.Provider{referenceProvider, scrapingProvider},
		referenceProvider,
		log,
	)

	aggregator := usecase.NewAggregator(registry, usecase.AggregatorConfig{
		MaxConcurrentProviders: cfg.Aggregator.MaxConcurrentProviders,
		ProviderTimeout:        cfg.Aggregator.ProviderTimeout,
	}, metrics, log)

	interpreter := ollama.NewInterpreter(ollama.Config{
		Host:           cfg.Ollama.Host,
		Model:          cfg.Ollama.Model,
		Timeout:        cfg.Ollama.Timeout,
		MaxQueryLength: cfg.Ollama.MaxQueryLength,
	}, log)

	log.WithFields(logrus.Fields{
		"host":  cfg.Ollama.Host,
		"model": cfg.Ollama.Model,
	}).Info("Query interpreter configured")

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(aggregator, interpreter, registry, interpreter, memoryCache, log)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, promRegistry, log)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.WithField("addr", addr).Info("Server listening")

	if err := router.Run(addr); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
