package app

import (
	"fmt"
	"net/http"

	"github.com/delphiedge/gridline/external/analyzer"
	"github.com/delphiedge/gridline/external/cfbd"
	"github.com/delphiedge/gridline/external/oddsapi"
	"github.com/delphiedge/gridline/external/sidearm"
	"github.com/delphiedge/gridline/internal/config"
	"github.com/delphiedge/gridline/internal/interfaces/httpapi"
	"github.com/delphiedge/gridline/internal/platform/cache"
	"github.com/delphiedge/gridline/internal/platform/logging"
	"github.com/delphiedge/gridline/internal/usecase"
)

// NewHTTPServer wires providers, the aggregator, and the HTTP handler into
// a ready-to-run server.
func NewHTTPServer(cfg config.Config, logger *logging.Logger) (*http.Server, error) {
	if logger == nil {
		logger = logging.Default()
	}

	oddsClient := oddsapi.NewClient(oddsapi.ClientConfig{
		BaseURL:        cfg.OddsAPIBaseURL,
		APIKey:         cfg.OddsAPIKey,
		Timeout:        cfg.OddsAPITimeout,
		MaxRetries:     cfg.OddsAPIMaxRetries,
		Logger:         logger,
		CircuitBreaker: cfg.OddsAPICircuit,
	})

	cfbdClient := cfbd.NewClient(cfbd.ClientConfig{
		BaseURL:        cfg.CFBDBaseURL,
		Timeout:        cfg.CFBDTimeout,
		MaxRetries:     cfg.CFBDMaxRetries,
		Logger:         logger,
		CircuitBreaker: cfg.CFBDCircuit,
	})

	var tertiary usecase.GamesFetcher
	if cfg.SidearmEnabled {
		tertiary = sidearm.NewScraper(logger)
	}

	aggregator := usecase.NewAggregator(oddsClient, oddsClient, cfbdClient, tertiary, logger)

	var store *cache.Store
	if cfg.CacheEnabled {
		store = cache.NewStore(cfg.CacheTTL)
	}

	var analyzerClient *analyzer.Client
	var publisher usecase.InsightPublisher
	if cfg.AnalyzerEnabled {
		analyzerClient = analyzer.NewClient(analyzer.ClientConfig{
			BaseURL:        cfg.AnalyzerBaseURL,
			Timeout:        cfg.AnalyzerTimeout,
			ChunkSize:      cfg.AnalyzerChunkSize,
			MaxWorkers:     cfg.AnalyzerMaxWorkers,
			Logger:         logger,
			CircuitBreaker: cfg.AnalyzerCircuit,
		})
		publisher = analyzerClient
	}

	scrapeSvc := usecase.NewScrapeService(aggregator, store, publisher, cfg.SupportedLeagues, cfg.DefaultYear, logger)

	var insight httpapi.InsightAnalyzer
	if analyzerClient != nil {
		insight = analyzerClient
	}
	handler := httpapi.NewHandler(scrapeSvc, insight, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return server, nil
}
