// Package sidearm is the HTML-scraping fallback slot in the provider chain.
// Team athletics sites publish schedules through a handful of common CMS
// layouts; scraping them needs per-school markup knowledge this service does
// not carry yet, so the scraper satisfies the provider contract and
// contributes nothing.
package sidearm

import (
	"context"

	"github.com/delphiedge/gridline/internal/domain/board"
	"github.com/delphiedge/gridline/internal/platform/logging"
)

const ProviderName = "sidearm"

type Scraper struct {
	logger *logging.Logger
}

func NewScraper(logger *logging.Logger) *Scraper {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scraper{logger: logger}
}

func (s *Scraper) Provider() string { return ProviderName }

// FetchGames returns no records. The orchestrator treats an empty result the
// same as a provider with nothing to add, so events the earlier providers
// could not price simply stay unpriced.
func (s *Scraper) FetchGames(ctx context.Context, league string, week, year int) ([]board.RawGame, error) {
	s.logger.DebugContext(ctx, "html fallback has no scraping backend, returning no records",
		"league", league,
		"week", week,
		"year", year,
	)
	return nil, nil
}
