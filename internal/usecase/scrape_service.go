package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/delphiedge/gridline/internal/domain/board"
	"github.com/delphiedge/gridline/internal/platform/cache"
	"github.com/delphiedge/gridline/internal/platform/logging"
)

// ScrapeResult is the full response payload for one aggregation run and the
// exact shape handed to the downstream analyzer.
type ScrapeResult struct {
	League   string        `json:"league"`
	Week     int           `json:"week"`
	Year     int           `json:"year"`
	PulledAt time.Time     `json:"pulledAt"`
	Games    []board.Event `json:"games"`
}

// EventAggregator runs one provider-fallback aggregation pass.
type EventAggregator interface {
	Aggregate(ctx context.Context, league string, week, year int) ([]board.Event, error)
}

// InsightPublisher hands a finished result to the downstream analyzer.
type InsightPublisher interface {
	Publish(ctx context.Context, result ScrapeResult) error
}

// ScrapeService validates request selectors, delegates to the orchestrator,
// and optionally caches results and notifies the analyzer. All validation
// happens before any network call.
type ScrapeService struct {
	aggregator  EventAggregator
	store       *cache.Store
	publisher   InsightPublisher
	leagues     map[string]struct{}
	defaultYear int
	logger      *logging.Logger
	now         func() time.Time
}

// NewScrapeService builds the query boundary. store and publisher may be nil
// to disable caching and analyzer notification. defaultYear zero means "the
// current calendar year at request time".
func NewScrapeService(aggregator EventAggregator, store *cache.Store, publisher InsightPublisher, supportedLeagues []string, defaultYear int, logger *logging.Logger) *ScrapeService {
	if logger == nil {
		logger = logging.Default()
	}
	leagues := make(map[string]struct{}, len(supportedLeagues))
	for _, league := range supportedLeagues {
		league = strings.ToLower(strings.TrimSpace(league))
		if league == "" {
			continue
		}
		leagues[league] = struct{}{}
	}
	return &ScrapeService{
		aggregator:  aggregator,
		store:       store,
		publisher:   publisher,
		leagues:     leagues,
		defaultYear: defaultYear,
		logger:      logger,
		now:         time.Now,
	}
}

// Scrape resolves raw query parameters into a validated selector and runs the
// aggregation. A valid request with zero matching games returns an empty
// games array, not an error.
func (s *ScrapeService) Scrape(ctx context.Context, league, week, year string) (ScrapeResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ScrapeService.Scrape")
	defer span.End()

	league = strings.ToLower(strings.TrimSpace(league))
	if league == "" {
		return ScrapeResult{}, &InvalidRequestError{Code: CodeMissingLeague}
	}
	if _, ok := s.leagues[league]; !ok {
		return ScrapeResult{}, &InvalidRequestError{Code: CodeUnsupportedLeague}
	}

	week = strings.TrimSpace(week)
	if week == "" {
		return ScrapeResult{}, &InvalidRequestError{Code: CodeMissingWeek}
	}
	weekNum, err := strconv.Atoi(week)
	if err != nil || weekNum < 1 {
		return ScrapeResult{}, &InvalidRequestError{Code: CodeInvalidWeek}
	}

	yearNum := s.defaultYear
	if yearNum == 0 {
		yearNum = s.now().Year()
	}
	if year = strings.TrimSpace(year); year != "" {
		yearNum, err = strconv.Atoi(year)
		if err != nil || yearNum < 1 {
			return ScrapeResult{}, &InvalidRequestError{Code: CodeInvalidYear}
		}
	}

	if s.store == nil {
		return s.run(ctx, league, weekNum, yearNum)
	}

	key := fmt.Sprintf("scrape:%s:%d:%d", league, weekNum, yearNum)
	value, err := s.store.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.run(ctx, league, weekNum, yearNum)
	})
	if err != nil {
		return ScrapeResult{}, err
	}

	result, ok := value.(ScrapeResult)
	if !ok {
		return ScrapeResult{}, fmt.Errorf("unexpected cache entry for %s", key)
	}
	return result, nil
}

func (s *ScrapeService) run(ctx context.Context, league string, week, year int) (ScrapeResult, error) {
	events, err := s.aggregator.Aggregate(ctx, league, week, year)
	if err != nil {
		return ScrapeResult{}, err
	}
	if events == nil {
		events = []board.Event{}
	}

	result := ScrapeResult{
		League:   league,
		Week:     week,
		Year:     year,
		PulledAt: s.now().UTC(),
		Games:    events,
	}

	if s.publisher != nil && len(result.Games) > 0 {
		s.notifyAnalyzer(ctx, result)
	}

	return result, nil
}

// notifyAnalyzer runs in the background so a slow or dead analyzer never
// delays the response. The caller's deadline is detached on purpose.
func (s *ScrapeService) notifyAnalyzer(ctx context.Context, result ScrapeResult) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.publisher.Publish(ctx, result); err != nil {
			s.logger.WarnContext(ctx, "analyzer notification failed",
				"league", result.League,
				"week", result.Week,
				"games", len(result.Games),
				"err", err,
			)
		}
	}()
}
