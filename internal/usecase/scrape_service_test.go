package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/delphiedge/gridline/internal/domain/board"
	"github.com/delphiedge/gridline/internal/platform/cache"
	"github.com/delphiedge/gridline/internal/platform/logging"
)

type stubAggregator struct {
	events []board.Event
	err    error
	calls  int32

	lastWeek int
	lastYear int
}

func (s *stubAggregator) Aggregate(_ context.Context, _ string, week, year int) ([]board.Event, error) {
	atomic.AddInt32(&s.calls, 1)
	s.lastWeek = week
	s.lastYear = year
	return s.events, s.err
}

type stubPublisher struct {
	published chan ScrapeResult
}

func (s *stubPublisher) Publish(_ context.Context, result ScrapeResult) error {
	s.published <- result
	return nil
}

func TestScrape_ValidationRejectsBeforeAggregation(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		league   string
		week     string
		year     string
		wantCode string
	}{
		{name: "missing league", league: "", week: "2", wantCode: CodeMissingLeague},
		{name: "unsupported league", league: "nfl", week: "2", wantCode: CodeUnsupportedLeague},
		{name: "missing week", league: "cfb", week: "", wantCode: CodeMissingWeek},
		{name: "non-numeric week", league: "cfb", week: "two", wantCode: CodeInvalidWeek},
		{name: "non-positive week", league: "cfb", week: "0", wantCode: CodeInvalidWeek},
		{name: "non-numeric year", league: "cfb", week: "2", year: "20x5", wantCode: CodeInvalidYear},
		{name: "non-positive year", league: "cfb", week: "2", year: "-1", wantCode: CodeInvalidYear},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			agg := &stubAggregator{}
			svc := NewScrapeService(agg, nil, nil, []string{"cfb"}, 2025, logging.NewNop())

			_, err := svc.Scrape(context.Background(), tc.league, tc.week, tc.year)
			var reqErr *InvalidRequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected InvalidRequestError, got %v", err)
			}
			if reqErr.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, reqErr.Code)
			}
			if atomic.LoadInt32(&agg.calls) != 0 {
				t.Fatal("aggregator must not run for an invalid request")
			}
		})
	}
}

func TestScrape_LeagueIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	agg := &stubAggregator{}
	svc := NewScrapeService(agg, nil, nil, []string{"cfb"}, 2025, logging.NewNop())

	result, err := svc.Scrape(context.Background(), " CFB ", "2", "2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.League != "cfb" {
		t.Fatalf("expected normalized league, got %q", result.League)
	}
}

func TestScrape_YearDefaultsWhenOmitted(t *testing.T) {
	t.Parallel()

	agg := &stubAggregator{}
	svc := NewScrapeService(agg, nil, nil, []string{"cfb"}, 2025, logging.NewNop())

	result, err := svc.Scrape(context.Background(), "cfb", "2", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Year != 2025 || agg.lastYear != 2025 {
		t.Fatalf("expected default year 2025, got result=%d aggregator=%d", result.Year, agg.lastYear)
	}
}

func TestScrape_ZeroDefaultYearUsesCurrentYear(t *testing.T) {
	t.Parallel()

	agg := &stubAggregator{}
	svc := NewScrapeService(agg, nil, nil, []string{"cfb"}, 0, logging.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 9, 6, 12, 0, 0, 0, time.UTC) }

	result, err := svc.Scrape(context.Background(), "cfb", "2", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Year != 2025 {
		t.Fatalf("expected current year, got %d", result.Year)
	}
}

func TestScrape_EmptyResultKeepsGamesArray(t *testing.T) {
	t.Parallel()

	svc := NewScrapeService(&stubAggregator{}, nil, nil, []string{"cfb"}, 2025, logging.NewNop())

	result, err := svc.Scrape(context.Background(), "cfb", "14", "2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Games == nil {
		t.Fatal("games must be an empty array, not absent")
	}
	if len(result.Games) != 0 {
		t.Fatalf("expected no games, got %d", len(result.Games))
	}
}

func TestScrape_AggregationErrorPassesThrough(t *testing.T) {
	t.Parallel()

	agg := &stubAggregator{err: &AggregationError{Code: CodeScrapeFailed, Detail: "both providers down"}}
	svc := NewScrapeService(agg, nil, nil, []string{"cfb"}, 2025, logging.NewNop())

	_, err := svc.Scrape(context.Background(), "cfb", "2", "2025")
	var aggErr *AggregationError
	if !errors.As(err, &aggErr) || aggErr.Code != CodeScrapeFailed {
		t.Fatalf("expected AggregationError passthrough, got %v", err)
	}
}

func TestScrape_CacheSkipsRepeatAggregation(t *testing.T) {
	t.Parallel()

	agg := &stubAggregator{events: []board.Event{
		board.NewEvent("cfb", 2, board.RawGame{Home: "Texas", Away: "Iowa State"}, time.Now()),
	}}
	svc := NewScrapeService(agg, cache.NewStore(time.Minute), nil, []string{"cfb"}, 2025, logging.NewNop())

	if _, err := svc.Scrape(context.Background(), "cfb", "2", "2025"); err != nil {
		t.Fatalf("first scrape: %v", err)
	}
	if _, err := svc.Scrape(context.Background(), "cfb", "2", "2025"); err != nil {
		t.Fatalf("second scrape: %v", err)
	}

	if got := atomic.LoadInt32(&agg.calls); got != 1 {
		t.Fatalf("aggregator ran %d times, want 1", got)
	}
}

func TestScrape_NotifiesAnalyzer(t *testing.T) {
	t.Parallel()

	agg := &stubAggregator{events: []board.Event{
		board.NewEvent("cfb", 2, board.RawGame{Home: "Texas", Away: "Iowa State"}, time.Now()),
	}}
	publisher := &stubPublisher{published: make(chan ScrapeResult, 1)}
	svc := NewScrapeService(agg, nil, publisher, []string{"cfb"}, 2025, logging.NewNop())

	if _, err := svc.Scrape(context.Background(), "cfb", "2", "2025"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case result := <-publisher.published:
		if len(result.Games) != 1 {
			t.Fatalf("expected 1 published game, got %d", len(result.Games))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("analyzer was never notified")
	}
}
