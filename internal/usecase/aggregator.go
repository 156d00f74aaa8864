package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/delphiedge/gridline/internal/domain/board"
	"github.com/delphiedge/gridline/internal/platform/logging"
)

// Aggregator drives the provider adapters in priority order and reconciles
// their records into one canonical set per request. Primary identity fields
// are written once; lower-priority providers only fill markets the primary
// left unpriced. Aggregators hold no per-request state and are safe for
// concurrent use.
type Aggregator struct {
	primary      GamesFetcher
	primaryLines LinesFetcher
	secondary    GamesFetcher
	tertiary     GamesFetcher
	logger       *logging.Logger
	now          func() time.Time
}

// NewAggregator wires the provider chain. primaryLines and tertiary may be
// nil when the primary serves odds inline or no HTML fallback is deployed.
func NewAggregator(primary GamesFetcher, primaryLines LinesFetcher, secondary GamesFetcher, tertiary GamesFetcher, logger *logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Aggregator{
		primary:      primary,
		primaryLines: primaryLines,
		secondary:    secondary,
		tertiary:     tertiary,
		logger:       logger,
		now:          time.Now,
	}
}

// Aggregate runs one full pass: primary schedule and odds concurrently,
// fallback fill from the secondary, then the tertiary. A dead primary
// degrades the whole run to the secondary's schedule; only when that fails
// too does the request fail.
func (a *Aggregator) Aggregate(ctx context.Context, league string, week, year int) ([]board.Event, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.Aggregator.Aggregate")
	defer span.End()

	pulledAt := a.now().UTC()

	var (
		games    []board.RawGame
		lines    []board.RawGame
		gamesErr error
		linesErr error
	)

	var wg conc.WaitGroup
	wg.Go(func() {
		games, gamesErr = a.primary.FetchGames(ctx, league, week, year)
	})
	if a.primaryLines != nil {
		wg.Go(func() {
			lines, linesErr = a.primaryLines.FetchLines(ctx, league, week, year)
		})
	}
	wg.Wait()

	if gamesErr != nil {
		a.logger.WarnContext(ctx, "primary provider failed, degrading to secondary",
			"provider", a.primary.Provider(),
			"league", league,
			"week", week,
			"err", gamesErr,
		)
		return a.degraded(ctx, league, week, year, pulledAt, gamesErr)
	}
	if linesErr != nil {
		// Schedule survived; the odds call alone failing just means every
		// market starts unpriced and the fallback chain does the work.
		a.logger.WarnContext(ctx, "primary odds fetch failed, markets start unpriced",
			"provider", a.primary.Provider(),
			"league", league,
			"week", week,
			"err", linesErr,
		)
		lines = nil
	}

	events, err := board.BuildEvents(league, week, games, pulledAt)
	if err != nil {
		return nil, &AggregationError{
			Code:   CodeScrapeFailed,
			Detail: fmt.Sprintf("primary %s returned unusable schedule: %v", a.primary.Provider(), err),
		}
	}

	fillFromIndex(events, board.IndexByKey(lines))
	a.fillFromProvider(ctx, a.secondary, events, league, week, year)
	if a.tertiary != nil {
		a.fillFromProvider(ctx, a.tertiary, events, league, week, year)
	}

	return events, nil
}

// degraded treats the secondary adapter as the sole source: its schedule and
// whatever lines it carries become the result, with no further fill passes.
func (a *Aggregator) degraded(ctx context.Context, league string, week, year int, pulledAt time.Time, primaryErr error) ([]board.Event, error) {
	games, err := a.secondary.FetchGames(ctx, league, week, year)
	if err != nil {
		return nil, &AggregationError{
			Code:   failureCode(err),
			Detail: fmt.Sprintf("primary: %v; secondary: %v", primaryErr, err),
		}
	}

	events, buildErr := board.BuildEvents(league, week, games, pulledAt)
	if buildErr != nil {
		return nil, &AggregationError{
			Code:   CodeScrapeFailed,
			Detail: fmt.Sprintf("secondary %s returned unusable schedule: %v", a.secondary.Provider(), buildErr),
		}
	}

	return events, nil
}

// fillFromProvider queries one fallback adapter and fills still-unpriced
// markets. Adapter failure here is non-fatal: affected events keep their
// unpriced market and are returned anyway.
func (a *Aggregator) fillFromProvider(ctx context.Context, provider GamesFetcher, events []board.Event, league string, week, year int) {
	if !anyUnpriced(events) {
		return
	}

	games, err := provider.FetchGames(ctx, league, week, year)
	if err != nil {
		a.logger.WarnContext(ctx, "fallback provider failed, affected markets stay unpriced",
			"provider", provider.Provider(),
			"league", league,
			"week", week,
			"err", err,
		)
		return
	}

	fillFromIndex(events, board.IndexByKey(games))
}

func fillFromIndex(events []board.Event, index map[string]board.RawGame) {
	if len(index) == 0 {
		return
	}
	for i := range events {
		if events[i].Market.Priced {
			continue
		}
		if candidate, ok := index[board.MatchKey(events[i].HomeTeam, events[i].AwayTeam)]; ok {
			events[i].Fill(candidate)
		}
	}
}

func anyUnpriced(events []board.Event) bool {
	for i := range events {
		if !events[i].Market.Priced {
			return true
		}
	}
	return false
}

// failureCode distinguishes a fallback provider rejecting the request with an
// HTTP status from lower-level transport failures.
func failureCode(err error) string {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.StatusCode > 0 {
		return CodeFallbackBadStatus
	}
	return CodeScrapeFailed
}
