package usecase

import (
	"context"

	"github.com/delphiedge/gridline/internal/domain/board"
)

// GamesFetcher is one upstream provider's schedule endpoint. Returned records
// may carry the provider's own lines. Failures are reported as *ProviderError.
type GamesFetcher interface {
	Provider() string
	FetchGames(ctx context.Context, league string, week, year int) ([]board.RawGame, error)
}

// LinesFetcher is a provider's separate odds endpoint, for providers that
// split schedule and market data across two calls.
type LinesFetcher interface {
	FetchLines(ctx context.Context, league string, week, year int) ([]board.RawGame, error)
}
