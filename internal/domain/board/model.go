package board

import (
	"time"
)

// Market is the best-known betting line for an event. Priced reports whether
// any provider has supplied the pair yet; a genuine pick'em (spread 0) with
// Priced set is distinct from an event no book has priced.
type Market struct {
	Spread float64 `json:"spread"`
	Total  float64 `json:"total"`
	Priced bool    `json:"-"`
}

// Event is the normalized, provider-independent form of one scheduled matchup.
// Identity fields are written once by the highest-priority provider that
// returned the game; only the market may be filled in afterwards.
type Event struct {
	ID       string            `json:"id"`
	League   string            `json:"league"`
	Week     int               `json:"week"`
	HomeTeam string            `json:"homeTeam"`
	AwayTeam string            `json:"awayTeam"`
	Kickoff  time.Time         `json:"kickoff"`
	Market   Market            `json:"market"`
	TeamForm map[string]string `json:"teamForm"`
	Notes    []string          `json:"notes"`
	PulledAt time.Time         `json:"pulledAt"`
}

// RawGame is the common pre-merge shape every provider adapter maps its
// upstream response into. Nil spread/total means the provider did not price
// the game, which is valid data, not a provider failure.
type RawGame struct {
	Home    string
	Away    string
	Kickoff time.Time
	Spread  *float64
	Total   *float64
}

// Priced reports whether the record carries at least one market number.
func (g RawGame) Priced() bool {
	return g.Spread != nil || g.Total != nil
}
