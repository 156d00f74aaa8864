package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
)

// mockfeed prints provider-shaped JSON payloads for local development, so
// the API can be pointed at a static file server instead of live upstreams.

type oddsAPIEvent struct {
	ID           string `json:"id"`
	SportKey     string `json:"sport_key"`
	CommenceTime string `json:"commence_time"`
	HomeTeam     string `json:"home_team"`
	AwayTeam     string `json:"away_team"`
}

type cfbdLine struct {
	ID        int64          `json:"id"`
	Season    int            `json:"season"`
	Week      int            `json:"week"`
	HomeTeam  string         `json:"homeTeam"`
	AwayTeam  string         `json:"awayTeam"`
	StartDate string         `json:"startDate"`
	Lines     []cfbdBookLine `json:"lines"`
}

type cfbdBookLine struct {
	Provider  string   `json:"provider"`
	Spread    *float64 `json:"spread"`
	OverUnder *float64 `json:"overUnder"`
}

func ptr(v float64) *float64 { return &v }

func main() {
	provider := flag.String("provider", "oddsapi", "payload shape to emit: oddsapi or cfbd")
	week := flag.Int("week", 1, "week number stamped on cfbd rows")
	year := flag.Int("year", time.Now().Year(), "season stamped on cfbd rows")
	flag.Parse()

	kickoff := time.Date(*year, time.September, 6, 19, 30, 0, 0, time.UTC)

	var payload any
	switch *provider {
	case "oddsapi":
		payload = []oddsAPIEvent{
			{ID: "feed-1", SportKey: "americanfootball_ncaaf", CommenceTime: kickoff.Format(time.RFC3339), HomeTeam: "Penn State", AwayTeam: "Illinois"},
			{ID: "feed-2", SportKey: "americanfootball_ncaaf", CommenceTime: kickoff.Add(3 * time.Hour).Format(time.RFC3339), HomeTeam: "Texas", AwayTeam: "Rice"},
		}
	case "cfbd":
		payload = []cfbdLine{
			{
				ID: 401, Season: *year, Week: *week,
				HomeTeam: "Penn State", AwayTeam: "Illinois",
				StartDate: kickoff.Format(time.RFC3339),
				Lines:     []cfbdBookLine{{Provider: "Bovada", Spread: ptr(-3.5), OverUnder: ptr(48)}},
			},
			{
				ID: 402, Season: *year, Week: *week,
				HomeTeam: "Texas", AwayTeam: "Rice",
				StartDate: kickoff.Add(3 * time.Hour).Format(time.RFC3339),
				Lines:     []cfbdBookLine{},
			},
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown provider %q (want oddsapi or cfbd)\n", *provider)
		os.Exit(2)
	}

	out, err := sonic.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
