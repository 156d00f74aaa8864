package cfbd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/delphiedge/gridline/internal/platform/logging"
	"github.com/delphiedge/gridline/internal/platform/resilience"
	"github.com/delphiedge/gridline/internal/usecase"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		BaseURL:        server.URL,
		Timeout:        2 * time.Second,
		Logger:         logging.NewNop(),
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: false},
	})
}

func TestFetchGames_MapsLineRecords(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("year") != "2025" || q.Get("week") != "2" || q.Get("seasonType") != "regular" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"id":101,"season":2025,"week":2,
				"homeTeam":"Texas","awayTeam":"Iowa State",
				"startDate":"2025-09-06T19:30:00.000Z",
				"lines":[
					{"provider":"consensus","spread":null,"overUnder":null},
					{"provider":"Bovada","spread":-10.5,"overUnder":55,"formattedSpread":"Texas -10.5"},
					{"provider":"DraftKings","spread":-9.5,"overUnder":54.5}
				]
			},
			{
				"id":102,"season":2025,"week":2,
				"homeTeam":"Oregon","awayTeam":"UCLA",
				"startDate":"2025-09-06T22:00:00.000Z",
				"lines":[]
			},
			{"id":103,"season":2025,"week":3,"homeTeam":"Utah","awayTeam":"Baylor","lines":[]},
			{"id":104,"season":2025,"week":2,"homeTeam":"","awayTeam":"Ghost","lines":[]}
		]`))
	})

	games, err := client.FetchGames(context.Background(), "cfb", 2, 2025)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 usable records, got %d", len(games))
	}

	texas := games[0]
	if texas.Spread == nil || *texas.Spread != -10.5 || texas.Total == nil || *texas.Total != 55 {
		t.Fatalf("expected first priced book to win, got %+v", texas)
	}
	want := time.Date(2025, 9, 6, 19, 30, 0, 0, time.UTC)
	if !texas.Kickoff.Equal(want) {
		t.Fatalf("expected kickoff %v, got %v", want, texas.Kickoff)
	}

	oregon := games[1]
	if oregon.Spread != nil || oregon.Total != nil {
		t.Fatalf("expected unpriced record, got %+v", oregon)
	}
}

func TestFetchGames_UpstreamStatusFailure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"year is required"}`))
	})

	_, err := client.FetchGames(context.Background(), "cfb", 2, 2025)
	var perr *usecase.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.StatusCode != http.StatusBadRequest || perr.Provider != ProviderName {
		t.Fatalf("unexpected provider error %+v", perr)
	}
}

func TestFetchGames_RejectsOtherLeagues(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.FetchGames(context.Background(), "nfl", 2, 2025)
	var perr *usecase.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestFetchGames_MalformedPayload(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"`))
	})

	_, err := client.FetchGames(context.Background(), "cfb", 2, 2025)
	var perr *usecase.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError for malformed payload, got %v", err)
	}
	if perr.StatusCode != 0 {
		t.Fatalf("format failure carries no status, got %d", perr.StatusCode)
	}
}
