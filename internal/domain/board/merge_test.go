package board

import (
	"errors"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }

func TestNewEventDefaultsKickoffToPullTime(t *testing.T) {
	t.Parallel()

	pulledAt := time.Date(2025, 9, 6, 12, 0, 0, 0, time.UTC)
	ev := NewEvent("cfb", 2, RawGame{Home: "Texas", Away: "Iowa State"}, pulledAt)

	if !ev.Kickoff.Equal(pulledAt) {
		t.Fatalf("expected kickoff %v, got %v", pulledAt, ev.Kickoff)
	}
	if ev.Market.Priced {
		t.Fatal("event without lines must not be priced")
	}
	if ev.TeamForm == nil || ev.Notes == nil {
		t.Fatal("teamForm and notes must be present, not nil")
	}
}

func TestNewEventSeedsOwnMarket(t *testing.T) {
	t.Parallel()

	ev := NewEvent("cfb", 2, RawGame{
		Home:   "Penn State",
		Away:   "Illinois",
		Spread: floatPtr(3.5),
		Total:  floatPtr(48),
	}, time.Now())

	if !ev.Market.Priced || ev.Market.Spread != 3.5 || ev.Market.Total != 48 {
		t.Fatalf("unexpected market %+v", ev.Market)
	}
}

func TestFillKeepsPrimaryMarket(t *testing.T) {
	t.Parallel()

	ev := NewEvent("cfb", 2, RawGame{Home: "Penn State", Away: "Illinois", Spread: floatPtr(3.5)}, time.Now())
	changed := ev.Fill(RawGame{Home: "Penn State", Away: "Illinois", Spread: floatPtr(7)})

	if changed {
		t.Fatal("priced market must not be overwritten")
	}
	if ev.Market.Spread != 3.5 {
		t.Fatalf("expected spread 3.5, got %v", ev.Market.Spread)
	}
}

func TestFillMovesSpreadAndTotalAsPair(t *testing.T) {
	t.Parallel()

	ev := NewEvent("cfb", 2, RawGame{Home: "Texas", Away: "Iowa State"}, time.Now())
	if !ev.Fill(RawGame{Spread: floatPtr(-3.5), Total: floatPtr(51)}) {
		t.Fatal("expected fill to apply")
	}
	if ev.Market.Spread != -3.5 || ev.Market.Total != 51 {
		t.Fatalf("unexpected market %+v", ev.Market)
	}

	// A later candidate must not complete the pair from a second source.
	if ev.Fill(RawGame{Total: floatPtr(55)}) {
		t.Fatal("second fill must be rejected")
	}
	if ev.Market.Total != 51 {
		t.Fatalf("expected total 51, got %v", ev.Market.Total)
	}
}

func TestFillIsIdempotent(t *testing.T) {
	t.Parallel()

	candidate := RawGame{Spread: floatPtr(-10.5), Total: floatPtr(55)}
	ev := NewEvent("cfb", 2, RawGame{Home: "Texas", Away: "Iowa State"}, time.Now())

	ev.Fill(candidate)
	first := ev.Market
	ev.Fill(candidate)

	if ev.Market != first {
		t.Fatalf("market changed on repeat fill: %+v vs %+v", first, ev.Market)
	}
}

func TestFillAcceptsZeroValuedLine(t *testing.T) {
	t.Parallel()

	ev := NewEvent("cfb", 2, RawGame{Home: "Texas", Away: "Iowa State"}, time.Now())
	if !ev.Fill(RawGame{Spread: floatPtr(0), Total: floatPtr(44.5)}) {
		t.Fatal("a pick'em spread is a real line and must apply")
	}
	if !ev.Market.Priced || ev.Market.Spread != 0 {
		t.Fatalf("unexpected market %+v", ev.Market)
	}
}

func TestFillIgnoresUnpricedCandidate(t *testing.T) {
	t.Parallel()

	ev := NewEvent("cfb", 2, RawGame{Home: "Texas", Away: "Iowa State"}, time.Now())
	if ev.Fill(RawGame{Home: "Texas", Away: "Iowa State"}) {
		t.Fatal("candidate without lines must not mark the market priced")
	}
}

func TestBuildEventsDetectsCollisions(t *testing.T) {
	t.Parallel()

	_, err := BuildEvents("cfb", 2, []RawGame{
		{Home: "Penn State", Away: "Illinois"},
		{Home: " penn  STATE ", Away: "illinois"},
	}, time.Now())

	if !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}
}

func TestBuildEventsOrdersByKickoff(t *testing.T) {
	t.Parallel()

	pulledAt := time.Date(2025, 9, 6, 12, 0, 0, 0, time.UTC)
	events, err := BuildEvents("cfb", 2, []RawGame{
		{Home: "Texas", Away: "Iowa State", Kickoff: pulledAt.Add(4 * time.Hour)},
		{Home: "Penn State", Away: "Illinois", Kickoff: pulledAt.Add(time.Hour)},
	}, pulledAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events[0].HomeTeam != "Penn State" {
		t.Fatalf("expected earliest kickoff first, got %s", events[0].HomeTeam)
	}
}

func TestIndexByKeyFirstPricedWins(t *testing.T) {
	t.Parallel()

	index := IndexByKey([]RawGame{
		{Home: "Penn State", Away: "Illinois"},
		{Home: "Penn State", Away: "Illinois", Spread: floatPtr(3.5)},
		{Home: "Penn State", Away: "Illinois", Spread: floatPtr(7)},
	})

	raw, ok := index[MatchKey("Penn State", "Illinois")]
	if !ok {
		t.Fatal("expected an index entry")
	}
	if raw.Spread == nil || *raw.Spread != 3.5 {
		t.Fatalf("expected first priced entry to win, got %+v", raw)
	}
}
