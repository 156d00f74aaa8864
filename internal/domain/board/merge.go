package board

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrDuplicateEvent = errors.New("duplicate event in result set")

// NewEvent builds a canonical event from one provider record. A missing
// kickoff is replaced with the pull timestamp; that is a known data-quality
// gap in some upstream feeds, not an error. The record's own market, when
// present, is seeded immediately so the originating provider always wins.
func NewEvent(league string, week int, raw RawGame, pulledAt time.Time) Event {
	kickoff := raw.Kickoff
	if kickoff.IsZero() {
		kickoff = pulledAt
	}
	ev := Event{
		ID:       EventID(league, raw.Home, raw.Away),
		League:   league,
		Week:     week,
		HomeTeam: raw.Home,
		AwayTeam: raw.Away,
		Kickoff:  kickoff.UTC(),
		TeamForm: map[string]string{},
		Notes:    []string{},
		PulledAt: pulledAt.UTC(),
	}
	ev.Fill(raw)
	return ev
}

// Fill copies the candidate's market into the event when the event does not
// carry a priced market yet. Spread and total move together as one pair; the
// pair is never assembled from two different sources. Identity fields are
// never touched. Filling with the same candidate twice is a no-op after the
// first successful fill. Reports whether the event changed.
func (e *Event) Fill(candidate RawGame) bool {
	if e.Market.Priced || !candidate.Priced() {
		return false
	}
	e.Market = Market{Priced: true}
	if candidate.Spread != nil {
		e.Market.Spread = *candidate.Spread
	}
	if candidate.Total != nil {
		e.Market.Total = *candidate.Total
	}
	return true
}

// BuildEvents converts one provider's full schedule into the initial
// canonical set. Two distinct records normalizing to the same home/away pair
// cannot be told apart downstream, so a collision is a fatal data error for
// the whole set rather than a silent overwrite.
func BuildEvents(league string, week int, games []RawGame, pulledAt time.Time) ([]Event, error) {
	events := make([]Event, 0, len(games))
	seen := make(map[string]struct{}, len(games))
	for _, raw := range games {
		ev := NewEvent(league, week, raw, pulledAt)
		if _, ok := seen[ev.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
		}
		seen[ev.ID] = struct{}{}
		events = append(events, ev)
	}
	SortEvents(events)
	return events, nil
}

// IndexByKey maps priced provider records by match key. The first priced
// record per key wins; later entries for the same key are dropped, so source
// order decides ties between books.
func IndexByKey(games []RawGame) map[string]RawGame {
	index := make(map[string]RawGame, len(games))
	for _, raw := range games {
		if !raw.Priced() {
			continue
		}
		key := MatchKey(raw.Home, raw.Away)
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = raw
	}
	return index
}

// SortEvents orders a result set by kickoff, then ID, so repeated runs over
// the same upstream data produce identical output.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Kickoff.Equal(events[j].Kickoff) {
			return events[i].Kickoff.Before(events[j].Kickoff)
		}
		return events[i].ID < events[j].ID
	})
}
