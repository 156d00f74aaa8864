package board

import "strings"

const keySeparator = "@"

// NormalizeTeam lower-cases a team name and collapses internal whitespace so
// that cosmetic differences between providers do not split one game in two.
// Differing spellings ("Penn St." vs "Penn State") still produce different
// keys; cross-provider reconciliation is exact-match only, not fuzzy.
func NormalizeTeam(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// MatchKey derives the join key used to correlate records from different
// providers that describe the same real-world game. Pure function of the two
// display names.
func MatchKey(home, away string) string {
	return NormalizeTeam(home) + keySeparator + NormalizeTeam(away)
}

// EventID is the external identity of a canonical event, stable across
// repeated aggregation runs for the same matchup.
func EventID(league, home, away string) string {
	return league + ":" + MatchKey(home, away)
}
