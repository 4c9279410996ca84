package engine

import "padel-rating/internal/domain"

// TeamResolution is the outcome of extracting the two sides of a match from
// whichever shape the record carries.
type TeamResolution int

const (
	// ResolvedExplicit means the record carried explicit team ID arrays.
	ResolvedExplicit TeamResolution = iota
	// ResolvedLegacySlots means the four discrete participant slots were
	// mapped two-and-two into teams.
	ResolvedLegacySlots
	// Unresolvable means no participant identifiers could be found.
	Unresolvable
)

// Teams holds the resolved sides of a match.
type Teams struct {
	A, B []string
	Kind TeamResolution
}

// ResolveTeams extracts team membership in strict priority order: explicit ID
// arrays first, then the legacy participant slots. Empty slots are dropped
// rather than kept as blanks.
func ResolveTeams(m *domain.MatchRecord) Teams {
	if len(m.TeamAIDs) > 0 || len(m.TeamBIDs) > 0 {
		return Teams{A: m.TeamAIDs, B: m.TeamBIDs, Kind: ResolvedExplicit}
	}

	a := compact(m.Player1, m.Player2)
	b := compact(m.Player3, m.Player4)
	if len(a) > 0 || len(b) > 0 {
		return Teams{A: a, B: b, Kind: ResolvedLegacySlots}
	}

	return Teams{Kind: Unresolvable}
}

func compact(ids ...string) []string {
	var out []string
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
