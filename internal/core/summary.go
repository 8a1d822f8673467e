package core

import "strings"

// StandingRow is one participant's externally computed position at a matchday.
type StandingRow struct {
	Matchday       int
	ParticipantID  string
	Name           string
	Team           string
	ExternalRank   int
	AdjustedRank   int
	ExternalPoints float64
	AdjustedPoints float64
}

// DisplayTeam returns the team name or the given placeholder when empty.
func (r StandingRow) DisplayTeam(placeholder string) string {
	if strings.TrimSpace(r.Team) == "" {
		return placeholder
	}
	return r.Team
}

// PositionSample is one point of a participant's adjusted rank history.
type PositionSample struct {
	Matchday int
	Rank     int
}
