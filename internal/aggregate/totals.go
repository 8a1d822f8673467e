// Package aggregate turns collections fetched from the backend into the
// numbers, orderings and coordinates the views display. Nothing here performs
// I/O; every function is deterministic for its inputs.
package aggregate

import (
	"math"
	"slices"

	"fanliga/internal/core"
)

// ParticipantTotal pairs a participant with the sum of its ledger entries.
type ParticipantTotal struct {
	Participant core.Participant
	Total       float64
}

// Totals sums entry amounts per participant id.
//
// The result has exactly one key per participant; participants without
// entries map to 0. Entries owned by an id outside the participant set are
// dropped, and non-finite amounts contribute nothing.
func Totals(participants []core.Participant, entries []core.PenaltyEntry) map[string]float64 {
	totals := make(map[string]float64, len(participants))
	for _, p := range participants {
		totals[p.ID] = 0
	}
	for _, e := range entries {
		if _, ok := totals[e.ParticipantID]; !ok {
			continue
		}
		totals[e.ParticipantID] += finite(e.Amount)
	}
	return totals
}

// RankedTotals orders participants by total, highest first. Equal totals fall
// back to the locale order of the participant name.
func RankedTotals(participants []core.Participant, entries []core.PenaltyEntry) []ParticipantTotal {
	totals := Totals(participants, entries)
	out := make([]ParticipantTotal, 0, len(participants))
	for _, p := range participants {
		out = append(out, ParticipantTotal{Participant: p, Total: totals[p.ID]})
	}
	coll := newCollator()
	slices.SortStableFunc(out, func(a, b ParticipantTotal) int {
		switch {
		case a.Total > b.Total:
			return -1
		case a.Total < b.Total:
			return 1
		}
		return coll.CompareString(a.Participant.Name, b.Participant.Name)
	})
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
