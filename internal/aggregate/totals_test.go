package aggregate

import (
	"math"
	"testing"

	"fanliga/internal/core"
)

func TestTotalsEndToEnd(t *testing.T) {
	participants := []core.Participant{{ID: "1", Name: "Ana"}}
	entries := []core.PenaltyEntry{
		{ParticipantID: "1", Amount: -5},
		{ParticipantID: "1", Amount: 3},
		{ParticipantID: "99", Amount: 100},
	}
	got := Totals(participants, entries)
	if len(got) != 1 || got["1"] != -2 {
		t.Fatalf("expected {1: -2}, got %v", got)
	}
	if _, ok := got["99"]; ok {
		t.Fatalf("unknown participant leaked into totals: %v", got)
	}
}

func TestTotalsKeySetAndSum(t *testing.T) {
	cases := []struct {
		name         string
		participants []core.Participant
		entries      []core.PenaltyEntry
	}{
		{
			name:         "no entries",
			participants: []core.Participant{{ID: "a"}, {ID: "b"}},
		},
		{
			name:         "mixed",
			participants: []core.Participant{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			entries: []core.PenaltyEntry{
				{ParticipantID: "a", Amount: 2.5},
				{ParticipantID: "b", Amount: -1},
				{ParticipantID: "a", Amount: -0.5},
				{ParticipantID: "zz", Amount: 40},
			},
		},
		{
			name:         "non finite amounts",
			participants: []core.Participant{{ID: "a"}},
			entries: []core.PenaltyEntry{
				{ParticipantID: "a", Amount: math.NaN()},
				{ParticipantID: "a", Amount: math.Inf(-1)},
				{ParticipantID: "a", Amount: 1},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Totals(tc.participants, tc.entries)
			if len(got) != len(tc.participants) {
				t.Fatalf("expected %d keys, got %v", len(tc.participants), got)
			}
			ids := map[string]bool{}
			for _, p := range tc.participants {
				ids[p.ID] = true
				if _, ok := got[p.ID]; !ok {
					t.Fatalf("missing key %q", p.ID)
				}
			}
			var want, sum float64
			for _, e := range tc.entries {
				if ids[e.ParticipantID] && !math.IsNaN(e.Amount) && !math.IsInf(e.Amount, 0) {
					want += e.Amount
				}
			}
			for _, v := range got {
				sum += v
			}
			if sum != want {
				t.Fatalf("sum %v, want %v", sum, want)
			}
		})
	}
}

func TestTotalsEmptyParticipants(t *testing.T) {
	entries := []core.PenaltyEntry{{ParticipantID: "1", Amount: 4}}
	if got := Totals(nil, entries); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestRankedTotals(t *testing.T) {
	participants := []core.Participant{
		{ID: "1", Name: "Óscar"},
		{ID: "2", Name: "beatriz"},
		{ID: "3", Name: "Ana"},
	}
	entries := []core.PenaltyEntry{{ParticipantID: "3", Amount: -1}}
	got := RankedTotals(participants, entries)
	order := []string{got[0].Participant.Name, got[1].Participant.Name, got[2].Participant.Name}
	want := []string{"beatriz", "Óscar", "Ana"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}
