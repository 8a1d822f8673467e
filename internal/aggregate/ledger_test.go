package aggregate

import (
	"testing"

	"fanliga/internal/core"
)

func ids(rows []LedgerRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Entry.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sampleRows() []LedgerRow {
	participants := []core.Participant{
		{ID: "p1", Name: "Ana", Team: "Zeta"},
		{ID: "p2", Name: "Álvaro", Team: "Alfa"},
		{ID: "p3", Name: "bruno", Team: "Beta"},
	}
	entries := []core.PenaltyEntry{
		{ID: "e1", ParticipantID: "p1", Amount: -5, Date: "2025-01-03"},
		{ID: "e2", ParticipantID: "p2", Amount: 3, Date: "2025-01-01"},
		{ID: "e3", ParticipantID: "p3", Amount: 1, Date: "not-a-date"},
		{ID: "e4", ParticipantID: "p1", Amount: 10, Date: "2025-01-02"},
	}
	return JoinLedger(participants, entries)
}

func TestJoinLedgerPlaceholders(t *testing.T) {
	rows := JoinLedger(
		[]core.Participant{{ID: "1", Name: "Ana"}},
		[]core.PenaltyEntry{{ID: "a", ParticipantID: "1"}, {ID: "b", ParticipantID: "99"}},
	)
	if rows[0].Name != "Ana" || rows[0].Team != UnknownTeam || !rows[0].Known {
		t.Fatalf("unexpected known row %+v", rows[0])
	}
	if rows[1].Name != UnknownName || rows[1].Team != UnknownTeam || rows[1].Known {
		t.Fatalf("unexpected unknown row %+v", rows[1])
	}
}

func TestLedgerAmountReversal(t *testing.T) {
	rows := sampleRows()
	asc := ids(Ledger(rows, LedgerQuery{SortKey: SortByAmount, Direction: Asc}))
	desc := ids(Ledger(rows, LedgerQuery{SortKey: SortByAmount, Direction: Desc}))
	if !equal(asc, []string{"e1", "e3", "e2", "e4"}) {
		t.Fatalf("unexpected ascending order %v", asc)
	}
	for i := range asc {
		if asc[i] != desc[len(desc)-1-i] {
			t.Fatalf("descending %v is not the reverse of %v", desc, asc)
		}
	}
}

func TestLedgerStableWithTies(t *testing.T) {
	entries := []core.PenaltyEntry{
		{ID: "a", ParticipantID: "1", Amount: 1},
		{ID: "b", ParticipantID: "1", Amount: 2},
		{ID: "c", ParticipantID: "1", Amount: 1},
		{ID: "d", ParticipantID: "1", Amount: 2},
	}
	rows := JoinLedger([]core.Participant{{ID: "1", Name: "Ana"}}, entries)

	if got := ids(Ledger(rows, LedgerQuery{SortKey: SortByAmount, Direction: Asc})); !equal(got, []string{"a", "c", "b", "d"}) {
		t.Fatalf("ascending ties not stable: %v", got)
	}
	if got := ids(Ledger(rows, LedgerQuery{SortKey: SortByAmount, Direction: Desc})); !equal(got, []string{"b", "d", "a", "c"}) {
		t.Fatalf("descending ties not stable: %v", got)
	}
	if got := ids(Ledger(rows, LedgerQuery{SortKey: SortByParticipant, Direction: Desc})); !equal(got, []string{"a", "b", "c", "d"}) {
		t.Fatalf("equal names must keep input order: %v", got)
	}
}

func TestLedgerDateOrdering(t *testing.T) {
	got := ids(Ledger(sampleRows(), LedgerQuery{SortKey: SortByDate, Direction: Asc}))
	// unparseable date sorts as the earliest instant
	if !equal(got, []string{"e3", "e2", "e4", "e1"}) {
		t.Fatalf("unexpected date order %v", got)
	}
}

func TestLedgerLocaleOrdering(t *testing.T) {
	got := ids(Ledger(sampleRows(), LedgerQuery{SortKey: SortByParticipant, Direction: Asc}))
	// accents and case are ignored: Álvaro < Ana < bruno
	if !equal(got, []string{"e2", "e1", "e4", "e3"}) {
		t.Fatalf("unexpected name order %v", got)
	}
	got = ids(Ledger(sampleRows(), LedgerQuery{SortKey: SortByTeam, Direction: Asc}))
	if !equal(got, []string{"e2", "e3", "e1", "e4"}) {
		t.Fatalf("unexpected team order %v", got)
	}
}

func TestLedgerFilter(t *testing.T) {
	rows := sampleRows()
	all := Ledger(rows, LedgerQuery{SortKey: SortByDate, Direction: Asc, Filter: FilterAll})
	if len(all) != len(rows) {
		t.Fatalf("filter all dropped rows: %v", ids(all))
	}

	unfiltered := Ledger(rows, LedgerQuery{SortKey: SortByDate, Direction: Asc})
	if !equal(ids(all), ids(unfiltered)) {
		t.Fatalf("filter all changed order: %v vs %v", ids(all), ids(unfiltered))
	}

	only := Ledger(rows, LedgerQuery{SortKey: SortByDate, Direction: Asc, Filter: "p1"})
	if !equal(ids(only), []string{"e4", "e1"}) {
		t.Fatalf("unexpected filtered rows %v", ids(only))
	}
	for _, r := range only {
		if r.Entry.ParticipantID != "p1" {
			t.Fatalf("row %s leaked through filter", r.Entry.ID)
		}
	}
	if got := Ledger(rows, LedgerQuery{Filter: "nobody"}); len(got) != 0 {
		t.Fatalf("expected no rows, got %v", ids(got))
	}
}

func TestLedgerDoesNotMutateInput(t *testing.T) {
	rows := sampleRows()
	before := ids(rows)
	_ = Ledger(rows, LedgerQuery{SortKey: SortByAmount, Direction: Desc})
	if !equal(ids(rows), before) {
		t.Fatalf("input reordered: %v", ids(rows))
	}
}

func TestParseQueryValues(t *testing.T) {
	if ParseSortKey("Amount", SortByDate) != SortByAmount {
		t.Fatal("expected amount")
	}
	if ParseSortKey("bogus", SortByTeam) != SortByTeam {
		t.Fatal("expected fallback")
	}
	if ParseDirection("ASC", Desc) != Asc {
		t.Fatal("expected asc")
	}
	if ParseDirection("", Desc) != Desc {
		t.Fatal("expected fallback")
	}
	if Asc.Toggle() != Desc || Desc.Toggle() != Asc {
		t.Fatal("toggle broken")
	}
}
