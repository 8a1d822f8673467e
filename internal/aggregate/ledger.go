package aggregate

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"fanliga/internal/core"
)

// FilterAll disables the participant filter.
const FilterAll = "all"

// Placeholders shown for entries whose participant is not in the loaded set.
const (
	UnknownName = "(desconocido)"
	UnknownTeam = "-"
)

type SortKey string

const (
	SortByDate        SortKey = "date"
	SortByParticipant SortKey = "participant"
	SortByTeam        SortKey = "team"
	SortByAmount      SortKey = "amount"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// LedgerRow is a penalty entry joined with its participant's display fields.
type LedgerRow struct {
	Entry core.PenaltyEntry
	Name  string
	Team  string
	Known bool
}

// LedgerQuery selects the ordering and the participant filter of the ledger.
type LedgerQuery struct {
	SortKey   SortKey
	Direction Direction
	Filter    string // FilterAll, empty, or a participant id
}

// ParseSortKey maps a query value to a sort key, falling back when unknown.
func ParseSortKey(s string, fallback SortKey) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortByDate, SortByParticipant, SortByTeam, SortByAmount:
		return k
	}
	return fallback
}

// ParseDirection maps a query value to a direction, falling back when unknown.
func ParseDirection(s string, fallback Direction) Direction {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Asc, Desc:
		return d
	}
	return fallback
}

// JoinLedger attaches participant name and team to every entry, keeping input
// order. Entries for unknown participants get placeholders.
func JoinLedger(participants []core.Participant, entries []core.PenaltyEntry) []LedgerRow {
	byID := make(map[string]core.Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	rows := make([]LedgerRow, 0, len(entries))
	for _, e := range entries {
		e.Amount = finite(e.Amount)
		p, ok := byID[e.ParticipantID]
		if !ok {
			rows = append(rows, LedgerRow{Entry: e, Name: UnknownName, Team: UnknownTeam})
			continue
		}
		rows = append(rows, LedgerRow{Entry: e, Name: p.Name, Team: p.DisplayTeam(UnknownTeam), Known: true})
	}
	return rows
}

// Ledger filters and orders rows for display. The input slice is not modified.
//
// Sorting is stable in both directions: descending inverts the comparator, so
// rows with equal keys keep their input order either way.
func Ledger(rows []LedgerRow, q LedgerQuery) []LedgerRow {
	out := make([]LedgerRow, 0, len(rows))
	for _, r := range rows {
		if q.Filter == "" || q.Filter == FilterAll || r.Entry.ParticipantID == q.Filter {
			out = append(out, r)
		}
	}

	compare := comparator(q.SortKey)
	desc := q.Direction == Desc
	slices.SortStableFunc(out, func(a, b LedgerRow) int {
		c := compare(a, b)
		if desc {
			return -c
		}
		return c
	})
	return out
}

func comparator(key SortKey) func(a, b LedgerRow) int {
	switch key {
	case SortByParticipant:
		coll := newCollator()
		return func(a, b LedgerRow) int { return coll.CompareString(a.Name, b.Name) }
	case SortByTeam:
		coll := newCollator()
		return func(a, b LedgerRow) int { return coll.CompareString(a.Team, b.Team) }
	case SortByAmount:
		return func(a, b LedgerRow) int { return cmp.Compare(finite(a.Entry.Amount), finite(b.Entry.Amount)) }
	default:
		return func(a, b LedgerRow) int { return a.Entry.Instant().Compare(b.Entry.Instant()) }
	}
}

// newCollator returns a Spanish collator. Collators keep internal buffers,
// so each sort gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.Spanish, collate.IgnoreCase)
}
