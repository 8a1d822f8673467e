// Package sheets mirrors the ledger and the per-participant totals into a
// spreadsheet. The mirror is write-only: it is rebuilt from the gateway on
// every sync and never read back by the application.
package sheets

import (
	"context"
	"time"

	"fanliga/internal/aggregate"
	"fanliga/internal/core"
)

// Snapshot is the content of one full mirror write.
type Snapshot struct {
	Ledger  []aggregate.LedgerRow
	Totals  []aggregate.ParticipantTotal
	TakenAt time.Time
}

// Mirror replaces the mirrored tabs with the given snapshot.
type Mirror interface {
	Replace(ctx context.Context, snap Snapshot) error
}

var (
	LedgerHeader = []any{"ID", "Fecha", "Participante", "Equipo", "Importe", "Motivo", "Creado por"}
	TotalsHeader = []any{"Posición", "Participante", "Equipo", "Total"}
)

// LedgerValues lays out the ledger tab, header first.
func LedgerValues(snap Snapshot) [][]any {
	out := make([][]any, 0, len(snap.Ledger)+1)
	out = append(out, LedgerHeader)
	for _, r := range snap.Ledger {
		out = append(out, []any{
			r.Entry.ID,
			r.Entry.Date,
			r.Name,
			r.Team,
			r.Entry.Amount,
			r.Entry.Reason,
			r.Entry.CreatedBy,
		})
	}
	return out
}

// TotalsValues lays out the totals tab. Equal totals share a position.
func TotalsValues(snap Snapshot) [][]any {
	out := make([][]any, 0, len(snap.Totals)+1)
	out = append(out, TotalsHeader)
	pos := 0
	for i, t := range snap.Totals {
		if i == 0 || t.Total != snap.Totals[i-1].Total {
			pos = i + 1
		}
		out = append(out, []any{
			pos,
			t.Participant.Name,
			t.Participant.DisplayTeam(aggregate.UnknownTeam),
			t.Total,
		})
	}
	return out
}

// Build joins the fetched collections into a snapshot ordered the way the
// ledger page shows it by default: newest first.
func Build(participants []core.Participant, entries []core.PenaltyEntry, now time.Time) Snapshot {
	rows := aggregate.Ledger(aggregate.JoinLedger(participants, entries), aggregate.LedgerQuery{
		SortKey:   aggregate.SortByDate,
		Direction: aggregate.Desc,
		Filter:    aggregate.FilterAll,
	})
	return Snapshot{
		Ledger:  rows,
		Totals:  aggregate.RankedTotals(participants, entries),
		TakenAt: now,
	}
}
