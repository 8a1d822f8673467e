package views

import (
	"context"

	"fanliga/internal/aggregate"
	"fanliga/internal/core"
)

// LedgerRow is one displayed penalty or bonus entry.
type LedgerRow struct {
	aggregate.LedgerRow
	Amount Amount
}

// TotalRow is one participant's running total.
type TotalRow struct {
	Participant core.Participant
	Total       Amount
}

type LedgerView struct {
	Query        aggregate.LedgerQuery
	Participants []core.Participant
	Rows         []LedgerRow
	Totals       []TotalRow
	Unavailable  bool
}

// Ledger loads participants and entries, then filters and orders the
// joined rows according to q.
func (s *Service) Ledger(ctx context.Context, q aggregate.LedgerQuery) (LedgerView, error) {
	view := LedgerView{Query: q}

	var (
		participants []core.Participant
		entries      []core.PenaltyEntry
	)
	l := s.newLoader(ctx, "ledger")
	get(l, "list_participants", &participants, s.gw.ListParticipants)
	get(l, "list_penalties", &entries, s.gw.ListPenalties)

	failed, err := l.wait()
	if err != nil {
		return LedgerView{}, s.discarded("ledger")
	}
	if failed {
		view.Unavailable = true
		return view, nil
	}

	view.Participants = participants
	for _, r := range aggregate.Ledger(aggregate.JoinLedger(participants, entries), q) {
		view.Rows = append(view.Rows, LedgerRow{LedgerRow: r, Amount: NewAmount(r.Entry.Amount)})
	}
	view.Totals = totalRows(aggregate.RankedTotals(participants, entries))
	return view, nil
}

func totalRows(ranked []aggregate.ParticipantTotal) []TotalRow {
	out := make([]TotalRow, 0, len(ranked))
	for _, t := range ranked {
		out = append(out, TotalRow{Participant: t.Participant, Total: NewAmount(t.Total)})
	}
	return out
}
