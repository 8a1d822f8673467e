package views

import (
	"context"
	"slices"

	"fanliga/internal/aggregate"
	"fanliga/internal/core"
)

const (
	homeRecentEntries = 5
	homePodium        = 3
)

// HomeView summarises the league: the podium of the latest matchday, the
// running totals and the most recent ledger entries.
type HomeView struct {
	Matchday    int
	Podium      []StandingRow
	Totals      []TotalRow
	Recent      []LedgerRow
	Unavailable bool
}

func (s *Service) Home(ctx context.Context) (HomeView, error) {
	var (
		participants []core.Participant
		entries      []core.PenaltyEntry
		days         []int
	)
	l := s.newLoader(ctx, "home")
	get(l, "list_participants", &participants, s.gw.ListParticipants)
	get(l, "list_penalties", &entries, s.gw.ListPenalties)
	get(l, "matchdays", &days, s.gw.Matchdays)

	failed, err := l.wait()
	if err != nil {
		return HomeView{}, s.discarded("home")
	}
	if failed {
		return HomeView{Unavailable: true}, nil
	}

	view := HomeView{Totals: totalRows(aggregate.RankedTotals(participants, entries))}
	q := aggregate.LedgerQuery{SortKey: aggregate.SortByDate, Direction: aggregate.Desc, Filter: aggregate.FilterAll}
	for _, r := range aggregate.Ledger(aggregate.JoinLedger(participants, entries), q) {
		if len(view.Recent) == homeRecentEntries {
			break
		}
		view.Recent = append(view.Recent, LedgerRow{LedgerRow: r, Amount: NewAmount(r.Entry.Amount)})
	}

	if len(days) == 0 {
		return view, nil
	}
	view.Matchday = slices.Max(days)

	var rows []core.StandingRow
	l = s.newLoader(ctx, "home")
	get(l, "standings", &rows, func(ctx context.Context) ([]core.StandingRow, error) {
		return s.gw.Standings(ctx, view.Matchday)
	})
	failed, err = l.wait()
	if err != nil {
		return HomeView{}, s.discarded("home")
	}
	if failed {
		view.Unavailable = true
		return view, nil
	}
	for _, r := range rows[:min(len(rows), homePodium)] {
		view.Podium = append(view.Podium, StandingRow{StandingRow: r, Points: NewAmount(r.AdjustedPoints)})
	}
	return view, nil
}
