package views

import (
	"context"
	"slices"

	"fanliga/internal/aggregate"
	"fanliga/internal/core"
	"fanliga/internal/gateway"
)

// Trend is a rank history ready to draw as an SVG polyline.
type Trend struct {
	Box      aggregate.Box
	Points   []aggregate.Point
	Ticks    []aggregate.Tick
	Polyline string
}

type ParticipantView struct {
	Participant core.Participant
	Total       Amount
	Entries     []LedgerRow
	Trend       Trend
	Unavailable bool
}

// Participant loads one participant's profile, ledger entries and rank
// trend. It returns gateway.ErrNotFound when the participant does not exist.
func (s *Service) Participant(ctx context.Context, id string) (ParticipantView, error) {
	var (
		participants []core.Participant
		entries      []core.PenaltyEntry
		history      []core.PositionSample
	)
	l := s.newLoader(ctx, "participant")
	get(l, "list_participants", &participants, s.gw.ListParticipants)
	get(l, "list_penalties", &entries, s.gw.ListPenalties)
	get(l, "rank_history", &history, func(ctx context.Context) ([]core.PositionSample, error) {
		return s.gw.RankHistory(ctx, id)
	})

	failed, err := l.wait()
	if err != nil {
		return ParticipantView{}, s.discarded("participant")
	}
	if l.notFound() {
		return ParticipantView{}, gateway.ErrNotFound
	}

	i := slices.IndexFunc(participants, func(p core.Participant) bool { return p.ID == id })
	if failed {
		view := ParticipantView{Unavailable: true}
		if i >= 0 {
			view.Participant = participants[i]
		}
		return view, nil
	}
	if i < 0 {
		return ParticipantView{}, gateway.ErrNotFound
	}

	view := ParticipantView{
		Participant: participants[i],
		Total:       NewAmount(aggregate.Totals(participants, entries)[id]),
		Trend:       s.trend(history),
	}
	q := aggregate.LedgerQuery{SortKey: aggregate.SortByDate, Direction: aggregate.Desc, Filter: id}
	for _, r := range aggregate.Ledger(aggregate.JoinLedger(participants, entries), q) {
		view.Entries = append(view.Entries, LedgerRow{LedgerRow: r, Amount: NewAmount(r.Entry.Amount)})
	}
	return view, nil
}

// ParticipantsView lists every participant with their running total.
type ParticipantsView struct {
	Rows        []TotalRow
	Unavailable bool
}

func (s *Service) Participants(ctx context.Context) (ParticipantsView, error) {
	var (
		participants []core.Participant
		entries      []core.PenaltyEntry
	)
	l := s.newLoader(ctx, "participants")
	get(l, "list_participants", &participants, s.gw.ListParticipants)
	get(l, "list_penalties", &entries, s.gw.ListPenalties)

	failed, err := l.wait()
	if err != nil {
		return ParticipantsView{}, s.discarded("participants")
	}
	if failed {
		return ParticipantsView{Unavailable: true}, nil
	}
	return ParticipantsView{Rows: totalRows(aggregate.RankedTotals(participants, entries))}, nil
}

func (s *Service) trend(history []core.PositionSample) Trend {
	samples := slices.Clone(history)
	slices.SortStableFunc(samples, func(a, b core.PositionSample) int { return a.Matchday - b.Matchday })
	points := aggregate.MapTrend(samples, s.opts.Box)
	return Trend{
		Box:      s.opts.Box,
		Points:   points,
		Ticks:    aggregate.RankTicks(samples, s.opts.Box),
		Polyline: aggregate.Polyline(points),
	}
}
