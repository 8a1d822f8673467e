package views

import (
	"context"
	"slices"

	"fanliga/internal/aggregate"
	"fanliga/internal/core"
)

type StandingRow struct {
	core.StandingRow
	Points Amount
}

type StandingsView struct {
	Matchday    int
	Matchdays   []int
	Rows        []StandingRow
	Unavailable bool
}

// ComparisonRow shows how adjustments moved a participant.
type ComparisonRow struct {
	core.StandingRow
	RankDelta   Amount
	PointsDelta Amount
}

type ComparisonView struct {
	Matchday    int
	Matchdays   []int
	Rows        []ComparisonRow
	Unavailable bool
}

// Standings loads the adjusted table for matchday. A matchday below 1
// selects the latest one the backend knows about.
func (s *Service) Standings(ctx context.Context, matchday int) (StandingsView, error) {
	days, md, rows, failed, err := s.loadMatchday(ctx, "standings", matchday, s.gw.Standings)
	if err != nil {
		return StandingsView{}, err
	}
	view := StandingsView{Matchday: md, Matchdays: days, Unavailable: failed}
	if failed {
		return view, nil
	}
	for _, r := range rows {
		view.Rows = append(view.Rows, StandingRow{StandingRow: r, Points: NewAmount(r.AdjustedPoints)})
	}
	return view, nil
}

// Comparison loads external against adjusted positions for matchday.
func (s *Service) Comparison(ctx context.Context, matchday int) (ComparisonView, error) {
	days, md, rows, failed, err := s.loadMatchday(ctx, "comparison", matchday, s.gw.Comparison)
	if err != nil {
		return ComparisonView{}, err
	}
	view := ComparisonView{Matchday: md, Matchdays: days, Unavailable: failed}
	if failed {
		return view, nil
	}
	for _, r := range rows {
		view.Rows = append(view.Rows, ComparisonRow{
			StandingRow: r,
			RankDelta:   NewAmount(float64(aggregate.RankDelta(r))),
			PointsDelta: NewAmount(aggregate.PointsDelta(r)),
		})
	}
	return view, nil
}

// loadMatchday fetches the matchday list and the rows of one matchday. With
// an explicit matchday both reads run concurrently; otherwise the list is
// read first to pick the latest.
func (s *Service) loadMatchday(
	ctx context.Context,
	view string,
	matchday int,
	read func(context.Context, int) ([]core.StandingRow, error),
) (days []int, md int, rows []core.StandingRow, failed bool, err error) {
	l := s.newLoader(ctx, view)
	get(l, "matchdays", &days, s.gw.Matchdays)

	if matchday >= 1 {
		md = matchday
		get(l, view, &rows, func(ctx context.Context) ([]core.StandingRow, error) { return read(ctx, md) })
		if failed, err = l.wait(); err != nil {
			return nil, 0, nil, false, s.discarded(view)
		}
		return days, md, rows, failed, nil
	}

	if failed, err = l.wait(); err != nil {
		return nil, 0, nil, false, s.discarded(view)
	}
	if failed || len(days) == 0 {
		return days, 0, nil, failed, nil
	}

	md = slices.Max(days)
	l = s.newLoader(ctx, view)
	get(l, view, &rows, func(ctx context.Context) ([]core.StandingRow, error) { return read(ctx, md) })
	if failed, err = l.wait(); err != nil {
		return nil, 0, nil, false, s.discarded(view)
	}
	return days, md, rows, failed, nil
}
