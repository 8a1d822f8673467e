package views

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanliga/internal/aggregate"
	"fanliga/internal/core"
	"fanliga/internal/gateway"
	"fanliga/internal/gateway/memory"
	"fanliga/internal/seed"
)

func newDemoService(t *testing.T, opts Options) *Service {
	t.Helper()
	return NewService(memory.New(seed.Demo(), memory.Credentials{}), opts)
}

type failingPenalties struct {
	gateway.Reader
}

func (failingPenalties) ListPenalties(context.Context) ([]core.PenaltyEntry, error) {
	return nil, gateway.ErrUnavailable
}

func entryIDs(rows []LedgerRow) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Entry.ID)
	}
	return ids
}

func TestLedger(t *testing.T) {
	svc := newDemoService(t, Options{})

	view, err := svc.Ledger(context.Background(), svc.DefaultQuery())
	require.NoError(t, err)
	assert.False(t, view.Unavailable)
	assert.Equal(t, []string{"p4", "p2", "p3", "p1"}, entryIDs(view.Rows))
	assert.Equal(t, "-5", view.Rows[3].Amount.Display)
	assert.Equal(t, "amount-negative", view.Rows[3].Amount.Class)
	assert.Len(t, view.Participants, 4)

	var names []string
	for _, tr := range view.Totals {
		names = append(names, tr.Participant.Name+"="+tr.Total.Display)
	}
	assert.Equal(t, []string{"Carmen=+1", "Diego=0", "Ana=-2", "Bruno=-2"}, names)
}

func TestLedger_FilterAndSort(t *testing.T) {
	svc := newDemoService(t, Options{})

	view, err := svc.Ledger(context.Background(), aggregate.LedgerQuery{
		SortKey:   aggregate.SortByAmount,
		Direction: aggregate.Asc,
		Filter:    "1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, entryIDs(view.Rows))
	assert.Equal(t, "+3", view.Rows[1].Amount.Display)
}

func TestLedger_FetchFailureYieldsEmptyView(t *testing.T) {
	svc := NewService(failingPenalties{memory.New(seed.Demo(), memory.Credentials{})}, Options{})

	view, err := svc.Ledger(context.Background(), svc.DefaultQuery())
	require.NoError(t, err)
	assert.True(t, view.Unavailable)
	assert.Empty(t, view.Rows)
	assert.Empty(t, view.Totals)
}

func TestLedger_DiscardedWhenRequesterLeaves(t *testing.T) {
	var discarded []string
	svc := newDemoService(t, Options{OnDiscard: func(v string) { discarded = append(discarded, v) }})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ledger(ctx, svc.DefaultQuery())
	assert.ErrorIs(t, err, ErrDiscarded)
	_, err = svc.Standings(ctx, 0)
	assert.ErrorIs(t, err, ErrDiscarded)
	assert.Equal(t, []string{"ledger", "standings"}, discarded)
}

func TestStandings_LatestMatchday(t *testing.T) {
	svc := newDemoService(t, Options{})

	view, err := svc.Standings(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Matchday)
	assert.Equal(t, []int{1, 2, 3}, view.Matchdays)

	var order []string
	for _, r := range view.Rows {
		order = append(order, r.Name)
	}
	assert.Equal(t, []string{"Bruno", "Carmen", "Ana", "Diego"}, order)
	assert.Equal(t, "+156", view.Rows[0].Points.Display)
}

func TestComparison_Deltas(t *testing.T) {
	svc := newDemoService(t, Options{})

	view, err := svc.Comparison(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, view.Rows, 4)
	assert.Equal(t, 1, view.Matchday)

	ana := view.Rows[2]
	require.Equal(t, "Ana", ana.Name)
	assert.Equal(t, "-1", ana.RankDelta.Display)
	assert.Equal(t, "-5", ana.PointsDelta.Display)

	carmen := view.Rows[3]
	require.Equal(t, "Carmen", carmen.Name)
	assert.Equal(t, "+1", carmen.RankDelta.Display)
	assert.Equal(t, "amount-positive", carmen.RankDelta.Class)

	bruno := view.Rows[0]
	assert.Equal(t, "0", bruno.RankDelta.Display)
	assert.Equal(t, "amount-neutral", bruno.RankDelta.Class)
}

func TestComparison_UnknownMatchdayIsEmpty(t *testing.T) {
	svc := newDemoService(t, Options{})

	view, err := svc.Comparison(context.Background(), 40)
	require.NoError(t, err)
	assert.False(t, view.Unavailable)
	assert.Empty(t, view.Rows)
}

func TestParticipant(t *testing.T) {
	svc := newDemoService(t, Options{Box: aggregate.Box{Width: 600, Height: 240, Inset: 24}})

	view, err := svc.Participant(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", view.Participant.Name)
	assert.Equal(t, "-2", view.Total.Display)
	assert.Equal(t, []string{"p2", "p1"}, entryIDs(view.Entries))

	require.Len(t, view.Trend.Points, 3)
	first := view.Trend.Points[0]
	assert.Equal(t, 24.0, first.X)
	assert.Equal(t, 216.0, first.Y)
	assert.Equal(t, 576.0, view.Trend.Points[2].X)
	assert.True(t, strings.HasPrefix(view.Trend.Polyline, "24.0,216.0 "))
	assert.NotEmpty(t, view.Trend.Ticks)
}

func TestParticipant_NotFound(t *testing.T) {
	svc := newDemoService(t, Options{})

	_, err := svc.Participant(context.Background(), "nobody")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestParticipants(t *testing.T) {
	svc := newDemoService(t, Options{})

	view, err := svc.Participants(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Rows, 4)
	assert.Equal(t, "Carmen", view.Rows[0].Participant.Name)
}

func TestHome(t *testing.T) {
	svc := newDemoService(t, Options{})

	view, err := svc.Home(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, view.Matchday)
	require.Len(t, view.Podium, 3)
	assert.Equal(t, "Bruno", view.Podium[0].Name)
	assert.Len(t, view.Recent, 4)
	assert.Equal(t, "p4", view.Recent[0].Entry.ID)
}

func TestRules(t *testing.T) {
	md := []byte("# Reglamento\n\n## Artículo 1: Objeto\n\nTexto.\n\n#### Nota\n")
	rules := NewRules(StaticRules(md), time.Minute)

	view, err := rules.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Headings, 2)
	assert.Equal(t, "articulo-1-objeto", view.Headings[1].ID)
	assert.Contains(t, string(view.HTML), `id="articulo-1-objeto"`)

	again, err := rules.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, view, again)
}

func TestRules_SourceFailure(t *testing.T) {
	rules := NewRules(func(context.Context) ([]byte, error) { return nil, errors.New("gone") }, time.Minute)

	view, err := rules.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, view.Unavailable)
}
