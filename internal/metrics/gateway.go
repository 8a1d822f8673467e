package metrics

import (
	"context"
	"errors"
	"time"

	"fanliga/internal/core"
	"fanliga/internal/gateway"
)

// Gateway records call counts and latency for every remote store operation.
type Gateway struct {
	next gateway.Gateway
	m    *Manager
	now  func() time.Time
}

var _ gateway.Gateway = (*Gateway)(nil)

func InstrumentGateway(next gateway.Gateway, m *Manager) *Gateway {
	return &Gateway{next: next, m: m, now: time.Now}
}

// Outcome maps an error returned by a gateway to its metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, gateway.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, gateway.ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, gateway.ErrMalformed):
		return OutcomeMalformed
	case errors.Is(err, gateway.ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}

func observe[T any](g *Gateway, op string, call func() (T, error)) (T, error) {
	start := g.now()
	v, err := call()
	g.m.ObserveGatewayCall(op, Outcome(err), g.now().Sub(start))
	return v, err
}

func (g *Gateway) ListParticipants(ctx context.Context) ([]core.Participant, error) {
	return observe(g, "list_participants", func() ([]core.Participant, error) {
		return g.next.ListParticipants(ctx)
	})
}

func (g *Gateway) ListPenalties(ctx context.Context) ([]core.PenaltyEntry, error) {
	return observe(g, "list_penalties", func() ([]core.PenaltyEntry, error) {
		return g.next.ListPenalties(ctx)
	})
}

func (g *Gateway) Standings(ctx context.Context, matchday int) ([]core.StandingRow, error) {
	return observe(g, "standings", func() ([]core.StandingRow, error) {
		return g.next.Standings(ctx, matchday)
	})
}

func (g *Gateway) Comparison(ctx context.Context, matchday int) ([]core.StandingRow, error) {
	return observe(g, "comparison", func() ([]core.StandingRow, error) {
		return g.next.Comparison(ctx, matchday)
	})
}

func (g *Gateway) RankHistory(ctx context.Context, participantID string) ([]core.PositionSample, error) {
	return observe(g, "rank_history", func() ([]core.PositionSample, error) {
		return g.next.RankHistory(ctx, participantID)
	})
}

func (g *Gateway) Matchdays(ctx context.Context) ([]int, error) {
	return observe(g, "matchdays", func() ([]int, error) {
		return g.next.Matchdays(ctx)
	})
}

func (g *Gateway) InsertPenalty(ctx context.Context, in core.PenaltyInput) (core.PenaltyEntry, error) {
	return observe(g, "insert_penalty", func() (core.PenaltyEntry, error) {
		return g.next.InsertPenalty(ctx, in)
	})
}

func (g *Gateway) UpdatePenalty(ctx context.Context, id string, in core.PenaltyInput) (core.PenaltyEntry, error) {
	return observe(g, "update_penalty", func() (core.PenaltyEntry, error) {
		return g.next.UpdatePenalty(ctx, id, in)
	})
}

func (g *Gateway) DeletePenalty(ctx context.Context, id string) error {
	_, err := observe(g, "delete_penalty", func() (struct{}, error) {
		return struct{}{}, g.next.DeletePenalty(ctx, id)
	})
	return err
}

func (g *Gateway) UpdateParticipant(ctx context.Context, id string, in core.ParticipantUpdate) (core.Participant, error) {
	return observe(g, "update_participant", func() (core.Participant, error) {
		return g.next.UpdateParticipant(ctx, id, in)
	})
}

func (g *Gateway) SignIn(ctx context.Context, email, password string) (core.Profile, gateway.Token, error) {
	var tok gateway.Token
	p, err := observe(g, "sign_in", func() (core.Profile, error) {
		p, t, err := g.next.SignIn(ctx, email, password)
		tok = t
		return p, err
	})
	return p, tok, err
}
