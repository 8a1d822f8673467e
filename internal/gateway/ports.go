// Package gateway defines the ports through which the application reaches
// the remote store. Every operation returns data or an explicit error; callers
// never assume success.
package gateway

import (
	"context"

	"fanliga/internal/core"
)

// Ports for outbound adapters.
type (
	ParticipantReader interface {
		// ListParticipants returns every participant ordered by name.
		ListParticipants(ctx context.Context) ([]core.Participant, error)
	}

	PenaltyReader interface {
		// ListPenalties returns every ledger entry, newest date first.
		ListPenalties(ctx context.Context) ([]core.PenaltyEntry, error)
	}

	// StandingsReader exposes the remotely computed rankings. Nothing
	// behind this port is computed by the application itself.
	StandingsReader interface {
		Standings(ctx context.Context, matchday int) ([]core.StandingRow, error)
		Comparison(ctx context.Context, matchday int) ([]core.StandingRow, error)
		RankHistory(ctx context.Context, participantID string) ([]core.PositionSample, error)
		Matchdays(ctx context.Context) ([]int, error)
	}

	PenaltyWriter interface {
		InsertPenalty(ctx context.Context, in core.PenaltyInput) (core.PenaltyEntry, error)
		UpdatePenalty(ctx context.Context, id string, in core.PenaltyInput) (core.PenaltyEntry, error)
		DeletePenalty(ctx context.Context, id string) error
	}

	ParticipantWriter interface {
		UpdateParticipant(ctx context.Context, id string, in core.ParticipantUpdate) (core.Participant, error)
	}

	// Authenticator exchanges credentials for a profile and an access token.
	Authenticator interface {
		SignIn(ctx context.Context, email, password string) (core.Profile, Token, error)
	}

	// Reader groups every read port; views depend on it.
	Reader interface {
		ParticipantReader
		PenaltyReader
		StandingsReader
	}

	// Gateway is the full remote surface a backend implements.
	Gateway interface {
		Reader
		PenaltyWriter
		ParticipantWriter
		Authenticator
	}
)
