// Package services orchestrates gateway writes with their side effects.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"fanliga/internal/amqp"
	"fanliga/internal/core"
	"fanliga/internal/gateway"
)

// Publisher announces ledger changes to downstream consumers.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChanged) error
}

// LedgerService wraps a backend and publishes a LedgerChanged message after
// every successful write. Reads pass straight through.
type LedgerService struct {
	gateway.Gateway
	publisher Publisher
	closers   []io.Closer
}

var _ gateway.Gateway = (*LedgerService)(nil)

// NewLedgerService returns a service publishing through publisher, which may
// be nil when notifications are disabled. closers run on Close.
func NewLedgerService(gw gateway.Gateway, publisher Publisher, closers ...io.Closer) *LedgerService {
	return &LedgerService{Gateway: gw, publisher: publisher, closers: closers}
}

func (s *LedgerService) InsertPenalty(ctx context.Context, in core.PenaltyInput) (core.PenaltyEntry, error) {
	e, err := s.Gateway.InsertPenalty(ctx, in)
	if err != nil {
		return core.PenaltyEntry{}, fmt.Errorf("insert penalty: %w", err)
	}
	s.notify(ctx, amqp.PenaltyInserted, e.ID)
	return e, nil
}

func (s *LedgerService) UpdatePenalty(ctx context.Context, id string, in core.PenaltyInput) (core.PenaltyEntry, error) {
	e, err := s.Gateway.UpdatePenalty(ctx, id, in)
	if err != nil {
		return core.PenaltyEntry{}, fmt.Errorf("update penalty: %w", err)
	}
	s.notify(ctx, amqp.PenaltyUpdated, id)
	return e, nil
}

func (s *LedgerService) DeletePenalty(ctx context.Context, id string) error {
	if err := s.Gateway.DeletePenalty(ctx, id); err != nil {
		return fmt.Errorf("delete penalty: %w", err)
	}
	s.notify(ctx, amqp.PenaltyDeleted, id)
	return nil
}

func (s *LedgerService) UpdateParticipant(ctx context.Context, id string, in core.ParticipantUpdate) (core.Participant, error) {
	p, err := s.Gateway.UpdateParticipant(ctx, id, in)
	if err != nil {
		return core.Participant{}, fmt.Errorf("update participant: %w", err)
	}
	s.notify(ctx, amqp.ParticipantUpdated, id)
	return p, nil
}

// notify never fails the write; the change is already stored remotely.
func (s *LedgerService) notify(ctx context.Context, kind amqp.ChangeKind, id string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping change notification", "kind", kind)
		return
	}
	if err := s.publisher.PublishLedgerChanged(context.WithoutCancel(ctx), amqp.NewLedgerChanged(kind, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change", "kind", kind, "id", id, "error", err)
	}
}

// Close releases the wrapped backend and publisher resources.
func (s *LedgerService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
