// Package worker keeps the spreadsheet mirror in step with the remote store.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fanliga/internal/amqp"
	"fanliga/internal/core"
	"fanliga/internal/gateway"
	"fanliga/internal/sheets"
)

// Sync triggers, used as the metrics label.
const (
	TriggerStartup  = "startup"
	TriggerChange   = "change"
	TriggerPeriodic = "periodic"
)

// Source is the part of the gateway the mirror reads.
type Source interface {
	gateway.ParticipantReader
	gateway.PenaltyReader
}

// SyncRecorder is told about every finished sync attempt.
type SyncRecorder interface {
	MirrorSynced(trigger string, err error, now time.Time)
}

// MirrorWorker rebuilds the mirror from the source. Syncs never overlap.
type MirrorWorker struct {
	source   Source
	mirror   sheets.Mirror
	recorder SyncRecorder
	now      func() time.Time

	mu        sync.Mutex
	lastFetch time.Time
}

func NewMirrorWorker(source Source, mirror sheets.Mirror, recorder SyncRecorder) *MirrorWorker {
	return &MirrorWorker{
		source:   source,
		mirror:   mirror,
		recorder: recorder,
		now:      time.Now,
	}
}

// Sync fetches participants and penalties and replaces the mirror.
func (w *MirrorWorker) Sync(ctx context.Context, trigger string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := w.now()
	snap, err := w.fetch(ctx, started)
	if err == nil {
		err = w.mirror.Replace(ctx, snap)
	}
	if w.recorder != nil {
		w.recorder.MirrorSynced(trigger, err, w.now())
	}
	if err != nil {
		return fmt.Errorf("mirror sync (%s): %w", trigger, err)
	}

	w.lastFetch = started
	slog.InfoContext(ctx, "Mirror synced",
		"trigger", trigger,
		"ledger_rows", len(snap.Ledger),
		"participants", len(snap.Totals),
		"duration_ms", w.now().Sub(started).Milliseconds())
	return nil
}

func (w *MirrorWorker) fetch(ctx context.Context, now time.Time) (sheets.Snapshot, error) {
	var (
		participants []core.Participant
		entries      []core.PenaltyEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = w.source.ListParticipants(gctx)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		entries, err = w.source.ListPenalties(gctx)
		if err != nil {
			return fmt.Errorf("list penalties: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return sheets.Snapshot{}, err
	}
	return sheets.Build(participants, entries, now), nil
}

// HandleLedgerChanged syncs after a write notification. Changes older than
// the last successful fetch are already mirrored and are skipped.
//
// A failed sync is logged and acknowledged; the periodic resync retries it.
// Only a cancelled ctx is returned, so the message goes back to the queue.
func (w *MirrorWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChanged) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"kind", msg.Kind,
		"entity_id", msg.EntityID,
		"timestamp", msg.Timestamp)

	if msg.Kind != amqp.FullResync && w.covers(msg.Timestamp) {
		slog.DebugContext(ctx, "Ledger change already mirrored", "kind", msg.Kind, "entity_id", msg.EntityID)
		return nil
	}

	if err := w.Sync(ctx, TriggerChange); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.ErrorContext(ctx, "Failed to mirror ledger change",
			"kind", msg.Kind,
			"entity_id", msg.EntityID,
			"error", err)
	}
	return nil
}

func (w *MirrorWorker) covers(at time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.lastFetch.IsZero() && !at.IsZero() && at.Before(w.lastFetch)
}

// StartupSync writes a first snapshot so changes missed while the worker
// was down show up without waiting for the next tick.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	slog.InfoContext(ctx, "Performing startup mirror sync")
	return w.Sync(ctx, TriggerStartup)
}

// Run resyncs every interval until ctx is done. Failures are logged and the
// loop carries on.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sync(ctx, TriggerPeriodic); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic mirror sync failed", "error", err)
			}
		}
	}
}

// LastSync reports when the data behind the last successful sync was fetched.
func (w *MirrorWorker) LastSync() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFetch
}
