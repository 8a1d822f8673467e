package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fanliga/internal/amqp"
	"fanliga/internal/core"
	"fanliga/internal/sheets/memory"
)

type stubSource struct {
	mu           sync.Mutex
	participants []core.Participant
	entries      []core.PenaltyEntry
	err          error
	calls        int
}

func (s *stubSource) ListParticipants(context.Context) ([]core.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.participants, nil
}

func (s *stubSource) ListPenalties(context.Context) ([]core.PenaltyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

func (s *stubSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type syncRecord struct {
	trigger string
	err     error
}

type recorder struct {
	mu      sync.Mutex
	records []syncRecord
}

func (r *recorder) MirrorSynced(trigger string, err error, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, syncRecord{trigger, err})
}

func newStubSource() *stubSource {
	return &stubSource{
		participants: []core.Participant{
			{ID: "1", Name: "Ana", Team: "Las Panteras"},
			{ID: "2", Name: "Bruno"},
		},
		entries: []core.PenaltyEntry{
			{ID: "p1", ParticipantID: "1", Amount: -5, Date: "2025-08-24"},
			{ID: "p2", ParticipantID: "1", Amount: 3, Date: "2025-08-31"},
			{ID: "p3", ParticipantID: "2", Amount: -1, Date: "2025-08-31"},
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestMirrorWorker_Sync(t *testing.T) {
	src := newStubSource()
	mirror := memory.New()
	rec := &recorder{}
	w := NewMirrorWorker(src, mirror, rec)
	at := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	w.now = fixedClock(at)

	if err := w.StartupSync(context.Background()); err != nil {
		t.Fatalf("StartupSync() error = %v", err)
	}

	snap, ok := mirror.Last()
	if !ok {
		t.Fatal("mirror was not written")
	}
	if len(snap.Ledger) != 3 || snap.Ledger[0].Entry.ID != "p2" {
		t.Errorf("ledger = %+v, want 3 rows newest first", snap.Ledger)
	}
	if len(snap.Totals) != 2 || snap.Totals[0].Participant.Name != "Bruno" || snap.Totals[1].Total != -2 {
		t.Errorf("totals = %+v", snap.Totals)
	}
	if !w.LastSync().Equal(at) {
		t.Errorf("LastSync() = %v, want %v", w.LastSync(), at)
	}
	if len(rec.records) != 1 || rec.records[0].trigger != TriggerStartup || rec.records[0].err != nil {
		t.Errorf("recorded = %+v", rec.records)
	}
}

func TestMirrorWorker_SyncFailures(t *testing.T) {
	boom := errors.New("backend down")

	t.Run("source", func(t *testing.T) {
		src := newStubSource()
		src.fail(boom)
		mirror := memory.New()
		rec := &recorder{}
		w := NewMirrorWorker(src, mirror, rec)

		err := w.Sync(context.Background(), TriggerPeriodic)
		if !errors.Is(err, boom) {
			t.Fatalf("Sync() error = %v, want %v", err, boom)
		}
		if mirror.Writes() != 0 {
			t.Error("mirror written despite fetch failure")
		}
		if !w.LastSync().IsZero() {
			t.Error("LastSync() moved on failure")
		}
		if len(rec.records) != 1 || !errors.Is(rec.records[0].err, boom) {
			t.Errorf("recorded = %+v", rec.records)
		}
	})

	t.Run("mirror", func(t *testing.T) {
		mirror := memory.New()
		mirror.FailWith(boom)
		w := NewMirrorWorker(newStubSource(), mirror, nil)

		if err := w.Sync(context.Background(), TriggerPeriodic); !errors.Is(err, boom) {
			t.Fatalf("Sync() error = %v, want %v", err, boom)
		}
	})
}

func TestMirrorWorker_HandleLedgerChanged(t *testing.T) {
	src := newStubSource()
	mirror := memory.New()
	w := NewMirrorWorker(src, mirror, nil)
	synced := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	w.now = fixedClock(synced)
	ctx := context.Background()

	// Nothing mirrored yet: every change syncs.
	old := &amqp.LedgerChanged{Kind: amqp.PenaltyInserted, EntityID: "p1", Timestamp: synced.Add(-time.Hour)}
	if err := w.HandleLedgerChanged(ctx, old); err != nil {
		t.Fatalf("HandleLedgerChanged() error = %v", err)
	}
	if mirror.Writes() != 1 {
		t.Fatalf("writes = %d, want 1", mirror.Writes())
	}

	tests := []struct {
		name      string
		msg       *amqp.LedgerChanged
		wantWrite bool
	}{
		{"older change is covered", &amqp.LedgerChanged{Kind: amqp.PenaltyDeleted, Timestamp: synced.Add(-time.Minute)}, false},
		{"newer change syncs", &amqp.LedgerChanged{Kind: amqp.PenaltyUpdated, Timestamp: synced.Add(time.Minute)}, true},
		{"missing timestamp syncs", &amqp.LedgerChanged{Kind: amqp.ParticipantUpdated}, true},
		{"full resync always syncs", &amqp.LedgerChanged{Kind: amqp.FullResync, Timestamp: synced.Add(-time.Hour)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := mirror.Writes()
			if err := w.HandleLedgerChanged(ctx, tt.msg); err != nil {
				t.Fatalf("HandleLedgerChanged() error = %v", err)
			}
			if got := mirror.Writes() > before; got != tt.wantWrite {
				t.Errorf("wrote = %v, want %v", got, tt.wantWrite)
			}
		})
	}
}

func TestMirrorWorker_HandleLedgerChangedFailure(t *testing.T) {
	src := newStubSource()
	src.fail(errors.New("backend down"))
	w := NewMirrorWorker(src, memory.New(), nil)
	msg := amqp.NewLedgerChanged(amqp.PenaltyInserted, "p9")

	if err := w.HandleLedgerChanged(context.Background(), msg); err != nil {
		t.Errorf("failed sync should be acknowledged, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.HandleLedgerChanged(ctx, msg); !errors.Is(err, context.Canceled) {
		t.Errorf("HandleLedgerChanged() on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestMirrorWorker_Run(t *testing.T) {
	mirror := memory.New()
	rec := &recorder{}
	w := NewMirrorWorker(newStubSource(), mirror, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 5*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for mirror.Writes() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if mirror.Writes() < 2 {
		t.Fatalf("writes = %d, want at least 2", mirror.Writes())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, r := range rec.records {
		if r.trigger != TriggerPeriodic {
			t.Errorf("trigger = %q, want %q", r.trigger, TriggerPeriodic)
		}
	}
}
