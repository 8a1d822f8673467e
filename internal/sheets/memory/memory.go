// Package memory keeps the last mirrored snapshot in process. The worker uses
// it when no spreadsheet is configured, and tests use it to inspect writes.
package memory

import (
	"context"
	"sync"

	"fanliga/internal/sheets"
)

type Mirror struct {
	mu     sync.Mutex
	last   sheets.Snapshot
	writes int
	fail   error
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

// Replace stores a copy of the snapshot.
func (m *Mirror) Replace(ctx context.Context, snap sheets.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.last = sheets.Snapshot{
		Ledger:  append(snap.Ledger[:0:0], snap.Ledger...),
		Totals:  append(snap.Totals[:0:0], snap.Totals...),
		TakenAt: snap.TakenAt,
	}
	m.writes++
	return nil
}

// Last returns the most recent snapshot and whether one was written.
func (m *Mirror) Last() (sheets.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.writes > 0
}

func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailWith makes every following Replace return err. A nil err clears it.
func (m *Mirror) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}
