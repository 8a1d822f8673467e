package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ChangeKind names the write that produced a LedgerChanged message.
type ChangeKind string

const (
	PenaltyInserted    ChangeKind = "penalty_inserted"
	PenaltyUpdated     ChangeKind = "penalty_updated"
	PenaltyDeleted     ChangeKind = "penalty_deleted"
	ParticipantUpdated ChangeKind = "participant_updated"
	// FullResync asks consumers to rebuild their mirror from scratch.
	FullResync ChangeKind = "full_resync"
)

// LedgerChanged is a lightweight notification. It carries only the kind and
// the affected id; consumers re-fetch the collections they mirror.
type LedgerChanged struct {
	Kind      ChangeKind `json:"kind"`
	EntityID  string     `json:"entity_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewLedgerChanged(kind ChangeKind, entityID string) *LedgerChanged {
	return &LedgerChanged{
		Kind:      kind,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChanged) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedFromJSON(data []byte) (*LedgerChanged, error) {
	var msg LedgerChanged
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" {
		return nil, errors.New("ledger change without kind")
	}
	return &msg, nil
}
