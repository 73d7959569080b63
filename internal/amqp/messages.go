package amqp

import (
	"encoding/json"
	"time"
)

const (
	ActionSync   = "sync"
	ActionDelete = "delete"
)

// LedgerSyncMessage tells the worker that one transaction needs mirroring to
// the external ledger. It carries only the keys; the worker fetches the full
// record from the store.
type LedgerSyncMessage struct {
	UID       string    `json:"uid"`
	TxID      string    `json:"tx_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(uid, txID, action string) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		UID:       uid,
		TxID:      txID,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
