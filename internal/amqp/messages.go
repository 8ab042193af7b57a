package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrIncompleteMessage = errors.New("ledger sync message missing identifiers")

// LedgerSyncMessage is the lightweight envelope published after a ledger
// append. It carries only identifiers; the worker reloads the full
// transaction from the database before exporting it.
type LedgerSyncMessage struct {
	XitiqueID     string    `json:"xitique_id"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerSyncMessage(xitiqueID, transactionID string) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		XitiqueID:     xitiqueID,
		TransactionID: transactionID,
		Timestamp:     time.Now(),
	}
}

func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.XitiqueID == "" || msg.TransactionID == "" {
		return nil, ErrIncompleteMessage
	}
	return &msg, nil
}
