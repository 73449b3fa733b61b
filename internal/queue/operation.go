package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OperationType string

const (
	CreateSheet    OperationType = "CREATE_SHEET"
	CreateCategory OperationType = "CREATE_CATEGORY"
)

// Operation is a container-level mutation waiting to be reconciled remotely.
type Operation struct {
	ID            string          `json:"id"`
	Type          OperationType   `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	RetryCount    int             `json:"retryCount"`
	LastAttemptAt *time.Time      `json:"lastAttemptAt,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
}

func (o *Operation) Decode(dst any) error {
	if err := json.Unmarshal(o.Payload, dst); err != nil {
		return fmt.Errorf("decoding %s payload: %w", o.Type, err)
	}

	return nil
}

type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// PendingOperation is a record-level mutation. It is marked synced rather
// than removed once reconciled.
type PendingOperation struct {
	ID            string          `json:"id"`
	Kind          Kind            `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	Synced        bool            `json:"synced"`
	SyncedAt      *time.Time      `json:"syncedAt,omitempty"`
	RetryCount    int             `json:"retryCount"`
	LastAttemptAt *time.Time      `json:"lastAttemptAt,omitempty"`
	LastError     string          `json:"lastError,omitempty"`
}

func (p *PendingOperation) Decode(dst any) error {
	if err := json.Unmarshal(p.Payload, dst); err != nil {
		return fmt.Errorf("decoding %s payload: %w", p.Kind, err)
	}

	return nil
}

type SheetPayload struct {
	SheetID   string `json:"sheetId"`
	SheetName string `json:"sheetName"`
	OwnerID   string `json:"ownerId"`
	// RemoteID is set once the container exists remotely but the sheet
	// could not yet be updated locally.
	RemoteID string `json:"remoteId,omitempty"`
}

type CategoryPayload struct {
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

type TransactionPayload struct {
	SheetID       string          `json:"sheetId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Purpose       string          `json:"purpose"`
	Category      string          `json:"category"`
	Kind          string          `json:"kind"`
	CreatedAt     time.Time       `json:"createdAt"`
}
