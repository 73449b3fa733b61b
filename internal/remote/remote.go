package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=remote.go -destination=adapter_mock.go -package=remote

// ErrAuthRequired means the credentials were rejected and retrying will not help.
var ErrAuthRequired = errors.New("remote authorization required")

// TransientError is a failure that may succeed on retry.
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func IsAuthRequired(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Container is the remote representation of a sheet.
type Container struct {
	ID  string
	URL string
}

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Record is one appended row. Deletes carry the negated amount so that the
// remote column sums stay correct.
type Record struct {
	TransactionID string
	CreatedAt     time.Time
	Kind          string
	Amount        decimal.Decimal
	Category      string
	Purpose       string
	SheetName     string
	SyncedAt      time.Time
	Action        Action
}

// Adapter reconciles local entities with the remote store.
type Adapter interface {
	CreateContainer(ctx context.Context, name, ownerID string) (Container, error)
	AppendRecord(ctx context.Context, containerID string, record Record) error
}
