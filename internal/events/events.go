package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type Type string

const (
	SyncStarted         Type = "sync_started"
	SyncProgress        Type = "sync_progress"
	SyncCompleted       Type = "sync_completed"
	SyncFailed          Type = "sync_failed"
	SyncSkipped         Type = "sync_skipped"
	OperationQueued     Type = "operation_queued"
	OperationRetry      Type = "operation_retry"
	OperationFailed     Type = "operation_failed"
	ManualSyncTriggered Type = "manual_sync_triggered"
	SyncDataCleared     Type = "sync_data_cleared"
)

// Event is a single sync lifecycle notification. Only the fields relevant to
// the event's type are set.
type Event struct {
	Type Type      `json:"type"`
	At   time.Time `json:"at"`

	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`

	Current int `json:"current,omitempty"`
	Total   int `json:"total,omitempty"`

	SyncedItems int `json:"syncedItems"`
	Remaining   int `json:"remaining,omitempty"`
	Deferred    int `json:"deferred,omitempty"`
	Waiting     int `json:"waiting,omitempty"`

	OperationID   string        `json:"operationId,omitempty"`
	OperationType string        `json:"operationType,omitempty"`
	RetryCount    int           `json:"retryCount,omitempty"`
	RetryDelay    time.Duration `json:"-"`
	AuthRequired  bool          `json:"authRequired,omitempty"`
}

type wireEvent Event

// MarshalJSON writes RetryDelay as whole milliseconds.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		wireEvent
		RetryDelay int64 `json:"retryDelay,omitempty"`
	}{wireEvent(e), e.RetryDelay.Milliseconds()})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	aux := struct {
		*wireEvent
		RetryDelay int64 `json:"retryDelay"`
	}{wireEvent: (*wireEvent)(e)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	e.RetryDelay = time.Duration(aux.RetryDelay) * time.Millisecond

	return nil
}

type Listener func(Event)

type subscription struct {
	id       uint64
	listener Listener
}

// Bus fans events out to listeners synchronously, in registration order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{logger: logger.With("component", "events")}
}

// Subscribe registers l and returns a function that removes it.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, listener: l})

	var once sync.Once

	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers e to every listener. A panicking listener is logged and
// does not stop delivery to the others.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s.listener, e)
	}
}

func (b *Bus) deliver(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked", "type", e.Type, "panic", r)
		}
	}()

	l(e)
}
