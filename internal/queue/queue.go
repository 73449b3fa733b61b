package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/expenso/internal/events"
	"github.com/MrJamesThe3rd/expenso/internal/storage"
)

var (
	// ErrNotQueued means the operation could not be persisted and will never
	// be synced unless the caller retries.
	ErrNotQueued = errors.New("operation not queued")

	ErrUnknownOperation = errors.New("unknown operation")
)

// Stats summarizes the durable collections.
type Stats struct {
	Queued   int       `json:"queued"`
	Pending  int       `json:"pending"`
	Unsynced int       `json:"unsynced"`
	LastSync time.Time `json:"lastSync,omitzero"`
}

// Queue owns the sync_queue, pending_operations and last_sync_timestamp
// documents of one user.
type Queue struct {
	store  *storage.Store
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex

	hooksMu sync.Mutex
	hookID  uint64
	hooks   map[uint64]func()
}

func New(store *storage.Store, bus *events.Bus, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		store:  store,
		bus:    bus,
		logger: logger.With("component", "queue"),
		now:    func() time.Time { return time.Now().UTC() },
		hooks:  make(map[uint64]func()),
	}
}

// OnEnqueue registers fn to run after every successful enqueue.
func (q *Queue) OnEnqueue(fn func()) func() {
	q.hooksMu.Lock()
	defer q.hooksMu.Unlock()

	q.hookID++
	id := q.hookID
	q.hooks[id] = fn

	return func() {
		q.hooksMu.Lock()
		defer q.hooksMu.Unlock()

		delete(q.hooks, id)
	}
}

func (q *Queue) queued(id, kind string) {
	if q.bus != nil {
		q.bus.Publish(events.Event{Type: events.OperationQueued, OperationID: id, OperationType: kind})
	}

	q.hooksMu.Lock()
	hooks := make([]func(), 0, len(q.hooks))
	for _, fn := range q.hooks {
		hooks = append(hooks, fn)
	}
	q.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (q *Queue) operations(ctx context.Context) ([]Operation, error) {
	var ops []Operation
	if _, err := q.store.Lookup(ctx, storage.KeySyncQueue, &ops); err != nil {
		return nil, err
	}

	return ops, nil
}

func (q *Queue) pending(ctx context.Context) ([]PendingOperation, error) {
	var ops []PendingOperation
	if _, err := q.store.Lookup(ctx, storage.KeyPendingOperations, &ops); err != nil {
		return nil, err
	}

	return ops, nil
}

// Enqueue appends a container-level operation.
func (q *Queue) Enqueue(ctx context.Context, typ OperationType, payload any) (*Operation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding payload: %w", ErrNotQueued, err)
	}

	op := Operation{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Type:       typ,
		Payload:    raw,
		EnqueuedAt: q.now(),
	}

	q.mu.Lock()

	ops, err := q.operations(ctx)
	if err == nil {
		err = q.store.Put(ctx, storage.KeySyncQueue, append(ops, op))
	}

	q.mu.Unlock()

	if err != nil {
		q.logger.Error("failed to enqueue operation", "type", typ, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotQueued, err)
	}

	q.logger.Debug("operation queued", "id", op.ID, "type", typ)
	q.queued(op.ID, string(typ))

	return &op, nil
}

func (q *Queue) Operations(ctx context.Context) ([]Operation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.operations(ctx)
}

// UpdateOperation replaces the stored operation with the same id.
func (q *Queue) UpdateOperation(ctx context.Context, op Operation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.operations(ctx)
	if err != nil {
		return err
	}

	i := slices.IndexFunc(ops, func(o Operation) bool { return o.ID == op.ID })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, op.ID)
	}

	ops[i] = op

	return q.store.Put(ctx, storage.KeySyncQueue, ops)
}

func (q *Queue) RemoveOperation(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.operations(ctx)
	if err != nil {
		return err
	}

	kept := slices.DeleteFunc(ops, func(o Operation) bool { return o.ID == id })

	return q.store.Put(ctx, storage.KeySyncQueue, kept)
}

// AddPending appends a record-level operation.
func (q *Queue) AddPending(ctx context.Context, kind Kind, payload any) (*PendingOperation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding payload: %w", ErrNotQueued, err)
	}

	op := PendingOperation{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: q.now(),
	}

	q.mu.Lock()

	ops, err := q.pending(ctx)
	if err == nil {
		err = q.store.Put(ctx, storage.KeyPendingOperations, append(ops, op))
	}

	q.mu.Unlock()

	if err != nil {
		q.logger.Error("failed to add pending operation", "kind", kind, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotQueued, err)
	}

	q.logger.Debug("pending operation added", "id", op.ID, "kind", kind)
	q.queued(op.ID, string(kind))

	return &op, nil
}

func (q *Queue) Pending(ctx context.Context) ([]PendingOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.pending(ctx)
}

// Unsynced returns the pending operations not yet reconciled, oldest first.
func (q *Queue) Unsynced(ctx context.Context) ([]PendingOperation, error) {
	ops, err := q.Pending(ctx)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(ops, func(p PendingOperation) bool { return p.Synced }), nil
}

func (q *Queue) modifyPending(ctx context.Context, id string, fn func(*PendingOperation)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.pending(ctx)
	if err != nil {
		return err
	}

	i := slices.IndexFunc(ops, func(p PendingOperation) bool { return p.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}

	fn(&ops[i])

	return q.store.Put(ctx, storage.KeyPendingOperations, ops)
}

func (q *Queue) MarkSynced(ctx context.Context, id string) error {
	return q.modifyPending(ctx, id, func(p *PendingOperation) {
		p.Synced = true
		p.SyncedAt = new(q.now())
		p.LastError = ""
	})
}

func (q *Queue) UpdatePending(ctx context.Context, op PendingOperation) error {
	return q.modifyPending(ctx, op.ID, func(p *PendingOperation) {
		*p = op
	})
}

func (q *Queue) RemovePending(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.pending(ctx)
	if err != nil {
		return err
	}

	kept := slices.DeleteFunc(ops, func(p PendingOperation) bool { return p.ID == id })

	return q.store.Put(ctx, storage.KeyPendingOperations, kept)
}

// RemoveSynced drops every reconciled pending operation.
func (q *Queue) RemoveSynced(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.pending(ctx)
	if err != nil {
		return 0, err
	}

	before := len(ops)
	kept := slices.DeleteFunc(ops, func(p PendingOperation) bool { return p.Synced })

	if err := q.store.Put(ctx, storage.KeyPendingOperations, kept); err != nil {
		return 0, err
	}

	return before - len(kept), nil
}

func (q *Queue) LastSync(ctx context.Context) (time.Time, bool) {
	var t time.Time
	if !q.store.Get(ctx, storage.KeyLastSync, &t) {
		return time.Time{}, false
	}

	return t, true
}

func (q *Queue) SetLastSync(ctx context.Context, t time.Time) error {
	return q.store.Put(ctx, storage.KeyLastSync, t.UTC())
}

// Prune removes every entry enqueued before cutoff, synced or not.
func (q *Queue) Prune(ctx context.Context, cutoff time.Time) (int, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.operations(ctx)
	if err != nil {
		return 0, 0, err
	}

	pending, err := q.pending(ctx)
	if err != nil {
		return 0, 0, err
	}

	nOps, nPending := len(ops), len(pending)

	ops = slices.DeleteFunc(ops, func(o Operation) bool { return o.EnqueuedAt.Before(cutoff) })
	pending = slices.DeleteFunc(pending, func(p PendingOperation) bool { return p.EnqueuedAt.Before(cutoff) })

	if err := q.store.Put(ctx, storage.KeySyncQueue, ops); err != nil {
		return 0, 0, err
	}

	if err := q.store.Put(ctx, storage.KeyPendingOperations, pending); err != nil {
		return 0, 0, err
	}

	return nOps - len(ops), nPending - len(pending), nil
}

// Clear removes all three sync documents.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, key := range []string{storage.KeySyncQueue, storage.KeyPendingOperations, storage.KeyLastSync} {
		if !q.store.Remove(ctx, key) {
			return fmt.Errorf("removing %s", key)
		}
	}

	return nil
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	ops, err := q.Operations(ctx)
	if err != nil {
		return Stats{}, err
	}

	pending, err := q.Pending(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Queued: len(ops), Pending: len(pending)}
	for _, p := range pending {
		if !p.Synced {
			stats.Unsynced++
		}
	}

	stats.LastSync, _ = q.LastSync(ctx)

	return stats, nil
}
