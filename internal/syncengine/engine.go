package syncengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrJamesThe3rd/expenso/internal/events"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
	"github.com/MrJamesThe3rd/expenso/internal/remote"
)

var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrRetryExhausted = errors.New("retry limit reached")
)

// Queue is the durable operation store the engine drains.
type Queue interface {
	Operations(ctx context.Context) ([]queue.Operation, error)
	UpdateOperation(ctx context.Context, op queue.Operation) error
	RemoveOperation(ctx context.Context, id string) error
	Unsynced(ctx context.Context) ([]queue.PendingOperation, error)
	MarkSynced(ctx context.Context, id string) error
	UpdatePending(ctx context.Context, op queue.PendingOperation) error
	RemovePending(ctx context.Context, id string) error
	RemoveSynced(ctx context.Context) (int, error)
	LastSync(ctx context.Context) (time.Time, bool)
	SetLastSync(ctx context.Context, t time.Time) error
	Prune(ctx context.Context, cutoff time.Time) (int, int, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (queue.Stats, error)
	OnEnqueue(fn func()) func()
}

// Reconciler is the local side of a sheet: it is read to resolve
// dependencies and updated as operations succeed or fail.
type Reconciler interface {
	Sheet(ctx context.Context, id string) (*ledger.Sheet, error)
	MarkSheetSyncing(ctx context.Context, sheetID string) error
	MarkSheetSynced(ctx context.Context, sheetID, remoteID string) error
	MarkSheetFailed(ctx context.Context, sheetID, reason string) error
	MarkTransactionSynced(ctx context.Context, sheetID, txID string, asOf time.Time) error
}

type Connectivity interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) func()
}

type Config struct {
	Interval        time.Duration
	EnqueueDebounce time.Duration
	ConnectDebounce time.Duration
	RetryBase       time.Duration
	MaxRetries      int
	QueueDelay      time.Duration
	PendingDelay    time.Duration
	Retention       time.Duration

	Logger *slog.Logger
	Clock  func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Interval:        2 * time.Minute,
		EnqueueDebounce: time.Second,
		ConnectDebounce: 2 * time.Second,
		RetryBase:       5 * time.Second,
		MaxRetries:      3,
		QueueDelay:      time.Second,
		PendingDelay:    500 * time.Millisecond,
		Retention:       7 * 24 * time.Hour,
	}
}

// Backoff returns base·2^(n-1) for the n-th retry.
func Backoff(base time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}

	return base << (n - 1)
}

// Engine reconciles queued operations with the remote store. Only one cycle
// runs at a time.
type Engine struct {
	queue  Queue
	ledger Reconciler
	remote remote.Adapter
	net    Connectivity
	bus    *events.Bus
	cfg    Config
	logger *slog.Logger

	cycle   sync.Mutex
	syncing atomic.Bool
	wake    chan struct{}

	// authBlocked holds background cycles after the remote rejected our
	// credentials, until a manual sync or Reauthorize.
	authBlocked atomic.Bool

	timersMu sync.Mutex
	running  bool
	debounce *time.Timer
	retries  map[*time.Timer]struct{}

	cancel context.CancelFunc
	unsubs []func()
	wg     sync.WaitGroup
}

func New(q Queue, rec Reconciler, adapter remote.Adapter, net Connectivity, bus *events.Bus, cfg Config) *Engine {
	def := DefaultConfig()

	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = def.MaxRetries
	}

	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}

	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}

	if bus == nil {
		bus = events.NewBus(cfg.Logger)
	}

	return &Engine{
		queue:   q,
		ledger:  rec,
		remote:  adapter,
		net:     net,
		bus:     bus,
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "syncengine"),
		wake:    make(chan struct{}, 1),
		retries: make(map[*time.Timer]struct{}),
	}
}

func (e *Engine) Events() *events.Bus {
	return e.bus
}

// Start prunes expired entries, wires the triggers and runs an initial cycle
// in the background.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	if q, p, err := e.Prune(ctx); err != nil {
		e.logger.Warn("failed to prune sync data", "error", err)
	} else if q+p > 0 {
		e.logger.Info("pruned expired sync data", "queue", q, "pending", p)
	}

	e.timersMu.Lock()
	e.running = true
	e.timersMu.Unlock()

	e.unsubs = append(e.unsubs,
		e.net.Subscribe(func(online bool) {
			if online {
				e.Schedule(e.cfg.ConnectDebounce)
			}
		}),
		e.queue.OnEnqueue(func() {
			e.Schedule(e.cfg.EnqueueDebounce)
		}),
	)

	e.wg.Go(func() { e.worker(ctx) })

	e.trigger()
}

// Stop cancels pending triggers and waits for the worker. A cycle that
// already started runs to completion.
func (e *Engine) Stop() {
	for _, unsubscribe := range e.unsubs {
		unsubscribe()
	}

	e.unsubs = nil

	e.timersMu.Lock()
	e.running = false

	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}

	for t := range e.retries {
		t.Stop()
	}

	clear(e.retries)
	e.timersMu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}

	e.wg.Wait()
}

func (e *Engine) worker(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.net.IsOnline() {
				e.background(ctx)
			}
		case <-e.wake:
			e.background(ctx)
		}
	}
}

func (e *Engine) background(ctx context.Context) {
	if e.authBlocked.Load() {
		e.logger.Debug("sync skipped, remote authorization required")
		e.bus.Publish(events.Event{Type: events.SyncSkipped, Reason: ReasonAuthRequired})

		return
	}

	if _, err := e.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
		e.logger.Error("sync cycle failed", "error", err)
	}
}

// trigger wakes the worker. Wakeups coalesce while one is pending.
func (e *Engine) trigger() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Schedule requests a cycle after delay. A later call replaces an earlier
// one that has not fired yet.
func (e *Engine) Schedule(delay time.Duration) {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()

	if !e.running {
		return
	}

	if e.debounce != nil {
		e.debounce.Stop()
	}

	e.debounce = time.AfterFunc(delay, e.trigger)
}

func (e *Engine) scheduleRetry(delay time.Duration) {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()

	if !e.running {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		e.timersMu.Lock()
		delete(e.retries, t)
		e.timersMu.Unlock()

		e.trigger()
	})

	e.retries[t] = struct{}{}
}

// Sync runs one cycle now. It fails fast with ErrSyncInProgress when a
// cycle is already running. The cycle ignores ctx cancellation once started.
func (e *Engine) Sync(ctx context.Context) (Summary, error) {
	if !e.cycle.TryLock() {
		return Summary{}, ErrSyncInProgress
	}
	defer e.cycle.Unlock()

	e.syncing.Store(true)
	defer e.syncing.Store(false)

	return e.runCycle(context.WithoutCancel(ctx))
}

const (
	MessageInProgress   = "Sync already in progress"
	MessageOffline      = "No internet connection"
	MessageAuthRequired = "Remote authorization required"
	MessageCompleted    = "Manual sync completed"

	ReasonAuthRequired = "auth_required"
)

type Result struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Summary Summary `json:"summary"`
}

// Reauthorize lifts the hold placed on background cycles by a rejected
// credential and requests a cycle.
func (e *Engine) Reauthorize() {
	if e.authBlocked.CompareAndSwap(true, false) {
		e.logger.Info("remote authorization renewed")
	}

	e.trigger()
}

// ManualSync runs a user requested cycle and reports the outcome. It also
// retries operations held back by AuthRequired.
func (e *Engine) ManualSync(ctx context.Context) Result {
	e.logger.Info("manual sync triggered")
	e.bus.Publish(events.Event{Type: events.ManualSyncTriggered})

	e.authBlocked.Store(false)

	summary, err := e.Sync(ctx)

	switch {
	case errors.Is(err, ErrSyncInProgress):
		return Result{Message: MessageInProgress}
	case err != nil:
		return Result{Message: err.Error(), Summary: summary}
	case summary.Skipped:
		return Result{Message: MessageOffline, Summary: summary}
	case summary.AuthRequired:
		return Result{Message: MessageAuthRequired, Summary: summary}
	}

	return Result{Success: true, Message: MessageCompleted, Summary: summary}
}

type Status struct {
	Syncing           bool       `json:"isSyncing"`
	Online            bool       `json:"isOnline"`
	PendingOperations int        `json:"pendingOperations"`
	QueuedOperations  int        `json:"syncQueue"`
	TotalUnsynced     int        `json:"totalUnsynced"`
	AuthRequired      bool       `json:"authRequired"`
	LastSync          *time.Time `json:"lastSyncTimestamp,omitempty"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	stats, err := e.queue.Stats(ctx)
	if err != nil {
		return Status{}, err
	}

	s := Status{
		Syncing:           e.syncing.Load(),
		Online:            e.net.IsOnline(),
		PendingOperations: stats.Unsynced,
		QueuedOperations:  stats.Queued,
		TotalUnsynced:     stats.Unsynced + stats.Queued,
		AuthRequired:      e.authBlocked.Load(),
	}

	if !stats.LastSync.IsZero() {
		s.LastSync = &stats.LastSync
	}

	return s, nil
}

func (e *Engine) HasUnsyncedData(ctx context.Context) (bool, error) {
	s, err := e.Status(ctx)
	if err != nil {
		return false, err
	}

	return s.TotalUnsynced > 0, nil
}

// Prune drops queue entries older than the retention window.
func (e *Engine) Prune(ctx context.Context) (int, int, error) {
	return e.queue.Prune(ctx, e.cfg.Clock().Add(-e.cfg.Retention))
}

func (e *Engine) RemoveSynced(ctx context.Context) (int, error) {
	return e.queue.RemoveSynced(ctx)
}

// ClearAll forgets every queued operation and the last sync time.
func (e *Engine) ClearAll(ctx context.Context) error {
	if err := e.queue.Clear(ctx); err != nil {
		return err
	}

	e.logger.Info("sync data cleared")
	e.bus.Publish(events.Event{Type: events.SyncDataCleared})

	return nil
}
