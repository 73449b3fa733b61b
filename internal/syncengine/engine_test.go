package syncengine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/expenso/internal/connectivity"
	"github.com/MrJamesThe3rd/expenso/internal/events"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/expenso/internal/ledger/store"
	"github.com/MrJamesThe3rd/expenso/internal/logging"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
	"github.com/MrJamesThe3rd/expenso/internal/remote"
	"github.com/MrJamesThe3rd/expenso/internal/storage"
	"github.com/MrJamesThe3rd/expenso/internal/storage/memory"
	"github.com/MrJamesThe3rd/expenso/internal/syncengine"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) listen(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}

	return out
}

func (r *recorder) of(typ events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []events.Event

	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}

	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type harness struct {
	engine *syncengine.Engine
	ledger *ledger.Service
	queue  *queue.Queue
	net    *connectivity.Monitor
	remote *remote.MockAdapter
	events *recorder
	clock  *clock
	bus    *events.Bus
	cfg    syncengine.Config
}

// withReconciler builds a second engine over the same queue, remote and bus.
func (h harness) withReconciler(rec syncengine.Reconciler) *syncengine.Engine {
	return syncengine.New(h.queue, rec, h.remote, h.net, h.bus, h.cfg)
}

func newHarness(t *testing.T, online bool) harness {
	t.Helper()

	logger := logging.Discard()
	bus := events.NewBus(logger)
	rec := &recorder{}
	bus.Subscribe(rec.listen)

	docs := storage.New(memory.New(), logger).ForUser("alice@example.com")
	q := queue.New(docs, bus, logger)
	led := ledger.NewService(ledgerStore.New(docs), q, "alice@example.com", logger)

	net := connectivity.New(nil, connectivity.Config{Logger: logger})
	net.SetOnline(online)

	adapter := remote.NewMockAdapter(gomock.NewController(t))
	clk := &clock{now: time.Now().UTC()}

	cfg := syncengine.Config{
		Interval:        time.Hour,
		EnqueueDebounce: 10 * time.Millisecond,
		ConnectDebounce: 10 * time.Millisecond,
		RetryBase:       5 * time.Second,
		MaxRetries:      3,
		Logger:          logger,
		Clock:           clk.Now,
	}

	return harness{
		engine: syncengine.New(q, led, adapter, net, bus, cfg),
		ledger: led,
		queue:  q,
		net:    net,
		remote: adapter,
		events: rec,
		clock:  clk,
		bus:    bus,
		cfg:    cfg,
	}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBackoff(t *testing.T) {
	type testCase struct {
		n    int
		want time.Duration
	}

	tests := []testCase{
		{n: 0, want: 5 * time.Second},
		{n: 1, want: 5 * time.Second},
		{n: 2, want: 10 * time.Second},
		{n: 3, want: 20 * time.Second},
		{n: 4, want: 40 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			assert.Equal(t, tt.want, syncengine.Backoff(5*time.Second, tt.n))
		})
	}
}

func TestSync_Offline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)

	_, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	h.events.reset()

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Skipped)

	skipped := h.events.of(events.SyncSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, "offline", skipped[0].Reason)
	assert.Equal(t, []events.Type{events.SyncSkipped}, h.events.types())

	ops, err := h.queue.Operations(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestSync_Empty(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncengine.Summary{}, summary)

	completed := h.events.of(events.SyncCompleted)
	require.Len(t, completed, 1)
	assert.Zero(t, completed[0].SyncedItems)
	assert.Equal(t, []events.Type{events.SyncCompleted}, h.events.types())

	_, ok := h.queue.LastSync(ctx)
	assert.False(t, ok)
}

func TestSync_SheetBeforeItsTransactions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	tx, err := h.ledger.AddTransaction(ctx, sheet.ID, ledger.TransactionParams{
		Amount: amount("12.50"), Purpose: "lunch", Category: "Food", Kind: ledger.KindDebit,
	})
	require.NoError(t, err)

	var appended remote.Record

	gomock.InOrder(
		h.remote.EXPECT().CreateContainer(gomock.Any(), "Trip", "alice@example.com").
			Return(remote.Container{ID: "ss-1"}, nil),
		h.remote.EXPECT().AppendRecord(gomock.Any(), "ss-1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, r remote.Record) error {
				appended = r
				return nil
			}),
	)

	h.events.reset()

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Synced)
	assert.Zero(t, summary.Remaining)

	assert.Equal(t, []events.Type{
		events.SyncStarted, events.SyncProgress, events.SyncProgress, events.SyncCompleted,
	}, h.events.types())

	progress := h.events.of(events.SyncProgress)
	assert.Equal(t, 2, progress[1].Current)
	assert.Equal(t, 2, progress[1].Total)

	completed := h.events.of(events.SyncCompleted)
	assert.Equal(t, 2, completed[0].SyncedItems)

	assert.Equal(t, tx.ID, appended.TransactionID)
	assert.Equal(t, remote.ActionCreate, appended.Action)
	assert.Equal(t, "Trip", appended.SheetName)
	assert.True(t, appended.Amount.Equal(amount("12.5")))

	got, err := h.ledger.Sheet(ctx, sheet.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Equal(t, "ss-1", got.RemoteID)
	assert.Equal(t, ledger.SyncSynced, got.SyncStatus)
	assert.True(t, got.Transactions[0].Synced)

	_, ok := h.queue.LastSync(ctx)
	assert.True(t, ok)

	has, err := h.engine.HasUnsyncedData(ctx)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSync_ContainerCreationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	// A duplicate operation for a sheet that already has its container.
	_, err = h.ledger.RetrySheetSync(ctx, sheet.ID)
	require.NoError(t, err)

	h.remote.EXPECT().CreateContainer(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(remote.Container{ID: "ss-1"}, nil).Times(1)

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Synced)

	ops, err := h.queue.Operations(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestSync_DeferredRecordsKeepTheirRetries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	_, err = h.ledger.AddTransaction(ctx, sheet.ID, ledger.TransactionParams{Amount: amount("1"), Purpose: "bus", Kind: ledger.KindDebit})
	require.NoError(t, err)

	h.remote.EXPECT().CreateContainer(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(remote.Container{}, &remote.TransientError{Op: "create", StatusCode: 503, Err: errors.New("unavailable")})

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Retried)
	assert.Equal(t, 1, summary.Deferred)
	assert.Equal(t, 2, summary.Remaining)

	completed := h.events.of(events.SyncCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, 1, completed[0].Deferred)

	pending, err := h.queue.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].RetryCount)

	retries := h.events.of(events.OperationRetry)
	require.Len(t, retries, 1)
	assert.Equal(t, 5*time.Second, retries[0].RetryDelay)
	assert.Equal(t, 1, retries[0].RetryCount)
}

func TestSync_RetryExhaustion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	h.remote.EXPECT().CreateContainer(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(remote.Container{}, &remote.TransientError{Op: "create", Err: errors.New("timeout")}).
		Times(3)

	for range 3 {
		_, err := h.engine.Sync(ctx)
		require.NoError(t, err)

		h.clock.Advance(time.Minute)
	}

	retries := h.events.of(events.OperationRetry)
	require.Len(t, retries, 2)
	assert.Equal(t, 5*time.Second, retries[0].RetryDelay)
	assert.Equal(t, 10*time.Second, retries[1].RetryDelay)

	failed := h.events.of(events.OperationFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].RetryCount)
	assert.Contains(t, failed[0].Error, syncengine.ErrRetryExhausted.Error())

	ops, err := h.queue.Operations(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)

	got, err := h.ledger.Sheet(ctx, sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.SyncError, got.SyncStatus)
	assert.False(t, got.Synced)

	// Nothing left to fail: a further cycle emits no second failure.
	_, err = h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Len(t, h.events.of(events.OperationFailed), 1)
}

func TestSync_AuthRequiredStopsTheCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	_, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	_, err = h.ledger.CreateSheet(ctx, "Home")
	require.NoError(t, err)

	h.remote.EXPECT().CreateContainer(gomock.Any(), "Trip", gomock.Any()).
		Return(remote.Container{}, fmt.Errorf("create spreadsheet: %w", remote.ErrAuthRequired)).
		Times(2)

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, summary.AuthRequired)
	assert.Equal(t, 2, summary.Remaining)

	failed := h.events.of(events.SyncFailed)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].AuthRequired)
	assert.Empty(t, h.events.of(events.SyncCompleted))
	assert.Empty(t, h.events.of(events.OperationRetry))

	ops, err := h.queue.Operations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Zero(t, ops[0].RetryCount)
	assert.Contains(t, ops[0].LastError, "authorization")

	_, ok := h.queue.LastSync(ctx)
	assert.False(t, ok)

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.AuthRequired)

	result := h.engine.ManualSync(ctx)
	assert.False(t, result.Success)
	assert.Equal(t, syncengine.MessageAuthRequired, result.Message)
}

func TestSync_RecordActions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)
	require.NoError(t, h.ledger.MarkSheetSynced(ctx, sheet.ID, "ss-1"))

	tx, err := h.ledger.AddTransaction(ctx, sheet.ID, ledger.TransactionParams{Amount: amount("10"), Purpose: "taxi", Kind: ledger.KindDebit})
	require.NoError(t, err)

	_, err = h.ledger.UpdateTransaction(ctx, sheet.ID, tx.ID, ledger.TransactionUpdate{Amount: new(amount("12"))})
	require.NoError(t, err)

	require.NoError(t, h.ledger.DeleteTransaction(ctx, sheet.ID, tx.ID))

	var records []remote.Record

	h.remote.EXPECT().AppendRecord(gomock.Any(), "ss-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, r remote.Record) error {
			records = append(records, r)
			return nil
		}).Times(3)

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Synced)

	require.Len(t, records, 3)
	assert.Equal(t, remote.ActionCreate, records[0].Action)
	assert.True(t, records[0].Amount.Equal(amount("10")))
	assert.Equal(t, remote.ActionUpdate, records[1].Action)
	assert.True(t, records[1].Amount.Equal(amount("12")))
	assert.Equal(t, remote.ActionDelete, records[2].Action)
	assert.True(t, records[2].Amount.Equal(amount("-12")))

	unsynced, err := h.queue.Unsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	all, err := h.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	removed, err := h.engine.RemoveSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}

func TestSync_RecordRetryExhaustion(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)
	require.NoError(t, h.ledger.MarkSheetSynced(ctx, sheet.ID, "ss-1"))

	_, err = h.ledger.AddTransaction(ctx, sheet.ID, ledger.TransactionParams{Amount: amount("1"), Purpose: "bus", Kind: ledger.KindDebit})
	require.NoError(t, err)

	h.remote.EXPECT().AppendRecord(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&remote.TransientError{Op: "append", StatusCode: 500, Err: errors.New("boom")}).
		Times(3)

	for range 3 {
		_, err := h.engine.Sync(ctx)
		require.NoError(t, err)

		h.clock.Advance(time.Minute)
	}

	failed := h.events.of(events.OperationFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "create", failed[0].OperationType)

	pending, err := h.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSync_UnknownOperationsAreDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	_, err := h.queue.Enqueue(ctx, queue.OperationType("DELETE_SHEET"), map[string]string{"sheetId": "x"})
	require.NoError(t, err)

	_, err = h.ledger.AddCategory(ctx, "Food")
	require.NoError(t, err)

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Synced)

	ops, err := h.queue.Operations(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestSync_RecordsForMissingSheetAreDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	_, err := h.queue.AddPending(ctx, queue.KindCreate, queue.TransactionPayload{SheetID: "gone", TransactionID: "t1", Amount: amount("1")})
	require.NoError(t, err)

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)

	pending, err := h.queue.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestManualSync_InProgress(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	_, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})

	h.remote.EXPECT().CreateContainer(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (remote.Container, error) {
			close(entered)
			<-release

			return remote.Container{ID: "ss-1"}, nil
		})

	done := make(chan syncengine.Result)

	go func() {
		done <- h.engine.ManualSync(ctx)
	}()

	<-entered

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Syncing)

	_, err = h.engine.Sync(ctx)
	assert.ErrorIs(t, err, syncengine.ErrSyncInProgress)

	second := h.engine.ManualSync(ctx)
	assert.False(t, second.Success)
	assert.Equal(t, syncengine.MessageInProgress, second.Message)

	close(release)

	first := <-done
	assert.True(t, first.Success)
	assert.Equal(t, 1, first.Summary.Synced)

	assert.Len(t, h.events.of(events.ManualSyncTriggered), 2)
	assert.Len(t, h.events.of(events.SyncStarted), 1)
}

func TestManualSync_Offline(t *testing.T) {
	h := newHarness(t, false)

	result := h.engine.ManualSync(context.Background())
	assert.False(t, result.Success)
	assert.True(t, result.Summary.Skipped)
}

func TestEngine_TriggersAfterStart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)

	synced := make(chan struct{})

	h.remote.EXPECT().CreateContainer(gomock.Any(), "Trip", gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (remote.Container, error) {
			close(synced)
			return remote.Container{ID: "ss-1"}, nil
		})

	h.engine.Start(ctx)
	defer h.engine.Stop()

	// Offline: the enqueue trigger only produces a skipped cycle.
	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(h.events.of(events.SyncSkipped)) >= 1
	}, time.Second, 5*time.Millisecond)

	h.net.SetOnline(true)

	select {
	case <-synced:
	case <-time.After(2 * time.Second):
		t.Fatal("connectivity transition did not trigger a sync")
	}

	assert.Eventually(t, func() bool {
		got, err := h.ledger.Sheet(ctx, sheet.ID)
		return err == nil && got.Synced
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_StatusPruneAndClear(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	_, err = h.ledger.AddTransaction(ctx, sheet.ID, ledger.TransactionParams{Amount: amount("1"), Purpose: "bus", Kind: ledger.KindDebit})
	require.NoError(t, err)

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncengine.Status{PendingOperations: 1, QueuedOperations: 1, TotalUnsynced: 2}, status)

	has, err := h.engine.HasUnsyncedData(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	removedQueue, removedPending, err := h.engine.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, removedQueue+removedPending)

	require.NoError(t, h.engine.ClearAll(ctx))
	assert.Len(t, h.events.of(events.SyncDataCleared), 1)

	status, err = h.engine.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.TotalUnsynced)
}

func TestEngine_PruneUsesRetention(t *testing.T) {
	ctx := context.Background()
	logger := logging.Discard()

	docs := storage.New(memory.New(), logger)
	q := queue.New(docs, nil, logger)

	_, err := q.Enqueue(ctx, queue.CreateCategory, queue.CategoryPayload{Name: "Food"})
	require.NoError(t, err)

	engine := syncengine.New(q, nil, nil, connectivity.New(nil, connectivity.Config{Logger: logger}), nil, syncengine.Config{
		Retention: 7 * 24 * time.Hour,
		Logger:    logger,
		Clock:     func() time.Time { return time.Now().Add(8 * 24 * time.Hour) },
	})

	removedQueue, _, err := engine.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removedQueue)
}

func TestSync_OfflineSheetRecoversOnLaterCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	tx, err := h.ledger.AddTransaction(ctx, sheet.ID, ledger.TransactionParams{
		Amount: amount("50"), Purpose: "Taxi", Category: "Transport", Kind: ledger.KindDebit,
	})
	require.NoError(t, err)
	assert.False(t, tx.Synced)

	pending, err := h.queue.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].Synced)

	summary, err := h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Skipped)

	h.net.SetOnline(true)

	h.remote.EXPECT().CreateContainer(gomock.Any(), "Trip", gomock.Any()).
		Return(remote.Container{}, &remote.TransientError{Op: "create", StatusCode: 503, Err: errors.New("unavailable")})

	summary, err = h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Retried)
	assert.Equal(t, 1, summary.Deferred)

	h.clock.Advance(5 * time.Second)

	var appended remote.Record

	gomock.InOrder(
		h.remote.EXPECT().CreateContainer(gomock.Any(), "Trip", gomock.Any()).
			Return(remote.Container{ID: "ss-1"}, nil),
		h.remote.EXPECT().AppendRecord(gomock.Any(), "ss-1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, r remote.Record) error {
				appended = r
				return nil
			}),
	)

	summary, err = h.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Synced)
	assert.Zero(t, summary.Remaining)

	assert.Equal(t, tx.ID, appended.TransactionID)
	assert.True(t, appended.Amount.Equal(amount("50")))

	got, err := h.ledger.Sheet(ctx, sheet.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Equal(t, "ss-1", got.RemoteID)
	require.Len(t, got.Transactions, 1)
	assert.True(t, got.Transactions[0].Synced)

	totals := ledger.CalculateTotals(*got)
	assert.True(t, totals.Debit.Equal(amount("50")))
	assert.True(t, totals.Credit.IsZero())
	assert.True(t, totals.Balance.Equal(amount("-50")))
}

func TestSync_RetryWaitsForBackoff(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)
	require.NoError(t, h.engine.ClearAll(ctx))
	require.NoError(t, h.ledger.MarkSheetSynced(ctx, sheet.ID, "ss-1"))

	_, err = h.ledger.AddTransaction(ctx, sheet.ID, ledger.TransactionParams{Amount: amount("3"), Purpose: "coffee", Kind: ledger.KindDebit})
	require.NoError(t, err)

	h.remote.EXPECT().AppendRecord(gomock.Any(), "ss-1", gomock.Any()).
		Return(&remote.TransientError{Op: "append", StatusCode: 503, Err: errors.New("unavailable")}).
		Times(1)

	h.engine.Start(ctx)
	defer h.engine.Stop()

	assert.Eventually(t, func() bool {
		return len(h.events.of(events.OperationRetry)) == 1
	}, time.Second, 5*time.Millisecond)

	// Enqueue triggers inside the retry delay drain the categories but leave
	// the failed record alone.
	for _, name := range []string{"Food", "Travel", "Gifts"} {
		_, err := h.ledger.AddCategory(ctx, name)
		require.NoError(t, err)

		time.Sleep(30 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		ops, err := h.queue.Operations(ctx)
		return err == nil && len(ops) == 0
	}, time.Second, 5*time.Millisecond)

	waiting := false

	for _, e := range h.events.of(events.SyncCompleted) {
		waiting = waiting || e.Waiting == 1
	}

	assert.True(t, waiting)
	assert.Len(t, h.events.of(events.OperationRetry), 1)
	assert.Empty(t, h.events.of(events.OperationFailed))

	pending, err := h.queue.Unsynced(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastAttemptAt)

	h.remote.EXPECT().AppendRecord(gomock.Any(), "ss-1", gomock.Any()).Return(nil)
	h.clock.Advance(5 * time.Second)
	h.engine.Schedule(time.Millisecond)

	assert.Eventually(t, func() bool {
		pending, err := h.queue.Unsynced(ctx)
		return err == nil && len(pending) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_AuthRequiredHoldsBackgroundCycles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)

	h.remote.EXPECT().CreateContainer(gomock.Any(), "Trip", gomock.Any()).
		Return(remote.Container{}, fmt.Errorf("create spreadsheet: %w", remote.ErrAuthRequired)).
		Times(1)

	h.engine.Start(ctx)
	defer h.engine.Stop()

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(h.events.of(events.SyncFailed)) == 1
	}, time.Second, 5*time.Millisecond)

	for _, name := range []string{"Food", "Travel", "Gifts"} {
		_, err := h.ledger.AddCategory(ctx, name)
		require.NoError(t, err)

		time.Sleep(30 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		for _, e := range h.events.of(events.SyncSkipped) {
			if e.Reason == syncengine.ReasonAuthRequired {
				return true
			}
		}

		return false
	}, time.Second, 5*time.Millisecond)

	assert.Len(t, h.events.of(events.SyncFailed), 1)

	status, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.AuthRequired)
	assert.Equal(t, 4, status.QueuedOperations)

	h.remote.EXPECT().CreateContainer(gomock.Any(), "Trip", gomock.Any()).
		Return(remote.Container{ID: "ss-1"}, nil)

	h.engine.Reauthorize()

	assert.Eventually(t, func() bool {
		ops, err := h.queue.Operations(ctx)
		return err == nil && len(ops) == 0
	}, time.Second, 5*time.Millisecond)

	got, err := h.ledger.Sheet(ctx, sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, "ss-1", got.RemoteID)

	status, err = h.engine.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.AuthRequired)
}

type flakyLedger struct {
	*ledger.Service

	failures int
}

func (f *flakyLedger) MarkSheetSynced(ctx context.Context, sheetID, remoteID string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("disk full")
	}

	return f.Service.MarkSheetSynced(ctx, sheetID, remoteID)
}

func TestSync_ContainerReusedWhenRecordingFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	engine := h.withReconciler(&flakyLedger{Service: h.ledger, failures: 1})

	sheet, err := h.ledger.CreateSheet(ctx, "Trip")
	require.NoError(t, err)

	h.remote.EXPECT().CreateContainer(gomock.Any(), "Trip", gomock.Any()).
		Return(remote.Container{ID: "ss-1"}, nil).
		Times(1)

	summary, err := engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Retried)

	ops, err := h.queue.Operations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	var payload queue.SheetPayload
	require.NoError(t, ops[0].Decode(&payload))
	assert.Equal(t, "ss-1", payload.RemoteID)
	assert.Equal(t, sheet.ID, payload.SheetID)

	got, err := h.ledger.Sheet(ctx, sheet.ID)
	require.NoError(t, err)
	assert.Empty(t, got.RemoteID)

	h.clock.Advance(5 * time.Second)

	summary, err = engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)

	got, err = h.ledger.Sheet(ctx, sheet.ID)
	require.NoError(t, err)
	assert.Equal(t, "ss-1", got.RemoteID)
	assert.True(t, got.Synced)

	ops, err = h.queue.Operations(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}
