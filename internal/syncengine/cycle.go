package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/expenso/internal/events"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
	"github.com/MrJamesThe3rd/expenso/internal/remote"
)

// Summary counts what a cycle did.
type Summary struct {
	Synced       int  `json:"synced"`
	Failed       int  `json:"failed"`
	Retried      int  `json:"retried"`
	Deferred     int  `json:"deferred"`
	Waiting      int  `json:"waiting"`
	Remaining    int  `json:"remaining"`
	Skipped      bool `json:"skipped,omitempty"`
	AuthRequired bool `json:"authRequired,omitempty"`
}

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeRetry
	outcomeFailed
	outcomeDeferred
	outcomeWaiting
	outcomeAuth
)

func (s *Summary) record(o outcome) {
	switch o {
	case outcomeSynced:
		s.Synced++
	case outcomeRetry:
		s.Retried++
	case outcomeFailed:
		s.Failed++
	case outcomeDeferred:
		s.Deferred++
	case outcomeWaiting:
		s.Waiting++
	case outcomeAuth:
		s.AuthRequired = true
	}
}

func (e *Engine) runCycle(ctx context.Context) (Summary, error) {
	var summary Summary

	if !e.net.IsOnline() {
		e.logger.Debug("sync skipped, offline")
		e.bus.Publish(events.Event{Type: events.SyncSkipped, Reason: "offline"})

		summary.Skipped = true

		return summary, nil
	}

	ops, err := e.queue.Operations(ctx)
	if err != nil {
		return e.abort(summary, fmt.Errorf("reading sync queue: %w", err))
	}

	pending, err := e.queue.Unsynced(ctx)
	if err != nil {
		return e.abort(summary, fmt.Errorf("reading pending operations: %w", err))
	}

	total := len(ops) + len(pending)
	if total == 0 {
		e.bus.Publish(events.Event{Type: events.SyncCompleted, SyncedItems: 0})
		return summary, nil
	}

	e.logger.Info("sync started", "queue", len(ops), "pending", len(pending))
	e.bus.Publish(events.Event{Type: events.SyncStarted, Total: total})

	current := 0

	for i, op := range ops {
		if i > 0 {
			pause(e.cfg.QueueDelay)
		}

		current++
		e.progress(fmt.Sprintf("Processing %s", op.Type), current, total)

		o := e.processOperation(ctx, op)
		summary.record(o)

		if o == outcomeAuth {
			return e.stopForAuth(ctx, summary)
		}
	}

	for i, p := range pending {
		if i > 0 || len(ops) > 0 {
			pause(e.cfg.PendingDelay)
		}

		current++
		e.progress(fmt.Sprintf("Syncing %s record", p.Kind), current, total)

		o := e.processPending(ctx, p)
		summary.record(o)

		if o == outcomeAuth {
			return e.stopForAuth(ctx, summary)
		}
	}

	if err := e.queue.SetLastSync(ctx, e.cfg.Clock()); err != nil {
		e.logger.Error("failed to record last sync time", "error", err)
	}

	summary.Remaining = e.remaining(ctx)

	e.logger.Info("sync completed",
		"synced", summary.Synced, "retried", summary.Retried, "failed", summary.Failed,
		"deferred", summary.Deferred, "waiting", summary.Waiting, "remaining", summary.Remaining)

	e.bus.Publish(events.Event{
		Type:        events.SyncCompleted,
		SyncedItems: summary.Synced,
		Remaining:   summary.Remaining,
		Deferred:    summary.Deferred,
		Waiting:     summary.Waiting,
	})

	return summary, nil
}

func (e *Engine) abort(summary Summary, err error) (Summary, error) {
	e.bus.Publish(events.Event{Type: events.SyncFailed, Error: err.Error()})
	return summary, err
}

func (e *Engine) stopForAuth(ctx context.Context, summary Summary) (Summary, error) {
	summary.Remaining = e.remaining(ctx)
	e.authBlocked.Store(true)

	e.logger.Warn("sync stopped, remote authorization required", "remaining", summary.Remaining)
	e.bus.Publish(events.Event{Type: events.SyncFailed, Error: remote.ErrAuthRequired.Error(), AuthRequired: true, Remaining: summary.Remaining})

	return summary, nil
}

func (e *Engine) remaining(ctx context.Context) int {
	stats, err := e.queue.Stats(ctx)
	if err != nil {
		e.logger.Warn("failed to count remaining operations", "error", err)
		return 0
	}

	return stats.Queued + stats.Unsynced
}

func (e *Engine) progress(msg string, current, total int) {
	e.bus.Publish(events.Event{Type: events.SyncProgress, Message: msg, Current: current, Total: total})
}

func pause(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// backingOff reports whether a failed entry is still inside its retry delay.
func (e *Engine) backingOff(retries int, lastAttempt *time.Time) bool {
	if retries < 1 || lastAttempt == nil {
		return false
	}

	return e.cfg.Clock().Before(lastAttempt.Add(Backoff(e.cfg.RetryBase, retries)))
}

func (e *Engine) processOperation(ctx context.Context, op queue.Operation) outcome {
	if e.backingOff(op.RetryCount, op.LastAttemptAt) {
		e.logger.Debug("operation waiting for retry delay", "id", op.ID, "retry", op.RetryCount)
		return outcomeWaiting
	}

	switch op.Type {
	case queue.CreateSheet:
		return e.createSheet(ctx, op)
	case queue.CreateCategory:
		// Categories have no remote representation.
		return e.completeOperation(ctx, op)
	default:
		e.logger.Warn("dropping operation of unknown type", "id", op.ID, "type", op.Type)
		return e.completeOperation(ctx, op)
	}
}

func (e *Engine) completeOperation(ctx context.Context, op queue.Operation) outcome {
	if err := e.queue.RemoveOperation(ctx, op.ID); err != nil {
		e.logger.Error("failed to remove completed operation", "id", op.ID, "error", err)
	}

	return outcomeSynced
}

func (e *Engine) createSheet(ctx context.Context, op queue.Operation) outcome {
	var p queue.SheetPayload
	if err := op.Decode(&p); err != nil {
		e.logger.Error("dropping undecodable operation", "id", op.ID, "error", err)
		return e.completeOperation(ctx, op)
	}

	sheet, err := e.ledger.Sheet(ctx, p.SheetID)
	if errors.Is(err, ledger.ErrNotFound) {
		e.logger.Warn("dropping operation for missing sheet", "id", op.ID, "sheet_id", p.SheetID)
		return e.completeOperation(ctx, op)
	}

	if err != nil {
		return e.failOperation(ctx, op, p.SheetID, err)
	}

	if sheet.RemoteID != "" {
		if !sheet.Synced {
			if err := e.ledger.MarkSheetSynced(ctx, sheet.ID, sheet.RemoteID); err != nil {
				e.logger.Error("failed to mark sheet synced", "sheet_id", sheet.ID, "error", err)
			}
		}

		return e.completeOperation(ctx, op)
	}

	remoteID := p.RemoteID

	if remoteID == "" {
		if err := e.ledger.MarkSheetSyncing(ctx, sheet.ID); err != nil {
			e.logger.Warn("failed to mark sheet syncing", "sheet_id", sheet.ID, "error", err)
		}

		container, err := e.remote.CreateContainer(ctx, sheet.Name, p.OwnerID)
		if err != nil {
			return e.failOperation(ctx, op, sheet.ID, err)
		}

		remoteID = container.ID
	}

	if err := e.ledger.MarkSheetSynced(ctx, sheet.ID, remoteID); err != nil {
		// Keep the container id on the operation so the retry does not
		// create a second one.
		p.RemoteID = remoteID
		if payload, encErr := json.Marshal(p); encErr == nil {
			op.Payload = payload
		}

		return e.failOperation(ctx, op, sheet.ID, fmt.Errorf("recording container %s: %w", remoteID, err))
	}

	e.logger.Info("sheet synced", "sheet_id", sheet.ID, "remote_id", remoteID)

	return e.completeOperation(ctx, op)
}

func (e *Engine) failOperation(ctx context.Context, op queue.Operation, sheetID string, cause error) outcome {
	op.LastError = cause.Error()
	op.LastAttemptAt = new(e.cfg.Clock())

	if remote.IsAuthRequired(cause) {
		if err := e.queue.UpdateOperation(ctx, op); err != nil {
			e.logger.Error("failed to persist operation error", "id", op.ID, "error", err)
		}

		e.markSheetFailed(ctx, sheetID, op.LastError)

		return outcomeAuth
	}

	op.RetryCount++

	if op.RetryCount >= e.cfg.MaxRetries {
		if err := e.queue.RemoveOperation(ctx, op.ID); err != nil {
			e.logger.Error("failed to remove exhausted operation", "id", op.ID, "error", err)
		}

		e.markSheetFailed(ctx, sheetID, op.LastError)
		e.exhausted(op.ID, string(op.Type), op.RetryCount, cause)

		return outcomeFailed
	}

	if err := e.queue.UpdateOperation(ctx, op); err != nil {
		e.logger.Error("failed to persist retry", "id", op.ID, "error", err)
	}

	e.retry(op.ID, string(op.Type), op.RetryCount, cause)

	return outcomeRetry
}

func (e *Engine) markSheetFailed(ctx context.Context, sheetID, reason string) {
	if sheetID == "" {
		return
	}

	if err := e.ledger.MarkSheetFailed(ctx, sheetID, reason); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		e.logger.Error("failed to mark sheet failed", "sheet_id", sheetID, "error", err)
	}
}

func (e *Engine) retry(id, typ string, count int, cause error) {
	delay := Backoff(e.cfg.RetryBase, count)

	e.logger.Warn("operation failed, retrying", "id", id, "type", typ, "retry", count, "delay", delay, "error", cause)
	e.bus.Publish(events.Event{
		Type:          events.OperationRetry,
		OperationID:   id,
		OperationType: typ,
		RetryCount:    count,
		RetryDelay:    delay,
		Error:         cause.Error(),
	})

	e.scheduleRetry(delay)
}

func (e *Engine) exhausted(id, typ string, count int, cause error) {
	err := fmt.Errorf("%w: %w", ErrRetryExhausted, cause)

	e.logger.Error("operation dropped", "id", id, "type", typ, "retries", count, "error", err)
	e.bus.Publish(events.Event{
		Type:          events.OperationFailed,
		OperationID:   id,
		OperationType: typ,
		RetryCount:    count,
		Error:         err.Error(),
	})
}

func (e *Engine) processPending(ctx context.Context, p queue.PendingOperation) outcome {
	if e.backingOff(p.RetryCount, p.LastAttemptAt) {
		e.logger.Debug("record waiting for retry delay", "id", p.ID, "retry", p.RetryCount)
		return outcomeWaiting
	}

	var payload queue.TransactionPayload
	if err := p.Decode(&payload); err != nil {
		e.logger.Error("dropping undecodable record", "id", p.ID, "error", err)
		return e.removePending(ctx, p)
	}

	var action remote.Action

	switch p.Kind {
	case queue.KindCreate:
		action = remote.ActionCreate
	case queue.KindUpdate:
		action = remote.ActionUpdate
	case queue.KindDelete:
		action = remote.ActionDelete
	default:
		e.logger.Warn("dropping record of unknown kind", "id", p.ID, "kind", p.Kind)
		return e.completePending(ctx, p, payload)
	}

	sheet, err := e.ledger.Sheet(ctx, payload.SheetID)
	if errors.Is(err, ledger.ErrNotFound) {
		e.logger.Warn("dropping record for missing sheet", "id", p.ID, "sheet_id", payload.SheetID)
		return e.removePending(ctx, p)
	}

	if err != nil {
		return e.failPending(ctx, p, err)
	}

	// Records wait for their sheet's container without using up retries.
	if sheet.RemoteID == "" {
		e.logger.Debug("record deferred until sheet is synced", "id", p.ID, "sheet_id", sheet.ID)
		return outcomeDeferred
	}

	amount := payload.Amount
	if action == remote.ActionDelete {
		amount = amount.Neg()
	}

	record := remote.Record{
		TransactionID: payload.TransactionID,
		CreatedAt:     payload.CreatedAt,
		Kind:          payload.Kind,
		Amount:        amount,
		Category:      payload.Category,
		Purpose:       payload.Purpose,
		SheetName:     sheet.Name,
		SyncedAt:      e.cfg.Clock(),
		Action:        action,
	}

	if err := e.remote.AppendRecord(ctx, sheet.RemoteID, record); err != nil {
		return e.failPending(ctx, p, err)
	}

	return e.completePending(ctx, p, payload)
}

func (e *Engine) completePending(ctx context.Context, p queue.PendingOperation, payload queue.TransactionPayload) outcome {
	if err := e.queue.MarkSynced(ctx, p.ID); err != nil {
		e.logger.Error("failed to mark record synced", "id", p.ID, "error", err)
	}

	if p.Kind != queue.KindDelete && payload.SheetID != "" {
		err := e.ledger.MarkTransactionSynced(ctx, payload.SheetID, payload.TransactionID, p.EnqueuedAt)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			e.logger.Error("failed to mark transaction synced", "transaction_id", payload.TransactionID, "error", err)
		}
	}

	return outcomeSynced
}

func (e *Engine) removePending(ctx context.Context, p queue.PendingOperation) outcome {
	if err := e.queue.RemovePending(ctx, p.ID); err != nil {
		e.logger.Error("failed to remove record", "id", p.ID, "error", err)
	}

	return outcomeSynced
}

func (e *Engine) failPending(ctx context.Context, p queue.PendingOperation, cause error) outcome {
	p.LastError = cause.Error()
	p.LastAttemptAt = new(e.cfg.Clock())

	if remote.IsAuthRequired(cause) {
		if err := e.queue.UpdatePending(ctx, p); err != nil {
			e.logger.Error("failed to persist record error", "id", p.ID, "error", err)
		}

		return outcomeAuth
	}

	p.RetryCount++

	if p.RetryCount >= e.cfg.MaxRetries {
		if err := e.queue.RemovePending(ctx, p.ID); err != nil {
			e.logger.Error("failed to remove exhausted record", "id", p.ID, "error", err)
		}

		e.exhausted(p.ID, string(p.Kind), p.RetryCount, cause)

		return outcomeFailed
	}

	if err := e.queue.UpdatePending(ctx, p); err != nil {
		e.logger.Error("failed to persist retry", "id", p.ID, "error", err)
	}

	e.retry(p.ID, string(p.Kind), p.RetryCount, cause)

	return outcomeRetry
}
