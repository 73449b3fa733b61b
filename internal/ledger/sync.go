package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MrJamesThe3rd/expenso/internal/queue"
)

// SheetRemoteID returns the remote container id, empty while the sheet is local only.
func (s *Service) SheetRemoteID(ctx context.Context, sheetID string) (string, error) {
	sheet, err := s.Sheet(ctx, sheetID)
	if err != nil {
		return "", err
	}

	return sheet.RemoteID, nil
}

func (s *Service) MarkSheetSyncing(ctx context.Context, sheetID string) error {
	_, err := s.modifySheet(ctx, sheetID, func(sh *Sheet) error {
		sh.SyncStatus = SyncSyncing
		return nil
	})

	return err
}

// MarkSheetSynced records the remote container. Synced implies a remote id.
func (s *Service) MarkSheetSynced(ctx context.Context, sheetID, remoteID string) error {
	if remoteID == "" {
		return invalid("remoteId", "must not be empty")
	}

	_, err := s.modifySheet(ctx, sheetID, func(sh *Sheet) error {
		sh.RemoteID = remoteID
		sh.Synced = true
		sh.SyncStatus = SyncSynced
		sh.LastSynced = new(s.now())
		sh.LastError = ""

		return nil
	})

	return err
}

func (s *Service) MarkSheetFailed(ctx context.Context, sheetID, reason string) error {
	_, err := s.modifySheet(ctx, sheetID, func(sh *Sheet) error {
		sh.SyncStatus = SyncError
		sh.LastError = reason

		return nil
	})

	return err
}

// MarkTransactionSynced flags a transaction as reconciled, unless it was
// modified after asOf. A transaction that no longer exists is ignored.
func (s *Service) MarkTransactionSynced(ctx context.Context, sheetID, txID string, asOf time.Time) error {
	_, err := s.modifySheet(ctx, sheetID, func(sh *Sheet) error {
		i := slices.IndexFunc(sh.Transactions, func(t Transaction) bool { return t.ID == txID })
		if i < 0 || sh.Transactions[i].LastModified.After(asOf) {
			return nil
		}

		sh.Transactions[i].Synced = true
		sh.Transactions[i].LastSynced = new(s.now())

		return nil
	})

	return err
}

func (s *Service) SheetSyncStatus(ctx context.Context, sheetID string) (SheetSyncInfo, error) {
	sheet, err := s.Sheet(ctx, sheetID)
	if err != nil {
		return SheetSyncInfo{}, err
	}

	return syncInfo(*sheet), nil
}

func (s *Service) SyncOverview(ctx context.Context) (Overview, error) {
	sheets, err := s.Sheets(ctx)
	if err != nil {
		return Overview{}, err
	}

	o := Overview{Total: len(sheets), Sheets: make([]SheetSyncInfo, 0, len(sheets))}

	for _, sh := range sheets {
		o.Sheets = append(o.Sheets, syncInfo(sh))

		switch {
		case sh.Synced && sh.RemoteID != "":
			o.Synced++
		case sh.SyncStatus == SyncSyncing:
			o.Syncing++
		case sh.SyncStatus == SyncError:
			o.Error++
		default:
			o.Local++
		}
	}

	return o, nil
}

// RetrySheetSync queues the container creation again for a sheet that is
// not yet synced. It reports false when the sheet is already synced.
func (s *Service) RetrySheetSync(ctx context.Context, sheetID string) (bool, error) {
	var (
		payload queue.SheetPayload
		already bool
	)

	_, err := s.modifySheet(ctx, sheetID, func(sh *Sheet) error {
		if sh.Synced && sh.RemoteID != "" {
			already = true
			return nil
		}

		sh.SyncStatus = SyncPending
		sh.LastError = ""
		payload = s.sheetPayload(*sh)

		return nil
	})
	if err != nil {
		return false, err
	}

	if already {
		return false, nil
	}

	if _, err := s.queue.Enqueue(ctx, queue.CreateSheet, payload); err != nil {
		return false, fmt.Errorf("queueing sheet %s: %w", sheetID, err)
	}

	return true, nil
}

// ForceSheetSync queues the container creation when needed and a create
// record for every unsynced transaction. It returns the number of
// transactions queued.
func (s *Service) ForceSheetSync(ctx context.Context, sheetID string) (int, error) {
	queued, err := s.RetrySheetSync(ctx, sheetID)
	if err != nil {
		return 0, err
	}

	sheet, err := s.Sheet(ctx, sheetID)
	if err != nil {
		return 0, err
	}

	var (
		count int
		errs  []error
	)

	// Oldest first so the remote rows keep their order.
	for _, tx := range slices.Backward(sheet.Transactions) {
		if tx.Synced {
			continue
		}

		if _, err := s.queue.AddPending(ctx, queue.KindCreate, transactionPayload(sheetID, tx)); err != nil {
			errs = append(errs, fmt.Errorf("queueing transaction %s: %w", tx.ID, err))
			continue
		}

		count++
	}

	s.logger.Info("sheet sync forced", "sheet_id", sheetID, "container_queued", queued, "transactions", count)

	return count, errors.Join(errs...)
}
