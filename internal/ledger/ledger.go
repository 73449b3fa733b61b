package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind says whether a transaction takes money out of or brings it into a sheet.
type Kind string

const (
	KindDebit  Kind = "debit"
	KindCredit Kind = "credit"
)

func (k Kind) Valid() bool {
	return k == KindDebit || k == KindCredit
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

const (
	// MiscCategory always exists and cannot be deleted.
	MiscCategory = "Misc"

	MaxCategoryLength  = 30
	MaxSheetNameLength = 100
)

type Transaction struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Purpose      string          `json:"purpose"`
	Category     string          `json:"category"`
	Kind         Kind            `json:"kind"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastModified time.Time       `json:"lastModified"`
	Synced       bool            `json:"synced"`
	LastSynced   *time.Time      `json:"lastSynced,omitempty"`
}

// Sheet is a named collection of transactions, newest first.
type Sheet struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	CreatedAt    time.Time     `json:"createdAt"`
	LastModified time.Time     `json:"lastModified"`
	RemoteID     string        `json:"remoteId,omitempty"`
	Synced       bool          `json:"synced"`
	SyncStatus   SyncStatus    `json:"syncStatus"`
	LastSynced   *time.Time    `json:"lastSynced,omitempty"`
	LastError    string        `json:"lastError,omitempty"`
	Transactions []Transaction `json:"transactions"`
}

func (s Sheet) clone() Sheet {
	s.Transactions = append([]Transaction(nil), s.Transactions...)
	return s
}

type Totals struct {
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// CalculateTotals sums a sheet's transactions. Balance is credit minus debit.
func CalculateTotals(sheet Sheet) Totals {
	var t Totals

	for _, tx := range sheet.Transactions {
		switch tx.Kind {
		case KindDebit:
			t.Debit = t.Debit.Add(tx.Amount)
		case KindCredit:
			t.Credit = t.Credit.Add(tx.Amount)
		}
	}

	t.Balance = t.Credit.Sub(t.Debit)

	return t
}

// SheetSyncInfo describes how far a sheet is from being fully reconciled.
type SheetSyncInfo struct {
	SheetID          string     `json:"sheetId"`
	Name             string     `json:"name"`
	RemoteID         string     `json:"remoteId,omitempty"`
	Synced           bool       `json:"synced"`
	SyncStatus       SyncStatus `json:"syncStatus"`
	LastSynced       *time.Time `json:"lastSynced,omitempty"`
	TransactionCount int        `json:"transactionCount"`
	UnsyncedCount    int        `json:"unsyncedCount"`
}

func syncInfo(s Sheet) SheetSyncInfo {
	info := SheetSyncInfo{
		SheetID:          s.ID,
		Name:             s.Name,
		RemoteID:         s.RemoteID,
		Synced:           s.Synced,
		SyncStatus:       s.SyncStatus,
		LastSynced:       s.LastSynced,
		TransactionCount: len(s.Transactions),
	}

	for _, tx := range s.Transactions {
		if !tx.Synced {
			info.UnsyncedCount++
		}
	}

	return info
}

// Overview counts sheets by sync state.
type Overview struct {
	Total   int             `json:"total"`
	Synced  int             `json:"synced"`
	Local   int             `json:"local"`
	Syncing int             `json:"syncing"`
	Error   int             `json:"error"`
	Sheets  []SheetSyncInfo `json:"sheets"`
}
