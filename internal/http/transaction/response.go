package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

type transactionResponse struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Purpose      string          `json:"purpose"`
	Category     string          `json:"category"`
	Kind         ledger.Kind     `json:"kind"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastModified time.Time       `json:"lastModified"`
	Synced       bool            `json:"synced"`
	LastSynced   *time.Time      `json:"lastSynced,omitempty"`
}

func toResponse(tx ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:           tx.ID,
		Amount:       tx.Amount,
		Purpose:      tx.Purpose,
		Category:     tx.Category,
		Kind:         tx.Kind,
		CreatedAt:    tx.CreatedAt,
		LastModified: tx.LastModified,
		Synced:       tx.Synced,
		LastSynced:   tx.LastSynced,
	}
}

func toResponseList(txs []ledger.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toResponse(tx)
	}

	return resp
}
