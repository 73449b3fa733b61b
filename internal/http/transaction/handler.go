package transaction

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/http/respond"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
)

// Handler serves the transactions of the sheet named by the {id} URL
// parameter.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Patch("/{txID}", h.update)
	r.Delete("/{txID}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	txs, err := auth.Session(r.Context()).Ledger.Transactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	if kind := ledger.Kind(r.URL.Query().Get("kind")); kind != "" {
		filtered := txs[:0:0]

		for _, tx := range txs {
			if tx.Kind == kind {
				filtered = append(filtered, tx)
			}
		}

		txs = filtered
	}

	respond.JSON(w, http.StatusOK, toResponseList(txs))
}

type createTransactionRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Purpose   string          `json:"purpose"`
	Category  string          `json:"category"`
	Kind      ledger.Kind     `json:"kind"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Text(w, http.StatusBadRequest, err.Error())
		return
	}

	params := ledger.TransactionParams{
		Amount:   req.Amount,
		Purpose:  req.Purpose,
		Category: req.Category,
		Kind:     req.Kind,
	}

	if req.CreatedAt != nil {
		params.CreatedAt = *req.CreatedAt
	}

	tx, err := auth.Session(r.Context()).Ledger.AddTransaction(r.Context(), chi.URLParam(r, "id"), params)
	if tx == nil {
		respond.Error(w, err)
		return
	}

	respond.Mutated(w, http.StatusCreated, toResponse(*tx), err)
}

type updateTransactionRequest struct {
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Purpose  *string          `json:"purpose,omitempty"`
	Category *string          `json:"category,omitempty"`
	Kind     *ledger.Kind     `json:"kind,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Text(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := auth.Session(r.Context()).Ledger.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "txID"), ledger.TransactionUpdate{
		Amount:   req.Amount,
		Purpose:  req.Purpose,
		Category: req.Category,
		Kind:     req.Kind,
	})
	if tx == nil {
		respond.Error(w, err)
		return
	}

	respond.Mutated(w, http.StatusOK, toResponse(*tx), err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	err := auth.Session(r.Context()).Ledger.DeleteTransaction(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "txID"))
	if errors.Is(err, queue.ErrNotQueued) {
		respond.Mutated(w, http.StatusAccepted, nil, err)
		return
	}

	if err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
