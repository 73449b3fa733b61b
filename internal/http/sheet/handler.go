package sheet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/http/respond"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/totals", h.totals)
	r.Get("/{id}/sync", h.syncStatus)
	r.Post("/{id}/sync/retry", h.retrySync)
	r.Post("/{id}/sync/force", h.forceSync)
}

type sheetResponse struct {
	ledger.Sheet
	Totals ledger.Totals `json:"totals"`
}

func toResponse(s ledger.Sheet) sheetResponse {
	return sheetResponse{Sheet: s, Totals: ledger.CalculateTotals(s)}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sheets, err := auth.Session(r.Context()).Ledger.Sheets(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	resp := make([]sheetResponse, 0, len(sheets))
	for _, s := range sheets {
		resp = append(resp, toResponse(s))
	}

	respond.JSON(w, http.StatusOK, resp)
}

type createSheetRequest struct {
	Name string `json:"name"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Text(w, http.StatusBadRequest, err.Error())
		return
	}

	sheet, err := auth.Session(r.Context()).Ledger.CreateSheet(r.Context(), req.Name)
	if sheet == nil {
		respond.Error(w, err)
		return
	}

	respond.Mutated(w, http.StatusCreated, toResponse(*sheet), err)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sheet, err := auth.Session(r.Context()).Ledger.Sheet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(*sheet))
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request) {
	totals, err := auth.Session(r.Context()).Ledger.Totals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, totals)
}

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	info, err := auth.Session(r.Context()).Ledger.SheetSyncStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, info)
}

func (h *Handler) retrySync(w http.ResponseWriter, r *http.Request) {
	led := auth.Session(r.Context()).Ledger
	id := chi.URLParam(r, "id")

	queued, err := led.RetrySheetSync(r.Context(), id)
	if err != nil && !errors.Is(err, queue.ErrNotQueued) {
		respond.Error(w, err)
		return
	}

	info, infoErr := led.SheetSyncStatus(r.Context(), id)
	if infoErr != nil {
		respond.Error(w, infoErr)
		return
	}

	if err == nil && !queued {
		respond.JSON(w, http.StatusOK, respond.Mutation{Data: info})
		return
	}

	respond.Mutated(w, http.StatusAccepted, info, err)
}

type forceResponse struct {
	Transactions int `json:"transactions"`
}

func (h *Handler) forceSync(w http.ResponseWriter, r *http.Request) {
	count, err := auth.Session(r.Context()).Ledger.ForceSheetSync(r.Context(), chi.URLParam(r, "id"))
	respond.Mutated(w, http.StatusAccepted, forceResponse{Transactions: count}, err)
}
