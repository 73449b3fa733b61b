package export

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/expenso/internal/export"
	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/http/respond"
)

// Handler exports the sheet named by the {id} URL parameter.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.csv)
	r.Get("/summary", h.summary)
}

func (h *Handler) csv(w http.ResponseWriter, r *http.Request) {
	led := auth.Session(r.Context()).Ledger
	id := chi.URLParam(r, "id")

	sheet, err := led.Sheet(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	// Buffered so a failure can still produce an error status.
	var buf bytes.Buffer
	if err := export.NewService(led).WriteCSV(r.Context(), id, &buf); err != nil {
		respond.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(*sheet)))

	_, _ = buf.WriteTo(w)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	text, err := export.NewService(auth.Session(r.Context()).Ledger).Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}
