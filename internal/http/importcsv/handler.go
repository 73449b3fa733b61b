package importcsv

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/http/respond"
	"github.com/MrJamesThe3rd/expenso/internal/importer"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
)

const maxUpload = 10 << 20

// Handler imports bank exports into the sheet named by the {id} URL
// parameter.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
	r.Post("/preview", h.preview)
}

type draftResponse struct {
	Amount    decimal.Decimal `json:"amount"`
	Purpose   string          `json:"purpose"`
	Category  string          `json:"category,omitempty"`
	Kind      ledger.Kind     `json:"kind"`
	CreatedAt time.Time       `json:"createdAt"`
}

type importResponse struct {
	Imported     int                  `json:"imported"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// parse reads the multipart upload and returns the drafts with learned
// categories filled in. It writes the error response itself.
func parse(w http.ResponseWriter, r *http.Request) ([]ledger.TransactionParams, bool) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		respond.Text(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return nil, false
	}

	bank := importer.Bank(r.FormValue("bank"))
	if bank == "" {
		bank = importer.BankCGD
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respond.Text(w, http.StatusBadRequest, "file field is required")
		return nil, false
	}
	defer file.Close()

	svc := importer.NewService(auth.Session(r.Context()).Matching, slog.Default())

	params, err := svc.Import(r.Context(), bank, file)
	if err != nil {
		respond.Text(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	return params, true
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	params, ok := parse(w, r)
	if !ok {
		return
	}

	resp := make([]draftResponse, 0, len(params))
	for _, p := range params {
		resp = append(resp, draftResponse{
			Amount:    p.Amount,
			Purpose:   p.Purpose,
			Category:  p.Category,
			Kind:      p.Kind,
			CreatedAt: p.CreatedAt,
		})
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	params, ok := parse(w, r)
	if !ok {
		return
	}

	txs, err := auth.Session(r.Context()).Ledger.ImportTransactions(r.Context(), chi.URLParam(r, "id"), params)
	if txs == nil && err != nil {
		respond.Error(w, err)
		return
	}

	respond.Mutated(w, http.StatusCreated, importResponse{Imported: len(txs), Transactions: txs}, err)
}
