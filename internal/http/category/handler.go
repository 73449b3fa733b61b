package category

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/http/respond"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{name}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	categories, err := auth.Session(r.Context()).Ledger.Categories(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, categories)
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Text(w, http.StatusBadRequest, err.Error())
		return
	}

	name, err := auth.Session(r.Context()).Ledger.AddCategory(r.Context(), req.Name)
	if name == "" {
		respond.Error(w, err)
		return
	}

	respond.Mutated(w, http.StatusCreated, name, err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		respond.Text(w, http.StatusBadRequest, "invalid category name")
		return
	}

	if err := auth.Session(r.Context()).Ledger.DeleteCategory(r.Context(), name); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
