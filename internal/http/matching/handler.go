package matching

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/http/respond"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.suggest)
	r.Post("/", h.learn)
}

type suggestResponse struct {
	Purpose  string `json:"purpose"`
	Category string `json:"category"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	purpose := r.URL.Query().Get("purpose")
	if purpose == "" {
		respond.Text(w, http.StatusBadRequest, "purpose query parameter is required")
		return
	}

	category, err := auth.Session(r.Context()).Matching.Suggest(r.Context(), purpose)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, suggestResponse{Purpose: purpose, Category: category})
}

type learnRequest struct {
	Pattern  string `json:"pattern"`
	Category string `json:"category"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Text(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Pattern == "" || req.Category == "" {
		respond.Text(w, http.StatusBadRequest, "pattern and category are required")
		return
	}

	if err := auth.Session(r.Context()).Matching.Learn(r.Context(), req.Pattern, req.Category); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
