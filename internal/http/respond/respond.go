package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
	"github.com/MrJamesThe3rd/expenso/internal/syncengine"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func Text(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

// Error writes the status matching a domain error.
func Error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		Text(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrDuplicateName):
		Text(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrProtectedEntity):
		Text(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		Text(w, http.StatusNotFound, err.Error())
	case errors.Is(err, syncengine.ErrSyncInProgress):
		Text(w, http.StatusConflict, err.Error())
	default:
		slog.Error("request failed", "error", err)
		Text(w, http.StatusInternalServerError, "internal error")
	}
}

// Mutation is the body of every write that feeds the sync queue.
type Mutation struct {
	Data   any    `json:"data"`
	Queued bool   `json:"queued"`
	Error  string `json:"error,omitempty"`
}

// Mutated reports a local write. A write that was applied locally but could
// not be queued for sync is accepted with queued=false.
func Mutated(w http.ResponseWriter, status int, data any, err error) {
	switch {
	case err == nil:
		JSON(w, status, Mutation{Data: data, Queued: true})
	case errors.Is(err, queue.ErrNotQueued):
		slog.Warn("change saved but not queued for sync", "error", err)
		JSON(w, http.StatusAccepted, Mutation{Data: data, Error: err.Error()})
	default:
		Error(w, err)
	}
}
