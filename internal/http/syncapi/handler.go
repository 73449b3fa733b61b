package syncapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/expenso/internal/events"
	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/http/respond"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/syncengine"
)

const (
	writeTimeout = 5 * time.Second
	eventBuffer  = 64
)

type Handler struct {
	originPatterns []string
}

// NewHandler accepts event stream connections from the given origins. An
// empty list allows same-origin clients only.
func NewHandler(originPatterns []string) *Handler {
	return &Handler{originPatterns: originPatterns}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.status)
	r.Post("/", h.manual)
	r.Delete("/", h.clear)
	r.Delete("/synced", h.removeSynced)
	r.Post("/reauthorize", h.reauthorize)
	r.Get("/events", h.events)
}

type statusResponse struct {
	syncengine.Status
	Sheets ledger.Overview `json:"sheets"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	sess := auth.Session(r.Context())

	status, err := sess.Engine.Status(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	overview, err := sess.Ledger.SyncOverview(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, statusResponse{Status: status, Sheets: overview})
}

func (h *Handler) manual(w http.ResponseWriter, r *http.Request) {
	result := auth.Session(r.Context()).Engine.ManualSync(r.Context())

	status := http.StatusOK
	if !result.Success && result.Message == syncengine.MessageInProgress {
		status = http.StatusConflict
	}

	respond.JSON(w, status, result)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	if err := auth.Session(r.Context()).Engine.ClearAll(r.Context()); err != nil {
		respond.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reauthorize(w http.ResponseWriter, r *http.Request) {
	auth.Session(r.Context()).Engine.Reauthorize()
	w.WriteHeader(http.StatusAccepted)
}

type removedResponse struct {
	Removed int `json:"removed"`
}

func (h *Handler) removeSynced(w http.ResponseWriter, r *http.Request) {
	n, err := auth.Session(r.Context()).Engine.RemoveSynced(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, removedResponse{Removed: n})
}

// events streams the session's sync events as JSON text messages until the
// client goes away. Slow clients miss events rather than stall the engine.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	sess := auth.Session(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	queue := make(chan events.Event, eventBuffer)

	unsubscribe := sess.Events.Subscribe(func(e events.Event) {
		select {
		case queue <- e:
		default:
			slog.Warn("event stream client too slow, dropping event", "user_id", sess.UserID, "type", e.Type)
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-queue:
			if err := write(ctx, conn, e); err != nil {
				slog.Debug("event stream closed", "user_id", sess.UserID, "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return conn.Write(ctx, websocket.MessageText, data)
}
