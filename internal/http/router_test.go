package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/expenso/internal/connectivity"
	"github.com/MrJamesThe3rd/expenso/internal/events"
	apihttp "github.com/MrJamesThe3rd/expenso/internal/http"
	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/logging"
	"github.com/MrJamesThe3rd/expenso/internal/remote"
	"github.com/MrJamesThe3rd/expenso/internal/session"
	"github.com/MrJamesThe3rd/expenso/internal/storage"
	"github.com/MrJamesThe3rd/expenso/internal/storage/memory"
	"github.com/MrJamesThe3rd/expenso/internal/syncengine"
)

const secret = "test-secret"

type server struct {
	t   *testing.T
	url string
}

func newServer(t *testing.T, backend storage.Backend, jwtSecret string) *server {
	t.Helper()

	logger := logging.Discard()

	sessions := session.NewManager(session.Config{
		Store:  storage.New(backend, logger),
		Remote: remote.NewMockAdapter(gomock.NewController(t)),
		Net:    connectivity.New(nil, connectivity.Config{Logger: logger}),
		Sync: syncengine.Config{
			Interval:        time.Hour,
			EnqueueDebounce: time.Hour,
			ConnectDebounce: time.Hour,
		},
		Logger: logger,
	})

	srv := httptest.NewServer(apihttp.New(apihttp.Options{
		Verifier:       auth.NewVerifier(jwtSecret, "local"),
		Sessions:       sessions,
		AllowedOrigins: []string{"*"},
	}))

	t.Cleanup(func() {
		srv.Close()
		sessions.Close()
	})

	return &server{t: t, url: srv.URL}
}

func token(t *testing.T, subject string, expires time.Time) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expires),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	return signed
}

type request struct {
	method      string
	path        string
	body        any
	token       string
	contentType string
}

func (s *server) do(req request) (int, []byte) {
	s.t.Helper()

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		require.NoError(s.t, err)

		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequest(req.method, s.url+req.path, body)
	require.NoError(s.t, err)

	if req.body != nil {
		ct := req.contentType
		if ct == "" {
			ct = "application/json"
		}

		httpReq.Header.Set("Content-Type", ct)
	}

	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)

	return resp.StatusCode, data
}

type mutation[T any] struct {
	Data   T      `json:"data"`
	Queued bool   `json:"queued"`
	Error  string `json:"error"`
}

type sheetBody struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SyncStatus string `json:"syncStatus"`
	Totals     struct {
		Debit   decimal.Decimal `json:"debit"`
		Credit  decimal.Decimal `json:"credit"`
		Balance decimal.Decimal `json:"balance"`
	} `json:"totals"`
}

type transactionBody struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Purpose  string          `json:"purpose"`
	Category string          `json:"category"`
	Kind     string          `json:"kind"`
	Synced   bool            `json:"synced"`
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))

	return v
}

func (s *server) createSheet(name string) sheetBody {
	s.t.Helper()

	status, data := s.do(request{method: http.MethodPost, path: "/api/v1/sheets", body: map[string]string{"name": name}})
	require.Equal(s.t, http.StatusCreated, status, string(data))

	return decode[mutation[sheetBody]](s.t, data).Data
}

func TestSheets(t *testing.T) {
	s := newServer(t, memory.New(), "")

	created := s.createSheet("Trip")
	assert.Equal(t, "Trip", created.Name)
	assert.Equal(t, "pending", created.SyncStatus)

	type testCase struct {
		name   string
		req    request
		status int
	}

	tests := []testCase{
		{name: "duplicate name", req: request{method: http.MethodPost, path: "/api/v1/sheets", body: map[string]string{"name": " trip "}}, status: http.StatusConflict},
		{name: "empty name", req: request{method: http.MethodPost, path: "/api/v1/sheets", body: map[string]string{"name": ""}}, status: http.StatusBadRequest},
		{name: "malformed body", req: request{method: http.MethodPost, path: "/api/v1/sheets", body: "nope"}, status: http.StatusBadRequest},
		{name: "wrong content type", req: request{method: http.MethodPost, path: "/api/v1/sheets", body: map[string]string{"name": "X"}, contentType: "text/plain"}, status: http.StatusUnsupportedMediaType},
		{name: "missing sheet", req: request{method: http.MethodGet, path: "/api/v1/sheets/missing"}, status: http.StatusNotFound},
		{name: "get sheet", req: request{method: http.MethodGet, path: "/api/v1/sheets/" + created.ID}, status: http.StatusOK},
		{name: "sheet sync status", req: request{method: http.MethodGet, path: "/api/v1/sheets/" + created.ID + "/sync"}, status: http.StatusOK},
		{name: "retry sync", req: request{method: http.MethodPost, path: "/api/v1/sheets/" + created.ID + "/sync/retry"}, status: http.StatusAccepted},
		{name: "force sync", req: request{method: http.MethodPost, path: "/api/v1/sheets/" + created.ID + "/sync/force"}, status: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := s.do(tt.req)
			assert.Equal(t, tt.status, status, string(data))
		})
	}

	status, data := s.do(request{method: http.MethodGet, path: "/api/v1/sheets"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]sheetBody](t, data), 1)
}

func TestTransactions(t *testing.T) {
	s := newServer(t, memory.New(), "")
	sheet := s.createSheet("Trip")
	base := "/api/v1/sheets/" + sheet.ID + "/transactions"

	status, data := s.do(request{method: http.MethodPost, path: base, body: map[string]any{
		"amount": "12.50", "purpose": "lunch", "category": "Food", "kind": "debit",
	}})
	require.Equal(t, http.StatusCreated, status, string(data))

	created := decode[mutation[transactionBody]](t, data)
	assert.True(t, created.Queued)
	assert.True(t, decimal.RequireFromString("12.5").Equal(created.Data.Amount))
	assert.False(t, created.Data.Synced)

	_, data = s.do(request{method: http.MethodPost, path: base, body: map[string]any{"amount": 100, "purpose": "refund", "kind": "credit"}})
	assert.Equal(t, "Misc", decode[mutation[transactionBody]](t, data).Data.Category)

	status, _ = s.do(request{method: http.MethodPost, path: base, body: map[string]any{"amount": "0", "purpose": "x", "kind": "debit"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(request{method: http.MethodPost, path: base, body: map[string]any{"amount": "1", "purpose": "x", "kind": "transfer"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, data = s.do(request{method: http.MethodPatch, path: base + "/" + created.Data.ID, body: map[string]any{"amount": "20"}})
	require.Equal(t, http.StatusOK, status, string(data))
	assert.True(t, decimal.RequireFromString("20").Equal(decode[mutation[transactionBody]](t, data).Data.Amount))

	status, data = s.do(request{method: http.MethodGet, path: "/api/v1/sheets/" + sheet.ID + "/totals"})
	require.Equal(t, http.StatusOK, status)

	totals := decode[map[string]decimal.Decimal](t, data)
	assert.True(t, decimal.RequireFromString("20").Equal(totals["debit"]))
	assert.True(t, decimal.RequireFromString("80").Equal(totals["balance"]))

	status, data = s.do(request{method: http.MethodGet, path: base + "?kind=credit"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]transactionBody](t, data), 1)

	status, _ = s.do(request{method: http.MethodDelete, path: base + "/" + created.Data.ID})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = s.do(request{method: http.MethodDelete, path: base + "/" + created.Data.ID})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(request{method: http.MethodPost, path: "/api/v1/sheets/missing/transactions", body: map[string]any{"amount": "1", "purpose": "x", "kind": "debit"}})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCategories(t *testing.T) {
	s := newServer(t, memory.New(), "")

	type testCase struct {
		name   string
		req    request
		status int
	}

	tests := []testCase{
		{name: "create", req: request{method: http.MethodPost, path: "/api/v1/categories", body: map[string]string{"name": "Food & Drinks"}}, status: http.StatusCreated},
		{name: "duplicate", req: request{method: http.MethodPost, path: "/api/v1/categories", body: map[string]string{"name": "food & drinks"}}, status: http.StatusConflict},
		{name: "too long", req: request{method: http.MethodPost, path: "/api/v1/categories", body: map[string]string{"name": strings.Repeat("x", 31)}}, status: http.StatusBadRequest},
		{name: "protected", req: request{method: http.MethodDelete, path: "/api/v1/categories/Misc"}, status: http.StatusForbidden},
		{name: "unknown", req: request{method: http.MethodDelete, path: "/api/v1/categories/Nope"}, status: http.StatusNotFound},
		{name: "delete", req: request{method: http.MethodDelete, path: "/api/v1/categories/Food%20%26%20Drinks"}, status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := s.do(tt.req)
			assert.Equal(t, tt.status, status, string(data))
		})
	}

	status, data := s.do(request{method: http.MethodGet, path: "/api/v1/categories"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"Misc"}, decode[[]string](t, data))
}

func TestSync(t *testing.T) {
	s := newServer(t, memory.New(), "")
	s.createSheet("Trip")

	status, data := s.do(request{method: http.MethodGet, path: "/api/v1/sync/status"})
	require.Equal(t, http.StatusOK, status)

	st := decode[map[string]any](t, data)
	assert.Equal(t, false, st["isOnline"])
	assert.EqualValues(t, 1, st["totalUnsynced"])
	assert.EqualValues(t, 1, st["syncQueue"])
	assert.Equal(t, false, st["authRequired"])

	status, _ = s.do(request{method: http.MethodPost, path: "/api/v1/sync/reauthorize"})
	assert.Equal(t, http.StatusAccepted, status)

	status, data = s.do(request{method: http.MethodPost, path: "/api/v1/sync"})
	require.Equal(t, http.StatusOK, status)

	result := decode[syncengine.Result](t, data)
	assert.False(t, result.Success)
	assert.Equal(t, syncengine.MessageOffline, result.Message)

	status, _ = s.do(request{method: http.MethodDelete, path: "/api/v1/sync"})
	assert.Equal(t, http.StatusNoContent, status)

	status, data = s.do(request{method: http.MethodDelete, path: "/api/v1/sync/synced"})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"removed":0}`, string(data))

	_, data = s.do(request{method: http.MethodGet, path: "/api/v1/sync/status"})
	assert.EqualValues(t, 0, decode[map[string]any](t, data)["totalUnsynced"])
}

func upload(t *testing.T, url, bank, content string) (int, []byte) {
	t.Helper()

	var body bytes.Buffer

	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("bank", bank))

	part, err := w.CreateFormFile("file", "export.csv")
	require.NoError(t, err)

	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, err := http.Post(url, w.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func TestImportAndSuggestions(t *testing.T) {
	s := newServer(t, memory.New(), "")
	sheet := s.createSheet("January")

	status, _ := s.do(request{method: http.MethodPost, path: "/api/v1/suggestions", body: map[string]string{"pattern": "uber", "category": "Transport"}})
	require.Equal(t, http.StatusCreated, status)

	status, data := s.do(request{method: http.MethodGet, path: "/api/v1/suggestions?purpose=UBER%20TRIP"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Transport", decode[map[string]string](t, data)["category"])

	status, _ = s.do(request{method: http.MethodGet, path: "/api/v1/suggestions"})
	assert.Equal(t, http.StatusBadRequest, status)

	csv := "Data mov.;Descrição;Montante\n30-01-2026;UBER TRIP;-12,40\n29-01-2026;SALARY;1.500,00\n"
	base := s.url + "/api/v1/sheets/" + sheet.ID + "/import"

	status, data = upload(t, base+"/preview", "cgd", csv)
	require.Equal(t, http.StatusOK, status, string(data))
	assert.Len(t, decode[[]map[string]any](t, data), 2)

	status, data = upload(t, base, "cgd", csv)
	require.Equal(t, http.StatusCreated, status, string(data))

	imported := decode[mutation[struct {
		Imported     int               `json:"imported"`
		Transactions []transactionBody `json:"transactions"`
	}]](t, data)
	assert.True(t, imported.Queued)
	assert.Equal(t, 2, imported.Data.Imported)
	assert.Equal(t, "Transport", imported.Data.Transactions[0].Category)
	assert.Equal(t, "Misc", imported.Data.Transactions[1].Category)

	status, _ = upload(t, base, "bpi", csv)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = upload(t, s.url+"/api/v1/sheets/missing/import", "cgd", csv)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestExport(t *testing.T) {
	s := newServer(t, memory.New(), "")
	sheet := s.createSheet("Lisbon trip")

	status, _ := s.do(request{method: http.MethodPost, path: "/api/v1/sheets/" + sheet.ID + "/transactions", body: map[string]any{"amount": "9.99", "purpose": "museum", "kind": "debit"}})
	require.Equal(t, http.StatusCreated, status)

	resp, err := http.Get(s.url + "/api/v1/sheets/" + sheet.ID + "/export")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "_Lisbon_trip.csv")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debit,9.99,Misc,museum,no")

	status, data = s.do(request{method: http.MethodGet, path: "/api/v1/sheets/" + sheet.ID + "/export/summary"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), "Balance: -9.99 €")

	status, _ = s.do(request{method: http.MethodGet, path: "/api/v1/sheets/missing/export"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAuth(t *testing.T) {
	s := newServer(t, memory.New(), secret)

	alice := token(t, "alice", time.Now().Add(time.Hour))
	bob := token(t, "bob", time.Now().Add(time.Hour))

	type testCase struct {
		name   string
		token  string
		status int
	}

	tests := []testCase{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "garbage token", token: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "expired token", token: token(t, "alice", time.Now().Add(-time.Hour)), status: http.StatusUnauthorized},
		{name: "no subject", token: token(t, "", time.Now().Add(time.Hour)), status: http.StatusUnauthorized},
		{name: "valid token", token: alice, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := s.do(request{method: http.MethodGet, path: "/api/v1/sheets", token: tt.token})
			assert.Equal(t, tt.status, status)
		})
	}

	status, _ := s.do(request{method: http.MethodPost, path: "/api/v1/sheets", body: map[string]string{"name": "Trip"}, token: alice})
	require.Equal(t, http.StatusCreated, status)

	_, data := s.do(request{method: http.MethodGet, path: "/api/v1/sheets", token: alice})
	assert.Len(t, decode[[]sheetBody](t, data), 1)

	_, data = s.do(request{method: http.MethodGet, path: "/api/v1/sheets", token: bob})
	assert.Empty(t, decode[[]sheetBody](t, data))

	resp, err := http.Get(s.url + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestNotQueued(t *testing.T) {
	ctrl := gomock.NewController(t)
	mem := memory.New()
	backend := storage.NewMockBackend(ctrl)

	backend.EXPECT().Load(gomock.Any(), gomock.Any()).DoAndReturn(mem.Load).AnyTimes()
	backend.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(mem.Delete).AnyTimes()
	backend.EXPECT().Keys(gomock.Any(), gomock.Any()).DoAndReturn(mem.Keys).AnyTimes()
	backend.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, key string, value []byte) error {
			if strings.HasSuffix(key, ":"+storage.KeySyncQueue) {
				return errors.New("disk full")
			}

			return mem.Save(ctx, key, value)
		}).AnyTimes()

	s := newServer(t, backend, "")

	status, data := s.do(request{method: http.MethodPost, path: "/api/v1/sheets", body: map[string]string{"name": "Trip"}})
	require.Equal(t, http.StatusAccepted, status, string(data))

	created := decode[mutation[sheetBody]](t, data)
	assert.False(t, created.Queued)
	assert.NotEmpty(t, created.Error)

	status, _ = s.do(request{method: http.MethodGet, path: "/api/v1/sheets/" + created.Data.ID})
	assert.Equal(t, http.StatusOK, status)
}

func TestEventStream(t *testing.T) {
	s := newServer(t, memory.New(), "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.url, "http")+"/api/v1/sync/events", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	queued := make(chan events.Event, 1)

	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}

			var e events.Event
			if json.Unmarshal(data, &e) == nil && e.Type == events.OperationQueued {
				queued <- e
				return
			}
		}
	}()

	// The subscription is registered after the handshake completes, so keep
	// producing events until one arrives.
	for i := range 50 {
		status, _ := s.do(request{method: http.MethodPost, path: "/api/v1/categories", body: map[string]string{"name": fmt.Sprintf("C%d", i)}})
		require.Equal(t, http.StatusCreated, status)

		select {
		case e := <-queued:
			assert.Equal(t, "CREATE_CATEGORY", e.OperationType)
			assert.NotEmpty(t, e.OperationID)

			return
		case <-time.After(50 * time.Millisecond):
		}
	}

	t.Fatal("no operation_queued event received")
}
