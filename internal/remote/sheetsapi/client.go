package sheetsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/expenso/internal/remote"
)

const (
	tabName     = "Transactions"
	headerRange = tabName + "!A1:I1"
	appendRange = tabName + "!A:I"
)

var header = []any{"Date", "Time", "Type", "Amount", "Category", "Purpose", "Sheet Name", "Sync Time", "Action"}

// Client talks to a Sheets v4 style REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "sheetsapi"),
	}
}

type createRequest struct {
	Properties struct {
		Title string `json:"title"`
	} `json:"properties"`
	Sheets []sheetSpec `json:"sheets"`
}

type sheetSpec struct {
	Properties struct {
		Title          string `json:"title"`
		GridProperties struct {
			RowCount    int `json:"rowCount"`
			ColumnCount int `json:"columnCount"`
		} `json:"gridProperties"`
	} `json:"properties"`
}

type createResponse struct {
	SpreadsheetID  string `json:"spreadsheetId"`
	SpreadsheetURL string `json:"spreadsheetUrl"`
}

type valueRange struct {
	Values [][]any `json:"values"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Title is the spreadsheet title for a sheet owned by ownerID.
func Title(name, ownerID string) string {
	return fmt.Sprintf("ExpensO - %s - %s", name, ownerID)
}

func (c *Client) CreateContainer(ctx context.Context, name, ownerID string) (remote.Container, error) {
	var req createRequest
	req.Properties.Title = Title(name, ownerID)

	var tab sheetSpec
	tab.Properties.Title = tabName
	tab.Properties.GridProperties.RowCount = 1000
	tab.Properties.GridProperties.ColumnCount = len(header)
	req.Sheets = []sheetSpec{tab}

	var resp createResponse
	if err := c.do(ctx, "create spreadsheet", http.MethodPost, "/spreadsheets", req, &resp); err != nil {
		return remote.Container{}, err
	}

	if resp.SpreadsheetID == "" {
		return remote.Container{}, &remote.TransientError{Op: "create spreadsheet", Err: errors.New("response has no spreadsheet id")}
	}

	// A missing header row only affects readability.
	path := fmt.Sprintf("/spreadsheets/%s/values/%s?valueInputOption=RAW", url.PathEscape(resp.SpreadsheetID), headerRange)
	if err := c.do(ctx, "write header", http.MethodPut, path, valueRange{Values: [][]any{header}}, nil); err != nil {
		c.logger.Warn("failed to write header row", "spreadsheet_id", resp.SpreadsheetID, "error", err)
	}

	return remote.Container{ID: resp.SpreadsheetID, URL: resp.SpreadsheetURL}, nil
}

func (c *Client) AppendRecord(ctx context.Context, containerID string, record remote.Record) error {
	row := []any{
		record.CreatedAt.Format(time.DateOnly),
		record.CreatedAt.Format(time.TimeOnly),
		record.Kind,
		record.Amount.StringFixed(2),
		record.Category,
		record.Purpose,
		record.SheetName,
		record.SyncedAt.UTC().Format(time.RFC3339),
		string(record.Action),
	}

	path := fmt.Sprintf("/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		url.PathEscape(containerID), appendRange)

	return c.do(ctx, "append row", http.MethodPost, path, valueRange{Values: [][]any{row}}, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encoding body: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &remote.TransientError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w", op, remote.ErrAuthRequired)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &remote.TransientError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(errorMessage(resp.Body))}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &remote.TransientError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}

	return nil
}

func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 64<<10))

	var e apiError
	if err := json.Unmarshal(data, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}

	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}

	return "unexpected response"
}
