package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/MrJamesThe3rd/expenso/internal/queue"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type Repository interface {
	Sheets(ctx context.Context) ([]Sheet, error)
	SaveSheets(ctx context.Context, sheets []Sheet) error
	Categories(ctx context.Context) ([]string, error)
	SaveCategories(ctx context.Context, categories []string) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, typ queue.OperationType, payload any) (*queue.Operation, error)
	AddPending(ctx context.Context, kind queue.Kind, payload any) (*queue.PendingOperation, error)
}

// Service holds one user's sheets and categories. Every mutation is
// committed locally and queued for sync before it returns.
type Service struct {
	repo    Repository
	queue   Enqueuer
	ownerID string
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	loaded     bool
	sheets     []Sheet
	categories []string
}

func NewService(repo Repository, q Enqueuer, ownerID string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:    repo,
		queue:   q,
		ownerID: ownerID,
		logger:  logger.With("component", "ledger"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

type TransactionParams struct {
	Amount   decimal.Decimal
	Purpose  string
	Category string
	Kind     Kind
	// CreatedAt defaults to now.
	CreatedAt time.Time
}

type TransactionUpdate struct {
	Amount   *decimal.Decimal
	Purpose  *string
	Category *string
	Kind     *Kind
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// load must be called with mu held.
func (s *Service) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	sheets, err := s.repo.Sheets(ctx)
	if err != nil {
		return fmt.Errorf("loading sheets: %w", err)
	}

	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return fmt.Errorf("loading categories: %w", err)
	}

	if !slices.ContainsFunc(categories, func(c string) bool { return fold(c) == fold(MiscCategory) }) {
		categories = append([]string{MiscCategory}, categories...)
	}

	s.sheets, s.categories, s.loaded = sheets, categories, true

	return nil
}

// commitSheets persists next and makes it the cached state. Must be called with mu held.
func (s *Service) commitSheets(ctx context.Context, next []Sheet) error {
	if err := s.repo.SaveSheets(ctx, next); err != nil {
		return fmt.Errorf("saving sheets: %w", err)
	}

	s.sheets = next

	return nil
}

func (s *Service) findSheet(id string) int {
	return slices.IndexFunc(s.sheets, func(sh Sheet) bool { return sh.ID == id })
}

// modifySheet applies fn to a copy of the sheet and commits the result.
func (s *Service) modifySheet(ctx context.Context, id string, fn func(*Sheet) error) (Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return Sheet{}, err
	}

	i := s.findSheet(id)
	if i < 0 {
		return Sheet{}, fmt.Errorf("sheet %s: %w", id, ErrNotFound)
	}

	next := slices.Clone(s.sheets)
	sheet := next[i].clone()

	if err := fn(&sheet); err != nil {
		return Sheet{}, err
	}

	next[i] = sheet

	if err := s.commitSheets(ctx, next); err != nil {
		return Sheet{}, err
	}

	return sheet.clone(), nil
}

func validateSheetName(name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", invalid("name", "must not be empty")
	}

	if utf8.RuneCountInString(name) > MaxSheetNameLength {
		return "", invalid("name", "must be at most %d characters", MaxSheetNameLength)
	}

	return name, nil
}

func (s *Service) CreateSheet(ctx context.Context, name string) (*Sheet, error) {
	name, err := validateSheetName(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()

	if err := s.load(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if slices.ContainsFunc(s.sheets, func(sh Sheet) bool { return fold(sh.Name) == fold(name) }) {
		s.mu.Unlock()
		return nil, fmt.Errorf("sheet %q: %w", name, ErrDuplicateName)
	}

	now := s.now()
	sheet := Sheet{
		ID:           uuid.NewString(),
		Name:         name,
		CreatedAt:    now,
		LastModified: now,
		SyncStatus:   SyncPending,
		Transactions: []Transaction{},
	}

	if err := s.commitSheets(ctx, append(slices.Clone(s.sheets), sheet)); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Unlock()

	s.logger.Info("sheet created", "sheet_id", sheet.ID, "name", name)

	if _, err := s.queue.Enqueue(ctx, queue.CreateSheet, s.sheetPayload(sheet)); err != nil {
		return &sheet, fmt.Errorf("queueing sheet %s: %w", sheet.ID, err)
	}

	return &sheet, nil
}

func (s *Service) sheetPayload(sheet Sheet) queue.SheetPayload {
	return queue.SheetPayload{SheetID: sheet.ID, SheetName: sheet.Name, OwnerID: s.ownerID}
}

func (s *Service) Sheet(ctx context.Context, id string) (*Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	i := s.findSheet(id)
	if i < 0 {
		return nil, fmt.Errorf("sheet %s: %w", id, ErrNotFound)
	}

	sheet := s.sheets[i].clone()

	return &sheet, nil
}

func (s *Service) Sheets(ctx context.Context) ([]Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	out := make([]Sheet, len(s.sheets))
	for i, sh := range s.sheets {
		out[i] = sh.clone()
	}

	return out, nil
}

func (s *Service) Totals(ctx context.Context, sheetID string) (Totals, error) {
	sheet, err := s.Sheet(ctx, sheetID)
	if err != nil {
		return Totals{}, err
	}

	return CalculateTotals(*sheet), nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}

	return nil
}

func validatePurpose(purpose string) error {
	if strings.TrimSpace(purpose) == "" {
		return invalid("purpose", "must not be empty")
	}

	return nil
}

func normalizeCategory(category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return MiscCategory, nil
	}

	if utf8.RuneCountInString(category) > MaxCategoryLength {
		return "", invalid("category", "must be at most %d characters", MaxCategoryLength)
	}

	return category, nil
}

func (p TransactionParams) build(now time.Time) (Transaction, error) {
	if err := validateAmount(p.Amount); err != nil {
		return Transaction{}, err
	}

	if err := validatePurpose(p.Purpose); err != nil {
		return Transaction{}, err
	}

	category, err := normalizeCategory(p.Category)
	if err != nil {
		return Transaction{}, err
	}

	if !p.Kind.Valid() {
		return Transaction{}, invalid("kind", "must be %q or %q", KindDebit, KindCredit)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	return Transaction{
		ID:           uuid.NewString(),
		Amount:       p.Amount,
		Purpose:      strings.TrimSpace(p.Purpose),
		Category:     category,
		Kind:         p.Kind,
		CreatedAt:    createdAt,
		LastModified: now,
	}, nil
}

func transactionPayload(sheetID string, tx Transaction) queue.TransactionPayload {
	return queue.TransactionPayload{
		SheetID:       sheetID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Purpose:       tx.Purpose,
		Category:      tx.Category,
		Kind:          string(tx.Kind),
		CreatedAt:     tx.CreatedAt,
	}
}

func (s *Service) AddTransaction(ctx context.Context, sheetID string, params TransactionParams) (*Transaction, error) {
	tx, err := params.build(s.now())
	if err != nil {
		return nil, err
	}

	_, err = s.modifySheet(ctx, sheetID, func(sh *Sheet) error {
		sh.Transactions = slices.Insert(sh.Transactions, 0, tx)
		sh.LastModified = tx.LastModified

		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.queue.AddPending(ctx, queue.KindCreate, transactionPayload(sheetID, tx)); err != nil {
		return &tx, fmt.Errorf("queueing transaction %s: %w", tx.ID, err)
	}

	return &tx, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, sheetID, txID string, update TransactionUpdate) (*Transaction, error) {
	var updated Transaction

	_, err := s.modifySheet(ctx, sheetID, func(sh *Sheet) error {
		i := slices.IndexFunc(sh.Transactions, func(t Transaction) bool { return t.ID == txID })
		if i < 0 {
			return fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
		}

		tx := sh.Transactions[i]

		if update.Amount != nil {
			if err := validateAmount(*update.Amount); err != nil {
				return err
			}

			tx.Amount = *update.Amount
		}

		if update.Purpose != nil {
			if err := validatePurpose(*update.Purpose); err != nil {
				return err
			}

			tx.Purpose = strings.TrimSpace(*update.Purpose)
		}

		if update.Category != nil {
			category, err := normalizeCategory(*update.Category)
			if err != nil {
				return err
			}

			tx.Category = category
		}

		if update.Kind != nil {
			if !update.Kind.Valid() {
				return invalid("kind", "must be %q or %q", KindDebit, KindCredit)
			}

			tx.Kind = *update.Kind
		}

		tx.LastModified = s.now()
		tx.Synced = false
		sh.Transactions[i] = tx
		sh.LastModified = tx.LastModified
		updated = tx

		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.queue.AddPending(ctx, queue.KindUpdate, transactionPayload(sheetID, updated)); err != nil {
		return &updated, fmt.Errorf("queueing transaction %s: %w", txID, err)
	}

	return &updated, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, sheetID, txID string) error {
	var deleted Transaction

	_, err := s.modifySheet(ctx, sheetID, func(sh *Sheet) error {
		i := slices.IndexFunc(sh.Transactions, func(t Transaction) bool { return t.ID == txID })
		if i < 0 {
			return fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
		}

		deleted = sh.Transactions[i]
		sh.Transactions = slices.Delete(sh.Transactions, i, i+1)
		sh.LastModified = s.now()

		return nil
	})
	if err != nil {
		return err
	}

	if _, err := s.queue.AddPending(ctx, queue.KindDelete, transactionPayload(sheetID, deleted)); err != nil {
		return fmt.Errorf("queueing deletion of %s: %w", txID, err)
	}

	return nil
}

func (s *Service) Transactions(ctx context.Context, sheetID string) ([]Transaction, error) {
	sheet, err := s.Sheet(ctx, sheetID)
	if err != nil {
		return nil, err
	}

	return sheet.Transactions, nil
}

// ImportTransactions validates every row before adding any of them.
func (s *Service) ImportTransactions(ctx context.Context, sheetID string, params []TransactionParams) ([]Transaction, error) {
	if len(params) == 0 {
		return nil, nil
	}

	now := s.now()
	txs := make([]Transaction, 0, len(params))

	for i, p := range params {
		tx, err := p.build(now)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		txs = append(txs, tx)
	}

	_, err := s.modifySheet(ctx, sheetID, func(sh *Sheet) error {
		// Newest first, like AddTransaction called in order.
		for _, tx := range txs {
			sh.Transactions = slices.Insert(sh.Transactions, 0, tx)
		}

		sh.LastModified = now

		return nil
	})
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, tx := range txs {
		if _, err := s.queue.AddPending(ctx, queue.KindCreate, transactionPayload(sheetID, tx)); err != nil {
			errs = append(errs, fmt.Errorf("queueing transaction %s: %w", tx.ID, err))
		}
	}

	s.logger.Info("transactions imported", "sheet_id", sheetID, "count", len(txs))

	return txs, errors.Join(errs...)
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	return slices.Clone(s.categories), nil
}

func (s *Service) AddCategory(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", invalid("category", "must not be empty")
	}

	if utf8.RuneCountInString(name) > MaxCategoryLength {
		return "", invalid("category", "must be at most %d characters", MaxCategoryLength)
	}

	s.mu.Lock()

	if err := s.load(ctx); err != nil {
		s.mu.Unlock()
		return "", err
	}

	if slices.ContainsFunc(s.categories, func(c string) bool { return fold(c) == fold(name) }) {
		s.mu.Unlock()
		return "", fmt.Errorf("category %q: %w", name, ErrDuplicateName)
	}

	next := append(slices.Clone(s.categories), name)
	if err := s.repo.SaveCategories(ctx, next); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("saving categories: %w", err)
	}

	s.categories = next
	s.mu.Unlock()

	if _, err := s.queue.Enqueue(ctx, queue.CreateCategory, queue.CategoryPayload{Name: name, OwnerID: s.ownerID}); err != nil {
		return name, fmt.Errorf("queueing category %q: %w", name, err)
	}

	return name, nil
}

// DeleteCategory removes a category. Transactions keep their label.
func (s *Service) DeleteCategory(ctx context.Context, name string) error {
	if fold(name) == fold(MiscCategory) {
		return fmt.Errorf("category %q: %w", name, ErrProtectedEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return err
	}

	i := slices.IndexFunc(s.categories, func(c string) bool { return fold(c) == fold(name) })
	if i < 0 {
		return fmt.Errorf("category %q: %w", name, ErrNotFound)
	}

	next := slices.Delete(slices.Clone(s.categories), i, i+1)
	if err := s.repo.SaveCategories(ctx, next); err != nil {
		return fmt.Errorf("saving categories: %w", err)
	}

	s.categories = next

	return nil
}
