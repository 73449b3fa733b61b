package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrJamesThe3rd/expenso/internal/events"
	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/expenso/internal/ledger/store"
	"github.com/MrJamesThe3rd/expenso/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/expenso/internal/matching/store"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
	"github.com/MrJamesThe3rd/expenso/internal/remote"
	"github.com/MrJamesThe3rd/expenso/internal/storage"
	"github.com/MrJamesThe3rd/expenso/internal/syncengine"
)

var ErrNoUser = errors.New("user id is required")

// Session is everything one user's data flows through.
type Session struct {
	UserID   string
	Events   *events.Bus
	Queue    *queue.Queue
	Ledger   *ledger.Service
	Matching *matching.Service
	Engine   *syncengine.Engine

	docs *storage.Store
}

type Config struct {
	Store  *storage.Store
	Remote remote.Adapter
	Net    syncengine.Connectivity
	Sync   syncengine.Config
	Logger *slog.Logger
}

// Manager lazily builds and starts one Session per user. Sessions live until
// Close or Forget.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{cfg: cfg, sessions: make(map[string]*Session)}
}

// Get returns the running session for userID, starting it on first use.
// The session outlives ctx.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("session manager closed")
	}

	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}

	s := m.build(userID)
	s.Engine.Start(context.WithoutCancel(ctx))

	m.sessions[userID] = s

	m.cfg.Logger.Info("session started", "user_id", userID, "namespace", s.docs.Namespace())

	return s, nil
}

func (m *Manager) build(userID string) *Session {
	logger := m.cfg.Logger.With("user_id", userID)
	docs := m.cfg.Store.ForUser(userID)
	bus := events.NewBus(logger)
	q := queue.New(docs, bus, logger)
	led := ledger.NewService(ledgerStore.New(docs), q, userID, logger)

	cfg := m.cfg.Sync
	cfg.Logger = logger

	return &Session{
		UserID:   userID,
		Events:   bus,
		Queue:    q,
		Ledger:   led,
		Matching: matching.NewService(matchingStore.New(docs)),
		Engine:   syncengine.New(q, led, m.cfg.Remote, m.cfg.Net, bus, cfg),
		docs:     docs,
	}
}

// Forget stops the user's session and erases every document stored for them.
func (m *Manager) Forget(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}

	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.Engine.Stop()
	}

	if !m.cfg.Store.ForUser(userID).Clear(ctx) {
		return fmt.Errorf("clearing data for user %s", userID)
	}

	m.cfg.Logger.Info("user data cleared", "user_id", userID)

	return nil
}

// Close stops every running session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.closed = true
	m.mu.Unlock()

	var wg sync.WaitGroup

	for _, s := range sessions {
		wg.Go(s.Engine.Stop)
	}

	wg.Wait()
}
