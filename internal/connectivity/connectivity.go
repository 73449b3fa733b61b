package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Prober actively checks whether the remote side is reachable.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber considers the network reachable when a HEAD request to URL
// answers with a status below 500.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}

type Config struct {
	PollInterval time.Duration
	Logger       *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 15 * time.Second,
		Logger:       slog.Default(),
	}
}

type subscriber struct {
	id uint64
	fn func(online bool)
}

// Monitor tracks online/offline state and notifies subscribers on transitions.
type Monitor struct {
	prober Prober
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	online bool
	nextID uint64
	subs   []subscriber

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a monitor that starts offline. A nil prober means state only
// changes through SetOnline.
func New(prober Prober, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Monitor{
		prober: prober,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "connectivity"),
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// Subscribe registers fn to be called on every online/offline transition.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// SetOnline records the state reported by the host and notifies on change.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}

	m.online = online
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)

	for _, s := range subs {
		m.notify(s.fn, online)
	}
}

func (m *Monitor) notify(fn func(bool), online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("connectivity subscriber panicked", "panic", r)
		}
	}()

	fn(online)
}

// Refresh probes the network, records the result and returns it.
func (m *Monitor) Refresh(ctx context.Context) bool {
	if m.prober == nil {
		return m.IsOnline()
	}

	online := m.prober.Probe(ctx)
	if ctx.Err() != nil {
		// A cancelled probe says nothing about the network.
		return m.IsOnline()
	}

	m.SetOnline(online)

	return online
}

// WaitOnline blocks until the monitor reports online or ctx is done.
func (m *Monitor) WaitOnline(ctx context.Context) error {
	ch := make(chan struct{}, 1)

	unsubscribe := m.Subscribe(func(online bool) {
		if !online {
			return
		}

		select {
		case ch <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if m.IsOnline() {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start probes once and then polls until Stop is called or ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.Refresh(ctx)

	if m.prober == nil {
		return
	}

	m.wg.Go(func() {
		ticker := time.NewTicker(m.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Refresh(ctx)
			}
		}
	})
}

func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}

	m.wg.Wait()
}
