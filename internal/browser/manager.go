// Package browser drives Chrome over the DevTools protocol. A Manager owns
// the browser process; every Session is a separate browser context with its
// own storage, one page and a recorder fed by CDP events.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiprobe/api/schemas"
	"github.com/xkilldash9x/uiprobe/internal/config"
)

const (
	defaultLaunchTimeout = 30 * time.Second
	closeTimeout         = 10 * time.Second
)

// ErrShutdown is returned by NewSession once Shutdown has begun.
var ErrShutdown = errors.New("browser manager is shut down")

// Manager handles the browser process lifecycle. The process is launched
// lazily by the first NewSession (or an explicit Start).
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	// allocCtx owns the Chrome process; browserCtx is the connection all
	// sessions derive from.
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	initOnce sync.Once
	initErr  error

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	// wg tracks open sessions for a graceful shutdown.
	wg sync.WaitGroup
}

var _ schemas.SessionProvider = (*Manager)(nil)

// NewManager creates a manager. Nothing is launched yet.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Start launches the browser if it is not running yet.
func (m *Manager) Start(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.initErr = m.launch(ctx)
	})
	return m.initErr
}

func (m *Manager) launch(ctx context.Context) error {
	m.logger.Info("Launching browser.", zap.Bool("headless", m.cfg.Headless))

	// The process must outlive ctx, so the allocator hangs off Background.
	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), DefaultAllocatorOptions(m.cfg)...)
	browserOpts := []chromedp.ContextOption{
		chromedp.WithLogf(m.logger.Sugar().Debugf),
		chromedp.WithErrorf(m.logger.Sugar().Debugf),
	}
	if m.cfg.Debug {
		browserOpts = append(browserOpts, chromedp.WithDebugf(m.logger.Sugar().Debugf))
	}
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx, browserOpts...)

	timeout := m.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}
	if err := runBounded(ctx, m.browserCtx, timeout); err != nil {
		m.browserCancel()
		m.allocCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched and responsive.")
	return nil
}

// NewSession opens a fresh browser context with one page and starts
// recording its console and network events.
func (m *Manager) NewSession(ctx context.Context) (schemas.Session, error) {
	if err := m.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	m.wg.Add(1)
	m.mu.Unlock()

	s := newSession(m.browserCtx, m.cfg, m.logger)
	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
		m.wg.Done()
	}

	if err := s.initialize(ctx); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = s.Close(cleanupCtx)
		return nil, fmt.Errorf("initializing browser session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Debug("Session opened.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown closes open sessions, waits for them within ctx, then stops the
// browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	if m.browserCtx == nil {
		m.logger.Debug("Browser was never launched; nothing to shut down.")
		return nil
	}
	m.logger.Info("Browser manager shutdown initiated.", zap.Int("open_sessions", len(open)))

	for _, s := range open {
		go func(s *Session) {
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("Error closing session during shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Debug("All sessions closed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	m.browserCancel()
	m.allocCancel()
	<-m.allocCtx.Done()
	m.logger.Info("Browser stopped.")
	return nil
}

// runBounded runs actions on target, which may allocate a browser or tab on
// first use. Target creation must not be tied to a short-lived context, so
// the call is raced against ctx and timeout instead of deriving from them.
func runBounded(ctx, target context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(target, actions...) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-errCh:
		return err
	case <-timer.C:
		return fmt.Errorf("no response within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
