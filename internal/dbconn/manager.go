// Package dbconn owns the process-wide document-store session. Every caller goes
// through EnsureConnection, which probes the session and transparently redials
// when it has gone stale.
package dbconn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/store"
)

var errNotConnected = errors.New("document store not connected")

// Manager holds at most one live session.
type Manager struct {
	connector store.Connector
	cfg       config.StoreConfig
	logger    *zap.Logger

	mu        sync.RWMutex
	session   store.Session
	connected atomic.Bool
	dials     singleflight.Group

	retryInterval time.Duration
}

// NewManager builds a manager; nothing is dialed until Connect or EnsureConnection.
func NewManager(connector store.Connector, cfg config.StoreConfig, logger *zap.Logger) *Manager {
	return &Manager{
		connector:     connector,
		cfg:           cfg,
		logger:        logger,
		retryInterval: cfg.RetryDelay(),
	}
}

// Namespace reports the physical names the connector writes to.
func (m *Manager) Namespace() store.Namespace {
	return m.connector.Namespace()
}

// Driver names the configured store driver.
func (m *Manager) Driver() string {
	return m.connector.Name()
}

// IsConnected returns the last known liveness flag without touching the network.
func (m *Manager) IsConnected() bool {
	return m.connected.Load()
}

// Connect dials a fresh session, replacing any current one. Concurrent callers
// share a single dial. The dial keeps running for the configured timeout even if
// ctx is cancelled; the caller just stops waiting.
func (m *Manager) Connect(ctx context.Context) error {
	return m.await(ctx, func() error {
		return m.dial(context.WithoutCancel(ctx))
	})
}

// EnsureConnection returns a session that answered a liveness probe, redialing
// when the probe fails or no session exists.
func (m *Manager) EnsureConnection(ctx context.Context) (store.Session, error) {
	stale := m.current()
	if stale != nil && m.connected.Load() {
		err := stale.Ping(ctx)
		if err == nil {
			return stale, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, store.NewError("ensure_connection", store.KindTimeout, ctxErr)
		}
		m.logger.Warn("store liveness probe failed; reconnecting", zap.Error(err))
		m.markStale(stale)
	}

	err := m.await(ctx, func() error {
		// Another caller may already have replaced the session we saw fail.
		if current := m.current(); current != nil && current != stale && m.connected.Load() {
			return nil
		}
		m.logger.Info("connection lost, attempting to reconnect")
		return m.dial(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}

	session := m.current()
	if session == nil {
		return nil, store.NewError("ensure_connection", store.KindConnection, errNotConnected)
	}
	return session, nil
}

// Disconnect closes the session if there is one. It is safe to call repeatedly
// and only logs close failures.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	session := m.session
	m.session = nil
	m.connected.Store(false)
	m.mu.Unlock()

	if session == nil {
		return
	}
	if err := session.Close(ctx); err != nil {
		m.logger.Error("error disconnecting from document store", zap.Error(err))
		return
	}
	m.logger.Info("disconnected from document store", zap.String("driver", m.connector.Name()))
}

func (m *Manager) current() store.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Manager) markStale(session store.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == session {
		m.connected.Store(false)
	}
}

func (m *Manager) await(ctx context.Context, fn func() error) error {
	ch := m.dials.DoChan("dial", func() (any, error) {
		return nil, fn()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return store.NewError("connect", store.KindTimeout, ctx.Err())
	}
}

func (m *Manager) dial(ctx context.Context) error {
	timeout := m.cfg.ConnectTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m.logger.Info("connecting to document store",
		zap.String("driver", m.connector.Name()),
		zap.String("bucket", m.connector.Namespace().Bucket),
	)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retryInterval

	attempt := 0
	session, err := backoff.Retry(ctx, func() (store.Session, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.AttemptTimeout())
		defer cancel()
		s, err := m.connector.Connect(attemptCtx)
		if err != nil && store.KindOf(err) == store.KindAuth {
			return nil, backoff.Permanent(err)
		}
		return s, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(m.maxTries()),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.logger.Warn("document store connect attempt failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		m.connected.Store(false)
		m.logger.Error("failed to connect to document store", zap.Int("attempts", attempt), zap.Error(err))
		kind := store.KindOf(err)
		if kind != store.KindAuth && kind != store.KindTimeout {
			kind = store.KindConnection
		}
		return store.NewError("connect", kind, err)
	}

	m.mu.Lock()
	previous := m.session
	m.session = session
	m.connected.Store(true)
	m.mu.Unlock()

	if previous != nil {
		if err := previous.Close(ctx); err != nil {
			m.logger.Debug("closing replaced session failed", zap.Error(err))
		}
	}
	m.logger.Info("successfully connected to document store", zap.Int("attempts", attempt))
	return nil
}

func (m *Manager) maxTries() uint {
	if m.cfg.MaxRetries <= 0 {
		return 1
	}
	return uint(m.cfg.MaxRetries) + 1
}
