package dbconn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSession struct {
	store.Session
	pingErr atomic.Value
	closed  atomic.Bool
}

func (s *fakeSession) Ping(context.Context) error {
	if err, ok := s.pingErr.Load().(error); ok {
		return err
	}
	return nil
}

func (s *fakeSession) Close(context.Context) error {
	s.closed.Store(true)
	return nil
}

type fakeConnector struct {
	mu       sync.Mutex
	failures []error
	dials    atomic.Int32
	delay    time.Duration
	hang     atomic.Int32
	sessions []*fakeSession
}

func (c *fakeConnector) Name() string              { return "fake" }
func (c *fakeConnector) Namespace() store.Namespace { return store.Namespace{Bucket: "bank"} }

func (c *fakeConnector) Connect(ctx context.Context) (store.Session, error) {
	c.dials.Add(1)
	if c.hang.Add(-1) >= 0 {
		<-ctx.Done()
		return nil, store.NewError("connect", store.KindTimeout, ctx.Err())
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.failures) > 0 {
		err := c.failures[0]
		c.failures = c.failures[1:]
		return nil, err
	}
	s := &fakeSession{}
	c.sessions = append(c.sessions, s)
	return s, nil
}

func newTestManager(c *fakeConnector, maxRetries int) *Manager {
	m := NewManager(c, config.StoreConfig{TimeoutSeconds: 5, MaxRetries: maxRetries}, zap.NewNop())
	m.retryInterval = time.Millisecond
	return m
}

func TestConnectSetsFlag(t *testing.T) {
	c := &fakeConnector{}
	m := newTestManager(c, 3)
	assert.False(t, m.IsConnected())

	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.IsConnected())
	assert.Equal(t, "bank", m.Namespace().Bucket)
	assert.Equal(t, "fake", m.Driver())
}

func TestConnectRetriesTransientFailures(t *testing.T) {
	down := store.NewError("connect", store.KindConnection, errors.New("refused"))
	c := &fakeConnector{failures: []error{down, down}}
	m := newTestManager(c, 3)

	require.NoError(t, m.Connect(context.Background()))
	assert.EqualValues(t, 3, c.dials.Load())
	assert.True(t, m.IsConnected())
}

func TestConnectSplitsTimeoutAcrossAttempts(t *testing.T) {
	c := &fakeConnector{}
	c.hang.Store(1)
	m := NewManager(c, config.StoreConfig{TimeoutSeconds: 2, MaxRetries: 1}, zap.NewNop())
	m.retryInterval = time.Millisecond

	start := time.Now()
	require.NoError(t, m.Connect(context.Background()))
	assert.EqualValues(t, 2, c.dials.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, m.IsConnected())
}

func TestConnectGivesUpAfterMaxRetries(t *testing.T) {
	down := store.NewError("connect", store.KindQuery, errors.New("refused"))
	c := &fakeConnector{failures: []error{down, down, down, down}}
	m := newTestManager(c, 2)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, store.KindConnection, store.KindOf(err))
	assert.EqualValues(t, 3, c.dials.Load())
	assert.False(t, m.IsConnected())
}

func TestConnectDoesNotRetryAuthFailures(t *testing.T) {
	denied := store.NewError("connect", store.KindAuth, errors.New("bad password"))
	c := &fakeConnector{failures: []error{denied, denied}}
	m := newTestManager(c, 3)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, store.KindAuth, store.KindOf(err))
	assert.True(t, store.KindOf(err).Unavailable())
	assert.EqualValues(t, 1, c.dials.Load())
}

func TestEnsureConnectionDialsLazily(t *testing.T) {
	c := &fakeConnector{}
	m := newTestManager(c, 0)

	s, err := m.EnsureConnection(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)

	again, err := m.EnsureConnection(context.Background())
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.EqualValues(t, 1, c.dials.Load())
}

func TestEnsureConnectionReconnectsAfterFailedProbe(t *testing.T) {
	c := &fakeConnector{}
	m := newTestManager(c, 0)
	require.NoError(t, m.Connect(context.Background()))

	first := c.sessions[0]
	first.pingErr.Store(errors.New("socket closed"))

	s, err := m.EnsureConnection(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, s)
	assert.True(t, first.closed.Load())
	assert.EqualValues(t, 2, c.dials.Load())
}

func TestEnsureConnectionCoalescesConcurrentDials(t *testing.T) {
	c := &fakeConnector{delay: 20 * time.Millisecond}
	m := newTestManager(c, 0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.EnsureConnection(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, c.dials.Load())
}

func TestEnsureConnectionSurfacesConnectFailure(t *testing.T) {
	down := store.NewError("connect", store.KindConnection, errors.New("refused"))
	c := &fakeConnector{failures: []error{down}}
	m := newTestManager(c, 0)

	_, err := m.EnsureConnection(context.Background())
	require.Error(t, err)
	assert.True(t, store.KindOf(err).Unavailable())
	assert.False(t, m.IsConnected())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	c := &fakeConnector{}
	m := newTestManager(c, 0)

	m.Disconnect(context.Background())

	require.NoError(t, m.Connect(context.Background()))
	m.Disconnect(context.Background())
	m.Disconnect(context.Background())

	assert.False(t, m.IsConnected())
	assert.True(t, c.sessions[0].closed.Load())
}
