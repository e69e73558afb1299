package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/dbconn"
	"github.com/spec-kit/bank-crm/internal/store"
)

var testNamespace = store.Namespace{
	Bucket:    "customer_prospecting_bucket",
	Scope:     "voice_bot_scope",
	Customers: "user_data",
	Tickets:   "tickets",
}

func newMemoryConnection(t *testing.T) (*store.MemoryConnector, *dbconn.Manager) {
	t.Helper()
	mem := store.NewMemoryConnector(testNamespace)
	m := dbconn.NewManager(mem, config.StoreConfig{TimeoutSeconds: 5}, zap.NewNop())
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { m.Disconnect(context.Background()) })
	return mem, m
}

func seedCustomer(mem *store.MemoryConnector, id, phone, tier string) {
	mem.Seed(store.Customers, id, map[string]any{
		"customer_id": id,
		"personal_info": map[string]any{
			"full_name":    "Customer " + id,
			"phone_number": phone,
			"email":        id + "@example.com",
			"ssn_last_4":   "6789",
		},
		"account_info": map[string]any{"customer_tier": tier, "status": "active"},
		"banking_accounts": []any{
			map[string]any{"account_number": "1234567890", "balance": 1500.25},
		},
		"credit_cards": []any{map[string]any{"card_number": "4111111111111111"}},
		"recent_transactions": []any{
			map[string]any{"id": "t3"}, map[string]any{"id": "t2"}, map[string]any{"id": "t1"},
		},
	})
}

// downConnection always fails to produce a session.
type downConnection struct{}

func (downConnection) EnsureConnection(context.Context) (store.Session, error) {
	return nil, store.NewError("connect", store.KindConnection, errors.New("refused"))
}
func (downConnection) IsConnected() bool          { return false }
func (downConnection) Namespace() store.Namespace { return testNamespace }

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
