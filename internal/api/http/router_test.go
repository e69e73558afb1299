package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/api/http/handlers"
	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/dbconn"
	"github.com/spec-kit/bank-crm/internal/events"
	"github.com/spec-kit/bank-crm/internal/observability"
	"github.com/spec-kit/bank-crm/internal/repository"
	"github.com/spec-kit/bank-crm/internal/service"
	"github.com/spec-kit/bank-crm/internal/store"
)

func newTestApp(t *testing.T, connector store.Connector) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	manager := dbconn.NewManager(connector, config.StoreConfig{TimeoutSeconds: 1}, logger)
	t.Cleanup(func() { manager.Disconnect(context.Background()) })

	customerRepo := repository.NewCustomerRepository(manager, logger)
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{Logger: logger, Metrics: metrics})
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{
			ServiceName: "bank-crm-api",
			Version:     "test",
			Stats:       repository.NewStatsRepository(manager, logger),
			Store:       manager,
			Metrics:     metrics,
		}),
		Customers: handlers.NewCustomersHandler(service.NewCustomerService(customerRepo, logger)),
		Tickets: handlers.NewTicketsHandler(service.NewTicketService(service.TicketDependencies{
			TicketRepo:   repository.NewTicketRepository(manager, logger),
			CustomerRepo: customerRepo,
			Dispatcher:   events.NewInMemoryDispatcher(),
			Logger:       logger,
		})),
	})
	return app
}

func seededStore() *store.MemoryConnector {
	mem := store.NewMemoryConnector(store.Namespace{Bucket: "b", Scope: "s", Customers: "user_data", Tickets: "tickets"})
	mem.Seed(store.Customers, "CUST_001", map[string]any{
		"customer_id": "CUST_001",
		"personal_info": map[string]any{
			"full_name":    "Jane Doe",
			"phone_number": "+15551234567",
			"email":        "jane@example.com",
			"ssn_last_4":   "6789",
		},
		"account_info": map[string]any{"customer_tier": "gold"},
		"accounts": map[string]any{
			"checking": []any{map[string]any{"account_number": "1234567890", "balance": 1200.5}},
		},
		"recent_transactions": []any{
			map[string]any{"transaction_id": "T1", "amount": -20.0},
			map[string]any{"transaction_id": "T2", "amount": 100.0},
		},
	})
	return mem
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestRootAndHealth(t *testing.T) {
	app := newTestApp(t, seededStore())

	status, body := do(t, app, fiber.MethodGet, "/", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "test", body["version"])

	status, body = do(t, app, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	db := body["database"].(map[string]any)
	assert.EqualValues(t, 1, db["total_customers"])

	status, _ = do(t, app, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestLookupMasksSensitiveData(t *testing.T) {
	app := newTestApp(t, seededStore())

	status, body := do(t, app, fiber.MethodGet, "/api/v1/customers/lookup?phone_number=%2B15551234567", "")
	require.Equal(t, fiber.StatusOK, status)
	info := body["personal_info"].(map[string]any)
	assert.Equal(t, "***6789", info["ssn_last_4"])
	assert.Contains(t, body, "recent_transactions")
	assert.NotContains(t, body, "support_history")
}

func TestLookupRequiresPhone(t *testing.T) {
	app := newTestApp(t, seededStore())

	status, body := do(t, app, fiber.MethodGet, "/api/v1/customers/lookup", "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, body, "timestamp")
}

func TestUnknownCustomerIs404(t *testing.T) {
	app := newTestApp(t, seededStore())

	status, body := do(t, app, fiber.MethodGet, "/api/v1/customers/CUST_404/summary", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "Customer not found", errBody["message"])
}

func TestCustomerTransactionsLimit(t *testing.T) {
	app := newTestApp(t, seededStore())

	status, body := do(t, app, fiber.MethodGet, "/api/v1/customers/CUST_001/transactions?limit=1", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "CUST_001", body["customer_id"])

	status, _ = do(t, app, fiber.MethodGet, "/api/v1/customers/CUST_001/transactions?limit=500", "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestAdvancedSearchEmptyFilter(t *testing.T) {
	app := newTestApp(t, seededStore())

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/customers/advanced-search", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestTicketLifecycle(t *testing.T) {
	app := newTestApp(t, seededStore())

	status, created := do(t, app, fiber.MethodPost, "/api/v1/tickets",
		`{"phone_number":"+15551234567","issue":"My card was declined twice today","priority":"HIGH"}`)
	require.Equal(t, fiber.StatusOK, status)
	id := created["ticket_id"].(string)
	assert.Equal(t, "high", created["priority"])
	assert.Equal(t, "general", created["category"])
	assert.Equal(t, "open", created["status"])

	status, got := do(t, app, fiber.MethodGet, "/api/v1/tickets/"+id, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, id, got["ticket_id"])

	status, _ = do(t, app, fiber.MethodGet, "/api/v1/tickets/"+id+"/verify?last_four_digits="+id[len(id)-4:], "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = do(t, app, fiber.MethodGet, "/api/v1/tickets/"+id+"/verify?last_four_digits=zzzz", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, updated := do(t, app, fiber.MethodPatch, "/api/v1/tickets/"+id+"/status", `{"status":"closed","resolution":"Card reissued"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "closed", updated["status"])
	assert.NotNil(t, updated["closed_at"])

	status, search := do(t, app, fiber.MethodGet, "/api/v1/tickets/search?partial_id="+id[4:12]+"&phone_number=%2B15551234567", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, search["matches_found"])
}

func TestCustomerTicketsLimitAndStatus(t *testing.T) {
	app := newTestApp(t, seededStore())

	status, _ := do(t, app, fiber.MethodPost, "/api/v1/tickets",
		`{"phone_number":"+15551234567","issue":"My card was declined twice today"}`)
	require.Equal(t, fiber.StatusOK, status)

	for _, query := range []string{"?limit=0", "?status=archived", ""} {
		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/customers/+15551234567/tickets"+query, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.Equal(t, fiber.StatusOK, resp.StatusCode, query)

		var tickets []map[string]any
		require.NoError(t, json.Unmarshal(raw, &tickets), query)
		if query == "" {
			assert.Len(t, tickets, 1)
		} else {
			assert.Empty(t, tickets, query)
		}
	}

	status, _ = do(t, app, fiber.MethodGet, "/api/v1/customers/+15551234567/tickets?limit=51", "")
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestTicketValidation(t *testing.T) {
	app := newTestApp(t, seededStore())

	status, body := do(t, app, fiber.MethodPost, "/api/v1/tickets", `{"phone_number":"+15551234567","issue":"short"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "issue")

	status, _ = do(t, app, fiber.MethodPatch, "/api/v1/tickets/TKT_X/status", `{"status":"bogus"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _ = do(t, app, fiber.MethodPost, "/api/v1/tickets", `{not json`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	app := newTestApp(t, seededStore())

	status, body := do(t, app, fiber.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}

type downConnector struct{ ns store.Namespace }

func (d downConnector) Name() string              { return "down" }
func (d downConnector) Namespace() store.Namespace { return d.ns }
func (d downConnector) Connect(context.Context) (store.Session, error) {
	return nil, store.NewError("connect", store.KindConnection, io.ErrUnexpectedEOF)
}

func TestStoreOutageIs503(t *testing.T) {
	app := newTestApp(t, downConnector{ns: store.Namespace{Customers: "user_data", Tickets: "tickets"}})

	status, body := do(t, app, fiber.MethodGet, "/api/v1/customers/CUST_001", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "Database service temporarily unavailable. Please try again later.", errBody["message"])

	status, body = do(t, app, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", body["status"])

	status, _ = do(t, app, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}
