package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/dbconn"
	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/events"
	"github.com/spec-kit/bank-crm/internal/redact"
	"github.com/spec-kit/bank-crm/internal/repository"
	"github.com/spec-kit/bank-crm/internal/store"
	"github.com/spec-kit/bank-crm/pkg/util"
)

type fixture struct {
	mem        *store.MemoryConnector
	customers  *CustomerService
	tickets    *TicketService
	ticketRepo repository.TicketRepository
	published  []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemoryConnector(store.Namespace{Bucket: "b", Scope: "s", Customers: "user_data", Tickets: "tickets"})
	conn := dbconn.NewManager(mem, config.StoreConfig{TimeoutSeconds: 5}, zap.NewNop())
	t.Cleanup(func() { conn.Disconnect(context.Background()) })

	f := &fixture{mem: mem}
	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	}
	dispatcher.Subscribe(events.EventTicketCreated, record)
	dispatcher.Subscribe(events.EventTicketStatusChanged, record)

	customerRepo := repository.NewCustomerRepository(conn, zap.NewNop())
	f.ticketRepo = repository.NewTicketRepository(conn, zap.NewNop())
	f.customers = NewCustomerService(customerRepo, zap.NewNop())
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:   f.ticketRepo,
		CustomerRepo: customerRepo,
		Dispatcher:   dispatcher,
		Logger:       zap.NewNop(),
	})

	mem.Seed(store.Customers, "CUST_001", map[string]any{
		"customer_id": "CUST_001",
		"personal_info": map[string]any{
			"full_name":    "Jane Doe",
			"phone_number": "+15551234567",
			"email":        "jane@example.com",
			"ssn_last_4":   "6789",
		},
		"account_info": map[string]any{"customer_tier": "gold", "status": "active", "last_login": "2024-02-28T09:00:00Z"},
		"banking_accounts": []any{
			map[string]any{"account_number": "1234567890", "balance": 1500.25},
		},
		"credit_cards":        []any{map[string]any{"card_number": "4111111111111111"}},
		"loans":               []any{map[string]any{"loan_id": "L1"}},
		"recent_transactions": []any{map[string]any{"id": "t1", "card_number": "4111111111111111"}},
		"support_history":     []any{map[string]any{"ticket_id": "OLD"}},
	})
	return f
}

func domainStatus(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return util.ToDomainError(err).HTTPStatus
}

func TestLookupFiltersThenMasks(t *testing.T) {
	f := newFixture(t)

	customer, err := f.customers.Lookup(context.Background(), "+15551234567", redact.DefaultFilterOptions())
	require.NoError(t, err)

	assert.Equal(t, "***6789", domain.StringAt(customer, "personal_info", "ssn_last_4"))
	account := customer.List(domain.FieldBankingAccounts)[0].(map[string]any)
	assert.Equal(t, "****7890", account["account_number"])
	assert.Equal(t, 1500.25, account["balance"])
	assert.Contains(t, customer, domain.FieldRecentTransactions)
	assert.NotContains(t, customer, domain.FieldSupportHistory)

	_, err = f.customers.Lookup(context.Background(), "+10000000000", redact.DefaultFilterOptions())
	assert.Equal(t, 404, domainStatus(t, err))
}

func TestSearchReturnsEmptyListOnMiss(t *testing.T) {
	f := newFixture(t)

	found, err := f.customers.Search(context.Background(), "+15551234567", false, true)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.NotContains(t, found[0], domain.FieldRecentTransactions)
	assert.Contains(t, found[0], domain.FieldSupportHistory)

	none, err := f.customers.Search(context.Background(), "+10000000000", true, false)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAdvancedSearchMasksResults(t *testing.T) {
	f := newFixture(t)

	results, err := f.customers.AdvancedSearch(context.Background(), domain.CustomerFilter{CustomerTier: "gold"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "***6789", domain.StringAt(results[0], "personal_info", "ssn_last_4"))

	empty, err := f.customers.AdvancedSearch(context.Background(), domain.CustomerFilter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAccountsTransactionsAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	accounts, err := f.customers.Accounts(ctx, "CUST_001")
	require.NoError(t, err)
	assert.Equal(t, "****7890", accounts.BankingAccounts[0].(map[string]any)["account_number"])
	assert.Equal(t, "****1111", accounts.CreditCards[0].(map[string]any)["card_number"])
	assert.Len(t, accounts.Loans, 1)

	txns, err := f.customers.Transactions(ctx, "CUST_001", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, txns.TotalAvailable)
	assert.Equal(t, "****1111", txns.Transactions[0].(map[string]any)["card_number"])

	summary, err := f.customers.Summary(ctx, "CUST_001")
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerSummary{
		CustomerID:    "CUST_001",
		Name:          "Jane Doe",
		Phone:         "+15551234567",
		Email:         "jane@example.com",
		CustomerTier:  "gold",
		Status:        "active",
		TotalAccounts: 1,
		TotalCards:    1,
		TotalLoans:    1,
		LastLogin:     "2024-02-28T09:00:00Z",
	}, *summary)

	_, err = f.customers.Summary(ctx, "CUST_404")
	assert.Equal(t, 404, domainStatus(t, err))
	_, err = f.customers.Accounts(ctx, "CUST_404")
	assert.Equal(t, 404, domainStatus(t, err))
}

func TestCreateTicketPublishesEvent(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.tickets.CreateTicket(context.Background(), repository.NewTicket{
		PhoneNumber: "+15551234567",
		Issue:       "Card declined at merchant repeatedly",
	}, events.SourceAPI)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)

	require.Len(t, f.published, 1)
	assert.Equal(t, events.EventTicketCreated, f.published[0].Type)
	assert.True(t, f.published[0].Payload.(events.TicketCreatedPayload).KnownCustomer)

	unknown, err := f.tickets.CreateTicket(context.Background(), repository.NewTicket{
		PhoneNumber: "+10000000000",
		Issue:       "Who am I even talking to",
	}, events.SourceAPI)
	require.NoError(t, err)
	assert.NotEmpty(t, unknown.TicketID)
	assert.False(t, f.published[1].Payload.(events.TicketCreatedPayload).KnownCustomer)
}

func TestVerifyTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.tickets.CreateTicket(ctx, repository.NewTicket{PhoneNumber: "+15551234567", Issue: "Card declined at merchant repeatedly"}, events.SourceAPI)
	require.NoError(t, err)

	got, err := f.tickets.VerifyTicket(ctx, ticket.TicketID, ticket.LastFour())
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketID, got.TicketID)

	_, err = f.tickets.VerifyTicket(ctx, ticket.TicketID, "xxxx")
	assert.Equal(t, 404, domainStatus(t, err))
	_, err = f.tickets.VerifyTicket(ctx, "abc", "abc")
	assert.Equal(t, 404, domainStatus(t, err))
}

func TestSearchByPartialIDCapsMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		f.mem.Seed(store.Tickets, fmt.Sprintf("TKT_ABCD%04d_1700000000", i), map[string]any{
			"ticket_id":    fmt.Sprintf("TKT_ABCD%04d_1700000000", i),
			"phone_number": "+15551234567",
			"issue":        "Seeded ticket issue",
			"status":       "open",
			"created_at":   domain.Timestamp(time.Unix(1700000000+int64(i), 0)),
		})
	}
	f.mem.Seed(store.Tickets, "TKT_FFFF0000_1700000000", map[string]any{
		"ticket_id":    "TKT_FFFF0000_1700000000",
		"phone_number": "+15551234567",
		"status":       "open",
		"created_at":   domain.Timestamp(time.Unix(1700000100, 0)),
	})

	result, err := f.tickets.SearchByPartialID(ctx, "abcd", "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, 5, result.MatchesFound)
	assert.Equal(t, 8, result.TotalCustomerTickets)
	require.Len(t, result.Tickets, 5)
	assert.Equal(t, "TKT_ABCD0006_1700000000", result.Tickets[0].TicketID)
	assert.Equal(t, "0000", result.Tickets[0].SecurityInfo.LastFourDigits)
	assert.True(t, result.Tickets[0].SecurityInfo.VerificationRequired)
	assert.NotEmpty(t, result.SecurityNote)

	none, err := f.tickets.SearchByPartialID(ctx, "zzzz", "+15551234567")
	require.NoError(t, err)
	assert.Zero(t, none.MatchesFound)
	assert.NotNil(t, none.Tickets)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket, err := f.tickets.CreateTicket(ctx, repository.NewTicket{PhoneNumber: "+15551234567", Issue: "Card declined at merchant repeatedly"}, events.SourceAPI)
	require.NoError(t, err)

	updated, err := f.tickets.UpdateStatus(ctx, ticket.TicketID, domain.TicketStatusUpdate{Status: "RESOLVED", Resolution: "Limit raised"}, events.SourceCLI)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	require.NotNil(t, updated.ClosedAt)
	assert.Equal(t, "Limit raised", *updated.Resolution)

	last := f.published[len(f.published)-1]
	assert.Equal(t, events.EventTicketStatusChanged, last.Type)
	assert.Equal(t, events.SourceCLI, last.Source)
	payload := last.Payload.(events.TicketStatusChangedPayload)
	assert.Equal(t, domain.TicketStatusOpen, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusResolved, payload.NewStatus)

	_, err = f.tickets.UpdateStatus(ctx, ticket.TicketID, domain.TicketStatusUpdate{Status: "archived"}, events.SourceAPI)
	assert.Equal(t, 422, domainStatus(t, err))

	_, err = f.tickets.UpdateStatus(ctx, "TKT_00000000_1", domain.TicketStatusUpdate{Status: "closed"}, events.SourceAPI)
	assert.Equal(t, 404, domainStatus(t, err))
}
