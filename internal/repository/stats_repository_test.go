package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/domain"
)

func TestDatabaseStats(t *testing.T) {
	mem, conn := newMemoryConnection(t)
	seedCustomer(mem, "CUST_001", "+15550000001", "gold")
	seedCustomer(mem, "CUST_002", "+15550000002", "gold")
	tickets := NewTicketRepository(conn, zap.NewNop())
	_, err := tickets.Create(context.Background(), NewTicket{PhoneNumber: "+15550000001", Issue: "Statement is missing"})
	require.NoError(t, err)

	stats := NewStatsRepository(conn, zap.NewNop()).GetDatabaseStats(context.Background())
	assert.EqualValues(t, 2, stats.TotalCustomers)
	assert.EqualValues(t, 1, stats.TotalTickets)
	assert.Equal(t, domain.ConnectionHealthy, stats.ConnectionStatus)
	assert.Equal(t, "customer_prospecting_bucket", stats.Bucket)
	assert.Equal(t, "user_data", stats.Collections["customers"])
	assert.Empty(t, stats.Error)
}

func TestDatabaseStatsDegrades(t *testing.T) {
	stats := NewStatsRepository(downConnection{}, zap.NewNop()).GetDatabaseStats(context.Background())
	assert.Zero(t, stats.TotalCustomers)
	assert.Zero(t, stats.TotalTickets)
	assert.Equal(t, domain.ConnectionError, stats.ConnectionStatus)
	assert.Equal(t, "document store connection failure", stats.Error)
}
