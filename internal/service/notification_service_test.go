package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/config"
	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/events"
)

func TestNotificationWebhookReceivesEvents(t *testing.T) {
	received := make(chan map[string]any, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		received <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: server.URL})
	n.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketStatusChanged, "TKT_1", events.SourceAPI,
		events.TicketStatusChangedPayload{OldStatus: domain.TicketStatusOpen, NewStatus: domain.TicketStatusClosed}))
	require.NoError(t, err)

	body := <-received
	assert.Equal(t, "ticket_status_changed", body["type"])
	assert.Equal(t, "TKT_1", body["ticket_id"])
}

func TestNotificationWebhookFailureIsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{WebhookURL: server.URL}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketCreated, "TKT_1", events.SourceAPI, events.TicketCreatedPayload{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNotificationWithoutWebhookIsQuiet(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{}).RegisterHandlers()
	assert.NoError(t, dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketCreated, "TKT_1", events.SourceAPI, nil)))
}
