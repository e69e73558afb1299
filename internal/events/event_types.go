package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/bank-crm/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
)

// Source values identify which surface triggered an event.
const (
	SourceAPI = "api"
	SourceCLI = "crmctl"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID, source string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	PhoneNumber   string                `json:"phone_number"`
	Priority      domain.TicketPriority `json:"priority"`
	Category      string                `json:"category"`
	KnownCustomer bool                  `json:"known_customer"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus  domain.TicketStatus `json:"old_status"`
	NewStatus  domain.TicketStatus `json:"new_status"`
	AssignedTo string              `json:"assigned_to,omitempty"`
	Resolution string              `json:"resolution,omitempty"`
}
