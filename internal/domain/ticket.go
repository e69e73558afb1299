package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Terminal reports whether entering this status stamps closed_at.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed || s == TicketStatusResolved
}

// NormalizeStatus lower-cases and trims a status.
func NormalizeStatus(s string) TicketStatus {
	return TicketStatus(strings.ToLower(strings.TrimSpace(s)))
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

const DefaultTicketCategory = "general"

// TicketMetadata records where a ticket came from.
type TicketMetadata struct {
	Source  string `json:"source"`
	Channel string `json:"channel"`
}

// Ticket is a customer-support ticket. Timestamps are ISO-8601 UTC strings.
type Ticket struct {
	TicketID             string         `json:"ticket_id"`
	PhoneNumber          string         `json:"phone_number"`
	Issue                string         `json:"issue"`
	Priority             TicketPriority `json:"priority"`
	Category             string         `json:"category"`
	Status               TicketStatus   `json:"status"`
	CreatedAt            string         `json:"created_at"`
	UpdatedAt            string         `json:"updated_at"`
	AssignedTo           *string        `json:"assigned_to"`
	Resolution           *string        `json:"resolution"`
	ClosedAt             *string        `json:"closed_at"`
	CustomerSatisfaction any            `json:"customer_satisfaction"`
	Metadata             TicketMetadata `json:"metadata"`

	// Revision is the store's compare-and-swap token; never serialized.
	Revision int64 `json:"-"`
}

// LastFour returns the final four characters of the ticket id.
func (t *Ticket) LastFour() string {
	if len(t.TicketID) < 4 {
		return ""
	}
	return t.TicketID[len(t.TicketID)-4:]
}

// TimestampLayout keeps timestamps fixed-width so they sort lexically.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Timestamp formats t in UTC using TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// TicketStatusUpdate carries the mutable fields of a status update.
type TicketStatusUpdate struct {
	Status     string
	AssignedTo string
	Resolution string
}

// DatabaseStats reports store counts for health checks.
type DatabaseStats struct {
	TotalCustomers   int64             `json:"total_customers"`
	TotalTickets     int64             `json:"total_tickets"`
	ConnectionStatus string            `json:"connection_status"`
	Bucket           string            `json:"bucket,omitempty"`
	Scope            string            `json:"scope,omitempty"`
	Collections      map[string]string `json:"collections,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// Connection status values reported in DatabaseStats.
const (
	ConnectionHealthy      = "healthy"
	ConnectionDisconnected = "disconnected"
	ConnectionError        = "error"
)
