package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/store"
)

const maxUpdateAttempts = 3

// NewTicket carries the caller-supplied fields of a ticket.
type NewTicket struct {
	PhoneNumber string
	Issue       string
	Priority    string
	Category    string
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, input NewTicket) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByPhone(ctx context.Context, phone, status string, limit int) ([]domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, update domain.TicketStatusUpdate) bool
}

type ticketRepository struct {
	conn   Connection
	logger *zap.Logger
	now    func() time.Time
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(conn Connection, logger *zap.Logger) TicketRepository {
	return &ticketRepository{conn: conn, logger: logger, now: time.Now}
}

// NewTicketID returns TKT_<8 upper hex>_<unix seconds>.
func NewTicketID(at time.Time) string {
	return fmt.Sprintf("TKT_%s_%d", strings.ToUpper(uuid.NewString()[:8]), at.Unix())
}

func (r *ticketRepository) Create(ctx context.Context, input NewTicket) (ticket *domain.Ticket, err error) {
	ctx, span := startSpan(ctx, "TicketRepository.Create")
	defer func() { endSpan(span, err) }()

	now := r.now()
	stamp := domain.Timestamp(now)
	priority := strings.ToLower(input.Priority)
	if priority == "" {
		priority = string(domain.TicketPriorityMedium)
	}
	category := strings.ToLower(input.Category)
	if category == "" {
		category = domain.DefaultTicketCategory
	}

	ticket = &domain.Ticket{
		TicketID:    NewTicketID(now),
		PhoneNumber: input.PhoneNumber,
		Issue:       input.Issue,
		Priority:    domain.TicketPriority(priority),
		Category:    category,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   stamp,
		UpdatedAt:   stamp,
		Metadata:    domain.TicketMetadata{Source: "api", Channel: "crm"},
	}
	span.SetAttributes(attribute.String("crm.ticket_id", ticket.TicketID))

	body, err := ticketBody(ticket)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	session, err := r.conn.EnsureConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	doc, err := session.Insert(ctx, store.Tickets, ticket.TicketID, body)
	if err != nil {
		r.logger.Error("error creating ticket", zap.String("phone_number", input.PhoneNumber), zap.Error(err))
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	ticket.Revision = doc.Revision

	r.logger.Info("created ticket", zap.String("ticket_id", ticket.TicketID), zap.String("phone_number", input.PhoneNumber))
	return ticket, nil
}

// GetByID returns the ticket, or nil when it does not exist.
func (r *ticketRepository) GetByID(ctx context.Context, id string) (ticket *domain.Ticket, err error) {
	ctx, span := startSpan(ctx, "TicketRepository.GetByID")
	span.SetAttributes(attribute.String("crm.ticket_id", id))
	defer func() { endSpan(span, err) }()

	session, err := r.conn.EnsureConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}

	r.logger.Info("retrieving ticket", zap.String("ticket_id", id))
	doc, err := session.Get(ctx, store.Tickets, id)
	if store.IsNotFound(err) {
		r.logger.Info("ticket not found", zap.String("ticket_id", id))
		return nil, nil
	}
	if err != nil {
		r.logger.Error("error retrieving ticket", zap.String("ticket_id", id), zap.Error(err))
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return ticketFromDocument(doc)
}

// ListByPhone returns the newest tickets for phone, optionally restricted to one status.
// A zero limit yields an empty list. Statuses are matched as stored, so an
// unknown status simply matches nothing.
func (r *ticketRepository) ListByPhone(ctx context.Context, phone, status string, limit int) (tickets []domain.Ticket, err error) {
	ctx, span := startSpan(ctx, "TicketRepository.ListByPhone")
	defer func() { endSpan(span, err) }()

	if limit <= 0 {
		return []domain.Ticket{}, nil
	}
	filters := []store.Filter{{Field: "phone_number", Value: phone}}
	if status != "" {
		filters = append(filters, store.Filter{Field: "status", Value: string(domain.NormalizeStatus(status))})
	}

	session, err := r.conn.EnsureConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	r.logger.Info("retrieving tickets for phone", zap.String("phone_number", phone))
	docs, err := session.Find(ctx, store.Query{
		Collection: store.Tickets,
		Filters:    filters,
		SortField:  "created_at",
		SortDesc:   true,
		Limit:      limit,
	})
	if err != nil {
		r.logger.Error("error retrieving tickets for phone", zap.String("phone_number", phone), zap.Error(err))
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	tickets = make([]domain.Ticket, 0, len(docs))
	for i := range docs {
		ticket, err := ticketFromDocument(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("list tickets: %w", err)
		}
		tickets = append(tickets, *ticket)
	}
	r.logger.Info("found tickets for phone", zap.String("phone_number", phone), zap.Int("count", len(tickets)))
	return tickets, nil
}

// UpdateStatus applies update with a revision-checked replace, retrying when a
// concurrent writer got there first. It reports false when the ticket is missing
// or the update could not be stored; failures are logged, not returned.
func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, update domain.TicketStatusUpdate) bool {
	ctx, span := startSpan(ctx, "TicketRepository.UpdateStatus")
	span.SetAttributes(attribute.String("crm.ticket_id", id))
	var err error
	defer func() { endSpan(span, err) }()

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		var session store.Session
		session, err = r.conn.EnsureConnection(ctx)
		if err != nil {
			r.logger.Error("error updating ticket", zap.String("ticket_id", id), zap.Error(err))
			return false
		}

		var doc *store.Document
		doc, err = session.Get(ctx, store.Tickets, id)
		if store.IsNotFound(err) {
			err = nil
			return false
		}
		if err != nil {
			r.logger.Error("error updating ticket", zap.String("ticket_id", id), zap.Error(err))
			return false
		}

		body := doc.Body
		if body == nil {
			body = map[string]any{}
		}
		status := applyStatusUpdate(body, update, r.now())

		_, err = session.Replace(ctx, store.Tickets, id, body, doc.Revision)
		switch {
		case err == nil:
			r.logger.Info("updated ticket status", zap.String("ticket_id", id), zap.String("status", string(status)))
			return true
		case store.IsConflict(err):
			r.logger.Warn("ticket changed during update; retrying", zap.String("ticket_id", id), zap.Int("attempt", attempt))
		case store.IsNotFound(err):
			err = nil
			return false
		default:
			r.logger.Error("error updating ticket", zap.String("ticket_id", id), zap.Error(err))
			return false
		}
	}

	r.logger.Error("giving up on ticket update after concurrent modifications", zap.String("ticket_id", id))
	return false
}

// applyStatusUpdate merges update into the stored ticket body, leaving fields it
// does not own untouched. closed_at is stamped on entering a terminal status and
// is never cleared.
func applyStatusUpdate(body map[string]any, update domain.TicketStatusUpdate, now time.Time) domain.TicketStatus {
	stamp := domain.Timestamp(now)
	status := domain.NormalizeStatus(update.Status)
	body["status"] = string(status)
	body["updated_at"] = stamp
	if update.AssignedTo != "" {
		body["assigned_to"] = update.AssignedTo
	}
	if update.Resolution != "" {
		body["resolution"] = update.Resolution
	}
	if status.Terminal() {
		body["closed_at"] = stamp
	}
	return status
}

func ticketBody(t *domain.Ticket) (map[string]any, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func ticketFromDocument(doc *store.Document) (*domain.Ticket, error) {
	raw, err := json.Marshal(doc.Body)
	if err != nil {
		return nil, err
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", doc.Key, err)
	}
	if ticket.TicketID == "" {
		ticket.TicketID = doc.Key
	}
	ticket.Revision = doc.Revision
	return &ticket, nil
}
