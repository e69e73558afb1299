package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/events"
	"github.com/spec-kit/bank-crm/internal/repository"
	"github.com/spec-kit/bank-crm/pkg/util"
)

const (
	partialSearchScan  = 50
	partialSearchLimit = 5

	securityNote = "To retrieve full ticket details, provide the complete ticket ID and last 4 digits for verification"
)

var validStatuses = map[domain.TicketStatus]bool{
	domain.TicketStatusOpen:       true,
	domain.TicketStatusInProgress: true,
	domain.TicketStatusPending:    true,
	domain.TicketStatusResolved:   true,
	domain.TicketStatusClosed:     true,
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	customers  repository.CustomerRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CustomerRepo repository.CustomerRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// SecurityInfo tells the caller what is needed to open a matched ticket.
type SecurityInfo struct {
	LastFourDigits       string `json:"last_four_digits"`
	VerificationRequired bool   `json:"verification_required"`
}

// TicketMatch is a ticket found by partial id.
type TicketMatch struct {
	domain.Ticket
	SecurityInfo SecurityInfo `json:"security_info"`
}

// TicketSearchResult is the partial-id search response.
type TicketSearchResult struct {
	MatchesFound         int           `json:"matches_found"`
	TotalCustomerTickets int           `json:"total_customer_tickets"`
	Tickets              []TicketMatch `json:"tickets"`
	SecurityNote         string        `json:"security_note"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		customers:  deps.CustomerRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// CreateTicket opens a ticket. Tickets for unknown phone numbers are accepted
// with a warning.
func (s *TicketService) CreateTicket(ctx context.Context, input repository.NewTicket, source string) (*domain.Ticket, error) {
	s.logger.Info("creating ticket", zap.String("phone_number", input.PhoneNumber))

	customer, err := s.customers.GetByPhone(ctx, input.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		s.logger.Warn("creating ticket for non-existing customer", zap.String("phone_number", input.PhoneNumber))
	}

	ticket, err := s.tickets.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, ticket.TicketID, source, events.TicketCreatedPayload{
		PhoneNumber:   ticket.PhoneNumber,
		Priority:      ticket.Priority,
		Category:      ticket.Category,
		KnownCustomer: customer != nil,
	}))
	return ticket, nil
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, util.NewNotFound("Ticket not found with the provided ID", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

// VerifyTicket returns the ticket only when lastFour equals the id's final four
// characters. A mismatch is indistinguishable from a missing ticket.
func (s *TicketService) VerifyTicket(ctx context.Context, id, lastFour string) (*domain.Ticket, error) {
	notFound := util.NewNotFound("Ticket not found or verification failed", nil)
	if len(id) < 4 || id[len(id)-4:] != lastFour {
		s.logger.Warn("security verification failed for ticket", zap.String("ticket_id", id))
		return nil, notFound
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, notFound
	}
	return ticket, nil
}

func (s *TicketService) ListCustomerTickets(ctx context.Context, phone, status string, limit int) ([]domain.Ticket, error) {
	return s.tickets.ListByPhone(ctx, phone, status, limit)
}

// SearchByPartialID scans the phone's most recent tickets for a case-insensitive
// id substring and returns at most five matches.
func (s *TicketService) SearchByPartialID(ctx context.Context, partialID, phone string) (*TicketSearchResult, error) {
	s.logger.Info("searching tickets by partial id", zap.String("phone_number", phone))
	tickets, err := s.tickets.ListByPhone(ctx, phone, "", partialSearchScan)
	if err != nil {
		return nil, err
	}

	needle := strings.ToUpper(partialID)
	matches := []TicketMatch{}
	for _, ticket := range tickets {
		if len(matches) == partialSearchLimit {
			break
		}
		id := strings.ToUpper(ticket.TicketID)
		if !strings.Contains(id, needle) {
			continue
		}
		lastFour := "N/A"
		if len(id) >= 4 {
			lastFour = id[len(id)-4:]
		}
		matches = append(matches, TicketMatch{
			Ticket:       ticket,
			SecurityInfo: SecurityInfo{LastFourDigits: lastFour, VerificationRequired: true},
		})
	}

	s.logger.Info("found matching tickets", zap.Int("matches", len(matches)))
	return &TicketSearchResult{
		MatchesFound:         len(matches),
		TotalCustomerTickets: len(tickets),
		Tickets:              matches,
		SecurityNote:         securityNote,
	}, nil
}

// UpdateStatus changes the ticket status and returns the stored result.
func (s *TicketService) UpdateStatus(ctx context.Context, id string, update domain.TicketStatusUpdate, source string) (*domain.Ticket, error) {
	status := domain.NormalizeStatus(update.Status)
	if !validStatuses[status] {
		return nil, util.NewValidationError("invalid ticket status", map[string]any{"status": update.Status})
	}
	update.Status = string(status)

	before, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.tickets.UpdateStatus(ctx, id, update) {
		if _, err := s.GetTicket(ctx, id); err != nil {
			return nil, err
		}
		return nil, util.NewInternalError(errors.New("ticket status update was not applied"))
	}

	after, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, id, source, events.TicketStatusChangedPayload{
		OldStatus:  before.Status,
		NewStatus:  after.Status,
		AssignedTo: update.AssignedTo,
		Resolution: update.Resolution,
	}))
	return after, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("ticket event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
