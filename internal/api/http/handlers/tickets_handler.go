package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bank-crm/internal/api/dto"
	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/events"
	"github.com/spec-kit/bank-crm/internal/repository"
	"github.com/spec-kit/bank-crm/internal/service"
	"github.com/spec-kit/bank-crm/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create POST /api/v1/tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), repository.NewTicket{
		PhoneNumber: req.PhoneNumber,
		Issue:       req.Issue,
		Priority:    req.Priority,
		Category:    req.Category,
	}, events.SourceAPI)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// Get GET /api/v1/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// Verify GET /api/v1/tickets/:id/verify.
func (h *TicketsHandler) Verify(c *fiber.Ctx) error {
	var q dto.TicketVerifyQuery
	if err := parseQuery(c, &q); err != nil {
		return err
	}
	ticket, err := h.service.VerifyTicket(c.UserContext(), c.Params("id"), q.LastFourDigits)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// Search GET /api/v1/tickets/search.
func (h *TicketsHandler) Search(c *fiber.Ctx) error {
	var q dto.TicketSearchQuery
	if err := parseQuery(c, &q); err != nil {
		return err
	}
	result, err := h.service.SearchByPartialID(c.UserContext(), q.PartialID, q.PhoneNumber)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// ListForCustomer GET /api/v1/customers/:phone/tickets.
func (h *TicketsHandler) ListForCustomer(c *fiber.Ctx) error {
	q := dto.CustomerTicketsQuery{Limit: 10}
	if err := parseQuery(c, &q); err != nil {
		return err
	}
	tickets, err := h.service.ListCustomerTickets(c.UserContext(), c.Params("phone"), q.Status, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(tickets)
}

// UpdateStatus PATCH /api/v1/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateTicketStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), domain.TicketStatusUpdate{
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
		Resolution: req.Resolution,
	}, events.SourceAPI)
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

func parseQuery(c *fiber.Ctx, out any) error {
	if err := c.QueryParser(out); err != nil {
		return util.NewValidationError("invalid query parameters", nil)
	}
	return dto.Validate(out)
}
