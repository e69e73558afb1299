package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bank-crm/internal/api/dto"
	"github.com/spec-kit/bank-crm/internal/redact"
	"github.com/spec-kit/bank-crm/internal/service"
	"github.com/spec-kit/bank-crm/pkg/util"
)

// CustomersHandler serves customer lookups. Every record is masked by the service.
type CustomersHandler struct {
	service *service.CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customerService *service.CustomerService) *CustomersHandler {
	return &CustomersHandler{service: customerService}
}

// Lookup GET /api/v1/customers/lookup.
func (h *CustomersHandler) Lookup(c *fiber.Ctx) error {
	phone := c.Query("phone_number")
	if phone == "" {
		return util.NewValidationError("request validation failed", map[string]any{"phone_number": "is required"})
	}
	opts := redact.FilterOptions{
		IncludeAccountSummary: c.QueryBool("include_account_summary", true),
		IncludeTransactions:   c.QueryBool("include_transactions", true),
		IncludeSupportHistory: c.QueryBool("include_support_history", false),
	}
	customer, err := h.service.Lookup(c.UserContext(), phone, opts)
	if err != nil {
		return err
	}
	return c.JSON(customer)
}

// Get GET /api/v1/customers/:id.
func (h *CustomersHandler) Get(c *fiber.Ctx) error {
	customer, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(customer)
}

// Search POST /api/v1/customers/search.
func (h *CustomersHandler) Search(c *fiber.Ctx) error {
	var req dto.CustomerSearchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	customers, err := h.service.Search(c.UserContext(), req.PhoneNumber, req.Transactions(), req.IncludeSupportHistory)
	if err != nil {
		return err
	}
	return c.JSON(customers)
}

// AdvancedSearch POST /api/v1/customers/advanced-search.
func (h *CustomersHandler) AdvancedSearch(c *fiber.Ctx) error {
	var req dto.CustomerSearchFilters
	if err := parseBody(c, &req); err != nil {
		return err
	}
	customers, err := h.service.AdvancedSearch(c.UserContext(), req.Filter(), req.SearchLimit())
	if err != nil {
		return err
	}
	return c.JSON(customers)
}

// Accounts GET /api/v1/customers/:id/accounts.
func (h *CustomersHandler) Accounts(c *fiber.Ctx) error {
	id := c.Params("id")
	accounts, err := h.service.Accounts(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.CustomerAccountsResponse{CustomerID: id, CustomerAccounts: *accounts})
}

// Transactions GET /api/v1/customers/:id/transactions.
func (h *CustomersHandler) Transactions(c *fiber.Ctx) error {
	q := dto.CustomerTransactionsQuery{Limit: c.QueryInt("limit", 10)}
	if err := dto.Validate(q); err != nil {
		return err
	}
	id := c.Params("id")
	txns, err := h.service.Transactions(c.UserContext(), id, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(dto.CustomerTransactionsResponse{CustomerID: id, CustomerTransactions: *txns})
}

// Summary GET /api/v1/customers/:id/summary.
func (h *CustomersHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return util.NewValidationError("invalid request body", nil)
	}
	return dto.Validate(out)
}
