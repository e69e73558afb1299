package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/redact"
	"github.com/spec-kit/bank-crm/internal/repository"
	"github.com/spec-kit/bank-crm/pkg/util"
)

// CustomerService shapes customer records for clients. Every record it returns
// has been masked.
type CustomerService struct {
	customers repository.CustomerRepository
	logger    *zap.Logger
}

// NewCustomerService constructs the service.
func NewCustomerService(customers repository.CustomerRepository, logger *zap.Logger) *CustomerService {
	return &CustomerService{customers: customers, logger: logger}
}

// Lookup finds a customer by phone and applies the section filters before masking.
func (s *CustomerService) Lookup(ctx context.Context, phone string, opts redact.FilterOptions) (domain.Customer, error) {
	s.logger.Info("looking up customer by phone", zap.String("phone_number", phone))
	customer, err := s.customers.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, util.NewNotFound("Customer not found with the provided phone number", nil)
	}
	s.logger.Info("retrieved customer", zap.String("customer_id", customer.ID()))
	return redact.MaskSensitiveData(redact.FilterCustomerData(customer, opts)), nil
}

// Get returns the full masked record.
func (s *CustomerService) Get(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, util.NewNotFound("Customer not found with the provided ID", map[string]any{"customer_id": id})
	}
	return redact.MaskSensitiveData(customer), nil
}

// Search is the phone search; a miss yields an empty list rather than an error.
func (s *CustomerService) Search(ctx context.Context, phone string, includeTransactions, includeSupportHistory bool) ([]domain.Customer, error) {
	customer, err := s.customers.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return []domain.Customer{}, nil
	}
	opts := redact.FilterOptions{
		IncludeTransactions:   includeTransactions,
		IncludeSupportHistory: includeSupportHistory,
		IncludeAccountSummary: true,
	}
	return []domain.Customer{redact.MaskSensitiveData(redact.FilterCustomerData(customer, opts))}, nil
}

// AdvancedSearch ANDs the filter keys. No keys means no results.
func (s *CustomerService) AdvancedSearch(ctx context.Context, filter domain.CustomerFilter, limit int) ([]domain.Customer, error) {
	customers, err := s.customers.Search(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	for i := range customers {
		customers[i] = redact.MaskSensitiveData(customers[i])
	}
	return customers, nil
}

func (s *CustomerService) Accounts(ctx context.Context, id string) (*domain.CustomerAccounts, error) {
	accounts, err := s.customers.GetAccounts(ctx, id)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		return nil, util.NewNotFound("Customer not found", map[string]any{"customer_id": id})
	}
	masked := redact.MaskSensitiveData(domain.Customer{
		domain.FieldBankingAccounts: accounts.BankingAccounts,
		domain.FieldCreditCards:     accounts.CreditCards,
	})
	accounts.BankingAccounts = masked.List(domain.FieldBankingAccounts)
	accounts.CreditCards = masked.List(domain.FieldCreditCards)
	return accounts, nil
}

func (s *CustomerService) Transactions(ctx context.Context, id string, limit int) (*domain.CustomerTransactions, error) {
	txns, err := s.customers.GetTransactions(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		return nil, util.NewNotFound("Customer not found", map[string]any{"customer_id": id})
	}
	txns.Transactions = redact.MaskTransactions(txns.Transactions)
	return txns, nil
}

// Summary condenses the record; it carries no sensitive fields.
func (s *CustomerService) Summary(ctx context.Context, id string) (*domain.CustomerSummary, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, util.NewNotFound("Customer not found", map[string]any{"customer_id": id})
	}
	summary := customer.Summarize()
	return &summary, nil
}
