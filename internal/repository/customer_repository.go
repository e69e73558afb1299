package repository

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/store"
)

const (
	fieldPhone = "personal_info.phone_number"
	fieldEmail = "personal_info.email"
	fieldTier  = "account_info.customer_tier"

	defaultSearchLimit = 10
)

// CustomerRepository reads customer profiles. Customers are provisioned upstream
// and never written here.
type CustomerRepository interface {
	GetByPhone(ctx context.Context, phone string) (domain.Customer, error)
	GetByID(ctx context.Context, id string) (domain.Customer, error)
	GetAccounts(ctx context.Context, id string) (*domain.CustomerAccounts, error)
	GetTransactions(ctx context.Context, id string, limit int) (*domain.CustomerTransactions, error)
	Search(ctx context.Context, filter domain.CustomerFilter, limit int) ([]domain.Customer, error)
}

type customerRepository struct {
	conn   Connection
	logger *zap.Logger
}

// NewCustomerRepository instantiates repository.
func NewCustomerRepository(conn Connection, logger *zap.Logger) CustomerRepository {
	return &customerRepository{conn: conn, logger: logger}
}

// GetByPhone returns the customer with the phone number, or nil. When several
// profiles share the number the lowest customer_id wins and a warning is logged.
func (r *customerRepository) GetByPhone(ctx context.Context, phone string) (customer domain.Customer, err error) {
	ctx, span := startSpan(ctx, "CustomerRepository.GetByPhone")
	defer func() { endSpan(span, err) }()

	session, err := r.conn.EnsureConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("query customer by phone: %w", err)
	}

	r.logger.Info("querying customer by phone", zap.String("phone_number", phone))
	docs, err := session.Find(ctx, store.Query{
		Collection: store.Customers,
		Filters:    []store.Filter{{Field: fieldPhone, Value: phone}},
		SortField:  domain.FieldCustomerID,
		Limit:      2,
	})
	if err != nil {
		r.logger.Error("error querying customer by phone", zap.String("phone_number", phone), zap.Error(err))
		return nil, fmt.Errorf("query customer by phone: %w", err)
	}
	if len(docs) == 0 {
		r.logger.Info("no customer found with phone", zap.String("phone_number", phone))
		return nil, nil
	}
	if len(docs) > 1 {
		r.logger.Warn("multiple customers share phone number; returning first",
			zap.String("phone_number", phone),
			zap.String("returned", domain.Customer(docs[0].Body).ID()),
			zap.String("ignored", domain.Customer(docs[1].Body).ID()),
		)
	}
	span.SetAttributes(attribute.String("crm.customer_id", domain.Customer(docs[0].Body).ID()))
	return domain.Customer(docs[0].Body), nil
}

// GetByID returns the customer stored under id, or nil.
func (r *customerRepository) GetByID(ctx context.Context, id string) (customer domain.Customer, err error) {
	ctx, span := startSpan(ctx, "CustomerRepository.GetByID")
	span.SetAttributes(attribute.String("crm.customer_id", id))
	defer func() { endSpan(span, err) }()

	session, err := r.conn.EnsureConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}

	r.logger.Info("retrieving customer by id", zap.String("customer_id", id))
	doc, err := session.Get(ctx, store.Customers, id)
	if store.IsNotFound(err) {
		r.logger.Info("customer not found", zap.String("customer_id", id))
		return nil, nil
	}
	if err != nil {
		r.logger.Error("error retrieving customer", zap.String("customer_id", id), zap.Error(err))
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}
	return domain.Customer(doc.Body), nil
}

func (r *customerRepository) GetAccounts(ctx context.Context, id string) (*domain.CustomerAccounts, error) {
	customer, err := r.GetByID(ctx, id)
	if err != nil || customer == nil {
		return nil, err
	}
	return &domain.CustomerAccounts{
		BankingAccounts: customer.List(domain.FieldBankingAccounts),
		CreditCards:     customer.List(domain.FieldCreditCards),
		Loans:           customer.List(domain.FieldLoans),
	}, nil
}

// GetTransactions returns the first limit stored transactions, which are kept
// newest first, and the total number stored.
func (r *customerRepository) GetTransactions(ctx context.Context, id string, limit int) (*domain.CustomerTransactions, error) {
	customer, err := r.GetByID(ctx, id)
	if err != nil || customer == nil {
		return nil, err
	}
	all := customer.List(domain.FieldRecentTransactions)
	n := min(max(limit, 0), len(all))
	return &domain.CustomerTransactions{
		Transactions:   all[:n],
		TotalAvailable: len(all),
	}, nil
}

// Search ANDs the recognized filter keys. An empty filter matches nothing rather
// than scanning the collection.
func (r *customerRepository) Search(ctx context.Context, filter domain.CustomerFilter, limit int) (customers []domain.Customer, err error) {
	if filter.IsEmpty() {
		return []domain.Customer{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	ctx, span := startSpan(ctx, "CustomerRepository.Search")
	defer func() { endSpan(span, err) }()

	var filters []store.Filter
	if filter.PhoneNumber != "" {
		filters = append(filters, store.Filter{Field: fieldPhone, Value: filter.PhoneNumber})
	}
	if filter.Email != "" {
		filters = append(filters, store.Filter{Field: fieldEmail, Value: filter.Email})
	}
	if filter.CustomerTier != "" {
		filters = append(filters, store.Filter{Field: fieldTier, Value: filter.CustomerTier})
	}

	session, err := r.conn.EnsureConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	docs, err := session.Find(ctx, store.Query{Collection: store.Customers, Filters: filters, Limit: limit})
	if err != nil {
		r.logger.Error("error searching customers", zap.Error(err))
		return nil, fmt.Errorf("search customers: %w", err)
	}

	customers = make([]domain.Customer, 0, len(docs))
	for _, doc := range docs {
		customers = append(customers, domain.Customer(doc.Body))
	}
	return customers, nil
}
