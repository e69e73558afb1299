package dto

import "github.com/spec-kit/bank-crm/internal/domain"

const defaultAdvancedSearchLimit = 10

// CustomerSearchRequest is the phone search body.
type CustomerSearchRequest struct {
	PhoneNumber           string `json:"phone_number" validate:"required"`
	IncludeTransactions   *bool  `json:"include_transactions"`
	IncludeSupportHistory bool   `json:"include_support_history"`
}

// Transactions reports include_transactions, which defaults to true.
func (r CustomerSearchRequest) Transactions() bool {
	return r.IncludeTransactions == nil || *r.IncludeTransactions
}

// CustomerSearchFilters is the advanced search body.
type CustomerSearchFilters struct {
	PhoneNumber  string `json:"phone_number"`
	Email        string `json:"email" validate:"omitempty,email"`
	CustomerTier string `json:"customer_tier"`
	Limit        *int   `json:"limit" validate:"omitempty,gte=1,lte=100"`
}

// Filter converts the body to a repository filter.
func (f CustomerSearchFilters) Filter() domain.CustomerFilter {
	return domain.CustomerFilter{
		PhoneNumber:  f.PhoneNumber,
		Email:        f.Email,
		CustomerTier: f.CustomerTier,
	}
}

// SearchLimit returns limit or its default of 10.
func (f CustomerSearchFilters) SearchLimit() int {
	if f.Limit == nil {
		return defaultAdvancedSearchLimit
	}
	return *f.Limit
}

// CustomerAccountsResponse wraps account rollups with their owner.
type CustomerAccountsResponse struct {
	CustomerID string `json:"customer_id"`
	domain.CustomerAccounts
}

// CustomerTransactionsResponse wraps a transaction slice with its owner.
type CustomerTransactionsResponse struct {
	CustomerID string `json:"customer_id"`
	domain.CustomerTransactions
}

// CustomerTransactionsQuery bounds the transaction slice.
type CustomerTransactionsQuery struct {
	Limit int `query:"limit" json:"limit" validate:"gte=0,lte=100"`
}
