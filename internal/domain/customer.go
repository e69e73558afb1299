package domain

// Customer is a semi-structured customer profile as stored in the document store.
// Nested values follow JSON shapes: map[string]any for objects and []any for arrays.
type Customer map[string]any

// Well-known top-level customer keys.
const (
	FieldCustomerID         = "customer_id"
	FieldPersonalInfo       = "personal_info"
	FieldAccountInfo        = "account_info"
	FieldBankingAccounts    = "banking_accounts"
	FieldCreditCards        = "credit_cards"
	FieldLoans              = "loans"
	FieldRecentTransactions = "recent_transactions"
	FieldSupportHistory     = "support_history"
)

// ID returns customer_id or "" when absent.
func (c Customer) ID() string {
	return StringAt(c, FieldCustomerID)
}

// Section returns a nested object, or nil.
func (c Customer) Section(key string) map[string]any {
	m, _ := c[key].(map[string]any)
	return m
}

// List returns a nested array, never nil.
func (c Customer) List(key string) []any {
	if l, ok := c[key].([]any); ok {
		return l
	}
	return []any{}
}

// StringAt walks a path of object keys and returns the string found there.
func StringAt(m map[string]any, path ...string) string {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[key]
	}
	s, _ := cur.(string)
	return s
}

// CustomerAccounts is the account rollup of a customer.
type CustomerAccounts struct {
	BankingAccounts []any `json:"banking_accounts"`
	CreditCards     []any `json:"credit_cards"`
	Loans           []any `json:"loans"`
}

// CustomerTransactions is a slice of the stored transaction history.
type CustomerTransactions struct {
	Transactions   []any `json:"transactions"`
	TotalAvailable int   `json:"total_available"`
}

// CustomerSummary is a condensed view of a customer.
type CustomerSummary struct {
	CustomerID    string `json:"customer_id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	CustomerTier  string `json:"customer_tier"`
	Status        string `json:"status"`
	TotalAccounts int    `json:"total_accounts"`
	TotalCards    int    `json:"total_cards"`
	TotalLoans    int    `json:"total_loans"`
	LastLogin     string `json:"last_login"`
}

// Summarize builds the condensed view.
func (c Customer) Summarize() CustomerSummary {
	return CustomerSummary{
		CustomerID:    c.ID(),
		Name:          StringAt(c, FieldPersonalInfo, "full_name"),
		Phone:         StringAt(c, FieldPersonalInfo, "phone_number"),
		Email:         StringAt(c, FieldPersonalInfo, "email"),
		CustomerTier:  StringAt(c, FieldAccountInfo, "customer_tier"),
		Status:        StringAt(c, FieldAccountInfo, "status"),
		TotalAccounts: len(c.List(FieldBankingAccounts)),
		TotalCards:    len(c.List(FieldCreditCards)),
		TotalLoans:    len(c.List(FieldLoans)),
		LastLogin:     StringAt(c, FieldAccountInfo, "last_login"),
	}
}

// CustomerFilter lists the recognized advanced-search keys. Empty values are ignored.
type CustomerFilter struct {
	PhoneNumber  string
	Email        string
	CustomerTier string
}

// IsEmpty reports whether no recognized key is set.
func (f CustomerFilter) IsEmpty() bool {
	return f.PhoneNumber == "" && f.Email == "" && f.CustomerTier == ""
}
