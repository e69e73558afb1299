// Package redact masks and trims sensitive fields of customer records before
// they leave the service.
//
// Both transforms copy only the top-level map. Nested objects and arrays are
// modified in place, so callers must treat the input record as consumed.
package redact

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"

	"github.com/spec-kit/bank-crm/internal/domain"
)

const (
	ssnMask    = "***"
	numberMask = "****"
	keepDigits = 4
)

// FilterOptions selects which optional sections survive FilterCustomerData.
type FilterOptions struct {
	IncludeTransactions   bool
	IncludeSupportHistory bool
	IncludeAccountSummary bool
}

// DefaultFilterOptions matches the lookup endpoint defaults.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		IncludeTransactions:   true,
		IncludeSupportHistory: false,
		IncludeAccountSummary: true,
	}
}

// MaskSensitiveData redacts the SSN tail, bank account numbers and card numbers.
// A nil record is returned unchanged. Masking an already masked record is a no-op.
func MaskSensitiveData(record domain.Customer) domain.Customer {
	if record == nil {
		return nil
	}
	masked := maps.Clone(record)

	if info, ok := masked[domain.FieldPersonalInfo].(map[string]any); ok {
		if ssn, ok := info["ssn_last_4"]; ok && ssn != nil {
			info["ssn_last_4"] = maskSSN(ssn)
		}
	}

	maskEntries(masked[domain.FieldBankingAccounts], "account_number")
	maskEntries(masked[domain.FieldCreditCards], "card_number")

	return masked
}

// FilterCustomerData drops optional sections according to opts. When the account
// summary is excluded, balances are stripped from every banking account.
func FilterCustomerData(record domain.Customer, opts FilterOptions) domain.Customer {
	if record == nil {
		return nil
	}
	filtered := maps.Clone(record)

	if !opts.IncludeTransactions {
		delete(filtered, domain.FieldRecentTransactions)
	}
	if !opts.IncludeSupportHistory {
		delete(filtered, domain.FieldSupportHistory)
	}
	if !opts.IncludeAccountSummary {
		if accounts, ok := filtered[domain.FieldBankingAccounts].([]any); ok {
			for _, entry := range accounts {
				if account, ok := entry.(map[string]any); ok {
					delete(account, "balance")
				}
			}
		}
	}

	return filtered
}

// MaskNumber keeps the last four characters behind a fixed mask. Values shorter
// than four characters are returned unchanged.
func MaskNumber(number string) string {
	chars := []rune(number)
	if len(chars) < keepDigits || number == numberMask {
		return number
	}
	return numberMask + string(chars[len(chars)-keepDigits:])
}

// maskSSN accepts the stored value in any scalar form. Values that are already
// masked are returned as they are.
func maskSSN(v any) string {
	ssn, ok := digits(v)
	if !ok || ssn == numberMask {
		return numberMask
	}
	chars := []rune(ssn)
	if len(chars) < keepDigits {
		return numberMask
	}
	if strings.HasPrefix(ssn, ssnMask) && len(chars) == len(ssnMask)+keepDigits {
		return ssn
	}
	return ssnMask + string(chars[len(chars)-keepDigits:])
}

// digits renders numeric identifiers decoded from JSON or BSON as their decimal
// string. ok is false for values that are neither strings nor numbers.
func digits(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, true
	case json.Number:
		return n.String(), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case int:
		return strconv.Itoa(n), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	}
	return "", false
}

func maskEntries(list any, field string) {
	entries, ok := list.([]any)
	if !ok {
		return
	}
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		value, present := obj[field]
		if !present || value == nil {
			continue
		}
		// Anything that is not a readable number is replaced outright.
		if number, ok := digits(value); ok {
			obj[field] = MaskNumber(number)
		} else {
			obj[field] = numberMask
		}
	}
}

// MaskTransactions masks account and card numbers referenced by transaction
// entries. Entries are modified in place.
func MaskTransactions(transactions []any) []any {
	maskEntries(transactions, "account_number")
	maskEntries(transactions, "card_number")
	return transactions
}
