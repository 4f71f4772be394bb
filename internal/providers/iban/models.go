// Package iban enriches bank account numbers with bank metadata through an
// ordered chain of validation services.
package iban

import "time"

// BankDetails is the bank metadata one validation service reported.
type BankDetails struct {
	BankName    string `json:"bank_name,omitempty"`
	BankCode    string `json:"bank_code,omitempty"`
	BranchCode  string `json:"branch_code,omitempty"`
	BIC         string `json:"bic,omitempty"`
	City        string `json:"bank_city,omitempty"`
	Country     string `json:"bank_country,omitempty"`
	CountryCode string `json:"bank_country_code,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// Empty reports whether no detail field is populated. A service can confirm
// an IBAN as valid while knowing nothing about the bank; such results do not
// satisfy the chain.
func (d BankDetails) Empty() bool {
	return d == BankDetails{}
}

// ValidationResult is one service's answer for one IBAN.
type ValidationResult struct {
	IBAN    string
	Valid   bool
	Details *BankDetails
	Source  string
}

// Enrichment is the chain's final answer for one account number.
type Enrichment struct {
	AccountNumber string       `json:"account_number"`
	FormattedIBAN string       `json:"formatted_iban,omitempty"`
	Validated     bool         `json:"validated"`
	Details       *BankDetails `json:"details,omitempty"`
	Source        string       `json:"enrichment_source,omitempty"`
	EnrichedAt    *time.Time   `json:"enriched_at,omitempty"`
	Available     bool         `json:"enrichment_available"`
	Reason        string       `json:"enrichment_error,omitempty"`
}
