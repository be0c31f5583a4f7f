package models

import (
	"fmt"
	"time"
)

// StatementMetadata is the account-level information extracted from an
// uploaded statement. Derived once by the parser, immutable afterward.
type StatementMetadata struct {
	Institution string      `json:"institution,omitempty"`
	AccountType AccountType `json:"account_type,omitempty"`
	LastFour    string      `json:"last_four,omitempty"`
	Currency    string      `json:"currency,omitempty"`
	PeriodStart *time.Time  `json:"period_start,omitempty"`
	PeriodEnd   *time.Time  `json:"period_end,omitempty"`
}

// String returns a string representation of the StatementMetadata.
func (m *StatementMetadata) String() string {
	return fmt.Sprintf("StatementMetadata{Institution: %s, Type: %s, LastFour: %s, Currency: %s}",
		m.Institution, m.AccountType, m.LastFour, m.Currency)
}

// AccountMatch is the account matcher's decision for one statement.
type AccountMatch struct {
	SuggestedAccountID   string  `json:"suggested_account_id,omitempty"`
	Confidence           float64 `json:"confidence"`
	Reasoning            string  `json:"reasoning"`
	ShouldCreateNew      bool    `json:"should_create_new"`
	SuggestedAccountName string  `json:"suggested_account_name,omitempty"`
}

// String returns a string representation of the AccountMatch.
func (m *AccountMatch) String() string {
	if m.ShouldCreateNew {
		return fmt.Sprintf("AccountMatch{CreateNew: %s, Confidence: %.2f}",
			m.SuggestedAccountName, m.Confidence)
	}
	return fmt.Sprintf("AccountMatch{Account: %s, Confidence: %.2f}",
		m.SuggestedAccountID, m.Confidence)
}
