package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RawTransaction is a single statement row as extracted by the parser.
// It exists only within a job's scope until persisted. Negative amounts
// are debits by convention.
type RawTransaction struct {
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant,omitempty"`
}

// Validate performs basic validation on a RawTransaction.
func (r *RawTransaction) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("transaction description cannot be empty")
	}

	return nil
}

// String returns a string representation of the RawTransaction.
func (r *RawTransaction) String() string {
	return fmt.Sprintf("RawTransaction{Date: %s, Amount: %s, Description: %s}",
		r.Date.Format("2006-01-02"), r.Amount.String(), r.Description)
}

// Transaction is a persisted transaction on an account.
type Transaction struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"account_id"`
	UserID           string          `json:"user_id"`
	Date             time.Time       `json:"date"`
	PostDate         *time.Time      `json:"post_date,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Description      string          `json:"description"`
	Merchant         string          `json:"merchant,omitempty"`
	Category         string          `json:"category,omitempty"`
	Subcategory      string          `json:"subcategory,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	IsRecurring      bool            `json:"is_recurring"`
	RecurringGroupID string          `json:"recurring_group_id,omitempty"`
	ConfidenceScore  float64         `json:"confidence_score,omitempty"`
	AICategorized    bool            `json:"ai_categorized"`
	UserVerified     bool            `json:"user_verified"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Validate performs basic validation on the Transaction.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}

	if strings.TrimSpace(t.AccountID) == "" {
		return fmt.Errorf("transaction account cannot be empty")
	}

	if strings.TrimSpace(t.UserID) == "" {
		return fmt.Errorf("transaction owner cannot be empty")
	}

	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	return nil
}

// IsCategorized reports whether the transaction has been assigned a category.
func (t *Transaction) IsCategorized() bool {
	return strings.TrimSpace(t.Category) != ""
}

// IsDebit reports whether the transaction is a debit (money out).
func (t *Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// String returns a string representation of the Transaction.
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Account: %s, Date: %s, Amount: %s, Description: %s}",
		t.ID, t.AccountID, t.Date.Format("2006-01-02"), t.Amount.String(), t.Description)
}

// FromRaw builds a persisted Transaction from a parsed statement row.
func FromRaw(raw RawTransaction, accountID, userID, id string, now time.Time) *Transaction {
	currency := raw.Currency
	if currency == "" {
		currency = "USD"
	}

	return &Transaction{
		ID:          id,
		AccountID:   accountID,
		UserID:      userID,
		Date:        raw.Date,
		Amount:      raw.Amount,
		Currency:    currency,
		Description: strings.TrimSpace(raw.Description),
		Merchant:    raw.Merchant,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
