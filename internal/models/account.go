package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account by its banking product.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeOther      AccountType = "other"
)

// String returns the string representation of AccountType.
func (t AccountType) String() string {
	return string(t)
}

// IsValid checks if the account type is one of the known values.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeCreditCard,
		AccountTypeInvestment, AccountTypeLoan, AccountTypeOther:
		return true
	}
	return false
}

// NormalizeAccountType maps free-form statement wording onto an AccountType.
func NormalizeAccountType(s string) AccountType {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(normalized, "check"):
		return AccountTypeChecking
	case strings.Contains(normalized, "sav"):
		return AccountTypeSavings
	case strings.Contains(normalized, "credit"), strings.Contains(normalized, "card"):
		return AccountTypeCreditCard
	case strings.Contains(normalized, "invest"), strings.Contains(normalized, "broker"):
		return AccountTypeInvestment
	case strings.Contains(normalized, "loan"), strings.Contains(normalized, "mortgage"):
		return AccountTypeLoan
	case normalized == "":
		return AccountTypeOther
	default:
		return AccountTypeOther
	}
}

// Account represents a user's financial account.
type Account struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Name         string          `json:"name"`
	Type         AccountType     `json:"type"`
	Institution  string          `json:"institution"`
	LastFour     string          `json:"last_four,omitempty"`
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	LastSyncedAt *time.Time      `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate performs basic validation on the Account.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("account ID cannot be empty")
	}

	if strings.TrimSpace(a.UserID) == "" {
		return fmt.Errorf("account owner cannot be empty")
	}

	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("account name cannot be empty")
	}

	if !a.Type.IsValid() {
		return fmt.Errorf("invalid account type: %s", a.Type)
	}

	if a.LastFour != "" && len(a.LastFour) != 4 {
		return fmt.Errorf("last four must be exactly 4 characters, got %q", a.LastFour)
	}

	return nil
}

// String returns a string representation of the Account.
func (a *Account) String() string {
	return fmt.Sprintf("Account{ID: %s, Name: %s, Type: %s, Institution: %s, LastFour: %s}",
		a.ID, a.Name, a.Type, a.Institution, a.LastFour)
}
