package core

import (
	"errors"
	"strings"
	"time"
)

// Sentinel filter values sent by the UI selects. They mean "no constraint".
const (
	AllCategories   = "All Categories"
	AllAccounts     = "All Accounts"
	AllTransactions = "All Transactions"
)

// Reserved values excluded from specific aggregates.
const (
	TransfersCategory = "Transfers"
	UnknownCategory   = "Unknown"
)

// DateLayout is the storage format of transaction dates.
const DateLayout = "2006-01-02"

// NeedsWants is the budgeting tag attached to every transaction.
type NeedsWants string

const (
	Needs   NeedsWants = "Needs"
	Wants   NeedsWants = "Wants"
	Savings NeedsWants = "Savings"
	Unknown NeedsWants = "Unknown"
	Exempt  NeedsWants = "Exempt"
)

// IsValid reports whether the tag is one of the fixed set.
func (n NeedsWants) IsValid() bool {
	switch n {
	case Needs, Wants, Savings, Unknown, Exempt:
		return true
	default:
		return false
	}
}

type (
	Transaction struct {
		ID          int64      `json:"id"`
		Date        string     `json:"transaction_date"`
		Description string     `json:"description"`
		Amount      Money      `json:"amount"`
		Category    string     `json:"category"`
		Account     string     `json:"account_name"`
		NeedsWants  NeedsWants `json:"needs_wants_savings"`
		Fingerprint string     `json:"-"`
		Split       string     `json:"split,omitempty"`
	}
)

var (
	ErrInvalidDate       = errors.New("invalid transaction date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyAccount      = errors.New("empty account name")
	ErrInvalidNeedsWants = errors.New("invalid needs/wants/savings tag")
)

// IsDebit reports whether the transaction takes money out of the account.
func (t Transaction) IsDebit() bool {
	return t.Amount.Cents < 0
}

func (t Transaction) Validate() error {
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(t.Account) == "" {
		return ErrEmptyAccount
	}
	if t.NeedsWants != "" && !t.NeedsWants.IsValid() {
		return ErrInvalidNeedsWants
	}
	return nil
}
