package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Synthetic entry written by manual balance overrides.
const (
	AdjustmentCategory = "Adjustment"
	AdjustmentPurpose  = "Balance Adjustment"
)

type (
	TransactionType string

	// Transaction is an immutable ledger entry. The ID is assigned once at
	// creation and is the only key used for edits and deletes.
	Transaction struct {
		ID        string
		Amount    Money
		Type      TransactionType
		Purpose   string
		Category  string
		Timestamp time.Time
	}

	// Budget reserves part of the balance for a category. Timestamp is
	// server-assigned at creation and doubles as the spent-since cutoff.
	Budget struct {
		ID        string
		Category  string
		Amount    Money
		Purpose   string
		Timestamp time.Time
	}

	// UserDocument is the per-user aggregate held by the store. Balance is a
	// cached scalar: it is only ever written in the same atomic unit as the
	// transaction list.
	UserDocument struct {
		Name         string
		Email        string
		Balance      Money
		Transactions []Transaction
	}

	// Session identifies the acting user. It is passed explicitly into every
	// operation instead of being read from ambient state.
	Session struct {
		UID string
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrEmptyPurpose         = errors.New("empty purpose")
	ErrEmptyCategory        = errors.New("empty category")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidTimestamp     = errors.New("invalid timestamp")
	ErrEmptySession         = errors.New("empty session")
	ErrBudgetExceedsBalance = errors.New("budget amount exceeds balance")
)

func (s Session) Validate() error {
	if strings.TrimSpace(s.UID) == "" {
		return ErrEmptySession
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	}
	return ErrInvalidType
}

// Effect returns the signed contribution of the transaction to the balance
// in cents: +amount for income, -amount for expense.
func (t Transaction) Effect() int64 {
	if t.Type == Income {
		return t.Amount.Cents
	}
	return -t.Amount.Cents
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Purpose) == "" {
		return ErrEmptyPurpose
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if !ValidCategory(t.Category, t.Type) {
		return ErrInvalidCategory
	}
	if t.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if !ValidBudgetCategory(b.Category) {
		return ErrInvalidCategory
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(b.Purpose) == "" {
		return ErrEmptyPurpose
	}
	return nil
}

// ParseTimestamp normalizes the timestamp representations the store may hand
// back: RFC 3339 strings (the canonical wire form) or unix milliseconds from
// server-generated timestamp fields. Results are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, ErrInvalidTimestamp
}
