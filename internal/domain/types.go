package domain

import (
	"fmt"
	"strings"
)

type TransactionType string

const (
	Expense TransactionType = "EXPENSE"
	Income  TransactionType = "INCOME"
)

func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case Expense, Income:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown transaction type %q", ErrInvalidInput, s)
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

func (t *TransactionType) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type RecurringInterval string

const (
	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"
)

func ParseRecurringInterval(s string) (RecurringInterval, error) {
	switch i := RecurringInterval(strings.ToUpper(strings.TrimSpace(s))); i {
	case Daily, Weekly, Monthly, Yearly:
		return i, nil
	}
	return "", fmt.Errorf("%w: unknown recurring interval %q", ErrInvalidInput, s)
}

func (i RecurringInterval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (i *RecurringInterval) UnmarshalText(text []byte) error {
	parsed, err := ParseRecurringInterval(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// TransactionStatus gates recurrence: only COMPLETED templates are materialized.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusCompleted, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown transaction status %q", ErrInvalidInput, s)
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s *TransactionStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type AccountType string

const (
	Current AccountType = "CURRENT"
	Savings AccountType = "SAVINGS"
)

func ParseAccountType(s string) (AccountType, error) {
	switch a := AccountType(strings.ToUpper(strings.TrimSpace(s))); a {
	case Current, Savings:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown account type %q", ErrInvalidInput, s)
}

func (a AccountType) Valid() bool {
	return a == Current || a == Savings
}

func (a *AccountType) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountType(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
