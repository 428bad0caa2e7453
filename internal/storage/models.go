package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/money"
)

// User is the identity resolved by the external auth layer.
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Email     string    `gorm:"size:255" json:"email"`
	Name      string    `gorm:"size:255" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Account balances change only through ledger.ApplyDelta.
type Account struct {
	ID        string             `gorm:"primaryKey;size:36" json:"id"`
	UserID    string             `gorm:"size:64;not null;index" json:"userId"`
	Name      string             `gorm:"size:255;not null" json:"name"`
	Type      domain.AccountType `gorm:"size:16;not null" json:"type"`
	Balance   money.Money        `gorm:"not null" json:"balance"`
	IsDefault bool               `gorm:"not null;index" json:"isDefault"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Transaction amounts are non-negative magnitudes; the sign comes from Type.
type Transaction struct {
	ID                string                    `gorm:"primaryKey;size:36" json:"id"`
	UserID            string                    `gorm:"size:64;not null;index" json:"userId"`
	AccountID         string                    `gorm:"size:36;not null;index" json:"accountId"`
	Type              domain.TransactionType    `gorm:"size:16;not null" json:"type"`
	Amount            money.Money               `gorm:"not null" json:"amount"`
	Description       string                    `gorm:"size:512" json:"description"`
	Category          string                    `gorm:"size:64;not null" json:"category"`
	Date              time.Time                 `gorm:"not null;index" json:"date"`
	IsRecurring       bool                      `gorm:"not null;index" json:"isRecurring"`
	RecurringInterval *domain.RecurringInterval `gorm:"size:16" json:"recurringInterval"`
	NextRecurringDate *time.Time                `gorm:"index" json:"nextRecurringDate"`
	LastProcessed     *time.Time                `json:"lastProcessed"`
	Status            domain.TransactionStatus  `gorm:"size:16;not null" json:"status"`
	CreatedAt         time.Time                 `json:"createdAt"`
	UpdatedAt         time.Time                 `json:"updatedAt"`
}

// Budget is one monthly threshold per user.
type Budget struct {
	ID            string      `gorm:"primaryKey;size:36" json:"id"`
	UserID        string      `gorm:"size:64;not null;uniqueIndex" json:"userId"`
	Amount        money.Money `gorm:"not null" json:"amount"`
	LastAlertSent *time.Time  `json:"lastAlertSent"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.StatusCompleted
	}
	t.Date = Timestamp(t.Date)
	t.NextRecurringDate = TimestampPtr(t.NextRecurringDate)
	t.LastProcessed = TimestampPtr(t.LastProcessed)
	return nil
}

func (b *Budget) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Timestamp normalizes times before they are written or compared in queries: UTC so that
// sqlite's text ordering matches time ordering, microseconds to match postgres precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func TimestampPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}
