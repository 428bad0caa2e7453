// Package budget evaluates monthly spending against each user's budget and sends at most
// one alert per calendar month.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/money"
	"github.com/NgigiN/fintrack/internal/storage"
)

var (
	// AlertThreshold is the percentage of the budget at which an alert fires.
	AlertThreshold = decimal.NewFromInt(80)
	hundred        = decimal.NewFromInt(100)
)

type Status struct {
	AccountID       string          `json:"accountId"`
	Budget          *storage.Budget `json:"budget"`
	BudgetAmount    money.Money     `json:"budgetAmount"`
	CurrentExpenses money.Money     `json:"currentExpenses"`
	PercentageUsed  decimal.Decimal `json:"percentageUsed"`
}

type Service struct {
	db       *storage.Database
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(db *storage.Database, notifier Notifier, log zerolog.Logger) *Service {
	log = log.With().Str("component", "budget").Logger()
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	return &Service{db: db, notifier: notifier, log: log, now: time.Now}
}

// UpsertBudget sets the owner's monthly threshold, creating the budget on first use.
func (s *Service) UpsertBudget(ctx context.Context, ownerID string, amount money.Money) (*storage.Budget, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: budget amount must not be negative", domain.ErrInvalidInput)
	}

	budget := storage.Budget{UserID: ownerID, Amount: amount}
	err := s.db.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&budget).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save budget: %w", err)
	}

	s.log.Info().Str("user_id", ownerID).Stringer("amount", amount).Msg("budget updated")
	return storage.FindBudget(s.db.DB(ctx), ownerID)
}

func (s *Service) GetBudget(ctx context.Context, ownerID string) (*storage.Budget, error) {
	return storage.FindBudget(s.db.DB(ctx), ownerID)
}

// Evaluate sums the account's expenses in the current calendar month against the owner's
// budget. An owner without a budget gets a zero amount and zero percentage.
func (s *Service) Evaluate(ctx context.Context, ownerID, accountID string) (*Status, error) {
	tx := s.db.DB(ctx)
	if _, err := storage.FindAccount(tx, ownerID, accountID); err != nil {
		return nil, err
	}
	budget, err := storage.FindBudget(tx, ownerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return evaluate(tx, ownerID, accountID, budget, s.now())
}

func evaluate(tx *gorm.DB, ownerID, accountID string, budget *storage.Budget, now time.Time) (*Status, error) {
	start, end := domain.MonthBounds(now)
	expenses, err := sumExpenses(tx, ownerID, accountID, start, end)
	if err != nil {
		return nil, err
	}

	status := &Status{AccountID: accountID, Budget: budget, CurrentExpenses: expenses}
	if budget != nil {
		status.BudgetAmount = budget.Amount
	}
	status.PercentageUsed = PercentageUsed(expenses, status.BudgetAmount)
	return status, nil
}

// PercentageUsed is expenses/budget*100 clamped to [0, 100], or zero without a positive budget.
func PercentageUsed(expenses, budget money.Money) decimal.Decimal {
	if budget <= 0 {
		return decimal.Zero
	}
	pct := expenses.Decimal().Div(budget.Decimal()).Mul(hundred)
	switch {
	case pct.LessThan(decimal.Zero):
		pct = decimal.Zero
	case pct.GreaterThan(hundred):
		pct = hundred
	}
	return pct.Round(2)
}

// ShouldAlert applies the once-per-calendar-month debounce.
func ShouldAlert(percentageUsed decimal.Decimal, lastAlertSent *time.Time, now time.Time) bool {
	if percentageUsed.LessThan(AlertThreshold) {
		return false
	}
	return lastAlertSent == nil || !domain.SameMonth(*lastAlertSent, now)
}

func sumExpenses(tx *gorm.DB, ownerID, accountID string, start, end time.Time) (money.Money, error) {
	var total int64
	err := tx.Model(&storage.Transaction{}).
		Select("CAST(COALESCE(SUM(amount), 0) AS BIGINT)").
		Where("user_id = ? AND account_id = ? AND type = ?", ownerID, accountID, domain.Expense).
		Where("date >= ? AND date < ?", storage.Timestamp(start), storage.Timestamp(end)).
		Row().Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum expenses of account %s: %w", accountID, err)
	}
	return money.FromMinor(total), nil
}
