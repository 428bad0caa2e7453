// Package recurrence materializes due recurring transactions exactly once per cycle.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/ledger"
	"github.com/NgigiN/fintrack/internal/ratelimit"
	"github.com/NgigiN/fintrack/internal/storage"
)

// DescriptionMarker is appended to the description of every materialized child.
const DescriptionMarker = " (Recurring)"

// ErrNotDue means the template has no occurrence due yet, usually because another run
// already advanced it past now.
var ErrNotDue = fmt.Errorf("recurring transaction is not due: %w", domain.ErrConflict)

type Engine struct {
	db      *storage.Database
	limiter ratelimit.Limiter
	log     zerolog.Logger
	now     func() time.Time
}

func NewEngine(db *storage.Database, limiter ratelimit.Limiter, log zerolog.Logger) *Engine {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Engine{
		db:      db,
		limiter: limiter,
		log:     log.With().Str("component", "recurrence").Logger(),
		now:     time.Now,
	}
}

type ScanResult struct {
	Found     int `json:"found"`
	Processed int `json:"processed"`
	// Deferred items hit the owner's rate limit and stay due for the next scan.
	Deferred int `json:"deferred"`
	// Skipped items were no longer due when their unit of work ran.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// IsDue reports whether a recurring template should fire at now: it never fired, or its
// next occurrence has arrived.
func IsDue(t *storage.Transaction, now time.Time) bool {
	if !t.IsRecurring || t.RecurringInterval == nil || t.Status != domain.StatusCompleted {
		return false
	}
	if t.LastProcessed == nil {
		return true
	}
	return t.NextRecurringDate != nil && !t.NextRecurringDate.After(now)
}

// FindDue returns the recurring templates that are due at now.
func (e *Engine) FindDue(ctx context.Context, now time.Time) ([]storage.Transaction, error) {
	var due []storage.Transaction
	err := e.db.DB(ctx).
		Where("is_recurring = ? AND status = ? AND recurring_interval IS NOT NULL", true, domain.StatusCompleted).
		Where("(last_processed IS NULL OR next_recurring_date <= ?)", storage.Timestamp(now)).
		Order("next_recurring_date asc").
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find due recurring transactions: %w", err)
	}
	return due, nil
}

// Scan processes every due template. Failures are isolated per item.
func (e *Engine) Scan(ctx context.Context) (*ScanResult, error) {
	now := e.now()
	due, err := e.FindDue(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Found: len(due)}
	for i := range due {
		template := &due[i]
		_, err := e.process(ctx, template.UserID, template.ID, now)
		switch {
		case err == nil:
			result.Processed++
		case errors.Is(err, domain.ErrRateLimited):
			result.Deferred++
			e.log.Warn().Str("transaction_id", template.ID).Str("user_id", template.UserID).Msg("recurring transaction deferred")
		case errors.Is(err, domain.ErrConflict):
			result.Skipped++
		default:
			result.Failed++
			e.log.Error().Err(err).Str("transaction_id", template.ID).Str("user_id", template.UserID).Msg("failed to process recurring transaction")
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	e.log.Info().
		Int("found", result.Found).
		Int("processed", result.Processed).
		Int("deferred", result.Deferred).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("recurring scan finished")
	return result, nil
}

// Process materializes one occurrence of the owner's recurring template if it is due.
func (e *Engine) Process(ctx context.Context, ownerID, transactionID string) (*storage.Transaction, error) {
	return e.process(ctx, ownerID, transactionID, e.now())
}

func (e *Engine) process(ctx context.Context, ownerID, transactionID string, now time.Time) (*storage.Transaction, error) {
	now = storage.Timestamp(now)

	// Only due templates spend a token; the unit of work below checks again.
	template, err := storage.FindTransaction(e.db.DB(ctx), ownerID, transactionID)
	if err != nil {
		return nil, err
	}
	if !IsDue(template, now) {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, ErrNotDue)
	}

	allowed, err := e.limiter.Allow(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternal, err)
	}
	if !allowed {
		return nil, fmt.Errorf("user %s: %w", ownerID, domain.ErrRateLimited)
	}

	var child *storage.Transaction
	err = e.db.UnitOfWork(ctx, func(tx *gorm.DB) error {
		current, err := storage.FindTransaction(tx, ownerID, transactionID)
		if err != nil {
			return err
		}
		if !IsDue(current, now) {
			return fmt.Errorf("transaction %s: %w", transactionID, ErrNotDue)
		}

		if err := advance(tx, current, now); err != nil {
			return err
		}

		child = &storage.Transaction{
			UserID:      current.UserID,
			AccountID:   current.AccountID,
			Type:        current.Type,
			Amount:      current.Amount,
			Description: current.Description + DescriptionMarker,
			Category:    current.Category,
			Date:        now,
			Status:      domain.StatusCompleted,
		}
		if err := tx.Create(child).Error; err != nil {
			return fmt.Errorf("failed to save recurring occurrence: %w", err)
		}
		return ledger.ApplyDelta(tx, child.AccountID, domain.SignedEffect(child.Type, child.Amount))
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("user_id", ownerID).
		Str("transaction_id", transactionID).
		Str("child_id", child.ID).
		Msg("recurring transaction processed")
	return child, nil
}

// advance moves the template to its next cycle. The update is a compare-and-set on the
// schedule fields read in this unit of work, so of two runs racing on the same cycle only
// one can insert a child.
func advance(tx *gorm.DB, template *storage.Transaction, now time.Time) error {
	base := template.Date
	if template.NextRecurringDate != nil {
		base = *template.NextRecurringDate
	}
	next := storage.Timestamp(template.RecurringInterval.Next(base))

	query := tx.Model(&storage.Transaction{}).Where("id = ? AND is_recurring = ?", template.ID, true)
	if template.NextRecurringDate == nil {
		query = query.Where("next_recurring_date IS NULL")
	} else {
		query = query.Where("next_recurring_date = ?", *template.NextRecurringDate)
	}
	if template.LastProcessed == nil {
		query = query.Where("last_processed IS NULL")
	} else {
		query = query.Where("last_processed = ?", *template.LastProcessed)
	}

	res := query.Updates(map[string]interface{}{
		"next_recurring_date": next,
		"last_processed":      now,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to advance recurring transaction: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("transaction %s: %w", template.ID, domain.ErrConflict)
	}
	return nil
}
