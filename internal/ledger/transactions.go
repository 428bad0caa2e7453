package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/money"
	"github.com/NgigiN/fintrack/internal/storage"
)

// TransactionInput is the full payload for create and the full replacement for edit.
type TransactionInput struct {
	AccountID         string                    `json:"accountId"`
	Type              domain.TransactionType    `json:"type"`
	Amount            money.Money               `json:"amount"`
	Description       string                    `json:"description"`
	Category          string                    `json:"category"`
	Date              time.Time                 `json:"date"`
	IsRecurring       bool                      `json:"isRecurring"`
	RecurringInterval *domain.RecurringInterval `json:"recurringInterval"`
	// Status is optional: new transactions default to COMPLETED, edits keep the old one.
	Status domain.TransactionStatus `json:"status"`
}

func (in *TransactionInput) validate() error {
	in.AccountID = strings.TrimSpace(in.AccountID)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Description = strings.TrimSpace(in.Description)

	switch {
	case in.AccountID == "":
		return fmt.Errorf("%w: account id is required", domain.ErrInvalidInput)
	case !in.Type.Valid():
		return fmt.Errorf("%w: unknown transaction type %q", domain.ErrInvalidInput, in.Type)
	case in.Amount.IsNegative():
		return fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidInput)
	case in.Date.IsZero():
		return fmt.Errorf("%w: date is required", domain.ErrInvalidInput)
	case in.Category == "":
		return fmt.Errorf("%w: category is required", domain.ErrInvalidInput)
	case in.Status != "" && !in.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, in.Status)
	}

	if !in.IsRecurring {
		in.RecurringInterval = nil
		return nil
	}
	if in.RecurringInterval == nil {
		return fmt.Errorf("%w: recurring transactions need an interval", domain.ErrInvalidInput)
	}
	if !in.RecurringInterval.Valid() {
		return fmt.Errorf("%w: unknown recurring interval %q", domain.ErrInvalidInput, *in.RecurringInterval)
	}
	return nil
}

// nextRecurringDate keeps interval and next date in lockstep with IsRecurring.
func (in *TransactionInput) nextRecurringDate() *time.Time {
	if !in.IsRecurring || in.RecurringInterval == nil {
		return nil
	}
	next := storage.Timestamp(in.RecurringInterval.Next(in.Date))
	return &next
}

// CreateTransaction records a transaction and applies its signed effect to the account in
// one unit of work.
func (s *Service) CreateTransaction(ctx context.Context, ownerID string, in TransactionInput) (*storage.Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	txn := storage.Transaction{
		UserID:            ownerID,
		AccountID:         in.AccountID,
		Type:              in.Type,
		Amount:            in.Amount,
		Description:       in.Description,
		Category:          in.Category,
		Date:              in.Date,
		IsRecurring:       in.IsRecurring,
		RecurringInterval: in.RecurringInterval,
		NextRecurringDate: in.nextRecurringDate(),
		Status:            in.Status,
	}
	err := s.db.UnitOfWork(ctx, func(tx *gorm.DB) error {
		if _, err := storage.FindAccount(tx, ownerID, in.AccountID); err != nil {
			return err
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}
		return ApplyDelta(tx, txn.AccountID, domain.SignedEffect(txn.Type, txn.Amount))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", ownerID).
		Str("transaction_id", txn.ID).
		Str("account_id", txn.AccountID).
		Stringer("effect", domain.SignedEffect(txn.Type, txn.Amount)).
		Msg("transaction created")
	return &txn, nil
}

// UpdateTransaction replaces a transaction and moves its balance effect. When the account
// is unchanged the net difference is applied once; on reassignment the old effect is
// reversed on the old account and the new effect applied on the new one.
func (s *Service) UpdateTransaction(ctx context.Context, ownerID, transactionID string, in TransactionInput) (*storage.Transaction, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var updated *storage.Transaction
	err := s.db.UnitOfWork(ctx, func(tx *gorm.DB) error {
		original, err := storage.FindTransaction(tx, ownerID, transactionID)
		if err != nil {
			return err
		}
		if _, err := storage.FindAccount(tx, ownerID, in.AccountID); err != nil {
			return err
		}

		values := map[string]interface{}{
			"account_id":          in.AccountID,
			"type":                in.Type,
			"amount":              in.Amount,
			"description":         in.Description,
			"category":            in.Category,
			"date":                storage.Timestamp(in.Date),
			"is_recurring":        in.IsRecurring,
			"recurring_interval":  nil,
			"next_recurring_date": nil,
		}
		if in.RecurringInterval != nil {
			values["recurring_interval"] = *in.RecurringInterval
			values["next_recurring_date"] = *in.nextRecurringDate()
		}
		if in.Status != "" {
			values["status"] = in.Status
		}

		// Guarded on the fields that determine the balance effect, so an edit racing
		// another edit or a delete cannot apply a delta computed from stale values.
		res := tx.Model(&storage.Transaction{}).
			Where("id = ? AND user_id = ? AND account_id = ? AND type = ? AND amount = ?",
				original.ID, ownerID, original.AccountID, original.Type, original.Amount).
			Updates(values)
		if res.Error != nil {
			return fmt.Errorf("failed to update transaction: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("transaction %s: %w", transactionID, domain.ErrConflict)
		}

		oldEffect := domain.SignedEffect(original.Type, original.Amount)
		newEffect := domain.SignedEffect(in.Type, in.Amount)
		if original.AccountID == in.AccountID {
			if err := ApplyDelta(tx, in.AccountID, newEffect-oldEffect); err != nil {
				return err
			}
		} else {
			if err := ApplyDelta(tx, original.AccountID, oldEffect.Neg()); err != nil {
				return err
			}
			if err := ApplyDelta(tx, in.AccountID, newEffect); err != nil {
				return err
			}
		}

		updated, err = storage.FindTransaction(tx, ownerID, transactionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", ownerID).
		Str("transaction_id", transactionID).
		Str("account_id", updated.AccountID).
		Msg("transaction updated")
	return updated, nil
}

type BulkDeleteResult struct {
	Deleted int `json:"deleted"`
	// BalanceChanges holds the single aggregated reversal applied per account.
	BalanceChanges map[string]money.Money `json:"balanceChanges"`
}

// BulkDeleteTransactions removes the given transactions and reverses their effects with
// one increment per account. Every id must exist and belong to the owner; otherwise
// nothing is deleted.
func (s *Service) BulkDeleteTransactions(ctx context.Context, ownerID string, transactionIDs []string) (*BulkDeleteResult, error) {
	ids := uniqueIDs(transactionIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no transaction ids given", domain.ErrInvalidInput)
	}

	result := &BulkDeleteResult{BalanceChanges: make(map[string]money.Money)}
	err := s.db.UnitOfWork(ctx, func(tx *gorm.DB) error {
		var rows []storage.Transaction
		if err := tx.Where("id IN ? AND user_id = ?", ids, ownerID).Find(&rows).Error; err != nil {
			return fmt.Errorf("failed to load transactions: %w", err)
		}
		if len(rows) != len(ids) {
			return fmt.Errorf("%d of %d transactions: %w", len(ids)-len(rows), len(ids), domain.ErrNotFound)
		}

		for _, row := range rows {
			result.BalanceChanges[row.AccountID] += domain.ReversalEffect(row.Type, row.Amount)
		}

		res := tx.Where("id IN ? AND user_id = ?", ids, ownerID).Delete(&storage.Transaction{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete transactions: %w", res.Error)
		}
		if res.RowsAffected != int64(len(rows)) {
			return fmt.Errorf("deleted %d of %d transactions: %w", res.RowsAffected, len(rows), domain.ErrConflict)
		}

		accountIDs := make([]string, 0, len(result.BalanceChanges))
		for accountID := range result.BalanceChanges {
			accountIDs = append(accountIDs, accountID)
		}
		sort.Strings(accountIDs)
		for _, accountID := range accountIDs {
			if err := ApplyDelta(tx, accountID, result.BalanceChanges[accountID]); err != nil {
				return err
			}
		}
		result.Deleted = len(rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", ownerID).
		Int("deleted", result.Deleted).
		Int("accounts", len(result.BalanceChanges)).
		Msg("transactions deleted")
	return result, nil
}

func (s *Service) GetTransaction(ctx context.Context, ownerID, transactionID string) (*storage.Transaction, error) {
	return storage.FindTransaction(s.db.DB(ctx), ownerID, transactionID)
}

// ListTransactions returns the owner's transactions, newest first, optionally for one account.
func (s *Service) ListTransactions(ctx context.Context, ownerID, accountID string) ([]storage.Transaction, error) {
	query := s.db.DB(ctx).Where("user_id = ?", ownerID)
	if accountID != "" {
		if _, err := storage.FindAccount(s.db.DB(ctx), ownerID, accountID); err != nil {
			return nil, err
		}
		query = query.Where("account_id = ?", accountID)
	}

	var txns []storage.Transaction
	if err := query.Order("date desc").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// HasDescriptionPrefix reports whether the owner already has a transaction whose
// description starts with prefix. Chat imports use it to skip messages seen before.
func (s *Service) HasDescriptionPrefix(ctx context.Context, ownerID, prefix string) (bool, error) {
	var count int64
	err := s.db.DB(ctx).Model(&storage.Transaction{}).
		Where("user_id = ? AND description LIKE ?", ownerID, likePrefix(prefix)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up transactions: %w", err)
	}
	return count > 0, nil
}

// likePrefix turns a literal % into the single-character wildcard so it cannot widen the match.
func likePrefix(s string) string {
	return strings.ReplaceAll(s, "%", "_") + "%"
}
