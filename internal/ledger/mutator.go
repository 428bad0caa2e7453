package ledger

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/money"
	"github.com/NgigiN/fintrack/internal/storage"
)

// ApplyDelta increments an account balance in place within the caller's unit of work.
// The increment is evaluated by the store (balance = balance + ?), so concurrent writers
// to the same account cannot lose updates. Callers resolve the sign with
// domain.SignedEffect; ApplyDelta never inspects transaction types.
func ApplyDelta(tx *gorm.DB, accountID string, delta money.Money) error {
	if delta.IsZero() {
		return nil
	}
	res := tx.Model(&storage.Account{}).
		Where("id = ?", accountID).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta.Minor()))
	if res.Error != nil {
		return fmt.Errorf("failed to adjust balance of account %s: %w", accountID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	return nil
}
