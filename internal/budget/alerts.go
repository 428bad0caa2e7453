package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/storage"
)

type AlertResult struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	// Skipped budgets have no default account to evaluate.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ScanAlerts evaluates every budget against its owner's default account and notifies the
// owner once per calendar month when spending crosses AlertThreshold. The debounce stamp is
// written only after the notifier succeeds, so a failed send is retried on the next scan.
func (s *Service) ScanAlerts(ctx context.Context) (*AlertResult, error) {
	var budgets []storage.Budget
	if err := s.db.DB(ctx).Order("user_id").Find(&budgets).Error; err != nil {
		return nil, fmt.Errorf("failed to load budgets: %w", err)
	}

	result := &AlertResult{}
	for i := range budgets {
		b := &budgets[i]
		result.Checked++
		sent, err := s.checkBudget(ctx, b)
		switch {
		case err == nil && sent:
			result.Sent++
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			result.Skipped++
		default:
			result.Failed++
			s.log.Error().Err(err).Str("budget_id", b.ID).Str("user_id", b.UserID).Msg("failed to check budget")
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}

	s.log.Info().
		Int("checked", result.Checked).
		Int("sent", result.Sent).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("budget alert scan finished")
	return result, nil
}

func (s *Service) checkBudget(ctx context.Context, b *storage.Budget) (bool, error) {
	now := s.now()
	tx := s.db.DB(ctx)

	account, err := storage.FindDefaultAccount(tx, b.UserID)
	if err != nil {
		return false, err
	}
	status, err := evaluate(tx, b.UserID, account.ID, b, now)
	if err != nil {
		return false, err
	}
	if !ShouldAlert(status.PercentageUsed, b.LastAlertSent, now) {
		return false, nil
	}

	alert := Alert{UserID: b.UserID, AccountName: account.Name, Status: *status}
	if user, err := storage.FindUser(tx, b.UserID); err == nil {
		alert.UserName, alert.Email = user.Name, user.Email
	}
	if err := s.notifier.SendBudgetAlert(ctx, alert); err != nil {
		return false, fmt.Errorf("%w: budget alert: %v", domain.ErrExternal, err)
	}

	stamp := storage.Timestamp(now)
	if err := tx.Model(&storage.Budget{}).Where("id = ?", b.ID).Update("last_alert_sent", stamp).Error; err != nil {
		return true, fmt.Errorf("failed to stamp budget alert: %w", err)
	}
	b.LastAlertSent = &stamp

	s.log.Info().
		Str("user_id", b.UserID).
		Str("account_id", account.ID).
		Str("percentage_used", status.PercentageUsed.String()).
		Msg("budget alert sent")
	return true, nil
}
