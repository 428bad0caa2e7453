package budget

import (
	"context"

	"github.com/rs/zerolog"
)

type Alert struct {
	UserID      string
	UserName    string
	Email       string
	AccountName string
	Status      Status
}

// Notifier delivers messages to the owner. A returned error means nothing was delivered.
type Notifier interface {
	SendBudgetAlert(ctx context.Context, alert Alert) error
	SendMonthlyReport(ctx context.Context, report *Report) error
}

// LogNotifier writes alerts and reports to the log when no channel is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendBudgetAlert(ctx context.Context, alert Alert) error {
	n.log.Warn().
		Str("user_id", alert.UserID).
		Str("account", alert.AccountName).
		Stringer("budget", alert.Status.BudgetAmount).
		Stringer("expenses", alert.Status.CurrentExpenses).
		Str("percentage_used", alert.Status.PercentageUsed.String()).
		Msg("budget alert")
	return nil
}

func (n *LogNotifier) SendMonthlyReport(ctx context.Context, report *Report) error {
	n.log.Info().
		Str("user_id", report.UserID).
		Str("month", report.Month).
		Stringer("income", report.Income).
		Stringer("expenses", report.Expenses).
		Stringer("net", report.Net).
		Msg("monthly report")
	return nil
}
