package budget

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/money"
	"github.com/NgigiN/fintrack/internal/storage"
)

// MonthLayout is the YYYY-MM form used to name report months.
const MonthLayout = "2006-01"

type CategoryTotal struct {
	Category string      `json:"category"`
	Amount   money.Money `json:"amount"`
}

// Report summarizes one calendar month across all of an owner's accounts.
type Report struct {
	UserID   string      `json:"userId"`
	Month    string      `json:"month"`
	Income   money.Money `json:"income"`
	Expenses money.Money `json:"expenses"`
	Net      money.Money `json:"net"`
	// ByCategory lists expense totals, largest first.
	ByCategory []CategoryTotal `json:"byCategory"`
	Count      int             `json:"transactionCount"`
}

func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month %q must look like 2025-01", domain.ErrInvalidInput, s)
	}
	return t, nil
}

func (s *Service) Report(ctx context.Context, ownerID string, month time.Time) (*Report, error) {
	start, end := domain.MonthBounds(month)

	var rows []struct {
		Type     domain.TransactionType
		Category string
		Total    int64
		Count    int
	}
	err := s.db.DB(ctx).Model(&storage.Transaction{}).
		Select("type, category, CAST(COALESCE(SUM(amount), 0) AS BIGINT) AS total, COUNT(*) AS count").
		Where("user_id = ? AND date >= ? AND date < ?", ownerID, storage.Timestamp(start), storage.Timestamp(end)).
		Group("type, category").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	report := &Report{UserID: ownerID, Month: start.Format(MonthLayout), ByCategory: []CategoryTotal{}}
	for _, row := range rows {
		total := money.FromMinor(row.Total)
		report.Count += row.Count
		if row.Type == domain.Income {
			report.Income += total
			continue
		}
		report.Expenses += total
		report.ByCategory = append(report.ByCategory, CategoryTotal{Category: row.Category, Amount: total})
	}
	report.Net = report.Income - report.Expenses
	sort.Slice(report.ByCategory, func(i, j int) bool {
		if report.ByCategory[i].Amount != report.ByCategory[j].Amount {
			return report.ByCategory[i].Amount > report.ByCategory[j].Amount
		}
		return report.ByCategory[i].Category < report.ByCategory[j].Category
	})
	return report, nil
}

// SendReport builds the month's report and hands it to the notifier.
func (s *Service) SendReport(ctx context.Context, ownerID string, month time.Time) (*Report, error) {
	report, err := s.Report(ctx, ownerID, month)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.SendMonthlyReport(ctx, report); err != nil {
		return report, fmt.Errorf("%w: monthly report: %v", domain.ErrExternal, err)
	}
	return report, nil
}
