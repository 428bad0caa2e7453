package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NgigiN/fintrack/internal/budget"
	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/money"
)

func (b *Bot) balanceCommand(ctx context.Context) string {
	accounts, err := b.ledger.ListAccounts(ctx, b.ownerID)
	if err != nil {
		return fmt.Sprintf("Failed to load accounts: %v", err)
	}
	if len(accounts) == 0 {
		return "No accounts found."
	}

	var total money.Money
	response := "**Balances**\n\n"
	for _, a := range accounts {
		marker := ""
		if a.IsDefault {
			marker = " (default)"
		}
		response += fmt.Sprintf("**%s**%s: Ksh%s\n", a.Name, marker, a.Balance)
		total += a.Balance
	}
	response += fmt.Sprintf("\n**Total**: Ksh%s", total)
	return response
}

func (b *Bot) budgetCommand(ctx context.Context) string {
	account, err := b.ledger.DefaultAccount(ctx, b.ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return "No default account. Create one first"
	}
	if err != nil {
		return fmt.Sprintf("Failed to load default account: %v", err)
	}

	status, err := b.budgets.Evaluate(ctx, b.ownerID, account.ID)
	if err != nil {
		return fmt.Sprintf("Failed to evaluate budget: %v", err)
	}
	if status.Budget == nil {
		return fmt.Sprintf("No budget set. Spent Ksh%s this month on %s.", status.CurrentExpenses, account.Name)
	}
	return formatStatus(account.Name, status)
}

func (b *Bot) reportCommand(ctx context.Context, args []string) string {
	month := b.now()
	if len(args) > 0 {
		parsed, err := budget.ParseMonth(args[0])
		if err != nil {
			return "Usage: !report [YYYY-MM]"
		}
		month = parsed
	}

	report, err := b.budgets.Report(ctx, b.ownerID, month)
	if err != nil {
		return fmt.Sprintf("Failed to build report: %v", err)
	}
	return formatReport(report)
}

// summaryCommand lists this month's category totals, or the latest ten transactions of
// one category.
func (b *Bot) summaryCommand(ctx context.Context, args []string) string {
	switch len(args) {
	case 0:
		report, err := b.budgets.Report(ctx, b.ownerID, b.now())
		if err != nil {
			return fmt.Sprintf("Failed to get summary: %v", err)
		}
		if len(report.ByCategory) == 0 {
			return "No transactions found."
		}
		response := "**Transaction Summary**\n\n"
		for _, c := range report.ByCategory {
			response += fmt.Sprintf("**%s**: Ksh%s\n", c.Category, c.Amount)
		}
		return response + fmt.Sprintf("\n**Total**: Ksh%s", report.Expenses)
	case 1:
		category := strings.ToLower(args[0])
		if !isValidCategory(category) {
			return fmt.Sprintf("Invalid category: %s. Use: %s", category, strings.Join(validCategories, ", "))
		}
		return b.categorySummary(ctx, category)
	}
	return "Usage: !summary [category]\nExamples:\n!summary - show all categories\n!summary food - show food transactions"
}

func (b *Bot) categorySummary(ctx context.Context, category string) string {
	txns, err := b.ledger.ListTransactions(ctx, b.ownerID, "")
	if err != nil {
		return fmt.Sprintf("Failed to get transactions: %v", err)
	}

	var total money.Money
	count := 0
	response := fmt.Sprintf("**%s Transactions**\n\n", category)
	for _, txn := range txns {
		if txn.Category != category || txn.Type != domain.Expense {
			continue
		}
		if count < 10 {
			response += fmt.Sprintf("• **Ksh%s** %s\n  %s\n\n", txn.Amount, txn.Description, txn.Date.Format("Jan 2, 2006 3:04 PM"))
		}
		total += txn.Amount
		count++
	}
	if count == 0 {
		return fmt.Sprintf("No transactions found for category: %s", category)
	}
	if count > 10 {
		response += fmt.Sprintf("... and %d more transactions\n\n", count-10)
	}
	return response + fmt.Sprintf("**Total %s**: Ksh%s (%d transactions)", category, total, count)
}

func formatStatus(accountName string, status *budget.Status) string {
	return fmt.Sprintf("**Budget for %s**\nBudget: Ksh%s\nSpent this month: Ksh%s\nUsed: %s%%",
		accountName, status.BudgetAmount, status.CurrentExpenses, status.PercentageUsed.StringFixed(1))
}

func formatReport(r *budget.Report) string {
	response := fmt.Sprintf("**Monthly Report %s**\n\n", r.Month)
	response += fmt.Sprintf("Income: Ksh%s\nExpenses: Ksh%s\nNet: Ksh%s\nTransactions: %d\n", r.Income, r.Expenses, r.Net, r.Count)
	if len(r.ByCategory) > 0 {
		response += "\n**Expenses by category**\n"
		for _, c := range r.ByCategory {
			response += fmt.Sprintf("• %s: Ksh%s\n", c.Category, c.Amount)
		}
	}
	return response
}
