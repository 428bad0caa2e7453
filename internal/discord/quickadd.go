package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/ledger"
	"github.com/NgigiN/fintrack/internal/mpesa"
	"github.com/NgigiN/fintrack/internal/storage"
)

var validCategories = []string{"food", "travel", "savings", "church", "investments"}

// errDuplicate marks an M-PESA code that was already recorded.
var errDuplicate = errors.New("already recorded")

type TransactionData struct {
	Message  string
	Metadata []string
}

func (b *Bot) handleSingle(ctx context.Context, content string) string {
	parts := strings.Split(content, "\n")
	txn, parsed, err := b.record(ctx, TransactionData{Message: parts[0], Metadata: parts[1:]})
	switch {
	case errors.Is(err, errDuplicate):
		return fmt.Sprintf("%s is already recorded", parsed.TransactionID)
	case err != nil:
		return err.Error()
	}
	return fmt.Sprintf("Tracked %s: Ksh%s to %s in %s", parsed.TransactionID, txn.Amount, parsed.Recipient, txn.Category)
}

func (b *Bot) handleBatch(ctx context.Context, content string) string {
	transactions := splitIntoTransactions(strings.Split(content, "\n"))
	if len(transactions) == 0 {
		return "No valid M-PESA transactions found in batch message"
	}

	successCount, skipped := 0, 0
	var failures []string
	for i, data := range transactions {
		_, _, err := b.record(ctx, data)
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, errDuplicate):
			skipped++
		default:
			failures = append(failures, fmt.Sprintf("Transaction %d: %v", i+1, err))
		}
	}

	response := "**Batch Processing Complete**\n"
	response += fmt.Sprintf("**Successfully processed**: %d transactions\n", successCount)
	if skipped > 0 {
		response += fmt.Sprintf("**Already recorded**: %d transactions\n", skipped)
	}
	if len(failures) > 0 {
		response += fmt.Sprintf("**Failed**: %d transactions\n**Errors:**\n", len(failures))
		for _, f := range failures {
			response += fmt.Sprintf("• %s\n", f)
		}
	}
	return response
}

// record turns one confirmation into an expense on the owner's default account.
func (b *Bot) record(ctx context.Context, data TransactionData) (*storage.Transaction, *mpesa.ParsedTransaction, error) {
	parsed, err := mpesa.ParseMPesaMessage(data.Message)
	if err != nil {
		return nil, nil, fmt.Errorf("Invalid Mpesa Message: %v", err)
	}

	category, reason := parseMetadata(data.Metadata)
	if !isValidCategory(category) {
		return nil, parsed, fmt.Errorf("Invalid category: %s. \n Use: %s", category, strings.Join(validCategories, ", "))
	}

	exists, err := b.ledger.HasDescriptionPrefix(ctx, b.ownerID, parsed.DescriptionPrefix())
	if err != nil {
		return nil, parsed, fmt.Errorf("Failed to check transaction: %v", err)
	}
	if exists {
		return nil, parsed, fmt.Errorf("%s: %w", parsed.TransactionID, errDuplicate)
	}

	account, err := b.ledger.DefaultAccount(ctx, b.ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, parsed, fmt.Errorf("No default account. Create one first")
	}
	if err != nil {
		return nil, parsed, fmt.Errorf("Failed to load default account: %v", err)
	}

	txn, err := b.ledger.CreateTransaction(ctx, b.ownerID, ledger.TransactionInput{
		AccountID:   account.ID,
		Type:        domain.Expense,
		Amount:      parsed.Total(),
		Description: parsed.Description(reason),
		Category:    category,
		Date:        parsed.DateTime,
	})
	if err != nil {
		return nil, parsed, fmt.Errorf("Failed to save transaction: %v", err)
	}

	b.log.Info().
		Str("mpesa_code", parsed.TransactionID).
		Str("transaction_id", txn.ID).
		Msg("m-pesa expense recorded")
	return txn, parsed, nil
}

func parseMetadata(lines []string) (category, reason string) {
	category = "uncategorized"
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Category:") {
			category = strings.TrimSpace(strings.TrimPrefix(line, "Category:"))
		} else if strings.HasPrefix(line, "c:") {
			category = strings.TrimSpace(strings.TrimPrefix(line, "c:"))
		} else if strings.HasPrefix(line, "Reason:") {
			reason = strings.TrimSpace(strings.TrimPrefix(line, "Reason:"))
		} else if strings.HasPrefix(line, "r:") {
			reason = strings.TrimSpace(strings.TrimPrefix(line, "r:"))
		}
	}
	return strings.ToLower(category), reason
}

func isValidCategory(category string) bool {
	for _, c := range validCategories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func isConfirmationLine(line string) bool {
	return strings.Contains(line, "Confirmed.") &&
		(strings.Contains(line, "sent to") || strings.Contains(line, "paid to") || strings.Contains(line, "received"))
}

func isBatchMessage(content string) bool {
	count := 0
	for _, line := range strings.Split(content, "\n") {
		if isConfirmationLine(line) {
			count++
		}
	}
	return count > 1
}

func splitIntoTransactions(lines []string) []TransactionData {
	var transactions []TransactionData
	var current TransactionData
	var inTransaction bool

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isConfirmationLine(line) {
			if inTransaction {
				transactions = append(transactions, current)
			}
			current = TransactionData{Message: line, Metadata: []string{}}
			inTransaction = true
		} else if inTransaction {
			if strings.HasPrefix(line, "c:") || strings.HasPrefix(line, "Category:") ||
				strings.HasPrefix(line, "r:") || strings.HasPrefix(line, "Reason:") {
				current.Metadata = append(current.Metadata, line)
			}
		}
	}

	if inTransaction {
		transactions = append(transactions, current)
	}
	return transactions
}
