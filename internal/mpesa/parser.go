// Package mpesa parses outgoing M-PESA confirmation messages into expense details.
package mpesa

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/NgigiN/fintrack/internal/money"
)

// EAT is the timezone M-PESA stamps its confirmations in.
var EAT = time.FixedZone("EAT", 3*60*60)

// Accepted variants: optional periods and spaces around "Confirmed", "for account ..."
// inside the recipient, "New M-PESA balance" or "New business balance", "PM.New" with no
// space, and trailing promotional text after the transaction cost.
var confirmation = func() *regexp.Regexp {
	amount := `Ksh[\d,]+(?:\.\d+)?`
	return regexp.MustCompile(`(?i)(\w+)\s+Confirmed\.?\s+(` + amount + `)\s+(sent|paid)\s+to\s+(.*?)\s*\.?\s+on\s+(\d{1,2}/\d{1,2}/\d{2})\s+at\s+(\d{1,2}:\d{2})\s?(AM|PM)\.?\s*New\s+(?:M-PESA|business)\s+balance\s+is\s+(` + amount + `)\.\s*Transaction\s+cost,?\s*(` + amount + `)(?:\.|\b)`)
}()

type ParsedTransaction struct {
	TransactionID string
	Amount        money.Money
	Recipient     string
	DateTime      time.Time
	Balance       money.Money
	Cost          money.Money
}

// Total is what left the wallet: the amount plus the transaction cost.
func (p *ParsedTransaction) Total() money.Money {
	return p.Amount + p.Cost
}

// DescriptionPrefix starts every description built from this confirmation.
func (p *ParsedTransaction) DescriptionPrefix() string {
	return "M-PESA " + p.TransactionID + " "
}

// Description names the payment the way the ledger shows it.
func (p *ParsedTransaction) Description(reason string) string {
	desc := p.DescriptionPrefix() + "to " + p.Recipient
	if reason = strings.TrimSpace(reason); reason != "" {
		desc += ": " + reason
	}
	return desc
}

func ParseMPesaMessage(msg string) (*ParsedTransaction, error) {
	matches := confirmation.FindStringSubmatch(msg)
	if len(matches) < 10 {
		return nil, fmt.Errorf("not a valid outgoing M-PESA message")
	}

	amount, err := parseKsh(matches[2])
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount: %w", err)
	}
	balance, err := parseKsh(matches[8])
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	cost, err := parseKsh(matches[9])
	if err != nil {
		return nil, fmt.Errorf("failed to parse cost: %w", err)
	}

	dateTime, err := parseDateTime(matches[5], matches[6], matches[7])
	if err != nil {
		return nil, err
	}

	recipient := strings.TrimSpace(strings.TrimSuffix(matches[4], "."))
	return &ParsedTransaction{
		TransactionID: strings.ToUpper(matches[1]),
		Amount:        amount,
		Recipient:     strings.Join(strings.Fields(recipient), " "),
		DateTime:      dateTime,
		Balance:       balance,
		Cost:          cost,
	}, nil
}

func parseKsh(s string) (money.Money, error) {
	return money.Parse(strings.ReplaceAll(s[len("Ksh"):], ",", ""))
}

// parseDateTime reads d/m/yy and h:mm AM|PM.
func parseDateTime(date, clock, meridiem string) (time.Time, error) {
	parts := strings.Split(date, "/")
	day, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	year, _ := strconv.Atoi(parts[2])

	value := fmt.Sprintf("%d-%02d-%02d %s %s", 2000+year, month, day, clock, strings.ToUpper(meridiem))
	t, err := time.ParseInLocation("2006-01-02 3:04 PM", value, EAT)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date/time: %w", err)
	}
	return t, nil
}
