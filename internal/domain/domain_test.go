package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/NgigiN/fintrack/internal/money"
)

func TestSignedEffect(t *testing.T) {
	amount := money.MustParse("100.00")
	if got := SignedEffect(Expense, amount); got != money.MustParse("-100.00") {
		t.Errorf("expense effect = %s, want -100.00", got)
	}
	if got := SignedEffect(Income, amount); got != amount {
		t.Errorf("income effect = %s, want 100.00", got)
	}
	if got := ReversalEffect(Expense, amount); got != amount {
		t.Errorf("expense reversal = %s, want 100.00", got)
	}
	if got := ReversalEffect(Income, amount); got != money.MustParse("-100.00") {
		t.Errorf("income reversal = %s, want -100.00", got)
	}
}

func TestIntervalNext(t *testing.T) {
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
	}
	cases := []struct {
		name     string
		interval RecurringInterval
		from     time.Time
		want     time.Time
	}{
		{"daily", Daily, at(2025, 12, 31), at(2026, 1, 1)},
		{"weekly", Weekly, at(2025, 2, 25), at(2025, 3, 4)},
		{"monthly keeps day", Monthly, at(2025, 3, 15), at(2025, 4, 15)},
		{"monthly jan 31 clamps", Monthly, at(2025, 1, 31), at(2025, 2, 28)},
		{"monthly jan 31 leap year", Monthly, at(2024, 1, 31), at(2024, 2, 29)},
		{"monthly aug 31 to sep 30", Monthly, at(2025, 8, 31), at(2025, 9, 30)},
		{"monthly december rolls year", Monthly, at(2025, 12, 31), at(2026, 1, 31)},
		{"yearly", Yearly, at(2025, 6, 1), at(2026, 6, 1)},
		{"yearly from leap day", Yearly, at(2024, 2, 29), at(2025, 2, 28)},
	}
	for _, c := range cases {
		if got := c.interval.Next(c.from); !got.Equal(c.want) {
			t.Errorf("%s: Next(%s) = %s, want %s", c.name, c.from, got, c.want)
		}
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2024, 2, 17, 13, 0, 0, 0, time.UTC))
	if !start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %s", end)
	}
}

func TestSameMonth(t *testing.T) {
	ref := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	if !SameMonth(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), ref) {
		t.Error("expected same month")
	}
	if SameMonth(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), ref) {
		t.Error("same month of a different year must not match")
	}
	if SameMonth(time.Date(2025, 4, 30, 23, 0, 0, 0, time.UTC), ref) {
		t.Error("previous month must not match")
	}
}

func TestParseEnums(t *testing.T) {
	if typ, err := ParseTransactionType("expense"); err != nil || typ != Expense {
		t.Errorf("ParseTransactionType(expense) = %q, %v", typ, err)
	}
	if _, err := ParseTransactionType("TRANSFER"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for TRANSFER, got %v", err)
	}
	if _, err := ParseRecurringInterval("HOURLY"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for HOURLY, got %v", err)
	}
	if _, err := ParseAccountType("CHECKING"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for CHECKING, got %v", err)
	}
	if st, err := ParseTransactionStatus("completed"); err != nil || st != StatusCompleted {
		t.Errorf("ParseTransactionStatus(completed) = %q, %v", st, err)
	}
}

func TestEnumsRejectedAtDecode(t *testing.T) {
	var payload struct {
		Type     TransactionType    `json:"type"`
		Interval *RecurringInterval `json:"interval"`
	}
	if err := json.Unmarshal([]byte(`{"type":"INCOME","interval":"weekly"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Type != Income || payload.Interval == nil || *payload.Interval != Weekly {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if err := json.Unmarshal([]byte(`{"type":"REFUND"}`), &payload); err == nil {
		t.Fatal("expected decode error for unknown type")
	}
}
