package domain

import "github.com/NgigiN/fintrack/internal/money"

// SignedEffect is the balance contribution of a transaction: negative for expenses,
// positive for income. Every balance change in the ledger derives from this function.
func SignedEffect(t TransactionType, amount money.Money) money.Money {
	if t == Expense {
		return amount.Neg()
	}
	return amount
}

// ReversalEffect undoes SignedEffect, used when a transaction leaves an account.
func ReversalEffect(t TransactionType, amount money.Money) money.Money {
	return SignedEffect(t, amount).Neg()
}
