// Ledger engine: the append-only transaction log, the balance fold, and
// pre-append validation. Balances are always derived from the log; nothing in
// this repository stores a current balance.

package core

import (
	"time"

	"github.com/google/uuid"
)

// CalculateBalance folds a transaction log into the current balance.
// The fold is commutative: the result does not depend on log order.
// Deposits and payout reversals add, withdrawals and payouts subtract.
// An empty or nil log yields zero.
func CalculateBalance(transactions []Transaction) Money {
	var cents int64
	for _, t := range transactions {
		switch t.Type {
		case Deposit, PayoutReversal:
			cents += t.Amount.Cents
		case Withdrawal, Payout:
			cents -= t.Amount.Cents
		}
	}
	return Money{Cents: cents}
}

// NewTransaction builds an immutable ledger entry. The id and timestamp are
// generated here; referenceID links a payout_reversal to the payout it undoes.
func NewTransaction(typ TransactionType, amount Money, description, referenceID string) (Transaction, error) {
	if err := typ.Validate(); err != nil {
		return Transaction{}, err
	}
	if amount.Cents <= 0 {
		return Transaction{}, ErrAmountNotPositive
	}
	return Transaction{
		ID:          uuid.New().String(),
		Type:        typ,
		Amount:      amount,
		CreatedAt:   time.Now().UTC(),
		Description: description,
		ReferenceID: referenceID,
	}, nil
}

// ValidateTransaction runs the business-rule checks that must pass before a
// transaction may be appended. It never mutates anything; the caller appends
// only on a nil return.
//
// Withdrawing exactly the full balance is valid. Payouts and reversals are
// pool distributions and carry no balance precondition.
func ValidateTransaction(x *Xitique, typ TransactionType, amount Money) error {
	if err := typ.Validate(); err != nil {
		return err
	}
	if amount.Cents <= 0 {
		return ErrAmountNotPositive
	}
	if typ == Withdrawal {
		if CalculateBalance(x.Transactions).Cents < amount.Cents {
			return ErrInsufficientFunds
		}
	}
	return nil
}
