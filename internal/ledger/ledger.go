// Package ledger is the credit accounting layer. Every billable operation
// settles through it, and its one hard rule is that a balance never goes
// negative: the sufficiency check and the mutation happen in a single
// atomic unit, conditioned on the balance at mutation time.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/draftzen/internal/model"
)

var (
	// ErrAccountNotFound is returned for operations on unknown accounts.
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrInsufficientCredits is returned when a debit would take the
	// balance below zero. The account is left untouched and a failed
	// transaction is recorded.
	ErrInsufficientCredits = errors.New("ledger: insufficient credits")
)

// InsufficientCreditsError carries the shortfall detail alongside
// ErrInsufficientCredits so callers can report available vs required.
type InsufficientCreditsError struct {
	Available int64
	Required  int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("ledger: insufficient credits: available %d, required %d", e.Available, e.Required)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}

// Ledger is the atomic credit store. Debit, Credit, Correct, and
// SetBalance each append exactly one transaction; transactions are never
// mutated afterward.
type Ledger interface {
	// EnsureAccount returns the account, creating it with the initial
	// grant when it does not exist yet.
	EnsureAccount(ctx context.Context, accountID string) (*model.CreditAccount, error)

	// Account returns the current balance record.
	Account(ctx context.Context, accountID string) (*model.CreditAccount, error)

	// Reserve is the advisory pre-flight check. It mutates nothing; the
	// authoritative check happens again inside Debit.
	Reserve(ctx context.Context, accountID string, amount int64) (*model.Reservation, error)

	// Debit atomically subtracts amount if and only if the balance covers
	// it, and appends the completed transaction. Returns the new balance.
	Debit(ctx context.Context, accountID string, op model.Operation, amount int64, linkedResourceID string) (int64, error)

	// Credit atomically adds amount and appends the transaction.
	Credit(ctx context.Context, accountID string, op model.Operation, amount int64, note string) (int64, error)

	// Correct applies an administrative deduction clamped at zero; the
	// transaction records the delta actually applied, not the requested one.
	Correct(ctx context.Context, accountID string, amount int64, reason string) (int64, error)

	// SetBalance moves the balance to target and records the signed delta
	// as an administrative addition or deduction.
	SetBalance(ctx context.Context, accountID string, target int64) (int64, error)

	// Transactions returns the most recent transactions, newest first.
	Transactions(ctx context.Context, accountID string, limit int) ([]model.CreditTransaction, error)

	// RecordReconciliation appends a reconciliation event for a debit that
	// failed after its product was delivered.
	RecordReconciliation(ctx context.Context, ev model.ReconciliationEvent) error

	Migrate(ctx context.Context) error
	Close() error
}
