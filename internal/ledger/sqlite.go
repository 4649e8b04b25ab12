package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/draftzen/internal/model"
)

// SQLiteLedger implements Ledger using modernc.org/sqlite. Writes run in
// immediate transactions so the balance guard sees a stable row.
type SQLiteLedger struct {
	db           *sql.DB
	initialGrant int64
}

// NewSQLite opens a SQLite ledger at the given path and configures WAL mode.
func NewSQLite(dsn string, initialGrant int64) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: sqlite open")
	}
	// Single writer connection; SQLite serializes writes anyway and this
	// keeps the pragmas applied to every statement.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "ledger: sqlite exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db, initialGrant: initialGrant}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS credit_accounts (
	account_id    TEXT PRIMARY KEY,
	balance       INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
	total_debited INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id                 TEXT PRIMARY KEY,
	account_id         TEXT NOT NULL REFERENCES credit_accounts(account_id),
	operation          TEXT NOT NULL,
	amount             INTEGER NOT NULL,
	linked_resource_id TEXT,
	status             TEXT NOT NULL,
	note               TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reconciliation_events (
	id                 TEXT PRIMARY KEY,
	account_id         TEXT NOT NULL,
	operation          TEXT NOT NULL,
	linked_resource_id TEXT,
	amount             INTEGER NOT NULL,
	cause              TEXT NOT NULL,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_credit_transactions_account ON credit_transactions(account_id, created_at);
CREATE INDEX IF NOT EXISTS idx_reconciliation_events_account ON reconciliation_events(account_id);
`

func (l *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "ledger: sqlite migrate")
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) EnsureAccount(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	now := time.Now().UTC()
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO credit_accounts (account_id, balance, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID, l.initialGrant, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: ensure account")
	}
	if n, _ := res.RowsAffected(); n == 1 && l.initialGrant > 0 {
		if err := l.insertTransaction(ctx, l.db, model.CreditTransaction{
			AccountID: accountID,
			Operation: model.OpInitialGrant,
			Amount:    -l.initialGrant,
			Status:    model.TransactionCompleted,
			Note:      "initial grant",
		}); err != nil {
			return nil, err
		}
	}
	return l.Account(ctx, accountID)
}

func (l *SQLiteLedger) Account(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	var acct model.CreditAccount
	err := l.db.QueryRowContext(ctx,
		`SELECT account_id, balance, total_debited, created_at, updated_at FROM credit_accounts WHERE account_id = ?`,
		accountID,
	).Scan(&acct.AccountID, &acct.Balance, &acct.TotalDebited, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "ledger: get account")
	}
	return &acct, nil
}

func (l *SQLiteLedger) Reserve(ctx context.Context, accountID string, amount int64) (*model.Reservation, error) {
	acct, err := l.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &model.Reservation{
		Approved:  acct.Balance >= amount,
		Available: acct.Balance,
		Required:  amount,
	}, nil
}

func (l *SQLiteLedger) Debit(ctx context.Context, accountID string, op model.Operation, amount int64, linkedResourceID string) (int64, error) {
	if amount <= 0 {
		return 0, eris.Errorf("ledger: debit amount must be positive, got %d", amount)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: begin debit")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE credit_accounts
		 SET balance = balance - ?, total_debited = total_debited + ?, updated_at = datetime('now')
		 WHERE account_id = ? AND balance >= ?`,
		amount, amount, accountID, amount,
	)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: debit")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "ledger: debit rows affected")
	}

	if affected == 0 {
		// Guard did not match: missing account or short balance.
		tx.Rollback() //nolint:errcheck
		acct, accErr := l.Account(ctx, accountID)
		if accErr != nil {
			return 0, accErr
		}
		if recErr := l.insertTransaction(ctx, l.db, model.CreditTransaction{
			AccountID:        accountID,
			Operation:        op,
			Amount:           amount,
			LinkedResourceID: linkedResourceID,
			Status:           model.TransactionFailed,
			Note:             "insufficient credits",
		}); recErr != nil {
			return 0, recErr
		}
		return 0, &InsufficientCreditsError{Available: acct.Balance, Required: amount}
	}

	if err := l.insertTransaction(ctx, tx, model.CreditTransaction{
		AccountID:        accountID,
		Operation:        op,
		Amount:           amount,
		LinkedResourceID: linkedResourceID,
		Status:           model.TransactionCompleted,
	}); err != nil {
		return 0, err
	}

	var balance int64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM credit_accounts WHERE account_id = ?`, accountID,
	).Scan(&balance); err != nil {
		return 0, eris.Wrap(err, "ledger: read balance")
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "ledger: commit debit")
	}
	return balance, nil
}

func (l *SQLiteLedger) Credit(ctx context.Context, accountID string, op model.Operation, amount int64, note string) (int64, error) {
	if amount <= 0 {
		return 0, eris.Errorf("ledger: credit amount must be positive, got %d", amount)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: begin credit")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE credit_accounts SET balance = balance + ?, updated_at = datetime('now') WHERE account_id = ?`,
		amount, accountID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: credit")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrAccountNotFound
	}

	if err := l.insertTransaction(ctx, tx, model.CreditTransaction{
		AccountID: accountID,
		Operation: op,
		Amount:    -amount,
		Status:    model.TransactionCompleted,
		Note:      note,
	}); err != nil {
		return 0, err
	}

	var balance int64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM credit_accounts WHERE account_id = ?`, accountID,
	).Scan(&balance); err != nil {
		return 0, eris.Wrap(err, "ledger: read balance")
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "ledger: commit credit")
	}
	return balance, nil
}

func (l *SQLiteLedger) Correct(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, eris.Errorf("ledger: correction amount must be positive, got %d", amount)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: begin correction")
	}
	defer tx.Rollback() //nolint:errcheck

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM credit_accounts WHERE account_id = ?`, accountID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, eris.Wrap(err, "ledger: read balance")
	}

	applied := amount
	if applied > current {
		applied = current
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE credit_accounts
		 SET balance = balance - ?, total_debited = total_debited + ?, updated_at = datetime('now')
		 WHERE account_id = ?`,
		applied, applied, accountID,
	); err != nil {
		return 0, eris.Wrap(err, "ledger: apply correction")
	}

	// The transaction records what was actually deducted.
	if err := l.insertTransaction(ctx, tx, model.CreditTransaction{
		AccountID: accountID,
		Operation: model.OpAdminCreditDeduction,
		Amount:    applied,
		Status:    model.TransactionCompleted,
		Note:      reason,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "ledger: commit correction")
	}
	return current - applied, nil
}

func (l *SQLiteLedger) SetBalance(ctx context.Context, accountID string, target int64) (int64, error) {
	if target < 0 {
		return 0, eris.Errorf("ledger: target balance must be non-negative, got %d", target)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: begin set balance")
	}
	defer tx.Rollback() //nolint:errcheck

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM credit_accounts WHERE account_id = ?`, accountID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, eris.Wrap(err, "ledger: read balance")
	}

	delta := target - current
	if delta == 0 {
		return current, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE credit_accounts SET balance = ?, updated_at = datetime('now') WHERE account_id = ?`,
		target, accountID,
	); err != nil {
		return 0, eris.Wrap(err, "ledger: set balance")
	}

	op := model.OpAdminCreditAddition
	if delta < 0 {
		op = model.OpAdminCreditDeduction
	}
	if err := l.insertTransaction(ctx, tx, model.CreditTransaction{
		AccountID: accountID,
		Operation: op,
		Amount:    -delta,
		Status:    model.TransactionCompleted,
		Note:      "admin set balance",
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "ledger: commit set balance")
	}
	return target, nil
}

func (l *SQLiteLedger) Transactions(ctx context.Context, accountID string, limit int) ([]model.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, account_id, operation, amount, COALESCE(linked_resource_id, ''), status, COALESCE(note, ''), created_at
		 FROM credit_transactions WHERE account_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list transactions")
	}
	defer rows.Close()

	var out []model.CreditTransaction
	for rows.Next() {
		var t model.CreditTransaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Operation, &t.Amount, &t.LinkedResourceID, &t.Status, &t.Note, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "ledger: scan transaction")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) RecordReconciliation(ctx context.Context, ev model.ReconciliationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO reconciliation_events (id, account_id, operation, linked_resource_id, amount, cause, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.AccountID, string(ev.Operation), ev.LinkedResourceID, ev.Amount, ev.Cause, time.Now().UTC(),
	)
	return eris.Wrap(err, "ledger: record reconciliation event")
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (l *SQLiteLedger) insertTransaction(ctx context.Context, ex sqlExecer, t model.CreditTransaction) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO credit_transactions (id, account_id, operation, amount, linked_resource_id, status, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), t.AccountID, string(t.Operation), t.Amount, t.LinkedResourceID, string(t.Status), t.Note, time.Now().UTC(),
	)
	return eris.Wrap(err, "ledger: insert transaction")
}
