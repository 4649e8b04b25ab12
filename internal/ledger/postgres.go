package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/draftzen/internal/db"
	"github.com/sells-group/draftzen/internal/model"
)

// PostgresLedger implements Ledger using pgxpool. The balance guard lives
// in the UPDATE predicate, so two concurrent debits against the same row
// serialize on the row lock and the loser sees the post-debit balance.
type PostgresLedger struct {
	pool         db.Pool
	closeFn      func()
	initialGrant int64
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresLedger with a connection pool.
func NewPostgres(ctx context.Context, connString string, initialGrant int64, poolCfg *PoolConfig) (*PostgresLedger, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ledger: ping")
	}
	return &PostgresLedger{pool: pool, closeFn: pool.Close, initialGrant: initialGrant}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests and by callers
// sharing one pool across stores.
func NewPostgresFromPool(pool db.Pool, initialGrant int64) *PostgresLedger {
	return &PostgresLedger{pool: pool, initialGrant: initialGrant}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS credit_accounts (
	account_id    TEXT PRIMARY KEY,
	balance       BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	total_debited BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credit_transactions (
	id                 TEXT PRIMARY KEY,
	account_id         TEXT NOT NULL REFERENCES credit_accounts(account_id),
	operation          TEXT NOT NULL,
	amount             BIGINT NOT NULL,
	linked_resource_id TEXT,
	status             TEXT NOT NULL,
	note               TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reconciliation_events (
	id                 TEXT PRIMARY KEY,
	account_id         TEXT NOT NULL,
	operation          TEXT NOT NULL,
	linked_resource_id TEXT,
	amount             BIGINT NOT NULL,
	cause              TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_credit_transactions_account ON credit_transactions(account_id, created_at);
CREATE INDEX IF NOT EXISTS idx_reconciliation_events_account ON reconciliation_events(account_id);
`

func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "ledger: migrate")
}

func (l *PostgresLedger) Close() error {
	if l.closeFn != nil {
		l.closeFn()
	}
	return nil
}

func (l *PostgresLedger) EnsureAccount(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO credit_accounts (account_id, balance) VALUES ($1, $2) ON CONFLICT (account_id) DO NOTHING`,
		accountID, l.initialGrant,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: ensure account")
	}
	if tag.RowsAffected() == 1 && l.initialGrant > 0 {
		if err := l.insertTransaction(ctx, l.pool, model.CreditTransaction{
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

func (l *PostgresLedger) Account(ctx context.Context, accountID string) (*model.CreditAccount, error) {
	var acct model.CreditAccount
	err := l.pool.QueryRow(ctx,
		`SELECT account_id, balance, total_debited, created_at, updated_at FROM credit_accounts WHERE account_id = $1`,
		accountID,
	).Scan(&acct.AccountID, &acct.Balance, &acct.TotalDebited, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "ledger: get account")
	}
	return &acct, nil
}

func (l *PostgresLedger) Reserve(ctx context.Context, accountID string, amount int64) (*model.Reservation, error) {
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

func (l *PostgresLedger) Debit(ctx context.Context, accountID string, op model.Operation, amount int64, linkedResourceID string) (int64, error) {
	if amount <= 0 {
		return 0, eris.Errorf("ledger: debit amount must be positive, got %d", amount)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: begin debit")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var balance int64
	err = tx.QueryRow(ctx,
		`UPDATE credit_accounts
		 SET balance = balance - $1, total_debited = total_debited + $1, updated_at = now()
		 WHERE account_id = $2 AND balance >= $1
		 RETURNING balance`,
		amount, accountID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		// Guard did not match: missing account or short balance. The
		// deferred rollback discards the open transaction; the failed
		// attempt is logged outside it.
		acct, accErr := l.Account(ctx, accountID)
		if accErr != nil {
			return 0, accErr
		}
		if recErr := l.insertTransaction(ctx, l.pool, model.CreditTransaction{
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
	if err != nil {
		return 0, eris.Wrap(err, "ledger: debit")
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

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "ledger: commit debit")
	}
	return balance, nil
}

func (l *PostgresLedger) Credit(ctx context.Context, accountID string, op model.Operation, amount int64, note string) (int64, error) {
	if amount <= 0 {
		return 0, eris.Errorf("ledger: credit amount must be positive, got %d", amount)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: begin credit")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var balance int64
	err = tx.QueryRow(ctx,
		`UPDATE credit_accounts SET balance = balance + $1, updated_at = now() WHERE account_id = $2 RETURNING balance`,
		amount, accountID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, eris.Wrap(err, "ledger: credit")
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

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "ledger: commit credit")
	}
	return balance, nil
}

func (l *PostgresLedger) Correct(ctx context.Context, accountID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, eris.Errorf("ledger: correction amount must be positive, got %d", amount)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: begin correction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM credit_accounts WHERE account_id = $1 FOR UPDATE`,
		accountID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, eris.Wrap(err, "ledger: lock account")
	}

	applied := amount
	if applied > current {
		applied = current
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`UPDATE credit_accounts
		 SET balance = balance - $1, total_debited = total_debited + $1, updated_at = now()
		 WHERE account_id = $2
		 RETURNING balance`,
		applied, accountID,
	).Scan(&balance)
	if err != nil {
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

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "ledger: commit correction")
	}
	return balance, nil
}

func (l *PostgresLedger) SetBalance(ctx context.Context, accountID string, target int64) (int64, error) {
	if target < 0 {
		return 0, eris.Errorf("ledger: target balance must be non-negative, got %d", target)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: begin set balance")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM credit_accounts WHERE account_id = $1 FOR UPDATE`,
		accountID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, eris.Wrap(err, "ledger: lock account")
	}

	delta := target - current
	if delta == 0 {
		return current, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE credit_accounts SET balance = $1, updated_at = now() WHERE account_id = $2`,
		target, accountID,
	); err != nil {
		return 0, eris.Wrap(err, "ledger: set balance")
	}

	// Signed amount convention: positive = debit. A raise is a credit.
	op := model.OpAdminCreditAddition
	if delta < 0 {
		op = model.OpAdminCreditDeduction
	}
	txnAmount := -delta
	if err := l.insertTransaction(ctx, tx, model.CreditTransaction{
		AccountID: accountID,
		Operation: op,
		Amount:    txnAmount,
		Status:    model.TransactionCompleted,
		Note:      "admin set balance",
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "ledger: commit set balance")
	}
	return target, nil
}

func (l *PostgresLedger) Transactions(ctx context.Context, accountID string, limit int) ([]model.CreditTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, account_id, operation, amount, COALESCE(linked_resource_id, ''), status, COALESCE(note, ''), created_at
		 FROM credit_transactions WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`,
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

func (l *PostgresLedger) RecordReconciliation(ctx context.Context, ev model.ReconciliationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO reconciliation_events (id, account_id, operation, linked_resource_id, amount, cause, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		ev.ID, ev.AccountID, string(ev.Operation), ev.LinkedResourceID, ev.Amount, ev.Cause,
	)
	return eris.Wrap(err, "ledger: record reconciliation event")
}

// execer covers both the pool and an open transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (l *PostgresLedger) insertTransaction(ctx context.Context, ex execer, t model.CreditTransaction) error {
	_, err := ex.Exec(ctx,
		`INSERT INTO credit_transactions (id, account_id, operation, amount, linked_resource_id, status, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		uuid.New().String(), t.AccountID, string(t.Operation), t.Amount, t.LinkedResourceID, string(t.Status), t.Note,
	)
	return eris.Wrap(err, "ledger: insert transaction")
}
