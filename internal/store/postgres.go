package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/draftzen/internal/db"
	"github.com/sells-group/draftzen/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
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
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests and by callers
// sharing one pool with the ledger.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool so the ledger can share it.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS drafts (
	id            TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL,
	topic_keyword TEXT NOT NULL,
	candidates    JSONB,
	outline       JSONB,
	description   TEXT,
	keywords      JSONB,
	include_terms JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_drafts_account ON drafts(account_id, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateDraft(ctx context.Context, draft *model.Draft) (*model.Draft, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	candidates, err := json.Marshal(draft.Candidates)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal candidates")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO drafts (id, account_id, topic_keyword, candidates, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, draft.AccountID, draft.TopicKeyword, candidates, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert draft")
	}

	out := *draft
	out.ID = id
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

func (s *PostgresStore) GetDraft(ctx context.Context, accountID, draftID string) (*model.Draft, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, account_id, topic_keyword, candidates, outline, COALESCE(description, ''), keywords, include_terms, created_at, updated_at
		 FROM drafts WHERE id = $1 AND account_id = $2`,
		draftID, accountID,
	)
	return scanDraft(row)
}

func (s *PostgresStore) ListDrafts(ctx context.Context, accountID string, filter DraftFilter) ([]model.Draft, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, topic_keyword, candidates, outline, COALESCE(description, ''), keywords, include_terms, created_at, updated_at
		 FROM drafts WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list drafts")
	}
	defer rows.Close()

	var out []model.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteDraft(ctx context.Context, accountID, draftID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM drafts WHERE id = $1 AND account_id = $2`,
		draftID, accountID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: delete draft")
	}
	if tag.RowsAffected() == 0 {
		return ErrDraftNotFound
	}
	return nil
}

func (s *PostgresStore) SetOutline(ctx context.Context, accountID, draftID string, outline *model.OutlineResult) error {
	payload, err := json.Marshal(outline)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal outline")
	}
	return s.setColumn(ctx, accountID, draftID, "outline", payload)
}

func (s *PostgresStore) SetDescription(ctx context.Context, accountID, draftID string, description string) error {
	return s.setColumn(ctx, accountID, draftID, "description", description)
}

func (s *PostgresStore) SetKeywords(ctx context.Context, accountID, draftID string, keywords []model.KeywordIdea) error {
	payload, err := json.Marshal(keywords)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal keywords")
	}
	return s.setColumn(ctx, accountID, draftID, "keywords", payload)
}

func (s *PostgresStore) SetIncludeTerms(ctx context.Context, accountID, draftID string, terms []model.KeywordTerm) error {
	payload, err := json.Marshal(terms)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal include terms")
	}
	return s.setColumn(ctx, accountID, draftID, "include_terms", payload)
}

// setColumn updates one enrichment column. The column name comes from a
// fixed caller-side set, never from input.
func (s *PostgresStore) setColumn(ctx context.Context, accountID, draftID, column string, value any) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET `+column+` = $1, updated_at = now() WHERE id = $2 AND account_id = $3`,
		value, draftID, accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set %s", column)
	}
	if tag.RowsAffected() == 0 {
		return ErrDraftNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*model.Draft, error) {
	var (
		d            model.Draft
		candidates   []byte
		outline      []byte
		keywords     []byte
		includeTerms []byte
	)
	err := row.Scan(&d.ID, &d.AccountID, &d.TopicKeyword, &candidates, &outline, &d.Description, &keywords, &includeTerms, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan draft")
	}

	if len(candidates) > 0 {
		if err := json.Unmarshal(candidates, &d.Candidates); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal candidates")
		}
	}
	if len(outline) > 0 {
		if err := json.Unmarshal(outline, &d.Outline); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal outline")
		}
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &d.Keywords); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal keywords")
		}
	}
	if len(includeTerms) > 0 {
		if err := json.Unmarshal(includeTerms, &d.IncludeTerms); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal include terms")
		}
	}
	return &d, nil
}
