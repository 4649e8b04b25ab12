package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/draftzen/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS drafts (
	id            TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL,
	topic_keyword TEXT NOT NULL,
	candidates    TEXT,
	outline       TEXT,
	description   TEXT,
	keywords      TEXT,
	include_terms TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_drafts_account ON drafts(account_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDraft(ctx context.Context, draft *model.Draft) (*model.Draft, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	candidates, err := json.Marshal(draft.Candidates)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal candidates")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, account_id, topic_keyword, candidates, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, draft.AccountID, draft.TopicKeyword, string(candidates), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert draft")
	}

	out := *draft
	out.ID = id
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

func (s *SQLiteStore) GetDraft(ctx context.Context, accountID, draftID string) (*model.Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, topic_keyword, COALESCE(candidates, ''), COALESCE(outline, ''), COALESCE(description, ''), COALESCE(keywords, ''), COALESCE(include_terms, ''), created_at, updated_at
		 FROM drafts WHERE id = ? AND account_id = ?`,
		draftID, accountID,
	)
	return scanSQLiteDraft(row)
}

func (s *SQLiteStore) ListDrafts(ctx context.Context, accountID string, filter DraftFilter) ([]model.Draft, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, topic_keyword, COALESCE(candidates, ''), COALESCE(outline, ''), COALESCE(description, ''), COALESCE(keywords, ''), COALESCE(include_terms, ''), created_at, updated_at
		 FROM drafts WHERE account_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		accountID, limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list drafts")
	}
	defer rows.Close()

	var out []model.Draft
	for rows.Next() {
		d, err := scanSQLiteDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteDraft(ctx context.Context, accountID, draftID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM drafts WHERE id = ? AND account_id = ?`,
		draftID, accountID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete draft")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDraftNotFound
	}
	return nil
}

func (s *SQLiteStore) SetOutline(ctx context.Context, accountID, draftID string, outline *model.OutlineResult) error {
	payload, err := json.Marshal(outline)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal outline")
	}
	return s.setColumn(ctx, accountID, draftID, "outline", string(payload))
}

func (s *SQLiteStore) SetDescription(ctx context.Context, accountID, draftID string, description string) error {
	return s.setColumn(ctx, accountID, draftID, "description", description)
}

func (s *SQLiteStore) SetKeywords(ctx context.Context, accountID, draftID string, keywords []model.KeywordIdea) error {
	payload, err := json.Marshal(keywords)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal keywords")
	}
	return s.setColumn(ctx, accountID, draftID, "keywords", string(payload))
}

func (s *SQLiteStore) SetIncludeTerms(ctx context.Context, accountID, draftID string, terms []model.KeywordTerm) error {
	payload, err := json.Marshal(terms)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal include terms")
	}
	return s.setColumn(ctx, accountID, draftID, "include_terms", string(payload))
}

func (s *SQLiteStore) setColumn(ctx context.Context, accountID, draftID, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET `+column+` = ?, updated_at = datetime('now') WHERE id = ? AND account_id = ?`,
		value, draftID, accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set %s", column)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDraftNotFound
	}
	return nil
}

func scanSQLiteDraft(row rowScanner) (*model.Draft, error) {
	var (
		d            model.Draft
		candidates   string
		outline      string
		keywords     string
		includeTerms string
	)
	err := row.Scan(&d.ID, &d.AccountID, &d.TopicKeyword, &candidates, &outline, &d.Description, &keywords, &includeTerms, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan draft")
	}

	if candidates != "" {
		if err := json.Unmarshal([]byte(candidates), &d.Candidates); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal candidates")
		}
	}
	if outline != "" {
		if err := json.Unmarshal([]byte(outline), &d.Outline); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal outline")
		}
	}
	if keywords != "" {
		if err := json.Unmarshal([]byte(keywords), &d.Keywords); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal keywords")
		}
	}
	if includeTerms != "" {
		if err := json.Unmarshal([]byte(includeTerms), &d.IncludeTerms); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal include terms")
		}
	}
	return &d, nil
}
