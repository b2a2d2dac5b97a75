package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS digests (
    id          BIGSERIAL PRIMARY KEY,
    user_id     TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    topics      TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS digest_results (
    id              UUID PRIMARY KEY,
    user_id         TEXT NOT NULL,
    result_date     DATE NOT NULL,
    digest_name     TEXT NOT NULL,
    arxiv_id        TEXT NOT NULL,
    relevancy_score INTEGER NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, result_date, digest_name, arxiv_id)
);`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository reads digests from and writes digest results to Postgres.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.DocumentStore = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresRepository(db, logger), nil
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ListUsers loads every digest with a user id and groups them by user.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]domain.User, error) {
	query, args, err := psql.
		Select("user_id", "name", "topics", "description").
		From("digests").
		Where(sq.NotEq{"user_id": ""}).
		OrderBy("user_id", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build digests query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	defer rows.Close()

	var records []digestRow
	for rows.Next() {
		var rec digestRow
		if err := rows.Scan(&rec.UserID, &rec.Name, &rec.Topics, &rec.Description); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return groupUsers(records, r.logger), nil
}

// AppendResult upserts one digest result; rerunning a day overwrites the
// score and reason of a paper already stored under the same key.
func (r *PostgresRepository) AppendResult(ctx context.Context, key domain.ResultKey, result domain.DigestResult) error {
	query, args, err := psql.
		Insert("digest_results").
		Columns("id", "user_id", "result_date", "digest_name", "arxiv_id", "relevancy_score", "reason").
		Values(uuid.NewString(), key.UserID, key.Date, key.DigestName, result.ArxivID, result.RelevancyScore, result.Reason).
		Suffix(`ON CONFLICT (user_id, result_date, digest_name, arxiv_id) DO UPDATE
              SET relevancy_score = EXCLUDED.relevancy_score,
                  reason = EXCLUDED.reason,
                  updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build result insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// ClearResults deletes the results of one (user, date, digest) key.
func (r *PostgresRepository) ClearResults(ctx context.Context, key domain.ResultKey) error {
	query, args, err := psql.
		Delete("digest_results").
		Where("user_id = ? AND result_date = ? AND digest_name = ?", key.UserID, key.Date, key.DigestName).
		ToSql()
	if err != nil {
		return fmt.Errorf("build result delete: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
