package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xkilldash9x/courier-cli/api/schemas"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// schemaDDL is idempotent so Connect can run it on every startup.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS outreach_runs (
    run_id          TEXT PRIMARY KEY,
    started_at      TIMESTAMPTZ NOT NULL,
    finished_at     TIMESTAMPTZ NOT NULL,
    total           INTEGER NOT NULL,
    sent            INTEGER NOT NULL,
    skipped         INTEGER NOT NULL,
    failed          INTEGER NOT NULL,
    rate_limit_hits INTEGER NOT NULL,
    ended_early     BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS outreach_outcomes (
    run_id         TEXT NOT NULL,
    profile_url    TEXT NOT NULL,
    prospect_name  TEXT NOT NULL,
    status         TEXT NOT NULL,
    reason         TEXT NOT NULL,
    error          TEXT NOT NULL,
    message_text   TEXT NOT NULL,
    message_source TEXT NOT NULL,
    started_at     TIMESTAMPTZ NOT NULL,
    finished_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS outreach_outcomes_run_id_idx
    ON outreach_outcomes (run_id);
`

const sqlInsertRun = `
INSERT INTO outreach_runs (run_id, started_at, finished_at, total, sent, skipped, failed, rate_limit_hits, ended_early)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (run_id) DO UPDATE SET
    started_at = EXCLUDED.started_at,
    finished_at = EXCLUDED.finished_at,
    total = EXCLUDED.total,
    sent = EXCLUDED.sent,
    skipped = EXCLUDED.skipped,
    failed = EXCLUDED.failed,
    rate_limit_hits = EXCLUDED.rate_limit_hits,
    ended_early = EXCLUDED.ended_early;
`

// outcomeColumns is the CopyFrom column order for outreach_outcomes.
var outcomeColumns = []string{
	"run_id", "profile_url", "prospect_name",
	"status", "reason", "error",
	"message_text", "message_source",
	"started_at", "finished_at",
}

// Store provides a PostgreSQL implementation of the HistoryStore interface.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Connect opens a pgx pool for the configured URL, verifies connectivity and
// ensures the outreach schema exists. The returned closer releases the pool.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// EnsureSchema creates the history tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return nil
}

// RecordRun upserts the batch summary. Re-recording the same run id replaces
// the previous row, so retried bookkeeping stays idempotent.
func (s *Store) RecordRun(ctx context.Context, summary schemas.RunSummary) error {
	_, err := s.pool.Exec(ctx, sqlInsertRun,
		summary.RunID,
		// FIX: Ensure timestamps are in UTC before insertion to prevent ambiguity.
		summary.StartedAt.UTC(),
		summary.FinishedAt.UTC(),
		summary.Total,
		summary.Sent,
		summary.Skipped,
		summary.Failed,
		summary.RateLimitHits,
		summary.EndedEarly,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run summary: %w", err)
	}
	return nil
}

// RecordOutcomes bulk-inserts per-prospect outcomes for a run inside a single
// transaction.
func (s *Store) RecordOutcomes(ctx context.Context, runID string, outcomes []schemas.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Use errors.Is to correctly check for pgx.ErrTxClosed, even if wrapped.
		// This prevents spurious error logs when Rollback is called on an already committed (closed) transaction.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	rows := make([][]any, len(outcomes))
	for i, o := range outcomes {
		var msgText, msgSource string
		if o.Message != nil {
			msgText = o.Message.Text
			msgSource = string(o.Message.Source)
		}

		rows[i] = []any{
			runID, o.Prospect.ProfileURL, o.Prospect.Name,
			string(o.Status), string(o.Reason), o.Error,
			msgText, msgSource,
			o.StartedAt.UTC(), o.FinishedAt.UTC(),
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"outreach_outcomes"},
		outcomeColumns,
		pgx.CopyFromRows(rows),
	)

	if err != nil {
		return fmt.Errorf("failed to copy outcomes: %w", err)
	}
	if int(copyCount) != len(outcomes) {
		return fmt.Errorf("mismatch in copied outcomes count: expected %d, got %d", len(outcomes), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
