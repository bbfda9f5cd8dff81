package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return pool, nil
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
  id          TEXT PRIMARY KEY,
  kind        TEXT NOT NULL,
  status      TEXT NOT NULL,
  input_path  TEXT NOT NULL,
  output_path TEXT NOT NULL DEFAULT '',
  detail      TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMPTZ NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL
)`)
	return err
}

// PostgresStore persists jobs in the jobs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, job Job) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
INSERT INTO jobs (id, kind, status, input_path, output_path, detail, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		job.ID, string(job.Kind), string(job.Status), job.InputPath, job.OutputPath, job.Detail, now)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Job, error) {
	var (
		job          Job
		kind, status string
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, kind, status, input_path, output_path, detail, created_at, updated_at
FROM jobs WHERE id = $1`, id).Scan(
		&job.ID, &kind, &status, &job.InputPath, &job.OutputPath, &job.Detail, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("select job %s: %w", id, err)
	}
	job.Kind = Kind(kind)
	job.Status = Status(status)
	return job, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status, outputPath, detail string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE jobs SET status = $2, output_path = $3, detail = $4, updated_at = $5
WHERE id = $1`, id, string(status), outputPath, detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)

// OpenStore returns a PostgresStore when dsn is set and a MemoryStore
// otherwise. The returned func releases the store's resources.
func OpenStore(ctx context.Context, dsn string) (Store, func(), error) {
	if dsn == "" {
		slog.Warn("DATABASE_URL is not set, job status is kept in memory")
		return NewMemoryStore(), func() {}, nil
	}
	pool, err := Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return NewPostgresStore(pool), pool.Close, nil
}
