package jobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"docpipe/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_status (
	table_name   TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	sort_key     TEXT NOT NULL DEFAULT '',
	job_id       TEXT NOT NULL DEFAULT '',
	job_status   TEXT NOT NULL DEFAULT '',
	output_path  TEXT NOT NULL DEFAULT '',
	output_type  TEXT NOT NULL DEFAULT '',
	summary_text TEXT NOT NULL DEFAULT '',
	bucket_name  TEXT NOT NULL DEFAULT '',
	object_name  TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (table_name, document_id, sort_key)
)`

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	DialTimeout time.Duration

	// Migrate creates the job_status table when missing.
	Migrate bool

	Logger *slog.Logger
}

// Postgres serves the status tables from a single job_status table, for
// deployments that mirror the worker tables into Postgres.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects to the database and optionally creates the schema.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres DSN is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "docpipe"

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Migrate {
		if _, err := pool.Exec(ctx, schema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create job_status table: %w", err)
		}
	}

	cfg.Logger.Info("Connected to job-status database")
	return &Postgres{pool: pool, logger: cfg.Logger}, nil
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]models.Record, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	sql := `SELECT document_id, sort_key, job_id, job_status, output_path, output_type, summary_text, updated_at
		FROM job_status WHERE table_name = $1 AND document_id = $2`
	args := []any{q.Table, q.DocumentID}
	if q.SortKey != "" {
		sql += ` AND sort_key = $3`
		args = append(args, q.SortKey)
	}
	sql += ` ORDER BY sort_key`

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s for %s: %w", q.Table, q.DocumentID, err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Record, error) {
		var r models.Record
		err := row.Scan(&r.DocumentID, &r.SortKey, &r.JobID, &r.Status, &r.OutputPath, &r.OutputType, &r.SummaryText, &r.UpdatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s rows for %s: %w", q.Table, q.DocumentID, err)
	}
	return records, nil
}

// ListDocuments pages by offset. The page token is the offset of the next page.
func (p *Postgres) ListDocuments(ctx context.Context, table string, pageSize int, pageToken string) (*models.DocumentPage, error) {
	if table == "" {
		return nil, ErrInvalidQuery
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}

	// One extra row tells whether another page exists.
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT ON (document_id) document_id, bucket_name, object_name, job_id, job_status
		FROM job_status WHERE table_name = $1
		ORDER BY document_id, updated_at DESC
		LIMIT $2 OFFSET $3`, table, pageSize+1, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents in %s: %w", table, err)
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DocumentSummary, error) {
		var d models.DocumentSummary
		err := row.Scan(&d.DocumentID, &d.Bucket, &d.ObjectName, &d.JobID, &d.Status)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read documents in %s: %w", table, err)
	}

	page := &models.DocumentPage{Documents: docs}
	if len(docs) > pageSize {
		page.Documents = docs[:pageSize]
		page.NextPageToken = strconv.Itoa(offset + pageSize)
	}
	return page, nil
}

// Upsert writes a record into table, replacing the row with the same keys.
func (p *Postgres) Upsert(ctx context.Context, table string, r models.Record) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO job_status (table_name, document_id, sort_key, job_id, job_status, output_path, output_type, summary_text, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (table_name, document_id, sort_key) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			job_status = EXCLUDED.job_status,
			output_path = EXCLUDED.output_path,
			output_type = EXCLUDED.output_type,
			summary_text = EXCLUDED.summary_text,
			updated_at = now()`,
		table, r.DocumentID, r.SortKey, r.JobID, r.Status, r.OutputPath, r.OutputType, r.SummaryText)
	if err != nil {
		return fmt.Errorf("failed to upsert %s record %s/%s: %w", table, r.DocumentID, r.SortKey, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
