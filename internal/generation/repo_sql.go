package generation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"creditmemo-backend/internal/shared/storage/db"
)

// SQLRepo implements JobsRepo on Postgres or SQLite.
type SQLRepo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

// NewSQLRepo constructs a SQLRepo.
func NewSQLRepo(conn *sql.DB, dialect db.Dialect) *SQLRepo {
	return &SQLRepo{DB: conn, Dialect: dialect}
}

const jobColumns = `id, document_id, provider, methodology_id, status, memo_id, error_code, error_message, created_at, started_at, completed_at`

// Create inserts a new job.
func (r *SQLRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO generation_jobs (
    id,
    document_id,
    provider,
    methodology_id,
    status,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6)`

	status := job.Status
	if status == "" {
		status = StatusRequested
	}
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		job.ID,
		job.DocumentID,
		job.Provider,
		nullString(job.MethodologyID),
		string(status),
		job.CreatedAt,
	)
	return err
}

// GetByID returns a job by ID.
func (r *SQLRepo) GetByID(ctx context.Context, id string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// ListByDocument lists the jobs of a document ordered oldest first.
func (r *SQLRepo) ListByDocument(ctx context.Context, documentID string) ([]Job, error) {
	query := `SELECT ` + jobColumns + `
FROM generation_jobs
WHERE document_id = $1
ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// MarkRunning moves a requested job to running.
func (r *SQLRepo) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	const query = `
UPDATE generation_jobs
SET status = $1, started_at = $2
WHERE id = $3 AND status = $4`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		string(StatusRunning),
		startedAt,
		id,
		string(StatusRequested),
	)
	if err != nil {
		return err
	}
	return r.explainNoUpdate(ctx, res, id)
}

// MarkCompleted moves a running job to completed.
func (r *SQLRepo) MarkCompleted(ctx context.Context, id, memoID string, completedAt time.Time) error {
	const query = `
UPDATE generation_jobs
SET status = $1, memo_id = $2, completed_at = $3
WHERE id = $4 AND status = $5`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		string(StatusCompleted),
		memoID,
		completedAt,
		id,
		string(StatusRunning),
	)
	if err != nil {
		return err
	}
	return r.explainNoUpdate(ctx, res, id)
}

// MarkFailed moves a non-terminal job to failed.
func (r *SQLRepo) MarkFailed(ctx context.Context, id, code, message string, completedAt time.Time) error {
	const query = `
UPDATE generation_jobs
SET status = $1, error_code = $2, error_message = $3, completed_at = $4
WHERE id = $5 AND status IN ($6, $7)`
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query),
		string(StatusFailed),
		nullString(code),
		nullString(message),
		completedAt,
		id,
		string(StatusRequested),
		string(StatusRunning),
	)
	if err != nil {
		return err
	}
	return r.explainNoUpdate(ctx, res, id)
}

// explainNoUpdate maps a guarded UPDATE that touched no rows to ErrNotFound
// or ErrInvalidState.
func (r *SQLRepo) explainNoUpdate(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var status string
	err = r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`SELECT status FROM generation_jobs WHERE id = $1`), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidState
}

// DeleteByDocument removes every job of a document.
func (r *SQLRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM generation_jobs WHERE document_id = $1`), documentID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var methodologyID sql.NullString
	var status string
	var memoID sql.NullString
	var errorCode sql.NullString
	var errorMessage sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	if err := row.Scan(
		&job.ID,
		&job.DocumentID,
		&job.Provider,
		&methodologyID,
		&status,
		&memoID,
		&errorCode,
		&errorMessage,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return Job{}, err
	}
	job.MethodologyID = methodologyID.String
	job.Status = Status(status)
	job.MemoID = memoID.String
	job.ErrorCode = errorCode.String
	job.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ JobsRepo = (*SQLRepo)(nil)
