package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// FilingRepository stores filings with their files and outcome as JSONB.
// The outcome is always replaced as a whole.
type FilingRepository struct {
	db *sql.DB
}

func NewFilingRepository(db *sql.DB) *FilingRepository {
	return &FilingRepository{db: db}
}

func (r *FilingRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2025011501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS filings (
	id TEXT PRIMARY KEY,
	application_id TEXT NOT NULL,
	application_type TEXT NOT NULL,
	status TEXT NOT NULL,
	files JSONB NOT NULL DEFAULT '[]'::jsonb,
	outcome JSONB,
	system_status TEXT,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_filings_application_id ON filings(application_id);
CREATE INDEX IF NOT EXISTS idx_filings_status ON filings(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *FilingRepository) Create(ctx context.Context, filing *domain.Filing) error {
	filesJSON, err := json.Marshal(filing.Files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO filings (
	id, application_id, application_type, status, files, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		filing.ID, filing.ApplicationID, filing.ApplicationType, string(filing.Status), filesJSON,
		filing.Error, filing.CreatedAt, filing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert filing: %w", err)
	}
	return nil
}

func (r *FilingRepository) GetByID(ctx context.Context, id string) (*domain.Filing, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, application_id, application_type, status, files, outcome, error_message, created_at, updated_at
FROM filings
WHERE id = $1
`, id)

	var filing domain.Filing
	var filesRaw, outcomeRaw []byte
	var status string

	err := row.Scan(
		&filing.ID, &filing.ApplicationID, &filing.ApplicationType, &status, &filesRaw, &outcomeRaw,
		&filing.Error, &filing.CreatedAt, &filing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrFilingNotFound, "get filing", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan filing: %w", err)
	}

	if err := json.Unmarshal(filesRaw, &filing.Files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}
	if len(outcomeRaw) > 0 {
		var outcome domain.ApplicationOutcome
		if err := json.Unmarshal(outcomeRaw, &outcome); err != nil {
			return nil, fmt.Errorf("unmarshal outcome: %w", err)
		}
		filing.Outcome = &outcome
	}
	filing.Status = domain.FilingStatus(status)
	return &filing, nil
}

func (r *FilingRepository) UpdateStatus(ctx context.Context, id string, status domain.FilingStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE filings
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update filing status: %w", err)
	}
	return requireRow(res, "update filing status", id)
}

func (r *FilingRepository) SaveOutcome(ctx context.Context, id string, outcome domain.ApplicationOutcome) error {
	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE filings
SET outcome = $2, system_status = $3, updated_at = $4
WHERE id = $1
`, id, outcomeJSON, string(outcome.SystemStatus), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return requireRow(res, "save outcome", id)
}

func requireRow(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrFilingNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
