package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS export_jobs (
	id           TEXT PRIMARY KEY,
	description  TEXT NOT NULL,
	folder       TEXT NOT NULL,
	scale        REAL NOT NULL,
	crs          TEXT NOT NULL,
	max_pixels   REAL NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	submitted_at TEXT NOT NULL,
	updated_at   TEXT NOT NULL
)`

// Record is one row of the ledger.
type Record struct {
	ID          string
	Description string
	Folder      string
	Scale       float64
	CRS         string
	MaxPixels   float64
	Status      Status
	Error       string
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Ledger keeps export job states in a SQLite database so runs can be
// inspected after the process exits.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

var _ StatusRecorder = (*Ledger)(nil)

// OpenLedger opens or creates the ledger database at path.
func OpenLedger(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// One connection keeps writes from concurrent workers serialised.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts the job on first sight and updates its status after.
func (l *Ledger) Record(ctx context.Context, job Job, status Status, jobErr error) error {
	now := l.now().UTC().Format(time.RFC3339Nano)
	var errText string
	if jobErr != nil {
		errText = jobErr.Error()
	}
	query, args, err := sq.Insert("export_jobs").
		Columns("id", "description", "folder", "scale", "crs", "max_pixels", "status", "error", "submitted_at", "updated_at").
		Values(job.ID, job.Description, job.Folder, job.Scale, job.CRS, job.MaxPixels, string(status), errText, now, now).
		Suffix("ON CONFLICT(id) DO UPDATE SET status = excluded.status, error = excluded.error, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record job %s: %w", job.ID, err)
	}
	return nil
}

// List returns ledger rows, oldest submission first. A non-empty status
// filters on it.
func (l *Ledger) List(ctx context.Context, status Status) ([]Record, error) {
	b := sq.Select("id", "description", "folder", "scale", "crs", "max_pixels", "status", "error", "submitted_at", "updated_at").
		From("export_jobs").
		OrderBy("submitted_at", "description")
	if status != "" {
		b = b.Where(sq.Eq{"status": string(status)})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var status, submitted, updated string
		if err := rows.Scan(&rec.ID, &rec.Description, &rec.Folder, &rec.Scale, &rec.CRS, &rec.MaxPixels,
			&status, &rec.Error, &submitted, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		rec.Status = Status(status)
		if rec.SubmittedAt, err = time.Parse(time.RFC3339Nano, submitted); err != nil {
			return nil, err
		}
		if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
