package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Job statuses.
const (
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Region statuses.
const (
	RegionPending = "pending"
	RegionDone    = "done"
	RegionFailed  = "failed"
)

// ErrJobNotFound is returned by lookups that match no job row.
var ErrJobNotFound = errors.New("journal: job not found")

// JobRecord is one row of the jobs table: the identity and geometry of an
// outpaint run. Two runs with the same record are the same job and may
// resume each other's progress.
type JobRecord struct {
	ID         string
	ImagePath  string
	OutputPath string
	OutWidth   int
	OutHeight  int
	Square     int
	Step       int
	Prompt     string
	Fallback   string
	Status     string
}

// RegionRecord is one row of the regions table.
type RegionRecord struct {
	JobID     string
	Index     int
	Direction string
	X, Y      int
	Size      int
	Status    string
	Attempts  int
	LastError string
}

// Store reads and writes journal rows. A nil *Store is a valid no-op
// journal: every method succeeds without touching anything, which is how
// jobs run when journaling is disabled.
type Store struct {
	db *sql.DB
}

// Open migrates the journal schema and opens the store. The migration runs
// on its own connection because the migrator closes whatever it is given.
func Open(dbPath, migrationsPath string) (*Store, error) {
	if err := MigrateFromPath(dbPath, migrationsPath); err != nil {
		return nil, err
	}
	db, err := newConnection(DefaultConnectionConfig(dbPath))
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateJob inserts a new job row in running state.
func (s *Store) CreateJob(ctx context.Context, rec JobRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, image_path, output_path, out_width, out_height, square, step, prompt, fallback, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ImagePath, rec.OutputPath, rec.OutWidth, rec.OutHeight,
		rec.Square, rec.Step, rec.Prompt, rec.Fallback, JobRunning)
	if err != nil {
		return fmt.Errorf("journal: insert job: %w", err)
	}
	return nil
}

// FindResumable returns the most recent unfinished job with the same output
// path and geometry, or ErrJobNotFound.
func (s *Store) FindResumable(ctx context.Context, outputPath string, outW, outH, square, step int) (*JobRecord, error) {
	if s == nil {
		return nil, ErrJobNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, image_path, output_path, out_width, out_height, square, step, prompt, fallback, status
		FROM jobs
		WHERE output_path = ? AND out_width = ? AND out_height = ? AND square = ? AND step = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`,
		outputPath, outW, outH, square, step, JobRunning)

	var rec JobRecord
	err := row.Scan(&rec.ID, &rec.ImagePath, &rec.OutputPath, &rec.OutWidth, &rec.OutHeight,
		&rec.Square, &rec.Step, &rec.Prompt, &rec.Fallback, &rec.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journal: find resumable job: %w", err)
	}
	return &rec, nil
}

// SetJobStatus transitions a job to done or failed.
func (s *Store) SetJobStatus(ctx context.Context, jobID, status string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, jobID)
	if err != nil {
		return fmt.Errorf("journal: update job status: %w", err)
	}
	return nil
}

// InsertRegions records the planned regions for a job. Existing rows keep
// their progress, so re-running a resumed job is safe.
func (s *Store) InsertRegions(ctx context.Context, recs []RegionRecord) error {
	if s == nil || len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin insert regions: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO regions (job_id, region_index, direction, x, y, size, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("journal: prepare insert regions: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		status := rec.Status
		if status == "" {
			status = RegionPending
		}
		if _, err := stmt.ExecContext(ctx, rec.JobID, rec.Index, rec.Direction,
			rec.X, rec.Y, rec.Size, status); err != nil {
			return fmt.Errorf("journal: insert region %d: %w", rec.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit insert regions: %w", err)
	}
	return nil
}

// MarkRegion updates the status, attempt count and last error of one region.
func (s *Store) MarkRegion(ctx context.Context, jobID string, index int, status string, attempts int, lastError string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE regions
		SET status = ?, attempts = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE job_id = ? AND region_index = ?`,
		status, attempts, lastError, jobID, index)
	if err != nil {
		return fmt.Errorf("journal: update region %d: %w", index, err)
	}
	return nil
}

// DoneRegions returns the indexes of regions already completed for a job.
func (s *Store) DoneRegions(ctx context.Context, jobID string) (map[int]bool, error) {
	if s == nil {
		return map[int]bool{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT region_index FROM regions WHERE job_id = ? AND status = ?`,
		jobID, RegionDone)
	if err != nil {
		return nil, fmt.Errorf("journal: query done regions: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("journal: scan done region: %w", err)
		}
		done[idx] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate done regions: %w", err)
	}
	return done, nil
}

// Regions returns every region row for a job, ordered by index.
func (s *Store) Regions(ctx context.Context, jobID string) ([]RegionRecord, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, region_index, direction, x, y, size, status, attempts, last_error
		FROM regions WHERE job_id = ? ORDER BY region_index`,
		jobID)
	if err != nil {
		return nil, fmt.Errorf("journal: query regions: %w", err)
	}
	defer rows.Close()

	var recs []RegionRecord
	for rows.Next() {
		var rec RegionRecord
		if err := rows.Scan(&rec.JobID, &rec.Index, &rec.Direction, &rec.X, &rec.Y,
			&rec.Size, &rec.Status, &rec.Attempts, &rec.LastError); err != nil {
			return nil, fmt.Errorf("journal: scan region: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate regions: %w", err)
	}
	return recs, nil
}
