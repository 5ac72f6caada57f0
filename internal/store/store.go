// Package store is the local offline-first entity store. It is the
// authoritative copy: remote state is a mirror maintained by the sync engine.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shuttertrack/shuttertrack/internal/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when the requested entity does not exist locally.
var ErrNotFound = errors.New("entity not found")

// Store persists jobs and job types in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens the local entity database at path and creates the schema when
// missing.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("entity store path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create entity store directory: %w", err)
		}
	}
	// modernc only honors pragmas in the _pragma=name(value) form.
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open entity db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping entity db: %w", err)
	}
	if err := createSchema(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func createSchema(sqlDB *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			local_id    TEXT PRIMARY KEY,
			remote_id   TEXT NOT NULL DEFAULT '',
			client_name TEXT NOT NULL,
			title       TEXT NOT NULL,
			location    TEXT NOT NULL DEFAULT '',
			shoot_date  INTEGER NOT NULL DEFAULT 0,
			fee_cents   INTEGER NOT NULL DEFAULT 0,
			notes       TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'inquiry',
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_remote_id ON jobs(remote_id)`,
		`CREATE TABLE IF NOT EXISTS job_types (
			local_id   TEXT PRIMARY KEY,
			remote_id  TEXT NOT NULL DEFAULT '',
			name       TEXT NOT NULL,
			base_fee   INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_types_remote_id ON job_types(remote_id)`,
	}
	for _, stmt := range schema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// ListJobs returns all jobs ordered by shoot date.
func (s *Store) ListJobs(ctx context.Context) ([]*models.Job, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT local_id, remote_id, client_name, title, location, shoot_date,
       fee_cents, notes, status, created_at, updated_at
FROM jobs ORDER BY shoot_date ASC, local_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*models.Job
	for rows.Next() {
		var job models.Job
		var shootDate, createdAt, updatedAt int64
		if err := rows.Scan(
			&job.LocalID, &job.RemoteID, &job.ClientName, &job.Title, &job.Location,
			&shootDate, &job.FeeCents, &job.Notes, &job.Status,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.ShootDate = fromMillis(shootDate)
		job.CreatedAt = fromMillis(createdAt)
		job.UpdatedAt = fromMillis(updatedAt)
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

// GetJob fetches one job by its local id.
func (s *Store) GetJob(ctx context.Context, localID string) (*models.Job, error) {
	var job models.Job
	var shootDate, createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT local_id, remote_id, client_name, title, location, shoot_date,
       fee_cents, notes, status, created_at, updated_at
FROM jobs WHERE local_id = ?`, localID).Scan(
		&job.LocalID, &job.RemoteID, &job.ClientName, &job.Title, &job.Location,
		&shootDate, &job.FeeCents, &job.Notes, &job.Status,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	job.ShootDate = fromMillis(shootDate)
	job.CreatedAt = fromMillis(createdAt)
	job.UpdatedAt = fromMillis(updatedAt)
	return &job, nil
}

// InsertJob assigns a fresh local id and stores the job. Timestamps are set
// when the caller left them zero.
func (s *Store) InsertJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	if job.ClientName == "" && job.Title == "" {
		return nil, fmt.Errorf("job needs a client name or title")
	}
	stored := *job
	stored.LocalID = uuid.NewString()
	now := s.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	// A caller-supplied stamp survives, so records copied in from the remote
	// store do not read as locally edited.
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	if stored.Status == "" {
		stored.Status = models.JobStatusInquiry
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO jobs (local_id, remote_id, client_name, title, location, shoot_date,
                  fee_cents, notes, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.LocalID, stored.RemoteID, stored.ClientName, stored.Title, stored.Location,
		toMillis(stored.ShootDate), stored.FeeCents, stored.Notes, stored.Status,
		toMillis(stored.CreatedAt), toMillis(stored.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return &stored, nil
}

// UpdateJob overwrites the stored job and bumps updated_at.
func (s *Store) UpdateJob(ctx context.Context, job *models.Job) error {
	if job.LocalID == "" {
		return fmt.Errorf("job local id is required")
	}
	job.UpdatedAt = s.now().UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE jobs SET remote_id = ?, client_name = ?, title = ?, location = ?,
                shoot_date = ?, fee_cents = ?, notes = ?, status = ?, updated_at = ?
WHERE local_id = ?`,
		job.RemoteID, job.ClientName, job.Title, job.Location,
		toMillis(job.ShootDate), job.FeeCents, job.Notes, job.Status,
		toMillis(job.UpdatedAt), job.LocalID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetJobRemoteID records the provider-assigned key without bumping
// updated_at, so acquiring a remote id does not read as a local edit.
func (s *Store) SetJobRemoteID(ctx context.Context, localID, remoteID string) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE jobs SET remote_id = ? WHERE local_id = ?`, remoteID, localID)
	if err != nil {
		return fmt.Errorf("set job remote id: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set job remote id: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteJob removes the job. Deleting an absent job returns ErrNotFound.
func (s *Store) DeleteJob(ctx context.Context, localID string) error {
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM jobs WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListJobTypes returns all job types ordered by name.
func (s *Store) ListJobTypes(ctx context.Context) ([]*models.JobType, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT local_id, remote_id, name, base_fee, created_at, updated_at
FROM job_types ORDER BY name ASC, local_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list job types: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobTypes []*models.JobType
	for rows.Next() {
		var jobType models.JobType
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&jobType.LocalID, &jobType.RemoteID, &jobType.Name, &jobType.BaseFee,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job type: %w", err)
		}
		jobType.CreatedAt = fromMillis(createdAt)
		jobType.UpdatedAt = fromMillis(updatedAt)
		jobTypes = append(jobTypes, &jobType)
	}
	return jobTypes, rows.Err()
}

// InsertJobType assigns a fresh local id and stores the job type.
func (s *Store) InsertJobType(ctx context.Context, jobType *models.JobType) (*models.JobType, error) {
	if jobType.Name == "" {
		return nil, fmt.Errorf("job type name is required")
	}
	stored := *jobType
	stored.LocalID = uuid.NewString()
	now := s.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO job_types (local_id, remote_id, name, base_fee, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		stored.LocalID, stored.RemoteID, stored.Name, stored.BaseFee,
		toMillis(stored.CreatedAt), toMillis(stored.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job type: %w", err)
	}
	return &stored, nil
}

// UpdateJobType overwrites the stored job type and bumps updated_at.
func (s *Store) UpdateJobType(ctx context.Context, jobType *models.JobType) error {
	if jobType.LocalID == "" {
		return fmt.Errorf("job type local id is required")
	}
	jobType.UpdatedAt = s.now().UTC()

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE job_types SET remote_id = ?, name = ?, base_fee = ?, updated_at = ?
WHERE local_id = ?`,
		jobType.RemoteID, jobType.Name, jobType.BaseFee,
		toMillis(jobType.UpdatedAt), jobType.LocalID,
	)
	if err != nil {
		return fmt.Errorf("update job type: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job type: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetJobTypeRemoteID records the provider-assigned key without bumping
// updated_at.
func (s *Store) SetJobTypeRemoteID(ctx context.Context, localID, remoteID string) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE job_types SET remote_id = ? WHERE local_id = ?`, remoteID, localID)
	if err != nil {
		return fmt.Errorf("set job type remote id: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set job type remote id: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteJobType removes the job type.
func (s *Store) DeleteJobType(ctx context.Context, localID string) error {
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM job_types WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("delete job type: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job type: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
