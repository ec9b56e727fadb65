package studio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobColumns = "id, episode_id, scene_index, status, progress, output_path, error, created_at"

// CreateJob records a freshly submitted job. The id comes from the generator
// service; an existing id surfaces ErrDuplicateJob.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("job id is empty")
	}
	if job.Status == "" {
		job.Status = JobQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.EpisodeID,
		job.SceneIndex,
		job.Status,
		job.Progress,
		nullableString(job.OutputPath),
		nullableString(job.ErrorMessage),
		job.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by identifier. Missing jobs return (nil, nil).
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListActiveJobs returns every non-terminal job ordered by creation time.
// The single query gives the reconciliation loop a consistent snapshot.
func (s *Store) ListActiveJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (?, ?) ORDER BY created_at`,
		JobQueued,
		JobRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobs returns all jobs, optionally filtered by episode, newest first.
// Stale jobs for a regenerated scene remain in the result as history.
func (s *Store) ListJobs(ctx context.Context, episodeID int64) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if episodeID > 0 {
		rows, err = s.db.QueryContext(
			ensureContext(ctx),
			`SELECT `+jobColumns+` FROM jobs WHERE episode_id = ? ORDER BY created_at DESC`,
			episodeID,
		)
	} else {
		rows, err = s.db.QueryContext(
			ensureContext(ctx),
			`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// UpdateJobStatus applies a status transition with compare-and-set semantics:
// the write succeeds only while the stored status is still non-terminal, so a
// reconciliation update and a cancel racing on the same job resolve
// deterministically. The loser receives ErrJobTerminal.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status JobStatus, update JobUpdate) error {
	if _, ok := jobStatusSet[status]; !ok {
		return fmt.Errorf("unknown job status %q", status)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, progress = ?, output_path = ?, error = ?
         WHERE id = ? AND status IN (?, ?)`,
		status,
		update.Progress,
		nullableString(update.OutputPath),
		nullableString(update.ErrorMessage),
		id,
		JobQueued,
		JobRunning,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	existing, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return fmt.Errorf("%w: %s is %s", ErrJobTerminal, id, existing.Status)
}

// JobStats returns a count of jobs grouped by status.
func (s *Store) JobStats(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id         string
		episodeID  int64
		sceneIndex int64
		statusStr  string
		progress   sql.NullInt64
		outputPath sql.NullString
		errMessage sql.NullString
		createdRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&episodeID,
		&sceneIndex,
		&statusStr,
		&progress,
		&outputPath,
		&errMessage,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		EpisodeID:    episodeID,
		SceneIndex:   sceneIndex,
		Status:       JobStatus(statusStr),
		Progress:     int(progress.Int64),
		OutputPath:   outputPath.String,
		ErrorMessage: errMessage.String,
	}
	created, err := parseTimeString(createdRaw.String)
	if err != nil {
		return nil, fmt.Errorf("job %s: parse created_at %q: %w", id, createdRaw.String, err)
	}
	job.CreatedAt = created
	return job, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: jobs.id")
}
