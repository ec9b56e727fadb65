package studio_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"storyreel/internal/studio"
	"storyreel/internal/testsupport"
)

func TestCreateAndGetJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := &studio.Job{ID: "job-1", EpisodeID: 1, SceneIndex: 3}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if job.Status != studio.JobQueued {
		t.Fatalf("expected default status queued, got %s", job.Status)
	}

	fetched, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if fetched == nil || fetched.EpisodeID != 1 || fetched.SceneIndex != 3 {
		t.Fatalf("unexpected job: %#v", fetched)
	}
	if fetched.Status != studio.JobQueued {
		t.Fatalf("expected queued, got %s", fetched.Status)
	}
	if fetched.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}

	missing, err := store.GetJob(ctx, "nope")
	if err != nil {
		t.Fatalf("GetJob missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown id, got %#v", missing)
	}
}

func TestCreateJobRejectsDuplicateID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.CreateJob(ctx, &studio.Job{ID: "dup", EpisodeID: 1, SceneIndex: 1}); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	err := store.CreateJob(ctx, &studio.Job{ID: "dup", EpisodeID: 1, SceneIndex: 2})
	if !errors.Is(err, studio.ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestListActiveJobsExcludesTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	seed := map[string]studio.JobStatus{
		"a": studio.JobQueued,
		"b": studio.JobRunning,
		"c": studio.JobCompleted,
		"d": studio.JobFailed,
		"e": studio.JobCancelled,
	}
	for id, status := range seed {
		if err := store.CreateJob(ctx, &studio.Job{ID: id, EpisodeID: 1, SceneIndex: 1, Status: status}); err != nil {
			t.Fatalf("CreateJob %s failed: %v", id, err)
		}
	}

	active, err := store.ListActiveJobs(ctx)
	if err != nil {
		t.Fatalf("ListActiveJobs failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active jobs, got %d", len(active))
	}
	for _, job := range active {
		if job.Status.IsTerminal() {
			t.Fatalf("terminal job %s in active list", job.ID)
		}
	}
}

func TestUpdateJobStatusTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.CreateJob(ctx, &studio.Job{ID: "j", EpisodeID: 1, SceneIndex: 1}); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	if err := store.UpdateJobStatus(ctx, "j", studio.JobRunning, studio.JobUpdate{Progress: 40}); err != nil {
		t.Fatalf("queued->running failed: %v", err)
	}
	job, err := store.GetJob(ctx, "j")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != studio.JobRunning || job.Progress != 40 {
		t.Fatalf("unexpected job after running update: %#v", job)
	}

	update := studio.JobUpdate{Progress: 100, OutputPath: "1/scene1_v2.mp4"}
	if err := store.UpdateJobStatus(ctx, "j", studio.JobCompleted, update); err != nil {
		t.Fatalf("running->completed failed: %v", err)
	}
	job, err = store.GetJob(ctx, "j")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != studio.JobCompleted || job.OutputPath != "1/scene1_v2.mp4" {
		t.Fatalf("unexpected job after completion: %#v", job)
	}
}

func TestUpdateJobStatusTerminalIsImmutable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.CreateJob(ctx, &studio.Job{ID: "j", EpisodeID: 1, SceneIndex: 1}); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := store.UpdateJobStatus(ctx, "j", studio.JobCancelled, studio.JobUpdate{}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// A late completion report must lose the race and leave the record alone.
	err := store.UpdateJobStatus(ctx, "j", studio.JobCompleted, studio.JobUpdate{OutputPath: "1/scene1_v1.mp4"})
	if !errors.Is(err, studio.ErrJobTerminal) {
		t.Fatalf("expected ErrJobTerminal, got %v", err)
	}

	job, err := store.GetJob(ctx, "j")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != studio.JobCancelled {
		t.Fatalf("expected cancelled to stick, got %s", job.Status)
	}
	if job.OutputPath != "" {
		t.Fatalf("expected output path untouched, got %q", job.OutputPath)
	}
}

func TestUpdateJobStatusUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	err := store.UpdateJobStatus(context.Background(), "ghost", studio.JobFailed, studio.JobUpdate{ErrorMessage: studio.LostJobError})
	if !errors.Is(err, studio.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestGetJobRejectsCorruptTimestamp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.CreateJob(ctx, &studio.Job{ID: "j", EpisodeID: 1, SceneIndex: 1}); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	db, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `UPDATE jobs SET created_at = 'not-a-time' WHERE id = 'j'`); err != nil {
		t.Fatalf("corrupt created_at: %v", err)
	}

	if _, err := store.GetJob(ctx, "j"); err == nil {
		t.Fatal("expected error for unparseable created_at")
	}
}

func TestJobStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i, status := range []studio.JobStatus{studio.JobQueued, studio.JobQueued, studio.JobCompleted} {
		job := &studio.Job{ID: string(rune('a' + i)), EpisodeID: 1, SceneIndex: int64(i), Status: status}
		if err := store.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}
	}

	stats, err := store.JobStats(ctx)
	if err != nil {
		t.Fatalf("JobStats failed: %v", err)
	}
	if stats[studio.JobQueued] != 2 || stats[studio.JobCompleted] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}
