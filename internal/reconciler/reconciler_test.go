package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"storyreel/internal/services"
	"storyreel/internal/services/generator"
	"storyreel/internal/studio"
	"storyreel/internal/testsupport"
)

type fakeGenerator struct {
	mu     sync.Mutex
	states map[string]generator.JobState
	errs   map[string]error
	polls  map[string]int
	hook   func(jobID string)
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		states: make(map[string]generator.JobState),
		errs:   make(map[string]error),
		polls:  make(map[string]int),
	}
}

func (f *fakeGenerator) setState(jobID string, state generator.JobState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[jobID] = state
}

func (f *fakeGenerator) setError(jobID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[jobID] = err
}

func (f *fakeGenerator) Submit(ctx context.Context, req generator.SubmitRequest) (generator.SubmitResponse, error) {
	return generator.SubmitResponse{}, nil
}

func (f *fakeGenerator) statusCalls(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[jobID]
}

func (f *fakeGenerator) JobStatus(ctx context.Context, jobID string) (generator.JobState, error) {
	f.mu.Lock()
	f.polls[jobID]++
	hook := f.hook
	err := f.errs[jobID]
	state := f.states[jobID]
	f.mu.Unlock()
	if hook != nil {
		hook(jobID)
	}
	if err != nil {
		return generator.JobState{}, err
	}
	return state, nil
}

func (f *fakeGenerator) Cancel(ctx context.Context, jobID string) error { return nil }

func (f *fakeGenerator) Health(ctx context.Context) (generator.Health, error) {
	return generator.Health{Status: "ok"}, nil
}

func newTestManager(t *testing.T) (*Manager, *studio.Store, *fakeGenerator, int64) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ep := testsupport.NewEpisode(t, store, "Pilot")
	testsupport.SeedScenes(t, store, ep.ID, 0, 1)
	fake := newFakeGenerator()
	return NewManager(cfg, store, fake, nil), store, fake, ep.ID
}

func seedJob(t *testing.T, store *studio.Store, id string, episodeID, sceneIndex int64, status studio.JobStatus) {
	t.Helper()
	job := &studio.Job{ID: id, EpisodeID: episodeID, SceneIndex: sceneIndex, Status: status}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
}

func TestRunCycleCompletesJobAndAdvancesVersion(t *testing.T) {
	mgr, store, fake, episodeID := newTestManager(t)
	ctx := context.Background()
	seedJob(t, store, "job-a", episodeID, 0, studio.JobRunning)
	fake.setState("job-a", generator.JobState{
		Status: "completed", Progress: 100, OutputPath: "out/scene0_v2.mp4", Version: 2,
	})

	mgr.RunCycle(ctx)

	job, err := store.GetJob(ctx, "job-a")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != studio.JobCompleted || job.OutputPath != "out/scene0_v2.mp4" {
		t.Fatalf("unexpected job after cycle: %+v", job)
	}
	scene, err := store.GetScene(ctx, episodeID, 0)
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	if scene.LatestVersion != 2 {
		t.Fatalf("expected latest version 2, got %d", scene.LatestVersion)
	}
}

func TestRunCycleParsesVersionFromOutputPath(t *testing.T) {
	mgr, store, fake, episodeID := newTestManager(t)
	ctx := context.Background()
	seedJob(t, store, "job-b", episodeID, 1, studio.JobRunning)
	fake.setState("job-b", generator.JobState{
		Status: "completed", Progress: 100, OutputPath: "out/scene1_v4.mp4",
	})

	mgr.RunCycle(ctx)

	scene, err := store.GetScene(ctx, episodeID, 1)
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	if scene.LatestVersion != 4 {
		t.Fatalf("expected version parsed from path, got %d", scene.LatestVersion)
	}
}

func TestRunCycleTwiceWritesOnce(t *testing.T) {
	mgr, store, fake, episodeID := newTestManager(t)
	ctx := context.Background()
	seedJob(t, store, "job-i", episodeID, 0, studio.JobRunning)
	fake.setState("job-i", generator.JobState{
		Status: "completed", Progress: 100, OutputPath: "out/scene0_v3.mp4",
	})

	mgr.RunCycle(ctx)
	mgr.RunCycle(ctx)

	// The job went terminal on the first pass, so the second pass has
	// nothing to poll and nothing to write.
	if got := fake.statusCalls("job-i"); got != 1 {
		t.Fatalf("expected one poll across both cycles, got %d", got)
	}
	job, err := store.GetJob(ctx, "job-i")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != studio.JobCompleted {
		t.Fatalf("unexpected status %s", job.Status)
	}
	scene, err := store.GetScene(ctx, episodeID, 0)
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	if scene.LatestVersion != 3 {
		t.Fatalf("expected version 3 after both cycles, got %d", scene.LatestVersion)
	}
}

func TestRunCycleStaleCompletionLeavesLedger(t *testing.T) {
	mgr, store, fake, episodeID := newTestManager(t)
	ctx := context.Background()
	if _, err := store.AdvanceSceneVersion(ctx, episodeID, 0, 5); err != nil {
		t.Fatalf("AdvanceSceneVersion: %v", err)
	}
	seedJob(t, store, "job-c", episodeID, 0, studio.JobRunning)
	fake.setState("job-c", generator.JobState{Status: "completed", Version: 2})

	mgr.RunCycle(ctx)

	job, err := store.GetJob(ctx, "job-c")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != studio.JobCompleted {
		t.Fatalf("stale completion should still finish the job, got %s", job.Status)
	}
	scene, err := store.GetScene(ctx, episodeID, 0)
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	if scene.LatestVersion != 5 {
		t.Fatalf("ledger regressed to %d", scene.LatestVersion)
	}
}

func TestRunCycleMarksLostJobs(t *testing.T) {
	mgr, store, fake, episodeID := newTestManager(t)
	ctx := context.Background()
	seedJob(t, store, "job-d", episodeID, 0, studio.JobQueued)
	fake.setError("job-d", services.Wrap(services.ErrNotFound, "generator", "status", "job unknown", nil))

	mgr.RunCycle(ctx)

	job, err := store.GetJob(ctx, "job-d")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != studio.JobFailed {
		t.Fatalf("expected failed status, got %s", job.Status)
	}
	if job.ErrorMessage != studio.LostJobError {
		t.Fatalf("expected lost marker, got %q", job.ErrorMessage)
	}
}

func TestRunCycleLeavesJobOnTransientError(t *testing.T) {
	mgr, store, fake, episodeID := newTestManager(t)
	ctx := context.Background()
	seedJob(t, store, "job-e", episodeID, 0, studio.JobRunning)
	fake.setError("job-e", services.Wrap(services.ErrTransient, "generator", "status", "connection refused", nil))

	mgr.RunCycle(ctx)

	job, err := store.GetJob(ctx, "job-e")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != studio.JobRunning {
		t.Fatalf("transient failure must not change status, got %s", job.Status)
	}

	// The next cycle picks up the job once the generator recovers.
	fake.setError("job-e", nil)
	fake.setState("job-e", generator.JobState{Status: "running", Progress: 40})
	mgr.RunCycle(ctx)

	job, err = store.GetJob(ctx, "job-e")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != studio.JobRunning || job.Progress != 40 {
		t.Fatalf("expected recovered progress update, got %+v", job)
	}
}

func TestRunCycleLosesRaceToCancel(t *testing.T) {
	mgr, store, fake, episodeID := newTestManager(t)
	ctx := context.Background()
	seedJob(t, store, "job-f", episodeID, 0, studio.JobRunning)
	fake.setState("job-f", generator.JobState{Status: "completed", Version: 1})
	fake.hook = func(jobID string) {
		// A cancel lands while the poll is in flight.
		err := store.UpdateJobStatus(ctx, jobID, studio.JobCancelled, studio.JobUpdate{})
		if err != nil {
			t.Errorf("cancel during poll: %v", err)
		}
	}

	mgr.RunCycle(ctx)

	job, err := store.GetJob(ctx, "job-f")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != studio.JobCancelled {
		t.Fatalf("cancellation must win the race, got %s", job.Status)
	}
}

func TestRunCycleIgnoresUnknownStatus(t *testing.T) {
	mgr, store, fake, episodeID := newTestManager(t)
	ctx := context.Background()
	seedJob(t, store, "job-g", episodeID, 0, studio.JobQueued)
	fake.setState("job-g", generator.JobState{Status: "warming_up"})

	mgr.RunCycle(ctx)

	job, err := store.GetJob(ctx, "job-g")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != studio.JobQueued {
		t.Fatalf("unknown status must not change the job, got %s", job.Status)
	}
}

func TestManagerStartStop(t *testing.T) {
	mgr, store, fake, episodeID := newTestManager(t)
	seedJob(t, store, "job-h", episodeID, 0, studio.JobQueued)
	fake.setState("job-h", generator.JobState{Status: "running", Progress: 10})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		job, err := store.GetJob(context.Background(), "job-h")
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Status == studio.JobRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never transitioned, still %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	mgr.Stop()
	if mgr.Running() {
		t.Fatal("expected manager stopped")
	}
	mgr.Stop() // idempotent
}
