package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"storyreel/internal/artifact"
	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/services"
	"storyreel/internal/services/generator"
	"storyreel/internal/studio"
)

// Manager runs the reconciliation loop.
type Manager struct {
	store     *studio.Store
	generator generator.Service
	logger    *slog.Logger

	pollInterval time.Duration
	pollTimeout  time.Duration
	concurrency  int

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastCycle time.Time
}

// NewManager constructs a reconciliation manager from application config.
func NewManager(cfg *config.Config, store *studio.Store, gen generator.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Generator.PollInterval) * time.Second
	if interval <= 0 {
		interval = 3 * time.Second
	}
	timeout := time.Duration(cfg.Generator.PollTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	concurrency := cfg.Generator.PollConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Manager{
		store:        store,
		generator:    gen,
		logger:       logging.NewComponentLogger(logger, "reconciler"),
		pollInterval: interval,
		pollTimeout:  timeout,
		concurrency:  concurrency,
	}
}

// Start begins background reconciliation.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("reconciler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background reconciliation and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent cycle-level failure, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// LastCycle returns when a cycle last completed.
func (m *Manager) LastCycle() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCycle
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		m.RunCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.pollInterval):
		}
	}
}

// RunCycle performs one reconciliation pass: snapshot the active jobs, then
// poll each against the generator. A failure in one poll never blocks the
// others, and a failed cycle is retried on the next tick.
func (m *Manager) RunCycle(ctx context.Context) {
	jobs, err := m.store.ListActiveJobs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.setLastError(err)
		m.logger.Error("failed to list active jobs",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reconcile_snapshot_failed"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
		return
	}
	m.setLastError(nil)

	if len(jobs) > 0 {
		sem := make(chan struct{}, m.concurrency)
		var wg sync.WaitGroup
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(job *studio.Job) {
				defer wg.Done()
				defer func() { <-sem }()
				m.pollJob(ctx, job)
			}(job)
		}
		wg.Wait()
	}

	m.mu.Lock()
	m.lastCycle = time.Now()
	m.mu.Unlock()
}

// pollJob fetches one job's remote state and applies the transition. Remote
// errors other than a 404 leave the job untouched for the next cycle.
func (m *Manager) pollJob(ctx context.Context, job *studio.Job) {
	logger := m.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.Int64(logging.FieldEpisodeID, job.EpisodeID),
		logging.Int64(logging.FieldSceneIndex, job.SceneIndex),
	)

	pollCtx, cancel := context.WithTimeout(ctx, m.pollTimeout)
	defer cancel()

	state, err := m.generator.JobStatus(pollCtx, job.ID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			m.markLost(ctx, logger, job)
			return
		}
		if ctx.Err() != nil {
			return
		}
		logger.Warn("poll failed, will retry next cycle",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reconcile_poll_failed"),
		)
		return
	}

	status, ok := studio.ParseJobStatus(state.Status)
	if !ok {
		logger.Warn("generator reported unknown status",
			logging.String("status", state.Status),
			logging.String(logging.FieldEventType, "reconcile_unknown_status"),
		)
		return
	}
	if status == job.Status && !status.IsTerminal() && state.Progress == job.Progress {
		return
	}

	update := studio.JobUpdate{
		Progress:     state.Progress,
		OutputPath:   state.OutputPath,
		ErrorMessage: state.Error,
	}
	if err := m.store.UpdateJobStatus(ctx, job.ID, status, update); err != nil {
		switch {
		case errors.Is(err, studio.ErrJobTerminal):
			// Lost the race against a concurrent cancel or a prior cycle.
			logger.Debug("job already terminal, skipping update",
				logging.String("status", string(status)),
				logging.String(logging.FieldEventType, "reconcile_update_skipped"),
			)
		case errors.Is(err, studio.ErrJobNotFound):
			logger.Warn("job disappeared from store during reconcile",
				logging.String(logging.FieldEventType, "reconcile_job_missing"),
			)
		default:
			if ctx.Err() == nil {
				logger.Error("failed to record job transition",
					logging.Error(err),
					logging.String(logging.FieldEventType, "reconcile_update_failed"),
					logging.String(logging.FieldErrorHint, "check database access"),
				)
			}
		}
		return
	}

	if status == studio.JobCompleted {
		m.recordCompletion(ctx, logger, job, state)
	} else if status.IsTerminal() {
		logger.Info("job reached terminal state",
			logging.String("status", string(status)),
			logging.String(logging.FieldEventType, "job_finished"),
		)
	}
}

// markLost fails a job the generator no longer recognizes, typically after a
// generator restart.
func (m *Manager) markLost(ctx context.Context, logger *slog.Logger, job *studio.Job) {
	update := studio.JobUpdate{Progress: job.Progress, ErrorMessage: studio.LostJobError}
	err := m.store.UpdateJobStatus(ctx, job.ID, studio.JobFailed, update)
	if err != nil && !errors.Is(err, studio.ErrJobTerminal) && !errors.Is(err, studio.ErrJobNotFound) {
		if ctx.Err() == nil {
			logger.Error("failed to mark lost job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "reconcile_update_failed"),
			)
		}
		return
	}
	if err == nil {
		logger.Warn("generator no longer tracks job, marked failed",
			logging.String(logging.FieldEventType, "job_lost"),
			logging.String(logging.FieldErrorHint, "generator may have restarted"),
		)
	}
}

// recordCompletion advances the scene's version ledger. The ledger only moves
// forward, so a stale completion arriving after a newer one is a no-op.
func (m *Manager) recordCompletion(ctx context.Context, logger *slog.Logger, job *studio.Job, state generator.JobState) {
	version := state.Version
	if version <= 0 {
		version = artifact.ParseVersion(state.OutputPath)
	}
	advanced, err := m.store.AdvanceSceneVersion(ctx, job.EpisodeID, job.SceneIndex, version)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("failed to advance scene version",
				logging.Error(err),
				logging.Int64("version", version),
				logging.String(logging.FieldEventType, "version_advance_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
		}
		return
	}
	if advanced {
		logger.Info("job completed",
			logging.Int64("version", version),
			logging.String("output", state.OutputPath),
			logging.String(logging.FieldEventType, "job_completed"),
		)
		return
	}
	logger.Info("job completed with stale version, ledger unchanged",
		logging.Int64("version", version),
		logging.String(logging.FieldEventType, "job_completed_stale"),
	)
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
