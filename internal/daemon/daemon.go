package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"storyreel/internal/api"
	"storyreel/internal/config"
	"storyreel/internal/logging"
	"storyreel/internal/reconciler"
	"storyreel/internal/services/generator"
	"storyreel/internal/studio"
)

// Daemon owns the background services and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *studio.Store
	reconciler *reconciler.Manager
	generator  generator.Service
	jobs       *api.JobService
	episodes   *api.EpisodeService

	lockPath string
	lock     *flock.Flock

	apiSrv *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *studio.Store, logger *slog.Logger, rec *reconciler.Manager, gen generator.Service, jobs *api.JobService, episodes *api.EpisodeService) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || rec == nil || gen == nil {
		return nil, errors.New("daemon requires config, store, logger, reconciler, and generator")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "storyreeld.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		reconciler: rec,
		generator:  gen,
		jobs:       jobs,
		episodes:   episodes,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.apiSrv = srv
	return d, nil
}

// Start acquires the daemon lock and launches the reconciler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another storyreel daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.reconciler.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start reconciler: %w", err)
	}
	if d.apiSrv != nil {
		if err := d.apiSrv.start(d.ctx); err != nil {
			d.reconciler.Stop()
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("storyreel daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiSrv.stop()
	d.reconciler.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("storyreel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address, empty until started.
func (d *Daemon) APIAddr() string {
	if d.apiSrv == nil {
		return ""
	}
	return d.apiSrv.addr()
}

// Status aggregates runtime health across the store, the generator service,
// and local disk space.
func (d *Daemon) Status(ctx context.Context) api.SystemStatus {
	status := api.SystemStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
	}

	if err := d.store.Ping(ctx); err != nil {
		status.DatabaseError = err.Error()
	} else {
		status.DatabaseOK = true
	}

	if stats, err := d.jobs.Stats(ctx); err == nil {
		status.Jobs = stats
	}

	if free, err := outputFreeMB(d.cfg.Paths.OutputDir); err == nil {
		status.OutputFreeMB = free
	}

	if last := d.reconciler.LastCycle(); !last.IsZero() {
		status.LastReconcile = last.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}

	health, err := d.generator.Health(ctx)
	if err != nil {
		status.Generator = api.GeneratorStatus{Error: err.Error()}
	} else {
		status.Generator = api.GeneratorStatus{
			Reachable:     true,
			Status:        health.Status,
			Mode:          health.Mode,
			CUDAAvailable: health.CUDAAvailable,
			DiskFree:      health.DiskFree,
			ActiveJobs:    health.ActiveJobs,
		}
	}
	return status
}
