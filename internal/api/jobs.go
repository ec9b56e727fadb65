package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"storyreel/internal/logging"
	"storyreel/internal/services"
	"storyreel/internal/services/generator"
	"storyreel/internal/studio"
)

// ErrJobAlreadyTerminal reports a cancel against a finished job. It is the
// services.ErrTerminal sentinel, so either marker matches in errors.Is.
var ErrJobAlreadyTerminal = services.ErrTerminal

// SubmitJobRequest carries a regeneration request for one scene. ImageBase64
// optionally seeds image-to-video generation with a reference frame.
type SubmitJobRequest struct {
	EpisodeID   int64  `json:"episodeId"`
	SceneIndex  int64  `json:"sceneIndex"`
	ImageBase64 string `json:"imageBase64,omitempty"`
}

// JobService coordinates job submission and cancellation between the store
// and the generator service.
type JobService struct {
	store     *studio.Store
	generator generator.Service
	logger    *slog.Logger
}

// NewJobService constructs a JobService.
func NewJobService(store *studio.Store, gen generator.Service, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &JobService{
		store:     store,
		generator: gen,
		logger:    logging.NewComponentLogger(logger, "jobs"),
	}
}

// Submit asks the generator to render one scene and records the returned job.
// The scene must have been through prompt generation first; an empty prompt
// is rejected before any network call. Nothing is persisted when the
// generator declines the request, so a failed submit leaves no orphan row.
func (s *JobService) Submit(ctx context.Context, req SubmitJobRequest) (JobView, error) {
	var empty JobView
	scene, err := s.store.GetScene(ctx, req.EpisodeID, req.SceneIndex)
	if err != nil {
		return empty, fmt.Errorf("load scene: %w", err)
	}
	if scene == nil {
		return empty, services.Wrap(services.ErrNotFound, "jobs", "submit",
			fmt.Sprintf("episode %d has no scene %d", req.EpisodeID, req.SceneIndex), nil)
	}
	if strings.TrimSpace(scene.Prompt) == "" {
		return empty, services.Wrap(services.ErrValidation, "jobs", "submit",
			fmt.Sprintf("scene %d has no prompt, run prompt generation first", req.SceneIndex), nil)
	}

	resp, err := s.generator.Submit(ctx, generator.SubmitRequest{
		EpisodeID:      req.EpisodeID,
		SceneIndex:     req.SceneIndex,
		Prompt:         scene.Prompt,
		NegativePrompt: scene.NegativePrompt,
		ImageBase64:    req.ImageBase64,
	})
	if err != nil {
		return empty, fmt.Errorf("submit to generator: %w", err)
	}

	status, ok := studio.ParseJobStatus(resp.Status)
	if !ok {
		status = studio.JobQueued
	}
	job := &studio.Job{
		ID:         resp.ID,
		EpisodeID:  req.EpisodeID,
		SceneIndex: req.SceneIndex,
		Status:     status,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, studio.ErrDuplicateJob) {
			return empty, services.Wrap(services.ErrValidation, "jobs", "submit",
				fmt.Sprintf("job %s already tracked", resp.ID), err)
		}
		return empty, fmt.Errorf("record job: %w", err)
	}

	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int64(logging.FieldEpisodeID, job.EpisodeID),
		logging.Int64(logging.FieldSceneIndex, job.SceneIndex),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	return FromJob(job), nil
}

// Cancel requests cancellation for an active job. Finished jobs report
// ErrJobAlreadyTerminal rather than pretending to succeed.
func (s *JobService) Cancel(ctx context.Context, jobID string) (JobView, error) {
	var empty JobView
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return empty, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return empty, services.Wrap(services.ErrNotFound, "jobs", "cancel",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	if job.IsTerminal() {
		return empty, services.Wrap(ErrJobAlreadyTerminal, "jobs", "cancel",
			fmt.Sprintf("job %s is %s", jobID, job.Status), nil)
	}

	// Best effort: the generator may have already forgotten the job.
	if err := s.generator.Cancel(ctx, jobID); err != nil && !errors.Is(err, services.ErrNotFound) {
		return empty, fmt.Errorf("cancel with generator: %w", err)
	}

	update := studio.JobUpdate{Progress: job.Progress, OutputPath: job.OutputPath}
	if err := s.store.UpdateJobStatus(ctx, jobID, studio.JobCancelled, update); err != nil {
		if errors.Is(err, studio.ErrJobTerminal) {
			return empty, services.Wrap(ErrJobAlreadyTerminal, "jobs", "cancel",
				fmt.Sprintf("job %s finished during cancel", jobID), err)
		}
		return empty, fmt.Errorf("record cancellation: %w", err)
	}

	s.logger.Info("job cancelled",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	job.Status = studio.JobCancelled
	return FromJob(job), nil
}

// Describe fetches one job. Reads the store only, never the generator.
func (s *JobService) Describe(ctx context.Context, jobID string) (JobView, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return JobView{}, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return JobView{}, services.Wrap(services.ErrNotFound, "jobs", "describe",
			fmt.Sprintf("job %s not found", jobID), nil)
	}
	return FromJob(job), nil
}

// List returns jobs newest first, optionally filtered by episode (0 = all).
func (s *JobService) List(ctx context.Context, episodeID int64) ([]JobView, error) {
	jobs, err := s.store.ListJobs(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return FromJobs(jobs), nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.JobStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return MergeJobStats(stats), nil
}
