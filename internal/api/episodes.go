package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyreel/internal/artifact"
	"storyreel/internal/logging"
	"storyreel/internal/services"
	"storyreel/internal/services/scriptai"
	"storyreel/internal/studio"
)

// EpisodeService owns the script pipeline: episode creation, analysis,
// prompt generation, and metadata export.
type EpisodeService struct {
	store     *studio.Store
	analyzer  scriptai.Service
	outputDir string
	logger    *slog.Logger
	now       func() time.Time
}

// NewEpisodeService constructs an EpisodeService.
func NewEpisodeService(store *studio.Store, analyzer scriptai.Service, outputDir string, logger *slog.Logger) *EpisodeService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &EpisodeService{
		store:     store,
		analyzer:  analyzer,
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, "episodes"),
		now:       time.Now,
	}
}

// Create records a new episode from a title and raw script text.
func (s *EpisodeService) Create(ctx context.Context, title, script string) (EpisodeView, error) {
	var empty EpisodeView
	title = strings.TrimSpace(title)
	if title == "" {
		return empty, services.Wrap(services.ErrValidation, "episodes", "create", "title is required", nil)
	}
	if strings.TrimSpace(script) == "" {
		return empty, services.Wrap(services.ErrValidation, "episodes", "create", "script is required", nil)
	}
	ep, err := s.store.CreateEpisode(ctx, title, script)
	if err != nil {
		return empty, fmt.Errorf("create episode: %w", err)
	}
	s.logger.Info("episode created",
		logging.Int64(logging.FieldEpisodeID, ep.ID),
		logging.String("title", ep.Title),
		logging.String(logging.FieldEventType, "episode_created"),
	)
	return EpisodeView{ID: ep.ID, Title: ep.Title, Script: ep.Script}, nil
}

// Describe returns one episode with its characters and scenes.
func (s *EpisodeService) Describe(ctx context.Context, id int64) (EpisodeView, error) {
	ep, err := s.store.GetEpisode(ctx, id)
	if err != nil {
		return EpisodeView{}, fmt.Errorf("load episode: %w", err)
	}
	if ep == nil {
		return EpisodeView{}, services.Wrap(services.ErrNotFound, "episodes", "describe",
			fmt.Sprintf("episode %d not found", id), nil)
	}
	return s.assembleView(ctx, ep)
}

// Latest returns the most recently created episode.
func (s *EpisodeService) Latest(ctx context.Context) (EpisodeView, error) {
	ep, err := s.store.LatestEpisode(ctx)
	if err != nil {
		return EpisodeView{}, fmt.Errorf("load latest episode: %w", err)
	}
	if ep == nil {
		return EpisodeView{}, services.Wrap(services.ErrNotFound, "episodes", "latest", "no episodes yet", nil)
	}
	return s.assembleView(ctx, ep)
}

// Analyze runs script analysis and replaces the episode's characters and
// scenes in one transaction. Scene version ledgers reset with the scenes.
func (s *EpisodeService) Analyze(ctx context.Context, id int64) (EpisodeView, error) {
	var empty EpisodeView
	ep, err := s.store.GetEpisode(ctx, id)
	if err != nil {
		return empty, fmt.Errorf("load episode: %w", err)
	}
	if ep == nil {
		return empty, services.Wrap(services.ErrNotFound, "episodes", "analyze",
			fmt.Sprintf("episode %d not found", id), nil)
	}

	analysis, err := s.analyzer.AnalyzeScript(ctx, ep.Script)
	if err != nil {
		return empty, fmt.Errorf("analyze script: %w", err)
	}
	if err := s.store.ReplaceAnalysis(ctx, id, analysis.Characters, analysis.Scenes); err != nil {
		return empty, fmt.Errorf("store analysis: %w", err)
	}

	s.logger.Info("script analyzed",
		logging.Int64(logging.FieldEpisodeID, id),
		logging.Int("characters", len(analysis.Characters)),
		logging.Int("scenes", len(analysis.Scenes)),
		logging.String(logging.FieldEventType, "episode_analyzed"),
	)
	return s.assembleView(ctx, ep)
}

// GeneratePrompts writes generation prompts for every analyzed scene.
func (s *EpisodeService) GeneratePrompts(ctx context.Context, id int64) (EpisodeView, error) {
	var empty EpisodeView
	ep, err := s.store.GetEpisode(ctx, id)
	if err != nil {
		return empty, fmt.Errorf("load episode: %w", err)
	}
	if ep == nil {
		return empty, services.Wrap(services.ErrNotFound, "episodes", "prompts",
			fmt.Sprintf("episode %d not found", id), nil)
	}
	scenes, err := s.store.ListScenes(ctx, id)
	if err != nil {
		return empty, fmt.Errorf("list scenes: %w", err)
	}
	if len(scenes) == 0 {
		return empty, services.Wrap(services.ErrValidation, "episodes", "prompts",
			"episode has no scenes, analyze the script first", nil)
	}

	input := make([]studio.Scene, 0, len(scenes))
	for _, scene := range scenes {
		input = append(input, *scene)
	}
	prompts, err := s.analyzer.ScenePrompts(ctx, input)
	if err != nil {
		return empty, fmt.Errorf("generate prompts: %w", err)
	}
	if err := s.store.SetScenePrompts(ctx, id, prompts); err != nil {
		return empty, fmt.Errorf("store prompts: %w", err)
	}

	s.logger.Info("scene prompts generated",
		logging.Int64(logging.FieldEpisodeID, id),
		logging.Int("prompts", len(prompts)),
		logging.String(logging.FieldEventType, "prompts_generated"),
	)
	return s.assembleView(ctx, ep)
}

// Export builds the episode's artifact manifest. Each scene maps to its
// latest completed artifact filename; scenes with no completed artifact are
// skipped. When the output directory exists the manifest is also written to
// <output>/episode_<id>/metadata.json.
func (s *EpisodeService) Export(ctx context.Context, id int64) (ExportMetadata, error) {
	var empty ExportMetadata
	ep, err := s.store.GetEpisode(ctx, id)
	if err != nil {
		return empty, fmt.Errorf("load episode: %w", err)
	}
	if ep == nil {
		return empty, services.Wrap(services.ErrNotFound, "episodes", "export",
			fmt.Sprintf("episode %d not found", id), nil)
	}
	scenes, err := s.store.ListScenes(ctx, id)
	if err != nil {
		return empty, fmt.Errorf("list scenes: %w", err)
	}

	meta := ExportMetadata{
		EpisodeID:  ep.ID,
		Title:      ep.Title,
		Scenes:     make([]ExportScene, 0, len(scenes)),
		ExportedAt: s.now().UTC().Format(dateTimeFormat),
	}
	for _, scene := range scenes {
		if scene.LatestVersion <= 0 {
			continue
		}
		meta.Scenes = append(meta.Scenes, ExportScene{
			SceneIndex: scene.SceneIndex,
			File:       artifact.Filename(scene.SceneIndex, scene.LatestVersion),
			Version:    scene.LatestVersion,
		})
	}

	if path, err := s.writeManifest(ep.ID, meta); err != nil {
		s.logger.Warn("manifest not written",
			logging.Int64(logging.FieldEpisodeID, ep.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "export_write_skipped"),
		)
	} else if path != "" {
		meta.Path = path
	}

	s.logger.Info("episode exported",
		logging.Int64(logging.FieldEpisodeID, ep.ID),
		logging.Int("scenes", len(meta.Scenes)),
		logging.String(logging.FieldEventType, "episode_exported"),
	)
	return meta, nil
}

// writeManifest persists the manifest when the episode output dir exists.
// A missing dir means nothing was rendered locally yet, not an error.
func (s *EpisodeService) writeManifest(episodeID int64, meta ExportMetadata) (string, error) {
	if strings.TrimSpace(s.outputDir) == "" {
		return "", nil
	}
	dir := filepath.Join(s.outputDir, fmt.Sprintf("episode_%d", episodeID))
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat output dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}

	encoded, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, "metadata.json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

func (s *EpisodeService) assembleView(ctx context.Context, ep *studio.Episode) (EpisodeView, error) {
	characters, err := s.store.ListCharacters(ctx, ep.ID)
	if err != nil {
		return EpisodeView{}, fmt.Errorf("list characters: %w", err)
	}
	scenes, err := s.store.ListScenes(ctx, ep.ID)
	if err != nil {
		return EpisodeView{}, fmt.Errorf("list scenes: %w", err)
	}
	return FromEpisode(ep, characters, scenes), nil
}
