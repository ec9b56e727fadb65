package api

import (
	"storyreel/internal/studio"
)

// FromJob converts a stored job into its transport representation.
func FromJob(job *studio.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:           job.ID,
		EpisodeID:    job.EpisodeID,
		SceneIndex:   job.SceneIndex,
		Status:       string(job.Status),
		Progress:     job.Progress,
		OutputPath:   job.OutputPath,
		ErrorMessage: job.ErrorMessage,
	}
	if !job.CreatedAt.IsZero() {
		view.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return view
}

// FromJobs converts a job slice, preserving order.
func FromJobs(jobs []*studio.Job) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, FromJob(job))
	}
	return views
}

// FromScene converts a stored scene into its transport representation.
func FromScene(scene *studio.Scene) SceneView {
	if scene == nil {
		return SceneView{}
	}
	return SceneView{
		ID:             scene.SceneIndex,
		Description:    scene.Description,
		Characters:     scene.Characters,
		Prompt:         scene.Prompt,
		NegativePrompt: scene.NegativePrompt,
		LatestVersion:  scene.LatestVersion,
	}
}

// FromEpisode assembles the full episode view.
func FromEpisode(ep *studio.Episode, characters []*studio.Character, scenes []*studio.Scene) EpisodeView {
	if ep == nil {
		return EpisodeView{}
	}
	view := EpisodeView{
		ID:         ep.ID,
		Title:      ep.Title,
		Script:     ep.Script,
		Characters: make([]CharacterView, 0, len(characters)),
		Scenes:     make([]SceneView, 0, len(scenes)),
	}
	for _, character := range characters {
		if character == nil {
			continue
		}
		view.Characters = append(view.Characters, CharacterView{
			Name:        character.Name,
			Description: character.Description,
		})
	}
	for _, scene := range scenes {
		if scene == nil {
			continue
		}
		view.Scenes = append(view.Scenes, FromScene(scene))
	}
	return view
}

// MergeJobStats normalizes stats so every known status has an entry.
func MergeJobStats(stats map[studio.JobStatus]int) map[string]int {
	merged := make(map[string]int, len(stats))
	for _, status := range studio.AllJobStatuses() {
		merged[string(status)] = stats[status]
	}
	return merged
}
