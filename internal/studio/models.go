package studio

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle of a generation job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// LostJobError is the error message recorded when the generator no longer
// recognizes a tracked job.
const LostJobError = "lost"

var allJobStatuses = []JobStatus{
	JobQueued,
	JobRunning,
	JobCompleted,
	JobFailed,
	JobCancelled,
}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[JobStatus]struct{}{
	JobCompleted: {},
	JobFailed:    {},
	JobCancelled: {},
}

// AllJobStatuses returns the ordered list of known statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s JobStatus) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Job is a tracked request for one generated scene artifact. The identifier is
// assigned by the generator service and treated as the primary key.
type Job struct {
	ID           string
	EpisodeID    int64
	SceneIndex   int64
	Status       JobStatus
	Progress     int
	OutputPath   string
	ErrorMessage string
	CreatedAt    time.Time
}

// IsTerminal reports whether the job has reached a final state.
func (j Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// JobUpdate carries the mutable fields applied alongside a status transition.
type JobUpdate struct {
	Progress     int
	OutputPath   string
	ErrorMessage string
}

// Episode is the root aggregate: a script plus the scenes and characters
// derived from it.
type Episode struct {
	ID      int64
	Title   string
	Script  string
	Runtime int64
}

// Character is a named figure extracted from an episode script.
type Character struct {
	ID          int64
	EpisodeID   int64
	Name        string
	Description string
}

// Scene is one shot of an episode. SceneIndex is the stable identifier
// assigned during analysis; the row id is storage detail only.
type Scene struct {
	ID             int64
	EpisodeID      int64
	SceneIndex     int64
	Description    string
	Characters     []string
	Prompt         string
	NegativePrompt string
	LatestVersion  int64
}

// ScenePrompt carries generated prompt text destined for one scene.
type ScenePrompt struct {
	SceneIndex     int64
	Prompt         string
	NegativePrompt string
}
