package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a generation job in a transport-friendly format.
type JobView struct {
	ID           string `json:"id"`
	EpisodeID    int64  `json:"episodeId"`
	SceneIndex   int64  `json:"sceneIndex"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	OutputPath   string `json:"outputPath,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// CharacterView describes an extracted character.
type CharacterView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SceneView describes one scene of an episode. ID is the stable scene index.
type SceneView struct {
	ID             int64    `json:"id"`
	Description    string   `json:"description"`
	Characters     []string `json:"characters"`
	Prompt         string   `json:"prompt,omitempty"`
	NegativePrompt string   `json:"negativePrompt,omitempty"`
	LatestVersion  int64    `json:"latestVersion"`
}

// EpisodeView aggregates an episode with its analysis results.
type EpisodeView struct {
	ID         int64           `json:"id"`
	Title      string          `json:"title"`
	Script     string          `json:"script,omitempty"`
	Characters []CharacterView `json:"characters"`
	Scenes     []SceneView     `json:"scenes"`
}

// ExportScene is one entry of an episode's export metadata.
type ExportScene struct {
	SceneIndex int64  `json:"sceneIndex"`
	File       string `json:"file"`
	Version    int64  `json:"version"`
}

// ExportMetadata is the manifest written alongside rendered scene artifacts.
type ExportMetadata struct {
	EpisodeID  int64         `json:"episodeId"`
	Title      string        `json:"title"`
	Scenes     []ExportScene `json:"scenes"`
	ExportedAt string        `json:"exportedAt"`
	Path       string        `json:"path,omitempty"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobStatsResponse provides normalized job counts keyed by status.
type JobStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// SystemStatus aggregates daemon runtime information for API consumers.
type SystemStatus struct {
	Running       bool            `json:"running"`
	PID           int             `json:"pid"`
	DatabasePath  string          `json:"databasePath"`
	DatabaseOK    bool            `json:"databaseOk"`
	DatabaseError string          `json:"databaseError,omitempty"`
	OutputFreeMB  int64           `json:"outputFreeMb"`
	Generator     GeneratorStatus `json:"generator"`
	Jobs          map[string]int  `json:"jobs"`
	LastReconcile string          `json:"lastReconcile,omitempty"`
}

// GeneratorStatus mirrors the generator service's health report.
type GeneratorStatus struct {
	Reachable     bool   `json:"reachable"`
	Status        string `json:"status,omitempty"`
	Mode          string `json:"mode,omitempty"`
	CUDAAvailable bool   `json:"cudaAvailable"`
	DiskFree      string `json:"diskFree,omitempty"`
	ActiveJobs    int    `json:"activeJobs"`
	Error         string `json:"error,omitempty"`
}
