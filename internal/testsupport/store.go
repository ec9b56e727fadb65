package testsupport

import (
	"context"
	"testing"

	"storyreel/internal/config"
	"storyreel/internal/studio"
)

// MustOpenStore opens a studio.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *studio.Store {
	t.Helper()

	store, err := studio.Open(cfg)
	if err != nil {
		t.Fatalf("studio.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewEpisode creates an episode for tests using the provided store.
func NewEpisode(t testing.TB, store *studio.Store, title string) *studio.Episode {
	t.Helper()

	ep, err := store.CreateEpisode(context.Background(), title, "INT. TEST - DAY\nA test scene.")
	if err != nil {
		t.Fatalf("store.CreateEpisode: %v", err)
	}
	return ep
}

// SeedScenes replaces the episode's analysis with one plain scene per index.
func SeedScenes(t testing.TB, store *studio.Store, episodeID int64, indexes ...int64) {
	t.Helper()

	scenes := make([]studio.Scene, 0, len(indexes))
	for _, idx := range indexes {
		scenes = append(scenes, studio.Scene{
			SceneIndex:  idx,
			Description: "test scene",
			Characters:  []string{"Ada"},
		})
	}
	if err := store.ReplaceAnalysis(context.Background(), episodeID, nil, scenes); err != nil {
		t.Fatalf("store.ReplaceAnalysis: %v", err)
	}
}
