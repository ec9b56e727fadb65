package studio_test

import (
	"context"
	"testing"

	"storyreel/internal/studio"
	"storyreel/internal/testsupport"
)

func TestReplaceAnalysisRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	ep := testsupport.NewEpisode(t, store, "Pilot")
	characters := []studio.Character{
		{Name: "Ada", Description: "engineer, grey coat"},
		{Name: "Brink", Description: "pilot, red scarf"},
	}
	scenes := []studio.Scene{
		{SceneIndex: 1, Description: "hangar at dawn", Characters: []string{"Ada"}},
		{SceneIndex: 2, Description: "cockpit", Characters: []string{"Ada", "Brink"}},
	}
	if err := store.ReplaceAnalysis(ctx, ep.ID, characters, scenes); err != nil {
		t.Fatalf("ReplaceAnalysis failed: %v", err)
	}

	gotChars, err := store.ListCharacters(ctx, ep.ID)
	if err != nil {
		t.Fatalf("ListCharacters failed: %v", err)
	}
	if len(gotChars) != 2 || gotChars[0].Name != "Ada" {
		t.Fatalf("unexpected characters: %#v", gotChars)
	}

	gotScenes, err := store.ListScenes(ctx, ep.ID)
	if err != nil {
		t.Fatalf("ListScenes failed: %v", err)
	}
	if len(gotScenes) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(gotScenes))
	}
	if gotScenes[1].SceneIndex != 2 || len(gotScenes[1].Characters) != 2 {
		t.Fatalf("unexpected scene: %#v", gotScenes[1])
	}
	if gotScenes[0].LatestVersion != 0 {
		t.Fatalf("expected fresh scenes to start at version 0, got %d", gotScenes[0].LatestVersion)
	}

	// Re-running analysis replaces, not appends.
	if err := store.ReplaceAnalysis(ctx, ep.ID, characters[:1], scenes[:1]); err != nil {
		t.Fatalf("second ReplaceAnalysis failed: %v", err)
	}
	gotScenes, err = store.ListScenes(ctx, ep.ID)
	if err != nil {
		t.Fatalf("ListScenes failed: %v", err)
	}
	if len(gotScenes) != 1 {
		t.Fatalf("expected replacement to leave 1 scene, got %d", len(gotScenes))
	}
}

func TestSetScenePrompts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	ep := testsupport.NewEpisode(t, store, "Pilot")
	testsupport.SeedScenes(t, store, ep.ID, 1, 2)

	prompts := []studio.ScenePrompt{
		{SceneIndex: 1, Prompt: "wide shot, golden hour", NegativePrompt: "low quality"},
		{SceneIndex: 2, Prompt: "close up, rain on glass", NegativePrompt: "distorted"},
	}
	if err := store.SetScenePrompts(ctx, ep.ID, prompts); err != nil {
		t.Fatalf("SetScenePrompts failed: %v", err)
	}

	scene, err := store.GetScene(ctx, ep.ID, 2)
	if err != nil {
		t.Fatalf("GetScene failed: %v", err)
	}
	if scene == nil || scene.Prompt != "close up, rain on glass" || scene.NegativePrompt != "distorted" {
		t.Fatalf("unexpected scene: %#v", scene)
	}
}

func TestAdvanceSceneVersionIsMonotone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	ep := testsupport.NewEpisode(t, store, "Pilot")
	testsupport.SeedScenes(t, store, ep.ID, 3)

	advanced, err := store.AdvanceSceneVersion(ctx, ep.ID, 3, 2)
	if err != nil {
		t.Fatalf("AdvanceSceneVersion failed: %v", err)
	}
	if !advanced {
		t.Fatal("expected 0 -> 2 to advance")
	}

	// An out-of-order completion for an older artifact must not regress.
	advanced, err = store.AdvanceSceneVersion(ctx, ep.ID, 3, 1)
	if err != nil {
		t.Fatalf("AdvanceSceneVersion failed: %v", err)
	}
	if advanced {
		t.Fatal("expected 2 -> 1 to be a no-op")
	}

	// A duplicate report of the same version is likewise ignored.
	advanced, err = store.AdvanceSceneVersion(ctx, ep.ID, 3, 2)
	if err != nil {
		t.Fatalf("AdvanceSceneVersion failed: %v", err)
	}
	if advanced {
		t.Fatal("expected 2 -> 2 to be a no-op")
	}

	scene, err := store.GetScene(ctx, ep.ID, 3)
	if err != nil {
		t.Fatalf("GetScene failed: %v", err)
	}
	if scene.LatestVersion != 2 {
		t.Fatalf("expected latest_version 2, got %d", scene.LatestVersion)
	}
}

func TestAdvanceSceneVersionRejectsNonPositive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.AdvanceSceneVersion(context.Background(), 1, 1, 0); err == nil {
		t.Fatal("expected error for version 0")
	}
}

func TestGetSceneMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	scene, err := store.GetScene(context.Background(), 1, 99)
	if err != nil {
		t.Fatalf("GetScene failed: %v", err)
	}
	if scene != nil {
		t.Fatalf("expected nil scene, got %#v", scene)
	}
}
