package studio_test

import (
	"context"
	"testing"

	"storyreel/internal/testsupport"
)

func TestCreateEpisodeValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.CreateEpisode(ctx, "", "script"); err == nil {
		t.Fatal("expected error for empty title")
	}
	if _, err := store.CreateEpisode(ctx, "Pilot", "  "); err == nil {
		t.Fatal("expected error for empty script")
	}
}

func TestLatestEpisode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	latest, err := store.LatestEpisode(ctx)
	if err != nil {
		t.Fatalf("LatestEpisode failed: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil on empty store, got %#v", latest)
	}

	testsupport.NewEpisode(t, store, "First")
	second := testsupport.NewEpisode(t, store, "Second")

	latest, err = store.LatestEpisode(ctx)
	if err != nil {
		t.Fatalf("LatestEpisode failed: %v", err)
	}
	if latest == nil || latest.ID != second.ID || latest.Title != "Second" {
		t.Fatalf("unexpected latest episode: %#v", latest)
	}

	fetched, err := store.GetEpisode(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetEpisode failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Second" {
		t.Fatalf("unexpected episode: %#v", fetched)
	}
}
