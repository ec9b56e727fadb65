package main

import (
	"strings"
	"testing"

	"storyreel/internal/api"
)

func jobFixture() api.JobView {
	return api.JobView{
		ID:         "job-1",
		EpisodeID:  1,
		SceneIndex: 0,
		Status:     "running",
		Progress:   40,
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	expected := []string{"daemon", "status", "episode", "jobs", "config"}
	for _, name := range expected {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing %q command", name)
		}
	}
}

func TestParseEpisodeID(t *testing.T) {
	if _, err := parseEpisodeID("abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
	if _, err := parseEpisodeID("0"); err == nil {
		t.Fatal("expected error for zero id")
	}
	id, err := parseEpisodeID(" 7 ")
	if err != nil || id != 7 {
		t.Fatalf("expected 7, got %d (%v)", id, err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	got := truncate("a very long scene description", 10)
	if len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected %q", got)
	}
}

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Database", statusOK, "/tmp/db", false)
	if !strings.Contains(line, "[OK]") || !strings.Contains(line, "Database:") {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("Database", statusError, "down", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected color wrapping, got %q", colored)
	}
}

func TestJobRowShape(t *testing.T) {
	headers := jobHeaders()
	row := jobRow(jobFixture())
	if len(row) != len(headers) {
		t.Fatalf("row has %d cells, headers %d", len(row), len(headers))
	}
}
