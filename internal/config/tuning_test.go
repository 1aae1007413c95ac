package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTuning(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write tuning file: %v", err)
	}
	return path
}

func TestLoadTuningMissingFileUsesDefaults(t *testing.T) {
	got, err := LoadTuning(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if got != DefaultTuning() {
		t.Errorf("got %+v, want defaults", got)
	}
}

func TestLoadTuningPartialFileInheritsDefaults(t *testing.T) {
	path := writeTuning(t, "view_radius: 5\nroads:\n  arterial_count: 3\n")
	got, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if got.ViewRadius != 5 {
		t.Errorf("view radius = %d, want 5", got.ViewRadius)
	}
	if got.Roads.ArterialCount != 3 {
		t.Errorf("arterial count = %d, want 3", got.Roads.ArterialCount)
	}
	// Everything the file omits keeps its default.
	if got.ChunkSize != 16 || got.Roads.NodeBudget != 64 || got.Decor.FloodFillCap != 4096 {
		t.Errorf("omitted fields lost their defaults: %+v", got)
	}
}

func TestLoadTuningRejectsOutOfRangeValue(t *testing.T) {
	path := writeTuning(t, "chunk_size: 2\n")
	if _, err := LoadTuning(path); err == nil {
		t.Fatal("expected a validation error for chunk_size below the minimum")
	}
}

func TestLoadTuningRejectsUnknownKey(t *testing.T) {
	path := writeTuning(t, "chnk_size: 16\n")
	if _, err := LoadTuning(path); err == nil {
		t.Fatal("expected a validation error for a misspelled key")
	}
}

func TestLoadTuningRejectsMalformedYAML(t *testing.T) {
	path := writeTuning(t, "chunk_size: [unclosed\n")
	if _, err := LoadTuning(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestDefaultTuningPassesValidation(t *testing.T) {
	// The defaults must satisfy the same schema applied to user files.
	path := writeTuning(t, "chunk_size: 16\ncell_size: 4.0\nview_radius: 2\n")
	if _, err := LoadTuning(path); err != nil {
		t.Fatalf("defaults-shaped file failed validation: %v", err)
	}
}

func TestRoadTuningTimeBudget(t *testing.T) {
	r := RoadTuning{TimeBudgetMs: 2500}
	if got := r.TimeBudget(); got != 2500*time.Millisecond {
		t.Errorf("TimeBudget() = %v", got)
	}
}
