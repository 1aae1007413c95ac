// Package testutils provides shared fixtures: a migrated temp sqlite
// database, a default generation config and in-memory catalogs.
package testutils

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gridworks/citygen/internal/building"
	"github.com/gridworks/citygen/internal/chunk"
	"github.com/gridworks/citygen/internal/decor"
	"github.com/gridworks/citygen/internal/roadnet"
)

// TestWorld bundles a migrated database with a chunk manager and a
// capturing event publisher.
type TestWorld struct {
	DB         *sql.DB
	Manager    *chunk.Manager
	Publisher  *CapturePublisher
	tempDBPath string
}

// CapturePublisher records every published visibility event.
type CapturePublisher struct {
	Events []chunk.Event
}

func (p *CapturePublisher) Publish(ev chunk.Event) {
	p.Events = append(p.Events, ev)
}

// ByType returns the captured events of one type.
func (p *CapturePublisher) ByType(eventType string) []chunk.Event {
	var out []chunk.Event
	for _, ev := range p.Events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// DefaultConfig returns a generation config small enough for fast tests
// but large enough to exercise every pipeline stage.
func DefaultConfig(worldSeed int64) chunk.Config {
	return chunk.Config{
		WorldSeed:        worldSeed,
		ChunkSize:        16,
		CellSize:         4.0,
		ViewRadius:       1,
		KeepBehindMargin: 1,
		Workers:          4,
		Road: roadnet.Config{
			ArterialCount:     2,
			BranchStep:        4,
			BranchProbability: 0.5,
			MinNodeSpacing:    2,
			NearestRadius:     8,
			BorderMin:         1,
			BorderMax:         3,
			BorderRange:       4,
			CurveSteps:        12,
			NodeBudget:        64,
			TimeBudget:        5 * time.Second,
			Workers:           4,
		},
		Decor: decor.Config{
			VegetationDensity: 0.15,
			PropDensity:       0.05,
			MinParkSize:       4,
			FloodFillCap:      4096,
		},
	}
}

// DefaultCatalogs mirrors the seeded migration rows without needing a
// database.
func DefaultCatalogs() chunk.Catalogs {
	return chunk.Catalogs{
		Archetypes: []building.Archetype{
			{Category: "tower", FootprintWidth: 2, FootprintDepth: 2, SpawnProbability: 0.10, Variants: []string{"tower_a", "tower_b"}},
			{Category: "office", FootprintWidth: 2, FootprintDepth: 1, SpawnProbability: 0.15, Variants: []string{"office_a"}},
			{Category: "shop", FootprintWidth: 1, FootprintDepth: 1, SpawnProbability: 0.30, Variants: []string{"shop_a", "shop_b"}},
			{Category: "house", FootprintWidth: 1, FootprintDepth: 1, SpawnProbability: 0.45, Variants: []string{"house_a", "house_b", "house_c"}},
		},
		Vegetation: []decor.Template{
			{Kind: "vegetation", Name: "oak", Weight: 3},
			{Kind: "vegetation", Name: "birch", Weight: 2},
			{Kind: "vegetation", Name: "bush", Weight: 4},
		},
		Props: []decor.Template{
			{Kind: "prop", Name: "bench", Weight: 2},
			{Kind: "prop", Name: "lamp_post", Weight: 3},
		},
	}
}

// CreateTestDB opens a temporary sqlite database and applies all
// migrations, including the seeded catalogs.
func CreateTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	tempDB := "test_" + t.Name() + ".db"
	database, err := sql.Open("sqlite3", tempDB)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	driver, err := sqlite3.WithInstance(database, &sqlite3.Config{})
	if err != nil {
		t.Fatalf("Failed to create migration driver: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://../../internal/db/migrations", "sqlite3", driver)
	if err != nil {
		t.Fatalf("Failed to create migrate instance: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return database, tempDB
}

// CreateTestWorld builds a migrated database plus a manager wired to a
// capturing publisher.
func CreateTestWorld(t *testing.T, worldSeed int64) *TestWorld {
	t.Helper()

	database, tempDB := CreateTestDB(t)
	pub := &CapturePublisher{}
	manager := chunk.NewManager(DefaultConfig(worldSeed), DefaultCatalogs(), database, pub)
	return &TestWorld{
		DB:         database,
		Manager:    manager,
		Publisher:  pub,
		tempDBPath: tempDB,
	}
}

// Cleanup closes the database and removes the temporary file.
func (tw *TestWorld) Cleanup() {
	tw.DB.Close()
	os.Remove(tw.tempDBPath)
}
