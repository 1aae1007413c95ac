package db

import (
	"database/sql"
	"time"
)

// BuildingArchetype is one row of the building template catalog seeded by
// migrations. The placement engine only ever reads these.
type BuildingArchetype struct {
	ArchetypeID      int64
	Category         string
	FootprintWidth   int64
	FootprintDepth   int64
	SpawnProbability float64
	SortOrder        int64
	Variants         string // comma-separated visual variant names
}

// DecorTemplate is one row of the decoration catalog (vegetation kinds
// and their scatter weights).
type DecorTemplate struct {
	TemplateID int64
	Kind       string
	Name       string
	Weight     float64
}

// GenerationLog is one audit row written after a chunk generation run.
type GenerationLog struct {
	LogID         int64
	ChunkX        int64
	ChunkZ        int64
	Seed          int64
	DurationMs    int64
	Fallback      bool
	NodeCount     int64
	TileCount     int64
	BuildingCount int64
	CreatedAt     time.Time
}

// Viewer is a registered streaming consumer whose position drives chunk
// visibility reconciliation.
type Viewer struct {
	ViewerID     int64
	Name         string
	SessionToken string
	WorldX       float64
	WorldZ       float64
	ChunkX       int64
	ChunkZ       int64
	CreatedAt    time.Time
	LastSeen     sql.NullTime
}
