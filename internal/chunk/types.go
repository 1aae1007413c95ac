package chunk

import (
	"time"

	"github.com/google/uuid"

	"github.com/gridworks/citygen/internal/building"
	"github.com/gridworks/citygen/internal/decor"
	"github.com/gridworks/citygen/internal/grid"
	"github.com/gridworks/citygen/internal/roadnet"
)

const (
	// DefaultChunkSize is the macro-cell edge length of a chunk.
	DefaultChunkSize = 16

	// DefaultCellSize is the world-unit edge length of one macro cell.
	DefaultCellSize = 4.0
)

// Visibility event types published on lifecycle transitions.
const (
	EventShown   = "chunk_shown"
	EventHidden  = "chunk_hidden"
	EventEvicted = "chunk_evicted"
)

// Coord is a chunk coordinate in the infinite chunk lattice.
type Coord struct {
	X int64 `json:"x"`
	Z int64 `json:"z"`
}

// Chunk is one generated city block: the grid, the road network and
// everything placed on top of it. A chunk is fully generated before it
// is ever observable; there is no partially built state.
type Chunk struct {
	Coord       Coord                `json:"coord"`
	InstanceID  uuid.UUID            `json:"instance_id"`
	Seed        int64                `json:"seed"`
	Grid        *grid.Grid           `json:"-"`
	Roads       *roadnet.Network     `json:"-"`
	Buildings   []building.Placement `json:"buildings"`
	Decorations []decor.Decoration   `json:"decorations"`
	Parks       []decor.Park         `json:"parks"`
	Visible     bool                 `json:"visible"`

	// Generation metadata.
	Fallback    bool          `json:"fallback"`
	GeneratedAt time.Time     `json:"generated_at"`
	Duration    time.Duration `json:"duration"`
}

// Event describes one visibility transition for stream consumers.
type Event struct {
	Type       string `json:"type"`
	ChunkX     int64  `json:"chunk_x"`
	ChunkZ     int64  `json:"chunk_z"`
	InstanceID string `json:"instance_id"`
}

// Publisher receives visibility events. A nil publisher disables the
// stream without affecting lifecycle semantics.
type Publisher interface {
	Publish(ev Event)
}

// Catalogs are the immutable template tables loaded once at startup.
type Catalogs struct {
	Archetypes []building.Archetype
	Vegetation []decor.Template
	Props      []decor.Template
}

// ReconcileResult summarizes one visibility reconciliation pass.
type ReconcileResult struct {
	Center  Coord `json:"center"`
	Created int   `json:"created"`
	Shown   int   `json:"shown"`
	Hidden  int   `json:"hidden"`
	Evicted int   `json:"evicted"`
	Visible int   `json:"visible"`
	Loaded  int   `json:"loaded"`
}
