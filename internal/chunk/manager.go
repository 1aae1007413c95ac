package chunk

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/gridworks/citygen/internal/building"
	"github.com/gridworks/citygen/internal/db"
	"github.com/gridworks/citygen/internal/decor"
	"github.com/gridworks/citygen/internal/parallel"
)

// Manager owns the chunk table and drives visibility reconciliation.
// All mutation happens on the goroutine calling ReconcileVisibility; the
// only parallel phase inside a reconcile is the read-only desired/loaded
// diff.
type Manager struct {
	cfg     Config
	cat     Catalogs
	queries *db.Queries
	pub     Publisher
	chunks  map[Coord]*Chunk
}

// NewManager wires the generation config, the template catalogs, the
// audit store and the event publisher. A nil database disables audit
// rows; a nil publisher disables the event stream.
func NewManager(cfg Config, cat Catalogs, database *sql.DB, pub Publisher) *Manager {
	m := &Manager{
		cfg:    cfg,
		cat:    cat,
		pub:    pub,
		chunks: make(map[Coord]*Chunk),
	}
	if database != nil {
		m.queries = db.New(database)
	}
	return m
}

// LoadCatalogs reads the building and decoration templates from the
// store. Called once at startup; the catalogs never change afterwards.
func LoadCatalogs(ctx context.Context, queries *db.Queries) (Catalogs, error) {
	archetypeRows, err := queries.ListBuildingArchetypes(ctx)
	if err != nil {
		return Catalogs{}, fmt.Errorf("failed to load building archetypes: %w", err)
	}
	vegetationRows, err := queries.ListDecorTemplates(ctx, "vegetation")
	if err != nil {
		return Catalogs{}, fmt.Errorf("failed to load vegetation templates: %w", err)
	}
	propRows, err := queries.ListDecorTemplates(ctx, "prop")
	if err != nil {
		return Catalogs{}, fmt.Errorf("failed to load prop templates: %w", err)
	}
	return Catalogs{
		Archetypes: building.ArchetypesFromRows(archetypeRows),
		Vegetation: decor.TemplatesFromRows(vegetationRows),
		Props:      decor.TemplatesFromRows(propRows),
	}, nil
}

// ChunkCoordAt maps a world position to its owning chunk coordinate.
func (m *Manager) ChunkCoordAt(worldX, worldZ float64) Coord {
	span := float64(m.cfg.ChunkSize) * m.cfg.CellSize
	return Coord{
		X: int64(math.Floor(worldX / span)),
		Z: int64(math.Floor(worldZ / span)),
	}
}

// Chunk returns the loaded chunk at the coordinate, if any.
func (m *Manager) Chunk(coord Coord) (*Chunk, bool) {
	c, ok := m.chunks[coord]
	return c, ok
}

// VisibleChunks returns the currently visible chunks in deterministic
// coordinate order.
func (m *Manager) VisibleChunks() []*Chunk {
	var out []*Chunk
	for _, c := range m.chunks {
		if c.Visible {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coord.Z != out[j].Coord.Z {
			return out[i].Coord.Z < out[j].Coord.Z
		}
		return out[i].Coord.X < out[j].Coord.X
	})
	return out
}

// LoadedCount reports how many chunks are resident, visible or not.
func (m *Manager) LoadedCount() int {
	return len(m.chunks)
}

// Ensure returns the chunk at the coordinate, generating and retaining
// it hidden if it is not resident yet. The next reconcile decides its
// fate like any other loaded chunk.
func (m *Manager) Ensure(ctx context.Context, coord Coord) (*Chunk, error) {
	if c, ok := m.chunks[coord]; ok {
		return c, nil
	}
	c, err := Generate(m.cfg, m.cat, coord)
	if err != nil {
		return nil, fmt.Errorf("failed to generate chunk (%d,%d): %w", coord.X, coord.Z, err)
	}
	m.chunks[coord] = c
	m.audit(ctx, c)
	return c, nil
}

// ReconcileVisibility brings the chunk table in line with a viewer
// position. Desired chunks are generated synchronously before becoming
// visible, chunks inside the keep-behind margin are hidden but retained,
// and everything further out is evicted.
func (m *Manager) ReconcileVisibility(ctx context.Context, worldX, worldZ float64) (*ReconcileResult, error) {
	center := m.ChunkCoordAt(worldX, worldZ)
	desired := m.neighborhood(center, m.cfg.ViewRadius)
	keep := m.cfg.ViewRadius + m.cfg.KeepBehindMargin

	// Read-only diff over the desired set. The chunk table is not
	// mutated until the scan has joined.
	workers := m.cfg.Workers
	if workers < 1 {
		workers = parallel.DefaultWorkers
	}
	missing := parallel.Map(len(desired), workers, func(i int) bool {
		_, loaded := m.chunks[desired[i]]
		return !loaded
	})

	res := &ReconcileResult{Center: center}

	for i, coord := range desired {
		if missing[i] {
			c, err := Generate(m.cfg, m.cat, coord)
			if err != nil {
				log.Error("chunk generation failed", "error", err,
					"chunk_x", coord.X, "chunk_z", coord.Z)
				return nil, fmt.Errorf("failed to generate chunk (%d,%d): %w", coord.X, coord.Z, err)
			}
			m.chunks[coord] = c
			m.audit(ctx, c)
			res.Created++
		}
		c := m.chunks[coord]
		if !c.Visible {
			c.Visible = true
			m.publish(EventShown, c)
			res.Shown++
		}
	}

	// Hide or evict everything outside the desired square.
	for _, coord := range m.sortedLoaded() {
		c := m.chunks[coord]
		dist := chebyshev(coord, center)
		switch {
		case dist <= int64(m.cfg.ViewRadius):
			// Desired, handled above.
		case dist <= int64(keep):
			if c.Visible {
				c.Visible = false
				m.publish(EventHidden, c)
				res.Hidden++
			}
		default:
			delete(m.chunks, coord)
			m.publish(EventEvicted, c)
			res.Evicted++
		}
	}

	for _, c := range m.chunks {
		if c.Visible {
			res.Visible++
		}
	}
	res.Loaded = len(m.chunks)

	log.Debug("reconciled visibility",
		"center_x", center.X, "center_z", center.Z,
		"created", res.Created, "shown", res.Shown,
		"hidden", res.Hidden, "evicted", res.Evicted,
		"loaded", res.Loaded)
	return res, nil
}

// neighborhood lists the square of coordinates within radius rings of
// the center, in deterministic row-major order.
func (m *Manager) neighborhood(center Coord, radius int) []Coord {
	out := make([]Coord, 0, (2*radius+1)*(2*radius+1))
	for dz := int64(-radius); dz <= int64(radius); dz++ {
		for dx := int64(-radius); dx <= int64(radius); dx++ {
			out = append(out, Coord{X: center.X + dx, Z: center.Z + dz})
		}
	}
	return out
}

// sortedLoaded snapshots the loaded coordinates in (Z, X) order so that
// map iteration never leaks into observable behavior.
func (m *Manager) sortedLoaded() []Coord {
	out := make([]Coord, 0, len(m.chunks))
	for coord := range m.chunks {
		out = append(out, coord)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].X < out[j].X
	})
	return out
}

// chebyshev is the ring distance between two chunk coordinates.
func chebyshev(a, b Coord) int64 {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dz := a.Z - b.Z
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

// audit records one generation row. Audit failures are logged, never
// fatal; the chunk itself is already complete.
func (m *Manager) audit(ctx context.Context, c *Chunk) {
	if m.queries == nil {
		return
	}
	err := m.queries.CreateGenerationLog(ctx, db.CreateGenerationLogParams{
		ChunkX:        c.Coord.X,
		ChunkZ:        c.Coord.Z,
		Seed:          c.Seed,
		DurationMs:    c.Duration.Milliseconds(),
		Fallback:      c.Fallback,
		NodeCount:     int64(len(c.Roads.SortedNodes())),
		TileCount:     int64(len(c.Roads.SortedTiles())),
		BuildingCount: int64(len(c.Buildings)),
	})
	if err != nil {
		log.Error("failed to write generation log", "error", err,
			"chunk_x", c.Coord.X, "chunk_z", c.Coord.Z)
	}
}

func (m *Manager) publish(eventType string, c *Chunk) {
	if m.pub == nil {
		return
	}
	m.pub.Publish(Event{
		Type:       eventType,
		ChunkX:     c.Coord.X,
		ChunkZ:     c.Coord.Z,
		InstanceID: c.InstanceID.String(),
	})
}
