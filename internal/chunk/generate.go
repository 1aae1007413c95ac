package chunk

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gridworks/citygen/internal/building"
	"github.com/gridworks/citygen/internal/config"
	"github.com/gridworks/citygen/internal/decor"
	"github.com/gridworks/citygen/internal/grid"
	"github.com/gridworks/citygen/internal/mathx"
	"github.com/gridworks/citygen/internal/roadnet"
)

// Config carries all generation tuning. It is immutable once the
// Manager holds it.
type Config struct {
	WorldSeed        int64
	ChunkSize        int     // macro cells per axis
	CellSize         float64 // world units per macro cell
	ViewRadius       int     // chunk rings visible around the viewer
	KeepBehindMargin int     // extra rings retained hidden before eviction
	Workers          int     // parallel scan pool size

	Road  roadnet.Config
	Decor decor.Config
}

// ConfigFromTuning maps the validated world tuning onto a generation
// config.
func ConfigFromTuning(worldSeed int64, t config.Tuning) Config {
	return Config{
		WorldSeed:        worldSeed,
		ChunkSize:        t.ChunkSize,
		CellSize:         t.CellSize,
		ViewRadius:       t.ViewRadius,
		KeepBehindMargin: t.KeepBehindMargin,
		Workers:          t.Workers,
		Road: roadnet.Config{
			ArterialCount:     t.Roads.ArterialCount,
			BranchStep:        t.Roads.BranchStep,
			BranchProbability: t.Roads.BranchProbability,
			MinNodeSpacing:    t.Roads.MinNodeSpacing,
			NearestRadius:     t.Roads.NearestRadius,
			BorderMin:         t.Roads.BorderMin,
			BorderMax:         t.Roads.BorderMax,
			BorderRange:       t.Roads.BorderRange,
			CurveSteps:        t.Roads.CurveSteps,
			NodeBudget:        t.Roads.NodeBudget,
			TimeBudget:        t.Roads.TimeBudget(),
			Workers:           t.Workers,
		},
		Decor: decor.Config{
			VegetationDensity: t.Decor.VegetationDensity,
			PropDensity:       t.Decor.PropDensity,
			MinParkSize:       t.Decor.MinParkSize,
			FloodFillCap:      t.Decor.FloodFillCap,
		},
	}
}

// Generate runs the full pipeline for one chunk coordinate: roads,
// buildings, then decoration. The chunk is complete when this returns;
// a panic inside any stage is converted into an error instead of
// escaping to the caller.
func Generate(cfg Config, cat Catalogs, coord Coord) (c *Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("chunk (%d,%d) generation panic: %v", coord.X, coord.Z, r)
		}
	}()

	start := time.Now()
	seed := mathx.ChunkSeed(cfg.WorldSeed, coord.X, coord.Z)
	rng := rand.New(rand.NewSource(seed))
	g := grid.New(coord.X, coord.Z, cfg.ChunkSize, cfg.CellSize)

	synth, err := roadnet.NewSynthesizer(cfg.Road, g, rng)
	if err != nil {
		return nil, fmt.Errorf("road synthesis setup: %w", err)
	}
	roads := synth.Run()

	placer, err := building.NewPlacer(cat.Archetypes, g, roads.Network, rng)
	if err != nil {
		return nil, fmt.Errorf("building placement setup: %w", err)
	}
	placements := placer.Run()

	pass, err := decor.NewPass(cfg.Decor, g, rng, cat.Vegetation, cat.Props, nil)
	if err != nil {
		return nil, fmt.Errorf("decoration setup: %w", err)
	}
	decorations, parks := pass.Run()

	c = &Chunk{
		Coord:       coord,
		InstanceID:  uuid.New(),
		Seed:        seed,
		Grid:        g,
		Roads:       roads.Network,
		Buildings:   placements,
		Decorations: decorations,
		Parks:       parks,
		Fallback:    roads.Fallback,
		GeneratedAt: start,
		Duration:    time.Since(start),
	}

	log.Debug("generated chunk",
		"chunk_x", coord.X, "chunk_z", coord.Z, "seed", seed,
		"nodes", len(c.Roads.SortedNodes()), "tiles", len(c.Roads.SortedTiles()),
		"buildings", len(placements), "decorations", len(decorations),
		"fallback", c.Fallback, "duration", c.Duration)
	return c, nil
}
