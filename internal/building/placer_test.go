package building

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gridworks/citygen/internal/db"
	"github.com/gridworks/citygen/internal/grid"
	"github.com/gridworks/citygen/internal/roadnet"
)

func testArchetypes() []Archetype {
	return []Archetype{
		{Category: "tower", FootprintWidth: 2, FootprintDepth: 2, SpawnProbability: 0.10, Variants: []string{"glass", "brick"}},
		{Category: "office", FootprintWidth: 2, FootprintDepth: 1, SpawnProbability: 0.15},
		{Category: "shop", FootprintWidth: 1, FootprintDepth: 1, SpawnProbability: 0.30, Variants: []string{"corner", "strip"}},
		{Category: "house", FootprintWidth: 1, FootprintDepth: 1, SpawnProbability: 0.45},
	}
}

func synthRoads(t *testing.T, g *grid.Grid, seed int64) *roadnet.Network {
	t.Helper()
	cfg := roadnet.Config{
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
	}
	s, err := roadnet.NewSynthesizer(cfg, g, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	return s.Run().Network
}

func runPlacer(t *testing.T, seed int64) (*grid.Grid, *roadnet.Network, []Placement) {
	t.Helper()
	g := grid.New(0, 0, 16, 4.0)
	net := synthRoads(t, g, seed)
	p, err := NewPlacer(testArchetypes(), g, net, rand.New(rand.NewSource(seed+1)))
	if err != nil {
		t.Fatalf("NewPlacer: %v", err)
	}
	return g, net, p.Run()
}

func TestNewPlacerRejectsMissingRefs(t *testing.T) {
	g := grid.New(0, 0, 16, 4.0)
	net := roadnet.NewNetwork()
	rng := rand.New(rand.NewSource(1))

	if _, err := NewPlacer(nil, nil, net, rng); err != ErrMissingRefs {
		t.Errorf("nil grid: err = %v, want ErrMissingRefs", err)
	}
	if _, err := NewPlacer(nil, g, nil, rng); err != ErrMissingRefs {
		t.Errorf("nil network: err = %v, want ErrMissingRefs", err)
	}
	if _, err := NewPlacer(nil, g, net, nil); err != ErrMissingRefs {
		t.Errorf("nil rng: err = %v, want ErrMissingRefs", err)
	}
}

func TestEmptyCatalogPlacesNothing(t *testing.T) {
	g := grid.New(0, 0, 16, 4.0)
	net := synthRoads(t, g, 42)
	p, err := NewPlacer(nil, g, net, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewPlacer: %v", err)
	}
	if got := p.Run(); len(got) != 0 {
		t.Errorf("placed %d buildings with an empty catalog", len(got))
	}
}

func TestFootprintsOccupyBuildingCells(t *testing.T) {
	g, _, placed := runPlacer(t, 42)
	if len(placed) == 0 {
		t.Fatal("expected at least one placement on a synthesized network")
	}

	for _, pl := range placed {
		for z := pl.AnchorZ; z < pl.AnchorZ+pl.Depth; z++ {
			for x := pl.AnchorX; x < pl.AnchorX+pl.Width; x++ {
				c, err := g.Cell(x, z)
				if err != nil {
					t.Fatalf("footprint cell (%d,%d) outside chunk: %v", x, z, err)
				}
				if c.Type != grid.CellBuilding {
					t.Errorf("footprint cell (%d,%d) is %v, want building", x, z, c.Type)
				}
			}
		}
	}
}

func TestFootprintsNeverOverlap(t *testing.T) {
	_, _, placed := runPlacer(t, 42)

	occupied := map[[2]int]int{}
	for i, pl := range placed {
		for z := pl.AnchorZ; z < pl.AnchorZ+pl.Depth; z++ {
			for x := pl.AnchorX; x < pl.AnchorX+pl.Width; x++ {
				key := [2]int{x, z}
				if prev, ok := occupied[key]; ok {
					t.Errorf("cell (%d,%d) claimed by placements %d and %d", x, z, prev, i)
				}
				occupied[key] = i
			}
		}
	}
}

func TestBufferRingReserved(t *testing.T) {
	g, _, placed := runPlacer(t, 42)

	for _, pl := range placed {
		check := func(x, z int) {
			c, err := g.Cell(x, z)
			if err != nil {
				return // ring cells outside the chunk are fine
			}
			if c.Type == grid.CellEmpty && !c.Reserved {
				t.Errorf("buffer cell (%d,%d) next to building at (%d,%d) is unreserved",
					x, z, pl.AnchorX, pl.AnchorZ)
			}
		}
		for x := pl.AnchorX; x < pl.AnchorX+pl.Width; x++ {
			check(x, pl.AnchorZ-1)
			check(x, pl.AnchorZ+pl.Depth)
		}
		for z := pl.AnchorZ; z < pl.AnchorZ+pl.Depth; z++ {
			check(pl.AnchorX-1, z)
			check(pl.AnchorX+pl.Width, z)
		}
	}
}

func TestPlacementDeterministic(t *testing.T) {
	_, _, a := runPlacer(t, 42)
	_, _, b := runPlacer(t, 42)

	if len(a) != len(b) {
		t.Fatalf("placement count mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("placement %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRotationsAreAxisAligned(t *testing.T) {
	_, _, placed := runPlacer(t, 42)
	for _, pl := range placed {
		switch pl.Rotation {
		case 0, 90, 180, 270:
		default:
			t.Errorf("placement at (%d,%d) has rotation %d", pl.AnchorX, pl.AnchorZ, pl.Rotation)
		}
	}
}

func TestVariantsComeFromCatalog(t *testing.T) {
	_, _, placed := runPlacer(t, 42)
	byCategory := map[string]Archetype{}
	for _, a := range testArchetypes() {
		byCategory[a.Category] = a
	}

	for _, pl := range placed {
		a, ok := byCategory[pl.Category]
		if !ok {
			t.Errorf("placement has unknown category %q", pl.Category)
			continue
		}
		if len(a.Variants) == 0 {
			if pl.Variant != "" {
				t.Errorf("%s placement has variant %q but the archetype declares none", pl.Category, pl.Variant)
			}
			continue
		}
		found := false
		for _, v := range a.Variants {
			if v == pl.Variant {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%s placement has variant %q, not in %v", pl.Category, pl.Variant, a.Variants)
		}
	}
}

func TestArchetypesFromRows(t *testing.T) {
	rows := []db.BuildingArchetype{
		{Category: "tower", FootprintWidth: 2, FootprintDepth: 2, SpawnProbability: 0.1, Variants: "glass,brick"},
		{Category: "house", FootprintWidth: 1, FootprintDepth: 1, SpawnProbability: 0.45, Variants: ""},
	}
	got := ArchetypesFromRows(rows)
	if len(got) != 2 {
		t.Fatalf("got %d archetypes, want 2", len(got))
	}
	if got[0].FootprintWidth != 2 || got[0].FootprintDepth != 2 {
		t.Errorf("tower footprint = %dx%d, want 2x2", got[0].FootprintWidth, got[0].FootprintDepth)
	}
	if len(got[0].Variants) != 2 || got[0].Variants[0] != "glass" || got[0].Variants[1] != "brick" {
		t.Errorf("tower variants = %v, want [glass brick]", got[0].Variants)
	}
	if len(got[1].Variants) != 0 {
		t.Errorf("house variants = %v, want none", got[1].Variants)
	}
}
