package roadnet

import (
	"math/rand"
	"testing"
	"time"

	"github.com/gridworks/citygen/internal/grid"
	"github.com/gridworks/citygen/internal/mathx"
)

func testConfig() Config {
	return Config{
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
}

func runSynth(t *testing.T, cfg Config, seed int64) (*grid.Grid, Result) {
	t.Helper()
	g := grid.New(0, 0, 16, 4.0)
	s, err := NewSynthesizer(cfg, g, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	return g, s.Run()
}

func TestSynthesisDeterministic(t *testing.T) {
	_, a := runSynth(t, testConfig(), 1234)
	_, b := runSynth(t, testConfig(), 1234)

	if a.Fallback != b.Fallback {
		t.Fatalf("fallback mismatch: %v vs %v", a.Fallback, b.Fallback)
	}

	ta, tb := a.Network.SortedTiles(), b.Network.SortedTiles()
	if len(ta) != len(tb) {
		t.Fatalf("tile count mismatch: %d vs %d", len(ta), len(tb))
	}
	for i := range ta {
		if *ta[i] != *tb[i] {
			t.Errorf("tile %d differs: %+v vs %+v", i, *ta[i], *tb[i])
		}
	}

	va, vb := a.Network.RoadView(), b.Network.RoadView()
	if len(va) != len(vb) {
		t.Fatalf("road view size mismatch: %d vs %d", len(va), len(vb))
	}
	for pos, dirs := range va {
		if !sameDirs(dirs, vb[pos]) {
			t.Errorf("road view at %v differs", pos)
		}
	}
}

func TestSynthesisVariesBySeed(t *testing.T) {
	_, a := runSynth(t, testConfig(), 1)
	_, b := runSynth(t, testConfig(), 2)

	ta, tb := a.Network.SortedTiles(), b.Network.SortedTiles()
	if len(ta) == len(tb) {
		same := true
		for i := range ta {
			if *ta[i] != *tb[i] {
				same = false
				break
			}
		}
		if same {
			t.Error("different seeds produced identical networks")
		}
	}
}

func TestSynthesisSingleComponent(t *testing.T) {
	for _, seed := range []int64{1, 42, 999} {
		_, res := runSynth(t, testConfig(), seed)
		tiles := res.Network.SortedTiles()
		if len(tiles) == 0 {
			t.Fatalf("seed %d produced an empty network", seed)
		}
		reached := res.Network.ConnectedFrom(tiles[0].Pos)
		if reached != len(tiles) {
			t.Errorf("seed %d: reached %d of %d tiles from %v", seed, reached, len(tiles), tiles[0].Pos)
		}
	}
}

func TestSynthesisTilesMatchGrid(t *testing.T) {
	g, res := runSynth(t, testConfig(), 42)

	roadCells := 0
	g.EachCell(func(c *grid.MacroCell) {
		if c.Type == grid.CellRoad {
			roadCells++
		}
	})
	if roadCells != res.Network.TileCount() {
		t.Errorf("grid has %d road cells, network has %d tiles", roadCells, res.Network.TileCount())
	}

	for _, tile := range res.Network.SortedTiles() {
		c, err := g.Cell(tile.Pos.X, tile.Pos.Z)
		if err != nil {
			t.Fatalf("tile %v off grid: %v", tile.Pos, err)
		}
		if c.Type != grid.CellRoad {
			t.Errorf("cell under tile %v is %v, want road", tile.Pos, c.Type)
		}
	}
}

func TestTileKindsMatchDegree(t *testing.T) {
	_, res := runSynth(t, testConfig(), 7)
	view := res.Network.RoadView()

	wantKind := map[int]TileKind{
		1: TileDeadEnd,
		2: TileStraight, // or corner, checked below
		3: TileTJunction,
		4: TileCross,
	}

	for _, tile := range res.Network.SortedTiles() {
		degree := 0
		for _, d := range []Point{north, east, south, west} {
			if _, ok := view[tile.Pos.Add(d)]; ok {
				degree++
			}
		}
		switch degree {
		case 2:
			if tile.Kind != TileStraight && tile.Kind != TileCorner {
				t.Errorf("tile %v degree 2 resolved to %v", tile.Pos, tile.Kind)
			}
		default:
			if tile.Kind != wantKind[degree] {
				t.Errorf("tile %v degree %d resolved to %v", tile.Pos, degree, tile.Kind)
			}
		}
	}
}

func TestZeroTimeBudgetFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.TimeBudget = 0

	g, res := runSynth(t, cfg, 42)
	if !res.Fallback {
		t.Fatal("expected fallback network under a zero time budget")
	}

	// The fallback is a fixed cross through the chunk center, independent
	// of seed.
	c := g.Size() / 2
	for i := 0; i < g.Size(); i++ {
		if res.Network.TileAt(Point{X: i, Z: c}) == nil {
			t.Errorf("missing horizontal fallback tile at x=%d", i)
		}
		if res.Network.TileAt(Point{X: c, Z: i}) == nil {
			t.Errorf("missing vertical fallback tile at z=%d", i)
		}
	}

	_, other := runSynth(t, cfg, 99)
	if other.Network.TileCount() != res.Network.TileCount() {
		t.Error("fallback network should not depend on the seed")
	}
}

func TestBorderLinkReachesEdge(t *testing.T) {
	// BorderMin of 1 guarantees at least one carved border connection, and
	// every connection starts from a node on the chunk boundary.
	g, res := runSynth(t, testConfig(), 42)

	size := g.Size()
	onEdge := false
	for _, n := range res.Network.SortedNodes() {
		if !n.BorderLink {
			continue
		}
		p := n.Pos
		if p.X == 0 || p.Z == 0 || p.X == size-1 || p.Z == size-1 {
			onEdge = true
			break
		}
	}
	if !onEdge {
		t.Error("no border-link node sits on the chunk boundary")
	}
}

func TestAdjacentChunksExposeBorderNodes(t *testing.T) {
	// Two independently generated neighbors must each place a road tile
	// within the border-connection range of the shared boundary, so that
	// cross-chunk travel always has a joining point on both sides.
	cfg := testConfig()
	const size = 16

	genAt := func(cx, cz int64) Result {
		g := grid.New(cx, cz, size, 4.0)
		s, err := NewSynthesizer(cfg, g, rand.New(rand.NewSource(mathx.ChunkSeed(42, cx, cz))))
		if err != nil {
			t.Fatalf("NewSynthesizer(%d,%d): %v", cx, cz, err)
		}
		return s.Run()
	}

	pairs := []struct{ ax, az, bx, bz int64 }{
		{0, 0, 1, 0},
		{5, -3, 6, -3},
		{-2, 7, -1, 7},
	}
	for _, pair := range pairs {
		west := genAt(pair.ax, pair.az)
		east := genAt(pair.bx, pair.bz)

		hasTileNear := func(res Result, inRange func(Point) bool) bool {
			for _, tile := range res.Network.SortedTiles() {
				if inRange(tile.Pos) {
					return true
				}
			}
			return false
		}
		if !hasTileNear(west, func(p Point) bool { return p.X >= size-1-cfg.BorderRange }) {
			t.Errorf("chunk (%d,%d) has no road tile near its east boundary", pair.ax, pair.az)
		}
		if !hasTileNear(east, func(p Point) bool { return p.X <= cfg.BorderRange }) {
			t.Errorf("chunk (%d,%d) has no road tile near its west boundary", pair.bx, pair.bz)
		}
	}
}

func TestNewSynthesizerRejectsMissingInputs(t *testing.T) {
	if _, err := NewSynthesizer(testConfig(), nil, rand.New(rand.NewSource(1))); err == nil {
		t.Error("expected error for nil grid")
	}
	if _, err := NewSynthesizer(testConfig(), grid.New(0, 0, 16, 4.0), nil); err == nil {
		t.Error("expected error for nil rng")
	}
}
