package chunk_test

import (
	"reflect"
	"testing"

	"github.com/gridworks/citygen/internal/chunk"
	"github.com/gridworks/citygen/internal/chunk/testutils"
	"github.com/gridworks/citygen/internal/mathx"
)

// stripNondeterminism zeroes the per-generation identity and timing so
// two runs of the same chunk can be compared structurally.
func stripNondeterminism(s chunk.SnapshotV1) chunk.SnapshotV1 {
	s.Header.InstanceID = ""
	s.DurationMs = 0
	return s
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := testutils.DefaultConfig(42)
	cat := testutils.DefaultCatalogs()
	coord := chunk.Coord{X: 3, Z: -2}

	a, err := chunk.Generate(cfg, cat, coord)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := chunk.Generate(cfg, cat, coord)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if a.InstanceID == b.InstanceID {
		t.Error("two generations share an instance ID")
	}

	sa := stripNondeterminism(chunk.Snapshot(a))
	sb := stripNondeterminism(chunk.Snapshot(b))
	if !reflect.DeepEqual(sa, sb) {
		t.Error("same world seed and coordinate produced different chunks")
	}
}

func TestGenerateSeedDerivation(t *testing.T) {
	cfg := testutils.DefaultConfig(42)
	cat := testutils.DefaultCatalogs()

	c, err := chunk.Generate(cfg, cat, chunk.Coord{X: 5, Z: 7})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := mathx.ChunkSeed(42, 5, 7); c.Seed != want {
		t.Errorf("chunk seed = %d, want %d", c.Seed, want)
	}
}

func TestGenerateVariesByCoordinate(t *testing.T) {
	cfg := testutils.DefaultConfig(42)
	cat := testutils.DefaultCatalogs()

	a, err := chunk.Generate(cfg, cat, chunk.Coord{X: 0, Z: 0})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := chunk.Generate(cfg, cat, chunk.Coord{X: 1, Z: 0})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	sa := stripNondeterminism(chunk.Snapshot(a))
	sb := stripNondeterminism(chunk.Snapshot(b))
	sa.Header = chunk.SnapshotHeader{}
	sb.Header = chunk.SnapshotHeader{}
	if reflect.DeepEqual(sa, sb) {
		t.Error("neighboring chunks came out identical")
	}
}

func TestGenerateConnectedNetwork(t *testing.T) {
	cfg := testutils.DefaultConfig(42)
	cat := testutils.DefaultCatalogs()

	for _, coord := range []chunk.Coord{{X: 0, Z: 0}, {X: -4, Z: 9}, {X: 100, Z: -100}} {
		c, err := chunk.Generate(cfg, cat, coord)
		if err != nil {
			t.Fatalf("Generate(%v): %v", coord, err)
		}
		tiles := c.Roads.SortedTiles()
		if len(tiles) == 0 {
			t.Fatalf("chunk %v has no road tiles", coord)
		}
		if reached := c.Roads.ConnectedFrom(tiles[0].Pos); reached != len(tiles) {
			t.Errorf("chunk %v: %d of %d tiles reachable", coord, reached, len(tiles))
		}
	}
}

func TestGenerateFallbackOnZeroBudget(t *testing.T) {
	cfg := testutils.DefaultConfig(42)
	cfg.Road.TimeBudget = 0
	cat := testutils.DefaultCatalogs()

	c, err := chunk.Generate(cfg, cat, chunk.Coord{X: 0, Z: 0})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !c.Fallback {
		t.Error("expected the fallback flag under a zero road budget")
	}
	if c.Roads.TileCount() == 0 {
		t.Error("fallback chunk has no road tiles")
	}
}

func TestGenerateRejectsInvalidRoadConfig(t *testing.T) {
	cfg := testutils.DefaultConfig(42)
	cfg.Road.ArterialCount = 0

	if _, err := chunk.Generate(cfg, testutils.DefaultCatalogs(), chunk.Coord{}); err == nil {
		t.Fatal("expected a setup error for an arterial count of zero")
	}
}
