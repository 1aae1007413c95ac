package chunk_test

import (
	"context"
	"testing"

	"github.com/gridworks/citygen/internal/chunk"
	"github.com/gridworks/citygen/internal/chunk/testutils"
	"github.com/gridworks/citygen/internal/db"
)

func TestChunkCoordAt(t *testing.T) {
	tw := testutils.CreateTestWorld(t, 42)
	defer tw.Cleanup()

	// 16 cells of 4.0 world units give a 64-unit chunk span.
	cases := []struct {
		worldX, worldZ float64
		want           chunk.Coord
	}{
		{0, 0, chunk.Coord{X: 0, Z: 0}},
		{63.9, 63.9, chunk.Coord{X: 0, Z: 0}},
		{64, 0, chunk.Coord{X: 1, Z: 0}},
		{-0.1, -0.1, chunk.Coord{X: -1, Z: -1}},
		{-64, -64.1, chunk.Coord{X: -1, Z: -2}},
		{130, -70, chunk.Coord{X: 2, Z: -2}},
	}
	for _, tc := range cases {
		if got := tw.Manager.ChunkCoordAt(tc.worldX, tc.worldZ); got != tc.want {
			t.Errorf("ChunkCoordAt(%.1f, %.1f) = %v, want %v", tc.worldX, tc.worldZ, got, tc.want)
		}
	}
}

func TestReconcileLoadsViewNeighborhood(t *testing.T) {
	tw := testutils.CreateTestWorld(t, 42)
	defer tw.Cleanup()

	res, err := tw.Manager.ReconcileVisibility(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}

	// View radius 1 means a 3x3 square around the center.
	if res.Center != (chunk.Coord{X: 0, Z: 0}) {
		t.Errorf("center = %v", res.Center)
	}
	if res.Created != 9 || res.Shown != 9 {
		t.Errorf("created = %d, shown = %d, want 9 each", res.Created, res.Shown)
	}
	if res.Visible != 9 || res.Loaded != 9 {
		t.Errorf("visible = %d, loaded = %d, want 9 each", res.Visible, res.Loaded)
	}
	if got := len(tw.Publisher.ByType(chunk.EventShown)); got != 9 {
		t.Errorf("captured %d shown events, want 9", got)
	}

	visible := tw.Manager.VisibleChunks()
	if len(visible) != 9 {
		t.Fatalf("VisibleChunks returned %d chunks", len(visible))
	}
	for _, c := range visible {
		if c.Roads.TileCount() == 0 {
			t.Errorf("visible chunk %v has no road network", c.Coord)
		}
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	tw := testutils.CreateTestWorld(t, 42)
	defer tw.Cleanup()

	ctx := context.Background()
	if _, err := tw.Manager.ReconcileVisibility(ctx, 0, 0); err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}
	res, err := tw.Manager.ReconcileVisibility(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}
	if res.Created != 0 || res.Shown != 0 || res.Hidden != 0 || res.Evicted != 0 {
		t.Errorf("second reconcile at the same position did work: %+v", res)
	}
}

func TestReconcileHidesThenEvicts(t *testing.T) {
	tw := testutils.CreateTestWorld(t, 42)
	defer tw.Cleanup()

	ctx := context.Background()
	if _, err := tw.Manager.ReconcileVisibility(ctx, 0, 0); err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}

	// One chunk east: the x=-1 column leaves the view square but stays
	// inside the keep-behind margin.
	res, err := tw.Manager.ReconcileVisibility(ctx, 64, 0)
	if err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}
	if res.Created != 3 || res.Shown != 3 {
		t.Errorf("created = %d, shown = %d, want 3 each", res.Created, res.Shown)
	}
	if res.Hidden != 3 || res.Evicted != 0 {
		t.Errorf("hidden = %d, evicted = %d, want 3 and 0", res.Hidden, res.Evicted)
	}
	if res.Visible != 9 || res.Loaded != 12 {
		t.Errorf("visible = %d, loaded = %d, want 9 and 12", res.Visible, res.Loaded)
	}
	hidden, ok := tw.Manager.Chunk(chunk.Coord{X: -1, Z: 0})
	if !ok || hidden.Visible {
		t.Error("chunk (-1,0) should be resident but hidden")
	}

	// Two further chunks east: the x=-1 and x=0 columns pass the keep
	// distance and are evicted.
	res, err = tw.Manager.ReconcileVisibility(ctx, 192, 0)
	if err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}
	if res.Evicted != 6 {
		t.Errorf("evicted = %d, want 6", res.Evicted)
	}
	if _, ok := tw.Manager.Chunk(chunk.Coord{X: -1, Z: 0}); ok {
		t.Error("chunk (-1,0) is still resident past the keep distance")
	}
	if got := len(tw.Publisher.ByType(chunk.EventEvicted)); got != 6 {
		t.Errorf("captured %d evicted events, want 6", got)
	}
}

func TestRegeneratedChunkKeepsLayout(t *testing.T) {
	tw := testutils.CreateTestWorld(t, 42)
	defer tw.Cleanup()

	ctx := context.Background()
	first, err := tw.Manager.Ensure(ctx, chunk.Coord{X: 0, Z: 0})
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	firstSnap := stripNondeterminism(chunk.Snapshot(first))
	firstID := first.InstanceID

	// Walk far enough east to evict the origin, then come back.
	if _, err := tw.Manager.ReconcileVisibility(ctx, 640, 0); err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}
	if _, ok := tw.Manager.Chunk(chunk.Coord{X: 0, Z: 0}); ok {
		t.Fatal("origin chunk should have been evicted")
	}
	if _, err := tw.Manager.ReconcileVisibility(ctx, 0, 0); err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}

	second, ok := tw.Manager.Chunk(chunk.Coord{X: 0, Z: 0})
	if !ok {
		t.Fatal("origin chunk missing after returning")
	}
	if second.InstanceID == firstID {
		t.Error("regenerated chunk reused the old instance ID")
	}
	if got := stripNondeterminism(chunk.Snapshot(second)); !sameSnapshot(got, firstSnap) {
		t.Error("regenerated chunk has a different layout")
	}
}

func sameSnapshot(a, b chunk.SnapshotV1) bool {
	if a.Header != b.Header || a.Fallback != b.Fallback {
		return false
	}
	if len(a.Cells) != len(b.Cells) || len(a.Tiles) != len(b.Tiles) {
		return false
	}
	for i := range a.Tiles {
		if a.Tiles[i] != b.Tiles[i] {
			return false
		}
	}
	return true
}

func TestEnsureRetainsHiddenChunk(t *testing.T) {
	tw := testutils.CreateTestWorld(t, 42)
	defer tw.Cleanup()

	coord := chunk.Coord{X: 50, Z: 50}
	c, err := tw.Manager.Ensure(context.Background(), coord)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if c.Visible {
		t.Error("Ensure made the chunk visible")
	}
	again, err := tw.Manager.Ensure(context.Background(), coord)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if again != c {
		t.Error("second Ensure generated a new chunk")
	}
	if tw.Manager.LoadedCount() != 1 {
		t.Errorf("loaded = %d, want 1", tw.Manager.LoadedCount())
	}
}

func TestReconcileWritesAuditRows(t *testing.T) {
	tw := testutils.CreateTestWorld(t, 42)
	defer tw.Cleanup()

	ctx := context.Background()
	if _, err := tw.Manager.ReconcileVisibility(ctx, 0, 0); err != nil {
		t.Fatalf("ReconcileVisibility: %v", err)
	}

	logs, err := db.New(tw.DB).ListRecentGenerationLogs(ctx, 50)
	if err != nil {
		t.Fatalf("ListRecentGenerationLogs: %v", err)
	}
	if len(logs) != 9 {
		t.Fatalf("got %d audit rows, want 9", len(logs))
	}
	for _, l := range logs {
		if l.TileCount == 0 {
			t.Errorf("audit row for (%d,%d) reports no tiles", l.ChunkX, l.ChunkZ)
		}
		if l.Seed == 0 {
			t.Errorf("audit row for (%d,%d) has no seed", l.ChunkX, l.ChunkZ)
		}
	}
}

func TestLoadCatalogsFromStore(t *testing.T) {
	tw := testutils.CreateTestWorld(t, 42)
	defer tw.Cleanup()

	cat, err := chunk.LoadCatalogs(context.Background(), db.New(tw.DB))
	if err != nil {
		t.Fatalf("LoadCatalogs: %v", err)
	}
	if len(cat.Archetypes) == 0 {
		t.Error("no building archetypes seeded")
	}
	if len(cat.Vegetation) == 0 || len(cat.Props) == 0 {
		t.Error("no decoration templates seeded")
	}
	for _, tpl := range cat.Vegetation {
		if tpl.Kind != "vegetation" {
			t.Errorf("vegetation catalog contains kind %q", tpl.Kind)
		}
	}
}
