package chunk

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/gridworks/citygen/internal/building"
	"github.com/gridworks/citygen/internal/decor"
	"github.com/gridworks/citygen/internal/grid"
)

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// SnapshotHeader identifies a snapshot stream.
type SnapshotHeader struct {
	Version    int    `json:"version"`
	ChunkX     int64  `json:"chunk_x"`
	ChunkZ     int64  `json:"chunk_z"`
	InstanceID string `json:"instance_id"`
	Seed       int64  `json:"seed"`
}

// SnapshotCell is one macro cell with its sub-cell occupancy.
type SnapshotCell struct {
	X        int      `json:"x"`
	Z        int      `json:"z"`
	Type     string   `json:"type"`
	Reserved bool     `json:"reserved"`
	Sub      []string `json:"sub"`
}

// SnapshotTile is one resolved road tile.
type SnapshotTile struct {
	X        int    `json:"x"`
	Z        int    `json:"z"`
	Kind     string `json:"kind"`
	Rotation int    `json:"rotation"`
}

// SnapshotV1 is an inspection export of one generated chunk. It is a
// debugging artifact, not persisted world state, and is never read back
// by the generator.
type SnapshotV1 struct {
	Header SnapshotHeader `json:"header"`

	Size       int     `json:"size"`
	CellSize   float64 `json:"cell_size"`
	Fallback   bool    `json:"fallback"`
	DurationMs int64   `json:"duration_ms"`

	Cells       []SnapshotCell       `json:"cells"`
	Tiles       []SnapshotTile       `json:"tiles"`
	Buildings   []building.Placement `json:"buildings"`
	Decorations []decor.Decoration   `json:"decorations"`
	Parks       []decor.Park         `json:"parks"`
}

// Snapshot flattens a chunk into its export form. Cell and tile order
// is deterministic, so two generations of the same chunk produce
// identical snapshots apart from the instance ID.
func Snapshot(c *Chunk) SnapshotV1 {
	snap := SnapshotV1{
		Header: SnapshotHeader{
			Version:    SnapshotVersion,
			ChunkX:     c.Coord.X,
			ChunkZ:     c.Coord.Z,
			InstanceID: c.InstanceID.String(),
			Seed:       c.Seed,
		},
		Size:        c.Grid.Size(),
		CellSize:    c.Grid.CellSize(),
		Fallback:    c.Fallback,
		DurationMs:  c.Duration.Milliseconds(),
		Buildings:   c.Buildings,
		Decorations: c.Decorations,
		Parks:       c.Parks,
	}

	c.Grid.EachCell(func(cell *grid.MacroCell) {
		sub := make([]string, len(cell.Sub))
		for i := range cell.Sub {
			sub[i] = cell.Sub[i].Type.String()
		}
		snap.Cells = append(snap.Cells, SnapshotCell{
			X:        cell.LocalX,
			Z:        cell.LocalZ,
			Type:     cell.Type.String(),
			Reserved: cell.Reserved,
			Sub:      sub,
		})
	})
	for _, t := range c.Roads.SortedTiles() {
		snap.Tiles = append(snap.Tiles, SnapshotTile{
			X:        t.Pos.X,
			Z:        t.Pos.Z,
			Kind:     t.Kind.String(),
			Rotation: t.Rotation,
		})
	}
	return snap
}

// WriteSnapshot streams a zstd-compressed JSON snapshot: a one-line
// header followed by the full document, both inside the compressed
// stream.
func WriteSnapshot(w io.Writer, c *Chunk) error {
	snap := Snapshot(c)

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to open zstd stream: %w", err)
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}
