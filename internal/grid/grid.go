// Package grid implements the two-level spatial grid a chunk is addressed
// through: coarse macro cells for roads, buildings and parks, and 2x2 sub
// cells per macro cell for fine scatter placement. All coordinates are
// local to the owning chunk; world anchors are derived once at construction
// and cached, never treated as authoritative state.
package grid

import (
	"errors"
	"fmt"
)

// ErrCellNotFound is returned for lookups outside the chunk's macro-cell bounds.
var ErrCellNotFound = errors.New("cell not found")

// CellType tags what occupies a cell.
type CellType int

const (
	CellEmpty CellType = iota
	CellRoad
	CellPark
	CellBuilding
	CellReserved
)

func (t CellType) String() string {
	switch t {
	case CellEmpty:
		return "empty"
	case CellRoad:
		return "road"
	case CellPark:
		return "park"
	case CellBuilding:
		return "building"
	case CellReserved:
		return "reserved"
	default:
		return fmt.Sprintf("celltype(%d)", int(t))
	}
}

// SubCellsPerAxis is the fixed 2x2 subdivision of a macro cell.
const SubCellsPerAxis = 2

// SubCell is the fine addressable unit used for scatter placement that
// must not contend for coarse occupancy.
type SubCell struct {
	Type     CellType `json:"type"`
	WorldX   float64  `json:"world_x"`
	WorldZ   float64  `json:"world_z"`
	Reserved bool     `json:"reserved"`
}

// MacroCell is the coarse addressable unit inside a chunk's local grid.
type MacroCell struct {
	LocalX   int        `json:"local_x"`
	LocalZ   int        `json:"local_z"`
	WorldX   float64    `json:"world_x"`
	WorldZ   float64    `json:"world_z"`
	Type     CellType   `json:"type"`
	Reserved bool       `json:"reserved"`
	Sub      [4]SubCell `json:"sub"`
}

// SubIndex maps a 2x2 sub coordinate to its slot in MacroCell.Sub.
func SubIndex(sx, sz int) int {
	return sz*SubCellsPerAxis + sx
}

// Grid is the per-chunk macro-cell lattice.
type Grid struct {
	chunkX   int64
	chunkZ   int64
	size     int
	cellSize float64
	cells    []MacroCell
}

// New builds a size x size grid for the chunk at (chunkX, chunkZ) with
// macro cells cellSize world units across. World anchors for every cell
// and sub cell are computed here, the only place local-to-world
// conversion happens.
func New(chunkX, chunkZ int64, size int, cellSize float64) *Grid {
	g := &Grid{
		chunkX:   chunkX,
		chunkZ:   chunkZ,
		size:     size,
		cellSize: cellSize,
		cells:    make([]MacroCell, size*size),
	}
	originX := float64(chunkX) * float64(size) * cellSize
	originZ := float64(chunkZ) * float64(size) * cellSize
	subSize := cellSize / SubCellsPerAxis
	for lz := 0; lz < size; lz++ {
		for lx := 0; lx < size; lx++ {
			c := &g.cells[lz*size+lx]
			c.LocalX = lx
			c.LocalZ = lz
			c.WorldX = originX + (float64(lx)+0.5)*cellSize
			c.WorldZ = originZ + (float64(lz)+0.5)*cellSize
			for sz := 0; sz < SubCellsPerAxis; sz++ {
				for sx := 0; sx < SubCellsPerAxis; sx++ {
					s := &c.Sub[SubIndex(sx, sz)]
					s.WorldX = originX + float64(lx)*cellSize + (float64(sx)+0.5)*subSize
					s.WorldZ = originZ + float64(lz)*cellSize + (float64(sz)+0.5)*subSize
				}
			}
		}
	}
	return g
}

// Size returns the number of macro cells per side.
func (g *Grid) Size() int {
	return g.size
}

// CellSize returns the world size of one macro cell.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

// ChunkCoord returns the owning chunk's lattice coordinate.
func (g *Grid) ChunkCoord() (int64, int64) {
	return g.chunkX, g.chunkZ
}

// InBounds reports whether a local macro coordinate is inside the grid.
func (g *Grid) InBounds(lx, lz int) bool {
	return lx >= 0 && lz >= 0 && lx < g.size && lz < g.size
}

// Cell returns the macro cell at a local coordinate, or ErrCellNotFound
// when the coordinate lies outside the chunk.
func (g *Grid) Cell(lx, lz int) (*MacroCell, error) {
	if !g.InBounds(lx, lz) {
		return nil, fmt.Errorf("cell (%d,%d): %w", lx, lz, ErrCellNotFound)
	}
	return &g.cells[lz*g.size+lx], nil
}

// SetCellType sets a macro cell's type. Road and Building occupancy is
// pushed down to all four sub cells immediately so later stages never see
// a macro cell that disagrees with its sub cells.
func (g *Grid) SetCellType(lx, lz int, t CellType) error {
	c, err := g.Cell(lx, lz)
	if err != nil {
		return err
	}
	c.Type = t
	if t != CellEmpty {
		c.Reserved = true
	}
	if t == CellRoad || t == CellBuilding || t == CellPark {
		for i := range c.Sub {
			c.Sub[i].Type = t
			c.Sub[i].Reserved = true
		}
	}
	return nil
}

// Reserve marks a macro cell reserved without assigning an occupant type.
func (g *Grid) Reserve(lx, lz int) error {
	c, err := g.Cell(lx, lz)
	if err != nil {
		return err
	}
	c.Reserved = true
	if c.Type == CellEmpty {
		c.Type = CellReserved
	}
	for i := range c.Sub {
		c.Sub[i].Reserved = true
	}
	return nil
}

// ClearCell resets a macro cell and its sub cells to empty/unreserved.
// Used when an overlapping road tile is destroyed before replacement.
func (g *Grid) ClearCell(lx, lz int) error {
	c, err := g.Cell(lx, lz)
	if err != nil {
		return err
	}
	c.Type = CellEmpty
	c.Reserved = false
	for i := range c.Sub {
		c.Sub[i].Type = CellEmpty
		c.Sub[i].Reserved = false
	}
	return nil
}

// MarkSubCell sets one sub cell's type and reservation. Occupying a sub
// cell with Road or Building promotes the owning macro cell before anyone
// else can read it.
func (g *Grid) MarkSubCell(lx, lz, sx, sz int, t CellType) error {
	c, err := g.Cell(lx, lz)
	if err != nil {
		return err
	}
	if sx < 0 || sz < 0 || sx >= SubCellsPerAxis || sz >= SubCellsPerAxis {
		return fmt.Errorf("sub cell (%d,%d) of (%d,%d): %w", sx, sz, lx, lz, ErrCellNotFound)
	}
	s := &c.Sub[SubIndex(sx, sz)]
	s.Type = t
	if t != CellEmpty {
		s.Reserved = true
	}
	if t == CellRoad || t == CellBuilding {
		c.Type = t
		c.Reserved = true
	}
	return nil
}

// EachCell visits every macro cell in row-major order.
func (g *Grid) EachCell(fn func(c *MacroCell)) {
	for i := range g.cells {
		fn(&g.cells[i])
	}
}

// EachSubCell visits every sub cell in deterministic row-major order.
func (g *Grid) EachSubCell(fn func(c *MacroCell, sx, sz int, s *SubCell)) {
	for i := range g.cells {
		c := &g.cells[i]
		for sz := 0; sz < SubCellsPerAxis; sz++ {
			for sx := 0; sx < SubCellsPerAxis; sx++ {
				fn(c, sx, sz, &c.Sub[SubIndex(sx, sz)])
			}
		}
	}
}
