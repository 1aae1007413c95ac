package building

import (
	"errors"
	"math/rand"

	"github.com/gridworks/citygen/internal/grid"
	"github.com/gridworks/citygen/internal/mathx"
	"github.com/gridworks/citygen/internal/roadnet"
)

// ErrMissingRefs flags a placer constructed without its grid or network,
// a setup defect that aborts generation for the chunk.
var ErrMissingRefs = errors.New("building placement requires grid and road network references")

// Placer runs the greedy building placement pass for one chunk.
type Placer struct {
	archetypes []Archetype
	g          *grid.Grid
	net        *roadnet.Network
	rng        *rand.Rand
}

// NewPlacer validates references. An empty archetype catalog is allowed
// and produces no placements.
func NewPlacer(archetypes []Archetype, g *grid.Grid, net *roadnet.Network, rng *rand.Rand) (*Placer, error) {
	if g == nil || net == nil || rng == nil {
		return nil, ErrMissingRefs
	}
	return &Placer{archetypes: archetypes, g: g, net: net, rng: rng}, nil
}

// Run inspects the four grid-adjacent cells of every placed road tile in
// deterministic order. For each unreserved empty cell the archetypes are
// tested in declared order against their independent spawn probability;
// the first winner whose footprint fits entirely in unreserved empty
// cells is placed. Conflicts with roads or other buildings are no-ops.
func (p *Placer) Run() []Placement {
	var placed []Placement
	for _, tile := range p.net.SortedTiles() {
		for _, d := range roadnet.Directions {
			anchor := tile.Pos.Add(d)
			cell, err := p.g.Cell(anchor.X, anchor.Z)
			if err != nil {
				continue // outside the chunk, nothing to place
			}
			if cell.Type != grid.CellEmpty || cell.Reserved {
				continue
			}
			for _, a := range p.archetypes {
				if p.rng.Float64() >= a.SpawnProbability {
					continue
				}
				if !p.fits(anchor.X, anchor.Z, a.FootprintWidth, a.FootprintDepth) {
					continue
				}
				placed = append(placed, p.place(anchor.X, anchor.Z, a))
				break
			}
		}
	}
	return placed
}

// fits reports whether the footprint anchored at (ax, az) lies fully
// within chunk bounds on unreserved empty cells.
func (p *Placer) fits(ax, az, w, d int) bool {
	for z := az; z < az+d; z++ {
		for x := ax; x < ax+w; x++ {
			c, err := p.g.Cell(x, z)
			if err != nil {
				return false
			}
			if c.Type != grid.CellEmpty || c.Reserved {
				return false
			}
		}
	}
	return true
}

// place reserves the footprint plus a one-cell buffer ring so buildings
// never directly abut without a road or gap between them, then orients
// the building toward the nearest road tile snapped to the four
// axis-aligned rotations.
func (p *Placer) place(ax, az int, a Archetype) Placement {
	for z := az; z < az+a.FootprintDepth; z++ {
		for x := ax; x < ax+a.FootprintWidth; x++ {
			_ = p.g.SetCellType(x, z, grid.CellBuilding)
		}
	}
	p.reserveBuffer(ax, az, a.FootprintWidth, a.FootprintDepth)

	variant := ""
	if len(a.Variants) > 0 {
		variant = a.Variants[p.rng.Intn(len(a.Variants))]
	}

	return Placement{
		AnchorX:  ax,
		AnchorZ:  az,
		Width:    a.FootprintWidth,
		Depth:    a.FootprintDepth,
		Category: a.Category,
		Variant:  variant,
		Rotation: p.facingRotation(ax, az, a.FootprintWidth, a.FootprintDepth),
	}
}

// reserveBuffer marks the 4-directionally adjacent cells of the footprint
// as reserved. Occupied cells are left alone.
func (p *Placer) reserveBuffer(ax, az, w, d int) {
	mark := func(x, z int) {
		c, err := p.g.Cell(x, z)
		if err != nil {
			return
		}
		if c.Type == grid.CellEmpty && !c.Reserved {
			_ = p.g.Reserve(x, z)
		}
	}
	for x := ax; x < ax+w; x++ {
		mark(x, az-1)
		mark(x, az+d)
	}
	for z := az; z < az+d; z++ {
		mark(ax-1, z)
		mark(ax+w, z)
	}
}

// facingRotation finds the nearest road tile to the footprint center and
// snaps the facing direction to 0/90/180/270.
func (p *Placer) facingRotation(ax, az, w, d int) int {
	cx := float64(ax) + float64(w-1)/2
	cz := float64(az) + float64(d-1)/2
	target, ok := p.net.NearestTile(cx, cz)
	if !ok {
		return 0
	}
	dx := float64(target.X) - cx
	dz := float64(target.Z) - cz
	if mathx.AbsInt(int(dx*2)) >= mathx.AbsInt(int(dz*2)) {
		if dx >= 0 {
			return 90 // faces east
		}
		return 270 // faces west
	}
	if dz >= 0 {
		return 180 // faces south
	}
	return 0 // faces north
}
