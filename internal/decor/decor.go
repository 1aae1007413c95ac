// Package decor runs the lowest-priority generation stage: vegetation
// scatter, opportunistic flood-filled parks and ambient props placed on
// whatever grid cells remain free after roads and buildings.
package decor

import (
	"errors"
	"math/rand"

	"github.com/charmbracelet/log"

	"github.com/gridworks/citygen/internal/db"
	"github.com/gridworks/citygen/internal/grid"
)

// Template is one scatter template from the catalog store.
type Template struct {
	Kind   string  `json:"kind"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// TemplatesFromRows converts catalog rows into scatter templates.
func TemplatesFromRows(rows []db.DecorTemplate) []Template {
	out := make([]Template, len(rows))
	for i, r := range rows {
		out[i] = Template{Kind: r.Kind, Name: r.Name, Weight: r.Weight}
	}
	return out
}

// ErrMissingGrid flags a pass constructed without its grid reference.
var ErrMissingGrid = errors.New("decoration pass requires a grid reference")

// ClearanceProbe is an optional hook into a collision layer. When
// present, scatter placement additionally requires a clear probe.
type ClearanceProbe interface {
	Clear(worldX, worldZ float64) bool
}

// Config tunes the decoration densities.
type Config struct {
	VegetationDensity float64 // per-subcell Bernoulli probability
	PropDensity       float64 // per-subcell probability for ambient props
	MinParkSize       int     // minimum contiguous region size in macro cells
	FloodFillCap      int     // iteration cap for park region search
}

// Decoration is one placed scatter item, anchored to a sub cell.
type Decoration struct {
	Kind   string  `json:"kind"`
	Name   string  `json:"name"`
	WorldX float64 `json:"world_x"`
	WorldZ float64 `json:"world_z"`
}

// Park is one placed park rectangle in macro-cell coordinates.
type Park struct {
	X     int `json:"x"`
	Z     int `json:"z"`
	Width int `json:"width"`
	Depth int `json:"depth"`
}

// Pass holds the state for one chunk's decoration run.
type Pass struct {
	cfg        Config
	g          *grid.Grid
	rng        *rand.Rand
	vegetation []Template
	props      []Template
	probe      ClearanceProbe
}

// NewPass validates references. A nil probe disables clearance checks;
// empty template catalogs disable the corresponding scatter.
func NewPass(cfg Config, g *grid.Grid, rng *rand.Rand, vegetation, props []Template, probe ClearanceProbe) (*Pass, error) {
	if g == nil || rng == nil {
		return nil, ErrMissingGrid
	}
	return &Pass{
		cfg:        cfg,
		g:          g,
		rng:        rng,
		vegetation: vegetation,
		props:      props,
		probe:      probe,
	}, nil
}

// Run executes vegetation scatter, park generation and prop scatter, in
// that order. Finding no qualifying park region is not an error.
func (p *Pass) Run() ([]Decoration, []Park) {
	var decorations []Decoration
	decorations = p.scatterVegetation(decorations)
	parks := p.placeParks()
	decorations = p.scatterProps(decorations)
	return decorations, parks
}

// scatterVegetation draws a seeded Bernoulli trial per free sub cell,
// gated by a 3x3 macro-cell road exclusion and the clearance probe.
func (p *Pass) scatterVegetation(out []Decoration) []Decoration {
	if len(p.vegetation) == 0 || p.cfg.VegetationDensity <= 0 {
		return out
	}
	p.g.EachSubCell(func(c *grid.MacroCell, sx, sz int, s *grid.SubCell) {
		if s.Type != grid.CellEmpty || s.Reserved {
			return
		}
		if p.rng.Float64() >= p.cfg.VegetationDensity {
			return
		}
		if p.nearRoad(c.LocalX, c.LocalZ, 1) {
			return
		}
		if p.probe != nil && !p.probe.Clear(s.WorldX, s.WorldZ) {
			return
		}
		name := p.pickTemplate(p.vegetation)
		_ = p.g.MarkSubCell(c.LocalX, c.LocalZ, sx, sz, grid.CellReserved)
		out = append(out, Decoration{Kind: "vegetation", Name: name, WorldX: s.WorldX, WorldZ: s.WorldZ})
	})
	return out
}

// scatterProps places ambient props on remaining free sub cells. Props
// are allowed next to roads, so no exclusion radius applies.
func (p *Pass) scatterProps(out []Decoration) []Decoration {
	if len(p.props) == 0 || p.cfg.PropDensity <= 0 {
		return out
	}
	p.g.EachSubCell(func(c *grid.MacroCell, sx, sz int, s *grid.SubCell) {
		if s.Type != grid.CellEmpty || s.Reserved {
			return
		}
		if p.rng.Float64() >= p.cfg.PropDensity {
			return
		}
		if p.probe != nil && !p.probe.Clear(s.WorldX, s.WorldZ) {
			return
		}
		name := p.pickTemplate(p.props)
		_ = p.g.MarkSubCell(c.LocalX, c.LocalZ, sx, sz, grid.CellReserved)
		out = append(out, Decoration{Kind: "prop", Name: name, WorldX: s.WorldX, WorldZ: s.WorldZ})
	})
	return out
}

// pickTemplate selects a template name by cumulative weight.
func (p *Pass) pickTemplate(templates []Template) string {
	total := 0.0
	for _, t := range templates {
		total += t.Weight
	}
	if total <= 0 {
		return templates[0].Name
	}
	roll := p.rng.Float64() * total
	for _, t := range templates {
		roll -= t.Weight
		if roll < 0 {
			return t.Name
		}
	}
	return templates[len(templates)-1].Name
}

// nearRoad reports whether any macro cell within the given radius of
// (lx, lz) is a road cell.
func (p *Pass) nearRoad(lx, lz, radius int) bool {
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			c, err := p.g.Cell(lx+dx, lz+dz)
			if err != nil {
				continue
			}
			if c.Type == grid.CellRoad {
				return true
			}
		}
	}
	return false
}

// placeParks flood-fills contiguous regions of qualifying cells, keeps
// regions at or above the minimum size and converts the best-fitting
// rectangle inside the largest region into reserved park cells.
func (p *Pass) placeParks() []Park {
	size := p.g.Size()
	qualifies := make([]bool, size*size)
	for z := 0; z < size; z++ {
		for x := 0; x < size; x++ {
			c, _ := p.g.Cell(x, z)
			if c.Type != grid.CellEmpty || c.Reserved {
				continue
			}
			if p.roadAdjacent(x, z) {
				continue
			}
			qualifies[z*size+x] = true
		}
	}

	visited := make([]bool, size*size)
	budget := p.cfg.FloodFillCap
	var best []int
	for z := 0; z < size; z++ {
		for x := 0; x < size; x++ {
			idx := z*size + x
			if !qualifies[idx] || visited[idx] {
				continue
			}
			region, ok := p.floodFill(qualifies, visited, x, z, &budget)
			if !ok {
				// Iteration cap hit: discard this region only and stop
				// searching. Parks are opportunistic.
				log.Warn("park flood fill iteration cap exhausted, discarding region",
					"cap", p.cfg.FloodFillCap)
				return p.convertBest(best)
			}
			if len(region) >= p.cfg.MinParkSize && len(region) > len(best) {
				best = region
			}
		}
	}
	return p.convertBest(best)
}

// roadAdjacent reports 4-directional road adjacency for a macro cell.
func (p *Pass) roadAdjacent(lx, lz int) bool {
	offsets := [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}
	for _, o := range offsets {
		c, err := p.g.Cell(lx+o[0], lz+o[1])
		if err != nil {
			continue
		}
		if c.Type == grid.CellRoad {
			return true
		}
	}
	return false
}

// floodFill collects one 4-connected region of qualifying cells. It
// returns false once the shared iteration budget runs out.
func (p *Pass) floodFill(qualifies, visited []bool, sx, sz int, budget *int) ([]int, bool) {
	size := p.g.Size()
	start := sz*size + sx
	visited[start] = true
	region := []int{start}
	queue := []int{start}
	for len(queue) > 0 {
		if *budget <= 0 {
			return nil, false
		}
		*budget--
		idx := queue[0]
		queue = queue[1:]
		x := idx % size
		z := idx / size
		next := [4][2]int{{x, z - 1}, {x + 1, z}, {x, z + 1}, {x - 1, z}}
		for _, n := range next {
			if n[0] < 0 || n[1] < 0 || n[0] >= size || n[1] >= size {
				continue
			}
			nidx := n[1]*size + n[0]
			if visited[nidx] || !qualifies[nidx] {
				continue
			}
			visited[nidx] = true
			region = append(region, nidx)
			queue = append(queue, nidx)
		}
	}
	return region, true
}

// convertBest turns the largest rectangle inside the winning region into
// park cells. An empty region produces no park.
func (p *Pass) convertBest(region []int) []Park {
	if len(region) == 0 {
		return nil
	}
	size := p.g.Size()
	mask := make([]bool, size*size)
	for _, idx := range region {
		mask[idx] = true
	}
	rect := largestRectangle(mask, size)
	if rect.Width*rect.Depth < p.cfg.MinParkSize {
		return nil
	}
	for z := rect.Z; z < rect.Z+rect.Depth; z++ {
		for x := rect.X; x < rect.X+rect.Width; x++ {
			_ = p.g.SetCellType(x, z, grid.CellPark)
		}
	}
	return []Park{rect}
}

// largestRectangle finds the maximal axis-aligned rectangle of set cells
// using the row-histogram method.
func largestRectangle(mask []bool, size int) Park {
	heights := make([]int, size)
	best := Park{}
	bestArea := 0
	for z := 0; z < size; z++ {
		for x := 0; x < size; x++ {
			if mask[z*size+x] {
				heights[x]++
			} else {
				heights[x] = 0
			}
		}
		// Largest rectangle in histogram via monotonic stack.
		type entry struct{ start, height int }
		var stack []entry
		for x := 0; x <= size; x++ {
			h := 0
			if x < size {
				h = heights[x]
			}
			start := x
			for len(stack) > 0 && stack[len(stack)-1].height > h {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				area := top.height * (x - top.start)
				if area > bestArea {
					bestArea = area
					best = Park{
						X:     top.start,
						Z:     z - top.height + 1,
						Width: x - top.start,
						Depth: top.height,
					}
				}
				start = top.start
			}
			if h > 0 && (len(stack) == 0 || stack[len(stack)-1].height < h) {
				stack = append(stack, entry{start: start, height: h})
			}
		}
	}
	return best
}
