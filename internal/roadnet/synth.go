package roadnet

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gridworks/citygen/internal/grid"
	"github.com/gridworks/citygen/internal/mathx"
	"github.com/gridworks/citygen/internal/parallel"
)

// Config carries the synthesis tuning for one chunk. All values are
// immutable during a run.
type Config struct {
	ArterialCount     int           // horizontal and vertical artery chains
	BranchStep        int           // coarse sub-grid step for branch candidates
	BranchProbability float64       // per-candidate acceptance
	MinNodeSpacing    int           // reject branch candidates closer than this to any node
	NearestRadius     int           // max distance for nearest-artery queries
	BorderMin         int           // min border connection attempts per chunk
	BorderMax         int           // max border connection attempts per chunk
	BorderRange       int           // how close to an edge an artery node must be to qualify
	CurveSteps        int           // bezier sample count (iteration cap)
	NodeBudget        int           // cap on nodes created by a single path carve
	TimeBudget        time.Duration // wall-clock budget for the whole pipeline
	Workers           int           // parallel scan pool size
}

// ErrMissingGrid flags a synthesizer constructed without its grid
// reference, a setup defect rather than a runtime condition.
var ErrMissingGrid = errors.New("road synthesis requires a grid reference")

// Result is the outcome of a synthesis run. Fallback reports that the
// time budget was exceeded and the deterministic cross network was built
// instead.
type Result struct {
	Network  *Network
	Fallback bool
}

// Synthesizer builds one chunk's road network. It owns no timing loop;
// Run drives all stages synchronously on the calling goroutine.
type Synthesizer struct {
	cfg      Config
	g        *grid.Grid
	net      *Network
	rng      *rand.Rand
	size     int
	deadline time.Time
}

// NewSynthesizer validates the references the pipeline depends on.
// Missing references abort generation for the chunk.
func NewSynthesizer(cfg Config, g *grid.Grid, rng *rand.Rand) (*Synthesizer, error) {
	if g == nil {
		return nil, ErrMissingGrid
	}
	if rng == nil {
		return nil, errors.New("road synthesis requires a seeded random source")
	}
	if cfg.ArterialCount < 1 {
		return nil, fmt.Errorf("arterial count %d: must be at least 1", cfg.ArterialCount)
	}
	if cfg.BranchStep < 1 {
		return nil, fmt.Errorf("branch step %d: must be at least 1", cfg.BranchStep)
	}
	return &Synthesizer{
		cfg:  cfg,
		g:    g,
		net:  NewNetwork(),
		rng:  rng,
		size: g.Size(),
	}, nil
}

// Run executes the synthesis state machine. The wall-clock budget is
// checked at stage boundaries only; exceeding it discards the partial
// graph and builds the deterministic fallback cross so every chunk ends
// with a connected skeleton.
func (s *Synthesizer) Run() Result {
	start := time.Now()
	s.deadline = start.Add(s.cfg.TimeBudget)

	stages := []struct {
		name string
		fn   func()
	}{
		{"arteries", s.layArteries},
		{"branches", s.growBranches},
		{"border_links", s.linkBorders},
		{"resolve_place", s.resolveAndPlace},
		{"validate", s.validate},
	}
	for _, st := range stages {
		if !time.Now().Before(s.deadline) {
			log.Warn("road synthesis budget exceeded, building fallback network",
				"stage", st.name, "elapsed", time.Since(start), "budget", s.cfg.TimeBudget)
			s.buildFallback()
			return Result{Network: s.net, Fallback: true}
		}
		st.fn()
	}
	return Result{Network: s.net}
}

// layArteries lays the fixed, evenly spaced horizontal and vertical
// artery chains. No randomness is involved, so the chunk has a connected
// skeleton before any probabilistic stage runs.
func (s *Synthesizer) layArteries() {
	spacing := s.size / (s.cfg.ArterialCount + 1)
	if spacing < 1 {
		spacing = 1
	}
	for i := 1; i <= s.cfg.ArterialCount; i++ {
		z := spacing * i
		if z >= s.size {
			break
		}
		var prev *Node
		for x := 0; x < s.size; x++ {
			n := s.net.EnsureNode(Point{X: x, Z: z})
			n.MainArtery = true
			s.net.Connect(prev, n)
			prev = n
		}
	}
	for i := 1; i <= s.cfg.ArterialCount; i++ {
		x := spacing * i
		if x >= s.size {
			break
		}
		var prev *Node
		for z := 0; z < s.size; z++ {
			n := s.net.EnsureNode(Point{X: x, Z: z})
			n.MainArtery = true
			s.net.Connect(prev, n)
			prev = n
		}
	}
}

// growBranches samples a coarse sub-grid of candidate points and walks
// accepted ones toward their nearest artery node one grid unit at a time.
func (s *Synthesizer) growBranches() {
	for z := 0; z < s.size; z += s.cfg.BranchStep {
		for x := 0; x < s.size; x += s.cfg.BranchStep {
			p := Point{X: x, Z: z}
			if s.net.NodeAt(p) != nil {
				continue
			}
			if s.rng.Float64() >= s.cfg.BranchProbability {
				continue
			}
			if s.hasNodeWithin(p, s.cfg.MinNodeSpacing) {
				continue
			}
			target := s.nearestArtery(p, s.cfg.NearestRadius, Point{})
			if target == nil {
				continue
			}
			s.carvePath(p, target.Pos)
		}
	}
}

// hasNodeWithin runs a parallel distance scan over a snapshot of all
// nodes. Each query writes only its own slot and joins before the result
// is read; no graph mutation happens while the scan is in flight.
func (s *Synthesizer) hasNodeWithin(p Point, spacing int) bool {
	nodes := s.net.SortedNodes()
	hits := parallel.Map(len(nodes), s.cfg.Workers, func(i int) bool {
		dx := mathx.AbsInt(nodes[i].Pos.X - p.X)
		dz := mathx.AbsInt(nodes[i].Pos.Z - p.Z)
		return dx+dz < spacing
	})
	for _, h := range hits {
		if h {
			return true
		}
	}
	return false
}

// nearestArtery finds the closest main-artery node within radius of p,
// optionally excluding nodes lying opposite the given outward direction.
// The distance scan is parallel; the argmin pass is sequential and breaks
// ties by sorted node order for determinism.
func (s *Synthesizer) nearestArtery(p Point, radius int, outward Point) *Node {
	nodes := s.net.SortedNodes()
	dists := parallel.Map(len(nodes), s.cfg.Workers, func(i int) int {
		n := nodes[i]
		if !n.MainArtery || n.Pos == p {
			return -1
		}
		if outward != (Point{}) {
			// Reject candidates whose direction from p is opposite the
			// intended outward direction.
			dir := Point{X: mathx.SignInt(n.Pos.X - p.X), Z: mathx.SignInt(n.Pos.Z - p.Z)}
			if dir.X == -outward.X && dir.Z == -outward.Z {
				return -1
			}
		}
		d := mathx.AbsInt(n.Pos.X-p.X) + mathx.AbsInt(n.Pos.Z-p.Z)
		if d > radius {
			return -1
		}
		return d
	})
	best := -1
	for i, d := range dists {
		if d < 0 {
			continue
		}
		if best < 0 || d < dists[best] {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return nodes[best]
}

// carvePath connects from to to by unit steps, creating and linking
// intermediate nodes. On node-budget exhaustion the partially carved
// chain is discarded; the rest of the network is untouched.
func (s *Synthesizer) carvePath(from, to Point) bool {
	budget := s.cfg.NodeBudget
	var created []Point
	cur := from
	prev := s.net.NodeAt(cur)
	if prev == nil {
		prev = s.net.EnsureNode(cur)
		created = append(created, cur)
	}
	for cur != to {
		if budget <= 0 {
			for _, p := range created {
				s.net.RemoveNode(p)
			}
			log.Warn("path carve node budget exhausted, discarding partial chain",
				"from_x", from.X, "from_z", from.Z, "to_x", to.X, "to_z", to.Z)
			return false
		}
		budget--
		cur = stepToward(cur, to)
		n := s.net.NodeAt(cur)
		if n == nil {
			n = s.net.EnsureNode(cur)
			created = append(created, cur)
		}
		s.net.Connect(prev, n)
		prev = n
	}
	return true
}

// stepToward advances one grid unit along the axis with the larger
// remaining delta, so paths stay 4-connected and deterministic.
func stepToward(from, to Point) Point {
	dx := to.X - from.X
	dz := to.Z - from.Z
	if mathx.AbsInt(dx) >= mathx.AbsInt(dz) && dx != 0 {
		return Point{X: from.X + mathx.SignInt(dx), Z: from.Z}
	}
	return Point{X: from.X, Z: from.Z + mathx.SignInt(dz)}
}

// linkBorders picks a seeded-random number of near-edge artery nodes and
// carves a bezier-sampled path from the chunk boundary back to the
// nearest eligible artery, flagging the carved nodes as border links so
// neighboring chunks can meet them.
func (s *Synthesizer) linkBorders() {
	count := s.cfg.BorderMin
	if s.cfg.BorderMax > s.cfg.BorderMin {
		count += s.rng.Intn(s.cfg.BorderMax - s.cfg.BorderMin + 1)
	}

	var candidates []*Node
	for _, n := range s.net.SortedNodes() {
		if n.MainArtery && s.edgeDistance(n.Pos) <= s.cfg.BorderRange {
			candidates = append(candidates, n)
		}
	}

	for i := 0; i < count && len(candidates) > 0; i++ {
		idx := s.rng.Intn(len(candidates))
		cand := candidates[idx]
		candidates = append(candidates[:idx], candidates[idx+1:]...)

		outward := s.outwardDirection(cand.Pos)
		edge := s.projectToEdge(cand.Pos, outward)
		anchor := s.nearestArtery(cand.Pos, s.cfg.NearestRadius, outward)
		if anchor == nil {
			anchor = cand
		}
		s.carveCurve(edge, cand.Pos, anchor.Pos)
	}
}

// edgeDistance returns the distance from p to the nearest chunk edge.
func (s *Synthesizer) edgeDistance(p Point) int {
	d := p.X
	if v := p.Z; v < d {
		d = v
	}
	if v := s.size - 1 - p.X; v < d {
		d = v
	}
	if v := s.size - 1 - p.Z; v < d {
		d = v
	}
	return d
}

// outwardDirection is the unit step from p toward its nearest edge.
func (s *Synthesizer) outwardDirection(p Point) Point {
	best := Point{X: -1, Z: 0}
	bestDist := p.X
	if v := s.size - 1 - p.X; v < bestDist {
		bestDist = v
		best = Point{X: 1, Z: 0}
	}
	if v := p.Z; v < bestDist {
		bestDist = v
		best = Point{X: 0, Z: -1}
	}
	if v := s.size - 1 - p.Z; v < bestDist {
		best = Point{X: 0, Z: 1}
	}
	return best
}

// projectToEdge pushes p to the chunk boundary along dir.
func (s *Synthesizer) projectToEdge(p Point, dir Point) Point {
	out := p
	switch {
	case dir.X < 0:
		out.X = 0
	case dir.X > 0:
		out.X = s.size - 1
	case dir.Z < 0:
		out.Z = 0
	case dir.Z > 0:
		out.Z = s.size - 1
	}
	return out
}

// carveCurve samples a quadratic bezier (lerp of lerps) from the edge
// point through the control point to the anchor, rounds each sample to
// the integer grid and chains them with unit steps. Sampling stops once
// the walk is within the minimum spacing of the anchor (the remainder is
// carved directly) or when the sample cap runs out.
func (s *Synthesizer) carveCurve(edge, control, anchor Point) {
	steps := s.cfg.CurveSteps
	if steps < 2 {
		steps = 2
	}
	prevPos := edge
	prev := s.net.EnsureNode(edge)
	prev.BorderLink = true

	for k := 1; k <= steps; k++ {
		t := float64(k) / float64(steps)
		fx, fz := mathx.QuadBezier(
			float64(edge.X), float64(edge.Z),
			float64(control.X), float64(control.Z),
			float64(anchor.X), float64(anchor.Z), t)
		sample := Point{X: int(fx + 0.5), Z: int(fz + 0.5)}
		if sample.X < 0 || sample.Z < 0 || sample.X >= s.size || sample.Z >= s.size {
			log.Warn("border curve sample outside chunk bounds, skipping",
				"x", sample.X, "z", sample.Z)
			continue
		}
		if sample == prevPos {
			continue
		}
		if !s.carvePath(prevPos, sample) {
			return
		}
		prevPos = sample
		if n := s.net.NodeAt(sample); n != nil {
			n.BorderLink = true
		}
		remaining := mathx.AbsInt(anchor.X-sample.X) + mathx.AbsInt(anchor.Z-sample.Z)
		if remaining <= s.cfg.MinNodeSpacing {
			s.carvePath(sample, anchor)
			return
		}
	}
	s.carvePath(prevPos, anchor)
}

// resolveAndPlace turns every node's deduplicated connection directions
// into an archetype and rotation, then places the tile on the grid.
func (s *Synthesizer) resolveAndPlace() {
	for _, node := range s.net.SortedNodes() {
		raw := make([]Point, 0, len(node.Links))
		for _, l := range node.Links {
			raw = append(raw, Point{
				X: mathx.SignInt(l.Pos.X - node.Pos.X),
				Z: mathx.SignInt(l.Pos.Z - node.Pos.Z),
			})
		}
		dirs := normalizeDirs(raw)
		tile, ok := resolveTile(node.Pos, dirs)
		if !ok {
			continue
		}
		s.place(tile, dirs)
	}
}

// place puts a tile on the grid. A previously placed tile occupying the
// same cell is destroyed first; placements outside chunk bounds are
// rejected with a warning, never a failure.
func (s *Synthesizer) place(t Tile, dirs []Point) {
	if !s.g.InBounds(t.Pos.X, t.Pos.Z) {
		log.Warn("road tile placement outside chunk bounds, rejected",
			"x", t.Pos.X, "z", t.Pos.Z, "kind", t.Kind.String())
		return
	}
	if old := s.net.TileAt(t.Pos); old != nil {
		s.net.removeTile(old.Pos)
		_ = s.g.ClearCell(old.Pos.X, old.Pos.Z)
	}
	s.net.setTile(&t, dirs)
	_ = s.g.SetCellType(t.Pos.X, t.Pos.Z, grid.CellRoad)
}

// validate removes tiles with no surviving 4-directional neighbors and
// re-resolves any tile whose recorded connection set no longer matches
// its actual neighbors.
func (s *Synthesizer) validate() {
	for _, t := range s.net.SortedTiles() {
		if s.net.TileAt(t.Pos) == nil {
			continue // removed earlier in this pass
		}
		var actual []Point
		for _, d := range Directions {
			if s.net.TileAt(t.Pos.Add(d)) != nil {
				actual = append(actual, d)
			}
		}
		if len(actual) == 0 {
			s.net.removeTile(t.Pos)
			s.net.RemoveNode(t.Pos)
			_ = s.g.ClearCell(t.Pos.X, t.Pos.Z)
			continue
		}
		if !sameDirs(actual, s.net.Connections(t.Pos)) {
			tile, ok := resolveTile(t.Pos, actual)
			if ok {
				s.place(tile, actual)
			}
		}
	}
}

// buildFallback discards whatever was synthesized and lays the minimal
// deterministic cross through the chunk center. It uses no randomness,
// so a budget-starved chunk is still reproducible.
func (s *Synthesizer) buildFallback() {
	for _, t := range s.net.SortedTiles() {
		_ = s.g.ClearCell(t.Pos.X, t.Pos.Z)
	}
	s.net = NewNetwork()

	c := s.size / 2
	var prev *Node
	for x := 0; x < s.size; x++ {
		n := s.net.EnsureNode(Point{X: x, Z: c})
		n.MainArtery = true
		s.net.Connect(prev, n)
		prev = n
	}
	prev = nil
	for z := 0; z < s.size; z++ {
		n := s.net.EnsureNode(Point{X: c, Z: z})
		n.MainArtery = true
		s.net.Connect(prev, n)
		prev = n
	}
	s.resolveAndPlace()
	s.validate()
}
