// Package roadnet synthesizes a chunk's road network: a connectivity graph
// over the macro grid resolved into placed road tiles, validated and
// repaired under a wall-clock budget, with a deterministic fallback when
// the budget is exceeded.
package roadnet

import "sort"

// Point is an integer grid position local to one chunk.
type Point struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// Add returns p shifted by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Z: p.Z + d.Z}
}

// Directions enumerates the four unit steps in a fixed order. Every
// deterministic scan over neighbors uses this order.
var Directions = [4]Point{
	{X: 0, Z: -1}, // north
	{X: 1, Z: 0},  // east
	{X: 0, Z: 1},  // south
	{X: -1, Z: 0}, // west
}

// Node is a road graph vertex. Nodes never move once created and links
// are kept symmetric: Connect(a,b) implies both adjacency lists.
type Node struct {
	Pos        Point
	MainArtery bool
	BorderLink bool
	Links      []*Node
}

// TileKind is the resolved road archetype for one grid cell.
type TileKind int

const (
	TileDeadEnd TileKind = iota
	TileStraight
	TileCorner
	TileTJunction
	TileCross
)

func (k TileKind) String() string {
	switch k {
	case TileDeadEnd:
		return "dead_end"
	case TileStraight:
		return "straight"
	case TileCorner:
		return "corner"
	case TileTJunction:
		return "t_junction"
	case TileCross:
		return "cross"
	default:
		return "unknown"
	}
}

// Tile is a placed road instance.
type Tile struct {
	Pos      Point    `json:"pos"`
	Kind     TileKind `json:"kind"`
	Rotation int      `json:"rotation"`
}

// Network holds the per-chunk road graph together with the two parallel
// placement maps: grid position to placed tile and grid position to the
// realized connection directions. The validation pass keeps both maps
// consistent with each other.
type Network struct {
	nodes map[Point]*Node
	tiles map[Point]*Tile
	conns map[Point][]Point
}

func NewNetwork() *Network {
	return &Network{
		nodes: make(map[Point]*Node),
		tiles: make(map[Point]*Tile),
		conns: make(map[Point][]Point),
	}
}

// NodeAt returns the node at pos, or nil.
func (n *Network) NodeAt(pos Point) *Node {
	return n.nodes[pos]
}

// EnsureNode returns the node at pos, creating it when absent.
func (n *Network) EnsureNode(pos Point) *Node {
	if node, ok := n.nodes[pos]; ok {
		return node
	}
	node := &Node{Pos: pos}
	n.nodes[pos] = node
	return node
}

// Connect links two nodes symmetrically. Connecting a node to itself or
// repeating an existing link is a no-op.
func (n *Network) Connect(a, b *Node) {
	if a == nil || b == nil || a == b {
		return
	}
	if !linked(a, b) {
		a.Links = append(a.Links, b)
	}
	if !linked(b, a) {
		b.Links = append(b.Links, a)
	}
}

func linked(a, b *Node) bool {
	for _, l := range a.Links {
		if l == b {
			return true
		}
	}
	return false
}

// RemoveNode deletes a node and severs every edge pointing at it.
func (n *Network) RemoveNode(pos Point) {
	node, ok := n.nodes[pos]
	if !ok {
		return
	}
	for _, other := range node.Links {
		other.Links = unlink(other.Links, node)
	}
	node.Links = nil
	delete(n.nodes, pos)
}

func unlink(links []*Node, target *Node) []*Node {
	out := links[:0]
	for _, l := range links {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}

// NodeCount returns the number of graph vertices.
func (n *Network) NodeCount() int {
	return len(n.nodes)
}

// SortedNodes returns every node ordered by (Z, X). Synthesis iterates
// nodes only through this so identical seeds produce identical output.
func (n *Network) SortedNodes() []*Node {
	out := make([]*Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.Z != out[j].Pos.Z {
			return out[i].Pos.Z < out[j].Pos.Z
		}
		return out[i].Pos.X < out[j].Pos.X
	})
	return out
}

// TileAt returns the placed tile at pos, or nil.
func (n *Network) TileAt(pos Point) *Tile {
	return n.tiles[pos]
}

// TileCount returns the number of placed tiles.
func (n *Network) TileCount() int {
	return len(n.tiles)
}

// SortedTiles returns all placed tiles ordered by (Z, X).
func (n *Network) SortedTiles() []*Tile {
	out := make([]*Tile, 0, len(n.tiles))
	for _, t := range n.tiles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.Z != out[j].Pos.Z {
			return out[i].Pos.Z < out[j].Pos.Z
		}
		return out[i].Pos.X < out[j].Pos.X
	})
	return out
}

// Connections returns the realized connection directions recorded for a
// tile position. The returned slice is the caller's to keep.
func (n *Network) Connections(pos Point) []Point {
	src := n.conns[pos]
	out := make([]Point, len(src))
	copy(out, src)
	return out
}

func (n *Network) setTile(t *Tile, dirs []Point) {
	n.tiles[t.Pos] = t
	n.conns[t.Pos] = dirs
}

func (n *Network) removeTile(pos Point) {
	delete(n.tiles, pos)
	delete(n.conns, pos)
}

// RoadView exports the position-to-directions map for spawners that must
// avoid roads. The result is a deep copy.
func (n *Network) RoadView() map[Point][]Point {
	out := make(map[Point][]Point, len(n.conns))
	for pos, dirs := range n.conns {
		cp := make([]Point, len(dirs))
		copy(cp, dirs)
		out[pos] = cp
	}
	return out
}

// ConnectedFrom reports how many placed tiles are reachable from start by
// 4-directional steps over placed tiles. Used to verify the single
// connected component property.
func (n *Network) ConnectedFrom(start Point) int {
	if _, ok := n.tiles[start]; !ok {
		return 0
	}
	seen := map[Point]bool{start: true}
	queue := []Point{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range Directions {
			next := cur.Add(d)
			if seen[next] {
				continue
			}
			if _, ok := n.tiles[next]; ok {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return len(seen)
}

// NearestTile returns the placed tile position closest to the given world
// point expressed in grid units, and false when no tiles exist.
func (n *Network) NearestTile(x, z float64) (Point, bool) {
	best := Point{}
	bestDist := -1.0
	for _, t := range n.SortedTiles() {
		dx := float64(t.Pos.X) - x
		dz := float64(t.Pos.Z) - z
		d := dx*dx + dz*dz
		if bestDist < 0 || d < bestDist {
			bestDist = d
			best = t.Pos
		}
	}
	return best, bestDist >= 0
}
