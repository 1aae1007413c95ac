package roadnet

import "sort"

// Direction-to-rotation lookup tables. Rotations are clockwise degrees
// applied to the archetype's canonical pose:
//
//	dead end  - canonical pose opens north
//	straight  - canonical pose runs north-south
//	corner    - canonical pose connects north+east
//	t         - canonical pose connects everything but south
//	cross     - symmetric, always 0
var (
	deadEndRotation = map[Point]int{
		{X: 0, Z: -1}: 0,
		{X: 1, Z: 0}:  90,
		{X: 0, Z: 1}:  180,
		{X: -1, Z: 0}: 270,
	}
	cornerRotation = map[[2]Point]int{
		{{X: 0, Z: -1}, {X: 1, Z: 0}}:  0,   // north+east
		{{X: 1, Z: 0}, {X: 0, Z: 1}}:   90,  // east+south
		{{X: 0, Z: 1}, {X: -1, Z: 0}}:  180, // south+west
		{{X: 0, Z: -1}, {X: -1, Z: 0}}: 270, // west+north
	}
	tJunctionRotation = map[Point]int{
		{X: 0, Z: 1}:  0,   // missing south
		{X: -1, Z: 0}: 90,  // missing west
		{X: 0, Z: -1}: 180, // missing north
		{X: 1, Z: 0}:  270, // missing east
	}
)

// normalizeDirs reduces raw neighbor offsets to deduplicated unit steps
// in the fixed direction order.
func normalizeDirs(raw []Point) []Point {
	present := [4]bool{}
	for _, d := range raw {
		for i, u := range Directions {
			if d == u {
				present[i] = true
			}
		}
	}
	out := make([]Point, 0, 4)
	for i, u := range Directions {
		if present[i] {
			out = append(out, u)
		}
	}
	return out
}

// resolveTile picks the archetype and rotation for a set of normalized
// connection directions: 1 connection is a dead end, 2 colinear a
// straight, 2 non-colinear a corner, 3 a T junction and 4 a cross.
func resolveTile(pos Point, dirs []Point) (Tile, bool) {
	switch len(dirs) {
	case 1:
		return Tile{Pos: pos, Kind: TileDeadEnd, Rotation: deadEndRotation[dirs[0]]}, true
	case 2:
		a, b := dirs[0], dirs[1]
		if a.X == -b.X && a.Z == -b.Z {
			rot := 0
			if a.Z == 0 {
				rot = 90 // east-west
			}
			return Tile{Pos: pos, Kind: TileStraight, Rotation: rot}, true
		}
		key := [2]Point{a, b}
		rot, ok := cornerRotation[key]
		if !ok {
			rot = cornerRotation[[2]Point{b, a}]
		}
		return Tile{Pos: pos, Kind: TileCorner, Rotation: rot}, true
	case 3:
		missing := missingDirection(dirs)
		return Tile{Pos: pos, Kind: TileTJunction, Rotation: tJunctionRotation[missing]}, true
	case 4:
		return Tile{Pos: pos, Kind: TileCross, Rotation: 0}, true
	default:
		return Tile{}, false
	}
}

func missingDirection(dirs []Point) Point {
	for _, u := range Directions {
		found := false
		for _, d := range dirs {
			if d == u {
				found = true
				break
			}
		}
		if !found {
			return u
		}
	}
	return Point{}
}

// sameDirs compares two direction sets regardless of order.
func sameDirs(a, b []Point) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]Point(nil), a...)
	bs := append([]Point(nil), b...)
	less := func(s []Point) func(i, j int) bool {
		return func(i, j int) bool {
			if s[i].Z != s[j].Z {
				return s[i].Z < s[j].Z
			}
			return s[i].X < s[j].X
		}
	}
	sort.Slice(as, less(as))
	sort.Slice(bs, less(bs))
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
