package mathx

// Lerp linearly interpolates between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// QuadBezier evaluates a quadratic bezier curve as a lerp of lerps:
// p0→p1 and p1→p2 interpolated at t, then interpolated again.
func QuadBezier(p0x, p0y, p1x, p1y, p2x, p2y, t float64) (float64, float64) {
	ax := Lerp(p0x, p1x, t)
	ay := Lerp(p0y, p1y, t)
	bx := Lerp(p1x, p2x, t)
	by := Lerp(p1y, p2y, t)
	return Lerp(ax, bx, t), Lerp(ay, by, t)
}

// AbsInt returns the absolute value of an int.
func AbsInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SignInt returns -1, 0 or 1 depending on the sign of v.
func SignInt(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
