package systems

import "math"

const twoPi = 2 * math.Pi

// clamp01 clamps a float32 value to the [0, 1] range.
func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampInt clamps an int to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampCoord pins a coordinate into [0, limit).
func clampCoord(v, limit float32) float32 {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return math.Nextafter32(limit, 0)
	}
	return v
}

// wrapAngle normalizes an angle to [0, 2π).
func wrapAngle(a float32) float32 {
	r := float32(math.Mod(float64(a), twoPi))
	if r < 0 {
		r += twoPi
	}
	if r >= twoPi {
		r = 0
	}
	return r
}

// roundToCell rounds a continuous coordinate to the nearest cell in [0, n).
func roundToCell(v float32, n int) int {
	return clampInt(int(math.Floor(float64(v)+0.5)), 0, n-1)
}
