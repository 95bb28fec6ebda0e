package viewport

import "math"

// Crosshair is the grid cell under the viewport center.
type Crosshair struct {
	Row int
	Col int
}

// ResolveCrosshair maps a view position to the cell under the viewport
// center. The result is always inside [0, n-1] on both axes, whatever the
// position.
func ResolveCrosshair(pos Position, viewport Size, cellSize float64, n int) Crosshair {
	x := viewport.W/2 - pos.X
	y := viewport.H/2 - pos.Y
	side := cellSize * pos.Scale

	return Crosshair{
		Row: resolveAxis(y, side, n),
		Col: resolveAxis(x, side, n),
	}
}

func resolveAxis(v, side float64, n int) int {
	if n <= 0 {
		return 0
	}
	if side <= 0 || math.IsNaN(v) {
		return 0
	}
	cell := math.Floor(v / side)
	// guard the float->int conversion against huge values
	if cell < 0 {
		return 0
	}
	if cell > float64(n-1) {
		return n - 1
	}
	return clampInt(int(cell), 0, n-1)
}
