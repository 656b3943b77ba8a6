package spawner

import "math"

// epsilon absorbs float error from camera projection when testing cell edges.
const epsilon = 1e-9

// Bounds is the visible viewport in world units. All edges are inclusive.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// GridBounds returns bounds covering exactly cols x rows cells with the
// bottom-left cell at the origin.
func GridBounds(cols, rows int) Bounds {
	return Bounds{
		MinX: 0,
		MaxX: float64(cols - 1),
		MinY: 0,
		MaxY: float64(rows - 1),
	}
}

// Contains returns true if the position lies inside the bounds.
func (b Bounds) Contains(v Vec2) bool {
	return v.X >= b.MinX-epsilon && v.X <= b.MaxX+epsilon &&
		v.Y >= b.MinY-epsilon && v.Y <= b.MaxY+epsilon
}

// ContainsCell returns true if the cell lies inside the bounds.
func (b Bounds) ContainsCell(c Cell) bool {
	return b.Contains(c.Vec2())
}

// CellRange returns the smallest and largest in-bounds cells.
// ok is false when no integer cell fits.
func (b Bounds) CellRange() (lo, hi Cell, ok bool) {
	lo = Cell{int(math.Ceil(b.MinX - epsilon)), int(math.Ceil(b.MinY - epsilon))}
	hi = Cell{int(math.Floor(b.MaxX + epsilon)), int(math.Floor(b.MaxY + epsilon))}
	return lo, hi, lo.X <= hi.X && lo.Y <= hi.Y
}

// CellCount returns the number of in-bounds cells.
func (b Bounds) CellCount() int {
	lo, hi, ok := b.CellRange()
	if !ok {
		return 0
	}
	return (hi.X - lo.X + 1) * (hi.Y - lo.Y + 1)
}

// Clamp returns the in-bounds cell nearest to c.
func (b Bounds) Clamp(c Cell) Cell {
	lo, hi, ok := b.CellRange()
	if !ok {
		return c
	}
	return Cell{
		X: min(max(c.X, lo.X), hi.X),
		Y: min(max(c.Y, lo.Y), hi.Y),
	}
}

// Camera is an orthographic camera looking at the grid.
type Camera struct {
	Position         Vec2    // World position of the viewport centre
	OrthographicSize float64 // Half the viewport height in world units
	Aspect           float64 // Width divided by height
}

// singleRowHalfHeight is the viewport half height used for a one-row grid.
// The width is size times aspect, so a zero size would collapse every column.
// Any value below 0.5 keeps exactly one row of cells in view.
const singleRowHalfHeight = 0.25

// CameraForGrid returns a camera whose viewport covers the cells of
// GridBounds(cols, rows).
func CameraForGrid(cols, rows int) Camera {
	halfW := float64(cols-1) / 2
	halfH := float64(rows-1) / 2
	center := Vec2{halfW, halfH}
	if halfH == 0 {
		halfH = singleRowHalfHeight
	}
	return Camera{
		Position:         center,
		OrthographicSize: halfH,
		Aspect:           halfW / halfH,
	}
}

// ViewportToWorld maps a viewport point (0..1 on each axis) to world space.
func (c Camera) ViewportToWorld(v Vec2) Vec2 {
	halfH := c.OrthographicSize
	halfW := c.OrthographicSize * c.Aspect
	return Vec2{
		X: c.Position.X + (v.X*2-1)*halfW,
		Y: c.Position.Y + (v.Y*2-1)*halfH,
	}
}

// Bounds returns the world-space rectangle visible through the camera.
func (c Camera) Bounds() Bounds {
	origin := c.ViewportToWorld(Vec2{0, 0})
	return Bounds{
		MinX: origin.X,
		MaxX: c.ViewportToWorld(Vec2{1, 0}).X,
		MinY: origin.Y,
		MaxY: c.ViewportToWorld(Vec2{0, 1}).Y,
	}
}
