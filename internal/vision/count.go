package vision

// Cell is one positive tile of a relaxed grid, for diagnostic overlays.
type Cell struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Value float64 `json:"value"`
}

// Count returns the number of tiles with a strictly positive value.
func Count(g *Grid) int {
	n := 0
	for y := 1; y <= g.height; y++ {
		row := y * g.stride
		for x := 1; x <= g.width; x++ {
			if g.cells[row+x] > 0 {
				n++
			}
		}
	}
	return n
}

// ForEachPositive calls fn for every tile with a positive value, in row-major order.
// Filtering to a viewport is left to the caller.
func (g *Grid) ForEachPositive(fn func(x, y int, v float64)) {
	for y := 1; y <= g.height; y++ {
		row := y * g.stride
		for x := 1; x <= g.width; x++ {
			if v := g.cells[row+x]; v > 0 {
				fn(x, y, v)
			}
		}
	}
}

// PositiveCells collects every positive tile of g.
func PositiveCells(g *Grid) []Cell {
	cells := make([]Cell, 0, Count(g))
	g.ForEachPositive(func(x, y int, v float64) {
		cells = append(cells, Cell{X: x, Y: y, Value: v})
	})
	return cells
}
