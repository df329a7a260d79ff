package vision

import "math"

const (
	// LateralDecay is the reach lost moving one tile horizontally or vertically.
	LateralDecay = 1.0
	// DiagonalDecay is the reach lost moving one tile diagonally.
	DiagonalDecay = math.Sqrt2
	// RelaxMargin is the number of rounds run beyond the largest sight radius.
	// It is tuned to match in-game vision, which starts slightly past the
	// unit's own tile; keep it as is rather than re-deriving the decay model.
	RelaxMargin = 1
)

// Relaxer propagates seeded sight values across a grid.
// It owns the back buffer used for double buffering, so one Relaxer must not
// be shared between goroutines.
type Relaxer struct {
	back *Grid
}

// NewRelaxer allocates a relaxer for a width x height map.
func NewRelaxer(width, height int) (*Relaxer, error) {
	back, err := NewGrid(width, height)
	if err != nil {
		return nil, err
	}
	return &Relaxer{back: back}, nil
}

// Relax runs maxSight+RelaxMargin rounds over g and leaves the result in g.
//
// Every round reads a full snapshot of the previous round and writes a
// separate buffer, so sweep order cannot bias the result. The two buffers are
// swapped between rounds; no allocation happens inside the round loop.
func (r *Relaxer) Relax(g *Grid, maxSight int) {
	rounds := maxSight + RelaxMargin
	if rounds <= 0 {
		return
	}
	if r.back == nil || !r.back.sameShape(g) {
		r.back = &Grid{
			width:  g.width,
			height: g.height,
			stride: g.stride,
			cells:  make([]float64, len(g.cells)),
		}
	}

	src, dst := g, r.back
	for i := 0; i < rounds; i++ {
		relaxRound(src, dst)
		src, dst = dst, src
	}
	if src != g {
		copy(g.cells, src.cells)
	}
}

// relaxRound computes one propagation step from src into dst.
// Border cells of both grids are never written and stay 0.
func relaxRound(src, dst *Grid) {
	s := src.cells
	d := dst.cells
	stride := src.stride

	for y := 1; y <= src.height; y++ {
		row := y * stride
		for x := 1; x <= src.width; x++ {
			i := row + x
			lateral := max(s[i+1], s[i-1], s[i+stride], s[i-stride])
			diagonal := max(s[i+stride+1], s[i-stride+1], s[i+stride-1], s[i-stride-1])
			d[i] = max(lateral-LateralDecay, diagonal-DiagonalDecay, s[i], 0)
		}
	}
}
