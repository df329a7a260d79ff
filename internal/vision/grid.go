// Package vision estimates how many map tiles one owner can currently observe.
//
// The estimate is a discrete relaxation over a tile grid: each vision-capable
// unit seeds its sight radius into the tile it stands on, the seeds are
// propagated outward with a fixed lateral and diagonal decay, and every tile
// left with a positive value counts as visible.
//
// Tile coordinates are 1-based: tile (0, *) and (*, 0) are never valid. Grids
// are stored row-major with a one-tile zero border on every side so neighbour
// reads at the map edge never leave the slice.
package vision

import (
	"errors"
	"fmt"
)

// MaxMapDimension is the largest supported map edge, in tiles.
const MaxMapDimension = 256

var (
	// ErrInvalidDimensions is returned for a map with a non-positive edge.
	ErrInvalidDimensions = errors.New("vision: map dimensions must be positive")
	// ErrMapTooLarge is returned for a map with an edge above MaxMapDimension.
	ErrMapTooLarge = errors.New("vision: map exceeds maximum supported dimension")
)

// Grid holds one non-negative intensity per tile.
// A value of 0 means "not estimated visible"; a positive value is the
// remaining decayed sight reach at that tile.
type Grid struct {
	width, height int
	stride        int       // width + 2 (border on both sides)
	cells         []float64 // cells[y*stride+x], border cells stay 0
}

// NewGrid allocates a zeroed grid for a width x height tile map.
func NewGrid(width, height int) (*Grid, error) {
	if err := ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	stride := width + 2
	return &Grid{
		width:  width,
		height: height,
		stride: stride,
		cells:  make([]float64, stride*(height+2)),
	}, nil
}

// ValidateDimensions reports whether a map of width x height tiles can be estimated.
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if width > MaxMapDimension || height > MaxMapDimension {
		return fmt.Errorf("%w: %dx%d (max %d)", ErrMapTooLarge, width, height, MaxMapDimension)
	}
	return nil
}

// Width returns the map width in tiles.
func (g *Grid) Width() int { return g.width }

// Height returns the map height in tiles.
func (g *Grid) Height() int { return g.height }

// InBounds reports whether (x, y) is a valid tile of this map.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 1 && x <= g.width && y >= 1 && y <= g.height
}

// At returns the value at tile (x, y), or 0 outside the map.
func (g *Grid) At(x, y int) float64 {
	if !g.InBounds(x, y) {
		return 0
	}
	return g.cells[g.index(x, y)]
}

// Reset zeroes every tile so the grid can be reused for a new estimate.
func (g *Grid) Reset() {
	clear(g.cells)
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	c := &Grid{
		width:  g.width,
		height: g.height,
		stride: g.stride,
		cells:  make([]float64, len(g.cells)),
	}
	copy(c.cells, g.cells)
	return c
}

// Equal reports whether both grids have the same shape and bit-identical values.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil || !g.sameShape(other) {
		return false
	}
	for i, v := range g.cells {
		if v != other.cells[i] {
			return false
		}
	}
	return true
}

func (g *Grid) sameShape(other *Grid) bool {
	return g.width == other.width && g.height == other.height
}

func (g *Grid) index(x, y int) int {
	return y*g.stride + x
}
