package vision

// OwnerID identifies the side whose vision is estimated.
// The engine only compares owners for equality.
type OwnerID string

// Observation is one unit as seen by the game-state collaborator.
type Observation struct {
	Owner       OwnerID
	TileX       int
	TileY       int
	SightRadius int  // tiles, see SightRadius
	CanSee      bool // false when blind, morphing, constructing or sightless
}

// SightRadius converts a raw sight range in pixels into tiles as
// floor(rangePx/tileSize) + 1. Non-positive inputs yield 0.
func SightRadius(rangePx, tileSize int) int {
	if rangePx <= 0 || tileSize <= 0 {
		return 0
	}
	return rangePx/tileSize + 1
}

// Seed writes each qualifying unit's sight radius into its tile, keeping the
// maximum when several units share a tile, and returns the largest radius seen.
//
// Units of other owners, units that cannot see, and units on tiles outside
// 1..width x 1..height are skipped. Seed never lowers a cell and does not
// clear the grid first; callers reuse a grid by calling Reset.
func Seed(g *Grid, owner OwnerID, obs []Observation) int {
	maxSight := 0
	for _, o := range obs {
		if o.Owner != owner || !o.CanSee || o.SightRadius <= 0 {
			continue
		}
		if !g.InBounds(o.TileX, o.TileY) {
			continue
		}
		idx := g.index(o.TileX, o.TileY)
		if r := float64(o.SightRadius); r > g.cells[idx] {
			g.cells[idx] = r
		}
		maxSight = max(maxSight, o.SightRadius)
	}
	return maxSight
}
