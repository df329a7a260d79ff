package vision

// Estimate is the result of one visibility computation for one owner.
// The grid is a private copy and is never modified after it is returned.
type Estimate struct {
	Owner        OwnerID
	Width        int
	Height       int
	MaxSight     int
	VisibleTiles int
	Grid         *Grid
}

// EstimateVision computes a fresh estimate with newly allocated buffers.
func EstimateVision(width, height int, owner OwnerID, obs []Observation) (Estimate, error) {
	g, err := NewGrid(width, height)
	if err != nil {
		return Estimate{}, err
	}
	r := &Relaxer{}

	maxSight := Seed(g, owner, obs)
	r.Relax(g, maxSight)

	return Estimate{
		Owner:        owner,
		Width:        width,
		Height:       height,
		MaxSight:     maxSight,
		VisibleTiles: Count(g),
		Grid:         g,
	}, nil
}

// Estimator reuses its grid buffers across calls for one map size.
// It is not safe for concurrent use; give each goroutine its own Estimator.
type Estimator struct {
	grid    *Grid
	relaxer *Relaxer
}

// NewEstimator allocates the buffers for a width x height map.
func NewEstimator(width, height int) (*Estimator, error) {
	g, err := NewGrid(width, height)
	if err != nil {
		return nil, err
	}
	r, err := NewRelaxer(width, height)
	if err != nil {
		return nil, err
	}
	return &Estimator{grid: g, relaxer: r}, nil
}

// Dimensions returns the map size this estimator was built for.
func (e *Estimator) Dimensions() (width, height int) {
	return e.grid.width, e.grid.height
}

// Estimate clears the working grid, seeds, relaxes and counts.
func (e *Estimator) Estimate(owner OwnerID, obs []Observation) Estimate {
	e.grid.Reset()
	maxSight := Seed(e.grid, owner, obs)
	e.relaxer.Relax(e.grid, maxSight)

	return Estimate{
		Owner:        owner,
		Width:        e.grid.width,
		Height:       e.grid.height,
		MaxSight:     maxSight,
		VisibleTiles: Count(e.grid),
		Grid:         e.grid.Clone(),
	}
}
