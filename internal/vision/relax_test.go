package vision

import (
	"math"
	"testing"
)

func TestRelaxRoundReadsSnapshot(t *testing.T) {
	src, _ := NewGrid(20, 20)
	dst, _ := NewGrid(20, 20)
	Seed(src, "p1", []Observation{{Owner: "p1", TileX: 10, TileY: 10, SightRadius: 5, CanSee: true}})

	relaxRound(src, dst)

	checks := []struct {
		x, y int
		want float64
	}{
		{10, 10, 5},
		{11, 10, 4},
		{9, 10, 4},
		{10, 11, 4},
		{10, 9, 4},
		{11, 11, 5 - math.Sqrt2},
		{9, 9, 5 - math.Sqrt2},
		// One round reaches exactly one tile; an in-place sweep would leak further.
		{12, 10, 0},
		{10, 12, 0},
		{12, 12, 0},
		{8, 10, 0},
	}
	for _, c := range checks {
		if got := dst.At(c.x, c.y); got != c.want {
			t.Errorf("after one round (%d,%d) = %.4f, want %.4f", c.x, c.y, got, c.want)
		}
	}
	if src.At(11, 10) != 0 {
		t.Error("relaxRound must not write its source")
	}
}

func TestRelaxIsSymmetric(t *testing.T) {
	g, _ := NewGrid(41, 41)
	Seed(g, "p1", []Observation{{Owner: "p1", TileX: 21, TileY: 21, SightRadius: 9, CanSee: true}})
	r, _ := NewRelaxer(41, 41)
	r.Relax(g, 9)

	for dy := -12; dy <= 12; dy++ {
		for dx := -12; dx <= 12; dx++ {
			v := g.At(21+dx, 21+dy)
			mirrors := [][2]int{
				{21 - dx, 21 + dy},
				{21 + dx, 21 - dy},
				{21 - dx, 21 - dy},
				{21 + dy, 21 + dx},
			}
			for _, m := range mirrors {
				if got := g.At(m[0], m[1]); got != v {
					t.Fatalf("asymmetric result: (%d,%d)=%v but (%d,%d)=%v",
						21+dx, 21+dy, v, m[0], m[1], got)
				}
			}
		}
	}
}

func TestRelaxNeverLowersCells(t *testing.T) {
	g, _ := NewGrid(30, 30)
	obs := []Observation{
		{Owner: "p1", TileX: 10, TileY: 10, SightRadius: 2, CanSee: true},
		{Owner: "p1", TileX: 11, TileY: 10, SightRadius: 8, CanSee: true},
	}
	maxSight := Seed(g, "p1", obs)
	before := g.Clone()

	r, _ := NewRelaxer(30, 30)
	r.Relax(g, maxSight)

	for y := 1; y <= 30; y++ {
		for x := 1; x <= 30; x++ {
			if g.At(x, y) < before.At(x, y) {
				t.Fatalf("cell (%d,%d) decreased from %.3f to %.3f", x, y, before.At(x, y), g.At(x, y))
			}
		}
	}
	// The weak seed is overtaken by its stronger neighbour.
	if got := g.At(10, 10); got != 7 {
		t.Errorf("expected (10,10) = 7, got %.3f", got)
	}
}

func TestRelaxResizesBackBuffer(t *testing.T) {
	r, _ := NewRelaxer(8, 8)
	g, _ := NewGrid(32, 16)
	Seed(g, "p1", []Observation{{Owner: "p1", TileX: 30, TileY: 14, SightRadius: 3, CanSee: true}})

	r.Relax(g, 3)

	if got := g.At(29, 14); got != 2 {
		t.Errorf("expected 2 next to the seed, got %.3f", got)
	}
}

func TestRelaxEvenAndOddRoundsLandInInput(t *testing.T) {
	for _, maxSight := range []int{1, 2, 3, 4} {
		g, _ := NewGrid(20, 20)
		Seed(g, "p1", []Observation{{Owner: "p1", TileX: 10, TileY: 10, SightRadius: maxSight, CanSee: true}})

		r, _ := NewRelaxer(20, 20)
		r.Relax(g, maxSight)

		want := float64(maxSight - 1)
		if got := g.At(11, 10); got != want {
			t.Errorf("maxSight=%d: expected neighbour %.1f, got %.3f", maxSight, want, got)
		}
	}
}

func TestRelaxDoesNotAllocate(t *testing.T) {
	r, err := NewRelaxer(MaxMapDimension, MaxMapDimension)
	if err != nil {
		t.Fatal(err)
	}
	g, _ := NewGrid(MaxMapDimension, MaxMapDimension)
	Seed(g, "p1", []Observation{{Owner: "p1", TileX: 128, TileY: 128, SightRadius: 10, CanSee: true}})

	// Odd and even round counts end in different buffers.
	for _, sight := range []int{10, 11} {
		if allocs := testing.AllocsPerRun(5, func() { r.Relax(g, sight) }); allocs != 0 {
			t.Errorf("Relax(g, %d) allocated %.0f times per run, want 0", sight, allocs)
		}
	}
}
