package vision

import (
	"math/rand"
	"testing"
)

// =============================================================================
// BENCHMARK SUITE: ESTIMATE HOT PATH
// Run with: go test -bench=. -benchmem ./internal/vision/...
// =============================================================================

func BenchmarkEstimate_64x64_20Units(b *testing.B)   { benchmarkEstimate(b, 64, 20) }
func BenchmarkEstimate_128x128_100Units(b *testing.B) { benchmarkEstimate(b, 128, 100) }
func BenchmarkEstimate_256x256_200Units(b *testing.B) { benchmarkEstimate(b, 256, 200) }

func benchmarkEstimate(b *testing.B, size, units int) {
	rng := rand.New(rand.NewSource(1))
	obs := make([]Observation, 0, units)
	for i := 0; i < units; i++ {
		obs = append(obs, Observation{
			Owner:       "p1",
			TileX:       1 + rng.Intn(size),
			TileY:       1 + rng.Intn(size),
			SightRadius: 1 + rng.Intn(11),
			CanSee:      true,
		})
	}

	e, err := NewEstimator(size, size)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		e.Estimate("p1", obs)
	}
}

// BenchmarkRelaxRound measures one full-grid pass.
// TestRelaxDoesNotAllocate enforces the zero-allocation property.
func BenchmarkRelaxRound(b *testing.B) {
	src, _ := NewGrid(MaxMapDimension, MaxMapDimension)
	dst, _ := NewGrid(MaxMapDimension, MaxMapDimension)
	Seed(src, "p1", []Observation{{Owner: "p1", TileX: 128, TileY: 128, SightRadius: 12, CanSee: true}})

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		relaxRound(src, dst)
	}
}
