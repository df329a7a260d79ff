package overlay

import (
	"bytes"
	"image"
	"image/png"
	"path/filepath"
	"testing"

	"replay-vision/internal/vision"
)

func TestViewport_ContainsStrict(t *testing.T) {
	v := DefaultViewport(100, 200)
	tests := []struct {
		name   string
		px, py int
		want   bool
	}{
		{"inside", 300, 400, true},
		{"left edge", 100, 400, false},
		{"right edge", 740, 400, false},
		{"top edge", 300, 200, false},
		{"bottom edge", 300, 680, false},
		{"just inside corner", 101, 201, true},
		{"just inside far corner", 739, 679, true},
		{"outside", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Contains(tt.px, tt.py); got != tt.want {
				t.Errorf("Contains(%d, %d) = %v, want %v", tt.px, tt.py, got, tt.want)
			}
		})
	}
}

func testEstimate(t *testing.T) vision.Estimate {
	t.Helper()
	est, err := vision.EstimateVision(16, 16, "p1", []vision.Observation{
		{Owner: "p1", TileX: 4, TileY: 4, SightRadius: 3, CanSee: true},
	})
	if err != nil {
		t.Fatalf("EstimateVision: %v", err)
	}
	return est
}

// centre returns the colour at the middle of a 1-based tile.
func centre(img image.Image, x, y, tp int) (r, g, b uint32) {
	r, g, b, _ = img.At((x-1)*tp+tp/2, (y-1)*tp+tp/2).RGBA()
	return
}

func TestRender_DrawsVisibleTiles(t *testing.T) {
	est := testEstimate(t)
	img := Render(est, DefaultOptions())

	if b := img.Bounds(); b.Dx() != 16*DefaultTilePixels || b.Dy() != 16*DefaultTilePixels {
		t.Fatalf("unexpected bounds %v", b)
	}

	_, gSeen, _ := centre(img, 4, 4, DefaultTilePixels)
	_, gDark, _ := centre(img, 12, 12, DefaultTilePixels)
	if gSeen <= gDark {
		t.Errorf("visible tile should be greener than unseen tile: %d vs %d", gSeen, gDark)
	}

	// Intensity falls off with the residual value.
	_, gEdge, _ := centre(img, 6, 4, DefaultTilePixels)
	if gEdge >= gSeen {
		t.Errorf("edge tile should be dimmer than the seeded tile: %d vs %d", gEdge, gSeen)
	}
}

func TestRender_ViewportRestricts(t *testing.T) {
	est := testEstimate(t)
	// Only tiles whose origin x*32 lies strictly between 0 and 128 survive: x in 1..3.
	vp := Viewport{X: 0, Y: 0, Width: 128, Height: 640}
	opts := DefaultOptions()
	opts.Viewport = &vp
	img := Render(est, opts)

	full := Render(est, DefaultOptions())

	_, gIn, _ := centre(img, 3, 4, DefaultTilePixels)
	_, gInFull, _ := centre(full, 3, 4, DefaultTilePixels)
	if gIn != gInFull {
		t.Errorf("tile inside viewport should render the same: %d vs %d", gIn, gInFull)
	}

	_, gOut, _ := centre(img, 5, 4, DefaultTilePixels)
	_, gOutFull, _ := centre(full, 5, 4, DefaultTilePixels)
	if gOut >= gOutFull {
		t.Errorf("tile outside viewport should not be drawn: %d vs %d", gOut, gOutFull)
	}
}

func TestRender_EmptyEstimate(t *testing.T) {
	img := Render(vision.Estimate{Width: 4, Height: 2}, Options{TilePixels: 2})
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Errorf("unexpected bounds %v", b)
	}
}

func TestWritePNG(t *testing.T) {
	est := testEstimate(t)
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.ShowValues = true

	if err := WritePNG(&buf, est, opts); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 16*DefaultTilePixels {
		t.Errorf("unexpected width %d", img.Bounds().Dx())
	}

	path := filepath.Join(t.TempDir(), "overlay.png")
	if err := SavePNG(path, est, DefaultOptions()); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
}
