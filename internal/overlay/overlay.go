// Package overlay draws vision estimates as images for diagnostics.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"replay-vision/internal/vision"
)

const (
	DefaultTilePixels     = 8
	DefaultTileSize       = 32 // game pixels per tile
	DefaultViewportWidth  = 640
	DefaultViewportHeight = 480
)

// Viewport is the visible screen area in game pixels.
type Viewport struct {
	X, Y          int
	Width, Height int
}

// DefaultViewport returns a screen-sized viewport at (x, y).
func DefaultViewport(x, y int) Viewport {
	return Viewport{X: x, Y: y, Width: DefaultViewportWidth, Height: DefaultViewportHeight}
}

// Contains reports whether a game pixel position is strictly inside the viewport.
func (v Viewport) Contains(px, py int) bool {
	return v.X < px && px < v.X+v.Width && v.Y < py && py < v.Y+v.Height
}

// Options controls rendering.
type Options struct {
	TilePixels int       // output pixels per tile
	TileSize   int       // game pixels per tile, used for viewport tests
	Viewport   *Viewport // nil draws the whole map
	ShowValues bool      // label each tile with its residual value
}

// DefaultOptions returns the whole-map overlay without labels.
func DefaultOptions() Options {
	return Options{TilePixels: DefaultTilePixels, TileSize: DefaultTileSize}
}

var (
	backgroundColor = color.RGBA{12, 12, 28, 255}
	gridColor       = color.RGBA{30, 30, 45, 255}
	labelColor      = color.White
)

// Render draws every tile with a positive value as a green box whose
// intensity follows value / MaxSight.
func Render(est vision.Estimate, opts Options) image.Image {
	if opts.TilePixels <= 0 {
		opts.TilePixels = DefaultTilePixels
	}
	if opts.TileSize <= 0 {
		opts.TileSize = DefaultTileSize
	}

	tp := float64(opts.TilePixels)
	dc := gg.NewContext(est.Width*opts.TilePixels, est.Height*opts.TilePixels)

	dc.SetColor(backgroundColor)
	dc.Clear()
	drawGrid(dc, est.Width, est.Height, tp)

	if est.Grid == nil {
		return dc.Image()
	}

	if opts.ShowValues {
		if path := fontPath(); path != "" {
			// Falls back to gg's built-in face when loading fails.
			_ = dc.LoadFontFace(path, tp/2)
		}
	}

	peak := float64(est.MaxSight)
	if peak <= 0 {
		peak = 1
	}

	dc.SetLineWidth(1)
	est.Grid.ForEachPositive(func(x, y int, v float64) {
		if opts.Viewport != nil && !opts.Viewport.Contains(x*opts.TileSize, y*opts.TileSize) {
			return
		}

		px := float64(x-1) * tp
		py := float64(y-1) * tp
		intensity := min(v/peak, 1)

		dc.SetColor(color.RGBA{0, uint8(80 + 175*intensity), 0, uint8(90 + 165*intensity)})
		dc.DrawRectangle(px, py, tp, tp)
		dc.Fill()

		dc.SetColor(color.RGBA{0, 255, 0, 255})
		dc.DrawRectangle(px+0.5, py+0.5, tp-1, tp-1)
		dc.Stroke()

		if opts.ShowValues {
			dc.SetColor(labelColor)
			dc.DrawStringAnchored(fmt.Sprintf("%2.2f", v), px+tp/2, py+tp/2, 0.5, 0.5)
		}
	})

	return dc.Image()
}

func drawGrid(dc *gg.Context, w, h int, tp float64) {
	// Lines would swamp small tiles.
	if tp < 4 {
		return
	}
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for x := 0; x <= w; x++ {
		dc.DrawLine(float64(x)*tp, 0, float64(x)*tp, float64(h)*tp)
		dc.Stroke()
	}
	for y := 0; y <= h; y++ {
		dc.DrawLine(0, float64(y)*tp, float64(w)*tp, float64(y)*tp)
		dc.Stroke()
	}
}

// WritePNG renders the estimate and encodes it as PNG.
func WritePNG(w io.Writer, est vision.Estimate, opts Options) error {
	img := Render(est, opts)
	dc := gg.NewContextForImage(img)
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	return nil
}

// SavePNG writes the overlay to a file.
func SavePNG(path string, est vision.Estimate, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create overlay file: %w", err)
	}
	if err := WritePNG(f, est, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fontPath() string {
	// Try common font locations
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	matches, _ := filepath.Glob("*.ttf")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
