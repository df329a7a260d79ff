// Command estimate computes per-player visible tile counts from a frame dump.
//
// Usage:
//
//	estimate -frame frames.jsonl [-interval 240] [-out records/] [-owner 0 -png vision.png -values]
//
// One line "owner,frame,visibleTiles" is printed per sampled player and frame.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"replay-vision/internal/config"
	"replay-vision/internal/overlay"
	"replay-vision/internal/record"
	"replay-vision/internal/replay"
	"replay-vision/internal/vision"
)

func main() {
	defaults := config.DefaultVision()

	framePath := flag.String("frame", "", "JSON frame or JSONL frame dump (- for stdin)")
	tileSize := flag.Int("tile", defaults.TileSize, "game pixels per tile")
	interval := flag.Int("interval", 0, "sample every N frames (0 samples every frame)")
	outDir := flag.String("out", "", "directory for CSV records (empty disables)")
	owner := flag.Int("owner", -1, "player id whose last estimate is rendered")
	pngPath := flag.String("png", "", "overlay output path (requires -owner)")
	values := flag.Bool("values", false, "label overlay tiles with their residual value")
	flag.Parse()

	if *framePath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *pngPath != "" && *owner < 0 {
		log.Fatal("❌ -png requires -owner")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options{
		framePath: *framePath,
		tileSize:  *tileSize,
		interval:  *interval,
		outDir:    *outDir,
		owner:     replay.PlayerID(*owner),
		pngPath:   *pngPath,
		values:    *values,
	}, os.Stdout); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

type options struct {
	framePath string
	tileSize  int
	interval  int
	outDir    string
	owner     replay.PlayerID
	pngPath   string
	values    bool
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	src, err := openSource(opts.framePath)
	if err != nil {
		return err
	}
	defer src.Close()

	var records replay.RecordWriter
	if opts.outDir != "" {
		sink, err := record.NewCSVSink(opts.outDir)
		if err != nil {
			return err
		}
		// Offline runs are not paced; the log still applies backpressure.
		l := record.NewLog(record.LogConfig{MaxRecordsPerSec: record.Unlimited}, sink)
		l.Start()
		defer func() {
			l.Stop()
			st := l.Stats()
			log.Printf("📝 %d records written to %s (dropped %d)", st.Written, opts.outDir, st.Dropped)
		}()
		records = l
	}

	cfg := replay.DefaultConfig()
	cfg.TileSize = opts.tileSize
	cfg.FrameBudget = 0
	if opts.interval > 0 {
		cfg.SampleInterval = opts.interval
	} else {
		cfg.Diagnostic = true
	}
	sampler := replay.NewSampler(cfg, records)

	out := csv.NewWriter(stdout)
	if err := out.Write([]string{"owner", "frame", "visibleTiles"}); err != nil {
		return err
	}

	var last *vision.Estimate
	sampler.Subscribe(func(s replay.Sample) {
		out.Write([]string{string(s.Owner), strconv.Itoa(s.Frame), strconv.Itoa(s.VisibleTiles)})
		if opts.pngPath != "" && s.Owner == opts.owner.OwnerID() {
			est := s.Estimate
			last = &est
		}
	})

	if err := sampler.Run(ctx, src); err != nil {
		return fmt.Errorf("process frames: %w", err)
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	if opts.pngPath == "" {
		return nil
	}
	if last == nil {
		return fmt.Errorf("no sample for owner %d", opts.owner)
	}
	ov := overlay.DefaultOptions()
	ov.TileSize = opts.tileSize
	ov.ShowValues = opts.values
	if err := overlay.SavePNG(opts.pngPath, *last, ov); err != nil {
		return err
	}
	log.Printf("🖼️ Overlay written: %s", opts.pngPath)
	return nil
}

func openSource(path string) (replay.Source, error) {
	if path == "-" {
		return replay.NewJSONLSource(io.NopCloser(os.Stdin)), nil
	}
	src, err := replay.OpenJSONL(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("frame file %s does not exist", path)
	}
	return src, err
}
