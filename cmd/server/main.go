package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"replay-vision/internal/api"
	"replay-vision/internal/config"
	"replay-vision/internal/record"
	"replay-vision/internal/replay"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("👁️ ================================")
	log.Println("👁️  REPLAY VISION - GO ENGINE")
	log.Println("👁️ ================================")

	appConfig := config.Load()
	visionCfg := appConfig.Vision
	recordCfg := appConfig.Record
	serverCfg := appConfig.Server

	log.Printf("👁️ Config: tile %dpx, sample every %d frames, budget %v, parallel=%v, diagnostic=%v",
		visionCfg.TileSize, visionCfg.SampleInterval, visionCfg.FrameBudget, visionCfg.Parallel, visionCfg.Diagnostic)

	// Record sinks: CSV always, SQLite when configured
	csvSink, err := record.NewCSVSink(recordCfg.OutputDir)
	if err != nil {
		log.Fatalf("❌ Record output unavailable: %v", err)
	}
	sinks := []record.Sink{csvSink}
	log.Printf("📝 CSV records: %s", recordCfg.OutputDir)

	var store *record.SQLiteStore
	if recordCfg.SQLitePath != "" {
		store, err = record.OpenSQLite(recordCfg.SQLitePath)
		if err != nil {
			log.Printf("⚠️ SQLite store disabled: %v", err)
		} else {
			sinks = append(sinks, store)
			log.Printf("🗄️ SQLite records: %s", recordCfg.SQLitePath)
		}
	}

	recordLog := record.NewLog(record.LogConfig{
		FlushInterval:    recordCfg.FlushInterval,
		MaxRecordsPerSec: recordCfg.MaxRecordsPerSec,
	}, sinks...)
	recordLog.Start()

	sampler := replay.NewSampler(replay.Config{
		TileSize:       visionCfg.TileSize,
		SampleInterval: visionCfg.SampleInterval,
		FrameBudget:    visionCfg.FrameBudget,
		Parallel:       visionCfg.Parallel,
		Diagnostic:     visionCfg.Diagnostic,
	}, recordLog)
	sampler.Subscribe(api.ObserveSample)

	// Start debug server
	if serverCfg.DebugEnabled {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	routerCfg := api.RouterConfig{
		Sampler: sampler,
		Records: recordLog,
		Overlay: appConfig.Overlay,
		Origins: api.NewOriginPolicy(serverCfg.AllowedOrigins),
	}
	if store != nil {
		routerCfg.History = store
	}
	server := api.NewServer(routerCfg)
	sampler.Subscribe(server.Hub().PublishSample)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional frame dump ingested in the background
	if path := appConfig.Replay.Path; path != "" {
		go func() {
			src, err := replay.OpenWithRetry(ctx, func() (replay.Source, error) {
				return replay.OpenJSONL(path)
			}, replay.DefaultRetryInterval)
			if err != nil {
				log.Printf("⚠️ Replay ingestion skipped: %v", err)
				return
			}
			defer src.Close()

			log.Printf("📼 Ingesting %s", path)
			if err := sampler.Run(ctx, src); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("❌ Replay ingestion stopped: %v", err)
			}
		}()
	}

	addr := ":" + strconv.Itoa(serverCfg.Port)
	go func() {
		log.Printf("🌐 API server on http://localhost%s", addr)
		log.Printf("   - estimate: POST http://localhost%s/api/estimate", addr)
		log.Printf("   - frames:   POST http://localhost%s/api/frames", addr)
		log.Printf("   - live:     ws://localhost%s/ws", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}

	// Flushes pending records and closes the sinks
	recordLog.Stop()
	st := recordLog.Stats()
	log.Printf("📝 Records written: %d (dropped %d, sink failures %d)", st.Written, st.Dropped, st.Failures)
	log.Println("👋 Goodbye!")
}
