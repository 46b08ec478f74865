package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"gridsweep/internal/api"
	"gridsweep/internal/config"
	"gridsweep/internal/journal"
	"gridsweep/internal/layout"
	"gridsweep/internal/world"

	"github.com/joho/godotenv"
)

func main() {
	// .env in the parent directory first, then the working directory
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🧱 ================================")
	log.Println("🧱  GRIDSWEEP - COLLISION SERVICE")
	log.Println("🧱 ================================")

	appConfig := config.Load()

	w, err := loadWorld(appConfig.Grid)
	if err != nil {
		log.Fatalf("❌ Failed to load grid: %v", err)
	}
	width, height := w.Dimensions()
	log.Printf("🗺️ Grid: %dx%d, %d blocked", width, height, w.Stats().BlockedCells)
	log.Printf("🛡️ Limits: %.0f req/s per IP (burst %d), %d WebSocket clients",
		appConfig.Limits.RequestsPerSecond, appConfig.Limits.Burst, appConfig.Limits.MaxWSClients)

	// Journal of edits and queries
	var jrnl *journal.Journal
	if appConfig.Journal.Enabled {
		jrnl = journal.New(journal.Config{
			MaxPerSecond: appConfig.Journal.MaxPerSecond,
			Burst:        appConfig.Journal.Burst,
		})
		if err := jrnl.Start(appConfig.Journal.Path); err != nil {
			log.Printf("⚠️ Journal disabled: %v", err)
			jrnl = nil
		} else {
			jrnl.Follow(w)
			log.Printf("📝 Journal: %s", appConfig.Journal.Path)
		}
	}

	if err := api.StartDebugServer(appConfig.Observability); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	var journalStats api.StatsProvider
	if jrnl != nil {
		journalStats = jrnl
	}
	server := api.NewServer(w, appConfig, journalStats)

	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		log.Printf("🌐 API server on http://localhost%s/api/grid", addr)
		log.Printf("🖼️ Snapshot: http://localhost%s/api/grid.png", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Shutdown: %v", err)
	}
	if jrnl != nil {
		jrnl.Stop()
		log.Printf("📝 Journal closed (%d dropped)", jrnl.DroppedCount())
	}
	log.Println("👋 Goodbye!")
}

// loadWorld seeds the world from the layout file, or an empty grid of the
// configured size when there is none.
func loadWorld(cfg config.GridConfig) (*world.World, error) {
	if cfg.LayoutPath == "" {
		return world.NewEmpty(cfg.Width, cfg.Height)
	}
	g, err := layout.Load(cfg.LayoutPath)
	if err != nil {
		return nil, err
	}
	log.Printf("📂 Layout: %s", cfg.LayoutPath)
	return world.New(g), nil
}
