package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lane-clash/internal/api"
	"lane-clash/internal/config"
	"lane-clash/internal/game"
	"lane-clash/internal/ipc"

	"github.com/joho/godotenv"
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

	log.Println("🎮 ================================")
	log.Println("🎮  LANE CLASH - SKIRMISH SERVER")
	log.Println("🎮 ================================")

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}
	simCfg := appConfig.Sim
	serverCfg := appConfig.Server

	log.Printf("🎮 Config: %d TPS, catch-up cap %d ticks, wave every %s",
		simCfg.TickRate, simCfg.MaxTicksPerFrame, simCfg.SpawnInterval)
	log.Printf("🗺️  Map %gx%g, %d+%d towers",
		appConfig.Map.Width, appConfig.Map.Height, len(appConfig.Map.Team1Towers), len(appConfig.Map.Team2Towers))

	engine := game.NewEngine(game.EngineConfigFrom(appConfig))
	limits := engine.Config().Limits
	log.Printf("🛡️ Resource limits: %d minions, %d snapshot entries, %d listeners",
		limits.MaxMinions, limits.MaxSnapshot, limits.MaxListeners)

	// Start event log
	if serverCfg.EventLogPath != "" {
		if err := engine.StartEventLog(serverCfg.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", serverCfg.EventLogPath)
		}
	}

	// Start debug server
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.ListenAddr = serverCfg.DebugAddr
	debugCfg.Enabled = os.Getenv("DISABLE_DEBUG_SERVER") != "true"
	debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	debugCfg.Health = func() error {
		if !engine.Running() && !engine.IsOver() {
			return errors.New("simulation loop stopped")
		}
		return nil
	}
	if err := api.StartDebugServer(debugCfg); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	if serverCfg.AdminToken == "" {
		log.Println("⚠️ ADMIN_TOKEN not set - match reset is open to anyone who can reach the API")
	} else {
		log.Println("🔐 Match control requires ADMIN_TOKEN")
	}

	server := api.NewServer(engine, serverCfg)

	// Snapshot feed for local terminal viewers
	var feed *ipc.Publisher
	if serverCfg.FeedSocket != "" {
		feed = ipc.NewPublisher(serverCfg.FeedSocket)
		feed.SetMatch(ipc.MatchMessage{
			Name:      appConfig.Name,
			MapWidth:  appConfig.Map.Width,
			MapHeight: appConfig.Map.Height,
			TickRate:  simCfg.TickRate,
		})
		if err := feed.Start(); err != nil {
			log.Printf("⚠️ Snapshot feed disabled: %v", err)
			feed = nil
		} else {
			feed.Follow(engine, simCfg.FrameInterval)
		}
	}

	engine.Start()
	log.Println("✅ Simulation started")

	go func() {
		addr := fmt.Sprintf(":%d", serverCfg.Port)
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
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	if feed != nil {
		feed.Stop()
	}
	engine.Stop()
	engine.StopEventLog()
	log.Println("👋 Goodbye!")
}
