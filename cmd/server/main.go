// Package main is the entry point for the negotiation decision engine.
// It wires configuration, the negotiations database, the decision service,
// the HTTP API and the idle-escalation watchdog, then runs until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/negotiator/internal/config"
	"github.com/aristath/negotiator/internal/database"
	"github.com/aristath/negotiator/internal/modules/negotiations"
	"github.com/aristath/negotiator/internal/scheduler"
	"github.com/aristath/negotiator/internal/server"
	"github.com/aristath/negotiator/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting negotiator")

	// The negotiations database holds negotiation records, engine state
	// snapshots and the append-only decision log.
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "negotiations.db"),
		Name:    "negotiations",
		Profile: database.ProfileStandard,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open negotiations database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate negotiations database")
	}

	repo := negotiations.NewRepository(db.Conn(), log)
	service := negotiations.NewService(repo, log)

	// Idle-escalation watchdog: negotiations with no vendor activity for
	// IdleEscalateHours get handed to a human instead of waiting forever.
	sched := scheduler.New(log)
	watchdog := scheduler.NewIdleEscalationJob(
		service,
		time.Duration(cfg.IdleEscalateHours)*time.Hour,
		log,
	)
	if err := sched.AddJob(cfg.WatchdogSchedule, watchdog); err != nil {
		log.Fatal().Err(err).Msg("Failed to register idle-escalation job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:     log,
		DB:      db,
		Service: service,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
