package main

import (
	"log"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"mailpanel/internal/pkg/logger"
	"mailpanel/internal/platform/config"
	"mailpanel/internal/platform/database"
	"mailpanel/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	tokenRepo := repositories.NewTokenRepository(db)

	log.Println("Starting background workers...")
	go runTokenPurgeWorker(tokenRepo, zlog.Logger)

	// Keep process alive
	select {}
}

// runTokenPurgeWorker drops token records whose refresh expiry has elapsed.
// Expired records are already unusable; this just keeps the table small.
func runTokenPurgeWorker(tokenRepo *repositories.TokenRepository, log zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		purged, err := tokenRepo.DeleteExpired(time.Now().Unix())
		if err != nil {
			log.Error().Err(err).Msg("token purge failed")
			continue
		}
		if purged > 0 {
			log.Info().Int64("purged", purged).Msg("expired token records removed")
		}
	}
}
