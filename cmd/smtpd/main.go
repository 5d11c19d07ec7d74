package main

import (
	"fmt"
	"log"

	"mailpanel/internal/engine/mailgate"
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

	tenantRepo := repositories.NewTenantRepository(db)
	userRepo := repositories.NewUserRepository(db)
	mailboxRepo := repositories.NewMailboxRepository(db)

	gatekeeper := mailgate.NewGatekeeper(tenantRepo, userRepo, mailboxRepo)

	srv := mailgate.NewServer(cfg.SMTP, gatekeeper)
	srv.Addr = fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port)

	log.Printf("Mail gatekeeper listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("SMTP server failed: %v", err)
	}
}
