package main

import (
	"fmt"
	"log"
	"net/http"

	"mailpanel/internal/api"
	"mailpanel/internal/api/handlers"
	"mailpanel/internal/api/middleware"
	"mailpanel/internal/engine/access"
	"mailpanel/internal/engine/mailgate"
	"mailpanel/internal/pkg/logger"
	"mailpanel/internal/platform/audit"
	"mailpanel/internal/platform/auth"
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

	// Repositories
	tenantRepo := repositories.NewTenantRepository(db)
	userRepo := repositories.NewUserRepository(db)
	groupRepo := repositories.NewGroupRepository(db)
	permRepo := repositories.NewPermissionRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)
	mailboxRepo := repositories.NewMailboxRepository(db)

	// Services
	auditLog := audit.NewLogger(db)
	tokenSvc := auth.NewTokenService(cfg.JWT, tokenRepo, userRepo)
	resolver := access.NewResolver(userRepo, permRepo)
	authenticator := access.NewAuthenticator(tenantRepo, userRepo, tokenSvc, auditLog)
	gatekeeper := mailgate.NewGatekeeper(tenantRepo, userRepo, mailboxRepo)
	sender := mailgate.NewSender(cfg.Mailer, gatekeeper, mailboxRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(authenticator, tokenSvc, userRepo, auditLog)
	tenantHandler := handlers.NewTenantHandler(tenantRepo, userRepo, mailboxRepo, auditLog)
	userHandler := handlers.NewUserHandler(userRepo, tenantRepo, tokenSvc, resolver, auditLog)
	groupHandler := handlers.NewGroupHandler(groupRepo, permRepo, userRepo)
	mailboxHandler := handlers.NewMailboxHandler(mailboxRepo, userRepo, sender)
	healthHandler := handlers.NewHealthHandler(db)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	accessMiddleware := middleware.NewAccessMiddleware(resolver)

	deps := &api.Dependencies{
		AuthHandler:      authHandler,
		TenantHandler:    tenantHandler,
		UserHandler:      userHandler,
		GroupHandler:     groupHandler,
		MailboxHandler:   mailboxHandler,
		HealthHandler:    healthHandler,
		AuthMiddleware:   authMiddleware,
		AccessMiddleware: accessMiddleware,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
