package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"familytalk/internal/config"
	"familytalk/internal/database"
	"familytalk/internal/handlers"
	"familytalk/internal/notify"
	"familytalk/internal/repository"
	"familytalk/internal/security"
	"familytalk/internal/service"
	"familytalk/migrations"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env if present; real deployments set env vars directly
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := config.Load()

	// Initialize database (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	if err := db.RunMigrations(migrations.FS); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Repositories
	familyRepo := repository.NewFamilyRepository(db)
	adultRepo := repository.NewAdultRepository(db)
	childRepo := repository.NewChildRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	callRepo := repository.NewCallRepository(db)

	// Live event hub
	hub := notify.NewHub()
	go hub.Run()

	// Services
	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	loginLimiter := security.NewFailureLimiter(cfg.LoginFailureLimit, cfg.LoginFailureWindow)

	authService := service.NewAuthService(adultRepo, familyRepo, invitationRepo, cfg.AdultSessionDuration)
	familyService := service.NewFamilyService(familyRepo, adultRepo, childRepo, invitationRepo, emailService, cfg.InvitationDuration)
	childSessionService := service.NewChildSessionService(familyRepo, childRepo, loginLimiter, cfg.ChildSessionDuration)
	conversationService := service.NewConversationService(conversationRepo, adultRepo, childRepo, hub, cfg.MessageMaxLength)
	callService := service.NewCallService(callRepo, adultRepo, childRepo, hub, cfg.RingTimeout, cfg.CandidateRetention)

	// Handlers
	middleware := handlers.NewMiddleware(authService, childSessionService)
	authHandler := handlers.NewAuthHandler(authService, handlers.BuildOAuthProviders(cfg), cfg.OAuthRedirectBaseURL)
	familyHandler := handlers.NewFamilyHandler(familyService)
	childHandler := handlers.NewChildHandler(familyService, childSessionService)
	conversationHandler := handlers.NewConversationHandler(conversationService, hub)
	callHandler := handlers.NewCallHandler(callService, hub)

	// Routes
	mux := http.NewServeMux()

	// Adult auth
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/join", authHandler.Join)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", middleware.RequireAdult(authHandler.Me))
	mux.HandleFunc("GET /api/auth/{provider}/start", authHandler.StartOAuth)
	mux.HandleFunc("GET /api/auth/{provider}/callback", authHandler.OAuthCallback)

	// Family administration (adult sessions)
	mux.HandleFunc("GET /api/family", middleware.RequireAdult(familyHandler.GetFamily))
	mux.HandleFunc("PATCH /api/family", middleware.RequireAdult(familyHandler.RenameFamily))
	mux.HandleFunc("GET /api/family/adults", middleware.RequireAdult(familyHandler.ListAdults))
	mux.HandleFunc("PATCH /api/family/adults/{id}/status", middleware.RequireAdult(familyHandler.SetMemberStatus))
	mux.HandleFunc("POST /api/family/invitations", middleware.RequireAdult(familyHandler.CreateInvitation))
	mux.HandleFunc("GET /api/family/invitations", middleware.RequireAdult(familyHandler.ListInvitations))
	mux.HandleFunc("POST /api/family/children", middleware.RequireAdult(childHandler.CreateChild))
	mux.HandleFunc("GET /api/family/children", middleware.RequireAdult(childHandler.ListChildren))
	mux.HandleFunc("GET /api/family/children/{id}", middleware.RequireAdult(childHandler.GetChild))
	mux.HandleFunc("PATCH /api/family/children/{id}", middleware.RequireAdult(childHandler.UpdateChild))
	mux.HandleFunc("POST /api/family/children/{id}/login-code", middleware.RequireAdult(childHandler.RegenerateLoginCode))

	// Child sessions
	mux.HandleFunc("POST /api/child/login", childHandler.Login)
	mux.HandleFunc("POST /api/child/logout", childHandler.Logout)
	mux.HandleFunc("GET /api/child/me", middleware.RequireChild(childHandler.Me))

	// Conversations and messages (either principal)
	mux.HandleFunc("POST /api/conversations", middleware.RequirePrincipal(conversationHandler.Resolve))
	mux.HandleFunc("GET /api/conversations", middleware.RequirePrincipal(conversationHandler.List))
	mux.HandleFunc("GET /api/conversations/{id}", middleware.RequirePrincipal(conversationHandler.Get))
	mux.HandleFunc("POST /api/conversations/{id}/messages", middleware.RequirePrincipal(conversationHandler.SendMessage))
	mux.HandleFunc("GET /api/conversations/{id}/messages", middleware.RequirePrincipal(conversationHandler.ListMessages))
	mux.HandleFunc("GET /api/conversations/{id}/ws", middleware.RequirePrincipal(conversationHandler.Subscribe))
	mux.HandleFunc("GET /api/adults/{id}/name", middleware.RequirePrincipal(conversationHandler.AdultName))

	// Call signaling (either principal)
	mux.HandleFunc("POST /api/calls", middleware.RequirePrincipal(callHandler.Start))
	mux.HandleFunc("GET /api/calls/incoming", middleware.RequirePrincipal(callHandler.Incoming))
	mux.HandleFunc("GET /api/calls/{id}", middleware.RequirePrincipal(callHandler.Get))
	mux.HandleFunc("PATCH /api/calls/{id}", middleware.RequirePrincipal(callHandler.Update))
	mux.HandleFunc("GET /api/calls/{id}/ws", middleware.RequirePrincipal(callHandler.Subscribe))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	handler := handlers.Logging(corsMiddleware.Handler(mux))

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background sweeps
	go runSweeps(authService, childSessionService, callService, cfg.RingTimeout)

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// runSweeps drives the periodic maintenance loops: ring-timeout ends for
// unanswered calls (frequent), and session/candidate cleanup (hourly).
func runSweeps(authService *service.AuthService, childSessionService *service.ChildSessionService, callService *service.CallService, ringTimeout time.Duration) {
	ringInterval := ringTimeout / 3
	if ringInterval < 5*time.Second {
		ringInterval = 5 * time.Second
	}
	ringTicker := time.NewTicker(ringInterval)
	cleanupTicker := time.NewTicker(time.Hour)
	defer ringTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ringTicker.C:
			if swept, err := callService.SweepStaleRinging(); err != nil {
				log.Printf("Ring sweep failed: %v", err)
			} else if swept > 0 {
				log.Printf("Ring sweep ended %d unanswered calls", swept)
			}
		case <-cleanupTicker.C:
			if err := authService.CleanupExpiredSessions(); err != nil {
				log.Printf("Adult session cleanup failed: %v", err)
			}
			if err := childSessionService.CleanupExpiredSessions(); err != nil {
				log.Printf("Child session cleanup failed: %v", err)
			}
			if cleared, err := callService.CleanupEndedCandidates(); err != nil {
				log.Printf("Candidate cleanup failed: %v", err)
			} else if cleared > 0 {
				log.Printf("Cleared candidate lists on %d ended calls", cleared)
			}
		}
	}
}
