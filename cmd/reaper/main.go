// Command reaper runs the maintenance sweeps once and exits: expired
// session cleanup, ring-timeout ends for unanswered calls, and candidate
// cleanup on ended calls. Useful from cron against the same database as
// the server, or for catching up after downtime.
package main

import (
	"flag"
	"log"

	"familytalk/internal/config"
	"familytalk/internal/database"
	"familytalk/internal/repository"
	"familytalk/internal/security"
	"familytalk/internal/service"
	"familytalk/migrations"
)

func main() {
	sessions := flag.Bool("sessions", true, "delete expired adult and child sessions")
	calls := flag.Bool("calls", true, "end stale ringing calls and clear old candidate lists")
	flag.Parse()

	cfg := config.Load()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(migrations.FS); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	familyRepo := repository.NewFamilyRepository(db)
	adultRepo := repository.NewAdultRepository(db)
	childRepo := repository.NewChildRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	callRepo := repository.NewCallRepository(db)

	if *sessions {
		authService := service.NewAuthService(adultRepo, familyRepo, invitationRepo, cfg.AdultSessionDuration)
		if err := authService.CleanupExpiredSessions(); err != nil {
			log.Printf("Adult session cleanup failed: %v", err)
		} else {
			log.Println("Adult session cleanup done")
		}

		limiter := security.NewFailureLimiter(cfg.LoginFailureLimit, cfg.LoginFailureWindow)
		childSessionService := service.NewChildSessionService(familyRepo, childRepo, limiter, cfg.ChildSessionDuration)
		if err := childSessionService.CleanupExpiredSessions(); err != nil {
			log.Printf("Child session cleanup failed: %v", err)
		} else {
			log.Println("Child session cleanup done")
		}
	}

	if *calls {
		callService := service.NewCallService(callRepo, adultRepo, childRepo, nil, cfg.RingTimeout, cfg.CandidateRetention)
		if swept, err := callService.SweepStaleRinging(); err != nil {
			log.Printf("Ring sweep failed: %v", err)
		} else {
			log.Printf("Ring sweep ended %d unanswered calls", swept)
		}
		if cleared, err := callService.CleanupEndedCandidates(); err != nil {
			log.Printf("Candidate cleanup failed: %v", err)
		} else {
			log.Printf("Cleared candidate lists on %d ended calls", cleared)
		}
	}
}
