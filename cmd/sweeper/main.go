package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/govquorum/anonpoll/internal/adapters/repository/postgres"
	"github.com/govquorum/anonpoll/internal/core/services"
)

// The sweeper advances poll lifecycles on the wall clock: drafts past
// their start time become active, active polls past their end time are
// closed, and closing triggers aggregation. Vote acceptance does not
// depend on it; the submit transaction re-checks the end time itself.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var interval time.Duration
	var once bool
	flag.DurationVar(&interval, "interval", time.Minute, "Sweep interval")
	flag.BoolVar(&once, "once", false, "Run a single sweep and exit")
	flag.Parse()

	db, err := sql.Open("postgres", dbConnString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	pollRepo := postgres.NewPollRepository(db)
	credRepo := postgres.NewCredentialRepository(db)
	voteRepo := postgres.NewVoteRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	reportRepo := postgres.NewReportRepository(db)

	auditSvc := services.NewAuditService(auditRepo)
	aggregatorSvc := services.NewAggregatorService(pollRepo, voteRepo, credRepo, reportRepo, auditSvc)
	registrySvc := services.NewRegistryService(pollRepo, auditSvc, aggregatorSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := registrySvc.Sweep(sweepCtx, time.Now().UTC()); err != nil {
			log.Printf("sweep failed: %v", err)
		}
	}

	sweep()
	if once {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper shutting down")
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func dbConnString() string {
	dbName := os.Getenv("POSTGRES_DB")
	user := os.Getenv("POSTGRES_USER")
	password := os.Getenv("POSTGRES_PASSWORD")
	host := os.Getenv("POSTGRES_HOST")
	port := os.Getenv("POSTGRES_PORT")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbName)
}
