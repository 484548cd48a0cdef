package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/govquorum/anonpoll/internal/adapters/handler/http"
	"github.com/govquorum/anonpoll/internal/adapters/repository/postgres"
	"github.com/govquorum/anonpoll/internal/core/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

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
	verifierSvc := services.NewVerifierService(pollRepo, credRepo, voteRepo, auditRepo)
	aggregatorSvc := services.NewAggregatorService(pollRepo, voteRepo, credRepo, reportRepo, auditSvc)
	registrySvc := services.NewRegistryService(pollRepo, auditSvc, aggregatorSvc)
	issuerSvc := services.NewIssuerService(pollRepo, credRepo, auditSvc)
	ledgerSvc := services.NewLedgerService(pollRepo, voteRepo, verifierSvc, auditSvc)

	handler := http.NewHandler(
		http.NewPollHandler(registrySvc),
		http.NewCredentialHandler(issuerSvc),
		http.NewVoteHandler(ledgerSvc),
		http.NewReportHandler(aggregatorSvc, verifierSvc),
		http.NewAuditHandler(auditSvc),
	)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8080"
	}
	server := &stdhttp.Server{Addr: addr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	fmt.Println("Gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
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
