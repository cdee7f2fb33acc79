package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodtrace.org/internal/httpapi"
	"foodtrace.org/internal/identity"
	"foodtrace.org/internal/obs"
	"foodtrace.org/internal/store"
	"foodtrace.org/internal/store/pg"
	"foodtrace.org/internal/stream"
	"foodtrace.org/internal/trace"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Documents live in Postgres when a DSN is configured, otherwise in
	// memory (dev and demo setups).
	var (
		docs store.Store
		db   *sql.DB
	)
	if dsn := os.Getenv("FOODTRACE_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		docs = pgStore
		db = pgStore.DB()
	} else {
		docs = store.NewInMemory()
	}

	registry := identity.NewRegistry(docs)
	tracer := trace.NewService(docs, registry)
	events := stream.New()

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, registry, tracer, events)

	addr := os.Getenv("FOODTRACE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting foodtrace-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
