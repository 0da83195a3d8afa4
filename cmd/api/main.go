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

	"gekko.org/internal/httpapi"
	"gekko.org/internal/obs"
	"gekko.org/internal/org"
	"gekko.org/internal/store/pg"
)

var version = "1.2.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("GEKKO_COMMIT"))

	// Postgres when a DSN is configured, in-memory store otherwise
	// (useful for local runs and demos).
	var (
		db  *sql.DB
		svc *org.Service
	)
	if dsn := os.Getenv("GEKKO_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		svc, err = org.NewService(store, store, store)
		if err != nil {
			log.Fatalf("init service: %v", err)
		}
	} else {
		mem := org.NewInMemory()
		var err error
		svc, err = org.NewService(mem, mem, mem)
		if err != nil {
			log.Fatalf("init service: %v", err)
		}
		log.Println("GEKKO_PG_DSN not set, using in-memory store")
	}

	addr := os.Getenv("GEKKO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, []byte(os.Getenv("GEKKO_AUTH_SECRET")))

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting gekko-api %s on %s", version, srv.Addr)

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
