/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the dispatch board engine server. Handles
  configuration, state loading, dependency injection and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Load environment config, apply -port/-db flag overrides
  2. Open the SQLite store
  3. Resolve the rule catalog: persisted tables win; otherwise the
     built-in defaults merged with CATALOG_DIR YAML files are installed
     and saved
  4. Rebuild the session (roster, attachments, board) from the store
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SERVER_SHUTDOWN_TIMEOUT)
  3. Close the store
  4. Exit

SEE ALSO:
  - config/config.go: Environment knobs
  - api/server.go:    Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/dispatch-engine/api"
	"github.com/warp/dispatch-engine/config"
	"github.com/warp/dispatch-engine/construction"
	"github.com/warp/dispatch-engine/engine"
	"github.com/warp/dispatch-engine/store/sqlite"
)

func main() {
	// Flags override the environment for local development
	port := flag.String("port", "", "HTTP server port (overrides SERVER_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DATABASE_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Resolve the rule catalog: persisted tables win; first boot installs
	// the defaults merged with any YAML catalog files.
	fallbackSpec, err := construction.LoadCatalogDir(cfg.Catalog.Dir, construction.DefaultSpec())
	if err != nil {
		log.Fatalf("Failed to load catalog files: %v", err)
	}
	persisted, err := store.LoadCatalog(ctx)
	if err != nil {
		log.Fatalf("Failed to read persisted catalog: %v", err)
	}
	if persisted == nil {
		if err := store.ReplaceCatalog(ctx, fallbackSpec); err != nil {
			log.Fatalf("Failed to seed catalog: %v", err)
		}
	}

	// Rebuild session state from the store
	hub := engine.NewHub()
	session, err := engine.LoadSession(ctx, store, engine.NewCatalog(fallbackSpec), hub)
	if err != nil {
		log.Fatalf("Failed to load board state: %v", err)
	}

	handler := api.NewHandler(session, store)
	router := api.NewRouter(handler, cfg.CORS.Origins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Printf("Dispatch board engine listening on http://localhost:%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
