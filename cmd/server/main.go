/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the banana-earn reward ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (TOML file + environment overrides)
  3. Initialize SQLite store
  4. Grant bootstrap admins, optionally seed the default catalog
  5. Configure HTTP router with identity middleware
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a TOML config file (optional)
  -addr    HTTP listen address (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  JWT_SECRET=dev-secret ./server -db=":memory:"
  ./server -config=./banana-earn.toml

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caffeinepub/banana-earn/api"
	"github.com/caffeinepub/banana-earn/config"
	"github.com/caffeinepub/banana-earn/ledger"
	"github.com/caffeinepub/banana-earn/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "path to TOML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Grant bootstrap admins their role if they were never assigned one.
	for _, id := range cfg.BootstrapAdmins {
		identity := ledger.Identity(id)
		if _, ok, err := store.GetRole(ctx, identity); err != nil {
			log.Fatalf("Failed to check bootstrap admin %s: %v", id, err)
		} else if !ok {
			if err := store.SetRole(ctx, identity, ledger.RoleAdmin); err != nil {
				log.Fatalf("Failed to grant bootstrap admin %s: %v", id, err)
			}
			log.Printf("Granted admin role to bootstrap identity %s", id)
		}
	}

	if cfg.SeedTasks {
		if err := ledger.SeedCatalog(ctx, store); err != nil {
			log.Fatalf("Failed to seed default tasks: %v", err)
		}
	}

	// Initialize service and router
	svc := ledger.NewService(store, ledger.WithDefaultRole(cfg.Role()))
	handler := api.NewHandler(svc)
	router := api.NewRouter(handler, cfg.JWTSecret, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
