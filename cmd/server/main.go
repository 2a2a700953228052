/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the finance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse environment config, then command-line flag overrides
  2. Initialize SQLite store
  3. Load the default finance policy (JSON file or built-in 30/40/30)
  4. Configure HTTP router and start the status-refresh scheduler
  5. Start server with graceful shutdown

CONFIGURATION:
  PORT              HTTP server port (default: 8080)
  DB_PATH           SQLite database path (default: finance.db)
  POLICY            Path to a policy JSON file (optional)
  REFRESH_INTERVAL  Automatic status refresh interval (default: 1h)
  Flags -port, -db, -policy, and -refresh-interval override the
  environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/expocrm/finance-engine/api"
	"github.com/expocrm/finance-engine/factory"
	"github.com/expocrm/finance-engine/finance"
	"github.com/expocrm/finance-engine/store/sqlite"
)

type config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	DBPath          string        `env:"DB_PATH" envDefault:"finance.db"`
	PolicyPath      string        `env:"POLICY"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"1h"`
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to parse environment")
	}

	// Flag overrides
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path (:memory: for in-memory)")
	policyPath := flag.String("policy", cfg.PolicyPath, "Path to a policy JSON file")
	refreshInterval := flag.Duration("refresh-interval", cfg.RefreshInterval, "Automatic status refresh interval (0 disables)")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Load default finance policy
	policyCfg, err := loadPolicy(*policyPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *policyPath).Msg("failed to load policy")
	}

	// Wire service + handler
	service := finance.NewService(store,
		finance.WithLogger(log),
		finance.WithDispatcher(finance.LogDispatcher{Logger: log}),
	)
	handler := api.NewHandler(service, policyCfg)

	// Background status refresh keeps installments going overdue without
	// a manual refresh call.
	scheduler := api.NewRefreshScheduler(service, log)
	if *refreshInterval > 0 {
		scheduler.CheckInterval = *refreshInterval
	} else {
		scheduler.Enabled = false
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// loadPolicy reads a policy JSON file, falling back to the built-in
// 30/40/30 split with no beneficiaries when no path is given.
func loadPolicy(path string) (*factory.Config, error) {
	f := factory.NewPolicyFactory()
	if path == "" {
		return f.ParseConfig(factory.StandardConfigJSON("default", "Standard 30/40/30", nil))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return f.ParseConfig(string(data))
}
