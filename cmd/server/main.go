package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/printworks/printdesk/internal/config"
	"github.com/printworks/printdesk/internal/db"
	"github.com/printworks/printdesk/internal/fleet"
	"github.com/printworks/printdesk/internal/logging"
	"github.com/printworks/printdesk/internal/migrations"
	"github.com/printworks/printdesk/internal/seed"
)

const shutdownTimeout = 10 * time.Second

type server struct {
	db     *sql.DB
	logger *zap.Logger
	fleet  *fleet.Manager
	token  string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := migrations.Up(database, cfg.MigrationsDir); err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}

	stats, err := seed.Run(database)
	if err != nil {
		logger.Fatal("failed to seed database", zap.Error(err))
	}
	if stats.Inserts > 0 {
		logger.Info("seeded reference data", zap.Int("inserts", stats.Inserts))
	}

	fleetCfg, err := fleet.LoadConfig(cfg.FleetConfigPath)
	if err != nil {
		logger.Fatal("failed to load fleet config", zap.Error(err))
	}
	if fleetCfg.PollInterval <= 0 {
		fleetCfg.PollInterval = cfg.FleetPoll
	}

	manager := fleet.NewManager(fleetCfg.Printers)
	poller := fleet.NewPoller(manager, fleetCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go poller.Run(ctx)

	srv := &server{
		db:     database,
		logger: logger,
		fleet:  manager,
		token:  cfg.APIToken,
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown did not finish cleanly", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", httpServer.Addr), zap.Int("printers", len(fleetCfg.Printers)))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server shut down")
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Post("/quote/estimate", s.handleEstimate)

		r.Get("/quotes", s.handleListQuotes)
		r.Post("/quotes", s.handleSaveQuote)
		r.Get("/quotes/export", s.handleExportQuotes)
		r.Get("/quotes/{id}", s.handleGetQuote)
		r.Delete("/quotes/{id}", s.handleDeleteQuote)
		r.Post("/quotes/{id}/convert", s.handleConvertQuote)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)

		r.Get("/materials", s.handleListMaterials)
		r.Post("/materials", s.handleCreateMaterial)
		r.Put("/materials/{id}", s.handleUpdateMaterial)

		r.Get("/orders", s.handleListOrders)
		r.Get("/market", s.handleMarket)

		r.Get("/printers", s.handlePrinters)
		r.Get("/printers/ws", s.handlePrintersWS)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
