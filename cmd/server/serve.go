package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cx-tal-miterani/flight-surety/internal/config"
	"github.com/cx-tal-miterani/flight-surety/internal/database"
	"github.com/cx-tal-miterani/flight-surety/internal/handlers"
	"github.com/cx-tal-miterani/flight-surety/internal/ledger"
	"github.com/cx-tal-miterani/flight-surety/internal/router"
	"github.com/cx-tal-miterani/flight-surety/internal/service"
	"github.com/cx-tal-miterani/flight-surety/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
)

// store bundles the persistence chosen by journalDriver. Every journal here
// records an entry's transfers in the same write, so the ledger runs without
// a separate Transferer.
type store struct {
	journal ledger.Journal
	outbox  service.Outbox
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.JournalDriver {
	case config.JournalPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		pg := database.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("connected to database", "component", programName, "driver", cfg.JournalDriver)
		return &store{journal: pg, outbox: pg, close: pool.Close}, nil
	case config.JournalSQLite:
		lite, err := database.NewSQLiteStore(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("opened database", "component", programName, "driver", cfg.JournalDriver, "data_dir", cfg.DataDir)
		return &store{
			journal: lite,
			outbox:  lite,
			close: func() {
				if err := lite.Close(); err != nil {
					logger.Warn("failed to close database", "component", programName, "error", err)
				}
			},
		}, nil
	default:
		logger.Warn("using in-memory journal, state is lost on restart", "component", programName)
		return &store{
			journal: ledger.NewMemoryJournal(),
			close:   func() {},
		}, nil
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	owner, err := cfg.OwnerAddress()
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	hub := websocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	sinks := []ledger.EventSink{hub}
	if cfg.DispatchOracleRequests {
		temporalClient, err := client.Dial(client.Options{
			HostPort: cfg.TemporalHost,
			Logger:   temporallog.NewStructuredLogger(logger),
		})
		if err != nil {
			return fmt.Errorf("failed to create Temporal client: %w", err)
		}
		defer temporalClient.Close()
		logger.Info("connected to Temporal", "component", programName, "host", cfg.TemporalHost, "task_queue", cfg.TaskQueue)
		sinks = append(sinks, service.NewOracleDispatcher(temporalClient, cfg.TaskQueue, logger))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	l, err := ledger.New(ledger.Config{
		Owner:                    owner,
		Logger:                   logger,
		PromRegistry:             registry,
		Journal:                  st.journal,
		Events:                   service.Fanout(sinks...),
		RequireRegisteredOracles: cfg.RequireRegisteredOracles,
		AirlineSettlement:        cfg.AirlineSettlement,
	})
	if err != nil {
		return err
	}
	if err := l.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore ledger: %w", err)
	}

	h := handlers.NewHandler(service.NewSuretyService(l, st.outbox), hub)
	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.NewRouter(h, registry),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server starting", "component", programName, "addr", srv.Addr, "owner", owner)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server", "component", programName)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDuration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped", "component", programName)
	return nil
}
