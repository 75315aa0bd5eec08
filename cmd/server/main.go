package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/mattn/go-sqlite3"

	"querylens/internal/api"
	"querylens/internal/app"
	"querylens/internal/config"
	internaldb "querylens/internal/db"
	"querylens/internal/declarative"
	"querylens/internal/middleware"
)

func main() {
	ctx := context.Background()

	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	// Open the SQLite metastore with hardened connection settings.
	// writeDB: single-connection pool for serialized writes (WAL + txlock=immediate).
	// readDB:  4-connection pool for concurrent reads (WAL, no txlock).
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 4)
	if err != nil {
		log.Fatalf("open metastore: %v", err)
	}
	defer writeDB.Close()
	defer readDB.Close()

	// Run migrations on the write pool (DDL requires write access)
	if err := internaldb.RunMigrations(writeDB); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	// Open the datasource connection when one is configured. The server
	// still starts without one; explore endpoints report the missing
	// configuration instead.
	var gatewayDB *sql.DB
	if cfg.GatewayDriver != "" {
		gatewayDB, err = sql.Open(cfg.GatewayDriver, cfg.GatewayDSN)
		if err != nil {
			log.Fatalf("open datasource (%s): %v", cfg.GatewayDriver, err)
		}
		defer gatewayDB.Close()
		logger.Info("datasource gateway ready", "driver", cfg.GatewayDriver)
	}

	application, err := app.New(ctx, app.Deps{
		Cfg:       cfg,
		WriteDB:   writeDB,
		ReadDB:    readDB,
		GatewayDB: gatewayDB,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("wire application: %v", err)
	}

	// Apply declarative model definitions at startup when configured.
	if cfg.ModelConfigDir != "" {
		applier := declarative.NewApplier(application.Services.Semantic, logger.With("component", "declarative"))
		if err := applier.ApplyDirectory(ctx, cfg.ModelConfigDir); err != nil {
			log.Fatalf("apply model config: %v", err)
		}
	}

	handler := api.NewHandler(
		application.Services.Semantic,
		application.Services.Explore,
		application.Services.CalcField,
		application.Cache,
	)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
		handler.Routes(r)
	})

	logger.Info("http api listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
