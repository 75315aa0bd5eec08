// Package app provides application-level wiring and dependency injection
// for the querylens server.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"querylens/internal/cache"
	"querylens/internal/config"
	"querylens/internal/db/repository"
	"querylens/internal/domain"
	"querylens/internal/gateway"
	"querylens/internal/service/calcfield"
	"querylens/internal/service/explore"
	"querylens/internal/service/semantic"
)

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// database handles, config, and the optional datasource connection.
type Deps struct {
	Cfg       *config.Config
	WriteDB   *sql.DB
	ReadDB    *sql.DB
	GatewayDB *sql.DB // nil when no datasource is configured
	Logger    *slog.Logger
}

// Services groups all service pointers that the API handler needs.
type Services struct {
	Semantic  *semantic.Service
	Explore   *explore.Service
	CalcField *calcfield.Service
}

// App holds the fully-wired application.
type App struct {
	Services Services
	Cache    *cache.ResultCache
}

// New wires all repositories and services from the provided deps.
func New(_ context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	// Repositories: write-pool instances back the authoring services that
	// INSERT/UPDATE/DELETE, read-pool instances back the snapshot loads
	// done per explore compilation so they don't queue behind the single
	// write connection.
	modelRepo := repository.NewModelRepo(deps.WriteDB)
	tableRepo := repository.NewTableRepo(deps.WriteDB)
	fieldRepo := repository.NewFieldRepo(deps.WriteDB)
	relationshipRepo := repository.NewRelationshipRepo(deps.WriteDB)
	calcFieldRepo := repository.NewCalculatedFieldRepo(deps.WriteDB)

	readModelRepo := repository.NewModelRepo(deps.ReadDB)
	readTableRepo := repository.NewTableRepo(deps.ReadDB)
	readFieldRepo := repository.NewFieldRepo(deps.ReadDB)
	readRelationshipRepo := repository.NewRelationshipRepo(deps.ReadDB)

	var dbGateway domain.DatabaseGateway
	var schemaGateway domain.SchemaGateway
	if deps.GatewayDB != nil {
		gw := gateway.NewSQLGateway(deps.GatewayDB, cfg.GatewayDriver, deps.Logger.With("component", "gateway"))
		dbGateway = gw
		schemaGateway = gw
	} else {
		gw := unconfiguredGateway{}
		dbGateway = gw
		schemaGateway = gw
	}

	resultCache := cache.New(deps.Logger.With("component", "cache"), cfg.Cache.MaxEntries, cfg.Cache.TTL)
	resultCache.SetEnabled(cfg.Cache.Enabled)

	semanticSvc := semantic.NewService(modelRepo, tableRepo, fieldRepo, relationshipRepo, schemaGateway)
	semanticRead := semantic.NewService(readModelRepo, readTableRepo, readFieldRepo, readRelationshipRepo, schemaGateway)
	exploreSvc := explore.NewService(semanticRead, dbGateway, resultCache, deps.Logger.With("component", "explore"))
	calcFieldSvc := calcfield.NewService(calcFieldRepo, deps.Logger.With("component", "calcfield"))

	return &App{
		Services: Services{
			Semantic:  semanticSvc,
			Explore:   exploreSvc,
			CalcField: calcFieldSvc,
		},
		Cache: resultCache,
	}, nil
}

// unconfiguredGateway stands in when no datasource is configured, so that
// model-authoring endpoints keep working while explore and auto-import
// report a clear error instead of panicking on a nil interface.
type unconfiguredGateway struct{}

func (unconfiguredGateway) Execute(context.Context, string, string, int) (*domain.QueryResult, error) {
	return nil, domain.ErrValidation("no datasource configured: set GATEWAY_DRIVER and GATEWAY_DSN")
}

func (unconfiguredGateway) Introspect(context.Context, string) ([]domain.PhysicalTable, error) {
	return nil, domain.ErrValidation("no datasource configured: set GATEWAY_DRIVER and GATEWAY_DSN")
}
