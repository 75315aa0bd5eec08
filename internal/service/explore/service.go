package explore

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"querylens/internal/cache"
	"querylens/internal/domain"
	"querylens/internal/service/semantic"
)

// Service compiles explore requests and runs them through the gateway,
// with the result cache wrapped around execution.
type Service struct {
	semantic *semantic.Service
	gateway  domain.DatabaseGateway
	cache    *cache.ResultCache
	group    singleflight.Group
	logger   *slog.Logger
}

// NewService creates an explore Service. The cache may be nil, in which
// case every request executes.
func NewService(sem *semantic.Service, gateway domain.DatabaseGateway, resultCache *cache.ResultCache, logger *slog.Logger) *Service {
	return &Service{
		semantic: sem,
		gateway:  gateway,
		cache:    resultCache,
		logger:   logger.With("component", "explore"),
	}
}

// Explain compiles the request without executing it.
func (s *Service) Explain(ctx context.Context, req domain.ExploreRequest) (*domain.ExploreResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	snap, err := s.semantic.Snapshot(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	sqlText, columns, err := Compile(snap, req)
	if err != nil {
		return nil, err
	}
	return &domain.ExploreResult{SQL: sqlText, Columns: columns}, nil
}

// Run compiles and executes the request. Identical concurrent misses are
// coalesced so the gateway sees each fingerprint once; the cache is
// populated only after a successful execution.
func (s *Service) Run(ctx context.Context, req domain.ExploreRequest) (*domain.ExploreResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	snap, err := s.semantic.Snapshot(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	sqlText, columns, err := Compile(snap, req)
	if err != nil {
		return nil, err
	}

	datasourceID := snap.Model.DatasourceID
	if s.cache != nil {
		if cached, hit := s.cache.Get(datasourceID, sqlText, nil); hit {
			return resultFrom(sqlText, columns, cached, true), nil
		}
	}

	v, err, _ := s.group.Do(cache.Fingerprint(datasourceID, sqlText, nil), func() (interface{}, error) {
		start := time.Now()
		qr, err := s.gateway.Execute(ctx, datasourceID, sqlText, req.Limit)
		if err != nil {
			return nil, err
		}
		qr.ExecutionMs = time.Since(start).Milliseconds()
		if s.cache != nil {
			s.cache.Put(datasourceID, sqlText, nil, qr)
		}
		return qr, nil
	})
	if err != nil {
		s.logger.Warn("explore execution failed", "model_id", req.ModelID, "error", err)
		return nil, err
	}
	return resultFrom(sqlText, columns, v.(*domain.QueryResult), false), nil
}

func resultFrom(sqlText string, columns []string, qr *domain.QueryResult, cacheHit bool) *domain.ExploreResult {
	return &domain.ExploreResult{
		SQL:         sqlText,
		Columns:     columns,
		Rows:        qr.Rows,
		RowCount:    qr.RowCount,
		ExecutionMs: qr.ExecutionMs,
		CacheHit:    cacheHit,
	}
}
