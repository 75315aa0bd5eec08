package explore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"querylens/internal/cache"
	internaldb "querylens/internal/db"
	"querylens/internal/db/repository"
	"querylens/internal/domain"
	"querylens/internal/service/semantic"
)

type fakeGateway struct {
	mu       sync.Mutex
	lastSQL  string
	calls    atomic.Int64
	failWith error
	delay    time.Duration
}

func (f *fakeGateway) Execute(_ context.Context, _ string, sqlQuery string, _ int) (*domain.QueryResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.mu.Lock()
	f.lastSQL = sqlQuery
	f.mu.Unlock()
	return &domain.QueryResult{
		Columns:  []string{"Region", "Total Amount"},
		Rows:     [][]interface{}{{"west", 120.5}},
		RowCount: 1,
	}, nil
}

type exploreFixture struct {
	svc      *Service
	gateway  *fakeGateway
	cache    *cache.ResultCache
	modelID  string
	regionID string
	amountID string
}

func setupExplore(t *testing.T) *exploreFixture {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	sem := semantic.NewService(
		repository.NewModelRepo(writeDB),
		repository.NewTableRepo(writeDB),
		repository.NewFieldRepo(writeDB),
		repository.NewRelationshipRepo(writeDB),
		nil,
	)
	ctx := context.Background()

	model, err := sem.CreateModel(ctx, domain.CreateModelRequest{Name: "sales", DatasourceID: "ds-main"})
	require.NoError(t, err)
	orders, err := sem.AddTable(ctx, domain.CreateTableRequest{ModelID: model.ID, TableName: "orders", Alias: "ord", IsPrimary: true})
	require.NoError(t, err)
	customers, err := sem.AddTable(ctx, domain.CreateTableRequest{ModelID: model.ID, TableName: "customers", Alias: "cus", SortOrder: 1})
	require.NoError(t, err)
	region, err := sem.AddField(ctx, domain.CreateFieldRequest{TableID: customers.ID, ColumnName: "region", Label: "Region"})
	require.NoError(t, err)
	amount, err := sem.AddField(ctx, domain.CreateFieldRequest{
		TableID: orders.ID, ColumnName: "amount", Role: domain.FieldRoleMeasure,
		Label: "Total Amount", DataType: domain.DataTypeNumber,
	})
	require.NoError(t, err)
	_, err = sem.AddRelationship(ctx, domain.CreateRelationshipRequest{
		ModelID: model.ID, LeftTableID: orders.ID, LeftColumn: "customer_id",
		RightTableID: customers.ID, RightColumn: "id",
	})
	require.NoError(t, err)

	gw := &fakeGateway{}
	resultCache := cache.New(slog.New(slog.DiscardHandler), 10, time.Minute)
	return &exploreFixture{
		svc:      NewService(sem, gw, resultCache, slog.New(slog.DiscardHandler)),
		gateway:  gw,
		cache:    resultCache,
		modelID:  model.ID,
		regionID: region.ID,
		amountID: amount.ID,
	}
}

func TestRun_ExecutesAndCaches(t *testing.T) {
	fx := setupExplore(t)
	req := domain.ExploreRequest{
		ModelID:  fx.modelID,
		FieldIDs: []string{fx.regionID, fx.amountID},
		Limit:    100,
	}

	first, err := fx.svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, first.RowCount)
	assert.Contains(t, first.SQL, `SUM(ord.amount) AS "Total Amount"`)
	assert.Equal(t, []string{"Region", "Total Amount"}, first.Columns)

	second, err := fx.svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, int64(1), fx.gateway.calls.Load(), "cache hit must not reach the gateway")
}

func TestRun_GatewayErrorNotCached(t *testing.T) {
	fx := setupExplore(t)
	fx.gateway.failWith = errors.New("connection refused")
	req := domain.ExploreRequest{ModelID: fx.modelID, FieldIDs: []string{fx.amountID}, Limit: 10}

	_, err := fx.svc.Run(context.Background(), req)
	require.Error(t, err)

	fx.gateway.failWith = nil
	result, err := fx.svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, result.CacheHit, "failed execution must not populate the cache")
	assert.Equal(t, int64(2), fx.gateway.calls.Load())
}

func TestRun_ConcurrentMissesCoalesce(t *testing.T) {
	fx := setupExplore(t)
	fx.gateway.delay = 30 * time.Millisecond
	req := domain.ExploreRequest{ModelID: fx.modelID, FieldIDs: []string{fx.amountID}, Limit: 10}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.Run(context.Background(), req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), fx.gateway.calls.Load(), "identical concurrent misses share one execution")
}

func TestRun_DisabledCacheAlwaysExecutes(t *testing.T) {
	fx := setupExplore(t)
	fx.cache.SetEnabled(false)
	req := domain.ExploreRequest{ModelID: fx.modelID, FieldIDs: []string{fx.amountID}, Limit: 10}

	for i := 0; i < 3; i++ {
		result, err := fx.svc.Run(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, result.CacheHit)
	}
	assert.Equal(t, int64(3), fx.gateway.calls.Load())
}

func TestExplain_CompilesWithoutExecuting(t *testing.T) {
	fx := setupExplore(t)
	result, err := fx.svc.Explain(context.Background(), domain.ExploreRequest{
		ModelID:  fx.modelID,
		FieldIDs: []string{fx.regionID, fx.amountID},
	})
	require.NoError(t, err)
	assert.Contains(t, result.SQL, "LEFT JOIN customers AS cus")
	assert.Contains(t, result.SQL, "LIMIT 1000", "limit defaults when unset")
	assert.Empty(t, result.Rows)
	assert.Zero(t, fx.gateway.calls.Load())
}

func TestRun_UnknownModel(t *testing.T) {
	fx := setupExplore(t)
	_, err := fx.svc.Run(context.Background(), domain.ExploreRequest{
		ModelID: "no-such-model", FieldIDs: []string{"f"}, Limit: 10,
	})
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
