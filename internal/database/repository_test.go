package database

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/carprice-ai-go/internal/cache"
	"github.com/irfndi/carprice-ai-go/internal/config"
	"github.com/irfndi/carprice-ai-go/internal/models"
)

// MockPoolAdapter wraps pgxmock.PgxPoolIface to implement DatabasePool interface
type MockPoolAdapter struct {
	mock pgxmock.PgxPoolIface
}

func NewMockPoolAdapter(mock pgxmock.PgxPoolIface) DatabasePool {
	return &MockPoolAdapter{mock: mock}
}

func (m *MockPoolAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return m.mock.QueryRow(ctx, sql, args...)
}

func (m *MockPoolAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return m.mock.Exec(ctx, sql, args...)
}

func (m *MockPoolAdapter) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return m.mock.Query(ctx, sql, args...)
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, DatabasePool) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewMockPoolAdapter(mock)
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func fptr(v float64) *float64 { return &v }

var civic = models.ItemKey{Make: "Honda", Model: "Civic", Year: 2018}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "cars", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=cars sslmode=disable", DSN(cfg))

	cfg.DatabaseURL = "postgres://u:p@db/cars"
	assert.Equal(t, "postgres://u:p@db/cars", DSN(cfg))
}

func TestHealthCheck_NilConnections(t *testing.T) {
	var db *PostgresDB
	assert.Error(t, db.HealthCheck(context.Background()))
	assert.NotPanics(t, func() { (&PostgresDB{}).Close() })

	rc := &RedisClient{}
	err := rc.HealthCheck(context.Background())
	assert.EqualError(t, err, "redis client is nil")
	assert.NotPanics(t, rc.Close)
}

func TestEnsureSchema(t *testing.T) {
	mock, pool := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS listings").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, EnsureSchema(context.Background(), pool))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_GetHistory(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewHistoryRepository(pool)

	rows := pgxmock.NewRows([]string{"period", "avg_price", "median_price", "listing_count"}).
		AddRow(month(2024, 1), 17000.0, 16800.0, 40).
		AddRow(month(2024, 2), 17250.5, 17000.0, 38)
	mock.ExpectQuery("FROM price_snapshots").
		WithArgs("honda", "civic", 2018).
		WillReturnRows(rows)

	points, err := repo.GetHistory(context.Background(), civic)

	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, month(2024, 1), points[0].Period)
	assert.Equal(t, 17250.5, points[1].AveragePrice)
	assert.Equal(t, 38, points[1].ListingCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepository_GetHistoryEmpty(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewHistoryRepository(pool)
	mock.ExpectQuery("FROM price_snapshots").
		WithArgs("honda", "civic", 2018).
		WillReturnRows(pgxmock.NewRows([]string{"period", "avg_price", "median_price", "listing_count"}))

	points, err := repo.GetHistory(context.Background(), civic)

	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestHistoryRepository_QueryError(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewHistoryRepository(pool)
	mock.ExpectQuery("FROM price_snapshots").WillReturnError(errors.New("connection reset"))

	_, err := repo.GetHistory(context.Background(), civic)

	assert.ErrorContains(t, err, "failed to query price history")
}

func TestHistoryRepository_GetMarketWideHistory(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewHistoryRepository(pool)
	rows := pgxmock.NewRows([]string{"period", "avg_price", "median_price", "listing_count"}).
		AddRow(month(2024, 4), 18000.0, 17500.0, 900).
		AddRow(month(2024, 5), 18100.0, 17600.0, 870).
		AddRow(month(2024, 6), 18200.0, 17700.0, 880)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY period")).
		WithArgs(MarketWideMonths).
		WillReturnRows(rows)

	points, err := repo.GetMarketWideHistory(context.Background())

	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, month(2024, 6), points[2].Period)
	require.NoError(t, mock.ExpectationsWereMet())
}

func expectCount(mock pgxmock.PgxPoolIface, n int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM listings")).
		WithArgs("honda", "civic", 2018).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(n))
}

func expectRecent(mock pgxmock.PgxPoolIface, rows ...[2]float64) {
	r := pgxmock.NewRows([]string{"listing_count", "avg_price"})
	for _, row := range rows {
		r.AddRow(int(row[0]), row[1])
	}
	mock.ExpectQuery("LIMIT 2").
		WithArgs("honda", "civic", 2018).
		WillReturnRows(r)
}

func expectItemAggregate(mock pgxmock.PgxPoolIface, avg, mn, mx *float64) {
	mock.ExpectQuery(regexp.QuoteMeta("WHERE make = $1 AND model = $2 AND year = $3")).
		WithArgs("honda", "civic", 2018).
		WillReturnRows(pgxmock.NewRows([]string{"avg", "min", "max"}).AddRow(avg, mn, mx))
}

func expectGlobalAggregate(mock pgxmock.PgxPoolIface, avg, mn, mx *float64) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT AVG(avg_price), MIN(avg_price), MAX(avg_price)")).
		WillReturnRows(pgxmock.NewRows([]string{"avg", "min", "max"}).AddRow(avg, mn, mx))
}

func TestMarketRepository_ItemData(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewMarketRepository(pool, MarketConfig{})

	expectCount(mock, 42)
	expectRecent(mock, [2]float64{30, 16000}, [2]float64{25, 17000})
	expectItemAggregate(mock, fptr(16500), fptr(15000.456), fptr(18000))

	mc, err := repo.GetMarketContext(context.Background(), civic)

	require.NoError(t, err)
	assert.Equal(t, 42, mc.InventoryCount)
	assert.Equal(t, models.TrendRising, mc.InventoryTrend)
	assert.Equal(t, -3.03, mc.PriceVsMedianPct)
	assert.Equal(t, models.PriceRange{Min: 15000.46, Max: 18000}, mc.RegionalRange)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarketRepository_FallingInventory(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewMarketRepository(pool, MarketConfig{})

	expectCount(mock, 5)
	expectRecent(mock, [2]float64{10, 17000}, [2]float64{12, 17000})
	expectItemAggregate(mock, fptr(17000), fptr(17000), fptr(17000))

	mc, err := repo.GetMarketContext(context.Background(), civic)

	require.NoError(t, err)
	assert.Equal(t, models.TrendFalling, mc.InventoryTrend)
	assert.Zero(t, mc.PriceVsMedianPct)
}

func TestMarketRepository_SingleSnapshotIsUnknownTrend(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewMarketRepository(pool, MarketConfig{})

	expectCount(mock, 3)
	expectRecent(mock, [2]float64{3, 17000})
	expectItemAggregate(mock, fptr(17000), fptr(17000), fptr(17000))

	mc, err := repo.GetMarketContext(context.Background(), civic)

	require.NoError(t, err)
	assert.Equal(t, models.TrendUnknown, mc.InventoryTrend)
}

func TestMarketRepository_GlobalFallback(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewMarketRepository(pool, MarketConfig{})

	expectCount(mock, 0)
	expectRecent(mock)
	expectItemAggregate(mock, nil, nil, nil)
	expectGlobalAggregate(mock, fptr(18000), fptr(9000), fptr(32000))

	mc, err := repo.GetMarketContext(context.Background(), civic)

	require.NoError(t, err)
	assert.Equal(t, models.TrendUnknown, mc.InventoryTrend)
	assert.Zero(t, mc.PriceVsMedianPct)
	assert.Equal(t, models.PriceRange{Min: 9000, Max: 32000}, mc.RegionalRange)
}

func TestMarketRepository_IndustryFallback(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewMarketRepository(pool, MarketConfig{})

	expectCount(mock, 0)
	expectRecent(mock)
	expectItemAggregate(mock, nil, nil, nil)
	expectGlobalAggregate(mock, nil, nil, nil)

	mc, err := repo.GetMarketContext(context.Background(), civic)

	require.NoError(t, err)
	assert.Equal(t, models.PriceRange{Min: 7995, Max: 45000}, mc.RegionalRange)
	assert.Zero(t, mc.InventoryCount)
}

func TestMarketRepository_CountError(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewMarketRepository(pool, MarketConfig{})
	mock.ExpectQuery("FROM listings").WillReturnError(errors.New("timeout"))

	_, err := repo.GetMarketContext(context.Background(), civic)

	assert.ErrorContains(t, err, "failed to count listings")
}

func TestMarketRepository_ListCars(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewMarketRepository(pool, MarketConfig{})
	mock.ExpectQuery("SELECT DISTINCT make, model, year").
		WillReturnRows(pgxmock.NewRows([]string{"make", "model", "year"}).
			AddRow("honda", "civic", 2019).
			AddRow("honda", "civic", 2018).
			AddRow("toyota", "camry", 2019))

	cars, err := repo.ListCars(context.Background())

	require.NoError(t, err)
	require.Len(t, cars, 3)
	assert.Equal(t, models.CarListing{Make: "honda", Model: "civic", Year: 2019}, cars[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func cacheRow(t *testing.T, e models.CacheEntry) []interface{} {
	t.Helper()
	q, err := json.Marshal(e.Query)
	require.NoError(t, err)
	r, err := json.Marshal(e.Result)
	require.NoError(t, err)
	exp := e.ExpiresAt
	return []interface{}{e.Key, q, r, e.IsSeed, e.CreatedAt, &exp}
}

var cacheColumns = []string{"cache_key", "query", "result", "is_seed", "created_at", "expires_at"}

func sampleEntry(key string, signal models.Signal, seed bool) models.CacheEntry {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return models.CacheEntry{
		Key:   key,
		Query: models.VehicleQuery{ItemKey: models.ItemKey{Make: "honda", Model: "civic", Year: 2018}, Mileage: 52000, Condition: "good", Region: "texas"},
		Result: models.AnalysisResult{
			Recommendation: models.Recommendation{Signal: signal, PredictedPrice: 15200},
			ActionOutputs:  map[string]json.RawMessage{"run_forecast": json.RawMessage(`{"method":"linear"}`)},
		},
		IsSeed:    seed,
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
	}
}

func TestRecommendationRepository_Get(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewRecommendationRepository(pool)
	want := sampleEntry("abc", models.SignalBuy, false)
	mock.ExpectQuery("FROM predictions_cache WHERE cache_key").
		WithArgs("abc").
		WillReturnRows(pgxmock.NewRows(cacheColumns).AddRow(cacheRow(t, want)...))

	got, err := repo.Get(context.Background(), "abc")

	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, got.Result.Recommendation.Signal)
	assert.Equal(t, "civic", got.Query.Model)
	assert.True(t, got.ExpiresAt.Equal(want.ExpiresAt))
	assert.JSONEq(t, `{"method":"linear"}`, string(got.Result.ActionOutputs["run_forecast"]))
}

func TestRecommendationRepository_GetMissing(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewRecommendationRepository(pool)
	mock.ExpectQuery("FROM predictions_cache WHERE cache_key").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "nope")

	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestRecommendationRepository_Put(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewRecommendationRepository(pool)
	e := sampleEntry("abc", models.SignalWait, false)
	mock.ExpectExec("ON CONFLICT \\(cache_key\\) DO UPDATE").
		WithArgs("abc", pgxmock.AnyArg(), pgxmock.AnyArg(), "WAIT", 15200.0, false, e.CreatedAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Put(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendationRepository_Delete(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewRecommendationRepository(pool)
	mock.ExpectExec("DELETE FROM predictions_cache WHERE cache_key = \\$1").
		WithArgs("abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM predictions_cache WHERE cache_key = \\$1").
		WithArgs("abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	existed, err := repo.Delete(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = repo.Delete(context.Background(), "abc")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestRecommendationRepository_DeleteWhereAndCount(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewRecommendationRepository(pool)
	seed := sampleEntry("seed_honda_civic_2018", models.SignalBuy, true)
	live := sampleEntry("abc", models.SignalBuy, false)
	wait := sampleEntry("def", models.SignalWait, false)

	listRows := func() *pgxmock.Rows {
		return pgxmock.NewRows(cacheColumns).
			AddRow(cacheRow(t, seed)...).
			AddRow(cacheRow(t, live)...).
			AddRow(cacheRow(t, wait)...)
	}

	mock.ExpectQuery("FROM predictions_cache ORDER BY created_at").WillReturnRows(listRows())
	mock.ExpectQuery("FROM predictions_cache ORDER BY created_at").WillReturnRows(listRows())
	mock.ExpectExec(regexp.QuoteMeta("WHERE cache_key = ANY($1)")).
		WithArgs([]string{"abc", "def"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	buys, err := repo.Count(context.Background(), func(e models.CacheEntry) bool {
		return e.Result.Recommendation.Signal == models.SignalBuy
	})
	require.NoError(t, err)
	assert.Equal(t, 2, buys)

	deleted, err := repo.DeleteWhere(context.Background(), func(e models.CacheEntry) bool { return !e.IsSeed })
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendationRepository_DeleteWhereNoMatch(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewRecommendationRepository(pool)
	mock.ExpectQuery("FROM predictions_cache ORDER BY created_at").
		WillReturnRows(pgxmock.NewRows(cacheColumns))

	deleted, err := repo.DeleteWhere(context.Background(), cache.All)

	require.NoError(t, err)
	assert.Zero(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecommendationRepository_BacksResultCache(t *testing.T) {
	mock, pool := newMock(t)
	repo := NewRecommendationRepository(pool)
	rc := cache.NewResultCache(repo, cache.Config{}, nil)
	q := models.VehicleQuery{ItemKey: civic, Mileage: 52000, Condition: "good", Region: "texas"}
	stored := sampleEntry(cache.Key(q), models.SignalBuy, false)
	stored.ExpiresAt = time.Now().Add(time.Hour)

	mock.ExpectQuery("FROM predictions_cache WHERE cache_key").
		WithArgs(cache.Key(q)).
		WillReturnRows(pgxmock.NewRows(cacheColumns).AddRow(cacheRow(t, stored)...))

	got, ok := rc.Lookup(context.Background(), q)

	require.True(t, ok)
	assert.Equal(t, models.SignalBuy, got.Recommendation.Signal)
}

func TestRepositories_WithoutPool(t *testing.T) {
	ctx := context.Background()
	item := models.ItemKey{Make: "toyota", Model: "camry", Year: 2019}

	_, err := NewHistoryRepository(nil).GetHistory(ctx, item)
	assert.ErrorIs(t, err, ErrNoPool)
	_, err = NewHistoryRepository(nil).GetMarketWideHistory(ctx)
	assert.ErrorIs(t, err, ErrNoPool)

	market := NewMarketRepository(nil, MarketConfig{})
	_, err = market.GetMarketContext(ctx, item)
	assert.ErrorIs(t, err, ErrNoPool)

	cars, err := market.ListCars(ctx)
	require.NoError(t, err)
	assert.Empty(t, cars)
}
