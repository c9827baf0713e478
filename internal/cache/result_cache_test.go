package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// MockStore is a mock implementation of Store for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CacheEntry), args.Error(1)
}

func (m *MockStore) Put(ctx context.Context, entry models.CacheEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) List(ctx context.Context) ([]models.CacheEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CacheEntry), args.Error(1)
}

func (m *MockStore) DeleteWhere(ctx context.Context, pred Predicate) (int, error) {
	args := m.Called(ctx, pred)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Count(ctx context.Context, pred Predicate) (int, error) {
	args := m.Called(ctx, pred)
	return args.Int(0), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestCache(t *testing.T) (*ResultCache, *MemoryStore, *time.Time) {
	t.Helper()
	store, err := NewMemoryStore(64)
	require.NoError(t, err)

	now := testNow
	store.now = func() time.Time { return now }
	c := NewResultCache(store, Config{}, quietLogger())
	c.now = func() time.Time { return now }
	return c, store, &now
}

func analysis(signal models.Signal) models.AnalysisResult {
	return models.AnalysisResult{
		Recommendation: models.Recommendation{Signal: signal, Confidence: models.ConfidenceModerate, PredictedPrice: 15200},
		Explanation:    "Prices are rising.",
		ActionOutputs:  map[string]json.RawMessage{"run_forecast": json.RawMessage(`{"method":"linear"}`)},
		Rounds:         7,
		Terminated:     models.TerminatedFinal,
	}
}

func TestResultCache_SaveThenLookup(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	entry, err := c.Save(ctx, civicQuery(), analysis(models.SignalBuy))
	require.NoError(t, err)
	assert.Equal(t, Key(civicQuery()), entry.Key)
	assert.Equal(t, testNow.Add(time.Hour), entry.ExpiresAt)
	assert.Equal(t, "honda", entry.Query.Make)

	got, ok := c.Lookup(ctx, civicQuery())
	require.True(t, ok)
	assert.Equal(t, models.SignalBuy, got.Recommendation.Signal)
	assert.Equal(t, 7, got.Rounds)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestResultCache_LookupReturnsCopies(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	_, err := c.Save(ctx, civicQuery(), analysis(models.SignalBuy))
	require.NoError(t, err)

	first, ok := c.Lookup(ctx, civicQuery())
	require.True(t, ok)
	first.Recommendation.Signal = models.SignalWait
	first.ActionOutputs["run_forecast"] = json.RawMessage(`{"error":"tampered"}`)

	second, ok := c.Lookup(ctx, civicQuery())
	require.True(t, ok)
	assert.Equal(t, models.SignalBuy, second.Recommendation.Signal)
	assert.JSONEq(t, `{"method":"linear"}`, string(second.ActionOutputs["run_forecast"]))
}

func TestResultCache_ExpiredEntryIsMiss(t *testing.T) {
	c, _, now := newTestCache(t)
	ctx := context.Background()
	_, err := c.Save(ctx, civicQuery(), analysis(models.SignalBuy))
	require.NoError(t, err)

	*now = testNow.Add(time.Hour)

	_, ok := c.Lookup(ctx, civicQuery())
	assert.False(t, ok)
}

func TestResultCache_StaleEntryRejected(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	result := analysis(models.SignalNeutral)
	result.Recommendation.PriceVsMedianPct = -11
	_, err := c.Save(ctx, civicQuery(), result)
	require.NoError(t, err)

	_, ok := c.Lookup(ctx, civicQuery())

	assert.False(t, ok)
	assert.Equal(t, int64(1), c.GetStats().Rejected)
}

func TestResultCache_LastWriteWins(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	_, err := c.Save(ctx, civicQuery(), analysis(models.SignalBuy))
	require.NoError(t, err)
	_, err = c.Save(ctx, civicQuery(), analysis(models.SignalWait))
	require.NoError(t, err)

	got, ok := c.Lookup(ctx, civicQuery())
	require.True(t, ok)
	assert.Equal(t, models.SignalWait, got.Recommendation.Signal)
}

func TestResultCache_StoreErrorIsMiss(t *testing.T) {
	store := &MockStore{}
	store.On("Get", mock.Anything, Key(civicQuery())).Return(nil, errors.New("connection refused"))
	c := NewResultCache(store, Config{}, quietLogger())

	_, ok := c.Lookup(context.Background(), civicQuery())

	assert.False(t, ok)
	assert.Equal(t, int64(1), c.GetStats().Misses)
	store.AssertExpectations(t)
}

func TestResultCache_SeedMarket(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	seeded, err := c.SeedMarket(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 8, seeded)

	seeded, err = c.SeedMarket(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, seeded)

	_, err = store.Delete(ctx, "seed_toyota_camry_2019")
	require.NoError(t, err)
	seeded, err = c.SeedMarket(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, seeded)

	seeded, err = c.SeedMarket(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 8, seeded)

	count, err := c.CountSeeds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestResultCache_ResetFull(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	_, err := c.SeedMarket(ctx, false)
	require.NoError(t, err)
	_, err = c.Save(ctx, civicQuery(), analysis(models.SignalBuy))
	require.NoError(t, err)
	other := civicQuery()
	other.Mileage = 10000
	_, err = c.Save(ctx, other, analysis(models.SignalWait))
	require.NoError(t, err)

	report, err := c.Reset(ctx, ResetFull)

	require.NoError(t, err)
	assert.Equal(t, ResetReport{Mode: ResetFull, Deleted: 2, Seeded: 8}, report)
	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
	for _, e := range entries {
		assert.True(t, e.IsSeed)
	}
}

func TestResultCache_ResetForecastErrors(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	_, err := c.SeedMarket(ctx, false)
	require.NoError(t, err)
	_, err = c.Save(ctx, civicQuery(), analysis(models.SignalBuy))
	require.NoError(t, err)
	broken := analysis(models.SignalNeutral)
	broken.ActionOutputs["run_forecast"] = json.RawMessage(`{"error":"no history"}`)
	other := civicQuery()
	other.Region = "ohio"
	_, err = c.Save(ctx, other, broken)
	require.NoError(t, err)

	report, err := c.Reset(ctx, ResetForecastErrors)

	require.NoError(t, err)
	assert.Equal(t, ResetReport{Mode: ResetForecastErrors, Deleted: 1, Seeded: 0}, report)
	_, ok := c.Lookup(ctx, civicQuery())
	assert.True(t, ok)
}

func TestResultCache_ResetUnknownMode(t *testing.T) {
	c, _, _ := newTestCache(t)

	_, err := c.Reset(context.Background(), "nuke")

	assert.Error(t, err)
}

func TestResultCache_ClearAndCounts(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	_, err := c.SeedMarket(ctx, false)
	require.NoError(t, err)
	_, err = c.Save(ctx, civicQuery(), analysis(models.SignalBuy))
	require.NoError(t, err)

	buys, err := c.CountBuySignals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, buys)

	deleted, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, deleted)

	buys, err = c.CountBuySignals(ctx)
	require.NoError(t, err)
	assert.Zero(t, buys)
}
