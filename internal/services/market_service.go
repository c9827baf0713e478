package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/carprice-ai-go/internal/cache"
	"github.com/irfndi/carprice-ai-go/internal/models"
)

// Market overview tuning.
const (
	TopBuysLimit         = 10
	seedBaselineWeight   = 0.7
	livePredictionWeight = 0.3
	maxMoMChangePct      = 10.0

	PriceSourcePredictions = "predictions"
	PriceSourceIndustry    = "industry"
)

// CarLister lists the vehicles present in the listings table.
type CarLister interface {
	ListCars(ctx context.Context) ([]models.CarListing, error)
}

// MarketService builds the catalogue and the market overview from the
// result cache.
type MarketService struct {
	cache  *cache.ResultCache
	cars   CarLister
	logger *logrus.Logger
	now    func() time.Time
}

// NewMarketService creates a market service.
func NewMarketService(resultCache *cache.ResultCache, cars CarLister, logger *logrus.Logger) *MarketService {
	if logger == nil {
		logger = logrus.New()
	}
	return &MarketService{
		cache:  resultCache,
		cars:   cars,
		logger: logger,
		now:    time.Now,
	}
}

// ListCars returns the vehicles in the listings table merged with the seed
// catalogue, ordered by make and model ascending and year descending.
func (s *MarketService) ListCars(ctx context.Context) ([]models.CarListing, error) {
	var listed []models.CarListing
	if s.cars != nil {
		var err error
		listed, err = s.cars.ListCars(ctx)
		if err != nil {
			return nil, fmt.Errorf("list cars: %w", err)
		}
	}

	seen := make(map[models.ItemKey]bool, len(listed))
	out := make([]models.CarListing, 0, len(listed)+len(s.cache.Seeds()))
	for _, c := range listed {
		key := models.ItemKey{Make: c.Make, Model: c.Model, Year: c.Year}.Normalize()
		seen[key] = true
		out = append(out, c)
	}
	for _, seed := range s.cache.Seeds() {
		key := seed.Query.ItemKey.Normalize()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.CarListing{Make: key.Make, Model: key.Model, Year: key.Year})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Make != out[j].Make {
			return out[i].Make < out[j].Make
		}
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].Year > out[j].Year
	})
	return out, nil
}

// Overview summarizes cached predictions. Seeds give the price baseline;
// live predictions move it by a 30% blend.
func (s *MarketService) Overview(ctx context.Context) (*models.MarketOverview, error) {
	seeds, err := s.cache.CountSeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("count seeds: %w", err)
	}
	if seeds < len(s.cache.Seeds()) {
		filled, err := s.cache.SeedMarket(ctx, false)
		if err != nil {
			return nil, err
		}
		s.logger.WithField("seeded", filled).Info("Filled missing market seeds")
	}

	entries, err := s.cache.Entries(ctx)
	if err != nil {
		return nil, err
	}

	var seedSum, liveSum float64
	var seedCount, liveCount int
	for _, e := range entries {
		price := e.Result.Recommendation.PredictedPrice
		if price <= 0 {
			continue
		}
		if e.IsSeed {
			seedSum += price
			seedCount++
		} else {
			liveSum += price
			liveCount++
		}
	}

	seedAvg := models.DefaultLastPrice
	if seedCount > 0 {
		seedAvg = models.Round2(seedSum / float64(seedCount))
	}

	overview := &models.MarketOverview{
		AveragePriceThisMonth: seedAvg,
		MoMChangePct:          models.IndustryMoMPct,
		PriceSource:           PriceSourceIndustry,
		TopBuys:               topBuys(entries, TopBuysLimit),
		SeasonalityData:       append([]models.SeasonalityPoint(nil), models.MonthlySeasonality...),
		SeasonalitySource:     PriceSourceIndustry,
		UpdatedAt:             s.now().UTC().Format("2006-01"),
	}
	if liveCount > 0 {
		liveAvg := models.Round2(liveSum / float64(liveCount))
		overview.AveragePriceThisMonth = models.Round2(seedBaselineWeight*seedAvg + livePredictionWeight*liveAvg)
		change := (liveAvg - seedAvg) / seedAvg * 100
		overview.MoMChangePct = models.Round2(math.Max(-maxMoMChangePct, math.Min(maxMoMChangePct, change)))
		overview.PriceSource = PriceSourcePredictions
	}
	return overview, nil
}

// topBuys returns up to limit BUY entries, cheapest first.
func topBuys(entries []models.CacheEntry, limit int) []models.Prediction {
	buys := make([]models.CacheEntry, 0, len(entries))
	for _, e := range entries {
		if e.Result.Recommendation.Signal == models.SignalBuy {
			buys = append(buys, e)
		}
	}
	sort.SliceStable(buys, func(i, j int) bool {
		return buys[i].Result.Recommendation.PredictedPrice < buys[j].Result.Recommendation.PredictedPrice
	})
	if len(buys) > limit {
		buys = buys[:limit]
	}

	out := make([]models.Prediction, 0, len(buys))
	for _, e := range buys {
		out = append(out, e.View())
	}
	return out
}
