package cache

import (
	"encoding/json"
	"time"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// Seed is a pre-computed BUY recommendation for a popular vehicle, kept in
// the cache so the market overview always has opportunities to show.
type Seed struct {
	Query          models.VehicleQuery
	PredictedPrice float64
	Forecast30d    float64
	Forecast90d    float64
	Confidence     models.Confidence
	Explanation    string
	KeyInsight     string
}

// Entry builds the cache entry for s, created at now and expiring after ttl.
func (s Seed) Entry(now time.Time, ttl time.Duration) models.CacheEntry {
	q := s.Query.Normalize()
	return models.CacheEntry{
		Key:   SeedKey(q.ItemKey),
		Query: q,
		Result: models.AnalysisResult{
			Recommendation: models.Recommendation{
				Signal:         models.SignalBuy,
				Confidence:     s.Confidence,
				PredictedPrice: s.PredictedPrice,
				Forecast30d:    s.Forecast30d,
				Forecast90d:    s.Forecast90d,
				ForecastMethod: models.BlendStatistical,
				KeyInsight:     s.KeyInsight,
			},
			Explanation:   s.Explanation,
			ActionOutputs: map[string]json.RawMessage{},
			Terminated:    models.TerminatedFinal,
		},
		IsSeed:    true,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func seedQuery(mk, model string, year, mileage int, condition, region string) models.VehicleQuery {
	return models.VehicleQuery{
		ItemKey:   models.ItemKey{Make: mk, Model: model, Year: year},
		Mileage:   mileage,
		Condition: condition,
		Region:    region,
	}
}

// DefaultSeeds returns the built-in seed recommendations.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			Query:          seedQuery("toyota", "camry", 2019, 48000, "good", "california"),
			PredictedPrice: 18750, Forecast30d: 19200, Forecast90d: 19900,
			Confidence: models.ConfidenceModerate,
			Explanation: "The 2019 Toyota Camry is priced below market median with rising demand in California. " +
				"Prices are expected to climb ~2.4% over the next 30 days due to low inventory and strong resale value. " +
				"Consider buying now before prices increase further.",
			KeyInsight: "Toyota Camry holds value exceptionally well with steady appreciation in West Coast markets.",
		},
		{
			Query:          seedQuery("honda", "civic", 2018, 52000, "good", "texas"),
			PredictedPrice: 15200, Forecast30d: 15550, Forecast90d: 16100,
			Confidence: models.ConfidenceModerate,
			Explanation: "The 2018 Honda Civic offers strong reliability with pricing 4.2% below market median in Texas. " +
				"Fuel efficiency demand keeps Civic prices resilient with a projected 2.3% rise over 30 days. " +
				"This represents good value at the current ask.",
			KeyInsight: "Compact sedans see consistent demand from first-time buyers, supporting price floor.",
		},
		{
			Query:          seedQuery("ford", "f-150", 2018, 65000, "good", "texas"),
			PredictedPrice: 27800, Forecast30d: 28400, Forecast90d: 29200,
			Confidence: models.ConfidenceHigh,
			Explanation: "The 2018 Ford F-150 is America's best-selling truck with strong demand especially in Texas. " +
				"Truck inventory is tightening, so prices are rising 2.2% over the next 30 days. " +
				"At $27,800, this listing sits 6% below market median, making it a high-confidence buy.",
			KeyInsight: "F-150 truck demand is accelerating due to construction sector growth and low dealer stock.",
		},
		{
			Query:          seedQuery("honda", "cr-v", 2019, 41000, "excellent", "florida"),
			PredictedPrice: 22100, Forecast30d: 22600, Forecast90d: 23300,
			Confidence: models.ConfidenceModerate,
			Explanation: "The 2019 Honda CR-V is the top-selling SUV with excellent reliability ratings and rising resale values. " +
				"Florida listings show prices rising 2.3% over 30 days due to snowbird seasonal demand. " +
				"With only 41k miles in excellent condition, this is priced attractively.",
			KeyInsight: "CR-V benefits from the hybrid crossover wave as buyers prioritize fuel economy in SUV alternatives.",
		},
		{
			Query:          seedQuery("toyota", "corolla", 2018, 58000, "good", "california"),
			PredictedPrice: 14900, Forecast30d: 15200, Forecast90d: 15700,
			Confidence: models.ConfidenceModerate,
			Explanation: "The 2018 Toyota Corolla is priced 5.1% below the California market median for this trim year. " +
				"Low fuel costs and high reliability ratings sustain demand, and a 2% price increase is expected in 30 days. " +
				"This is an ideal entry-level buy before spring pricing kicks in.",
			KeyInsight: "Corolla remains top choice for budget-conscious buyers, sustaining stable appreciation.",
		},
		{
			Query:          seedQuery("chevrolet", "silverado 1500", 2018, 72000, "good", "ohio"),
			PredictedPrice: 24600, Forecast30d: 25100, Forecast90d: 25800,
			Confidence: models.ConfidenceModerate,
			Explanation: "The 2018 Chevrolet Silverado 1500 is trading below typical Midwest market levels for this age and mileage. " +
				"Truck demand in Ohio is rising on the back of construction and farming, with a 2% rise expected in 30 days. " +
				"Fair value at $24,600 with solid upside potential.",
			KeyInsight: "Silverado inventory tightening post-chip shortage recovery, pushing older models up in value.",
		},
		{
			Query:          seedQuery("nissan", "altima", 2019, 45000, "good", "georgia"),
			PredictedPrice: 16500, Forecast30d: 16850, Forecast90d: 17400,
			Confidence: models.ConfidenceModerate,
			Explanation: "The 2019 Nissan Altima is 3.8% below the Georgia market median with a rising trend forecast. " +
				"With the refreshed 2019 model year showing strong reliability scores, demand is steady. " +
				"Projected 2.1% price increase in 30 days makes this a timely purchase.",
			KeyInsight: "Altima's AWD option in 2019 refresh boosted residual values compared to prior generation.",
		},
		{
			Query:          seedQuery("hyundai", "elantra", 2020, 32000, "excellent", "illinois"),
			PredictedPrice: 17300, Forecast30d: 17650, Forecast90d: 18100,
			Confidence: models.ConfidenceHigh,
			Explanation: "The 2020 Hyundai Elantra with just 32k miles is priced 7.2% below Illinois market median. " +
				"Low mileage and near-new condition combined with rising compact sedan demand drives a HIGH confidence BUY. " +
				"Prices are expected to rise 2% in 30 days and 4.6% in 90 days.",
			KeyInsight: "2020 Elantra benefits from extended warranty coverage still active, boosting buyer confidence.",
		},
	}
}
