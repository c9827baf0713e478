package forecast

import (
	"errors"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// ErrInsufficientHistory is returned by a SeasonalModel given fewer points than it can fit.
var ErrInsufficientHistory = errors.New("insufficient history for seasonal model")

const (
	smoothingPeriod = 3
	// seasonalPrior is the pseudo-count that shrinks monthly offsets toward
	// zero while only a few months of history exist.
	seasonalPrior = 12.0
	hoursPerDay   = 24
)

// Prediction is one daily point produced by a SeasonalModel
type Prediction struct {
	Date  time.Time
	Price float64
}

// SeasonalModel fits a monthly series and predicts daily prices after its last period.
type SeasonalModel interface {
	Predict(points []models.HistoryPoint, horizonDays int) ([]Prediction, error)
}

// TrendSeasonalModel is a linear trend plus additive calendar-month offsets.
type TrendSeasonalModel struct {
	// SmoothingMinPoints enables SMA(3) smoothing of the trend fit when the
	// series has at least this many points. Zero disables smoothing.
	SmoothingMinPoints int
}

// NewTrendSeasonalModel creates a TrendSeasonalModel.
func NewTrendSeasonalModel(smoothingMinPoints int) *TrendSeasonalModel {
	return &TrendSeasonalModel{SmoothingMinPoints: smoothingMinPoints}
}

// Predict fits the series and returns one prediction per day for horizonDays
// days after the last period. Points must be ordered by period.
func (m *TrendSeasonalModel) Predict(points []models.HistoryPoint, horizonDays int) ([]Prediction, error) {
	n := len(points)
	if n < 3 {
		return nil, ErrInsufficientHistory
	}

	origin := points[0].Period
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range points {
		xs[i] = daysBetween(origin, p.Period)
		ys[i] = p.AveragePrice
	}

	fitX, fitY := xs, ys
	if m.SmoothingMinPoints > 0 && n >= m.SmoothingMinPoints {
		fitX, fitY = smooth(xs, ys)
	}
	intercept, slope := ols(fitX, fitY)

	// Residuals against the trend, averaged per calendar month.
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for i, p := range points {
		month := p.Period.Month()
		sums[month] += ys[i] - (intercept + slope*xs[i])
		counts[month]++
	}
	shrink := float64(n) / (float64(n) + seasonalPrior)
	offsets := make(map[time.Month]float64, len(sums))
	for month, sum := range sums {
		offsets[month] = shrink * sum / float64(counts[month])
	}

	last := points[n-1].Period
	out := make([]Prediction, 0, horizonDays)
	for d := 1; d <= horizonDays; d++ {
		date := last.AddDate(0, 0, d)
		x := daysBetween(origin, date)
		out = append(out, Prediction{
			Date:  date,
			Price: intercept + slope*x + offsets[date.Month()],
		})
	}
	return out, nil
}

// smooth applies SMA(3) to ys and aligns each average with the middle day of its window.
func smooth(xs, ys []float64) ([]float64, []float64) {
	sma := trend.NewSmaWithPeriod[float64](smoothingPeriod)
	avg := helper.ChanToSlice(sma.Compute(helper.SliceToChan(ys)))
	if len(avg) == 0 {
		return xs, ys
	}
	// The indicator drops its idle period; centre each average on its window.
	shift := len(ys) - len(avg) - smoothingPeriod/2
	if shift < 0 {
		shift = 0
	}
	sx := make([]float64, len(avg))
	for i := range avg {
		sx[i] = xs[i+shift]
	}
	return sx, avg
}

// ols returns the least-squares intercept and slope of y over x.
func ols(xs, ys []float64) (float64, float64) {
	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n

	var sxy, sxx float64
	for i := range xs {
		dx := xs[i] - mx
		sxy += dx * (ys[i] - my)
		sxx += dx * dx
	}
	if sxx == 0 {
		return my, 0
	}
	slope := sxy / sxx
	return my - slope*mx, slope
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / hoursPerDay
}
