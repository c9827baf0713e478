package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/irfndi/carprice-ai-go/internal/llm"
	"github.com/irfndi/carprice-ai-go/internal/models"
	"github.com/irfndi/carprice-ai-go/internal/resilience"
)

// ErrNotJSONObject is the fallback reason when the reply is valid JSON but not an object.
var ErrNotJSONObject = errors.New("advisory reply is not a JSON object")

const systemPrompt = "You are an expert automotive market analyst. Always respond with valid JSON only."

// Request carries the numeric context the advisory forecast is based on
type Request struct {
	Query            models.VehicleQuery
	CurrentPrice     float64
	StatForecast30d  float64
	StatForecast90d  float64
	TrendDirection   models.TrendDirection
	TrendPct30d      float64
	InventoryTrend   models.TrendDirection
	PriceVsMedianPct float64
}

// Outcome is either a parsed advisory forecast or a fallback built from the
// statistical values. It never carries an error; Reason explains a fallback.
type Outcome struct {
	Forecast models.AdvisoryForecast
	Fallback bool
	Reason   string
}

// Provider asks the reasoning service for a constrained JSON forecast
type Provider struct {
	completer llm.Completer
	breaker   *resilience.CircuitBreaker
	timeout   time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

// NewProvider creates an advisory provider. breaker may be nil.
func NewProvider(completer llm.Completer, breaker *resilience.CircuitBreaker, timeout time.Duration, logger *logrus.Logger) *Provider {
	if logger == nil {
		logger = logrus.New()
	}
	return &Provider{
		completer: completer,
		breaker:   breaker,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Request returns the advisory outcome for req. Transport, timeout, breaker
// and parse failures all produce the fallback outcome.
func (p *Provider) Request(ctx context.Context, req Request) Outcome {
	raw, err := p.complete(ctx, req)
	if err == nil {
		var forecast models.AdvisoryForecast
		forecast, err = Parse(raw, req)
		if err == nil {
			return Outcome{Forecast: forecast}
		}
	}

	p.logger.WithFields(logrus.Fields{
		"item":  req.Query.ItemKey.String(),
		"error": err.Error(),
	}).Warn("Advisory forecast unavailable, using statistical forecast")
	return Fallback(req, err.Error())
}

func (p *Provider) complete(ctx context.Context, req Request) (string, error) {
	if p.completer == nil {
		return "", errors.New("no reasoning service configured")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	prompt := BuildPrompt(req, p.now().Month())
	var raw string
	call := func(ctx context.Context) error {
		var err error
		raw, err = p.completer.Complete(ctx, systemPrompt, prompt)
		return err
	}

	if p.breaker == nil {
		return raw, call(ctx)
	}
	return raw, p.breaker.Execute(ctx, call)
}

// Fallback builds the outcome used when no advisory forecast is available.
func Fallback(req Request, reason string) Outcome {
	return Outcome{
		Forecast: models.AdvisoryForecast{
			Forecast30d:    req.StatForecast30d,
			Forecast90d:    req.StatForecast90d,
			TrendDirection: req.TrendDirection,
			Confidence:     models.ConfidenceLow,
			KeyInsight:     fmt.Sprintf("LLM analysis unavailable (%s); using statistical forecast.", reason),
			BestTimeToBuy:  models.BuyNoOpinion,
			Method:         models.AdvisoryFallback,
		},
		Fallback: true,
		Reason:   reason,
	}
}

type reply struct {
	Forecast30d    lenientNumber `json:"forecast_30d"`
	Forecast90d    lenientNumber `json:"forecast_90d"`
	TrendDirection lenientString `json:"trend_direction"`
	Confidence     lenientString `json:"confidence"`
	KeyInsight     lenientString `json:"key_insight"`
	BestTimeToBuy  lenientString `json:"best_time_to_buy"`
}

// lenientNumber accepts a JSON number or a numeric string such as "21000" or
// "$21,000". Any other value leaves it unset so only that field falls back.
type lenientNumber struct {
	value float64
	set   bool
}

func (n *lenientNumber) UnmarshalJSON(data []byte) error {
	*n = lenientNumber{}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		n.value, n.set = t, true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(t), "$"), ",", "")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			n.value, n.set = f, true
		}
	}
	return nil
}

// lenientString accepts a JSON string; any other value leaves it unset.
type lenientString struct {
	value string
	set   bool
}

func (s *lenientString) UnmarshalJSON(data []byte) error {
	*s = lenientString{}
	if err := json.Unmarshal(data, &s.value); err == nil {
		s.set = true
	}
	return nil
}

// Parse decodes the advisory JSON object. Missing, mistyped, non-positive or
// out-of-set fields take their statistical or neutral defaults one by one;
// malformed JSON or a non-object payload is an error.
func Parse(raw string, req Request) (models.AdvisoryForecast, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || data[0] != '{' {
		return models.AdvisoryForecast{}, ErrNotJSONObject
	}

	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return models.AdvisoryForecast{}, fmt.Errorf("invalid advisory JSON: %w", err)
	}

	out := models.AdvisoryForecast{
		Forecast30d:    req.StatForecast30d,
		Forecast90d:    req.StatForecast90d,
		TrendDirection: req.TrendDirection,
		Confidence:     models.ConfidenceModerate,
		BestTimeToBuy:  models.BuyNoOpinion,
		Method:         models.AdvisoryLLM,
	}
	if v, ok := positive(r.Forecast30d); ok {
		out.Forecast30d = models.Round2(v)
	}
	if v, ok := positive(r.Forecast90d); ok {
		out.Forecast90d = models.Round2(v)
	}
	if r.TrendDirection.set {
		switch d := models.TrendDirection(r.TrendDirection.value); d {
		case models.TrendRising, models.TrendFalling, models.TrendStable:
			out.TrendDirection = d
		}
	}
	if r.Confidence.set {
		switch c := models.Confidence(r.Confidence.value); c {
		case models.ConfidenceHigh, models.ConfidenceModerate, models.ConfidenceLow:
			out.Confidence = c
		}
	}
	if r.KeyInsight.set {
		out.KeyInsight = r.KeyInsight.value
	}
	if r.BestTimeToBuy.set {
		switch b := models.BestTimeToBuy(r.BestTimeToBuy.value); b {
		case models.BuyNow, models.Buy30Days, models.Buy90Days, models.BuyWait, models.BuyNoOpinion:
			out.BestTimeToBuy = b
		}
	}
	return out, nil
}

func positive(n lenientNumber) (float64, bool) {
	if !n.set || math.IsNaN(n.value) || math.IsInf(n.value, 0) || n.value <= 0 {
		return 0, false
	}
	return n.value, true
}

// BuildPrompt renders the advisory prompt for req.
func BuildPrompt(req Request, month time.Month) string {
	q := req.Query
	return fmt.Sprintf(`You are an expert automotive market analyst. Analyse this used car and forecast prices.

Vehicle: %d %s %s
Details: %s miles | %s condition | %s region
Current month: %s

Data inputs:
  Fair market value          : $%s
  Statistical 30-day forecast: $%s (%+.1f%%)
  Statistical 90-day forecast: $%s
  Market trend               : %s
  Inventory trend            : %s
  Price vs market median     : %+.1f%%

Consider: typical depreciation for this make/model age, seasonal demand patterns, regional supply, and whether the statistical forecast seems reasonable.

Respond with ONLY valid JSON:
{
  "forecast_30d": <number, your best predicted price in 30 days>,
  "forecast_90d": <number, your best predicted price in 90 days>,
  "trend_direction": "rising" | "falling" | "stable",
  "confidence": "HIGH" | "MODERATE" | "LOW",
  "key_insight": "<one concise sentence about the most important price driver>",
  "best_time_to_buy": "now" | "30_days" | "90_days" | "wait"
}`,
		q.Year, titleCase(q.Make), titleCase(q.Model),
		models.GroupThousands(q.Mileage), q.Condition, q.Region,
		month,
		dollars(req.CurrentPrice),
		dollars(req.StatForecast30d), req.TrendPct30d,
		dollars(req.StatForecast90d),
		req.TrendDirection,
		req.InventoryTrend,
		req.PriceVsMedianPct,
	)
}

// titleCase builds a Caser per call since Casers are stateful.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func dollars(v float64) string {
	return models.GroupThousands(int(math.Round(v)))
}
