package telemetry

import (
	"context"

	"github.com/getsentry/sentry-go"

	"github.com/irfndi/carprice-ai-go/internal/models"
)

// BusinessTracer records domain operations as Sentry spans.
type BusinessTracer struct{}

// NewBusinessTracer creates a new instance of BusinessTracer.
func NewBusinessTracer() *BusinessTracer {
	return &BusinessTracer{}
}

// TraceAnalysis starts a span covering one buy-signal analysis.
func (bt *BusinessTracer) TraceAnalysis(ctx context.Context, q models.VehicleQuery) (context.Context, *sentry.Span) {
	span := sentry.StartSpan(ctx, "recommendation.analyze")
	span.SetTag("make", q.Make)
	span.SetTag("model", q.Model)
	span.SetTag("region", q.Region)
	span.SetData("year", q.Year)
	span.SetData("mileage", q.Mileage)
	return span.Context(), span
}

// RecordAnalysis adds the outcome of an analysis to its span.
func (bt *BusinessTracer) RecordAnalysis(span *sentry.Span, result *models.AnalysisResult, cached bool) {
	span.SetTag("cache_hit", boolTag(cached))
	if result == nil {
		span.Status = sentry.SpanStatusInternalError
		return
	}
	span.SetTag("signal", string(result.Recommendation.Signal))
	span.SetTag("confidence", string(result.Recommendation.Confidence))
	span.SetTag("forecast_method", string(result.Recommendation.ForecastMethod))
	span.SetTag("terminated", string(result.Terminated))
	span.SetData("rounds", result.Rounds)
	span.SetData("predicted_price", result.Recommendation.PredictedPrice)
	span.Status = sentry.SpanStatusOK
}

// TraceCacheMaintenance starts a span for a cache reset, clear or seeding run.
func (bt *BusinessTracer) TraceCacheMaintenance(ctx context.Context, operation string) (context.Context, *sentry.Span) {
	span := sentry.StartSpan(ctx, "cache.maintenance")
	span.SetTag("operation", operation)
	return span.Context(), span
}

// RecordCacheMaintenance records how many entries an operation touched.
func (bt *BusinessTracer) RecordCacheMaintenance(span *sentry.Span, deleted, seeded int, err error) {
	span.SetData("deleted", deleted)
	span.SetData("seeded", seeded)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("error", err.Error())
		return
	}
	span.Status = sentry.SpanStatusOK
}

func boolTag(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
