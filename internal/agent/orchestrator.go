package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/carprice-ai-go/internal/llm"
	"github.com/irfndi/carprice-ai-go/internal/models"
	"github.com/irfndi/carprice-ai-go/internal/valuation"
)

// DefaultMaxRounds caps reasoner round-trips per run.
const DefaultMaxRounds = 12

// RoundLimitExplanation is returned when the ceiling is hit before a final reply.
const RoundLimitExplanation = "Max tool rounds reached without final LLM response."

// ErrReasoningFailed wraps a failed reasoner round-trip.
var ErrReasoningFailed = errors.New("reasoning service failed")

// SystemPrompt instructs the reasoner to call the actions in order and then explain.
const SystemPrompt = "You are a car market analyst. When given a car query, call these tools IN ORDER:\n" +
	"1. get_price_history  → fetch historical price data\n" +
	"2. run_forecast       → get statistical 30/90-day price forecast\n" +
	"3. run_price_prediction → get fair market value and top price factors\n" +
	"4. get_market_context → get inventory count and market position\n" +
	"5. run_llm_price_analysis → pass current_price from step 3, " +
	"stat_forecast_30d/90d from step 2, trend info from steps 2+4 to get enhanced AI forecast\n" +
	"6. synthesize_recommendation → pass ALL data including llm_forecast_30d/90d " +
	"from step 5 to generate the final BUY/WAIT/NEUTRAL signal\n" +
	"Then write a 3-sentence plain English explanation citing specific $ numbers. " +
	"Be direct. Do not hedge excessively."

const tracerName = "github.com/irfndi/carprice-ai-go/internal/agent"

// Config holds orchestrator settings
type Config struct {
	MaxRounds int
}

// Orchestrator runs the bounded tool-calling loop for one query at a time.
// It keeps no per-run state, so one instance serves concurrent requests.
type Orchestrator struct {
	reasoner  llm.Reasoner
	registry  *Registry
	maxRounds int
	logger    *logrus.Logger
	tracer    trace.Tracer
}

// NewOrchestrator creates an orchestrator over registry.
func NewOrchestrator(reasoner llm.Reasoner, registry *Registry, cfg Config, logger *logrus.Logger) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		reasoner:  reasoner,
		registry:  registry,
		maxRounds: cfg.MaxRounds,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// run is the mutable state of a single orchestrator run.
type run struct {
	id         string
	transcript *llm.Transcript
	outputs    map[string]json.RawMessage
	captured   *models.Recommendation
}

// Run analyses q.
func (o *Orchestrator) Run(ctx context.Context, q models.VehicleQuery) (*models.AnalysisResult, error) {
	return o.RunQuestion(ctx, q.Normalize().Question())
}

// RunQuestion analyses a free-form question. It returns an error only when
// the valuation step or a reasoner round-trip fails.
func (o *Orchestrator) RunQuestion(ctx context.Context, question string) (*models.AnalysisResult, error) {
	r := &run{
		id:         uuid.New().String(),
		transcript: llm.NewTranscript(SystemPrompt, question),
		outputs:    make(map[string]json.RawMessage),
	}
	ctx, span := o.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.run_id", r.id),
		attribute.Int("agent.max_rounds", o.maxRounds),
	))
	defer span.End()

	start := time.Now()
	tools := o.registry.Tools()

	for round := 1; round <= o.maxRounds; round++ {
		reply, err := o.round(ctx, r, round, tools)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "run aborted")
			o.logger.WithFields(logrus.Fields{
				"run_id": r.id,
				"round":  round,
				"error":  err.Error(),
			}).Error("Analysis run aborted")
			return nil, err
		}
		if reply == nil {
			continue
		}

		result := r.result(reply.Content, round, models.TerminatedFinal)
		span.SetAttributes(attribute.Int("agent.rounds", round), attribute.String("agent.terminated", string(result.Terminated)))
		o.logger.WithFields(logrus.Fields{
			"run_id":         r.id,
			"rounds":         round,
			"recommendation": result.Recommendation.Signal,
			"duration_ms":    time.Since(start).Milliseconds(),
		}).Info("Analysis run completed")
		return result, nil
	}

	result := r.result(RoundLimitExplanation, o.maxRounds, models.TerminatedRoundLimit)
	// A run cut off by the ceiling is never a confident call; captured
	// prices and forecasts are kept for reference.
	result.Recommendation.Signal = models.SignalNeutral
	result.Recommendation.Confidence = models.ConfidenceLow
	if r.captured != nil {
		result.Recommendation.Rationale = "Analysis stopped at the round limit, so the signal is inconclusive. " + result.Recommendation.Rationale
	}
	span.SetAttributes(attribute.Int("agent.rounds", o.maxRounds), attribute.String("agent.terminated", string(result.Terminated)))
	o.logger.WithFields(logrus.Fields{
		"run_id":   r.id,
		"rounds":   o.maxRounds,
		"captured": r.captured != nil,
	}).Warn("Analysis run hit the round limit")
	return result, nil
}

// round performs one reasoner round-trip. It returns the reply when it is
// final, or nil after dispatching the requested actions.
func (o *Orchestrator) round(ctx context.Context, r *run, n int, tools []llm.ToolSpec) (*llm.Reply, error) {
	ctx, span := o.tracer.Start(ctx, "agent.round", trace.WithAttributes(attribute.Int("agent.round", n)))
	defer span.End()

	reply, err := o.reasoner.Next(ctx, r.transcript, tools)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: round %d: %v", ErrReasoningFailed, n, err)
	}
	if reply == nil {
		return nil, fmt.Errorf("%w: round %d: %v", ErrReasoningFailed, n, llm.ErrEmptyResponse)
	}
	if reply.Final() {
		return reply, nil
	}

	r.transcript.AppendAssistant(reply)
	for _, call := range reply.ToolCalls {
		observation, err := o.dispatch(ctx, r, call)
		if err != nil {
			return nil, err
		}
		r.transcript.AppendObservation(call, observation)
	}
	return nil, nil
}

// dispatch executes one tool call and records its observation. Only a
// valuation failure is returned as an error.
func (o *Orchestrator) dispatch(ctx context.Context, r *run, call llm.ToolCall) (json.RawMessage, error) {
	ctx, span := o.tracer.Start(ctx, "agent.action", trace.WithAttributes(attribute.String("agent.action", call.Name)))
	defer span.End()

	result, err := o.registry.Dispatch(ctx, call.Name, json.RawMessage(call.Arguments))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, valuation.ErrValuationFailed) {
			span.SetStatus(codes.Error, "valuation failed")
			return nil, fmt.Errorf("action %s: %w", call.Name, err)
		}
		o.logger.WithFields(logrus.Fields{
			"run_id": r.id,
			"action": call.Name,
			"error":  err.Error(),
		}).Warn("Action failed, recording error observation")
		observation := errorObservation(err, call.Name)
		r.outputs[call.Name] = observation
		return observation, nil
	}

	if rec, ok := result.(models.Recommendation); ok {
		r.captured = &rec
	}

	observation, err := json.Marshal(result)
	if err != nil {
		observation = errorObservation(fmt.Errorf("encode result: %w", err), call.Name)
	}
	r.outputs[call.Name] = observation
	return observation, nil
}

func errorObservation(err error, name string) json.RawMessage {
	msg := err.Error()
	if errors.Is(err, ErrUnknownAction) {
		msg = "Unknown tool: " + name
	}
	data, _ := json.Marshal(map[string]string{"error": msg})
	return data
}

func (r *run) result(explanation string, rounds int, terminated models.Termination) *models.AnalysisResult {
	rec := models.DefaultRecommendation()
	if r.captured != nil {
		rec = *r.captured
	}
	return &models.AnalysisResult{
		Recommendation: rec,
		Explanation:    explanation,
		ActionOutputs:  r.outputs,
		Rounds:         rounds,
		Terminated:     terminated,
		RunID:          r.id,
	}
}
