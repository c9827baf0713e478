package models

import (
	"encoding/json"
	"time"
)

// Termination records how an orchestrator run ended
type Termination string

const (
	TerminatedFinal      Termination = "final"
	TerminatedRoundLimit Termination = "round_limit"
)

// AnalysisResult represents the full outcome of one orchestrator run
type AnalysisResult struct {
	Recommendation Recommendation             `json:"recommendation"`
	Explanation    string                     `json:"explanation"`
	ActionOutputs  map[string]json.RawMessage `json:"tool_outputs"`
	Rounds         int                        `json:"rounds"`
	Terminated     Termination                `json:"terminated"`
	RunID          string                     `json:"run_id,omitempty"`
}

// Clone returns a deep copy so callers can never mutate a cached result.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	if r.ActionOutputs != nil {
		out.ActionOutputs = make(map[string]json.RawMessage, len(r.ActionOutputs))
		for k, v := range r.ActionOutputs {
			out.ActionOutputs[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// CacheEntry represents a persisted analysis keyed by query identity
type CacheEntry struct {
	Key       string         `json:"cache_key" db:"cache_key"`
	Query     VehicleQuery   `json:"query" db:"query"`
	Result    AnalysisResult `json:"result" db:"result"`
	IsSeed    bool           `json:"is_seed" db:"is_seed"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	ExpiresAt time.Time      `json:"expires_at" db:"expires_at"`
}

// Clone returns a deep copy of the entry.
func (e CacheEntry) Clone() CacheEntry {
	out := e
	out.Result = e.Result.Clone()
	return out
}

// Expired reports whether the entry may no longer be served at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// CarListing represents one distinct make/model/year available for analysis
type CarListing struct {
	Make  string `json:"make" db:"make"`
	Model string `json:"model" db:"model"`
	Year  int    `json:"year" db:"year"`
}

// Prediction is the flattened view of an analysis served to API clients:
// the vehicle identity next to the recommendation fields.
type Prediction struct {
	VehicleQuery
	Recommendation
	Explanation   string                     `json:"explanation"`
	ActionOutputs map[string]json.RawMessage `json:"tool_outputs,omitempty"`
	Rounds        int                        `json:"rounds,omitempty"`
	Terminated    Termination                `json:"terminated,omitempty"`
	RunID         string                     `json:"run_id,omitempty"`
	IsSeed        bool                       `json:"is_seed"`
	Cached        bool                       `json:"cached"`
}

// NewPrediction flattens r for the query it answered.
func NewPrediction(q VehicleQuery, r AnalysisResult) Prediction {
	r = r.Clone()
	return Prediction{
		VehicleQuery:   q,
		Recommendation: r.Recommendation,
		Explanation:    r.Explanation,
		ActionOutputs:  r.ActionOutputs,
		Rounds:         r.Rounds,
		Terminated:     r.Terminated,
		RunID:          r.RunID,
	}
}

// View returns the entry as a client view without its action trace.
func (e CacheEntry) View() Prediction {
	p := NewPrediction(e.Query, e.Result)
	p.ActionOutputs = nil
	p.IsSeed = e.IsSeed
	p.Cached = true
	return p
}
