// verdict/pkg/runtime/engine.go

package runtime

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"calder/verdict/pkg/ast"
	"calder/verdict/pkg/compiler"
	"calder/verdict/pkg/logging"
	"calder/verdict/pkg/metrics"
)

// ProgramSource hands out the current compiled program set. The source
// must return an immutable snapshot; the engine holds it for the length
// of one request, so a concurrent reload never affects requests already
// in flight.
type ProgramSource interface {
	Snapshot() *compiler.CompiledSet
}

// staticSource adapts a fixed compiled set into a ProgramSource.
type staticSource struct {
	set *compiler.CompiledSet
}

func (s staticSource) Snapshot() *compiler.CompiledSet { return s.set }

// StaticSource wraps a compiled set that never changes.
func StaticSource(set *compiler.CompiledSet) ProgramSource {
	return staticSource{set: set}
}

// Request is one evaluation request.
type Request struct {
	// EventType selects the pipeline through the registry routes.
	EventType string

	// Payload is the event's field tree.
	Payload map[string]interface{}
}

// Engine turns events into decisions. It is safe for concurrent use.
type Engine struct {
	source   ProgramSource
	lists    ListAdapter
	features []FeatureAdapter
}

// Option configures an Engine.
type Option func(*Engine)

// WithFeatureAdapters registers payload enrichment adapters, applied in
// order before evaluation.
func WithFeatureAdapters(adapters ...FeatureAdapter) Option {
	return func(e *Engine) {
		e.features = append(e.features, adapters...)
	}
}

// NewEngine returns an engine over the given program source and list
// adapter.
func NewEngine(source ProgramSource, lists ListAdapter, opts ...Option) *Engine {
	e := &Engine{source: source, lists: lists}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide evaluates one event and returns the full decision. The compiled
// set is snapshotted once at entry, so the decision reflects exactly one
// registry generation.
func (e *Engine) Decide(ctx context.Context, req Request) (*Decision, error) {
	start := time.Now()
	set := e.source.Snapshot()
	if set == nil {
		return nil, logging.NewError(logging.ErrorTypeRuntime, "no programs loaded", nil, nil)
	}

	pipelineID, ok := set.Routes[req.EventType]
	if !ok {
		metrics.DecisionErrors.WithLabelValues(req.EventType, "false").Inc()
		return nil, logging.NewError(logging.ErrorTypeRuntime, "no pipeline registered for event type", nil,
			map[string]interface{}{"event_type": req.EventType})
	}
	prog := set.Pipelines[pipelineID]

	payload := e.enrich(ctx, req)

	st := &execState{
		ctx:       ctx,
		event:     payload,
		eventType: req.EventType,
	}
	vm := NewVM(set, e.lists)
	if err := vm.Run(st, prog); err != nil {
		metrics.DecisionErrors.WithLabelValues(req.EventType, strconv.FormatBool(IsRetryable(err))).Inc()
		logging.LogError(log.Logger, err)
		return nil, err
	}

	decision := e.assemble(req, st, start)
	metrics.DecisionsTotal.WithLabelValues(req.EventType, decision.Result).Inc()
	metrics.DecisionDuration.WithLabelValues(req.EventType).Observe(time.Since(start).Seconds())
	log.Debug().
		Str("decision_id", decision.ID).
		Str("event_type", req.EventType).
		Str("result", decision.Result).
		Int("raw_score", decision.Scores.Raw).
		Float64("elapsed_ms", decision.ElapsedMs).
		Msg("Decision complete")
	return decision, nil
}

// enrich runs feature adapters over the payload. Adapter failures
// degrade: the fields stay absent and evaluation proceeds.
func (e *Engine) enrich(ctx context.Context, req Request) map[string]interface{} {
	payload := req.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if len(e.features) == 0 {
		return payload
	}
	enriched := make(map[string]interface{}, len(payload)+len(e.features))
	for k, v := range payload {
		enriched[k] = v
	}
	for _, adapter := range e.features {
		fields, err := adapter.Enrich(ctx, req.EventType, enriched)
		if err != nil {
			log.Warn().
				Err(err).
				Str("adapter", adapter.Name()).
				Str("event_type", req.EventType).
				Msg("Feature adapter failed, continuing without its fields")
			continue
		}
		if len(fields) > 0 {
			enriched[adapter.Name()] = fields
		}
	}
	return enriched
}

func (e *Engine) assemble(req Request, st *execState, start time.Time) *Decision {
	signal := st.signal
	if signal == "" {
		signal = ast.SignalApprove
	}
	d := &Decision{
		ID:        uuid.NewString(),
		EventType: req.EventType,
		Result:    signal,
		Actions:   dedupe(st.actions),
		Scores: Scores{
			Raw:       st.raw,
			Canonical: CanonicalScore(st.raw),
		},
		Evidence:  Evidence{TriggeredRules: st.triggered},
		Cognition: Cognition{ReasonCodes: dedupe(st.reasons)},
		Trace:     st.trace,
		ElapsedMs: elapsedMs(start, time.Now()),
	}
	if d.Evidence.TriggeredRules == nil {
		d.Evidence.TriggeredRules = []TriggeredRule{}
	}
	if d.Cognition.ReasonCodes == nil {
		d.Cognition.ReasonCodes = []string{}
	}
	d.Cognition.Summary = summarize(d)
	return d
}

// dedupe removes duplicates while keeping first-encounter order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func summarize(d *Decision) string {
	n := len(d.Evidence.TriggeredRules)
	switch n {
	case 0:
		return fmt.Sprintf("%s with no rules triggered", d.Result)
	case 1:
		return fmt.Sprintf("%s with 1 rule triggered (raw score %d)", d.Result, d.Scores.Raw)
	default:
		return fmt.Sprintf("%s with %d rules triggered (raw score %d)", d.Result, n, d.Scores.Raw)
	}
}
