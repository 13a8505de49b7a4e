// verdict/pkg/runtime/engine_test.go

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calder/verdict/pkg/ast"
)

type fakeFeatures struct {
	name   string
	fields map[string]interface{}
	err    error
}

func (f *fakeFeatures) Name() string { return f.name }

func (f *fakeFeatures) Enrich(_ context.Context, _ string, _ map[string]interface{}) (map[string]interface{}, error) {
	return f.fields, f.err
}

func TestDecideUnknownEventType(t *testing.T) {
	set := compileFixture(t, transactionFixture(), []string{"blocked_countries"})
	engine := NewEngine(StaticSource(set), &fakeLists{})

	_, err := engine.Decide(context.Background(), Request{EventType: "login"})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestDecideNoProgramsLoaded(t *testing.T) {
	engine := NewEngine(StaticSource(nil), nil)
	_, err := engine.Decide(context.Background(), Request{EventType: "transaction"})
	assert.Error(t, err)
}

func TestFeatureAdapterEnrichesPayload(t *testing.T) {
	files := map[string]string{
		"r.yaml": `
rule:
  id: r
  when:
    conditions: velocity.txn_count_1h > 5
  score: 400
  reason: HIGH_VELOCITY
`,
		"rs.yaml": `
imports:
  rules: [r.yaml]
ruleset:
  id: rs
  rules: [r]
  conclusion:
    - when: score >= 400
      signal: REVIEW
`,
		"p.yaml": `
imports:
  rulesets: [rs.yaml]
pipeline:
  id: p
  steps:
    - id: s
      type: ruleset
      ruleset: rs
registry:
  - event_type: e
    pipeline: p
`,
	}
	set := compileFixture(t, files, nil)

	velocity := &fakeFeatures{
		name:   "velocity",
		fields: map[string]interface{}{"txn_count_1h": 12},
	}
	engine := NewEngine(StaticSource(set), nil, WithFeatureAdapters(velocity))
	d, err := engine.Decide(context.Background(), Request{EventType: "e", Payload: map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, ast.SignalReview, d.Result)
	assert.Equal(t, 400, d.Scores.Raw)
}

// A failing feature adapter degrades to absent fields instead of
// failing the request.
func TestFeatureAdapterFailureDegrades(t *testing.T) {
	files := map[string]string{
		"r.yaml": `
rule:
  id: r
  when:
    conditions: velocity.txn_count_1h > 5
  score: 400
`,
		"rs.yaml": `
imports:
  rules: [r.yaml]
ruleset:
  id: rs
  rules: [r]
`,
		"p.yaml": `
imports:
  rulesets: [rs.yaml]
pipeline:
  id: p
  steps:
    - id: s
      type: ruleset
      ruleset: rs
registry:
  - event_type: e
    pipeline: p
`,
	}
	set := compileFixture(t, files, nil)

	broken := &fakeFeatures{name: "velocity", err: errors.New("feature service down")}
	engine := NewEngine(StaticSource(set), nil, WithFeatureAdapters(broken))
	d, err := engine.Decide(context.Background(), Request{EventType: "e", Payload: map[string]interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, ast.SignalApprove, d.Result)
	assert.Equal(t, 0, d.Scores.Raw)
}

// Identical snapshot and payload must yield identical decisions; only
// the request id and timings may differ between runs.
func TestDecideDeterministic(t *testing.T) {
	set := compileFixture(t, transactionFixture(), []string{"blocked_countries"})
	lists := &fakeLists{members: map[string]map[string]bool{
		"blocked_countries": {"KP": true},
	}}
	payload := map[string]interface{}{
		"amount": 5000,
		"user":   map[string]interface{}{"country": "KP"},
	}

	d1 := decide(t, set, lists, "transaction", payload)
	d2 := decide(t, set, lists, "transaction", payload)

	assert.NotEqual(t, d1.ID, d2.ID)
	for _, d := range []*Decision{d1, d2} {
		d.ID = ""
		d.ElapsedMs = 0
		clearTraceTiming(d.Trace)
	}
	assert.Equal(t, d1, d2)
}

func clearTraceTiming(pt *PipelineTrace) {
	pt.ElapsedMs = 0
	for _, step := range pt.Steps {
		step.ElapsedMs = 0
		if step.Ruleset != nil {
			step.Ruleset.ElapsedMs = 0
			for _, rt := range step.Ruleset.Rules {
				rt.ElapsedMs = 0
			}
		}
	}
}

// An approval with nothing triggered still serializes its reason codes
// as an empty array, never null.
func TestDecisionReasonCodesNeverNull(t *testing.T) {
	set := compileFixture(t, transactionFixture(), []string{"blocked_countries"})
	lists := &fakeLists{members: map[string]map[string]bool{}}

	d := decide(t, set, lists, "transaction", map[string]interface{}{
		"amount": 50,
		"user":   map[string]interface{}{"country": "NO"},
	})
	require.NotNil(t, d.Cognition.ReasonCodes)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reason_codes":[]`)
	assert.Contains(t, string(data), `"triggered_rules":[]`)
}

func TestDecideDedupesReasonsAndActions(t *testing.T) {
	files := map[string]string{
		"r1.yaml": `
rule:
  id: r1
  score: 10
  reason: SHARED
  actions: [notify]
`,
		"r2.yaml": `
rule:
  id: r2
  score: 10
  reason: SHARED
  actions: [notify, escalate]
`,
		"rs.yaml": `
imports:
  rules: [r1.yaml, r2.yaml]
ruleset:
  id: rs
  rules: [r1, r2]
`,
		"p.yaml": `
imports:
  rulesets: [rs.yaml]
pipeline:
  id: p
  steps:
    - id: s
      type: ruleset
      ruleset: rs
registry:
  - event_type: e
    pipeline: p
`,
	}
	set := compileFixture(t, files, nil)

	d := decide(t, set, nil, "e", map[string]interface{}{})
	assert.Equal(t, []string{"SHARED"}, d.Cognition.ReasonCodes)
	assert.Equal(t, []string{"notify", "escalate"}, d.Actions)
	assert.Len(t, d.Evidence.TriggeredRules, 2)
	assert.NotEmpty(t, d.Cognition.Summary)
}
