// verdict/pkg/runtime/trace.go

package runtime

// ConditionTrace records one evaluated condition. Leaf comparisons keep
// the observed left-hand value; group nodes keep their children in
// evaluation order, so short-circuited children are simply absent.
type ConditionTrace struct {
	Expression string            `json:"expression"`
	Left       interface{}       `json:"left,omitempty"`
	Result     bool              `json:"result"`
	Group      string            `json:"group,omitempty"`
	Negated    bool              `json:"negated,omitempty"`
	Children   []*ConditionTrace `json:"children,omitempty"`
}

// RuleTrace records one rule evaluation inside a ruleset.
type RuleTrace struct {
	RuleID    string          `json:"rule_id"`
	Name      string          `json:"name,omitempty"`
	Triggered bool            `json:"triggered"`
	Score     int             `json:"score"`
	Reason    string          `json:"reason,omitempty"`
	Condition *ConditionTrace `json:"condition,omitempty"`
	ElapsedMs float64         `json:"elapsed_ms"`
}

// ConclusionTrace records one conclusion clause evaluation. Clauses
// after the first match are not evaluated and do not appear.
type ConclusionTrace struct {
	Expression string `json:"expression"`
	Matched    bool   `json:"matched"`
	Signal     string `json:"signal,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// RulesetTrace records one ruleset invocation.
type RulesetTrace struct {
	RulesetID   string             `json:"ruleset_id"`
	Aggregate   string             `json:"aggregate"`
	RawScore    int                `json:"raw_score"`
	Signal      string             `json:"signal"`
	Rules       []*RuleTrace       `json:"rules,omitempty"`
	Conclusions []*ConclusionTrace `json:"conclusions,omitempty"`
	ElapsedMs   float64            `json:"elapsed_ms"`
}

// StepTrace records one pipeline step. Every declared step appears in
// the trace; steps the control flow never reached have Executed false.
type StepTrace struct {
	StepID     string            `json:"step_id"`
	Type       string            `json:"type"`
	Executed   bool              `json:"executed"`
	Ruleset    *RulesetTrace     `json:"ruleset,omitempty"`
	Conditions []*ConditionTrace `json:"conditions,omitempty"`
	ElapsedMs  float64           `json:"elapsed_ms"`
}

// PipelineTrace is the root of one decision's execution trace.
type PipelineTrace struct {
	PipelineID string            `json:"pipeline_id"`
	Skipped    bool              `json:"skipped,omitempty"`
	Gate       []*ConditionTrace `json:"gate,omitempty"`
	Steps      []*StepTrace      `json:"steps"`
	ElapsedMs  float64           `json:"elapsed_ms"`
}

// stepByID returns the pre-seeded step trace, or nil.
func (t *PipelineTrace) stepByID(id string) *StepTrace {
	for _, s := range t.Steps {
		if s.StepID == id {
			return s
		}
	}
	return nil
}
