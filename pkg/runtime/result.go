// verdict/pkg/runtime/result.go

package runtime

// Scores carries both views of the decision score: the raw ruleset
// aggregate and its canonical 0-1000 normalization.
type Scores struct {
	Raw       int `json:"raw"`
	Canonical int `json:"canonical"`
}

// TriggeredRule is one rule that fired during the decision.
type TriggeredRule struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason,omitempty"`
	Score  int    `json:"score"`
}

// Evidence collects the concrete facts behind a decision.
type Evidence struct {
	TriggeredRules []TriggeredRule `json:"triggered_rules"`
}

// Cognition is the human-readable explanation layer of a decision.
type Cognition struct {
	Summary     string   `json:"summary"`
	ReasonCodes []string `json:"reason_codes"`
}

// Decision is the complete outcome of one evaluation request.
type Decision struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Result    string         `json:"result"`
	Actions   []string       `json:"actions,omitempty"`
	Scores    Scores         `json:"scores"`
	Evidence  Evidence       `json:"evidence"`
	Cognition Cognition      `json:"cognition"`
	Trace     *PipelineTrace `json:"trace,omitempty"`
	ElapsedMs float64        `json:"elapsed_ms"`
}
