// verdict/pkg/ast/rule.go

package ast

// WhenBlock guards a rule or pipeline: an optional event-type filter plus
// a condition tree. A nil Condition matches unconditionally.
type WhenBlock struct {
	EventType string
	Condition *Expression
}

// Rule is one atomic condition-to-score mapping. Rules are immutable once
// resolution hands them to the compiler.
type Rule struct {
	ID          string
	Name        string
	Description string
	When        WhenBlock

	// Score added to the ruleset aggregate when the rule triggers.
	Score int

	// Reason is the static reason code recorded when the rule triggers.
	Reason string

	// Actions are opaque action identifiers attached on trigger.
	Actions []string
}

// Ruleset aggregates member rules and selects a signal from the aggregate.
type Ruleset struct {
	ID          string
	Name        string
	Description string

	// Extends names a single parent ruleset merged in during resolution.
	Extends string

	// Template optionally names a decision template whose conclusion
	// clauses are instantiated into this ruleset during resolution.
	Template       string
	TemplateParams map[string]interface{}

	// Aggregate is the score aggregation strategy: "sum" (default) or "max".
	Aggregate string

	// Rules lists member rule IDs in evaluation order.
	Rules []string

	// Conclusion clauses are evaluated in declared order; first match wins.
	Conclusion []ConclusionClause
}

// ConclusionClause maps a condition over the aggregate state to a signal.
type ConclusionClause struct {
	// When is evaluated against the aggregate (score, signal). Nil only
	// for the default clause.
	When *Expression

	// Default marks the catch-all clause.
	Default bool

	Signal    string
	Reason    string
	Actions   []string
	Terminate bool
}

// DecisionTemplate is a reusable library of conclusion clauses. Param
// placeholders (params.<name>) are substituted at resolution time.
type DecisionTemplate struct {
	ID          string
	Name        string
	Description string
	Params      map[string]interface{}
	Conclusion  []ConclusionClause
}

// Decision signals. A ruleset with no matching conclusion clause emits
// SignalApprove.
const (
	SignalApprove = "APPROVE"
	SignalDecline = "DECLINE"
	SignalReview  = "REVIEW"
	SignalHold    = "HOLD"
	SignalPass    = "PASS"
)

// ValidSignal reports whether s is one of the known decision signals.
func ValidSignal(s string) bool {
	switch s {
	case SignalApprove, SignalDecline, SignalReview, SignalHold, SignalPass:
		return true
	}
	return false
}

// AggregateSum and AggregateMax are the supported aggregation strategies.
const (
	AggregateSum = "sum"
	AggregateMax = "max"
)
