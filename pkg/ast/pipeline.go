// verdict/pkg/ast/pipeline.go

package ast

// Step types understood by the pipeline compiler.
const (
	StepRouter  = "router"
	StepRuleset = "ruleset"
	StepAction  = "action"
)

// StepEnd is the reserved step target that terminates the pipeline.
const StepEnd = "end"

// Pipeline is an ordered graph of steps forming one decision workflow.
type Pipeline struct {
	ID          string
	Name        string
	Description string
	When        WhenBlock

	// Entry names the first step to execute.
	Entry string

	Steps []Step
}

// Step is one node of the pipeline graph, addressed by ID and linked by
// explicit next/route references.
type Step struct {
	ID   string
	Name string
	Type string

	// Router: ordered conditional routes plus an optional default target.
	Routes  []Route
	Default string

	// Ruleset step: the ruleset program to invoke. Routes, if present,
	// branch on the ruleset's resulting signal; otherwise Next is taken.
	Ruleset string

	// Action step: static result/action overrides merged into the decision.
	Result  string
	Actions []string

	// Next is the unconditional successor for non-router steps.
	Next string
}

// Route is one labeled conditional edge out of a step.
type Route struct {
	When *Expression
	Next string
}

// Successors returns every step ID this step can transfer control to.
func (s *Step) Successors() []string {
	var out []string
	for _, r := range s.Routes {
		out = append(out, r.Next)
	}
	if s.Default != "" {
		out = append(out, s.Default)
	}
	if s.Next != "" {
		out = append(out, s.Next)
	}
	return out
}

// RegistryEntry routes an incoming event type to a pipeline.
type RegistryEntry struct {
	EventType string
	Pipeline  string
}
