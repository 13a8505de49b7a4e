// verdict/pkg/compiler/program.go

package compiler

import (
	"fmt"
	"strings"

	"calder/verdict/pkg/ast"
)

// Opcode represents the type of a program instruction.
type Opcode byte

const (
	// Data loading
	LOAD_FIELD Opcode = iota
	LOAD_CONST
	LOAD_SCORE
	LOAD_SIGNAL

	// Comparison and membership
	COMPARE
	LIST_LOOKUP

	// Control flow
	JUMP
	JUMP_IF_TRUE
	JUMP_IF_FALSE

	// Trace structure
	BEGIN_GROUP
	END_GROUP
	CONCLUDE
	BEGIN_STEP

	// Gating
	CHECK_EVENT_TYPE

	// Calls
	CALL_RULE
	CALL_RULESET

	// Decision state
	ADD_SCORE
	MARK_TRIGGERED
	SET_SIGNAL
	SET_RESULT

	// Termination
	RETURN
	HALT
)

var opcodeNames = [...]string{
	"LOAD_FIELD", "LOAD_CONST", "LOAD_SCORE", "LOAD_SIGNAL",
	"COMPARE", "LIST_LOOKUP",
	"JUMP", "JUMP_IF_TRUE", "JUMP_IF_FALSE",
	"BEGIN_GROUP", "END_GROUP", "CONCLUDE", "BEGIN_STEP",
	"CHECK_EVENT_TYPE",
	"CALL_RULE", "CALL_RULESET",
	"ADD_SCORE", "MARK_TRIGGERED", "SET_SIGNAL", "SET_RESULT",
	"RETURN", "HALT",
}

// String returns the string representation of an opcode.
func (op Opcode) String() string {
	if int(op) >= len(opcodeNames) {
		return fmt.Sprintf("Opcode(%d)", op)
	}
	return opcodeNames[op]
}

// Instruction is one VM instruction. Only the fields relevant to the
// opcode are populated; jump targets are absolute instruction offsets.
type Instruction struct {
	Op Opcode

	// LOAD_FIELD
	Path []string

	// LOAD_CONST
	Value interface{}

	// COMPARE
	Operator ast.Operator

	// JUMP / JUMP_IF_TRUE / JUMP_IF_FALSE: absolute target offset.
	Target int

	// Identifier operand: list id (LIST_LOOKUP), rule id (CALL_RULE,
	// MARK_TRIGGERED), ruleset id (CALL_RULESET), step id (BEGIN_STEP),
	// event type (CHECK_EVENT_TYPE).
	Ident string

	// LIST_LOOKUP: invert the membership result (not_in).
	Negate bool

	// BEGIN_GROUP / END_GROUP
	Group ast.GroupOp

	// Source text of the condition, retained for trace output.
	Expr string

	// CONCLUDE: the clause is the declared default (always matches).
	Default bool

	// ADD_SCORE
	Score int

	// MARK_TRIGGERED / SET_SIGNAL / SET_RESULT
	Signal    string
	Reason    string
	Actions   []string
	Terminate bool
}

// String returns a human-readable representation of an instruction.
func (in Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(in.Op.String())
	switch in.Op {
	case LOAD_FIELD:
		fmt.Fprintf(&sb, " %s", ast.JoinPath(in.Path))
	case LOAD_CONST:
		fmt.Fprintf(&sb, " %v", in.Value)
	case COMPARE:
		fmt.Fprintf(&sb, " %s", in.Operator)
	case LIST_LOOKUP:
		fmt.Fprintf(&sb, " %s negate=%v", in.Ident, in.Negate)
	case JUMP, JUMP_IF_TRUE, JUMP_IF_FALSE:
		fmt.Fprintf(&sb, " %d", in.Target)
	case BEGIN_GROUP:
		fmt.Fprintf(&sb, " %s", in.Group)
	case CHECK_EVENT_TYPE, CALL_RULE, CALL_RULESET, BEGIN_STEP:
		fmt.Fprintf(&sb, " %s", in.Ident)
	case ADD_SCORE:
		fmt.Fprintf(&sb, " %d", in.Score)
	case MARK_TRIGGERED:
		fmt.Fprintf(&sb, " %s", in.Ident)
	case SET_SIGNAL, SET_RESULT:
		fmt.Fprintf(&sb, " %s", in.Signal)
	}
	return sb.String()
}

// Program kinds.
const (
	KindRule     = "rule"
	KindRuleset  = "ruleset"
	KindPipeline = "pipeline"
)

// StepInfo is the retained metadata for one pipeline step, used to seed
// the trace with every declared step before execution starts.
type StepInfo struct {
	ID      string
	Type    string
	Ruleset string
}

// Program is the compiled artifact for one rule, ruleset or pipeline: a
// flat instruction sequence plus the metadata the VM needs for tracing.
// Programs are immutable once built; the registry owns them and the VM
// only borrows them for the duration of one request.
type Program struct {
	ID          string
	Kind        string
	Name        string
	Description string

	Instructions []Instruction

	// Targets maps pipeline step IDs to absolute instruction offsets.
	Targets map[string]int

	// Steps lists the pipeline's declared steps in order.
	Steps []StepInfo

	// Aggregate is the ruleset score aggregation strategy.
	Aggregate string

	// Score is the declared score of a rule program.
	Score int
}

// Disassemble renders the instruction sequence, one instruction per line.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (%d instructions)\n", p.Kind, p.ID, len(p.Instructions))
	for i, in := range p.Instructions {
		fmt.Fprintf(&sb, "%4d  %s\n", i, in.String())
	}
	return sb.String()
}
