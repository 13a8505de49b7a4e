// verdict/pkg/compiler/codegen.go

package compiler

import (
	"fmt"

	"calder/verdict/pkg/ast"
)

// emitter accumulates instructions and resolves labeled branches to
// absolute offsets in a final pass.
type emitter struct {
	ins     []Instruction
	labels  map[string]int
	patches []patch
	nextLbl int
}

type patch struct {
	at    int
	label string
}

func newEmitter() *emitter {
	return &emitter{labels: make(map[string]int)}
}

func (e *emitter) emit(in Instruction) {
	e.ins = append(e.ins, in)
}

// newLabel returns a fresh program-local label.
func (e *emitter) newLabel() string {
	e.nextLbl++
	return fmt.Sprintf("L%d", e.nextLbl)
}

// bind attaches a label to the next emitted instruction.
func (e *emitter) bind(label string) {
	e.labels[label] = len(e.ins)
}

// branch emits a jump whose target is patched when finish runs.
func (e *emitter) branch(op Opcode, label string) {
	e.patches = append(e.patches, patch{at: len(e.ins), label: label})
	e.emit(Instruction{Op: op})
}

func (e *emitter) finish() ([]Instruction, error) {
	for _, p := range e.patches {
		target, ok := e.labels[p.label]
		if !ok {
			return nil, fmt.Errorf("unresolved label %q", p.label)
		}
		e.ins[p.at].Target = target
	}
	return e.ins, nil
}

// exprScope selects how bare field paths are resolved: against the
// event payload, or against the aggregate state (score, signal) that
// conclusion clauses and step routes observe.
type exprScope int

const (
	scopeEvent exprScope = iota
	scopeAggregate
)

// exprCompiler lowers expression trees to instructions.
type exprCompiler struct {
	em    *emitter
	scope exprScope

	// lists, when non-nil, is the set of managed list IDs known at
	// compile time; references outside it are rejected.
	lists map[string]bool

	// from names the enclosing definition for error reporting.
	from string
}

// compile emits instructions that leave the expression's boolean (or
// operand value) on top of the stack.
func (c *exprCompiler) compile(e *ast.Expression) error {
	switch e.Kind {
	case ast.ExprLiteral:
		c.em.emit(Instruction{Op: LOAD_CONST, Value: e.Literal})
		return nil

	case ast.ExprField:
		c.em.emit(c.loadField(e.Path))
		return nil

	case ast.ExprListRef:
		return &UnknownReferenceError{Kind: "expression", ID: "list." + e.ListID, From: c.from}

	case ast.ExprBinary:
		return c.compileBinary(e)

	case ast.ExprGroup:
		return c.compileGroup(e)
	}
	return fmt.Errorf("unknown expression kind %d", e.Kind)
}

func (c *exprCompiler) loadField(path []string) Instruction {
	if c.scope == scopeAggregate {
		switch {
		case len(path) == 1 && path[0] == "score",
			len(path) == 2 && path[0] == "result" && path[1] == "score":
			return Instruction{Op: LOAD_SCORE}
		case len(path) == 1 && path[0] == "signal",
			len(path) == 2 && path[0] == "result" && path[1] == "signal":
			return Instruction{Op: LOAD_SIGNAL}
		}
	}
	return Instruction{Op: LOAD_FIELD, Path: path}
}

func (c *exprCompiler) compileBinary(e *ast.Expression) error {
	if e.Op.IsMembership() && e.Right.Kind == ast.ExprListRef {
		if err := c.compile(e.Left); err != nil {
			return err
		}
		if c.lists != nil && !c.lists[e.Right.ListID] {
			return &UnknownReferenceError{Kind: "list", ID: e.Right.ListID, From: c.from}
		}
		c.em.emit(Instruction{
			Op:     LIST_LOOKUP,
			Ident:  e.Right.ListID,
			Negate: e.Op == ast.OpNotIn,
			Expr:   e.String(),
		})
		return nil
	}
	if err := c.compile(e.Left); err != nil {
		return err
	}
	if err := c.compile(e.Right); err != nil {
		return err
	}
	c.em.emit(Instruction{Op: COMPARE, Operator: e.Op, Expr: e.String()})
	return nil
}

// compileGroup lowers all/any blocks with short-circuit branches: an
// all group bails to a shared false as soon as one child fails, an any
// group bails to a shared true as soon as one child holds. The last
// child's value flows through unchanged.
func (c *exprCompiler) compileGroup(e *ast.Expression) error {
	c.em.emit(Instruction{Op: BEGIN_GROUP, Group: e.GroupOp})

	switch n := len(e.Children); {
	case n == 0:
		c.em.emit(Instruction{Op: LOAD_CONST, Value: e.GroupOp == ast.GroupAll})

	case n == 1:
		if err := c.compile(e.Children[0]); err != nil {
			return err
		}

	default:
		short := c.em.newLabel()
		end := c.em.newLabel()
		bail := JUMP_IF_FALSE
		bailValue := false
		if e.GroupOp == ast.GroupAny {
			bail = JUMP_IF_TRUE
			bailValue = true
		}
		for _, child := range e.Children[:n-1] {
			if err := c.compile(child); err != nil {
				return err
			}
			c.em.branch(bail, short)
		}
		if err := c.compile(e.Children[n-1]); err != nil {
			return err
		}
		c.em.branch(JUMP, end)
		c.em.bind(short)
		c.em.emit(Instruction{Op: LOAD_CONST, Value: bailValue})
		c.em.bind(end)
	}

	c.em.emit(Instruction{Op: END_GROUP, Group: e.GroupOp, Negate: e.Negate})
	return nil
}

// compileRule lowers one rule to a callable program: evaluate the
// condition, and on success record the score and the trigger.
func compileRule(r *ast.Rule, lists map[string]bool) (*Program, error) {
	em := newEmitter()
	ec := &exprCompiler{em: em, scope: scopeEvent, lists: lists, from: r.ID}

	if r.When.EventType != "" {
		em.emit(Instruction{Op: CHECK_EVENT_TYPE, Ident: r.When.EventType})
	}
	if r.When.Condition != nil {
		if err := ec.compile(r.When.Condition); err != nil {
			return nil, err
		}
		em.branch(JUMP_IF_FALSE, "miss")
	}
	em.emit(Instruction{Op: ADD_SCORE, Score: r.Score})
	em.emit(Instruction{Op: MARK_TRIGGERED, Ident: r.ID, Reason: r.Reason, Actions: r.Actions})
	em.bind("miss")
	em.emit(Instruction{Op: RETURN})

	ins, err := em.finish()
	if err != nil {
		return nil, err
	}
	return &Program{
		ID:           r.ID,
		Kind:         KindRule,
		Name:         r.Name,
		Description:  r.Description,
		Instructions: ins,
		Score:        r.Score,
	}, nil
}

// compileRuleset lowers a ruleset: call every member rule, then walk the
// conclusion clauses in declared order and take the first that matches.
// A ruleset with no matching clause falls through to APPROVE.
func compileRuleset(rs *ast.Ruleset, doc *ast.ResolvedDocument, lists map[string]bool) (*Program, error) {
	em := newEmitter()
	ec := &exprCompiler{em: em, scope: scopeAggregate, lists: lists, from: rs.ID}

	for _, id := range rs.Rules {
		if doc.RuleByID(id) == nil {
			return nil, &UnknownReferenceError{Kind: "rule", ID: id, From: rs.ID}
		}
		em.emit(Instruction{Op: CALL_RULE, Ident: id})
	}

	explicitDefault := false
	for _, clause := range rs.Conclusion {
		signal := clause.Signal
		if signal == "" {
			signal = ast.SignalApprove
		}
		set := Instruction{
			Op:        SET_SIGNAL,
			Signal:    signal,
			Reason:    clause.Reason,
			Actions:   clause.Actions,
			Terminate: clause.Terminate,
		}
		if clause.Default {
			em.emit(Instruction{Op: CONCLUDE, Default: true, Expr: "default"})
			em.emit(set)
			em.emit(Instruction{Op: RETURN})
			explicitDefault = true
			break
		}
		next := em.newLabel()
		if err := ec.compile(clause.When); err != nil {
			return nil, err
		}
		em.emit(Instruction{Op: CONCLUDE, Expr: clause.When.String()})
		em.branch(JUMP_IF_FALSE, next)
		em.emit(set)
		em.emit(Instruction{Op: RETURN})
		em.bind(next)
	}
	if !explicitDefault {
		em.emit(Instruction{Op: SET_SIGNAL, Signal: ast.SignalApprove})
		em.emit(Instruction{Op: RETURN})
	}

	ins, err := em.finish()
	if err != nil {
		return nil, err
	}
	return &Program{
		ID:           rs.ID,
		Kind:         KindRuleset,
		Name:         rs.Name,
		Description:  rs.Description,
		Instructions: ins,
		Aggregate:    rs.Aggregate,
	}, nil
}
