// verdict/pkg/runtime/vm.go

package runtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"calder/verdict/pkg/ast"
	"calder/verdict/pkg/compiler"
	"calder/verdict/pkg/logging"
	"calder/verdict/pkg/metrics"
)

// maxStepExecutions bounds how many pipeline steps one evaluation may
// execute, so a routing cycle between steps cannot spin forever.
const maxStepExecutions = 256

// VM executes compiled programs against one event. A VM holds no
// per-request state; Run may be called concurrently.
type VM struct {
	set   *compiler.CompiledSet
	lists ListAdapter
}

// NewVM returns a VM over the given compiled set. The list adapter may
// be nil when no program uses managed lists.
func NewVM(set *compiler.CompiledSet, lists ListAdapter) *VM {
	return &VM{set: set, lists: lists}
}

// execState is the evaluation state shared by every frame of one run.
type execState struct {
	ctx       context.Context
	event     map[string]interface{}
	eventType string

	signal    string
	actions   []string
	reasons   []string
	triggered []TriggeredRule
	raw       int

	terminated    bool
	stepsExecuted int

	trace *PipelineTrace
}

// frame is one program activation on the call stack.
type frame struct {
	prog  *compiler.Program
	pc    int
	stack []interface{}

	// condition trace collection
	groups []*ConditionTrace
	conds  []*ConditionTrace

	// rule state
	scoreDelta  int
	triggered   bool
	ruleReason  string
	ruleActions []string

	// ruleset state
	rawScore    int
	setSignal   string
	setReason   string
	setActions  []string
	terminate   bool
	ruleTraces  []*RuleTrace
	conclusions []*ConclusionTrace

	// pipeline state
	curStep   *StepTrace
	stepStart time.Time

	skipped bool
	start   time.Time
}

func newFrame(prog *compiler.Program) *frame {
	return &frame{prog: prog, start: time.Now()}
}

func (f *frame) push(v interface{}) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() interface{} {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) peek() interface{} {
	return f.stack[len(f.stack)-1]
}

// addCond appends a condition trace to the innermost open group, or to
// the frame's top level when no group is open.
func (f *frame) addCond(t *ConditionTrace) {
	if len(f.groups) > 0 {
		g := f.groups[len(f.groups)-1]
		g.Children = append(g.Children, t)
		return
	}
	f.conds = append(f.conds, t)
}

// takeConds drains the frame's top-level condition traces.
func (f *frame) takeConds() []*ConditionTrace {
	out := f.conds
	f.conds = nil
	return out
}

// Run executes the pipeline program, mutating st as the decision takes
// shape. The trace on st is fully populated on return, including for
// runs cut short by an event-type mismatch.
func (vm *VM) Run(st *execState, prog *compiler.Program) error {
	if prog.Kind == compiler.KindPipeline {
		st.trace = &PipelineTrace{PipelineID: prog.ID}
		for _, info := range prog.Steps {
			st.trace.Steps = append(st.trace.Steps, &StepTrace{
				StepID: info.ID,
				Type:   info.Type,
			})
		}
	}

	frames := []*frame{newFrame(prog)}
	for len(frames) > 0 {
		f := frames[len(frames)-1]
		if f.pc >= len(f.prog.Instructions) {
			frames = frames[:len(frames)-1]
			vm.finalize(st, f, parentOf(frames))
			continue
		}
		in := f.prog.Instructions[f.pc]
		f.pc++

		switch in.Op {
		case compiler.LOAD_FIELD:
			v, ok := ast.LookupField(st.event, in.Path)
			if !ok {
				v = nil
			}
			f.push(v)

		case compiler.LOAD_CONST:
			f.push(in.Value)

		case compiler.LOAD_SCORE:
			if f.prog.Kind == compiler.KindRuleset {
				f.push(float64(f.rawScore))
			} else {
				f.push(float64(st.raw))
			}

		case compiler.LOAD_SIGNAL:
			sig := st.signal
			if sig == "" {
				sig = ast.SignalApprove
			}
			f.push(sig)

		case compiler.COMPARE:
			right := f.pop()
			left := f.pop()
			result := compare(left, in.Operator, right)
			f.addCond(&ConditionTrace{Expression: in.Expr, Left: left, Result: result})
			f.push(result)

		case compiler.LIST_LOOKUP:
			result, err := vm.listLookup(st, f, in)
			if err != nil {
				return err
			}
			f.push(result)

		case compiler.JUMP:
			f.pc = in.Target

		case compiler.JUMP_IF_TRUE:
			if ast.Truthy(f.pop()) {
				f.pc = in.Target
			}

		case compiler.JUMP_IF_FALSE:
			if !ast.Truthy(f.pop()) {
				f.pc = in.Target
			}

		case compiler.BEGIN_GROUP:
			f.groups = append(f.groups, &ConditionTrace{
				Expression: string(in.Group),
				Group:      string(in.Group),
			})

		case compiler.END_GROUP:
			result := ast.Truthy(f.pop())
			if in.Negate {
				result = !result
			}
			g := f.groups[len(f.groups)-1]
			f.groups = f.groups[:len(f.groups)-1]
			g.Result = result
			g.Negated = in.Negate
			f.addCond(g)
			f.push(result)

		case compiler.CONCLUDE:
			ct := &ConclusionTrace{Expression: in.Expr}
			if in.Default {
				ct.Matched = true
			} else {
				ct.Matched = ast.Truthy(f.peek())
			}
			f.conclusions = append(f.conclusions, ct)
			f.conds = nil

		case compiler.BEGIN_STEP:
			if err := vm.beginStep(st, f, in.Ident); err != nil {
				return err
			}

		case compiler.CHECK_EVENT_TYPE:
			if st.eventType != in.Ident {
				f.skipped = true
				f.pc = len(f.prog.Instructions)
			}

		case compiler.CALL_RULE:
			prog, ok := vm.set.Rules[in.Ident]
			if !ok {
				return logging.NewError(logging.ErrorTypeRuntime, "missing rule program", nil,
					map[string]interface{}{"rule": in.Ident})
			}
			frames = append(frames, newFrame(prog))

		case compiler.CALL_RULESET:
			prog, ok := vm.set.Rulesets[in.Ident]
			if !ok {
				return logging.NewError(logging.ErrorTypeRuntime, "missing ruleset program", nil,
					map[string]interface{}{"ruleset": in.Ident})
			}
			frames = append(frames, newFrame(prog))

		case compiler.ADD_SCORE:
			f.scoreDelta += in.Score

		case compiler.MARK_TRIGGERED:
			f.triggered = true
			f.ruleReason = in.Reason
			f.ruleActions = in.Actions

		case compiler.SET_SIGNAL:
			f.setSignal = in.Signal
			f.setReason = in.Reason
			f.setActions = in.Actions
			f.terminate = in.Terminate
			if n := len(f.conclusions); n > 0 {
				f.conclusions[n-1].Signal = in.Signal
				f.conclusions[n-1].Reason = in.Reason
			}
			f.pc = len(f.prog.Instructions)

		case compiler.SET_RESULT:
			if in.Signal != "" {
				st.signal = in.Signal
			}
			st.actions = append(st.actions, in.Actions...)

		case compiler.RETURN, compiler.HALT:
			f.pc = len(f.prog.Instructions)

		default:
			return logging.NewError(logging.ErrorTypeRuntime, "unknown opcode", nil,
				map[string]interface{}{"opcode": in.Op.String()})
		}
	}
	return nil
}

func parentOf(frames []*frame) *frame {
	if len(frames) == 0 {
		return nil
	}
	return frames[len(frames)-1]
}

func (vm *VM) beginStep(st *execState, f *frame, stepID string) error {
	st.stepsExecuted++
	if st.stepsExecuted > maxStepExecutions {
		return logging.NewError(logging.ErrorTypeRuntime, "step budget exceeded", nil,
			map[string]interface{}{"pipeline": f.prog.ID, "step": stepID})
	}
	now := time.Now()
	if f.curStep != nil {
		f.curStep.Conditions = f.takeConds()
		f.curStep.ElapsedMs = elapsedMs(f.stepStart, now)
	} else if st.trace != nil {
		st.trace.Gate = f.takeConds()
	}
	if st.trace != nil {
		f.curStep = st.trace.stepByID(stepID)
		if f.curStep != nil {
			f.curStep.Executed = true
		}
	}
	f.stepStart = now
	return nil
}

// listLookup evaluates one managed-list membership check. A nil value
// can never be a member, so the adapter is not consulted for it.
func (vm *VM) listLookup(st *execState, f *frame, in compiler.Instruction) (bool, error) {
	value := f.pop()
	if value == nil {
		result := in.Negate
		f.addCond(&ConditionTrace{Expression: in.Expr, Left: value, Result: result})
		return result, nil
	}
	if vm.lists == nil {
		return false, logging.NewError(logging.ErrorTypeAdapter, "no list adapter configured", nil,
			map[string]interface{}{"list": in.Ident})
	}
	res, err := vm.lists.Contains(st.ctx, in.Ident, stringify(value))
	if err != nil {
		metrics.ListLookups.WithLabelValues(in.Ident, "error").Inc()
		return false, Retryable(logging.NewError(logging.ErrorTypeAdapter, "list lookup failed", err,
			map[string]interface{}{"list": in.Ident}))
	}
	if res.Found {
		metrics.ListLookups.WithLabelValues(in.Ident, "hit").Inc()
	} else {
		metrics.ListLookups.WithLabelValues(in.Ident, "miss").Inc()
	}
	result := res.Found != in.Negate
	f.addCond(&ConditionTrace{Expression: in.Expr, Left: value, Result: result})
	return result, nil
}

// finalize folds a finished frame into its parent.
func (vm *VM) finalize(st *execState, f *frame, parent *frame) {
	switch f.prog.Kind {
	case compiler.KindRule:
		score := 0
		if f.triggered {
			score = f.scoreDelta
			st.triggered = append(st.triggered, TriggeredRule{
				RuleID: f.prog.ID,
				Reason: f.ruleReason,
				Score:  score,
			})
			if f.ruleReason != "" {
				st.reasons = append(st.reasons, f.ruleReason)
			}
			st.actions = append(st.actions, f.ruleActions...)
		}
		rt := &RuleTrace{
			RuleID:    f.prog.ID,
			Name:      f.prog.Name,
			Triggered: f.triggered,
			Score:     score,
			Reason:    f.ruleReason,
			ElapsedMs: elapsedMs(f.start, time.Now()),
		}
		if conds := f.takeConds(); len(conds) == 1 {
			rt.Condition = conds[0]
		} else if len(conds) > 1 {
			rt.Condition = &ConditionTrace{Group: string(ast.GroupAll), Children: conds, Result: f.triggered}
		}
		if parent != nil && parent.prog.Kind == compiler.KindRuleset {
			parent.ruleTraces = append(parent.ruleTraces, rt)
			if f.triggered {
				switch parent.prog.Aggregate {
				case ast.AggregateMax:
					if score > parent.rawScore {
						parent.rawScore = score
					}
				default:
					parent.rawScore += score
				}
			}
		}

	case compiler.KindRuleset:
		signal := f.setSignal
		if signal == "" && !f.skipped {
			signal = ast.SignalApprove
		}
		if !f.skipped {
			st.signal = signal
			st.raw = f.rawScore
			if f.setReason != "" {
				st.reasons = append(st.reasons, f.setReason)
			}
			st.actions = append(st.actions, f.setActions...)
			if f.terminate {
				st.terminated = true
				if parent != nil && parent.prog.Kind == compiler.KindPipeline {
					parent.pc = len(parent.prog.Instructions) - 1
				}
			}
		}
		rst := &RulesetTrace{
			RulesetID:   f.prog.ID,
			Aggregate:   f.prog.Aggregate,
			RawScore:    f.rawScore,
			Signal:      signal,
			Rules:       f.ruleTraces,
			Conclusions: f.conclusions,
			ElapsedMs:   elapsedMs(f.start, time.Now()),
		}
		if parent != nil && parent.prog.Kind == compiler.KindPipeline && parent.curStep != nil {
			parent.curStep.Ruleset = rst
		}

	case compiler.KindPipeline:
		now := time.Now()
		if f.curStep != nil {
			f.curStep.Conditions = f.takeConds()
			f.curStep.ElapsedMs = elapsedMs(f.stepStart, now)
		} else if st.trace != nil {
			// A false gate ends the run before any BEGIN_STEP drains the
			// gate conditions, so collect them here.
			st.trace.Gate = append(st.trace.Gate, f.takeConds()...)
		}
		if st.trace != nil {
			st.trace.Skipped = f.skipped
			st.trace.ElapsedMs = elapsedMs(f.start, now)
		}
	}
}

func elapsedMs(from, to time.Time) float64 {
	return float64(to.Sub(from).Microseconds()) / 1000.0
}

// compare evaluates one binary comparison. Operand type mismatches are
// not errors: the comparison is simply false.
func compare(left interface{}, op ast.Operator, right interface{}) bool {
	switch op {
	case ast.OpEq:
		return ast.Equal(left, right)
	case ast.OpNeq:
		return !ast.Equal(left, right)
	case ast.OpGt, ast.OpGte, ast.OpLt, ast.OpLte:
		return compareOrdered(left, op, right)
	case ast.OpContains, ast.OpStartsWith, ast.OpEndsWith:
		return compareString(left, op, right)
	case ast.OpIn:
		return member(left, right)
	case ast.OpNotIn:
		if _, ok := right.([]interface{}); !ok {
			return false
		}
		return !member(left, right)
	}
	return false
}

func compareOrdered(left interface{}, op ast.Operator, right interface{}) bool {
	if ln, ok := ast.AsNumber(left); ok {
		rn, ok := ast.AsNumber(right)
		if !ok {
			return false
		}
		switch op {
		case ast.OpGt:
			return ln > rn
		case ast.OpGte:
			return ln >= rn
		case ast.OpLt:
			return ln < rn
		case ast.OpLte:
			return ln <= rn
		}
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		switch op {
		case ast.OpGt:
			return ls > rs
		case ast.OpGte:
			return ls >= rs
		case ast.OpLt:
			return ls < rs
		case ast.OpLte:
			return ls <= rs
		}
	}
	return false
}

func compareString(left interface{}, op ast.Operator, right interface{}) bool {
	ls, lok := left.(string)
	rs, rok := right.(string)
	if !lok || !rok {
		return false
	}
	switch op {
	case ast.OpContains:
		return strings.Contains(ls, rs)
	case ast.OpStartsWith:
		return strings.HasPrefix(ls, rs)
	case ast.OpEndsWith:
		return strings.HasSuffix(ls, rs)
	}
	return false
}

func member(needle, haystack interface{}) bool {
	items, ok := haystack.([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if ast.Equal(needle, item) {
			return true
		}
	}
	return false
}

// stringify renders a value into its list-membership key form.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	}
	if n, ok := ast.AsNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
