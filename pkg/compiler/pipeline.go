// verdict/pkg/compiler/pipeline.go

package compiler

import (
	"github.com/rs/zerolog/log"

	"calder/verdict/pkg/ast"
)

// compilePipeline lowers a pipeline's step graph to one flat program.
// Every step body ends in an explicit jump, so declaration order never
// influences control flow.
func compilePipeline(p *ast.Pipeline, doc *ast.ResolvedDocument, lists map[string]bool) (*Program, error) {
	steps := make(map[string]*ast.Step, len(p.Steps))
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.ID == ast.StepEnd {
			return nil, &DuplicateIdentifierError{Kind: "step", ID: ast.StepEnd}
		}
		if _, ok := steps[s.ID]; ok {
			return nil, &DuplicateIdentifierError{Kind: "step", ID: s.ID}
		}
		steps[s.ID] = s
	}

	if err := checkStepGraph(p, steps); err != nil {
		return nil, err
	}

	em := newEmitter()
	ec := &exprCompiler{em: em, scope: scopeAggregate, lists: lists, from: p.ID}

	if p.When.EventType != "" {
		em.emit(Instruction{Op: CHECK_EVENT_TYPE, Ident: p.When.EventType})
	}
	if p.When.Condition != nil {
		gate := &exprCompiler{em: em, scope: scopeEvent, lists: lists, from: p.ID}
		if err := gate.compile(p.When.Condition); err != nil {
			return nil, err
		}
		em.branch(JUMP_IF_FALSE, stepLabel(ast.StepEnd))
	}
	em.branch(JUMP, stepLabel(p.Entry))

	for i := range p.Steps {
		s := &p.Steps[i]
		em.bind(stepLabel(s.ID))
		em.emit(Instruction{Op: BEGIN_STEP, Ident: s.ID})

		switch s.Type {
		case ast.StepRouter:
			for _, rt := range s.Routes {
				if err := ec.compile(rt.When); err != nil {
					return nil, err
				}
				em.branch(JUMP_IF_TRUE, stepLabel(rt.Next))
			}
			em.branch(JUMP, stepLabel(fallback(s.Default)))

		case ast.StepRuleset:
			if doc.RulesetByID(s.Ruleset) == nil {
				return nil, &UnknownReferenceError{Kind: "ruleset", ID: s.Ruleset, From: p.ID}
			}
			em.emit(Instruction{Op: CALL_RULESET, Ident: s.Ruleset})
			for _, rt := range s.Routes {
				if err := ec.compile(rt.When); err != nil {
					return nil, err
				}
				em.branch(JUMP_IF_TRUE, stepLabel(rt.Next))
			}
			next := s.Default
			if next == "" {
				next = s.Next
			}
			em.branch(JUMP, stepLabel(fallback(next)))

		case ast.StepAction:
			em.emit(Instruction{Op: SET_RESULT, Signal: s.Result, Actions: s.Actions})
			em.branch(JUMP, stepLabel(fallback(s.Next)))
		}
	}

	em.bind(stepLabel(ast.StepEnd))
	em.emit(Instruction{Op: HALT})

	ins, err := em.finish()
	if err != nil {
		return nil, err
	}

	prog := &Program{
		ID:           p.ID,
		Kind:         KindPipeline,
		Name:         p.Name,
		Description:  p.Description,
		Instructions: ins,
		Targets:      make(map[string]int, len(p.Steps)),
	}
	for i := range p.Steps {
		s := &p.Steps[i]
		prog.Targets[s.ID] = em.labels[stepLabel(s.ID)]
		prog.Steps = append(prog.Steps, StepInfo{ID: s.ID, Type: s.Type, Ruleset: s.Ruleset})
	}
	return prog, nil
}

func stepLabel(id string) string { return "step:" + id }

// fallback maps an empty successor to the pipeline end.
func fallback(next string) string {
	if next == "" {
		return ast.StepEnd
	}
	return next
}

// checkStepGraph validates successor references, rejects steps that can
// only ever transfer control back to themselves, and confirms the entry
// step exists. Steps unreachable from the entry compile but are flagged.
func checkStepGraph(p *ast.Pipeline, steps map[string]*ast.Step) error {
	if _, ok := steps[p.Entry]; !ok {
		return &UnknownReferenceError{Kind: "step", ID: p.Entry, From: p.ID}
	}
	for i := range p.Steps {
		s := &p.Steps[i]
		succ := s.Successors()
		for _, next := range succ {
			if next == ast.StepEnd {
				continue
			}
			if _, ok := steps[next]; !ok {
				return &UnknownReferenceError{Kind: "step", ID: next, From: p.ID + "/" + s.ID}
			}
		}
		if len(succ) > 0 {
			self := true
			for _, next := range succ {
				if next != s.ID {
					self = false
					break
				}
			}
			if self {
				return &SelfLoopError{Pipeline: p.ID, Step: s.ID}
			}
		}
	}

	reachable := map[string]bool{p.Entry: true}
	queue := []string{p.Entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range steps[id].Successors() {
			if next == ast.StepEnd || reachable[next] {
				continue
			}
			reachable[next] = true
			queue = append(queue, next)
		}
	}
	for i := range p.Steps {
		if !reachable[p.Steps[i].ID] {
			log.Warn().
				Str("pipeline", p.ID).
				Str("step", p.Steps[i].ID).
				Msg("Step is unreachable from the pipeline entry")
		}
	}
	return nil
}
