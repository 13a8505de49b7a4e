// verdict/pkg/compiler/compiler.go

package compiler

import (
	"calder/verdict/pkg/ast"
	"calder/verdict/pkg/logging"
)

// Options adjusts compilation.
type Options struct {
	// KnownLists names the managed lists the expressions may reference.
	// When nil the check is skipped, which is only appropriate for
	// offline linting without a list service at hand.
	KnownLists []string
}

// CompiledSet is the immutable output of one compilation run: every
// definition lowered to a program, plus the event-type routing table.
type CompiledSet struct {
	Rules     map[string]*Program
	Rulesets  map[string]*Program
	Pipelines map[string]*Program

	// Routes maps an event type to the pipeline that handles it.
	Routes map[string]string

	// PipelineOrder preserves declaration order for deterministic
	// iteration.
	PipelineOrder []string
}

// Compile lowers a resolved document set. Compilation is all-or-nothing:
// any invalid reference fails the whole run and leaves nothing partially
// built.
func Compile(doc *ast.ResolvedDocument, opts Options) (*CompiledSet, error) {
	var lists map[string]bool
	if opts.KnownLists != nil {
		lists = make(map[string]bool, len(opts.KnownLists))
		for _, id := range opts.KnownLists {
			lists[id] = true
		}
	}

	set := &CompiledSet{
		Rules:     make(map[string]*Program, len(doc.Rules)),
		Rulesets:  make(map[string]*Program, len(doc.Rulesets)),
		Pipelines: make(map[string]*Program, len(doc.Pipelines)),
		Routes:    make(map[string]string, len(doc.Registry)),
	}

	for _, r := range doc.Rules {
		prog, err := compileRule(r, lists)
		if err != nil {
			return nil, compileErr("rule", r.ID, err)
		}
		set.Rules[r.ID] = prog
	}
	for _, rs := range doc.Rulesets {
		prog, err := compileRuleset(rs, doc, lists)
		if err != nil {
			return nil, compileErr("ruleset", rs.ID, err)
		}
		set.Rulesets[rs.ID] = prog
	}
	for _, p := range doc.Pipelines {
		prog, err := compilePipeline(p, doc, lists)
		if err != nil {
			return nil, compileErr("pipeline", p.ID, err)
		}
		set.Pipelines[p.ID] = prog
		set.PipelineOrder = append(set.PipelineOrder, p.ID)
	}
	for _, entry := range doc.Registry {
		if _, ok := set.Pipelines[entry.Pipeline]; !ok {
			return nil, &UnknownReferenceError{Kind: "pipeline", ID: entry.Pipeline, From: "registry"}
		}
		set.Routes[entry.EventType] = entry.Pipeline
	}
	return set, nil
}

// CompileSources resolves the entry documents through the loader and
// compiles the result in one step.
func CompileSources(loader Loader, entries []string, opts Options) (*CompiledSet, error) {
	doc, err := NewResolver(loader).Resolve(entries...)
	if err != nil {
		return nil, err
	}
	return Compile(doc, opts)
}

func compileErr(kind, id string, err error) error {
	switch err.(type) {
	case *UnknownReferenceError, *DuplicateIdentifierError, *SelfLoopError, *ParseError:
		return err
	}
	return logging.NewError(logging.ErrorTypeCompile, "failed to compile "+kind, err,
		map[string]interface{}{kind: id})
}
