// verdict/pkg/compiler/resolver.go

package compiler

import (
	"path"

	"github.com/rs/zerolog/log"

	"calder/verdict/pkg/ast"
)

// Resolver loads a document graph through a Loader, follows imports
// depth-first, and produces one closed ResolvedDocument. Each Resolve
// call uses a fresh per-invocation cache, so a document imported along
// several paths is read and parsed once.
type Resolver struct {
	loader Loader
}

// NewResolver returns a resolver backed by the given loader.
func NewResolver(loader Loader) *Resolver {
	return &Resolver{loader: loader}
}

// Resolve loads the entry documents and everything they import, merges
// ruleset inheritance, instantiates decision templates and returns the
// closed definition set. Definitions appear in first-seen, post-order
// position so repeated runs over identical sources yield identical
// output.
func (r *Resolver) Resolve(entries ...string) (*ast.ResolvedDocument, error) {
	st := &resolveState{
		loader: r.loader,
		loaded: make(map[string]*ast.Document),
		seen:   make(map[string]string),
		out:    &ast.ResolvedDocument{},
	}
	for _, entry := range entries {
		if err := st.visit(path.Clean(entry)); err != nil {
			return nil, err
		}
	}
	if err := st.mergeExtends(); err != nil {
		return nil, err
	}
	if err := st.instantiateTemplates(); err != nil {
		return nil, err
	}
	for _, rs := range st.out.Rulesets {
		if rs.Aggregate == "" {
			rs.Aggregate = ast.AggregateSum
		}
	}
	log.Debug().
		Int("rules", len(st.out.Rules)).
		Int("rulesets", len(st.out.Rulesets)).
		Int("pipelines", len(st.out.Pipelines)).
		Msg("Resolved document graph")
	return st.out, nil
}

type resolveState struct {
	loader Loader
	loaded map[string]*ast.Document

	// stack is the chain of documents currently being loaded, used to
	// report import cycles with their full path.
	stack []string

	// seen maps "kind/id" to the path that first declared it.
	seen map[string]string

	out *ast.ResolvedDocument
}

func (st *resolveState) visit(p string) error {
	for i, onStack := range st.stack {
		if onStack == p {
			chain := append(append([]string{}, st.stack[i:]...), p)
			return &CircularDependencyError{Chain: chain}
		}
	}
	if _, ok := st.loaded[p]; ok {
		return nil
	}

	data, err := st.loader.Read(p)
	if err != nil {
		return &ParseError{Path: p, Message: err.Error()}
	}
	doc, err := ParseDocument(p, data)
	if err != nil {
		return err
	}

	st.stack = append(st.stack, p)
	defer func() { st.stack = st.stack[:len(st.stack)-1] }()

	imports := make([]string, 0,
		len(doc.Imports.Rules)+len(doc.Imports.Rulesets)+
			len(doc.Imports.Templates)+len(doc.Imports.Pipelines))
	imports = append(imports, doc.Imports.Rules...)
	imports = append(imports, doc.Imports.Rulesets...)
	imports = append(imports, doc.Imports.Templates...)
	imports = append(imports, doc.Imports.Pipelines...)
	for _, imp := range imports {
		if err := st.visit(path.Clean(imp)); err != nil {
			return err
		}
	}

	st.loaded[p] = doc
	return st.register(p, doc)
}

// register adds a document's definitions to the output. Identity is the
// declared id, not the source path: two files declaring the same id
// conflict even when their content matches.
func (st *resolveState) register(p string, doc *ast.Document) error {
	if doc.Rule != nil {
		if err := st.claim("rule", doc.Rule.ID, p); err != nil {
			return err
		}
		st.out.Rules = append(st.out.Rules, doc.Rule)
	}
	if doc.Ruleset != nil {
		if err := st.claim("ruleset", doc.Ruleset.ID, p); err != nil {
			return err
		}
		st.out.Rulesets = append(st.out.Rulesets, doc.Ruleset)
	}
	if doc.Template != nil {
		if err := st.claim("template", doc.Template.ID, p); err != nil {
			return err
		}
		st.out.Templates = append(st.out.Templates, doc.Template)
	}
	if doc.Pipeline != nil {
		if err := st.claim("pipeline", doc.Pipeline.ID, p); err != nil {
			return err
		}
		st.out.Pipelines = append(st.out.Pipelines, doc.Pipeline)
	}
	for _, entry := range doc.Registry {
		if err := st.claim("registry entry", entry.EventType, p); err != nil {
			return err
		}
		st.out.Registry = append(st.out.Registry, entry)
	}
	return nil
}

func (st *resolveState) claim(kind, id, p string) error {
	key := kind + "/" + id
	if _, ok := st.seen[key]; ok {
		return &DuplicateIdentifierError{Kind: kind, ID: id}
	}
	st.seen[key] = p
	return nil
}

// mergeExtends folds each ruleset's single parent into it. Chains are
// followed to the root; a ruleset reachable from itself via extends is a
// cycle.
func (st *resolveState) mergeExtends() error {
	merged := make(map[string]bool)
	var merge func(rs *ast.Ruleset, chain []string) error
	merge = func(rs *ast.Ruleset, chain []string) error {
		if merged[rs.ID] || rs.Extends == "" {
			merged[rs.ID] = true
			return nil
		}
		for _, id := range chain {
			if id == rs.ID {
				return &CircularDependencyError{Chain: append(chain, rs.ID)}
			}
		}
		parent := st.out.RulesetByID(rs.Extends)
		if parent == nil {
			return &UnknownReferenceError{Kind: "ruleset", ID: rs.Extends, From: rs.ID}
		}
		if err := merge(parent, append(chain, rs.ID)); err != nil {
			return err
		}
		mergeRulesetInto(rs, parent)
		merged[rs.ID] = true
		return nil
	}
	for _, rs := range st.out.Rulesets {
		if err := merge(rs, nil); err != nil {
			return err
		}
	}
	return nil
}

// mergeRulesetInto applies single-parent inheritance: the child keeps
// everything it declares and inherits the rest. Member rules keep child
// order first, then the parent's rules it did not restate.
func mergeRulesetInto(child, parent *ast.Ruleset) {
	if child.Name == "" {
		child.Name = parent.Name
	}
	if child.Description == "" {
		child.Description = parent.Description
	}
	if child.Aggregate == "" {
		child.Aggregate = parent.Aggregate
	}
	have := make(map[string]bool, len(child.Rules))
	for _, id := range child.Rules {
		have[id] = true
	}
	for _, id := range parent.Rules {
		if !have[id] {
			child.Rules = append(child.Rules, id)
		}
	}
	if len(child.Conclusion) == 0 {
		child.Conclusion = append([]ast.ConclusionClause{}, parent.Conclusion...)
	}
	if child.Template == "" {
		child.Template = parent.Template
		if child.TemplateParams == nil {
			child.TemplateParams = parent.TemplateParams
		}
	}
	child.Extends = ""
}

// instantiateTemplates appends each referenced template's conclusion
// clauses to the referencing ruleset, with params.<name> references
// replaced by the supplied values. The ruleset's own clauses keep
// precedence by staying first.
func (st *resolveState) instantiateTemplates() error {
	for _, rs := range st.out.Rulesets {
		if rs.Template == "" {
			continue
		}
		tpl := st.out.TemplateByID(rs.Template)
		if tpl == nil {
			return &UnknownTemplateError{Ruleset: rs.ID, Template: rs.Template}
		}
		params := make(map[string]interface{}, len(tpl.Params)+len(rs.TemplateParams))
		for k, v := range tpl.Params {
			params[k] = v
		}
		for k, v := range rs.TemplateParams {
			params[k] = v
		}
		for _, clause := range tpl.Conclusion {
			inst := clause
			inst.Actions = append([]string{}, clause.Actions...)
			if clause.When != nil {
				expr, err := substituteParams(clause.When, params, rs.ID, tpl.ID)
				if err != nil {
					return err
				}
				inst.When = expr
			}
			rs.Conclusion = append(rs.Conclusion, inst)
		}
		rs.Template = ""
		rs.TemplateParams = nil
	}
	return nil
}

// substituteParams returns a copy of the expression with every
// params.<name> field reference replaced by its bound value.
func substituteParams(e *ast.Expression, params map[string]interface{}, rsID, tplID string) (*ast.Expression, error) {
	switch e.Kind {
	case ast.ExprField:
		if len(e.Path) == 2 && e.Path[0] == "params" {
			v, ok := params[e.Path[1]]
			if !ok {
				return nil, &ParseError{Message: "ruleset " + rsID + ": template " + tplID +
					" parameter " + e.Path[1] + " is not bound"}
			}
			return ast.NewLiteral(v), nil
		}
		return e, nil
	case ast.ExprBinary:
		left, err := substituteParams(e.Left, params, rsID, tplID)
		if err != nil {
			return nil, err
		}
		right, err := substituteParams(e.Right, params, rsID, tplID)
		if err != nil {
			return nil, err
		}
		return ast.NewBinary(left, e.Op, right), nil
	case ast.ExprGroup:
		children := make([]*ast.Expression, len(e.Children))
		for i, c := range e.Children {
			sub, err := substituteParams(c, params, rsID, tplID)
			if err != nil {
				return nil, err
			}
			children[i] = sub
		}
		g := ast.NewGroup(e.GroupOp, children...)
		g.Negate = e.Negate
		return g, nil
	default:
		return e, nil
	}
}
