// verdict/pkg/ast/document.go

package ast

// Imports declares the external sources a document depends on, by path
// relative to the repository root.
type Imports struct {
	Rules     []string
	Rulesets  []string
	Templates []string
	Pipelines []string
}

// IsEmpty reports whether the document declares no imports at all.
func (i Imports) IsEmpty() bool {
	return len(i.Rules) == 0 && len(i.Rulesets) == 0 &&
		len(i.Templates) == 0 && len(i.Pipelines) == 0
}

// Document is one parsed source file: an optional imports section plus at
// most one definition of each kind.
type Document struct {
	Version  string
	Imports  Imports
	Rule     *Rule
	Ruleset  *Ruleset
	Template *DecisionTemplate
	Pipeline *Pipeline
	Registry []RegistryEntry
}

// ResolvedDocument is the closed, deduplicated output of import
// resolution, ready for compilation. Slices preserve first-seen order so
// compilation of the same sources is deterministic.
type ResolvedDocument struct {
	Rules     []*Rule
	Rulesets  []*Ruleset
	Templates []*DecisionTemplate
	Pipelines []*Pipeline
	Registry  []RegistryEntry
}

// RuleByID returns the named rule, or nil.
func (d *ResolvedDocument) RuleByID(id string) *Rule {
	for _, r := range d.Rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// RulesetByID returns the named ruleset, or nil.
func (d *ResolvedDocument) RulesetByID(id string) *Ruleset {
	for _, rs := range d.Rulesets {
		if rs.ID == id {
			return rs
		}
	}
	return nil
}

// TemplateByID returns the named decision template, or nil.
func (d *ResolvedDocument) TemplateByID(id string) *DecisionTemplate {
	for _, t := range d.Templates {
		if t.ID == id {
			return t
		}
	}
	return nil
}
