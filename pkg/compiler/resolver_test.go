// verdict/pkg/compiler/resolver_test.go

package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calder/verdict/pkg/ast"
)

func TestResolveFollowsImports(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"pipelines/main.yaml": `
imports:
  rulesets:
    - rulesets/txn.yaml
pipeline:
  id: main
  steps:
    - id: score
      type: ruleset
      ruleset: txn
`,
		"rulesets/txn.yaml": `
imports:
  rules:
    - rules/high.yaml
ruleset:
  id: txn
  rules: [high]
`,
		"rules/high.yaml": `
rule:
  id: high
  when:
    conditions: amount > 1000
  score: 40
`,
	}}

	doc, err := NewResolver(loader).Resolve("pipelines/main.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Rules, 1)
	require.Len(t, doc.Rulesets, 1)
	require.Len(t, doc.Pipelines, 1)
	assert.NotNil(t, doc.RuleByID("high"))
	assert.NotNil(t, doc.RulesetByID("txn"))
}

// A document imported along two paths is loaded once and defines its
// contents once.
func TestResolveDiamondImport(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"a.yaml": `
imports:
  rulesets: [b.yaml, c.yaml]
pipeline:
  id: a
  steps:
    - id: s1
      type: ruleset
      ruleset: b
`,
		"b.yaml": `
imports:
  rules: [shared.yaml]
ruleset:
  id: b
  rules: [shared]
`,
		"c.yaml": `
imports:
  rules: [shared.yaml]
ruleset:
  id: c
  rules: [shared]
`,
		"shared.yaml": `
rule:
  id: shared
  score: 10
`,
	}}

	doc, err := NewResolver(loader).Resolve("a.yaml")
	require.NoError(t, err)
	assert.Len(t, doc.Rules, 1)
	assert.Len(t, doc.Rulesets, 2)
}

func TestResolveCircularImport(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"a.yaml": `
imports:
  rulesets: [b.yaml]
ruleset:
  id: a
`,
		"b.yaml": `
imports:
  rulesets: [a.yaml]
ruleset:
  id: b
`,
	}}

	_, err := NewResolver(loader).Resolve("a.yaml")
	require.Error(t, err)
	var circ *CircularDependencyError
	require.ErrorAs(t, err, &circ)
	assert.Equal(t, []string{"a.yaml", "b.yaml", "a.yaml"}, circ.Chain)
}

func TestResolveDuplicateIdentifier(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"a.yaml": `
imports:
  rules: [r1.yaml, r2.yaml]
ruleset:
  id: a
  rules: [dup]
`,
		"r1.yaml": `
rule:
  id: dup
  score: 1
`,
		"r2.yaml": `
rule:
  id: dup
  score: 2
`,
	}}

	_, err := NewResolver(loader).Resolve("a.yaml")
	require.Error(t, err)
	var dup *DuplicateIdentifierError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "dup", dup.ID)
}

func TestResolveExtendsMerge(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"child.yaml": `
imports:
  rulesets: [parent.yaml]
ruleset:
  id: child
  extends: parent
  rules: [extra, shared]
`,
		"parent.yaml": `
ruleset:
  id: parent
  aggregate: max
  rules: [shared, base]
  conclusion:
    - when: score >= 100
      signal: REVIEW
`,
	}}

	doc, err := NewResolver(loader).Resolve("child.yaml")
	require.NoError(t, err)

	child := doc.RulesetByID("child")
	require.NotNil(t, child)
	// Child-declared rules keep their order; inherited ones follow.
	assert.Equal(t, []string{"extra", "shared", "base"}, child.Rules)
	assert.Equal(t, ast.AggregateMax, child.Aggregate)
	require.Len(t, child.Conclusion, 1)
	assert.Equal(t, ast.SignalReview, child.Conclusion[0].Signal)
	assert.Empty(t, child.Extends)
}

func TestResolveExtendsCycle(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"a.yaml": `
imports:
  rulesets: [b.yaml]
ruleset:
  id: a
  extends: b
`,
		"b.yaml": `
ruleset:
  id: b
  extends: a
`,
	}}

	_, err := NewResolver(loader).Resolve("a.yaml")
	require.Error(t, err)
	var circ *CircularDependencyError
	assert.ErrorAs(t, err, &circ)
}

func TestResolveExtendsUnknownParent(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"a.yaml": `
ruleset:
  id: a
  extends: ghost
`,
	}}

	_, err := NewResolver(loader).Resolve("a.yaml")
	require.Error(t, err)
	var unknown *UnknownReferenceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.ID)
}

func TestResolveTemplateInstantiation(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"rs.yaml": `
imports:
  templates: [tpl.yaml]
ruleset:
  id: rs
  template: standard
  template_params:
    decline_at: 700
`,
		"tpl.yaml": `
template:
  id: standard
  params:
    decline_at: 600
    review_at: 300
  conclusion:
    - when: score >= params.decline_at
      signal: DECLINE
    - when: score >= params.review_at
      signal: REVIEW
`,
	}}

	doc, err := NewResolver(loader).Resolve("rs.yaml")
	require.NoError(t, err)

	rs := doc.RulesetByID("rs")
	require.NotNil(t, rs)
	require.Len(t, rs.Conclusion, 2)

	// Supplied params override template defaults.
	decline := rs.Conclusion[0].When
	require.Equal(t, ast.ExprBinary, decline.Kind)
	assert.Equal(t, 700, decline.Right.Literal)

	// Unsupplied params fall back to the template default.
	review := rs.Conclusion[1].When
	assert.Equal(t, 300, review.Right.Literal)
	assert.Empty(t, rs.Template)
}

func TestResolveUnknownTemplate(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"rs.yaml": `
ruleset:
  id: rs
  template: ghost
`,
	}}

	_, err := NewResolver(loader).Resolve("rs.yaml")
	require.Error(t, err)
	var unknown *UnknownTemplateError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Template)
}

func TestResolveUnboundTemplateParam(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"rs.yaml": `
imports:
  templates: [tpl.yaml]
ruleset:
  id: rs
  template: standard
`,
		"tpl.yaml": `
template:
  id: standard
  conclusion:
    - when: score >= params.threshold
      signal: DECLINE
`,
	}}

	_, err := NewResolver(loader).Resolve("rs.yaml")
	assert.Error(t, err)
}

func TestResolveAppliesAggregateDefault(t *testing.T) {
	loader := &MemoryLoader{Files: map[string]string{
		"rs.yaml": `
ruleset:
  id: rs
`,
	}}

	doc, err := NewResolver(loader).Resolve("rs.yaml")
	require.NoError(t, err)
	assert.Equal(t, ast.AggregateSum, doc.RulesetByID("rs").Aggregate)
}
