// verdict/pkg/compiler/parser.go

package compiler

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"calder/verdict/pkg/ast"
	"calder/verdict/pkg/logging"
)

// conditionNode decodes the condition grammar: a scalar expression
// string, a mapping with a single all/any/not key over a sequence of
// child conditions, or a bare sequence treated as an implicit all.
type conditionNode struct {
	expr *ast.Expression
}

func (c *conditionNode) UnmarshalYAML(node *yaml.Node) error {
	expr, err := decodeCondition(node)
	if err != nil {
		return err
	}
	c.expr = expr
	return nil
}

func decodeCondition(node *yaml.Node) (*ast.Expression, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		var src string
		if err := node.Decode(&src); err != nil {
			return nil, err
		}
		return ParseExpression(src)

	case yaml.SequenceNode:
		children, err := decodeConditionSeq(node)
		if err != nil {
			return nil, err
		}
		return ast.NewGroup(ast.GroupAll, children...), nil

	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return nil, fmt.Errorf("line %d: condition block must have exactly one of all, any, not", node.Line)
		}
		key := node.Content[0].Value
		children, err := decodeConditionSeq(node.Content[1])
		if err != nil {
			return nil, err
		}
		switch key {
		case "all":
			return ast.NewGroup(ast.GroupAll, children...), nil
		case "any":
			return ast.NewGroup(ast.GroupAny, children...), nil
		case "not":
			g := ast.NewGroup(ast.GroupAll, children...)
			g.Negate = true
			return g, nil
		default:
			return nil, fmt.Errorf("line %d: unknown condition block %q", node.Line, key)
		}
	}
	return nil, fmt.Errorf("line %d: invalid condition node", node.Line)
}

func decodeConditionSeq(node *yaml.Node) ([]*ast.Expression, error) {
	if node.Kind != yaml.SequenceNode {
		// A single nested condition is accepted where a list is expected.
		child, err := decodeCondition(node)
		if err != nil {
			return nil, err
		}
		return []*ast.Expression{child}, nil
	}
	children := make([]*ast.Expression, 0, len(node.Content))
	for _, item := range node.Content {
		child, err := decodeCondition(item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

type whenYAML struct {
	EventType  string         `yaml:"event_type"`
	Conditions *conditionNode `yaml:"conditions"`
}

func (w *whenYAML) toAST() ast.WhenBlock {
	if w == nil {
		return ast.WhenBlock{}
	}
	wb := ast.WhenBlock{EventType: w.EventType}
	if w.Conditions != nil {
		wb.Condition = w.Conditions.expr
	}
	return wb
}

type ruleYAML struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	When        *whenYAML `yaml:"when"`
	Score       int       `yaml:"score"`
	Reason      string   `yaml:"reason"`
	Actions     []string `yaml:"actions"`
}

type clauseYAML struct {
	When      string   `yaml:"when"`
	Default   bool     `yaml:"default"`
	Signal    string   `yaml:"signal"`
	Reason    string   `yaml:"reason"`
	Actions   []string `yaml:"actions"`
	Terminate bool     `yaml:"terminate"`
}

type rulesetYAML struct {
	ID             string                 `yaml:"id"`
	Name           string                 `yaml:"name"`
	Description    string                 `yaml:"description"`
	Extends        string                 `yaml:"extends"`
	Template       string                 `yaml:"template"`
	TemplateParams map[string]interface{} `yaml:"template_params"`
	Aggregate      string                 `yaml:"aggregate"`
	Rules          []string               `yaml:"rules"`
	Conclusion     []clauseYAML           `yaml:"conclusion"`
}

type templateYAML struct {
	ID          string                 `yaml:"id"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Params      map[string]interface{} `yaml:"params"`
	Conclusion  []clauseYAML           `yaml:"conclusion"`
}

type routeYAML struct {
	When string `yaml:"when"`
	Next string `yaml:"next"`
}

type stepYAML struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name"`
	Type    string      `yaml:"type"`
	Routes  []routeYAML `yaml:"routes"`
	Default string      `yaml:"default"`
	Ruleset string      `yaml:"ruleset"`
	Result  string      `yaml:"result"`
	Actions []string    `yaml:"actions"`
	Next    string      `yaml:"next"`
}

type pipelineYAML struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	When        *whenYAML  `yaml:"when"`
	Entry       string     `yaml:"entry"`
	Steps       []stepYAML `yaml:"steps"`
}

type registryYAML struct {
	EventType string `yaml:"event_type"`
	Pipeline  string `yaml:"pipeline"`
}

type documentYAML struct {
	Version  string         `yaml:"version"`
	Imports  ast.Imports    `yaml:"imports"`
	Rule     *ruleYAML      `yaml:"rule"`
	Ruleset  *rulesetYAML   `yaml:"ruleset"`
	Template *templateYAML  `yaml:"template"`
	Pipeline *pipelineYAML  `yaml:"pipeline"`
	Registry []registryYAML `yaml:"registry"`
}

// ParseDocument parses one YAML source document. The path is used only
// for error reporting.
func ParseDocument(path string, data []byte) (*ast.Document, error) {
	var raw documentYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, logging.NewError(logging.ErrorTypeParse, "failed to parse document", err,
			map[string]interface{}{"path": path})
	}

	doc := &ast.Document{
		Version: raw.Version,
		Imports: raw.Imports,
	}

	if raw.Rule != nil {
		r, err := convertRule(raw.Rule)
		if err != nil {
			return nil, wrapParse(path, err)
		}
		doc.Rule = r
	}
	if raw.Ruleset != nil {
		rs, err := convertRuleset(raw.Ruleset)
		if err != nil {
			return nil, wrapParse(path, err)
		}
		doc.Ruleset = rs
	}
	if raw.Template != nil {
		t, err := convertTemplate(raw.Template)
		if err != nil {
			return nil, wrapParse(path, err)
		}
		doc.Template = t
	}
	if raw.Pipeline != nil {
		p, err := convertPipeline(raw.Pipeline)
		if err != nil {
			return nil, wrapParse(path, err)
		}
		doc.Pipeline = p
	}
	for _, entry := range raw.Registry {
		if entry.EventType == "" || entry.Pipeline == "" {
			return nil, &ParseError{Path: path, Message: "registry entries need event_type and pipeline"}
		}
		doc.Registry = append(doc.Registry, ast.RegistryEntry{
			EventType: entry.EventType,
			Pipeline:  entry.Pipeline,
		})
	}
	return doc, nil
}

func wrapParse(path string, err error) error {
	if pe, ok := err.(*ParseError); ok && pe.Path == "" {
		pe.Path = path
		return pe
	}
	return &ParseError{Path: path, Message: err.Error()}
}

func convertRule(y *ruleYAML) (*ast.Rule, error) {
	if y.ID == "" {
		return nil, &ParseError{Message: "rule is missing an id"}
	}
	return &ast.Rule{
		ID:          y.ID,
		Name:        y.Name,
		Description: y.Description,
		When:        y.When.toAST(),
		Score:       y.Score,
		Reason:      y.Reason,
		Actions:     y.Actions,
	}, nil
}

func convertClauses(clauses []clauseYAML) ([]ast.ConclusionClause, error) {
	out := make([]ast.ConclusionClause, 0, len(clauses))
	for i, c := range clauses {
		clause := ast.ConclusionClause{
			Default:   c.Default,
			Signal:    strings.ToUpper(c.Signal),
			Reason:    c.Reason,
			Actions:   c.Actions,
			Terminate: c.Terminate,
		}
		if clause.Signal != "" && !ast.ValidSignal(clause.Signal) {
			return nil, &ParseError{Message: fmt.Sprintf("conclusion clause %d: unknown signal %q", i, c.Signal)}
		}
		if !c.Default {
			if c.When == "" {
				return nil, &ParseError{Message: fmt.Sprintf("conclusion clause %d needs when or default", i)}
			}
			expr, err := ParseExpression(c.When)
			if err != nil {
				return nil, err
			}
			clause.When = expr
		}
		out = append(out, clause)
	}
	return out, nil
}

func convertRuleset(y *rulesetYAML) (*ast.Ruleset, error) {
	if y.ID == "" {
		return nil, &ParseError{Message: "ruleset is missing an id"}
	}
	switch y.Aggregate {
	case "", ast.AggregateSum, ast.AggregateMax:
	default:
		return nil, &ParseError{Message: fmt.Sprintf("ruleset %q: unknown aggregate %q", y.ID, y.Aggregate)}
	}
	conclusion, err := convertClauses(y.Conclusion)
	if err != nil {
		return nil, err
	}
	return &ast.Ruleset{
		ID:             y.ID,
		Name:           y.Name,
		Description:    y.Description,
		Extends:        y.Extends,
		Template:       y.Template,
		TemplateParams: y.TemplateParams,
		Aggregate:      y.Aggregate,
		Rules:          y.Rules,
		Conclusion:     conclusion,
	}, nil
}

func convertTemplate(y *templateYAML) (*ast.DecisionTemplate, error) {
	if y.ID == "" {
		return nil, &ParseError{Message: "template is missing an id"}
	}
	conclusion, err := convertClauses(y.Conclusion)
	if err != nil {
		return nil, err
	}
	return &ast.DecisionTemplate{
		ID:          y.ID,
		Name:        y.Name,
		Description: y.Description,
		Params:      y.Params,
		Conclusion:  conclusion,
	}, nil
}

func convertPipeline(y *pipelineYAML) (*ast.Pipeline, error) {
	if y.ID == "" {
		return nil, &ParseError{Message: "pipeline is missing an id"}
	}
	if len(y.Steps) == 0 {
		return nil, &ParseError{Message: fmt.Sprintf("pipeline %q has no steps", y.ID)}
	}
	entry := y.Entry
	if entry == "" {
		entry = y.Steps[0].ID
	}
	p := &ast.Pipeline{
		ID:          y.ID,
		Name:        y.Name,
		Description: y.Description,
		When:        y.When.toAST(),
		Entry:       entry,
	}
	for _, s := range y.Steps {
		if s.ID == "" {
			return nil, &ParseError{Message: fmt.Sprintf("pipeline %q: step is missing an id", y.ID)}
		}
		step := ast.Step{
			ID:      s.ID,
			Name:    s.Name,
			Type:    s.Type,
			Default: s.Default,
			Ruleset: s.Ruleset,
			Result:  strings.ToUpper(s.Result),
			Actions: s.Actions,
			Next:    s.Next,
		}
		switch s.Type {
		case ast.StepRouter:
			if len(s.Routes) == 0 {
				return nil, &ParseError{Message: fmt.Sprintf("router step %q has no routes", s.ID)}
			}
		case ast.StepRuleset:
			if s.Ruleset == "" {
				return nil, &ParseError{Message: fmt.Sprintf("ruleset step %q names no ruleset", s.ID)}
			}
		case ast.StepAction:
			if step.Result != "" && !ast.ValidSignal(step.Result) {
				return nil, &ParseError{Message: fmt.Sprintf("action step %q: unknown result %q", s.ID, s.Result)}
			}
		default:
			return nil, &ParseError{Message: fmt.Sprintf("step %q has unknown type %q", s.ID, s.Type)}
		}
		for _, r := range s.Routes {
			expr, err := ParseExpression(r.When)
			if err != nil {
				return nil, err
			}
			if r.Next == "" {
				return nil, &ParseError{Message: fmt.Sprintf("step %q: route is missing next", s.ID)}
			}
			step.Routes = append(step.Routes, ast.Route{When: expr, Next: r.Next})
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}
