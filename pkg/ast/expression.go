// verdict/pkg/ast/expression.go

package ast

import (
	"fmt"
	"strings"
)

// Operator is a binary comparison or membership operator in the rule language.
type Operator string

const (
	OpEq         Operator = "=="
	OpNeq        Operator = "!="
	OpGt         Operator = ">"
	OpGte        Operator = ">="
	OpLt         Operator = "<"
	OpLte        Operator = "<="
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
)

// IsMembership reports whether the operator probes list or array membership.
func (op Operator) IsMembership() bool {
	return op == OpIn || op == OpNotIn
}

// GroupOp is the boolean combinator of a condition group.
type GroupOp string

const (
	GroupAll GroupOp = "all"
	GroupAny GroupOp = "any"
)

// ExprKind tags the variant held by an Expression node.
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprField
	ExprBinary
	ExprGroup
	ExprListRef
)

// Expression is one node of a parsed condition tree.
type Expression struct {
	Kind ExprKind

	// ExprLiteral
	Literal interface{}

	// ExprField: dotted path into the request context (event.amount,
	// user.email, score, signal, ...).
	Path []string

	// ExprBinary
	Op    Operator
	Left  *Expression
	Right *Expression

	// ExprGroup
	GroupOp  GroupOp
	Negate   bool
	Children []*Expression

	// ExprListRef: symbolic reference to a configured list.
	ListID string
}

// NewLiteral builds a literal node.
func NewLiteral(v interface{}) *Expression {
	return &Expression{Kind: ExprLiteral, Literal: v}
}

// NewField builds a field-reference node.
func NewField(path ...string) *Expression {
	return &Expression{Kind: ExprField, Path: path}
}

// NewBinary builds a comparison node.
func NewBinary(left *Expression, op Operator, right *Expression) *Expression {
	return &Expression{Kind: ExprBinary, Op: op, Left: left, Right: right}
}

// NewGroup builds an all/any group node.
func NewGroup(op GroupOp, children ...*Expression) *Expression {
	return &Expression{Kind: ExprGroup, GroupOp: op, Children: children}
}

// NewListRef builds a list-reference node.
func NewListRef(listID string) *Expression {
	return &Expression{Kind: ExprListRef, ListID: listID}
}

// String renders the expression back into its source form. The compiler
// embeds this text in comparison instructions so traces can show the
// condition exactly as the author wrote it.
func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case ExprLiteral:
		if s, ok := e.Literal.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", e.Literal)
	case ExprField:
		return JoinPath(e.Path)
	case ExprBinary:
		return fmt.Sprintf("%s %s %s", e.Left.String(), e.Op, e.Right.String())
	case ExprListRef:
		return "list." + e.ListID
	case ExprGroup:
		parts := make([]string, 0, len(e.Children))
		for _, c := range e.Children {
			parts = append(parts, c.String())
		}
		body := fmt.Sprintf("%s(%s)", e.GroupOp, strings.Join(parts, ", "))
		if e.Negate {
			return "not " + body
		}
		return body
	}
	return ""
}
