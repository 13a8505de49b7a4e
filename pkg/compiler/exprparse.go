// verdict/pkg/compiler/exprparse.go

package compiler

import (
	"strconv"
	"strings"

	"calder/verdict/pkg/ast"
)

// listRefPrefix marks an operand as a reference to a managed list.
const listRefPrefix = "list."

// comparison operators in the order they are searched for. Two-character
// operators come first so ">=" is never split as ">".
var comparisonOps = []ast.Operator{
	ast.OpEq, ast.OpNeq, ast.OpGte, ast.OpLte, ast.OpGt, ast.OpLt,
}

// keyword operators are matched on word boundaries, longest first.
var keywordOps = []ast.Operator{
	ast.OpStartsWith, ast.OpEndsWith, ast.OpContains, ast.OpNotIn, ast.OpIn,
}

// ParseExpression parses a condition expression string into its tree
// form. Expressions are a single comparison, a membership test, a bare
// field reference, or any of those negated with a leading "!" or "not",
// optionally parenthesized.
func ParseExpression(src string) (*ast.Expression, error) {
	expr, err := parseExpr(src)
	if err != nil {
		return nil, &ParseError{Message: err.Error() + " in expression " + strconv.Quote(src)}
	}
	return expr, nil
}

type exprError string

func (e exprError) Error() string { return string(e) }

func parseExpr(src string) (*ast.Expression, error) {
	s := strings.TrimSpace(src)
	if s == "" {
		return nil, exprError("empty expression")
	}

	if inner, ok := stripOuterParens(s); ok {
		return parseExpr(inner)
	}

	if rest, ok := stripNegation(s); ok {
		child, err := parseExpr(rest)
		if err != nil {
			return nil, err
		}
		g := ast.NewGroup(ast.GroupAll, child)
		g.Negate = true
		return g, nil
	}

	// Keyword operators bind loosest, so they are split off first.
	for _, op := range keywordOps {
		if idx := findKeywordOp(s, string(op)); idx >= 0 {
			return parseBinary(s[:idx], op, s[idx+len(op):])
		}
	}
	for _, op := range comparisonOps {
		if idx := findSymbolOp(s, string(op)); idx >= 0 {
			return parseBinary(s[:idx], op, s[idx+len(op):])
		}
	}

	return parseOperand(s)
}

func parseBinary(left string, op ast.Operator, right string) (*ast.Expression, error) {
	l, err := parseOperand(strings.TrimSpace(left))
	if err != nil {
		return nil, err
	}
	r, err := parseOperand(strings.TrimSpace(right))
	if err != nil {
		return nil, err
	}
	if l.Kind == ast.ExprListRef {
		return nil, exprError("list reference is only valid on the right side of " +
			string(ast.OpIn) + " or " + string(ast.OpNotIn))
	}
	if r.Kind == ast.ExprListRef && !op.IsMembership() {
		return nil, exprError("list reference requires " + string(ast.OpIn) +
			" or " + string(ast.OpNotIn) + ", got " + string(op))
	}
	return ast.NewBinary(l, op, r), nil
}

func parseOperand(s string) (*ast.Expression, error) {
	if s == "" {
		return nil, exprError("missing operand")
	}
	if inner, ok := stripOuterParens(s); ok {
		return parseExpr(inner)
	}

	switch {
	case s == "true":
		return ast.NewLiteral(true), nil
	case s == "false":
		return ast.NewLiteral(false), nil
	case s == "null" || s == "nil":
		return ast.NewLiteral(nil), nil
	}

	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return ast.NewLiteral(s[1 : len(s)-1]), nil
		}
	}

	if s[0] == '[' && s[len(s)-1] == ']' {
		return parseArray(s[1 : len(s)-1])
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return ast.NewLiteral(n), nil
	}

	if strings.HasPrefix(s, listRefPrefix) {
		id := s[len(listRefPrefix):]
		if id == "" || !isIdent(id) {
			return nil, exprError("invalid list reference " + strconv.Quote(s))
		}
		return ast.NewListRef(id), nil
	}

	path := strings.Split(s, ".")
	for _, seg := range path {
		if seg == "" || !isIdent(seg) {
			return nil, exprError("invalid field path " + strconv.Quote(s))
		}
	}
	return ast.NewField(path...), nil
}

func parseArray(body string) (*ast.Expression, error) {
	items := splitTopLevel(body, ',')
	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		el, err := parseOperand(item)
		if err != nil {
			return nil, err
		}
		if el.Kind != ast.ExprLiteral {
			return nil, exprError("array elements must be literals")
		}
		values = append(values, el.Literal)
	}
	return ast.NewLiteral(values), nil
}

// stripOuterParens removes one pair of enclosing parentheses when they
// wrap the whole string.
func stripOuterParens(s string) (string, bool) {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return "", false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return "", false
			}
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1]), true
}

func stripNegation(s string) (string, bool) {
	if strings.HasPrefix(s, "!") {
		return strings.TrimSpace(s[1:]), true
	}
	if strings.HasPrefix(s, "not ") || strings.HasPrefix(s, "not(") {
		return strings.TrimSpace(s[3:]), true
	}
	return "", false
}

// findSymbolOp locates the rightmost occurrence of op outside of quotes,
// parentheses and brackets. Returns -1 when absent.
func findSymbolOp(s, op string) int {
	depth := 0
	var quote byte
	for i := len(s) - len(op); i >= 0; i-- {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case ')', ']':
			depth++
		case '(', '[':
			depth--
		default:
			if depth == 0 && s[i:i+len(op)] == op {
				// Do not split ">=" at ">" or "!=" at "=".
				if len(op) == 1 && i+1 < len(s) && s[i+1] == '=' {
					continue
				}
				if i > 0 && (s[i-1] == '<' || s[i-1] == '>' || s[i-1] == '!' || s[i-1] == '=') {
					continue
				}
				return i
			}
		}
	}
	return -1
}

// findKeywordOp locates the rightmost word-bounded occurrence of op
// outside of quotes, parentheses and brackets.
func findKeywordOp(s, op string) int {
	depth := 0
	var quote byte
	for i := len(s) - len(op); i >= 0; i-- {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case ')', ']':
			depth++
		case '(', '[':
			depth--
		default:
			if depth != 0 || s[i:i+len(op)] != op {
				continue
			}
			if i > 0 && !isSpace(s[i-1]) {
				continue
			}
			if end := i + len(op); end < len(s) && !isSpace(s[end]) {
				continue
			}
			return i
		}
	}
	return -1
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n'
}

func isIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
