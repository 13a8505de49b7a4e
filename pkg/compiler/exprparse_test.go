// verdict/pkg/compiler/exprparse_test.go

package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calder/verdict/pkg/ast"
)

func TestParseComparison(t *testing.T) {
	expr, err := ParseExpression("user.age >= 18")
	require.NoError(t, err)
	require.Equal(t, ast.ExprBinary, expr.Kind)
	assert.Equal(t, ast.OpGte, expr.Op)
	assert.Equal(t, ast.ExprField, expr.Left.Kind)
	assert.Equal(t, []string{"user", "age"}, expr.Left.Path)
	assert.Equal(t, ast.ExprLiteral, expr.Right.Kind)
	assert.Equal(t, 18.0, expr.Right.Literal)
}

func TestParseStringLiteral(t *testing.T) {
	expr, err := ParseExpression(`payment.method == "card"`)
	require.NoError(t, err)
	assert.Equal(t, ast.OpEq, expr.Op)
	assert.Equal(t, "card", expr.Right.Literal)

	expr, err = ParseExpression("payment.method == 'card'")
	require.NoError(t, err)
	assert.Equal(t, "card", expr.Right.Literal)
}

// Operators inside quoted strings must not split the expression.
func TestParseOperatorInsideQuotes(t *testing.T) {
	expr, err := ParseExpression(`note == "a >= b"`)
	require.NoError(t, err)
	assert.Equal(t, ast.OpEq, expr.Op)
	assert.Equal(t, "a >= b", expr.Right.Literal)
}

func TestParseListReference(t *testing.T) {
	expr, err := ParseExpression("user.country in list.blocked_countries")
	require.NoError(t, err)
	assert.Equal(t, ast.OpIn, expr.Op)
	require.Equal(t, ast.ExprListRef, expr.Right.Kind)
	assert.Equal(t, "blocked_countries", expr.Right.ListID)

	expr, err = ParseExpression("device.id not_in list.trusted_devices")
	require.NoError(t, err)
	assert.Equal(t, ast.OpNotIn, expr.Op)
	assert.Equal(t, "trusted_devices", expr.Right.ListID)
}

func TestParseListReferenceRejectedOutsideMembership(t *testing.T) {
	_, err := ParseExpression("list.blocked == user.country")
	assert.Error(t, err)

	_, err = ParseExpression("user.country == list.blocked")
	assert.Error(t, err)
}

func TestParseStringOperators(t *testing.T) {
	expr, err := ParseExpression(`user.email ends_with "@example.com"`)
	require.NoError(t, err)
	assert.Equal(t, ast.OpEndsWith, expr.Op)

	expr, err = ParseExpression(`device.ua contains "Headless"`)
	require.NoError(t, err)
	assert.Equal(t, ast.OpContains, expr.Op)

	expr, err = ParseExpression(`card.bin starts_with "4571"`)
	require.NoError(t, err)
	assert.Equal(t, ast.OpStartsWith, expr.Op)
}

func TestParseNegation(t *testing.T) {
	expr, err := ParseExpression("!(user.verified == true)")
	require.NoError(t, err)
	require.Equal(t, ast.ExprGroup, expr.Kind)
	assert.True(t, expr.Negate)
	require.Len(t, expr.Children, 1)
	assert.Equal(t, ast.OpEq, expr.Children[0].Op)

	expr, err = ParseExpression("not (user.verified == true)")
	require.NoError(t, err)
	assert.True(t, expr.Negate)
}

func TestParseBareField(t *testing.T) {
	expr, err := ParseExpression("user.verified")
	require.NoError(t, err)
	assert.Equal(t, ast.ExprField, expr.Kind)
	assert.Equal(t, []string{"user", "verified"}, expr.Path)
}

func TestParseArrayLiteral(t *testing.T) {
	expr, err := ParseExpression(`payment.method in ["card", "wire"]`)
	require.NoError(t, err)
	assert.Equal(t, ast.OpIn, expr.Op)
	require.Equal(t, ast.ExprLiteral, expr.Right.Kind)
	assert.Equal(t, []interface{}{"card", "wire"}, expr.Right.Literal)
}

func TestParseSpecialLiterals(t *testing.T) {
	expr, err := ParseExpression("user.deleted == null")
	require.NoError(t, err)
	assert.Nil(t, expr.Right.Literal)

	expr, err = ParseExpression("user.active == true")
	require.NoError(t, err)
	assert.Equal(t, true, expr.Right.Literal)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"user.age >=",
		">= 18",
		"user..age > 1",
		"list. in list.x",
	}
	for _, src := range cases {
		_, err := ParseExpression(src)
		assert.Error(t, err, "expected error for %q", src)
	}
}
