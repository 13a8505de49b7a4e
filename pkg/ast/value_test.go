// verdict/pkg/ast/value_test.go

package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualCoercesNumericTypes(t *testing.T) {
	assert.True(t, Equal(5, 5.0))
	assert.True(t, Equal(int64(7), 7))
	assert.False(t, Equal(5, "5"))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, 0))
}

func TestTruthyOnlyForBooleans(t *testing.T) {
	assert.True(t, Truthy(true))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(1))
	assert.False(t, Truthy("true"))
	assert.False(t, Truthy(nil))
}

func TestLookupField(t *testing.T) {
	root := map[string]interface{}{
		"user": map[string]interface{}{
			"address": map[string]interface{}{"country": "NO"},
			"age":     42,
		},
	}

	v, ok := LookupField(root, []string{"user", "address", "country"})
	assert.True(t, ok)
	assert.Equal(t, "NO", v)

	_, ok = LookupField(root, []string{"user", "missing"})
	assert.False(t, ok)

	// Descending through a non-map is absence, not a panic.
	_, ok = LookupField(root, []string{"user", "age", "years"})
	assert.False(t, ok)
}

func TestExpressionString(t *testing.T) {
	in := NewBinary(NewField("user", "country"), OpIn, NewListRef("blocked"))
	assert.Equal(t, "user.country in list.blocked", in.String())

	cmp := NewBinary(NewField("amount"), OpGt, NewLiteral(1000.0))
	group := NewGroup(GroupAny, cmp, NewField("user", "vip"))
	group.Negate = true
	assert.Contains(t, group.String(), "any(")
	assert.Contains(t, group.String(), "not ")

	str := NewBinary(NewField("payment", "method"), OpEq, NewLiteral("card"))
	assert.Equal(t, `payment.method == "card"`, str.String())
}
