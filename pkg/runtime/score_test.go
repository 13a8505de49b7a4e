// verdict/pkg/runtime/score_test.go

package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalScoreNonPositive(t *testing.T) {
	assert.Equal(t, 0, CanonicalScore(0))
	assert.Equal(t, 0, CanonicalScore(-50))
}

func TestCanonicalScoreMidpoint(t *testing.T) {
	assert.Equal(t, 500, CanonicalScore(500))
}

func TestCanonicalScoreBounds(t *testing.T) {
	assert.LessOrEqual(t, CanonicalScore(1), 1000)
	assert.GreaterOrEqual(t, CanonicalScore(1), 0)
	assert.LessOrEqual(t, CanonicalScore(1_000_000), 1000)
}

// A higher raw score never yields a lower canonical score.
func TestCanonicalScoreMonotonic(t *testing.T) {
	prev := CanonicalScore(0)
	for raw := 1; raw <= 2000; raw += 7 {
		cur := CanonicalScore(raw)
		assert.GreaterOrEqual(t, cur, prev, "raw %d", raw)
		prev = cur
	}
}
