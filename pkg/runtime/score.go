// verdict/pkg/runtime/score.go

package runtime

import "math"

// Canonical score normalization. Raw scores are unbounded sums of rule
// scores; the canonical form maps them onto a fixed 0-1000 scale with a
// logistic curve centered on the midpoint, so downstream consumers can
// compare scores across rulesets with different rule weights.
const (
	canonicalMax    = 1000.0
	sigmoidMidpoint = 500.0
	sigmoidSlope    = 0.01
)

// CanonicalScore maps a raw aggregate score to the canonical 0-1000
// scale. Non-positive raw scores map to 0, and the mapping is monotonic:
// a higher raw score never yields a lower canonical score.
func CanonicalScore(raw int) int {
	if raw <= 0 {
		return 0
	}
	v := canonicalMax / (1.0 + math.Exp(-sigmoidSlope*(float64(raw)-sigmoidMidpoint)))
	if v < 0 {
		return 0
	}
	if v > canonicalMax {
		return int(canonicalMax)
	}
	return int(math.Round(v))
}
