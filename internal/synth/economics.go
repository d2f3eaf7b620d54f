package synth

import (
	"encoding/json"
	"math"

	"github.com/chengjon/mem-claude/internal/store"
)

// tokenChars is the chars-per-token heuristic used for all read costs.
const tokenChars = 4

// ReadTokens estimates the cost of reading one observation: the combined
// length of its display fields at the chars-per-token heuristic, rounded
// up.
func ReadTokens(o store.Observation) int {
	chars := len(derefOr(o.Title)) + len(derefOr(o.Subtitle)) + len(derefOr(o.Narrative))
	if len(o.Facts) > 0 {
		if facts, err := json.Marshal(o.Facts); err == nil {
			chars += len(facts)
		}
	}
	if chars == 0 {
		return 0
	}
	return (chars + tokenChars - 1) / tokenChars
}

// Economics is the cost/benefit summary for a set of observations: what it
// costs to read them now versus what their original discovery cost.
type Economics struct {
	ReadTokens     int
	WorkTokens     int
	Savings        int
	SavingsPercent int
}

// ComputeEconomics totals read and work tokens across observations.
// Savings is work minus read; the percentage is relative to work and only
// defined when any work was recorded.
func ComputeEconomics(observations []store.Observation) Economics {
	var e Economics
	for _, o := range observations {
		e.ReadTokens += ReadTokens(o)
		e.WorkTokens += int(o.DiscoveryTokens)
	}
	e.Savings = e.WorkTokens - e.ReadTokens
	if e.WorkTokens > 0 {
		// Savings can go negative when reading costs more than the work
		// did; round half away from zero in both directions.
		e.SavingsPercent = int(math.Round(float64(e.Savings) / float64(e.WorkTokens) * 100))
	}
	return e
}

func derefOr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
