package aggregate

import (
	"math"

	"fanliga/internal/core"
)

// Sign buckets a number for display styling.
type Sign int

const (
	Neutral Sign = iota
	Positive
	Negative
)

// Classify places every number in exactly one bucket. NaN, both
// infinities and both zeros are neutral.
func Classify(v float64) Sign {
	switch {
	case math.IsInf(v, 0):
		return Neutral
	case v > 0:
		return Positive
	case v < 0:
		return Negative
	default:
		return Neutral
	}
}

func (s Sign) String() string {
	switch s {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// Class is the CSS class templates attach to a signed value.
func (s Sign) Class() string {
	return "amount-" + s.String()
}

// FormatSigned renders v with a leading "+" only when strictly positive.
//
//	FormatSigned(5)  -> "+5"
//	FormatSigned(-5) -> "-5"
//	FormatSigned(0)  -> "0"
func FormatSigned(v float64) string {
	switch Classify(v) {
	case Positive:
		return "+" + core.FormatAmount(v)
	case Negative:
		return core.FormatAmount(v)
	default:
		return "0"
	}
}

// RankDelta is how many places the adjustments moved a participant up.
// Positive means the adjusted rank is better than the external one.
func RankDelta(row core.StandingRow) int {
	return row.ExternalRank - row.AdjustedRank
}

// PointsDelta is the net effect of penalties and bonuses on the points.
func PointsDelta(row core.StandingRow) float64 {
	return finite(row.AdjustedPoints) - finite(row.ExternalPoints)
}
