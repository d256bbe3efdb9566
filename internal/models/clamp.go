package models

import "math"

// Upper bounds applied to logged values before they reach the store.
const (
	MaxWeight   = 2000.0
	MaxReps     = 10000
	MaxTime     = 86400.0
	MaxDistance = 1000000.0
	MaxRPE      = 10.0
	MaxCustom   = 1000000.0
)

// clamp bounds v to [0, max]. NaN, infinities and negatives become 0.
func clamp(v, max float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// NewSetPayload builds the clamped log payload for a set at the given
// 1-based position.
func NewSetPayload(s WorkoutSet, setNumber int, category string) SetPayload {
	p := SetPayload{
		SetNumber:     setNumber,
		Weight:        clamp(s.Weight, MaxWeight),
		Reps:          int(math.Round(clamp(s.Reps, MaxReps))),
		Time:          clamp(s.Time, MaxTime),
		Distance:      clamp(s.Distance, MaxDistance),
		RPE:           clamp(s.RPE, MaxRPE),
		Completed:     s.Completed,
		Category:      category,
		RestStartedAt: s.RestStartedAt,
		RestEndedAt:   s.RestEndedAt,
	}
	if len(s.Custom) > 0 {
		p.Custom = make(map[string]float64, len(s.Custom))
		for k, v := range s.Custom {
			p.Custom[k] = clamp(v, MaxCustom)
		}
	}
	return p
}
