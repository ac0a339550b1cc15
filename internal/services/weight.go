package services

import "holewatch/internal/models"

// 等级对应的投票权重
const (
	WeightBase    = 1.0
	WeightTrusted = 1.5
	WeightExpert  = 2.0
)

// WeightFor maps a reputation tier to the weight of a vote cast at that tier.
// Unknown tiers count as base.
func WeightFor(tier models.Tier) float64 {
	switch tier {
	case models.TierExpert:
		return WeightExpert
	case models.TierTrusted:
		return WeightTrusted
	default:
		return WeightBase
	}
}
