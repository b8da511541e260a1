package entitlements

import "strings"

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// Normalize maps arbitrary plan strings to a known Plan, defaulting to free.
func Normalize(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	case string(PlanPremium):
		return PlanPremium
	default:
		return PlanFree
	}
}

// Rank orders plans so "best wins" comparisons stay in one place.
func Rank(plan Plan) int {
	switch plan {
	case PlanPremium:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// IsPaid reports whether the plan unlocks premium-inclusive content.
func IsPaid(plan Plan) bool {
	return Rank(plan) > 0
}
