package billing

// Plan is a subscription tier.
type Plan string

const (
	PlanStart    Plan = "START"
	PlanTeam     Plan = "TEAM"
	PlanBusiness Plan = "BUSINESS"
)

// FeatureAll marks a plan that includes every feature.
const FeatureAll = "all"

// Limits describes what a plan allows. MaxUsers of 0 means unlimited.
type Limits struct {
	MaxUsers int      `json:"max_users"`
	Features []string `json:"features"`
}

// planLimits is the authoritative tier table.
var planLimits = map[Plan]Limits{
	PlanStart: {
		MaxUsers: 1,
		Features: []string{"operations", "dictionaries", "dashboard", "export"},
	},
	PlanTeam: {
		MaxUsers: 5,
		Features: []string{"operations", "dictionaries", "dashboard", "export", "planning", "roles", "reports_odds", "recurring", "mapping_rules"},
	},
	PlanBusiness: {
		MaxUsers: 0,
		Features: []string{FeatureAll, "api_access", "integrations"},
	},
}

var planRank = map[Plan]int{
	PlanStart:    1,
	PlanTeam:     2,
	PlanBusiness: 3,
}

// ValidPlan reports whether p is a known tier.
func ValidPlan(p Plan) bool {
	_, ok := planRank[p]
	return ok
}

// PlanLimits returns the limits of a plan.
func PlanLimits(p Plan) Limits {
	return planLimits[p]
}

// HasFeature reports whether the plan includes the feature.
func HasFeature(p Plan, feature string) bool {
	limits := planLimits[p]
	for _, f := range limits.Features {
		if f == FeatureAll || f == feature {
			return true
		}
	}
	return false
}

// AtLeast reports whether plan meets the minimum tier.
func AtLeast(plan, min Plan) bool {
	return planRank[plan] >= planRank[min]
}

// AllowsUsers reports whether the plan permits the given user count.
func AllowsUsers(p Plan, count int) bool {
	limits := planLimits[p]
	return limits.MaxUsers == 0 || count <= limits.MaxUsers
}
