package models

// Category names with a non-default policy
const (
	CategoryFoodAndProduce   = "Food & Produce"
	CategoryServicesAndSkill = "Services & Skills"
)

// Explicit policy values stored on categories
const (
	PolicyReturnable = "returnable"
	PolicyService    = "service"
	PolicyConsumable = "consumable"
)

// CategoryPolicy decides the pickup path and whether capacity comes back on
// direct completion.
type CategoryPolicy struct {
	Returnable bool
	Reusable   bool
}

// DefaultPolicy applies to ordinary lendable items.
var DefaultPolicy = CategoryPolicy{Returnable: true, Reusable: true}

var explicitPolicies = map[string]CategoryPolicy{
	PolicyReturnable: DefaultPolicy,
	PolicyService:    {Returnable: false, Reusable: true},
	PolicyConsumable: {Returnable: false, Reusable: false},
}

var namedPolicies = map[string]CategoryPolicy{
	CategoryServicesAndSkill: explicitPolicies[PolicyService],
	CategoryFoodAndProduce:   explicitPolicies[PolicyConsumable],
}

// ResolvePolicy returns the policy for c. An explicit policy column wins over
// the name table. known is false when c fell through to DefaultPolicy without
// a match, which usually means a renamed or misspelled category.
func ResolvePolicy(c Category) (policy CategoryPolicy, known bool) {
	if p, ok := explicitPolicies[c.Policy]; ok {
		return p, true
	}
	if p, ok := namedPolicies[c.Name]; ok {
		return p, true
	}
	return DefaultPolicy, false
}
