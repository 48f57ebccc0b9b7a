package policy

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Match returns the rule that governs spend at amount. Project rules are
// searched before global rules; within a scope the first rule in iteration
// order wins even when later rules also match. A nil rule means no policy is
// defined for the amount.
func Match(amount decimal.Decimal, projectRules, globalRules []ApprovalRule) (rule *ApprovalRule, projectSpecific bool) {
	if r := firstMatch(amount, projectRules); r != nil {
		return r, true
	}
	return firstMatch(amount, globalRules), false
}

func firstMatch(amount decimal.Decimal, rules []ApprovalRule) *ApprovalRule {
	for i := range rules {
		if rules[i].Matches(amount) {
			r := rules[i]
			return &r
		}
	}
	return nil
}

// Breakpoints returns the distinct minimum amounts of every project rule and
// every global rule, in ascending numeric order. Values that differ only in
// scale (100 and 100.00) collapse to the first one seen.
func Breakpoints(projects []Project, globalRules []ApprovalRule) []decimal.Decimal {
	var mins []decimal.Decimal
	add := func(rules []ApprovalRule) {
		for _, r := range rules {
			if !containsAmount(mins, r.MinAmount) {
				mins = append(mins, r.MinAmount)
			}
		}
	}
	for _, p := range projects {
		add(p.Rules)
	}
	add(globalRules)

	sort.SliceStable(mins, func(i, j int) bool {
		return mins[i].LessThan(mins[j])
	})
	return mins
}

func containsAmount(amounts []decimal.Decimal, v decimal.Decimal) bool {
	for _, a := range amounts {
		if a.Equal(v) {
			return true
		}
	}
	return false
}
