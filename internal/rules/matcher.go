package rules

import "sort"

// Evaluate runs the rule set against one item's metadata and returns the
// tags of all matching rules as a sorted, deduplicated set. Evaluation is
// pure and rule order never affects the result.
func Evaluate(countries []string, genres []int, year *int, kind Kind, ruleSet []Rule) []string {
	tags := make(map[string]struct{})

	for _, r := range ruleSet {
		if r.matches(countries, genres, year, kind) {
			tags[r.Tag] = struct{}{}
		}
	}

	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// matches evaluates a single rule. The populated conditions combine with
// AND; is_negative_match inverts that combination only. The item-type
// check is applied after negation and is never inverted. A rule with no
// populated conditions never matches.
func (r *Rule) matches(countries []string, genres []int, year *int, kind Kind) bool {
	if r.Conditions.Empty() {
		return false
	}

	match := true

	if len(r.Conditions.Countries) > 0 {
		match = match && matchStrings(countries, r.Conditions.Countries, r.MatchAll)
	}
	if len(r.Conditions.GenreIDs) > 0 {
		match = match && matchInts(genres, r.Conditions.GenreIDs, r.MatchAll)
	}
	if len(r.Conditions.Years) > 0 {
		// An unknown year can never satisfy a year constraint.
		match = match && year != nil && containsInt(r.Conditions.Years, *year)
	}

	if r.Negate {
		match = !match
	}

	return match && r.kindMatches(kind)
}

func (r *Rule) kindMatches(kind Kind) bool {
	switch r.ItemType {
	case TargetAll:
		return true
	case TargetMovie:
		return kind == KindMovie
	case TargetSeries:
		return kind == KindSeries || kind == KindTV
	default:
		return false
	}
}

// matchStrings compares the item's values against the rule's condition:
// exact set equality when matchAll is set, any intersection otherwise.
func matchStrings(item, cond []string, matchAll bool) bool {
	itemSet := make(map[string]struct{}, len(item))
	for _, v := range item {
		itemSet[v] = struct{}{}
	}
	condSet := make(map[string]struct{}, len(cond))
	for _, v := range cond {
		condSet[v] = struct{}{}
	}

	if matchAll {
		if len(itemSet) != len(condSet) {
			return false
		}
		for v := range condSet {
			if _, ok := itemSet[v]; !ok {
				return false
			}
		}
		return true
	}

	for v := range condSet {
		if _, ok := itemSet[v]; ok {
			return true
		}
	}
	return false
}

func matchInts(item, cond []int, matchAll bool) bool {
	itemSet := make(map[int]struct{}, len(item))
	for _, v := range item {
		itemSet[v] = struct{}{}
	}
	condSet := make(map[int]struct{}, len(cond))
	for _, v := range cond {
		condSet[v] = struct{}{}
	}

	if matchAll {
		if len(itemSet) != len(condSet) {
			return false
		}
		for v := range condSet {
			if _, ok := itemSet[v]; !ok {
				return false
			}
		}
		return true
	}

	for v := range condSet {
		if _, ok := itemSet[v]; ok {
			return true
		}
	}
	return false
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
