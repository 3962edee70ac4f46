package termgen

import (
	"fmt"
	"math/rand"
)

// strategy is a pure function producing one candidate term.
type strategy struct {
	name   string
	weight int
	pick   func(r *rand.Rand) string
}

// strategies favors 4-6 character single-word tokens and high-yield surname
// subsets, and heavily down-weights multi-word composites and business
// names, per spec.md §4.C's weighting policy.
var strategies = []strategy{
	{name: "last-name", weight: 30, pick: func(r *rand.Rand) string {
		return lastNames[r.Intn(len(lastNames))]
	}},
	{name: "ethnic-surname", weight: 20, pick: func(r *rand.Rand) string {
		return ethnicSurnames[r.Intn(len(ethnicSurnames))]
	}},
	{name: "first-name", weight: 12, pick: func(r *rand.Rand) string {
		return firstNames[r.Intn(len(firstNames))]
	}},
	{name: "street-name", weight: 10, pick: func(r *rand.Rand) string {
		return streetNames[r.Intn(len(streetNames))]
	}},
	{name: "neighborhood", weight: 6, pick: func(r *rand.Rand) string {
		return neighborhoods[r.Intn(len(neighborhoods))]
	}},
	{name: "property-type", weight: 5, pick: func(r *rand.Rand) string {
		return propertyTypes[r.Intn(len(propertyTypes))]
	}},
	{name: "geo-term", weight: 4, pick: func(r *rand.Rand) string {
		return geoTerms[r.Intn(len(geoTerms))]
	}},
	{name: "street-composite", weight: 4, pick: func(r *rand.Rand) string {
		return fmt.Sprintf("%s %s", streetNames[r.Intn(len(streetNames))], streetSuffixes[r.Intn(len(streetSuffixes))])
	}},
	{name: "full-name", weight: 4, pick: func(r *rand.Rand) string {
		return fmt.Sprintf("%s %s", firstNames[r.Intn(len(firstNames))], lastNames[r.Intn(len(lastNames))])
	}},
	{name: "business-composite", weight: 2, pick: func(r *rand.Rand) string {
		return fmt.Sprintf("%s %s", lastNames[r.Intn(len(lastNames))], businessSuffixes[r.Intn(len(businessSuffixes))])
	}},
}

// pickStrategy draws one strategy by weighted random selection with
// replacement.
func pickStrategy(r *rand.Rand) strategy {
	total := 0
	for _, s := range strategies {
		total += s.weight
	}
	n := r.Intn(total)
	for _, s := range strategies {
		if n < s.weight {
			return s
		}
		n -= s.weight
	}
	return strategies[len(strategies)-1]
}
