// Package keywords normalizes the free-text fields of a risk event once so
// that scorers match against structured, case-folded terms.
package keywords

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/antonio-prism/prism-brain/internal/model"
)

// Normalize case-folds s and collapses runs of whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// Terms is the normalized matching substrate for one risk event.
type Terms struct {
	Name          string
	Description   string
	Industries    string
	Scope         string
	AllIndustries bool
	Global        bool
	Europe        bool
}

// For normalizes r.
func For(r model.RiskEvent) Terms {
	t := Terms{
		Name:        Normalize(r.Name),
		Description: Normalize(r.Description),
		Industries:  Normalize(r.AffectedIndustries),
		Scope:       Normalize(r.GeographicScope),
	}
	t.AllIndustries = strings.Contains(t.Industries, "all industries")
	t.Global = strings.Contains(t.Scope, "global")
	t.Europe = strings.Contains(t.Scope, "europe")
	return t
}

// contains reports whether needle, once normalized, is a non-empty substring
// of haystack.
func contains(haystack, needle string) bool {
	n := Normalize(needle)
	return n != "" && strings.Contains(haystack, n)
}

// MentionsIndustry reports whether industry appears in the affected-industries
// text.
func (t Terms) MentionsIndustry(industry string) bool {
	return contains(t.Industries, industry)
}

// MentionsPlace reports whether place appears in the geographic scope.
func (t Terms) MentionsPlace(place string) bool {
	return contains(t.Scope, place)
}

// NameHas reports whether word appears in the risk name.
func (t Terms) NameHas(word string) bool {
	return contains(t.Name, word)
}

// DescriptionHas reports whether word appears in the description.
func (t Terms) DescriptionHas(word string) bool {
	return contains(t.Description, word)
}

// Contains reports whether needle appears in text once both are normalized.
func Contains(text, needle string) bool {
	return contains(Normalize(text), needle)
}
