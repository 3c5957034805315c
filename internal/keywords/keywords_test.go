package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/antonio-prism/prism-brain/internal/model"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "all industries", Normalize("  ALL   Industries "))
	assert.Equal(t, "strasse", Normalize("STRASSE"))
	assert.Equal(t, "", Normalize("   "))
}

func TestFor(t *testing.T) {
	terms := For(model.RiskEvent{
		Name:               "Global Shipping Disruption",
		Description:        "Port closures affecting Manufacturing",
		AffectedIndustries: "Manufacturing, Retail, Logistics",
		GeographicScope:    "Global / Europe",
	})

	assert.Equal(t, "global shipping disruption", terms.Name)
	assert.True(t, terms.Global)
	assert.True(t, terms.Europe)
	assert.False(t, terms.AllIndustries)

	assert.True(t, terms.MentionsIndustry("manufacturing"))
	assert.True(t, terms.MentionsIndustry(" RETAIL"))
	assert.False(t, terms.MentionsIndustry("finance"))
	assert.False(t, terms.MentionsIndustry(""), "empty text never matches")

	assert.True(t, terms.MentionsPlace("Europe"))
	assert.True(t, terms.NameHas("shipping"))
	assert.False(t, terms.NameHas("trade"))
	assert.True(t, terms.DescriptionHas("manufacturing"))
}

func TestFor_AllIndustries(t *testing.T) {
	terms := For(model.RiskEvent{AffectedIndustries: "All Industries", GeographicScope: "Regional"})
	assert.True(t, terms.AllIndustries)
	assert.False(t, terms.Global)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Bergen, Norway (Northern  EUROPE)", "europe"))
	assert.False(t, Contains("Oslo", "europe"))
	assert.False(t, Contains("anything", "  "))
}
