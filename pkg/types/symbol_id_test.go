package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbolID(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		namespace string
		category  Category
		entities  []string
		inferred  bool
	}{
		{"company with explicit code", "Ξ.C.ACME", "", CategoryCompany, []string{"ACME"}, false},
		{"bare ticker inferred as company", "Ξ.ACME", "", CategoryCompany, []string{"ACME"}, true},
		{"single letter ticker", "Ξ.C", "", CategoryCompany, []string{"C"}, true},
		{"namespace and two letter code", "Ξ.acme.PR.ONBOARDING", "acme", CategoryProcess, []string{"ONBOARDING"}, false},
		{"multiple entity segments", "Ξ.W.RELEASE.V2_1", "", CategoryWorkflow, []string{"RELEASE", "V2_1"}, false},
		{"namespace with bare ticker", "Ξ.ops.MSFT", "ops", CategoryCompany, []string{"MSFT"}, true},
		{"agent code", "Ξ.AI.PLANNER", "", CategoryAgent, []string{"PLANNER"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseSymbolID(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, id.Raw)
			assert.Equal(t, tt.namespace, id.Namespace)
			assert.Equal(t, tt.category, id.Category)
			assert.Equal(t, tt.entities, id.Entities)
			assert.Equal(t, tt.inferred, id.Inferred)
		})
	}
}

func TestParseSymbolID_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"missing prefix", "C.ACME"},
		{"wrong prefix", "X.C.ACME"},
		{"prefix only", "Ξ"},
		{"empty segment", "Ξ..ACME"},
		{"trailing separator", "Ξ.C.ACME."},
		{"unknown code", "Ξ.ZZ.ACME"},
		{"ticker too long without code", "Ξ.ACMECORP"},
		{"lowercase entity", "Ξ.C.acme"},
		{"namespace only", "Ξ.acme"},
		{"segment over fifty characters", "Ξ.C." + strings.Repeat("A", 51)},
		{"illegal character", "Ξ.C.AC ME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSymbolID(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidIdentifier)
			assert.False(t, ValidSymbolID(tt.raw))
		})
	}
}

func TestFormatSymbolID(t *testing.T) {
	raw := FormatSymbolID("acme", CategoryMetric, "REVENUE", "Q3")
	assert.Equal(t, "Ξ.acme.MT.REVENUE.Q3", raw)

	id, err := ParseSymbolID(raw)
	require.NoError(t, err)
	assert.Equal(t, CategoryMetric, id.Category)
	assert.Equal(t, FamilyUnit, id.Family())
}

func TestTaxonomy(t *testing.T) {
	assert.Len(t, AllCategories, 19)
	assert.Len(t, AllFamilies, 7)

	seen := map[Family]int{}
	for _, c := range AllCategories {
		require.True(t, c.Valid(), "category %s", c)
		require.True(t, c.Family().Valid(), "family of %s", c)
		got, ok := CategoryForCode(c.Code())
		require.True(t, ok)
		assert.Equal(t, c, got)
		seen[c.Family()]++
	}
	for _, f := range AllFamilies {
		assert.Positive(t, seen[f], "family %s has no categories", f)
		assert.Len(t, CategoriesInFamily(f), seen[f])
	}
	assert.False(t, Category("SPACESHIP").Valid())
}
