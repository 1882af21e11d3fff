package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSymbol() *Symbol {
	return &Symbol{
		SymbolID:         "Ξ.C.ACME",
		Who:              "Acme board",
		What:             "Quarterly plan",
		Why:              "Grow share",
		How:              &How{Focus: "pricing", Steps: []string{"survey", "adjust"}},
		CommandersIntent: "Win the mid-market segment.",
		Requirements:     []string{"stay cash positive"},
		KeyTerms:         []string{"ARR"},
	}
}

func TestContentHash_Length(t *testing.T) {
	hash, err := ComputeContentHash(baseSymbol())
	require.NoError(t, err)
	assert.Len(t, hash, ContentHashLength)
	assert.Regexp(t, "^[0-9a-f]{16}$", hash)
}

func TestContentHash_IgnoresMetadata(t *testing.T) {
	want := MustContentHash(baseSymbol())

	mutations := map[string]func(s *Symbol){
		"tags":          func(s *Symbol) { s.Tags = []string{"a", "b"} },
		"created_by":    func(s *Symbol) { s.CreatedBy = "someone" },
		"created_at":    func(s *Symbol) { s.CreatedAt = time.Now() },
		"version":       func(s *Symbol) { s.Version = 9 },
		"parent_symbol": func(s *Symbol) { s.ParentSymbol = "Ξ.C.PARENT" },
		"epistemic":     func(s *Symbol) { s.Epistemic = json.RawMessage(`{"certainty":0.4}`) },
		"changelog":     func(s *Symbol) { s.Changelog = []ChangelogEntry{{Version: 1}} },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := baseSymbol()
			mutate(s)
			assert.Equal(t, want, MustContentHash(s))
		})
	}
}

func TestContentHash_ChangesWithSemanticFields(t *testing.T) {
	base := MustContentHash(baseSymbol())

	mutations := map[string]func(s *Symbol){
		"who":               func(s *Symbol) { s.Who = "Acme CFO" },
		"what":              func(s *Symbol) { s.What = "Annual plan" },
		"why":               func(s *Symbol) { s.Why = "Defend share" },
		"where":             func(s *Symbol) { s.Where = "EMEA" },
		"when":              func(s *Symbol) { s.When = "Q4" },
		"how focus":         func(s *Symbol) { s.How.Focus = "bundling" },
		"how steps":         func(s *Symbol) { s.How.Steps = append(s.How.Steps, "launch") },
		"how constraints":   func(s *Symbol) { s.How.Constraints = []string{"no layoffs"} },
		"commanders intent": func(s *Symbol) { s.CommandersIntent = "Hold the line." },
		"requirements":      func(s *Symbol) { s.Requirements = []string{"hire"} },
		"requirement order": func(s *Symbol) { s.Requirements = []string{"b", "a"} },
		"anti requirements": func(s *Symbol) { s.AntiRequirements = []string{"debt"} },
		"key terms":         func(s *Symbol) { s.KeyTerms = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := baseSymbol()
			mutate(s)
			assert.NotEqual(t, base, MustContentHash(s))
		})
	}
}

func TestContentHash_NilAndEmptyAgree(t *testing.T) {
	a := &Symbol{SymbolID: "Ξ.C.A"}
	b := &Symbol{SymbolID: "Ξ.C.B", Requirements: []string{}, How: &How{}}
	assert.Equal(t, MustContentHash(a), MustContentHash(b))
}
