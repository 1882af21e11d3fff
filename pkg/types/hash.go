package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashDomain separates symbol content hashes from any other digest over the
// same bytes. The version suffix allows a future algorithm change.
const HashDomain = "symbols/content/v1"

// ContentHashLength is the number of hex characters kept from the digest.
const ContentHashLength = 16

// semanticFields returns the hashed projection of s. Metadata never appears
// here. encoding/json emits map keys sorted, which makes the encoding
// canonical.
func semanticFields(s *Symbol) map[string]any {
	how := map[string]any{
		"constraints": nonNil(nil),
		"focus":       "",
		"steps":       nonNil(nil),
	}
	if s.How != nil {
		how["constraints"] = nonNil(s.How.Constraints)
		how["focus"] = s.How.Focus
		how["steps"] = nonNil(s.How.Steps)
	}
	return map[string]any{
		"anti_requirements": nonNil(s.AntiRequirements),
		"commanders_intent": s.CommandersIntent,
		"how":               how,
		"key_terms":         nonNil(s.KeyTerms),
		"requirements":      nonNil(s.Requirements),
		"what":              s.What,
		"when":              s.When,
		"where":             s.Where,
		"who":               s.Who,
		"why":               s.Why,
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// ComputeContentHash digests the semantic fields of s:
// hex(SHA256(domain || 0x00 || canonical-json))[:16].
func ComputeContentHash(s *Symbol) (string, error) {
	data, err := json.Marshal(semanticFields(s))
	if err != nil {
		return "", fmt.Errorf("marshal semantic fields: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(HashDomain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))[:ContentHashLength], nil
}

// MustContentHash is like ComputeContentHash but panics on error.
// Use only in tests or when the symbol is known to be marshalable.
func MustContentHash(s *Symbol) string {
	hash, err := ComputeContentHash(s)
	if err != nil {
		panic(err)
	}
	return hash
}
