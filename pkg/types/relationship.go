package types

import (
	"fmt"
	"strings"
	"time"
)

// RelationshipType is the closed vocabulary of edge types.
type RelationshipType string

// RelationshipCategory groups relationship types. It is always derived from
// the type, never supplied.
type RelationshipCategory string

// Relationship categories.
const (
	RelCategoryCausal       RelationshipCategory = "CAUSAL"
	RelCategoryTemporal     RelationshipCategory = "TEMPORAL"
	RelCategoryHierarchical RelationshipCategory = "HIERARCHICAL"
	RelCategoryAssociative  RelationshipCategory = "ASSOCIATIVE"
	RelCategoryCompetitive  RelationshipCategory = "COMPETITIVE"
	RelCategoryDependency   RelationshipCategory = "DEPENDENCY"
	RelCategoryOwnership    RelationshipCategory = "OWNERSHIP"
	RelCategoryRegulatory   RelationshipCategory = "REGULATORY"
)

// Relationship types.
const (
	RelCauses     RelationshipType = "CAUSES"
	RelEnables    RelationshipType = "ENABLES"
	RelPrevents   RelationshipType = "PREVENTS"
	RelTriggers   RelationshipType = "TRIGGERS"
	RelInfluences RelationshipType = "INFLUENCES"

	RelPrecedes       RelationshipType = "PRECEDES"
	RelFollows        RelationshipType = "FOLLOWS"
	RelConcurrentWith RelationshipType = "CONCURRENT_WITH"
	RelDuring         RelationshipType = "DURING"

	RelPartOf     RelationshipType = "PART_OF"
	RelContains   RelationshipType = "CONTAINS"
	RelParentOf   RelationshipType = "PARENT_OF"
	RelChildOf    RelationshipType = "CHILD_OF"
	RelInstanceOf RelationshipType = "INSTANCE_OF"
	RelSubclassOf RelationshipType = "SUBCLASS_OF"

	RelRelatedTo   RelationshipType = "RELATED_TO"
	RelSimilarTo   RelationshipType = "SIMILAR_TO"
	RelReferences  RelationshipType = "REFERENCES"
	RelAliasOf     RelationshipType = "ALIAS_OF"
	RelDerivedFrom RelationshipType = "DERIVED_FROM"

	RelCompetesWith  RelationshipType = "COMPETES_WITH"
	RelSubstitutes   RelationshipType = "SUBSTITUTES"
	RelOutperforms   RelationshipType = "OUTPERFORMS"
	RelConflictsWith RelationshipType = "CONFLICTS_WITH"

	RelDependsOn RelationshipType = "DEPENDS_ON"
	RelRequires  RelationshipType = "REQUIRES"
	RelBlocks    RelationshipType = "BLOCKS"
	RelBlockedBy RelationshipType = "BLOCKED_BY"
	RelSupports  RelationshipType = "SUPPORTS"

	RelOwns       RelationshipType = "OWNS"
	RelOwnedBy    RelationshipType = "OWNED_BY"
	RelAcquired   RelationshipType = "ACQUIRED"
	RelAcquiredBy RelationshipType = "ACQUIRED_BY"
	RelInvestsIn  RelationshipType = "INVESTS_IN"
	RelFundedBy   RelationshipType = "FUNDED_BY"

	RelRegulates    RelationshipType = "REGULATES"
	RelRegulatedBy  RelationshipType = "REGULATED_BY"
	RelCompliesWith RelationshipType = "COMPLIES_WITH"
	RelViolates     RelationshipType = "VIOLATES"
	RelGoverns      RelationshipType = "GOVERNS"
)

// AllRelationshipCategories lists every category.
var AllRelationshipCategories = []RelationshipCategory{
	RelCategoryCausal, RelCategoryTemporal, RelCategoryHierarchical, RelCategoryAssociative,
	RelCategoryCompetitive, RelCategoryDependency, RelCategoryOwnership, RelCategoryRegulatory,
}

// relationshipTable maps each category to its member types. It is the single
// source for the type → category derivation.
var relationshipTable = map[RelationshipCategory][]RelationshipType{
	RelCategoryCausal:       {RelCauses, RelEnables, RelPrevents, RelTriggers, RelInfluences},
	RelCategoryTemporal:     {RelPrecedes, RelFollows, RelConcurrentWith, RelDuring},
	RelCategoryHierarchical: {RelPartOf, RelContains, RelParentOf, RelChildOf, RelInstanceOf, RelSubclassOf},
	RelCategoryAssociative:  {RelRelatedTo, RelSimilarTo, RelReferences, RelAliasOf, RelDerivedFrom},
	RelCategoryCompetitive:  {RelCompetesWith, RelSubstitutes, RelOutperforms, RelConflictsWith},
	RelCategoryDependency:   {RelDependsOn, RelRequires, RelBlocks, RelBlockedBy, RelSupports},
	RelCategoryOwnership:    {RelOwns, RelOwnedBy, RelAcquired, RelAcquiredBy, RelInvestsIn, RelFundedBy},
	RelCategoryRegulatory:   {RelRegulates, RelRegulatedBy, RelCompliesWith, RelViolates, RelGoverns},
}

// inversePairs lists asymmetric inverses; each pair is registered both ways.
var inversePairs = [][2]RelationshipType{
	{RelPrecedes, RelFollows},
	{RelPartOf, RelContains},
	{RelParentOf, RelChildOf},
	{RelBlocks, RelBlockedBy},
	{RelOwns, RelOwnedBy},
	{RelAcquired, RelAcquiredBy},
	{RelRegulates, RelRegulatedBy},
	{RelInvestsIn, RelFundedBy},
}

// symmetricTypes are their own inverse.
var symmetricTypes = []RelationshipType{
	RelConcurrentWith, RelRelatedTo, RelSimilarTo, RelAliasOf, RelCompetesWith, RelConflictsWith,
}

var (
	// AllRelationshipTypes lists every type, grouped by category order.
	AllRelationshipTypes []RelationshipType

	categoryOfType = map[RelationshipType]RelationshipCategory{}
	inverseOfType  = map[RelationshipType]RelationshipType{}
)

func init() {
	if err := buildRelationshipTables(); err != nil {
		panic(err)
	}
}

// buildRelationshipTables derives the lookup maps and checks that every type
// has exactly one category and that inverses are consistent.
func buildRelationshipTables() error {
	for _, cat := range AllRelationshipCategories {
		members, ok := relationshipTable[cat]
		if !ok || len(members) == 0 {
			return fmt.Errorf("types: relationship category %s has no types", cat)
		}
		for _, rt := range members {
			if prev, dup := categoryOfType[rt]; dup {
				return fmt.Errorf("types: relationship type %s in both %s and %s", rt, prev, cat)
			}
			categoryOfType[rt] = cat
			AllRelationshipTypes = append(AllRelationshipTypes, rt)
		}
	}
	if len(relationshipTable) != len(AllRelationshipCategories) {
		return fmt.Errorf("types: relationship table has unlisted categories")
	}
	for _, p := range inversePairs {
		for _, rt := range p {
			if _, ok := categoryOfType[rt]; !ok {
				return fmt.Errorf("types: inverse pair uses unknown type %s", rt)
			}
			if _, dup := inverseOfType[rt]; dup {
				return fmt.Errorf("types: type %s has more than one inverse", rt)
			}
		}
		inverseOfType[p[0]] = p[1]
		inverseOfType[p[1]] = p[0]
	}
	for _, rt := range symmetricTypes {
		if _, ok := categoryOfType[rt]; !ok {
			return fmt.Errorf("types: symmetric type %s is unknown", rt)
		}
		if _, dup := inverseOfType[rt]; dup {
			return fmt.Errorf("types: type %s has more than one inverse", rt)
		}
		inverseOfType[rt] = rt
	}
	return nil
}

// ParseRelationshipType normalizes s (case-insensitive) to a known type.
func ParseRelationshipType(s string) (RelationshipType, error) {
	rt := RelationshipType(strings.ToUpper(strings.TrimSpace(s)))
	if !rt.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRelationshipType, s)
	}
	return rt, nil
}

// ParseRelationshipCategory normalizes s (case-insensitive) to a known category.
func ParseRelationshipCategory(s string) (RelationshipCategory, error) {
	c := RelationshipCategory(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := relationshipTable[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Valid reports whether rt is in the vocabulary.
func (rt RelationshipType) Valid() bool {
	_, ok := categoryOfType[rt]
	return ok
}

// Category returns the category of rt, or "" if rt is unknown.
func (rt RelationshipType) Category() RelationshipCategory { return categoryOfType[rt] }

// Inverse returns the inverse type of rt. ok is false when rt has none.
func (rt RelationshipType) Inverse() (RelationshipType, bool) {
	inv, ok := inverseOfType[rt]
	return inv, ok
}

// Symmetric reports whether rt is its own inverse.
func (rt RelationshipType) Symmetric() bool {
	inv, ok := inverseOfType[rt]
	return ok && inv == rt
}

// Types returns the member types of c.
func (c RelationshipCategory) Types() []RelationshipType {
	return append([]RelationshipType(nil), relationshipTable[c]...)
}

// Relationship is a directed, typed, weighted edge between two symbols.
// Edges are immutable once created.
type Relationship struct {
	ID           string               `json:"id"`
	FromSymbolID string               `json:"from_symbol_id"`
	ToSymbolID   string               `json:"to_symbol_id"`
	Type         RelationshipType     `json:"relationship_type"`
	Category     RelationshipCategory `json:"category"`
	Weight       float64              `json:"weight"`
	Confidence   float64              `json:"confidence"`
	Properties   map[string]any       `json:"properties,omitempty"`
	Evidence     string               `json:"evidence,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	CreatedBy    string               `json:"created_by,omitempty"`
}

// Default edge weight and confidence.
const (
	DefaultWeight     = 1.0
	DefaultConfidence = 1.0
)

// RelationshipRequest describes an edge to create. Weight and Confidence
// default to 1.0 when nil.
type RelationshipRequest struct {
	FromSymbolID  string           `json:"from_symbol_id" validate:"required"`
	ToSymbolID    string           `json:"to_symbol_id" validate:"required"`
	Type          RelationshipType `json:"relationship_type" validate:"required"`
	Weight        *float64         `json:"weight,omitempty" validate:"omitempty,gte=0,lte=1"`
	Confidence    *float64         `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Bidirectional bool             `json:"bidirectional,omitempty"`
	Properties    map[string]any   `json:"properties,omitempty"`
	Evidence      string           `json:"evidence,omitempty" validate:"max=4000"`
	CreatedBy     string           `json:"created_by,omitempty" validate:"max=200"`
}

// EffectiveWeight returns Weight or DefaultWeight.
func (r RelationshipRequest) EffectiveWeight() float64 {
	if r.Weight == nil {
		return DefaultWeight
	}
	return *r.Weight
}

// EffectiveConfidence returns Confidence or DefaultConfidence.
func (r RelationshipRequest) EffectiveConfidence() float64 {
	if r.Confidence == nil {
		return DefaultConfidence
	}
	return *r.Confidence
}

// CreateRelationshipResult reports the edges written by CreateRelationship.
// InverseID is empty unless a bidirectional inverse was created.
type CreateRelationshipResult struct {
	RelationshipID string `json:"relationship_id"`
	InverseID      string `json:"inverse_id,omitempty"`
}

// RelationshipFilter narrows edge lookups. Zero values match everything.
type RelationshipFilter struct {
	Types         []RelationshipType     `json:"types,omitempty"`
	Categories    []RelationshipCategory `json:"categories,omitempty"`
	MinWeight     float64                `json:"min_weight,omitempty"`
	MinConfidence float64                `json:"min_confidence,omitempty"`
	Limit         int                    `json:"limit,omitempty"`
}

// RelatedResult merges both directions around one symbol.
type RelatedResult struct {
	SymbolID   string                   `json:"symbol_id"`
	Outgoing   []*Relationship          `json:"outgoing"`
	Incoming   []*Relationship          `json:"incoming"`
	TypeCounts map[RelationshipType]int `json:"type_counts"`
	Total      int                      `json:"total"`
}
