package types

import (
	"encoding/json"
	"slices"
	"time"
)

// InitialChangeDescription is the changelog description of version 1.
const InitialChangeDescription = "Initial creation"

// How is the structured "how" grounding field.
type How struct {
	Focus       string   `json:"focus,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// ChangelogEntry records one version transition.
type ChangelogEntry struct {
	Version     int64     `json:"version"`
	Description string    `json:"description"`
	Author      string    `json:"author,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Symbol is a versioned, content-hashed directive knowledge unit.
type Symbol struct {
	SymbolID    string `json:"symbol_id"`
	Version     int64  `json:"version"`
	ContentHash string `json:"content_hash"`

	// Derived from SymbolID at creation.
	Category  Category `json:"category"`
	Family    Family   `json:"family"`
	Namespace string   `json:"namespace,omitempty"`

	// Semantic fields. These and only these feed ContentHash.
	Who              string   `json:"who,omitempty"`
	What             string   `json:"what,omitempty"`
	Why              string   `json:"why,omitempty"`
	Where            string   `json:"where,omitempty"`
	When             string   `json:"when,omitempty"`
	How              *How     `json:"how,omitempty"`
	CommandersIntent string   `json:"commanders_intent,omitempty"`
	Requirements     []string `json:"requirements,omitempty"`
	AntiRequirements []string `json:"anti_requirements,omitempty"`
	KeyTerms         []string `json:"key_terms,omitempty"`

	// Lifecycle metadata.
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty"`
	CreatedBy    string           `json:"created_by,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
	ParentSymbol string           `json:"parent_symbol,omitempty"`
	Changelog    []ChangelogEntry `json:"changelog"`

	// Epistemic is an opaque payload, stored and returned verbatim.
	Epistemic json.RawMessage `json:"epistemic,omitempty"`
}

// Clone returns a deep copy of s.
func (s *Symbol) Clone() *Symbol {
	if s == nil {
		return nil
	}
	c := *s
	if s.How != nil {
		h := *s.How
		h.Steps = slices.Clone(s.How.Steps)
		h.Constraints = slices.Clone(s.How.Constraints)
		c.How = &h
	}
	if s.UpdatedAt != nil {
		u := *s.UpdatedAt
		c.UpdatedAt = &u
	}
	c.Requirements = slices.Clone(s.Requirements)
	c.AntiRequirements = slices.Clone(s.AntiRequirements)
	c.KeyTerms = slices.Clone(s.KeyTerms)
	c.Tags = slices.Clone(s.Tags)
	c.Changelog = slices.Clone(s.Changelog)
	c.Epistemic = slices.Clone(s.Epistemic)
	return &c
}

// NormalizeTags returns tags as a sorted set without empty entries.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// CreateSymbolRequest carries the client-settable fields of a new symbol.
type CreateSymbolRequest struct {
	SymbolID string `json:"symbol_id" validate:"required,max=512"`

	Who              string   `json:"who,omitempty"`
	What             string   `json:"what,omitempty"`
	Why              string   `json:"why,omitempty"`
	Where            string   `json:"where,omitempty"`
	When             string   `json:"when,omitempty"`
	How              *How     `json:"how,omitempty"`
	CommandersIntent string   `json:"commanders_intent,omitempty" validate:"max=1000"`
	Requirements     []string `json:"requirements,omitempty"`
	AntiRequirements []string `json:"anti_requirements,omitempty"`
	KeyTerms         []string `json:"key_terms,omitempty"`

	CreatedBy    string          `json:"created_by,omitempty" validate:"max=200"`
	Tags         []string        `json:"tags,omitempty"`
	ParentSymbol string          `json:"parent_symbol,omitempty"`
	Epistemic    json.RawMessage `json:"epistemic,omitempty"`
}

// CreateResult reports a successful Create.
type CreateResult struct {
	SymbolID    string `json:"symbol_id"`
	Version     int64  `json:"version"`
	ContentHash string `json:"content_hash"`
}

// HowChanges updates How sub-field by sub-field. Nil pointers leave the
// sub-field unchanged.
type HowChanges struct {
	Focus       *string   `json:"focus,omitempty"`
	Steps       *[]string `json:"steps,omitempty"`
	Constraints *[]string `json:"constraints,omitempty"`
}

// SymbolChanges is a partial update. Nil fields are left unchanged; non-nil
// fields replace the stored value, except How which merges per sub-field.
// Identifier, creation timestamp and version are not settable.
type SymbolChanges struct {
	Who              *string     `json:"who,omitempty"`
	What             *string     `json:"what,omitempty"`
	Why              *string     `json:"why,omitempty"`
	Where            *string     `json:"where,omitempty"`
	When             *string     `json:"when,omitempty"`
	How              *HowChanges `json:"how,omitempty"`
	CommandersIntent *string     `json:"commanders_intent,omitempty"`
	Requirements     *[]string   `json:"requirements,omitempty"`
	AntiRequirements *[]string   `json:"anti_requirements,omitempty"`
	KeyTerms         *[]string   `json:"key_terms,omitempty"`

	Tags         *[]string        `json:"tags,omitempty"`
	ParentSymbol *string          `json:"parent_symbol,omitempty"`
	Epistemic    *json.RawMessage `json:"epistemic,omitempty"`
}

// Apply merges c into s in place.
func (c SymbolChanges) Apply(s *Symbol) {
	setString(&s.Who, c.Who)
	setString(&s.What, c.What)
	setString(&s.Why, c.Why)
	setString(&s.Where, c.Where)
	setString(&s.When, c.When)
	setString(&s.CommandersIntent, c.CommandersIntent)
	setString(&s.ParentSymbol, c.ParentSymbol)
	setSlice(&s.Requirements, c.Requirements)
	setSlice(&s.AntiRequirements, c.AntiRequirements)
	setSlice(&s.KeyTerms, c.KeyTerms)
	if c.Tags != nil {
		s.Tags = NormalizeTags(*c.Tags)
	}
	if c.Epistemic != nil {
		s.Epistemic = slices.Clone(*c.Epistemic)
	}
	if c.How != nil {
		h := How{}
		if s.How != nil {
			h = *s.How
		}
		setString(&h.Focus, c.How.Focus)
		setSlice(&h.Steps, c.How.Steps)
		setSlice(&h.Constraints, c.How.Constraints)
		if h.Focus == "" && len(h.Steps) == 0 && len(h.Constraints) == 0 {
			s.How = nil
		} else {
			s.How = &h
		}
	}
}

// Empty reports whether c changes nothing.
func (c SymbolChanges) Empty() bool {
	return c == SymbolChanges{}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setSlice(dst *[]string, v *[]string) {
	if v != nil {
		*dst = slices.Clone(*v)
	}
}

// UpdateResult reports a successful Update.
type UpdateResult struct {
	SymbolID    string `json:"symbol_id"`
	OldVersion  int64  `json:"old_version"`
	NewVersion  int64  `json:"new_version"`
	OldHash     string `json:"old_hash"`
	NewHash     string `json:"new_hash"`
	HashChanged bool   `json:"hash_changed"`
}

// DeleteResult reports a Delete. Deleted is false when the symbol did not exist.
type DeleteResult struct {
	SymbolID             string `json:"symbol_id"`
	Deleted              bool   `json:"deleted"`
	RelationshipsRemoved int64  `json:"relationships_removed"`
}

// Symbol list bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// SymbolFilter selects symbols for List. Zero values match everything.
type SymbolFilter struct {
	Category      Category  `json:"category,omitempty"`
	Family        Family    `json:"family,omitempty"`
	Namespace     string    `json:"namespace,omitempty"`
	Tag           string    `json:"tag,omitempty"`
	CreatedAfter  time.Time `json:"created_after,omitempty"`
	CreatedBefore time.Time `json:"created_before,omitempty"`

	// Text matches tokens of the symbol id and commander's intent. When set,
	// results are ordered by relevance instead of creation time.
	Text string `json:"text,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// EffectiveLimit clamps Limit to [1, MaxListLimit], defaulting to DefaultListLimit.
func (f SymbolFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// SymbolPage is one page of List results. Total counts every match.
type SymbolPage struct {
	Items   []*Symbol `json:"items"`
	Total   int       `json:"total"`
	HasMore bool      `json:"has_more"`
}
