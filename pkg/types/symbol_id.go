package types

import (
	"fmt"
	"regexp"
	"strings"
)

// SymbolPrefix opens every symbol identifier.
const SymbolPrefix = "Ξ"

// SegmentSeparator separates identifier segments.
const SegmentSeparator = "."

// MaxSegmentLength bounds each identifier segment.
const MaxSegmentLength = 50

var (
	namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,49}$`)
	entityPattern    = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{0,49}$`)
	tickerPattern    = regexp.MustCompile(`^[A-Z]{1,5}$`)
)

// SymbolID is a parsed symbol identifier.
//
//	Ξ.C.ACME            category C (COMPANY), entity ACME
//	Ξ.acme.PR.ONBOARD   namespace acme, category PR (PROCESS)
//	Ξ.ACME              no category segment; inferred COMPANY ticker
type SymbolID struct {
	Raw       string   `json:"raw"`
	Namespace string   `json:"namespace,omitempty"`
	Category  Category `json:"category"`
	Entities  []string `json:"entities"`

	// Inferred is set when the category was not spelled out in Raw.
	Inferred bool `json:"inferred,omitempty"`
}

// Family returns the family of the identifier's category.
func (id SymbolID) Family() Family { return id.Category.Family() }

// String returns the canonical identifier.
func (id SymbolID) String() string { return id.Raw }

// ParseSymbolID validates raw against the identifier grammar and returns its
// parts. Errors wrap ErrInvalidIdentifier.
func ParseSymbolID(raw string) (SymbolID, error) {
	segs := strings.Split(raw, SegmentSeparator)
	if len(segs) < 2 || segs[0] != SymbolPrefix {
		return SymbolID{}, fmt.Errorf("%w: %q must start with %q", ErrInvalidIdentifier, raw, SymbolPrefix+SegmentSeparator)
	}
	rest := segs[1:]
	for _, s := range rest {
		if s == "" || len(s) > MaxSegmentLength {
			return SymbolID{}, fmt.Errorf("%w: %q has a segment outside 1-%d characters", ErrInvalidIdentifier, raw, MaxSegmentLength)
		}
	}

	id := SymbolID{Raw: raw}
	if namespacePattern.MatchString(rest[0]) {
		id.Namespace = rest[0]
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return SymbolID{}, fmt.Errorf("%w: %q has no entity segment", ErrInvalidIdentifier, raw)
	}

	switch cat, ok := CategoryForCode(rest[0]); {
	case ok && len(rest) >= 2:
		id.Category = cat
		rest = rest[1:]
	case len(rest) == 1 && tickerPattern.MatchString(rest[0]):
		id.Category = CategoryCompany
		id.Inferred = true
	default:
		return SymbolID{}, fmt.Errorf("%w: %q has no recognizable category", ErrInvalidIdentifier, raw)
	}

	for _, e := range rest {
		if !entityPattern.MatchString(e) {
			return SymbolID{}, fmt.Errorf("%w: entity segment %q in %q", ErrInvalidIdentifier, e, raw)
		}
	}
	id.Entities = append([]string(nil), rest...)
	return id, nil
}

// ValidSymbolID reports whether raw parses.
func ValidSymbolID(raw string) bool {
	_, err := ParseSymbolID(raw)
	return err == nil
}

// FormatSymbolID builds an identifier from its parts. It does not validate.
func FormatSymbolID(namespace string, category Category, entities ...string) string {
	parts := []string{SymbolPrefix}
	if namespace != "" {
		parts = append(parts, namespace)
	}
	parts = append(parts, category.Code())
	parts = append(parts, entities...)
	return strings.Join(parts, SegmentSeparator)
}
