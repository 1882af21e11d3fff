package types

// Traversal bounds.
const (
	DefaultMaxDepth          = 2
	MaxTraversalDepth        = 10
	DefaultNeighborhoodLimit = 100
	DefaultPathLimit         = 10
	MaxTraversalLimit        = 10000
)

// TraversalFilter is shared by neighborhood and path searches.
type TraversalFilter struct {
	// MaxDepth bounds hop count. Zero selects DefaultMaxDepth; values above
	// MaxTraversalDepth are clamped.
	MaxDepth int `json:"max_depth,omitempty"`

	MinWeight     float64                `json:"min_weight,omitempty"`
	MinConfidence float64                `json:"min_confidence,omitempty"`
	Types         []RelationshipType     `json:"types,omitempty"`
	Categories    []RelationshipCategory `json:"categories,omitempty"`

	// OutgoingOnly restricts expansion to edge direction. The default
	// follows edges both ways.
	OutgoingOnly bool `json:"outgoing_only,omitempty"`

	Limit int `json:"limit,omitempty"`
}

// EffectiveDepth returns MaxDepth clamped to [1, MaxTraversalDepth].
// Results report the applied bound as DepthBound.
func (f TraversalFilter) EffectiveDepth() int {
	switch {
	case f.MaxDepth <= 0:
		return DefaultMaxDepth
	case f.MaxDepth > MaxTraversalDepth:
		return MaxTraversalDepth
	default:
		return f.MaxDepth
	}
}

// EffectiveLimit returns Limit clamped to [1, MaxTraversalLimit] with def as default.
func (f TraversalFilter) EffectiveLimit(def int) int {
	switch {
	case f.Limit <= 0:
		return def
	case f.Limit > MaxTraversalLimit:
		return MaxTraversalLimit
	default:
		return f.Limit
	}
}

// NeighborhoodOptions configures GetNeighborhood.
type NeighborhoodOptions struct {
	TraversalFilter
	IncludePaths bool `json:"include_paths,omitempty"`
}

// NeighborNode is one symbol reached by a neighborhood traversal.
type NeighborNode struct {
	SymbolID string `json:"symbol_id"`

	// Depth is the minimum hop count at which the node was reached.
	Depth int `json:"depth"`

	// CumulativeWeight sums edge weights along the recorded path.
	CumulativeWeight float64 `json:"cumulative_weight"`

	// Via is the type of the last edge on the recorded path.
	Via RelationshipType `json:"via"`

	// Path and PathTypes are set only when paths were requested.
	// len(PathTypes) == len(Path)-1.
	Path      []string           `json:"path,omitempty"`
	PathTypes []RelationshipType `json:"path_types,omitempty"`
}

// NeighborhoodStats aggregates a traversal.
type NeighborhoodStats struct {
	TotalNodes   int                      `json:"total_nodes"`
	NodesByDepth map[int]int              `json:"nodes_by_depth"`
	NodesByType  map[RelationshipType]int `json:"nodes_by_type"`
	MaxDepth     int                      `json:"max_depth"`
	Truncated    bool                     `json:"truncated"`

	// DepthBound is the hop bound applied after clamping the requested depth.
	DepthBound int `json:"depth_bound"`
}

// Neighborhood is the result of GetNeighborhood. The root is not in Nodes.
type Neighborhood struct {
	Root  string            `json:"root"`
	Nodes []*NeighborNode   `json:"nodes"`
	Stats NeighborhoodStats `json:"stats"`
}

// Path is one simple path between two symbols.
type Path struct {
	Nodes         []string           `json:"nodes"`
	Types         []RelationshipType `json:"types"`
	EdgeIDs       []string           `json:"edge_ids"`
	TotalWeight   float64            `json:"total_weight"`
	MinConfidence float64            `json:"min_confidence"`
}

// Hops returns the number of edges on p.
func (p *Path) Hops() int { return len(p.Types) }

// PathResult is the result of FindPaths.
type PathResult struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Found bool    `json:"found"`
	Paths []*Path `json:"paths"`

	// DepthBound is the hop bound applied after clamping the requested depth.
	DepthBound int `json:"depth_bound"`

	// Truncated reports that in-flight paths were dropped at some level, so
	// longer paths may be missing.
	Truncated bool `json:"truncated"`
}

// CentralityScore is the degree profile of one symbol.
type CentralityScore struct {
	SymbolID       string  `json:"symbol_id"`
	InDegree       int     `json:"in_degree"`
	OutDegree      int     `json:"out_degree"`
	TotalDegree    int     `json:"total_degree"`
	WeightedDegree float64 `json:"weighted_degree"`
}

// GraphStats summarizes the whole graph.
type GraphStats struct {
	NodeCount       int                          `json:"node_count"`
	EdgeCount       int                          `json:"edge_count"`
	AverageDegree   float64                      `json:"average_degree"`
	Density         float64                      `json:"density"`
	EdgesByType     map[RelationshipType]int     `json:"edges_by_type"`
	EdgesByCategory map[RelationshipCategory]int `json:"edges_by_category"`
}
