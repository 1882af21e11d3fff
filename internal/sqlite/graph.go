package sqlite

import (
	"cmp"
	"slices"
	"strings"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// defaultMaxPartialPaths bounds the in-flight paths of one FindPaths level.
const defaultMaxPartialPaths = 100000

// inChunk bounds the number of ids bound into one IN (...) list.
const inChunk = 400

// hop is one traversable edge as seen from the node it leaves. For an
// incoming edge followed backwards, neighbor is the edge's source.
type hop struct {
	edgeID     string
	neighbor   string
	rt         types.RelationshipType
	weight     float64
	confidence float64
}

// edgeLoader fetches and memoizes adjacency lists for one traversal, so
// each node's edges are read at most once per call.
type edgeLoader struct {
	q            execer
	conds        []string
	args         []any
	outgoingOnly bool
	memo         map[string][]hop
}

func newEdgeLoader(q execer, f types.TraversalFilter) (*edgeLoader, error) {
	conds, args, err := edgeConditions(f.Types, f.Categories, f.MinWeight, f.MinConfidence)
	if err != nil {
		return nil, err
	}
	return &edgeLoader{
		q:            q,
		conds:        conds,
		args:         args,
		outgoingOnly: f.OutgoingOnly,
		memo:         map[string][]hop{},
	}, nil
}

// load reads the adjacency of every id not yet memoized, one batched query
// per direction and chunk.
func (l *edgeLoader) load(ids []string) error {
	var missing []string
	for _, id := range ids {
		if _, ok := l.memo[id]; ok {
			continue
		}
		l.memo[id] = []hop{}
		missing = append(missing, id)
	}
	for chunk := range slices.Chunk(missing, inChunk) {
		if err := l.fetch("from_symbol_id", "to_symbol_id", chunk); err != nil {
			return err
		}
		if !l.outgoingOnly {
			if err := l.fetch("to_symbol_id", "from_symbol_id", chunk); err != nil {
				return err
			}
		}
	}
	for _, id := range missing {
		slices.SortFunc(l.memo[id], func(x, y hop) int {
			if c := cmp.Compare(y.weight, x.weight); c != 0 {
				return c
			}
			if c := cmp.Compare(y.confidence, x.confidence); c != 0 {
				return c
			}
			return strings.Compare(x.edgeID, y.edgeID)
		})
	}
	return nil
}

func (l *edgeLoader) fetch(near, far string, ids []string) error {
	ph := strings.Repeat("?, ", len(ids))
	ph = ph[:len(ph)-2]
	conds := append([]string{near + " IN (" + ph + ")"}, l.conds...)
	args := make([]any, 0, len(ids)+len(l.args))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, l.args...)

	rows, err := l.q.Query(
		"SELECT relationship_id, "+near+", "+far+", relationship_type, weight, confidence FROM relationships WHERE "+
			strings.Join(conds, " AND "),
		args...,
	)
	if err != nil {
		return storageErr("load adjacency", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			h      hop
			source string
			rt     string
		)
		if err := rows.Scan(&h.edgeID, &source, &h.neighbor, &rt, &h.weight, &h.confidence); err != nil {
			return storageErr("read adjacency", err)
		}
		h.rt = types.RelationshipType(rt)
		l.memo[source] = append(l.memo[source], h)
	}
	return storageErr("load adjacency", rows.Err())
}

func (l *edgeLoader) hops(id string) []hop { return l.memo[id] }

// reach is the recorded best path to one node.
type reach struct {
	id     string
	depth  int
	weight float64
	path   []string
	via    []types.RelationshipType
}

// GetNeighborhood expands level by level from symbolID. Every node is
// reported once at its minimum depth, through the heaviest path among those
// of that depth. Expansion never re-enters a node on the current path.
func (b *Backend) GetNeighborhood(symbolID string, opts types.NeighborhoodOptions) (*types.Neighborhood, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &types.Neighborhood{
		Root:  symbolID,
		Nodes: []*types.NeighborNode{},
		Stats: types.NeighborhoodStats{
			NodesByDepth: map[int]int{},
			NodesByType:  map[types.RelationshipType]int{},
			DepthBound:   opts.EffectiveDepth(),
		},
	}
	loader, err := newEdgeLoader(b.db, opts.TraversalFilter)
	if err != nil {
		return nil, err
	}
	ok, err := symbolExists(b.db, symbolID)
	if err != nil {
		return nil, storageErr("check root", err)
	}
	if !ok {
		return result, nil
	}

	maxDepth := result.Stats.DepthBound
	limit := opts.EffectiveLimit(types.DefaultNeighborhoodLimit)

	visited := map[string]*reach{symbolID: {id: symbolID, path: []string{symbolID}}}
	frontier := []string{symbolID}
	var found []*reach

	for depth := 1; depth <= maxDepth && len(frontier) > 0 && len(found) <= limit; depth++ {
		if err := loader.load(frontier); err != nil {
			return nil, err
		}
		level := map[string]*reach{}
		var order []string
		for _, id := range frontier {
			parent := visited[id]
			for _, h := range loader.hops(id) {
				if slices.Contains(parent.path, h.neighbor) {
					continue
				}
				if _, seen := visited[h.neighbor]; seen {
					continue
				}
				w := parent.weight + h.weight
				prev, ok := level[h.neighbor]
				if ok && prev.weight >= w {
					continue
				}
				level[h.neighbor] = &reach{
					id:     h.neighbor,
					depth:  depth,
					weight: w,
					path:   append(slices.Clone(parent.path), h.neighbor),
					via:    append(slices.Clone(parent.via), h.rt),
				}
				if !ok {
					order = append(order, h.neighbor)
				}
			}
		}
		frontier = order
		for _, id := range order {
			visited[id] = level[id]
			found = append(found, level[id])
		}
	}

	slices.SortStableFunc(found, func(x, y *reach) int {
		if c := cmp.Compare(x.depth, y.depth); c != 0 {
			return c
		}
		if c := cmp.Compare(y.weight, x.weight); c != 0 {
			return c
		}
		return strings.Compare(x.id, y.id)
	})
	if len(found) > limit {
		found = found[:limit]
		result.Stats.Truncated = true
	}

	for _, r := range found {
		n := &types.NeighborNode{
			SymbolID:         r.id,
			Depth:            r.depth,
			CumulativeWeight: r.weight,
			Via:              r.via[len(r.via)-1],
		}
		if opts.IncludePaths {
			n.Path = r.path
			n.PathTypes = r.via
		}
		result.Nodes = append(result.Nodes, n)
		result.Stats.NodesByDepth[r.depth]++
		result.Stats.NodesByType[n.Via]++
		result.Stats.MaxDepth = max(result.Stats.MaxDepth, r.depth)
	}
	result.Stats.TotalNodes = len(result.Nodes)
	return result, nil
}

// FindPaths enumerates simple paths from one symbol to another, shortest
// first and heaviest first among equal lengths.
func (b *Backend) FindPaths(from, to string, filter types.TraversalFilter) (*types.PathResult, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return b.findPaths(from, to, filter, filter.EffectiveLimit(types.DefaultPathLimit))
}

// FindShortestPath returns the shortest, then heaviest, path or nil.
func (b *Backend) FindShortestPath(from, to string, filter types.TraversalFilter) (*types.Path, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	res, err := b.findPaths(from, to, filter, 1)
	if err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, nil
	}
	return res.Paths[0], nil
}

// partialPath is an in-flight simple path.
type partialPath struct {
	nodes   []string
	via     []types.RelationshipType
	edges   []string
	weight  float64
	minConf float64
}

func (p *partialPath) extend(h hop) *partialPath {
	minConf := h.confidence
	if len(p.edges) > 0 {
		minConf = min(p.minConf, h.confidence)
	}
	return &partialPath{
		nodes:   append(slices.Clone(p.nodes), h.neighbor),
		via:     append(slices.Clone(p.via), h.rt),
		edges:   append(slices.Clone(p.edges), h.edgeID),
		weight:  p.weight + h.weight,
		minConf: minConf,
	}
}

// findPaths runs a breadth-first search over partial paths. A path that
// reaches to is complete and not extended. The search stops after the
// level at which limit paths have been found, so shorter paths always win.
func (b *Backend) findPaths(from, to string, filter types.TraversalFilter, limit int) (*types.PathResult, error) {
	res := &types.PathResult{From: from, To: to, Paths: []*types.Path{}, DepthBound: filter.EffectiveDepth()}
	loader, err := newEdgeLoader(b.db, filter)
	if err != nil {
		return nil, err
	}
	if from == to {
		return res, nil
	}
	for _, id := range []string{from, to} {
		ok, err := symbolExists(b.db, id)
		if err != nil {
			return nil, storageErr("check endpoint", err)
		}
		if !ok {
			return res, nil
		}
	}

	maxDepth := res.DepthBound
	level := []*partialPath{{nodes: []string{from}}}
	var complete []*partialPath

	for depth := 1; depth <= maxDepth && len(level) > 0; depth++ {
		lasts := make([]string, 0, len(level))
		for _, p := range level {
			lasts = append(lasts, p.nodes[len(p.nodes)-1])
		}
		if err := loader.load(lasts); err != nil {
			return nil, err
		}

		var next []*partialPath
		for _, p := range level {
			for _, h := range loader.hops(p.nodes[len(p.nodes)-1]) {
				if slices.Contains(p.nodes, h.neighbor) {
					continue
				}
				if h.neighbor == to {
					complete = append(complete, p.extend(h))
					continue
				}
				if depth == maxDepth {
					continue
				}
				if len(next) >= b.maxPartialPaths {
					if !res.Truncated {
						b.logger.Debug("path search truncated", "from", from, "to", to, "depth", depth)
					}
					res.Truncated = true
					continue
				}
				next = append(next, p.extend(h))
			}
		}
		if len(complete) >= limit {
			break
		}
		level = next
	}

	slices.SortStableFunc(complete, func(x, y *partialPath) int {
		if c := cmp.Compare(len(x.edges), len(y.edges)); c != 0 {
			return c
		}
		if c := cmp.Compare(y.weight, x.weight); c != 0 {
			return c
		}
		return slices.Compare(x.nodes, y.nodes)
	})
	if len(complete) > limit {
		complete = complete[:limit]
	}
	for _, p := range complete {
		res.Paths = append(res.Paths, &types.Path{
			Nodes:         p.nodes,
			Types:         p.via,
			EdgeIDs:       p.edges,
			TotalWeight:   p.weight,
			MinConfidence: p.minConf,
		})
	}
	res.Found = len(res.Paths) > 0
	return res, nil
}
