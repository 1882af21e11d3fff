package sqlite

import (
	"github.com/mesh-intelligence/symbols/pkg/types"
)

// DefaultCentralityLimit is used when GetTopByCentrality gets limit <= 0.
const DefaultCentralityLimit = 10

const centralityQuery = `SELECT symbol_id, SUM(in_deg), SUM(out_deg), SUM(weight)
FROM (
    SELECT to_symbol_id AS symbol_id, 1 AS in_deg, 0 AS out_deg, weight FROM relationships
    UNION ALL
    SELECT from_symbol_id AS symbol_id, 0 AS in_deg, 1 AS out_deg, weight FROM relationships
)
GROUP BY symbol_id
ORDER BY SUM(in_deg) + SUM(out_deg) DESC, SUM(weight) DESC, symbol_id
LIMIT ?`

// GetTopByCentrality returns the limit symbols with the highest total
// degree. Symbols without edges are not ranked.
func (b *Backend) GetTopByCentrality(limit int) ([]types.CentralityScore, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if limit <= 0 {
		limit = DefaultCentralityLimit
	}
	rows, err := b.db.Query(centralityQuery, min(limit, types.MaxTraversalLimit))
	if err != nil {
		return nil, storageErr("query centrality", err)
	}
	defer rows.Close()

	scores := []types.CentralityScore{}
	for rows.Next() {
		var s types.CentralityScore
		if err := rows.Scan(&s.SymbolID, &s.InDegree, &s.OutDegree, &s.WeightedDegree); err != nil {
			return nil, storageErr("read centrality", err)
		}
		s.TotalDegree = s.InDegree + s.OutDegree
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query centrality", err)
	}
	return scores, nil
}

// GetGraphStats summarizes node and edge counts. AverageDegree is the mean
// of in plus out degree, 2E/N. Density is E/(N(N-1)) and zero below two
// nodes.
func (b *Backend) GetGraphStats() (*types.GraphStats, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	stats := &types.GraphStats{
		EdgesByType:     map[types.RelationshipType]int{},
		EdgesByCategory: map[types.RelationshipCategory]int{},
	}
	if err := b.db.QueryRow("SELECT COUNT(*) FROM symbols").Scan(&stats.NodeCount); err != nil {
		return nil, storageErr("count symbols", err)
	}

	rows, err := b.db.Query("SELECT relationship_type, category, COUNT(*) FROM relationships GROUP BY relationship_type, category")
	if err != nil {
		return nil, storageErr("count relationships", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rt, cat string
			n       int
		)
		if err := rows.Scan(&rt, &cat, &n); err != nil {
			return nil, storageErr("read relationship counts", err)
		}
		stats.EdgesByType[types.RelationshipType(rt)] += n
		stats.EdgesByCategory[types.RelationshipCategory(cat)] += n
		stats.EdgeCount += n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("count relationships", err)
	}

	if n := float64(stats.NodeCount); n > 0 {
		e := float64(stats.EdgeCount)
		stats.AverageDegree = 2 * e / n
		if n > 1 {
			stats.Density = e / (n * (n - 1))
		}
	}
	return stats, nil
}
