package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

const relationshipColumns = "relationship_id, from_symbol_id, to_symbol_id, relationship_type, category, weight, confidence, properties, evidence, created_at, created_by"

// CreateRelationship creates one edge, and its inverse when req.Bidirectional
// is set and the type has one, in a single transaction.
func (b *Backend) CreateRelationship(req types.RelationshipRequest) (*types.CreateRelationshipResult, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	details := map[string]any{"to_symbol_id": req.ToSymbolID, "relationship_type": string(req.Type)}
	edge, err := b.newRelationship(req)
	if err != nil {
		b.recordAttempt(types.EventRelationshipCreate, req.FromSymbolID, req.CreatedBy, err, details)
		return nil, fmt.Errorf("create relationship %s -%s-> %s: %w", req.FromSymbolID, req.Type, req.ToSymbolID, err)
	}

	var result *types.CreateRelationshipResult
	err = b.inTx("create relationship", func(tx *sql.Tx) error {
		result, err = b.createRelationshipTx(tx, edge, req.Bidirectional)
		return err
	})
	if err != nil {
		b.recordAttempt(types.EventRelationshipCreate, req.FromSymbolID, req.CreatedBy, err, details)
		return nil, fmt.Errorf("create relationship %s -%s-> %s: %w", req.FromSymbolID, req.Type, req.ToSymbolID, err)
	}

	b.logger.Debug("relationship created", "relationship_id", result.RelationshipID,
		"from", edge.FromSymbolID, "to", edge.ToSymbolID, "type", string(edge.Type), "inverse_id", result.InverseID)
	return result, nil
}

// CreateRelationshipsBatch creates every edge in reqs in one transaction.
// The first failure aborts the batch and nothing is written.
func (b *Backend) CreateRelationshipsBatch(reqs []types.RelationshipRequest) ([]*types.CreateRelationshipResult, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	edges := make([]*types.Relationship, len(reqs))
	for i, req := range reqs {
		if edges[i], err = b.newRelationship(req); err != nil {
			err = fmt.Errorf("relationship %d: %w", i, err)
			b.recordAttempt(types.EventRelationshipCreate, req.FromSymbolID, req.CreatedBy, err, map[string]any{"batch_size": len(reqs)})
			return nil, fmt.Errorf("create relationships: %w", err)
		}
	}

	results := make([]*types.CreateRelationshipResult, 0, len(reqs))
	failed := -1
	err = b.inTx("create relationships", func(tx *sql.Tx) error {
		for i, edge := range edges {
			res, err := b.createRelationshipTx(tx, edge, reqs[i].Bidirectional)
			if err != nil {
				failed = i
				return fmt.Errorf("relationship %d: %w", i, err)
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		var symbolID, actor string
		details := map[string]any{"batch_size": len(reqs)}
		if failed >= 0 {
			symbolID, actor = reqs[failed].FromSymbolID, reqs[failed].CreatedBy
			details["batch_index"] = failed
		}
		b.recordAttempt(types.EventRelationshipCreate, symbolID, actor, err, details)
		return nil, fmt.Errorf("create relationships: %w", err)
	}

	b.logger.Debug("relationships created", "count", len(results))
	return results, nil
}

// newRelationship validates req and builds the edge it describes.
func (b *Backend) newRelationship(req types.RelationshipRequest) (*types.Relationship, error) {
	rt, err := types.ParseRelationshipType(string(req.Type))
	if err != nil {
		return nil, err
	}
	req.Type = rt
	if err := b.checkStruct(req); err != nil {
		return nil, err
	}
	if req.FromSymbolID == req.ToSymbolID {
		return nil, fmt.Errorf("%w: %s", types.ErrSelfReference, req.FromSymbolID)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating UUID v7: %w", err)
	}
	return &types.Relationship{
		ID:           id.String(),
		FromSymbolID: req.FromSymbolID,
		ToSymbolID:   req.ToSymbolID,
		Type:         rt,
		Category:     rt.Category(),
		Weight:       req.EffectiveWeight(),
		Confidence:   req.EffectiveConfidence(),
		Properties:   req.Properties,
		Evidence:     req.Evidence,
		CreatedAt:    b.timestamp(),
		CreatedBy:    req.CreatedBy,
	}, nil
}

// createRelationshipTx checks endpoints and uniqueness inside tx, then
// inserts the edge, its optional inverse and the audit entry.
func (b *Backend) createRelationshipTx(tx *sql.Tx, edge *types.Relationship, bidirectional bool) (*types.CreateRelationshipResult, error) {
	for _, end := range []string{edge.FromSymbolID, edge.ToSymbolID} {
		ok, err := symbolExists(tx, end)
		if err != nil {
			return nil, storageErr("check endpoint", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrDanglingReference, end)
		}
	}

	dup, err := edgeExists(tx, edge.FromSymbolID, edge.ToSymbolID, edge.Type)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, types.ErrDuplicateEdge
	}

	var inverse *types.Relationship
	if inv, ok := edge.Type.Inverse(); ok && bidirectional {
		exists, err := edgeExists(tx, edge.ToSymbolID, edge.FromSymbolID, inv)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s -%s-> %s", types.ErrBidirectionalConflict, edge.ToSymbolID, inv, edge.FromSymbolID)
		}
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generating UUID v7: %w", err)
		}
		inverse = &types.Relationship{
			ID:           id.String(),
			FromSymbolID: edge.ToSymbolID,
			ToSymbolID:   edge.FromSymbolID,
			Type:         inv,
			Category:     inv.Category(),
			Weight:       edge.Weight,
			Confidence:   edge.Confidence,
			Properties:   edge.Properties,
			Evidence:     edge.Evidence,
			CreatedAt:    edge.CreatedAt,
			CreatedBy:    edge.CreatedBy,
		}
	}

	result := &types.CreateRelationshipResult{RelationshipID: edge.ID}
	if err := insertRelationship(tx, edge); err != nil {
		return nil, err
	}
	if inverse != nil {
		if err := insertRelationship(tx, inverse); err != nil {
			return nil, err
		}
		result.InverseID = inverse.ID
	}

	details := map[string]any{
		"relationship_id":   edge.ID,
		"to_symbol_id":      edge.ToSymbolID,
		"relationship_type": string(edge.Type),
		"weight":            edge.Weight,
		"confidence":        edge.Confidence,
	}
	if inverse != nil {
		details["inverse_id"] = inverse.ID
	}
	_, err = insertAudit(tx, types.AuditEntry{
		EventType: types.EventRelationshipCreate,
		SymbolID:  edge.FromSymbolID,
		Outcome:   types.OutcomeSuccess,
		Actor:     edge.CreatedBy,
		Details:   details,
	}, edge.CreatedAt)
	if err != nil {
		return nil, storageErr("write audit entry", err)
	}
	return result, nil
}

func edgeExists(q execer, from, to string, rt types.RelationshipType) (bool, error) {
	var id string
	err := q.QueryRow(
		"SELECT relationship_id FROM relationships WHERE from_symbol_id = ? AND to_symbol_id = ? AND relationship_type = ?",
		from, to, string(rt),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("check relationship uniqueness", err)
	}
	return true, nil
}

func insertRelationship(tx *sql.Tx, r *types.Relationship) error {
	var props any
	if len(r.Properties) > 0 {
		data, err := json.Marshal(r.Properties)
		if err != nil {
			return fmt.Errorf("%w: relationship properties: %v", types.ErrInvalidRequest, err)
		}
		props = string(data)
	}
	_, err := tx.Exec(
		"INSERT INTO relationships ("+relationshipColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.FromSymbolID, r.ToSymbolID, string(r.Type), string(r.Category),
		r.Weight, r.Confidence, props, r.Evidence, formatTime(r.CreatedAt), r.CreatedBy,
	)
	return storageErr("persisting relationship", err)
}

// GetRelationship returns the edge with id.
func (b *Backend) GetRelationship(id string) (*types.Relationship, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	row := b.db.QueryRow("SELECT "+relationshipColumns+" FROM relationships WHERE relationship_id = ?", id)
	r, err := hydrateRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get relationship %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get relationship %s: %w", id, storageErr("read relationship", err))
	}
	return r, nil
}

// DeleteRelationship removes the edge with id.
func (b *Backend) DeleteRelationship(id, actor string) error {
	unlock, err := b.readLock()
	if err != nil {
		return err
	}
	defer unlock()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	var from string
	err = b.inTx("delete relationship", func(tx *sql.Tx) error {
		r, err := hydrateRelationship(tx.QueryRow("SELECT "+relationshipColumns+" FROM relationships WHERE relationship_id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		if err != nil {
			return storageErr("read relationship", err)
		}
		from = r.FromSymbolID
		if _, err := tx.Exec("DELETE FROM relationships WHERE relationship_id = ?", id); err != nil {
			return storageErr("delete relationship", err)
		}
		_, err = insertAudit(tx, types.AuditEntry{
			EventType: types.EventRelationshipDelete,
			SymbolID:  r.FromSymbolID,
			Outcome:   types.OutcomeSuccess,
			Actor:     actor,
			Details: map[string]any{
				"relationship_id":   r.ID,
				"to_symbol_id":      r.ToSymbolID,
				"relationship_type": string(r.Type),
			},
		}, b.timestamp())
		return storageErr("write audit entry", err)
	})
	if err != nil {
		b.recordAttempt(types.EventRelationshipDelete, from, actor, err, map[string]any{"relationship_id": id})
		return fmt.Errorf("delete relationship %s: %w", id, err)
	}
	b.logger.Debug("relationship deleted", "relationship_id", id)
	return nil
}

// GetOutgoing returns edges leaving symbolID, strongest first.
func (b *Backend) GetOutgoing(symbolID string, filter types.RelationshipFilter) ([]*types.Relationship, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return b.edgesFor("from_symbol_id", symbolID, filter)
}

// GetIncoming returns edges entering symbolID, strongest first.
func (b *Backend) GetIncoming(symbolID string, filter types.RelationshipFilter) ([]*types.Relationship, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return b.edgesFor("to_symbol_id", symbolID, filter)
}

// GetRelated returns both directions around symbolID with per-type counts.
func (b *Backend) GetRelated(symbolID string, filter types.RelationshipFilter) (*types.RelatedResult, error) {
	unlock, err := b.readLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	out, err := b.edgesFor("from_symbol_id", symbolID, filter)
	if err != nil {
		return nil, err
	}
	in, err := b.edgesFor("to_symbol_id", symbolID, filter)
	if err != nil {
		return nil, err
	}
	res := &types.RelatedResult{
		SymbolID:   symbolID,
		Outgoing:   out,
		Incoming:   in,
		TypeCounts: map[types.RelationshipType]int{},
		Total:      len(out) + len(in),
	}
	for _, r := range out {
		res.TypeCounts[r.Type]++
	}
	for _, r := range in {
		res.TypeCounts[r.Type]++
	}
	return res, nil
}

// edgesFor lists edges whose column equals symbolID. column is one of the
// two endpoint columns and never user input.
func (b *Backend) edgesFor(column, symbolID string, filter types.RelationshipFilter) ([]*types.Relationship, error) {
	conds, args, err := edgeConditions(filter.Types, filter.Categories, filter.MinWeight, filter.MinConfidence)
	if err != nil {
		return nil, err
	}
	conds = append([]string{column + " = ?"}, conds...)
	args = append([]any{symbolID}, args...)

	query := "SELECT " + relationshipColumns + " FROM relationships WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY weight DESC, confidence DESC, created_at, relationship_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, min(filter.Limit, types.MaxTraversalLimit))
	}
	return queryRelationships(b.db, query, args...)
}

// edgeConditions builds the WHERE terms shared by edge lookups and
// traversals. Types and categories are validated first.
func edgeConditions(rts []types.RelationshipType, cats []types.RelationshipCategory, minWeight, minConfidence float64) ([]string, []any, error) {
	if minWeight < 0 || minWeight > 1 || minConfidence < 0 || minConfidence > 1 {
		return nil, nil, types.ErrInvalidWeight
	}
	var (
		conds []string
		args  []any
	)
	if len(rts) > 0 {
		ph := make([]string, len(rts))
		for i, rt := range rts {
			parsed, err := types.ParseRelationshipType(string(rt))
			if err != nil {
				return nil, nil, err
			}
			ph[i] = "?"
			args = append(args, string(parsed))
		}
		conds = append(conds, "relationship_type IN ("+strings.Join(ph, ", ")+")")
	}
	if len(cats) > 0 {
		ph := make([]string, len(cats))
		for i, c := range cats {
			parsed, err := types.ParseRelationshipCategory(string(c))
			if err != nil {
				return nil, nil, err
			}
			ph[i] = "?"
			args = append(args, string(parsed))
		}
		conds = append(conds, "category IN ("+strings.Join(ph, ", ")+")")
	}
	if minWeight > 0 {
		conds = append(conds, "weight >= ?")
		args = append(args, minWeight)
	}
	if minConfidence > 0 {
		conds = append(conds, "confidence >= ?")
		args = append(args, minConfidence)
	}
	return conds, args, nil
}

func queryRelationships(q execer, query string, args ...any) ([]*types.Relationship, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, storageErr("query relationships", err)
	}
	defer rows.Close()

	out := []*types.Relationship{}
	for rows.Next() {
		r, err := hydrateRelationship(rows)
		if err != nil {
			return nil, storageErr("read relationship", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query relationships", err)
	}
	return out, nil
}

// hydrateRelationship scans one row selected with relationshipColumns.
func hydrateRelationship(row scanner) (*types.Relationship, error) {
	var (
		r         types.Relationship
		rt, cat   string
		props     sql.NullString
		createdAt string
	)
	if err := row.Scan(&r.ID, &r.FromSymbolID, &r.ToSymbolID, &rt, &cat,
		&r.Weight, &r.Confidence, &props, &r.Evidence, &createdAt, &r.CreatedBy); err != nil {
		return nil, err
	}
	r.Type = types.RelationshipType(rt)
	r.Category = types.RelationshipCategory(cat)
	ts, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse relationship timestamp: %w", err)
	}
	r.CreatedAt = ts
	if props.Valid && props.String != "" {
		if err := json.Unmarshal([]byte(props.String), &r.Properties); err != nil {
			return nil, fmt.Errorf("decode relationship properties: %w", err)
		}
	}
	return &r, nil
}
