package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

func f64(v float64) *float64 { return &v }

// link creates one edge and returns its id.
func link(t *testing.T, b *Backend, from, to string, rt types.RelationshipType, weight, confidence float64) string {
	t.Helper()
	res, err := b.CreateRelationship(types.RelationshipRequest{
		FromSymbolID: from,
		ToSymbolID:   to,
		Type:         rt,
		Weight:       f64(weight),
		Confidence:   f64(confidence),
	})
	require.NoError(t, err)
	return res.RelationshipID
}

func TestCreateRelationship_Defaults(t *testing.T) {
	b := setupBackend(t)
	createSymbol(t, b, "Ξ.C.ACME")
	createSymbol(t, b, "Ξ.C.WIDGETCO")

	res, err := b.CreateRelationship(types.RelationshipRequest{
		FromSymbolID: "Ξ.C.ACME",
		ToSymbolID:   "Ξ.C.WIDGETCO",
		Type:         "acquired",
		Properties:   map[string]any{"year": 2024.0},
		Evidence:     "press release",
		CreatedBy:    "analyst",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RelationshipID)
	assert.Empty(t, res.InverseID)

	r, err := b.GetRelationship(res.RelationshipID)
	require.NoError(t, err)
	assert.Equal(t, types.RelAcquired, r.Type)
	assert.Equal(t, types.RelCategoryOwnership, r.Category)
	assert.Equal(t, 1.0, r.Weight)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, 2024.0, r.Properties["year"])
	assert.Equal(t, "press release", r.Evidence)
	assert.Equal(t, "analyst", r.CreatedBy)
}

func TestCreateRelationship_Rejections(t *testing.T) {
	b := setupBackend(t)
	createSymbol(t, b, "Ξ.C.ACME")
	createSymbol(t, b, "Ξ.C.WIDGETCO")
	link(t, b, "Ξ.C.ACME", "Ξ.C.WIDGETCO", types.RelOwns, 0.8, 0.9)

	tests := []struct {
		name string
		req  types.RelationshipRequest
		want error
	}{
		{"self loop", types.RelationshipRequest{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.ACME", Type: types.RelOwns}, types.ErrSelfReference},
		{"unknown type", types.RelationshipRequest{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: "LOVES"}, types.ErrInvalidRelationshipType},
		{"weight above one", types.RelationshipRequest{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: types.RelCauses, Weight: f64(1.5)}, types.ErrInvalidWeight},
		{"negative confidence", types.RelationshipRequest{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: types.RelCauses, Confidence: f64(-0.1)}, types.ErrInvalidWeight},
		{"missing target", types.RelationshipRequest{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.GHOST", Type: types.RelOwns}, types.ErrDanglingReference},
		{"missing source", types.RelationshipRequest{FromSymbolID: "Ξ.C.GHOST", ToSymbolID: "Ξ.C.ACME", Type: types.RelOwns}, types.ErrDanglingReference},
		{"duplicate with other weight", types.RelationshipRequest{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: types.RelOwns, Weight: f64(0.1)}, types.ErrDuplicateEdge},
		{"missing endpoint field", types.RelationshipRequest{FromSymbolID: "Ξ.C.ACME", Type: types.RelOwns}, types.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateRelationship(tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	out, err := b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{})
	require.NoError(t, err)
	assert.Len(t, out, 1, "rejected requests must not write edges")
}

func TestCreateRelationship_Bidirectional(t *testing.T) {
	b := setupBackend(t)
	createSymbol(t, b, "Ξ.C.ACME")
	createSymbol(t, b, "Ξ.C.WIDGETCO")

	res, err := b.CreateRelationship(types.RelationshipRequest{
		FromSymbolID:  "Ξ.C.WIDGETCO",
		ToSymbolID:    "Ξ.C.ACME",
		Type:          types.RelAcquiredBy,
		Weight:        f64(0.7),
		Bidirectional: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.InverseID)

	inv, err := b.GetRelationship(res.InverseID)
	require.NoError(t, err)
	assert.Equal(t, "Ξ.C.ACME", inv.FromSymbolID)
	assert.Equal(t, "Ξ.C.WIDGETCO", inv.ToSymbolID)
	assert.Equal(t, types.RelAcquired, inv.Type)
	assert.Equal(t, 0.7, inv.Weight)
}

func TestCreateRelationship_BidirectionalWithoutInverse(t *testing.T) {
	b := setupBackend(t)
	createSymbol(t, b, "Ξ.E.OUTAGE")
	createSymbol(t, b, "Ξ.I.BREACH")

	res, err := b.CreateRelationship(types.RelationshipRequest{
		FromSymbolID: "Ξ.E.OUTAGE", ToSymbolID: "Ξ.I.BREACH", Type: types.RelCauses, Bidirectional: true,
	})
	require.NoError(t, err)
	assert.Empty(t, res.InverseID, "CAUSES has no inverse")
}

func TestCreateRelationship_BidirectionalSymmetric(t *testing.T) {
	b := setupBackend(t)
	createSymbol(t, b, "Ξ.C.ACME")
	createSymbol(t, b, "Ξ.C.WIDGETCO")

	res, err := b.CreateRelationship(types.RelationshipRequest{
		FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: types.RelCompetesWith, Bidirectional: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.InverseID)

	back, err := b.GetOutgoing("Ξ.C.WIDGETCO", types.RelationshipFilter{})
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, types.RelCompetesWith, back[0].Type)
}

func TestCreateRelationship_BidirectionalConflict(t *testing.T) {
	b := setupBackend(t)
	createSymbol(t, b, "Ξ.C.ACME")
	createSymbol(t, b, "Ξ.C.WIDGETCO")
	link(t, b, "Ξ.C.ACME", "Ξ.C.WIDGETCO", types.RelAcquired, 1, 1)

	_, err := b.CreateRelationship(types.RelationshipRequest{
		FromSymbolID: "Ξ.C.WIDGETCO", ToSymbolID: "Ξ.C.ACME", Type: types.RelAcquiredBy, Bidirectional: true,
	})
	require.ErrorIs(t, err, types.ErrBidirectionalConflict)

	out, err := b.GetOutgoing("Ξ.C.WIDGETCO", types.RelationshipFilter{})
	require.NoError(t, err)
	assert.Empty(t, out, "forward edge must roll back with the conflict")

	entries, err := b.GetAuditForSymbol("Ξ.C.WIDGETCO", 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, types.EventRelationshipCreate, entries[0].EventType)
	assert.Equal(t, types.OutcomeRejected, entries[0].Outcome)
}

func TestCreateRelationshipsBatch_Atomic(t *testing.T) {
	b := setupBackend(t)
	createSymbol(t, b, "Ξ.C.ACME")
	createSymbol(t, b, "Ξ.C.WIDGETCO")
	createSymbol(t, b, "Ξ.P.JANE")

	_, err := b.CreateRelationshipsBatch([]types.RelationshipRequest{
		{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: types.RelOwns},
		{FromSymbolID: "Ξ.P.JANE", ToSymbolID: "Ξ.C.GHOST", Type: types.RelInvestsIn, CreatedBy: "loader"},
	})
	require.ErrorIs(t, err, types.ErrDanglingReference)
	assert.Contains(t, err.Error(), "relationship 1")

	entries, err := b.GetAuditForSymbol("Ξ.P.JANE", 10)
	require.NoError(t, err)
	var rejected *types.AuditEntry
	for i := range entries {
		if entries[i].EventType == types.EventRelationshipCreate {
			rejected = &entries[i]
		}
	}
	require.NotNil(t, rejected, "the failing request is attributed to its source symbol")
	assert.Equal(t, types.OutcomeRejected, rejected.Outcome)
	assert.Equal(t, "loader", rejected.Actor)
	assert.EqualValues(t, 1, rejected.Details["batch_index"])

	stats, err := b.GetGraphStats()
	require.NoError(t, err)
	assert.Zero(t, stats.EdgeCount, "failed batch must write nothing")

	_, err = b.CreateRelationshipsBatch([]types.RelationshipRequest{
		{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: types.RelOwns},
		{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: types.RelOwns},
	})
	require.ErrorIs(t, err, types.ErrDuplicateEdge, "duplicates inside one batch are detected")

	results, err := b.CreateRelationshipsBatch([]types.RelationshipRequest{
		{FromSymbolID: "Ξ.C.ACME", ToSymbolID: "Ξ.C.WIDGETCO", Type: types.RelOwns},
		{FromSymbolID: "Ξ.P.JANE", ToSymbolID: "Ξ.C.ACME", Type: types.RelInvestsIn, Bidirectional: true},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotEmpty(t, results[1].InverseID)

	stats, err = b.GetGraphStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.EdgeCount)
}

func TestEdgeQueries(t *testing.T) {
	b := setupBackend(t)
	for _, id := range []string{"Ξ.C.ACME", "Ξ.C.WIDGETCO", "Ξ.C.GLOBEX", "Ξ.P.JANE"} {
		createSymbol(t, b, id)
	}
	link(t, b, "Ξ.C.ACME", "Ξ.C.WIDGETCO", types.RelOwns, 0.4, 1)
	link(t, b, "Ξ.C.ACME", "Ξ.C.GLOBEX", types.RelCompetesWith, 0.9, 0.5)
	link(t, b, "Ξ.P.JANE", "Ξ.C.ACME", types.RelInvestsIn, 0.6, 1)

	out, err := b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Ξ.C.GLOBEX", out[0].ToSymbolID, "strongest edge first")

	out, err = b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{Types: []types.RelationshipType{types.RelOwns}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Ξ.C.WIDGETCO", out[0].ToSymbolID)

	out, err = b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{Categories: []types.RelationshipCategory{types.RelCategoryCompetitive}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, types.RelCompetesWith, out[0].Type)

	out, err = b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{MinWeight: 0.5})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	out, err = b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{MinConfidence: 0.8})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, types.RelOwns, out[0].Type)

	out, err = b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	in, err := b.GetIncoming("Ξ.C.ACME", types.RelationshipFilter{})
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "Ξ.P.JANE", in[0].FromSymbolID)

	rel, err := b.GetRelated("Ξ.C.ACME", types.RelationshipFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, rel.Total)
	assert.Equal(t, 1, rel.TypeCounts[types.RelInvestsIn])
	assert.Equal(t, 1, rel.TypeCounts[types.RelOwns])

	_, err = b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{Types: []types.RelationshipType{"LOVES"}})
	assert.ErrorIs(t, err, types.ErrInvalidRelationshipType)
	_, err = b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{Categories: []types.RelationshipCategory{"ROMANTIC"}})
	assert.ErrorIs(t, err, types.ErrInvalidCategory)
	_, err = b.GetOutgoing("Ξ.C.ACME", types.RelationshipFilter{MinWeight: 2})
	assert.ErrorIs(t, err, types.ErrInvalidWeight)

	none, err := b.GetOutgoing("Ξ.C.NOBODY", types.RelationshipFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteRelationship(t *testing.T) {
	b := setupBackend(t)
	createSymbol(t, b, "Ξ.C.ACME")
	createSymbol(t, b, "Ξ.C.WIDGETCO")
	id := link(t, b, "Ξ.C.ACME", "Ξ.C.WIDGETCO", types.RelOwns, 1, 1)

	require.NoError(t, b.DeleteRelationship(id, "admin"))

	_, err := b.GetRelationship(id)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, b.DeleteRelationship(id, "admin"), types.ErrNotFound)

	entries, err := b.GetAuditForSymbol("Ξ.C.ACME", 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, types.EventRelationshipDelete, entries[0].EventType)
	assert.Equal(t, types.OutcomeSuccess, entries[0].Outcome)

	// The same tuple can be created again once the edge is gone.
	link(t, b, "Ξ.C.ACME", "Ξ.C.WIDGETCO", types.RelOwns, 1, 1)
}
