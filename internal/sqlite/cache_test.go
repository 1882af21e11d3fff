package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

func TestSymbolCache_FillRespectsEpoch(t *testing.T) {
	c, err := NewSymbolCache(10)
	require.NoError(t, err)

	stale := &types.Symbol{SymbolID: "Ξ.C.ACME", Version: 1}
	fresh := &types.Symbol{SymbolID: "Ξ.C.ACME", Version: 2}

	epoch := c.Epoch()
	c.Put(fresh)
	assert.False(t, c.Fill(stale, epoch), "a fill after a write must be dropped")

	got, ok := c.Get("Ξ.C.ACME")
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Version)

	epoch = c.Epoch()
	assert.True(t, c.Fill(&types.Symbol{SymbolID: "Ξ.C.OTHER", Version: 1}, epoch))
	assert.True(t, c.Contains("Ξ.C.OTHER"))
}

func TestSymbolCache_EvictAndPurge(t *testing.T) {
	c, err := NewSymbolCache(10)
	require.NoError(t, err)
	c.Put(&types.Symbol{SymbolID: "Ξ.C.A"})
	c.Put(&types.Symbol{SymbolID: "Ξ.C.B"})

	epoch := c.Epoch()
	c.Evict("Ξ.C.A")
	assert.False(t, c.Contains("Ξ.C.A"))
	assert.NotEqual(t, epoch, c.Epoch())

	c.Purge()
	assert.Zero(t, c.Len())
	assert.Equal(t, 10, c.Size())
}

func TestSymbolCache_CopiesRecords(t *testing.T) {
	c, err := NewSymbolCache(10)
	require.NoError(t, err)

	in := &types.Symbol{SymbolID: "Ξ.C.A", Tags: []string{"x"}}
	c.Put(in)
	in.Tags[0] = "mutated"

	out, ok := c.Get("Ξ.C.A")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, out.Tags)

	out.Tags[0] = "mutated"
	again, _ := c.Get("Ξ.C.A")
	assert.Equal(t, []string{"x"}, again.Tags)
}

func TestNewSymbolCache_RejectsZeroSize(t *testing.T) {
	_, err := NewSymbolCache(0)
	assert.Error(t, err)
}

func TestUpdate_RefreshesCache(t *testing.T) {
	b := setupBackend(t)
	createSymbol(t, b, "Ξ.C.ACME")

	_, err := b.Get("Ξ.C.ACME", 0)
	require.NoError(t, err)
	_, err = b.Update("Ξ.C.ACME", types.SymbolChanges{What: strPtr("v2")}, "", "")
	require.NoError(t, err)

	sym, err := b.Get("Ξ.C.ACME", 0)
	require.NoError(t, err)
	assert.Equal(t, "v2", sym.What)
	assert.Equal(t, int64(2), sym.Version)

	b.cache.Purge()
	sym, err = b.Get("Ξ.C.ACME", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sym.Version, "database agrees with the cache")
}
