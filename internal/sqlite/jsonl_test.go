package sqlite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

func TestWriteReadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	records := []json.RawMessage{
		json.RawMessage(`{"a":1}`),
		json.RawMessage(`{"b":"two"}`),
	}

	require.NoError(t, writeJSONL(path, records))
	got, err := readJSONL(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"a":1}`, string(got[0]))
	assert.JSONEq(t, `{"b":"two"}`, string(got[1]))

	require.NoError(t, writeJSONL(path, records[:1]))
	got, err = readJSONL(path)
	require.NoError(t, err)
	assert.Len(t, got, 1, "rewrite replaces the file")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestReadJSONL_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("\n{\"a\":1}\n\n{\"a\":2}\n"), 0o644))

	got, err := readJSONL(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUnmarshalRecords(t *testing.T) {
	recs := []json.RawMessage{json.RawMessage(`{"id":"r1","weight":0.5}`)}
	rels, err := unmarshalRecords[types.Relationship]("relationships.jsonl", recs)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "r1", rels[0].ID)
	assert.Equal(t, 0.5, rels[0].Weight)

	_, err = unmarshalRecords[types.Relationship]("relationships.jsonl", []json.RawMessage{json.RawMessage(`{"weight":"heavy"}`)})
	assert.ErrorIs(t, err, types.ErrInvalidSnapshot)
}
