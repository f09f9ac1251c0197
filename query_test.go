package tablekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/tablekit/dialect"
)

func TestParseQuery(t *testing.T) {
	t.Run("Nil", func(t *testing.T) {
		q, err := ParseQuery(nil)
		require.NoError(t, err)
		assert.Nil(t, q.Where)
		assert.Nil(t, q.Limit)
	})

	t.Run("ReservedKeysExtracted", func(t *testing.T) {
		q, err := ParseQuery(map[string]any{
			"$select": []any{"name", "age"},
			"$sort":   map[string]any{"age": -1},
			"$limit":  float64(10),
			"$skip":   2,
			"name":    "alice",
			"$or":     []any{map[string]any{"age": 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "age"}, q.Select)
		assert.Equal(t, []Sort{{Field: "age", Desc: true}}, q.Sort)
		require.NotNil(t, q.Limit)
		assert.Equal(t, 10, *q.Limit)
		require.NotNil(t, q.Skip)
		assert.Equal(t, 2, *q.Skip)
		// $or is part of the predicate, not a reserved filter.
		assert.Contains(t, q.Where, "$or")
		assert.Equal(t, "alice", q.Where["name"])
		assert.NotContains(t, q.Where, "$limit")
	})

	t.Run("SortMapOrderedByFieldName", func(t *testing.T) {
		q, err := ParseQuery(map[string]any{
			"$sort": map[string]any{"b": 1, "a": -1, "c": 1},
		})
		require.NoError(t, err)
		assert.Equal(t, []Sort{
			{Field: "a", Desc: true},
			{Field: "b"},
			{Field: "c"},
		}, q.Sort)
	})

	t.Run("BadSelect", func(t *testing.T) {
		_, err := ParseQuery(map[string]any{"$select": "name"})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("BadSortDirection", func(t *testing.T) {
		_, err := ParseQuery(map[string]any{"$sort": map[string]any{"age": "desc"}})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("BadLimit", func(t *testing.T) {
		_, err := ParseQuery(map[string]any{"$limit": "ten"})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestSelectFor(t *testing.T) {
	svc := newBuilderService(t, dialect.Postgres, nil)

	assert.Nil(t, svc.selectFor(Query{}))
	assert.Equal(t, []string{"name", "id"}, svc.selectFor(Query{Select: []string{"name"}}))
	assert.Equal(t, []string{"id", "name"}, svc.selectFor(Query{Select: []string{"id", "name"}}))
}
