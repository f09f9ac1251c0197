package tablekit

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/tablekit/dialect"
)

func TestArrayOperators(t *testing.T) {
	svc := newBuilderService(t, dialect.Postgres, nil)

	t.Run("ContainsInts", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"scores": Where{"$contains": []any{1, 2}}},
		})
		assert.Contains(t, query, `"users"."scores" @> $1::integer[]`)
		require.Len(t, args, 1)
		assert.IsType(t, &pq.Int64Array{}, args[0])
	})

	t.Run("OverlapStrings", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"tags": Where{"$overlap": []any{"go", "sql"}}},
		})
		assert.Contains(t, query, `"users"."tags" && $1`)
		require.Len(t, args, 1)
		assert.IsType(t, &pq.StringArray{}, args[0])
	})

	t.Run("ContainedMixedFallsBackToJSON", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"meta": Where{"$contained": []any{"a", 1.5}}},
		})
		assert.Contains(t, query, `"users"."meta" <@ $1::jsonb`)
		require.Len(t, args, 1)
		assert.Equal(t, `["a",1.5]`, args[0])
	})

	t.Run("ScalarRejected", func(t *testing.T) {
		_, err := svc.buildSelect(Query{Where: Where{"tags": Where{"$contains": "go"}}}, false)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("TypedSliceAccepted", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{
			Where: Where{"scores": Where{"$contains": []int{3}}},
		})
		assert.Contains(t, query, "@>")
	})
}

func TestWhereCoercions(t *testing.T) {
	t.Run("WhereValue", func(t *testing.T) {
		_, ok := whereValue(Where{"a": 1})
		assert.True(t, ok)
		_, ok = whereValue(map[string]any{"a": 1})
		assert.True(t, ok)
		_, ok = whereValue("scalar")
		assert.False(t, ok)
	})

	t.Run("WhereList", func(t *testing.T) {
		subs, err := whereList([]any{map[string]any{"a": 1}, Where{"b": 2}})
		require.NoError(t, err)
		assert.Len(t, subs, 2)

		_, err = whereList([]any{"oops"})
		assert.Error(t, err)

		_, err = whereList(42)
		assert.Error(t, err)
	})

	t.Run("AnySlice", func(t *testing.T) {
		vs, ok := anySlice([]string{"a", "b"})
		require.True(t, ok)
		assert.Equal(t, []any{"a", "b"}, vs)

		_, ok = anySlice("not a slice")
		assert.False(t, ok)
	})

	t.Run("IntElement", func(t *testing.T) {
		n, ok := intElement(float64(7))
		assert.True(t, ok)
		assert.Equal(t, int64(7), n)

		_, ok = intElement(7.5)
		assert.False(t, ok)

		_, ok = intElement("7")
		assert.False(t, ok)
	})
}
