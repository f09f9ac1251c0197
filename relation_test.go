package tablekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/tablekit/dialect"
)

func TestValidateRelations(t *testing.T) {
	t.Run("DefaultsTableToPlural", func(t *testing.T) {
		out, err := validateRelations(map[string]Relation{
			"company": {Kind: BelongsTo, KeyHere: "company_id", KeyThere: "id"},
			"post":    {Kind: HasMany, KeyHere: "id", KeyThere: "user_id"},
		})
		require.NoError(t, err)
		assert.Equal(t, "companies", out["company"].Table)
		assert.Equal(t, "posts", out["post"].Table)
	})

	t.Run("ExplicitTableKept", func(t *testing.T) {
		out, err := validateRelations(map[string]Relation{
			"author": {Kind: BelongsTo, KeyHere: "author_id", KeyThere: "id", Table: "people"},
		})
		require.NoError(t, err)
		assert.Equal(t, "people", out["author"].Table)
	})

	t.Run("Empty", func(t *testing.T) {
		out, err := validateRelations(nil)
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("MissingKeys", func(t *testing.T) {
		_, err := validateRelations(map[string]Relation{
			"company": {Kind: BelongsTo, KeyHere: "company_id"},
		})
		assert.Error(t, err)
	})

	t.Run("DottedName", func(t *testing.T) {
		_, err := validateRelations(map[string]Relation{
			"a.b": {Kind: BelongsTo, KeyHere: "x", KeyThere: "y"},
		})
		assert.Error(t, err)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := validateRelations(map[string]Relation{
			"company": {Kind: RelationKind(9), KeyHere: "x", KeyThere: "y"},
		})
		assert.Error(t, err)
	})
}

func TestSplitRelationPath(t *testing.T) {
	svc := newBuilderService(t, dialect.Postgres, map[string]Relation{
		"company": {Kind: BelongsTo, KeyHere: "company_id", KeyThere: "id", Table: "companies"},
	})

	name, field, rel, ok := svc.splitRelationPath("company.name")
	require.True(t, ok)
	assert.Equal(t, "company", name)
	assert.Equal(t, "name", field)
	assert.Equal(t, "companies", rel.Table)

	_, _, _, ok = svc.splitRelationPath("name")
	assert.False(t, ok)

	_, _, _, ok = svc.splitRelationPath("unknown.name")
	assert.False(t, ok)

	_, _, _, ok = svc.splitRelationPath(".name")
	assert.False(t, ok)

	_, _, _, ok = svc.splitRelationPath("company.")
	assert.False(t, ok)
}
