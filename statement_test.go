package tablekit

import (
	"math"
	"strconv"
	"strings"
	"testing"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/tablekit/dialect"
)

func countOccurrences(s, sub string) int { return strings.Count(s, sub) }

func buildSQL(t *testing.T, svc *Service, q Query) (string, []any) {
	t.Helper()
	sel, err := svc.buildSelect(q, false)
	require.NoError(t, err)
	query, args := sel.Query()
	return query, args
}

func TestBuildSelect(t *testing.T) {
	svc := newBuilderService(t, dialect.Postgres, nil)

	t.Run("All", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{})
		assert.Equal(t, `SELECT "users".* FROM "users"`, query)
		assert.Empty(t, args)
	})

	t.Run("Equality", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{Where: Where{"name": "alice"}})
		assert.Contains(t, query, `"users"."name" = $1`)
		assert.Equal(t, []any{"alice"}, args)
	})

	t.Run("NullEquality", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{Where: Where{"deleted_at": nil}})
		assert.Contains(t, query, `"users"."deleted_at" IS NULL`)
		assert.Empty(t, args)
	})

	t.Run("Comparison", func(t *testing.T) {
		// Operators on one field apply in sorted key order.
		query, args := buildSQL(t, svc, Query{
			Where: Where{"age": Where{"$gt": 30, "$lte": 65}},
		})
		assert.Contains(t, query, `"users"."age" > $1`)
		assert.Contains(t, query, `"users"."age" <= $2`)
		assert.Equal(t, []any{30, 65}, args)
	})

	t.Run("NotEqualNull", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{Where: Where{"deleted_at": Where{"$ne": nil}}})
		assert.Contains(t, query, `"users"."deleted_at" IS NOT NULL`)
		assert.Empty(t, args)
	})

	t.Run("In", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"id": Where{"$in": []any{1, 2}}},
		})
		assert.Contains(t, query, `"users"."id" IN ($1, $2)`)
		assert.Equal(t, []any{1, 2}, args)
	})

	t.Run("EmptyInMatchesNothing", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"id": Where{"$in": []any{}}},
		})
		assert.Contains(t, query, "FALSE")
		assert.Empty(t, args)
	})

	t.Run("InRejectsScalar", func(t *testing.T) {
		_, err := svc.buildSelect(Query{Where: Where{"id": Where{"$in": 5}}}, false)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("Like", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"name": Where{"$like": "a%"}},
		})
		assert.Contains(t, query, `"users"."name" LIKE $1`)
		assert.Equal(t, []any{"a%"}, args)
	})

	t.Run("NotLike", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{
			Where: Where{"name": Where{"$notLike": "a%"}},
		})
		assert.Contains(t, query, `NOT`)
		assert.Contains(t, query, `"users"."name" LIKE $1`)
	})

	t.Run("ILike", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"name": Where{"$iLike": "A%"}},
		})
		assert.Contains(t, query, `"users"."name" ILIKE $1`)
		assert.Equal(t, []any{"A%"}, args)
	})

	t.Run("UnknownOperatorDropped", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"age": Where{"$gt": 5, "$fuzzy": "x"}},
		})
		assert.Contains(t, query, `"users"."age" > $1`)
		assert.NotContains(t, query, "fuzzy")
		assert.Equal(t, []any{5}, args)
	})

	t.Run("Or", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"$or": []Where{{"name": "a"}, {"name": "b"}}},
		})
		assert.Contains(t, query, "OR")
		assert.Equal(t, []any{"a", "b"}, args)
	})

	t.Run("AndNested", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"$and": []Where{
				{"age": Where{"$gte": 18}},
				{"$or": []Where{{"role": "admin"}, {"role": "owner"}}},
			}},
		})
		assert.Contains(t, query, `"users"."age" >= $1`)
		assert.Contains(t, query, "OR")
		assert.Equal(t, []any{18, "admin", "owner"}, args)
	})

	t.Run("EmptyBoolBranchesIgnored", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"$or": []Where{}, "name": "a"},
		})
		assert.Contains(t, query, `"users"."name" = $1`)
		assert.Equal(t, []any{"a"}, args)
	})

	t.Run("SelectForcesID", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Select: []string{"name"}})
		assert.Contains(t, query, `SELECT "users"."name", "users"."id" FROM`)
	})

	t.Run("LimitSkip", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Limit: Int(10), Skip: Int(5)})
		assert.Contains(t, query, "LIMIT 10")
		assert.Contains(t, query, "OFFSET 5")
	})

	t.Run("BareOffsetPostgres", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Skip: Int(5)})
		assert.NotContains(t, query, "LIMIT")
		assert.Contains(t, query, "OFFSET 5")
	})

	t.Run("Count", func(t *testing.T) {
		sel, err := svc.buildSelect(Query{Where: Where{"age": Where{"$gt": 30}}, Limit: Int(10), Skip: Int(5)}, true)
		require.NoError(t, err)
		query, args := sel.Query()
		assert.Contains(t, query, "COUNT(*)")
		assert.Contains(t, query, `"users"."age" > $1`)
		assert.NotContains(t, query, "LIMIT")
		assert.NotContains(t, query, "OFFSET")
		assert.Equal(t, []any{30}, args)
	})

	t.Run("Sort", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Sort: []Sort{{Field: "age", Desc: true}, {Field: "name"}}})
		assert.Contains(t, query, `ORDER BY "users"."age" DESC, "users"."name" ASC`)
	})

	t.Run("SortNullsPostgres", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Sort: []Sort{{Field: "age", Desc: true, Nulls: NullsFirst}}})
		assert.Contains(t, query, `"users"."age" DESC NULLS FIRST`)
	})
}

func TestBuildSelectMySQL(t *testing.T) {
	svc := newBuilderService(t, dialect.MySQL, nil)

	t.Run("Quoting", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{Where: Where{"name": "alice"}})
		assert.Contains(t, query, "`users`.`name` = ?")
		assert.Equal(t, []any{"alice"}, args)
	})

	t.Run("BareOffsetSentinel", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Skip: Int(5)})
		assert.Contains(t, query, "LIMIT "+strconv.Itoa(math.MaxInt))
		assert.Contains(t, query, "OFFSET 5")
	})

	t.Run("NullsOrderingEmulated", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Sort: []Sort{{Field: "age", Nulls: NullsLast}}})
		assert.Contains(t, query, "(`users`.`age` IS NULL) ASC")
		assert.Contains(t, query, "`users`.`age` ASC")
	})
}

func TestBuildSelectSQLite(t *testing.T) {
	svc := newBuilderService(t, dialect.SQLite, nil)

	t.Run("BareOffsetSentinel", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Skip: Int(3)})
		assert.Contains(t, query, "LIMIT -1")
		assert.Contains(t, query, "OFFSET 3")
	})

	t.Run("BooleansNormalized", func(t *testing.T) {
		q := Query{Where: normalizeWhere(svc.dialect, Where{"active": true})}
		query, args := buildSQL(t, svc, q)
		assert.Contains(t, query, "`users`.`active` = ?")
		assert.Equal(t, []any{1}, args)
	})

	t.Run("BooleansNormalizedInCombinators", func(t *testing.T) {
		q := Query{Where: normalizeWhere(svc.dialect, Where{
			"$or": []Where{{"active": true}, {"retired": false}},
		})}
		query, args := buildSQL(t, svc, q)
		assert.Contains(t, query, "`users`.`active` = ?")
		assert.Contains(t, query, "`users`.`retired` = ?")
		assert.Equal(t, []any{1, 0}, args)
	})
}

func TestBuildSelectRelations(t *testing.T) {
	rels := map[string]Relation{
		"company": {Kind: BelongsTo, KeyHere: "company_id", KeyThere: "id", Table: "companies"},
		"posts":   {Kind: HasMany, KeyHere: "id", KeyThere: "user_id"},
	}
	svc := newBuilderService(t, dialect.Postgres, rels)

	t.Run("BelongsToJoin", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{Where: Where{"company.name": "acme"}})
		assert.Contains(t, query, `LEFT JOIN "companies" AS "company" ON "users"."company_id" = "company"."id"`)
		assert.Contains(t, query, `"company"."id" IS NOT NULL`)
		assert.Contains(t, query, `"company"."name" = $1`)
		assert.Equal(t, []any{"acme"}, args)
	})

	t.Run("JoinSharedAcrossReferences", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{
			Where: Where{"company.name": "acme", "company.city": "berlin"},
		})
		assert.Equal(t, 1, countOccurrences(query, "LEFT JOIN"))
	})

	t.Run("SortJoinWithoutNotNull", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Sort: []Sort{{Field: "company.name"}}})
		assert.Contains(t, query, "LEFT JOIN")
		assert.NotContains(t, query, "IS NOT NULL")
		assert.Contains(t, query, `ORDER BY "company"."name"`)
	})

	t.Run("HasManyExists", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"posts.title": Where{"$like": "%go%"}},
		})
		assert.Contains(t, query, "EXISTS")
		assert.Contains(t, query, `"posts"."user_id" = "users"."id"`)
		assert.Contains(t, query, `"posts"."title" LIKE $1`)
		assert.NotContains(t, query, "JOIN")
		assert.Equal(t, []any{"%go%"}, args)
	})

	t.Run("HasManyBareObject", func(t *testing.T) {
		query, args := buildSQL(t, svc, Query{
			Where: Where{"posts": Where{"published": true}},
		})
		assert.Contains(t, query, "EXISTS")
		assert.Contains(t, query, `"posts"."published" = $1`)
		assert.Equal(t, []any{true}, args)
	})

	t.Run("HasManySortRejected", func(t *testing.T) {
		_, err := svc.buildSelect(Query{Sort: []Sort{{Field: "posts.title"}}}, false)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})

	t.Run("RelationRefsInsideOr", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{
			Where: Where{"$or": []Where{{"company.name": "a"}, {"name": "b"}}},
		})
		assert.Contains(t, query, "LEFT JOIN")
	})

	t.Run("UndeclaredDottedKeyIsPlainColumn", func(t *testing.T) {
		query, _ := buildSQL(t, svc, Query{Where: Where{"profile.bio": "x"}})
		assert.NotContains(t, query, "JOIN")
		assert.Contains(t, query, `"users"."profile.bio" = $1`)
	})
}

func TestJoinlessCompileUsesExists(t *testing.T) {
	rels := map[string]Relation{
		"company": {Kind: BelongsTo, KeyHere: "company_id", KeyThere: "id", Table: "companies"},
	}
	svc := newBuilderService(t, dialect.Postgres, rels)
	b := entsql.Dialect(svc.dialect.String())
	pred, err := svc.compileWhere(compileCtx{b: b, t: b.Table("users")}, Where{"company.name": "acme"})
	require.NoError(t, err)
	query, args := pred.Query()
	assert.Contains(t, query, "EXISTS")
	assert.NotContains(t, query, "JOIN")
	assert.Equal(t, []any{"acme"}, args)
}

func TestReturningSuffix(t *testing.T) {
	svc := newBuilderService(t, dialect.Postgres, nil)
	assert.Equal(t, " RETURNING *", svc.returningSuffix(nil))
	assert.Equal(t, ` RETURNING "name", "id"`, svc.returningSuffix([]string{"name", "id"}))

	my := newBuilderService(t, dialect.MySQL, nil)
	assert.Equal(t, " RETURNING `name`", my.returningSuffix([]string{"name"}))
}

func BenchmarkBuildSelect(b *testing.B) {
	svc := &Service{table: "users", idField: "id", dialect: dialect.Postgres}
	q := Query{
		Where: Where{"age": Where{"$gt": 30}, "name": Where{"$like": "a%"}},
		Sort:  []Sort{{Field: "age", Desc: true}},
		Limit: Int(10),
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sel, err := svc.buildSelect(q, false)
		if err != nil {
			b.Fatal(err)
		}
		sel.Query()
	}
}
