package tablekit

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
)

// RelationKind is the cardinality of a declared relation, seen from the
// referencing table.
type RelationKind int

const (
	// BelongsTo joins exactly one row of the target table (keyHere on this
	// table references keyThere on the target). Filters and sorts compile to
	// a LEFT JOIN on a per-relation alias.
	BelongsTo RelationKind = iota
	// HasMany matches zero or more rows of the target table. Filters compile
	// to a correlated EXISTS subquery so parent rows are never duplicated.
	HasMany
)

// Relation declares a one-hop join to another table.
type Relation struct {
	Kind     RelationKind
	KeyHere  string // column on this service's table
	KeyThere string // column on the target table
	Table    string // target table; defaults to the pluralized relation name
}

// validateRelations checks the declared relations and fills defaulted target
// table names.
func validateRelations(relations map[string]Relation) (map[string]Relation, error) {
	if len(relations) == 0 {
		return nil, nil
	}
	out := make(map[string]Relation, len(relations))
	for name, rel := range relations {
		if name == "" || strings.Contains(name, ".") {
			return nil, &ConfigError{Option: "relations", Err: fmt.Errorf("invalid relation name %q", name)}
		}
		if rel.Kind != BelongsTo && rel.Kind != HasMany {
			return nil, &ConfigError{Option: "relations", Err: fmt.Errorf("relation %q: unknown kind", name)}
		}
		if rel.KeyHere == "" || rel.KeyThere == "" {
			return nil, &ConfigError{Option: "relations", Err: fmt.Errorf("relation %q: keyHere and keyThere are required", name)}
		}
		if rel.Table == "" {
			rel.Table = inflect.Pluralize(name)
		}
		out[name] = rel
	}
	return out, nil
}

// splitRelationPath splits a dotted query key ("user.name") into its relation
// and field parts. Keys without a dot or with an undeclared relation are not
// relation paths and resolve as plain (possibly nonsensical) column
// references.
func (s *Service) splitRelationPath(key string) (name, field string, rel Relation, ok bool) {
	i := strings.IndexByte(key, '.')
	if i <= 0 || i == len(key)-1 {
		return "", "", Relation{}, false
	}
	name, field = key[:i], key[i+1:]
	rel, ok = s.relations[name]
	return name, field, rel, ok
}
