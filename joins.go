package tablekit

import (
	"fmt"
	"sort"

	entsql "entgo.io/ent/dialect/sql"
)

// joinPlan is the result of planning relation joins for a select: the alias
// table per joined belongs-to relation and the implicit predicates the joins
// require.
type joinPlan struct {
	tables  map[string]*entsql.SelectTable
	notNull []*entsql.Predicate
}

// planJoins adds one LEFT JOIN per belongs-to relation referenced by the
// query's filters or sort, keyed by relation name so repeated references
// share a single join. Relations joined for filtering also get an implicit
// "keyThere IS NOT NULL" predicate: without it a LEFT JOIN lets unmatched
// parent rows leak through with NULL relation columns instead of being
// excluded. Has-many relations are never joined (they would multiply parent
// rows); filters on them compile to EXISTS, and sorting by them is rejected.
func (s *Service) planJoins(q Query, sel *entsql.Selector, b *entsql.DialectBuilder, t *entsql.SelectTable) (*joinPlan, error) {
	filtered := map[string]bool{}
	if err := s.collectFilterRefs(q.Where, filtered); err != nil {
		return nil, err
	}
	sorted := map[string]bool{}
	for _, o := range q.Sort {
		name, _, rel, ok := s.splitRelationPath(o.Field)
		if !ok {
			continue
		}
		if rel.Kind == HasMany {
			return nil, NewValidationError(keySort, fmt.Errorf("cannot sort by has-many relation %q", name))
		}
		sorted[name] = true
	}
	names := make([]string, 0, len(filtered)+len(sorted))
	for name := range filtered {
		names = append(names, name)
	}
	for name := range sorted {
		if !filtered[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	plan := &joinPlan{tables: make(map[string]*entsql.SelectTable, len(names))}
	for _, name := range names {
		rel := s.relations[name]
		rt := b.Table(rel.Table).As(name)
		sel.LeftJoin(rt).On(t.C(rel.KeyHere), rt.C(rel.KeyThere))
		plan.tables[name] = rt
		if filtered[name] {
			plan.notNull = append(plan.notNull, entsql.NotNull(rt.C(rel.KeyThere)))
		}
	}
	return plan, nil
}

// collectFilterRefs walks a query object, including $and/$or nesting, and
// records the belongs-to relations its dotted keys reference.
func (s *Service) collectFilterRefs(w Where, refs map[string]bool) error {
	for key, v := range w {
		switch key {
		case keyAnd, keyOr:
			subs, err := whereList(v)
			if err != nil {
				return NewValidationError(key, err)
			}
			for _, sub := range subs {
				if err := s.collectFilterRefs(sub, refs); err != nil {
					return err
				}
			}
		default:
			if name, _, rel, ok := s.splitRelationPath(key); ok && rel.Kind == BelongsTo {
				refs[name] = true
			}
		}
	}
	return nil
}
