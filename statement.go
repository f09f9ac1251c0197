package tablekit

import (
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/tablekit/tablekit/dialect"
)

// buildSelect composes the data or count selector for a query: select list
// (id forced in), relation joins, compiled predicate, sort and limit/offset.
// The count form shares predicate and joins but drops select list, ordering
// and paging.
func (s *Service) buildSelect(q Query, count bool) (*entsql.Selector, error) {
	b := entsql.Dialect(s.dialect.String())
	t := b.Table(s.table)
	sel := b.Select().From(t)
	plan, err := s.planJoins(q, sel, b, t)
	if err != nil {
		return nil, err
	}
	pred, err := s.compileWhere(compileCtx{b: b, t: t, joins: plan.tables}, q.Where)
	if err != nil {
		return nil, err
	}
	preds := make([]*entsql.Predicate, 0, len(plan.notNull)+1)
	preds = append(preds, plan.notNull...)
	if pred != nil {
		preds = append(preds, pred)
	}
	if p := combine(entsql.And, preds); p != nil {
		sel.Where(p)
	}
	if count {
		sel.Select(entsql.Count("*"))
		return sel, nil
	}
	if cols := s.selectFor(q); cols != nil {
		qualified := make([]string, len(cols))
		for i, c := range cols {
			qualified[i] = t.C(s.column(c))
		}
		sel.Select(qualified...)
	} else {
		sel.Select(t.C("*"))
	}
	if err := s.applySort(sel, q, plan, t); err != nil {
		return nil, err
	}
	s.applyPaging(sel, q.Limit, q.Skip)
	return sel, nil
}

// applySort maps each $sort entry, in caller order, onto ORDER BY terms.
// Engines without NULLS FIRST/LAST support get the "(col IS NULL)" prefix
// emulation instead.
func (s *Service) applySort(sel *entsql.Selector, q Query, plan *joinPlan, t *entsql.SelectTable) error {
	for _, o := range q.Sort {
		col := ""
		if name, field, rel, ok := s.splitRelationPath(o.Field); ok && rel.Kind == BelongsTo {
			col = plan.tables[name].C(field)
		} else {
			col = t.C(s.column(o.Field))
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		switch {
		case o.Nulls == NullsDefault:
			if o.Desc {
				sel.OrderBy(entsql.Desc(col))
			} else {
				sel.OrderBy(entsql.Asc(col))
			}
		case s.dialect.SupportsNullsOrdering():
			mod := " NULLS LAST"
			if o.Nulls == NullsFirst {
				mod = " NULLS FIRST"
			}
			sel.OrderExpr(entsql.Expr(col + dir + mod))
		default:
			nullDir := " ASC" // nulls last: IS NULL sorts false(0) first
			if o.Nulls == NullsFirst {
				nullDir = " DESC"
			}
			sel.OrderExpr(entsql.Expr("(" + col + " IS NULL)" + nullDir))
			sel.OrderExpr(entsql.Expr(col + dir))
		}
	}
	return nil
}

// applyPaging sets LIMIT/OFFSET, inserting the dialect's no-limit sentinel
// when an offset is requested without a limit on engines that cannot express
// a bare OFFSET.
func (s *Service) applyPaging(sel *entsql.Selector, limit, skip *int) {
	if limit != nil {
		sel.Limit(*limit)
	}
	if skip != nil && *skip > 0 {
		sel.Offset(*skip)
		if limit == nil {
			if sentinel := s.dialect.NoLimit(); sentinel != 0 {
				sel.Limit(sentinel)
			}
		}
	}
}

// returningSuffix renders the RETURNING clause appended to update and delete
// statements on engines that support it. The underlying builder only renders
// RETURNING for inserts.
func (s *Service) returningSuffix(cols []string) string {
	if len(cols) == 0 {
		return " RETURNING *"
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.quoteIdent(s.column(c))
	}
	return " RETURNING " + strings.Join(quoted, ", ")
}

func (s *Service) quoteIdent(name string) string {
	if s.dialect == dialect.MySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}
