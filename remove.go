package tablekit

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
)

// Remove deletes the record with the given id, ANDed with any caller
// filters, and returns the removed record.
func (s *Service) Remove(ctx context.Context, id any, q Query) (Record, error) {
	recs, err := s.removeRows(ctx, id, q)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &NotFoundError{Table: s.table, Field: s.idField, ID: id}
	}
	return recs[0], nil
}

// RemoveMany deletes every record matching the query, gated by the
// multi-remove permission, and returns the removed records.
func (s *Service) RemoveMany(ctx context.Context, q Query) ([]Record, error) {
	if !s.multi.Remove {
		return nil, &MethodNotAllowedError{Method: "remove"}
	}
	return s.removeRows(ctx, nil, q)
}

func (s *Service) removeRows(ctx context.Context, id any, q Query) ([]Record, error) {
	w := normalizeWhere(s.dialect, q.Where)
	if id != nil {
		w = s.andID(w, normalizeValue(s.dialect, id))
	}
	b := entsql.Dialect(s.dialect.String())
	t := b.Table(s.table)

	if s.dialect.SupportsReturning() {
		pred, err := s.compileWhere(compileCtx{b: b, t: t}, w)
		if err != nil {
			return nil, err
		}
		del := b.Delete(s.table)
		if pred != nil {
			del.Where(pred)
		}
		query, args := del.Query()
		recs, err := s.queryRecords(ctx, query+s.returningSuffix(s.selectFor(q)), args)
		if err != nil {
			return nil, err
		}
		s.invalidateCache(ctx)
		return recs, nil
	}

	// MySQL cannot return deleted rows, so capture what is about to be
	// removed first and delete by the captured ids.
	sel, err := s.buildSelect(Query{Where: w, Select: q.Select}, false)
	if err != nil {
		return nil, err
	}
	query, args := sel.Query()
	recs, err := s.queryRecords(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return []Record{}, nil
	}
	ids := make([]any, len(recs))
	for i, r := range recs {
		ids[i] = r[s.idField]
	}
	del := b.Delete(s.table).Where(entsql.In(t.C(s.column(s.idField)), ids...))
	delQuery, delArgs := del.Query()
	if _, err := s.exec(ctx, delQuery, delArgs); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	return recs, nil
}
