package tablekit

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Page is one page of a paginated find: the full matching count alongside
// the window of records actually fetched.
type Page struct {
	Total int      `json:"total"`
	Limit int      `json:"limit"` // -1 when no limit applied
	Skip  int      `json:"skip"`
	Data  []Record `json:"data"`
}

// Find returns every record matching q, honoring $select, $sort, $limit and
// $skip. A $limit of 0 short-circuits to an empty result without touching
// the database.
func (s *Service) Find(ctx context.Context, q Query) ([]Record, error) {
	q.Where = normalizeWhere(s.dialect, q.Where)
	if q.Limit != nil && *q.Limit == 0 {
		return []Record{}, nil
	}
	sel, err := s.buildSelect(q, false)
	if err != nil {
		return nil, err
	}
	query, args := sel.Query()
	// Reads inside a transaction skip the cache both ways: they must see the
	// transaction's own uncommitted writes, and their results must not leak
	// uncommitted state into the shared cache.
	useCache := s.cache != nil && TxFromContext(ctx) == nil
	if useCache {
		if recs, ok := s.cacheLookup(ctx, query, args); ok {
			return recs, nil
		}
	}
	recs, err := s.queryRecords(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if useCache {
		s.cacheStore(ctx, query, args, recs)
	}
	return recs, nil
}

// FindPage is Find with pagination: the page-size bounds configured on the
// service apply, and the total count of matching rows is computed with the
// same predicate and joins. Count and data queries run concurrently unless
// a transaction is attached to ctx, in which case they share one connection
// and run in sequence.
func (s *Service) FindPage(ctx context.Context, q Query) (*Page, error) {
	q.Where = normalizeWhere(s.dialect, q.Where)
	if p := s.paginate; p != nil {
		limit := p.Default
		if q.Limit != nil {
			limit = *q.Limit
		}
		if p.Max > 0 && limit > p.Max {
			limit = p.Max
		}
		q.Limit = &limit
	}
	page := &Page{Limit: -1}
	if q.Limit != nil {
		page.Limit = *q.Limit
	}
	if q.Skip != nil {
		page.Skip = *q.Skip
	}

	countSel, err := s.buildSelect(q, true)
	if err != nil {
		return nil, err
	}
	countQuery, countArgs := countSel.Query()

	fetch := func(ctx context.Context) error {
		if q.Limit != nil && *q.Limit == 0 {
			page.Data = []Record{}
			return nil
		}
		sel, err := s.buildSelect(q, false)
		if err != nil {
			return err
		}
		query, args := sel.Query()
		recs, err := s.queryRecords(ctx, query, args)
		if err != nil {
			return err
		}
		page.Data = recs
		return nil
	}
	count := func(ctx context.Context) error {
		total, err := s.queryCount(ctx, countQuery, countArgs)
		if err != nil {
			return err
		}
		page.Total = total
		return nil
	}

	if TxFromContext(ctx) != nil {
		if err := count(ctx); err != nil {
			return nil, err
		}
		if err := fetch(ctx); err != nil {
			return nil, err
		}
		return page, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return count(gctx) })
	g.Go(func() error { return fetch(gctx) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

// Get fetches the single record with the given id, ANDed with any caller
// filters. It fails with NotFoundError when nothing matches.
func (s *Service) Get(ctx context.Context, id any, q Query) (Record, error) {
	q.Where = s.andID(normalizeWhere(s.dialect, q.Where), normalizeValue(s.dialect, id))
	q.Limit = Int(1)
	sel, err := s.buildSelect(q, false)
	if err != nil {
		return nil, err
	}
	query, args := sel.Query()
	recs, err := s.queryRecords(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &NotFoundError{Table: s.table, Field: s.idField, ID: id}
	}
	return recs[0], nil
}

// andID forces an id equality predicate onto w without clobbering a caller
// predicate on the same field.
func (s *Service) andID(w Where, id any) Where {
	if len(w) == 0 {
		return Where{s.idField: id}
	}
	return Where{keyAnd: []Where{w, {s.idField: id}}}
}
