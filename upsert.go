package tablekit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/tablekit/tablekit/dialect"
)

// ConflictAction selects what an upsert does when a row already exists.
type ConflictAction int

const (
	// ConflictMerge updates the existing row with the incoming values.
	ConflictMerge ConflictAction = iota
	// ConflictIgnore keeps the existing row untouched.
	ConflictIgnore
)

// UpsertOptions describes the conflict target and resolution of an upsert.
type UpsertOptions struct {
	// ConflictFields name the unique key the upsert targets. Required, and
	// every input record must carry a value for each of them.
	ConflictFields []string

	// Action picks merge (default) or ignore on conflict.
	Action ConflictAction

	// MergeFields, when non-nil, restricts the merge to these fields. Nil
	// merges every inserted column. The identifier and conflict fields are
	// never merged.
	MergeFields []string

	// ExcludeFields removes fields from the merge set and wins over
	// MergeFields.
	ExcludeFields []string
}

// Upsert inserts data or resolves against the existing row on a unique-key
// conflict, returning the record's post-write state either way.
func (s *Service) Upsert(ctx context.Context, data Record, opts UpsertOptions, q Query) (Record, error) {
	recs, err := s.upsertRows(ctx, []Record{data}, opts, q)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("tablekit: upsert into %s returned no row", s.table)
	}
	return recs[0], nil
}

// UpsertMany upserts a batch in one statement, gated by the multi-create
// permission. Results come back in input order.
func (s *Service) UpsertMany(ctx context.Context, data []Record, opts UpsertOptions, q Query) ([]Record, error) {
	if !s.multi.Create {
		return nil, &MethodNotAllowedError{Method: "create"}
	}
	if len(data) == 0 {
		return []Record{}, nil
	}
	return s.upsertRows(ctx, data, opts, q)
}

func (s *Service) upsertRows(ctx context.Context, data []Record, opts UpsertOptions, q Query) ([]Record, error) {
	if len(opts.ConflictFields) == 0 {
		return nil, NewValidationError("conflict", errors.New("upsert requires at least one conflict field"))
	}
	rows := make([]Record, len(data))
	for i, r := range data {
		rows[i] = normalizeRecord(s.dialect, r)
		for _, f := range opts.ConflictFields {
			if v, ok := rows[i][f]; !ok || v == nil {
				return nil, NewValidationError("conflict", fmt.Errorf("record %d is missing conflict field %q", i, f))
			}
		}
	}
	cols := columnUnion(rows)
	merge := s.mergeSet(cols, opts)
	action := opts.Action
	if action == ConflictMerge && len(merge) == 0 {
		action = ConflictIgnore
	}

	ins := s.insertFor(rows, cols)
	resolve := entsql.ResolveWith(func(u *entsql.UpdateSet) {
		for _, f := range merge {
			u.SetExcluded(s.column(f))
		}
	})
	if s.dialect == dialect.MySQL {
		// MySQL's ON DUPLICATE KEY has no conflict target; ignore is spelled
		// as a self-assignment of the identifier.
		if action == ConflictIgnore {
			ins.OnConflict(entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetIgnore(s.column(s.idField))
			}))
		} else {
			ins.OnConflict(resolve)
		}
		query, args := ins.Query()
		if _, err := s.exec(ctx, query, args); err != nil {
			return nil, err
		}
		s.invalidateCache(ctx)
		return s.fetchByConflict(ctx, rows, opts.ConflictFields, q)
	}

	target := entsql.ConflictColumns(s.physical(opts.ConflictFields)...)
	if action == ConflictIgnore {
		ins.OnConflict(target, entsql.DoNothing())
	} else {
		ins.OnConflict(target, resolve)
	}
	ins.Returning(s.physical(upsertSelect(s.selectFor(q), opts.ConflictFields))...)
	query, args := ins.Query()
	recs, err := s.queryRecords(ctx, query, args)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	if action == ConflictIgnore && len(recs) < len(rows) {
		// DO NOTHING returns no row for conflicting inputs; read the
		// untouched rows back by their conflict-key values.
		return s.reconcileIgnored(ctx, rows, recs, opts.ConflictFields, q)
	}
	return orderByConflict(rows, recs, opts.ConflictFields), nil
}

// mergeSet resolves the fields an upsert merges on conflict: the requested
// merge list (or every inserted column) minus identifier, conflict and
// excluded fields.
func (s *Service) mergeSet(cols []string, opts UpsertOptions) []string {
	drop := map[string]bool{s.idField: true}
	for _, f := range opts.ConflictFields {
		drop[f] = true
	}
	for _, f := range opts.ExcludeFields {
		drop[f] = true
	}
	base := cols
	if opts.MergeFields != nil {
		base = opts.MergeFields
	}
	out := make([]string, 0, len(base))
	for _, f := range base {
		if !drop[f] {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// physical maps field names to physical columns.
func (s *Service) physical(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = s.column(f)
	}
	return out
}

// upsertSelect forces the conflict fields into a select list so results can
// be matched back to inputs. A nil list already selects everything.
func upsertSelect(selected, conflict []string) []string {
	if selected == nil {
		return []string{"*"}
	}
	out := selected
	for _, f := range conflict {
		found := false
		for _, c := range out {
			if c == f {
				found = true
				break
			}
		}
		if !found {
			out = append(append([]string(nil), out...), f)
		}
	}
	return out
}

// conflictKey builds the match key of a row over the conflict fields.
func conflictKey(r Record, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprint(r[f])
	}
	return strings.Join(parts, "\x00")
}

// orderByConflict reorders returned rows to input order, matching on the
// conflict-key values. Rows the database did not return are skipped.
func orderByConflict(inputs, recs []Record, fields []string) []Record {
	index := make(map[string]Record, len(recs))
	for _, r := range recs {
		index[conflictKey(r, fields)] = r
	}
	out := make([]Record, 0, len(inputs))
	for _, in := range inputs {
		if r, ok := index[conflictKey(in, fields)]; ok {
			out = append(out, r)
		}
	}
	return out
}

// reconcileIgnored fills the gaps a DO NOTHING upsert leaves: inputs without
// a returned row are read back from the table by their conflict keys.
func (s *Service) reconcileIgnored(ctx context.Context, inputs, recs []Record, fields []string, q Query) ([]Record, error) {
	returned := make(map[string]Record, len(recs))
	for _, r := range recs {
		returned[conflictKey(r, fields)] = r
	}
	var missing []Record
	for _, in := range inputs {
		if _, ok := returned[conflictKey(in, fields)]; !ok {
			missing = append(missing, in)
		}
	}
	if len(missing) > 0 {
		existing, err := s.fetchByConflict(ctx, missing, fields, q)
		if err != nil {
			return nil, err
		}
		for _, r := range existing {
			returned[conflictKey(r, fields)] = r
		}
	}
	out := make([]Record, 0, len(inputs))
	for _, in := range inputs {
		if r, ok := returned[conflictKey(in, fields)]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// fetchByConflict selects the rows matching the conflict-key values of the
// given inputs and returns them in input order.
func (s *Service) fetchByConflict(ctx context.Context, inputs []Record, fields []string, q Query) ([]Record, error) {
	ors := make([]Where, len(inputs))
	for i, in := range inputs {
		m := make(Where, len(fields))
		for _, f := range fields {
			m[f] = in[f]
		}
		ors[i] = m
	}
	sel, err := s.buildSelect(Query{
		Where:  Where{keyOr: ors},
		Select: selectPlus(q.Select, fields),
	}, false)
	if err != nil {
		return nil, err
	}
	query, args := sel.Query()
	recs, err := s.queryRecords(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return orderByConflict(inputs, recs, fields), nil
}

// selectPlus extends a select list with extra fields, keeping nil (all
// columns) as-is.
func selectPlus(selected []string, extra []string) []string {
	if len(selected) == 0 {
		return nil
	}
	out := append([]string(nil), selected...)
	for _, f := range extra {
		found := false
		for _, c := range out {
			if c == f {
				found = true
				break
			}
		}
		if !found {
			out = append(out, f)
		}
	}
	return out
}
