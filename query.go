package tablekit

import (
	"fmt"
	"sort"
)

// Record is a single table row: a mapping from column name to scalar, array
// or JSON value. The schema is caller-declared; the adapter treats records as
// open maps except for the designated identifier field.
type Record map[string]any

// Where holds the predicate part of a query. Leaf keys are column names or
// dotted relation paths ("user.name"); values are either literals (implicit
// equality) or operator maps such as {"$gt": 5}. The reserved keys "$and"
// and "$or" hold sub-query lists.
type Where map[string]any

// NullsOrder controls where NULL values sort.
type NullsOrder int

const (
	// NullsDefault leaves NULL placement to the engine.
	NullsDefault NullsOrder = iota
	// NullsFirst sorts NULL values before all others.
	NullsFirst
	// NullsLast sorts NULL values after all others.
	NullsLast
)

// Sort is one ORDER BY entry. Entries apply in slice order.
type Sort struct {
	Field string
	Desc  bool
	Nulls NullsOrder
}

// Query is the caller-facing filter language: a predicate plus the reserved
// filters $select, $sort, $limit and $skip in typed form.
type Query struct {
	Where  Where
	Select []string
	Sort   []Sort
	Limit  *int
	Skip   *int
}

// Int returns a pointer to n, for use in Query.Limit and Query.Skip.
func Int(n int) *int { return &n }

// Reserved filter keys of the wire form.
const (
	keySelect = "$select"
	keySort   = "$sort"
	keyLimit  = "$limit"
	keySkip   = "$skip"
	keyAnd    = "$and"
	keyOr     = "$or"
)

// Comparison, membership, pattern and array operators.
const (
	opLT        = "$lt"
	opLTE       = "$lte"
	opGT        = "$gt"
	opGTE       = "$gte"
	opIn        = "$in"
	opNotIn     = "$nin"
	opEQ        = "$eq"
	opNE        = "$ne"
	opLike      = "$like"
	opNotLike   = "$notLike"
	opILike     = "$iLike"
	opContains  = "$contains"
	opContained = "$contained"
	opOverlap   = "$overlap"
)

// ParseQuery converts the map wire shape of a query (typically decoded from
// JSON) into a typed Query by extracting the reserved filter keys. All other
// keys, including $and/$or, stay in Where.
//
// A $sort given in map form ({"name": 1, "age": -1}) is ordered by field name
// since Go maps are unordered; callers that need a specific multi-key order
// should populate Query.Sort directly.
func ParseQuery(m map[string]any) (Query, error) {
	var q Query
	if m == nil {
		return q, nil
	}
	q.Where = make(Where, len(m))
	for k, v := range m {
		switch k {
		case keySelect:
			cols, err := stringSlice(v)
			if err != nil {
				return Query{}, NewValidationError(keySelect, err)
			}
			q.Select = cols
		case keySort:
			entries, err := sortEntries(v)
			if err != nil {
				return Query{}, NewValidationError(keySort, err)
			}
			q.Sort = entries
		case keyLimit:
			n, err := intValue(v)
			if err != nil {
				return Query{}, NewValidationError(keyLimit, err)
			}
			q.Limit = &n
		case keySkip:
			n, err := intValue(v)
			if err != nil {
				return Query{}, NewValidationError(keySkip, err)
			}
			q.Skip = &n
		default:
			q.Where[k] = v
		}
	}
	return q, nil
}

func stringSlice(v any) ([]string, error) {
	switch vs := v.(type) {
	case []string:
		return vs, nil
	case []any:
		out := make([]string, len(vs))
		for i, e := range vs {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", e)
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected string list, got %T", v)
}

func sortEntries(v any) ([]Sort, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected field-to-direction map, got %T", v)
	}
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	out := make([]Sort, 0, len(fields))
	for _, f := range fields {
		dir, err := intValue(m[f])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f, err)
		}
		out = append(out, Sort{Field: f, Desc: dir < 0})
	}
	return out, nil
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case uint64:
		return int(n), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

// selectFor returns the select list for q with the identifier field forced
// in, so the id stays resolvable for secondary fetches. A nil list selects
// all columns.
func (s *Service) selectFor(q Query) []string {
	if len(q.Select) == 0 {
		return nil
	}
	for _, c := range q.Select {
		if c == s.idField {
			return q.Select
		}
	}
	out := make([]string, 0, len(q.Select)+1)
	out = append(out, q.Select...)
	out = append(out, s.idField)
	return out
}
