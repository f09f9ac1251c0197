package tablekit

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/lib/pq"
)

// compileCtx carries the table handles predicates are qualified with. When
// joins is nil the compiler runs joinless (update/delete statements) and
// rewrites belongs-to paths as correlated EXISTS instead of alias
// references.
type compileCtx struct {
	b     *entsql.DialectBuilder
	t     *entsql.SelectTable
	joins map[string]*entsql.SelectTable
}

// compileWhere converts a nested query object into a predicate tree for the
// statement builder, or nil when the query contributes no predicates. Keys
// are processed in sorted order so generated SQL is deterministic.
func (s *Service) compileWhere(cc compileCtx, w Where) (*entsql.Predicate, error) {
	if len(w) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var preds []*entsql.Predicate
	for _, key := range keys {
		v := w[key]
		switch key {
		case keySelect, keySort, keyLimit, keySkip:
			// Reserved filters are extracted by ParseQuery; tolerate strays.
			continue
		case keyAnd, keyOr:
			p, err := s.compileBool(cc, key, v)
			if err != nil {
				return nil, err
			}
			if p != nil {
				preds = append(preds, p)
			}
			continue
		}
		if name, field, rel, ok := s.splitRelationPath(key); ok {
			p, err := s.compileRelationPath(cc, name, field, rel, v)
			if err != nil {
				return nil, err
			}
			if p != nil {
				preds = append(preds, p)
			}
			continue
		}
		if rel, ok := s.relations[key]; ok && rel.Kind == HasMany {
			if sub, ok := whereValue(v); ok {
				p, err := s.compileExists(cc, rel, sub)
				if err != nil {
					return nil, err
				}
				if p != nil {
					preds = append(preds, p)
				}
				continue
			}
		}
		p, err := s.compileLeaf(cc.t.C(s.column(key)), v)
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}
	return combine(entsql.And, preds), nil
}

// compileBool handles $and / $or. Empty sub-queries contribute nothing
// rather than a vacuous TRUE or FALSE.
func (s *Service) compileBool(cc compileCtx, key string, v any) (*entsql.Predicate, error) {
	subs, err := whereList(v)
	if err != nil {
		return nil, NewValidationError(key, err)
	}
	var preds []*entsql.Predicate
	for _, sub := range subs {
		p, err := s.compileWhere(cc, sub)
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}
	if key == keyOr {
		return combine(entsql.Or, preds), nil
	}
	return combine(entsql.And, preds), nil
}

// compileRelationPath rewrites a dotted "relation.field" key. Has-many
// relations always compile to EXISTS; belongs-to relations reference the
// planned join alias, or fall back to EXISTS when the statement cannot carry
// joins.
func (s *Service) compileRelationPath(cc compileCtx, name, field string, rel Relation, v any) (*entsql.Predicate, error) {
	if rel.Kind == HasMany {
		return s.compileExists(cc, rel, Where{field: v})
	}
	if cc.joins != nil {
		rt, ok := cc.joins[name]
		if !ok {
			return nil, fmt.Errorf("tablekit: relation %q referenced without a planned join", name)
		}
		return s.compileLeaf(rt.C(field), v)
	}
	return s.compileExists(cc, rel, Where{field: v})
}

// compileExists builds the correlated EXISTS subquery that filters parent
// rows by a related table without multiplying them.
func (s *Service) compileExists(cc compileCtx, rel Relation, sub Where) (*entsql.Predicate, error) {
	rt := cc.b.Table(rel.Table)
	corr := entsql.ColumnsEQ(rt.C(rel.KeyThere), cc.t.C(rel.KeyHere))
	p, err := s.compileWhere(compileCtx{b: cc.b, t: rt}, sub)
	if err != nil {
		return nil, err
	}
	if p != nil {
		p = entsql.And(corr, p)
	} else {
		p = corr
	}
	return entsql.Exists(cc.b.Select().From(rt).Where(p)), nil
}

// compileLeaf builds the predicates for one column. A plain value is an
// equality test (IS NULL for nil); a map applies one predicate per
// recognized operator, silently dropping unknown keys so filter extensions
// aimed at other middleware pass through harmlessly.
func (s *Service) compileLeaf(col string, v any) (*entsql.Predicate, error) {
	ops, ok := whereValue(v)
	if !ok {
		if v == nil {
			return entsql.IsNull(col), nil
		}
		return entsql.EQ(col, v), nil
	}
	keys := make([]string, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var preds []*entsql.Predicate
	for _, op := range keys {
		p, err := s.compileOp(col, op, ops[op])
		if err != nil {
			return nil, err
		}
		if p != nil {
			preds = append(preds, p)
		}
	}
	return combine(entsql.And, preds), nil
}

func (s *Service) compileOp(col, op string, v any) (*entsql.Predicate, error) {
	switch op {
	case opLT:
		return entsql.LT(col, v), nil
	case opLTE:
		return entsql.LTE(col, v), nil
	case opGT:
		return entsql.GT(col, v), nil
	case opGTE:
		return entsql.GTE(col, v), nil
	case opIn:
		vs, ok := anySlice(v)
		if !ok {
			return nil, NewValidationError(op, fmt.Errorf("expected an array value, got %T", v))
		}
		return entsql.In(col, vs...), nil
	case opNotIn:
		vs, ok := anySlice(v)
		if !ok {
			return nil, NewValidationError(op, fmt.Errorf("expected an array value, got %T", v))
		}
		return entsql.NotIn(col, vs...), nil
	case opEQ:
		if v == nil {
			return entsql.IsNull(col), nil
		}
		return entsql.EQ(col, v), nil
	case opNE:
		if v == nil {
			return entsql.NotNull(col), nil
		}
		return entsql.NEQ(col, v), nil
	case opLike, opNotLike, opILike:
		pattern, ok := v.(string)
		if !ok {
			return nil, NewValidationError(op, fmt.Errorf("expected a string pattern, got %T", v))
		}
		switch op {
		case opLike:
			return entsql.Like(col, pattern), nil
		case opNotLike:
			return entsql.Not(entsql.Like(col, pattern)), nil
		default:
			// ILIKE is emitted as-is; non-Postgres engines reject it at
			// execution time like any other malformed predicate.
			return entsql.P(func(b *entsql.Builder) {
				b.Ident(col).WriteString(" ILIKE ").Arg(pattern)
			}), nil
		}
	case opContains, opContained, opOverlap:
		return s.compileArrayOp(col, op, v)
	}
	// Unknown operators are ignored, not rejected.
	return nil, nil
}

// compileArrayOp emits the PostgreSQL array operators. There is no
// compile-time dialect check; other engines fail at the database and surface
// as ordinary database errors.
func (s *Service) compileArrayOp(col, op string, v any) (*entsql.Predicate, error) {
	vs, ok := anySlice(v)
	if !ok {
		return nil, NewValidationError(op, fmt.Errorf("expected an array value, got %T", v))
	}
	var sym string
	switch op {
	case opContains:
		sym = " @> "
	case opContained:
		sym = " <@ "
	default:
		sym = " && "
	}
	arg, cast, err := arrayArg(vs)
	if err != nil {
		return nil, NewValidationError(op, err)
	}
	return entsql.P(func(b *entsql.Builder) {
		b.Ident(col).WriteString(sym).Arg(arg).WriteString(cast)
	}), nil
}

// arrayArg picks the driver representation for an array-operator value:
// integer arrays are cast explicitly, string arrays ride on the driver's
// array codec, anything else is handed over as a jsonb literal.
func arrayArg(vs []any) (arg any, cast string, err error) {
	ints := make([]int64, 0, len(vs))
	strs := make([]string, 0, len(vs))
	allInts, allStrs := true, true
	for _, v := range vs {
		if n, ok := intElement(v); ok {
			ints = append(ints, n)
		} else {
			allInts = false
		}
		if s, ok := v.(string); ok {
			strs = append(strs, s)
		} else {
			allStrs = false
		}
	}
	switch {
	case allInts && len(vs) > 0:
		return pq.Array(ints), "::integer[]", nil
	case allStrs:
		return pq.Array(strs), "", nil
	default:
		raw, err := json.Marshal(vs)
		if err != nil {
			return nil, "", err
		}
		return string(raw), "::jsonb", nil
	}
}

func intElement(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// combine folds preds with op, avoiding vacuous wrappers for zero or one
// element.
func combine(op func(...*entsql.Predicate) *entsql.Predicate, preds []*entsql.Predicate) *entsql.Predicate {
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return op(preds...)
	}
}

// whereValue reports whether v is a nested query object.
func whereValue(v any) (Where, bool) {
	switch m := v.(type) {
	case Where:
		return m, true
	case map[string]any:
		return Where(m), true
	}
	return nil, false
}

// whereList coerces the value of $and/$or into a list of sub-queries.
func whereList(v any) ([]Where, error) {
	switch vs := v.(type) {
	case []Where:
		return vs, nil
	case []map[string]any:
		out := make([]Where, len(vs))
		for i, m := range vs {
			out[i] = Where(m)
		}
		return out, nil
	case []any:
		out := make([]Where, 0, len(vs))
		for _, e := range vs {
			w, ok := whereValue(e)
			if !ok {
				return nil, fmt.Errorf("expected a list of query objects, got element of type %T", e)
			}
			out = append(out, w)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a list of query objects, got %T", v)
}

// anySlice converts slice-typed values into []any.
func anySlice(v any) ([]any, bool) {
	if vs, ok := v.([]any); ok {
		return vs, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
