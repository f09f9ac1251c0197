package tablekit

import "github.com/tablekit/tablekit/dialect"

// normalizeValue converts values into shapes the dialect's driver accepts,
// recursing into slices and maps. For SQLite every boolean becomes 1 or 0,
// since the driver rejects native booleans; other dialects are an identity
// transform. When nothing changed the input is returned as-is, so callers
// can detect conversion by identity.
func normalizeValue(d dialect.Dialect, v any) any {
	if d != dialect.SQLite {
		return v
	}
	out, _ := coerceBools(v)
	return out
}

// normalizeRecord applies normalizeValue to every field of r, returning r
// itself when no field changed.
func normalizeRecord(d dialect.Dialect, r Record) Record {
	if d != dialect.SQLite || r == nil {
		return r
	}
	out, changed := coerceBools(map[string]any(r))
	if !changed {
		return r
	}
	return Record(out.(map[string]any))
}

// normalizeWhere applies normalizeValue across a predicate map.
func normalizeWhere(d dialect.Dialect, w Where) Where {
	if d != dialect.SQLite || len(w) == 0 {
		return w
	}
	out, changed := coerceBools(map[string]any(w))
	if !changed {
		return w
	}
	return Where(out.(map[string]any))
}

// coerceBools rewrites booleans to 1/0 and reports whether anything changed.
// Unchanged containers are returned as the original reference.
func coerceBools(v any) (any, bool) {
	switch v := v.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case []any:
		var out []any
		for i, e := range v {
			c, changed := coerceBools(e)
			if !changed {
				continue
			}
			if out == nil {
				out = make([]any, len(v))
				copy(out, v)
			}
			out[i] = c
		}
		if out != nil {
			return out, true
		}
		return v, false
	case map[string]any:
		var out map[string]any
		for k, e := range v {
			c, changed := coerceBools(e)
			if !changed {
				continue
			}
			if out == nil {
				out = make(map[string]any, len(v))
				for k2, e2 := range v {
					out[k2] = e2
				}
			}
			out[k] = c
		}
		if out != nil {
			return out, true
		}
		return v, false
	case []Where:
		var out []Where
		for i, e := range v {
			c, changed := coerceBools(e)
			if !changed {
				continue
			}
			if out == nil {
				out = make([]Where, len(v))
				copy(out, v)
			}
			out[i] = c.(Where)
		}
		if out != nil {
			return out, true
		}
		return v, false
	case []map[string]any:
		var out []map[string]any
		for i, e := range v {
			c, changed := coerceBools(e)
			if !changed {
				continue
			}
			if out == nil {
				out = make([]map[string]any, len(v))
				copy(out, v)
			}
			out[i] = c.(map[string]any)
		}
		if out != nil {
			return out, true
		}
		return v, false
	case Record:
		out, changed := coerceBools(map[string]any(v))
		if !changed {
			return v, false
		}
		return Record(out.(map[string]any)), true
	case Where:
		out, changed := coerceBools(map[string]any(v))
		if !changed {
			return v, false
		}
		return Where(out.(map[string]any)), true
	}
	return v, false
}
