package tablekit

import (
	"fmt"
	"strconv"

	entsql "entgo.io/ent/dialect/sql"
)

// scanRecords drains rows into open-map records. Byte slices are converted
// to strings since drivers commonly return text columns as []byte; other
// driver values pass through untouched.
func scanRecords(rows *entsql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []Record{}
	for rows.Next() {
		raw := make([]any, len(cols))
		for i := range raw {
			raw[i] = new(any)
		}
		if err := rows.Scan(raw...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			v := *(raw[i].(*any))
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[c] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// scanCount reads the scalar of a count query, defaulting to 0 on no row or
// NULL. Engines and drivers disagree on the counter's type (int64, uint64,
// decimal string, bytes), so the value is coerced.
func scanCount(rows *entsql.Rows) (int, error) {
	if !rows.Next() {
		return 0, rows.Err()
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return 0, err
	}
	return coerceCount(v)
}

func coerceCount(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	case []byte:
		return strconv.Atoi(string(n))
	case string:
		return strconv.Atoi(n)
	}
	return 0, fmt.Errorf("tablekit: cannot read count of type %T", v)
}
