package tablekit

import (
	"context"
	"errors"
)

// Update replaces the record with the given id: every column of the current
// row that the new payload does not carry is nulled out, so the stored row
// afterwards mirrors data exactly (plus its id). Replace is single-record
// only; replacing by bulk query is rejected.
func (s *Service) Update(ctx context.Context, id any, data Record, q Query) (Record, error) {
	if id == nil {
		return nil, NewValidationError("id", errors.New("update replaces a single record and requires an id"))
	}
	// Read the current row with all columns to establish the full-field
	// target image, honoring the caller's filters.
	current, err := s.Get(ctx, id, Query{Where: q.Where})
	if err != nil {
		return nil, err
	}
	full := make(Record, len(current))
	for k := range current {
		if k != s.idField {
			full[k] = nil
		}
	}
	for k, v := range data {
		if k != s.idField {
			full[k] = v
		}
	}
	return s.Patch(ctx, id, full, q)
}
