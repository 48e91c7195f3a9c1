// Package utils holds small generic helpers shared across packages.
package utils

// Value dereferences p, returning the zero value when p is nil. The
// account API's wire types use pointer fields for optional values;
// display code reads them through Value.
func Value[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// Ptr returns a pointer to v, for building optional wire fields in place.
func Ptr[T any](v T) *T {
	return &v
}

// ToStringSlice keeps the string elements of a decoded JSON array and
// drops everything else. Token claim values arrive as []any.
func ToStringSlice(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
