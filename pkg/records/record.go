// Package records defines the loosely typed row shape shared by parsers,
// transformers and writers.
package records

// Record maps a column name to its value. Values are string, float64 or nil.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsNull reports whether the value stored under key is absent, nil, or an
// empty string.
func (r Record) IsNull(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}
