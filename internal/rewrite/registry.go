package rewrite

import (
	"encoding/json"
	"sort"
)

// Registry maps export keys such as "#[derive(Hello)]" to the name of the
// wrapper function that expands them.
type Registry map[string]string

// NewRegistry returns an empty registry.
func NewRegistry() Registry {
	return Registry{}
}

// Set records key -> wrapper. It reports whether an existing entry with a
// different wrapper was overwritten.
func (r Registry) Set(key, wrapper string) (overwritten bool) {
	prev, ok := r[key]
	r[key] = wrapper
	return ok && prev != wrapper
}

// Len returns the number of entries.
func (r Registry) Len() int {
	return len(r)
}

// Keys returns the export keys in sorted order.
func (r Registry) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge copies every entry of other into r; entries in other win.
func (r Registry) Merge(other Registry) {
	for k, v := range other {
		r[k] = v
	}
}

// MarshalJSON renders the registry as a flat JSON object with sorted keys.
func (r Registry) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(r))
}
