package models

import (
	"sort"
	"strings"
)

// EnvironmentSnapshot is the set of variables supplied by the invoking web
// server for one request. It is treated as immutable while a page renders.
type EnvironmentSnapshot map[string]string

// Variable is one entry of a filtered, ordered variable listing.
type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Lookup returns the value of key as a Field, absent when the key is missing.
func (e EnvironmentSnapshot) Lookup(key string) Field {
	v, ok := e[key]
	if !ok {
		return None()
	}
	return Some(v)
}

// Filter returns the entries whose key starts with one of prefixes, sorted by key.
// Map keys are unique, so no entry can appear twice.
func (e EnvironmentSnapshot) Filter(prefixes []string) []Variable {
	vars := make([]Variable, 0, len(e))
	for k, v := range e {
		if hasAnyPrefix(k, prefixes) {
			vars = append(vars, Variable{Key: k, Value: v})
		}
	}
	sort.Slice(vars, func(i, j int) bool {
		return vars[i].Key < vars[j].Key
	})
	return vars
}

// Clone returns an independent copy of the snapshot.
func (e EnvironmentSnapshot) Clone() EnvironmentSnapshot {
	out := make(EnvironmentSnapshot, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
