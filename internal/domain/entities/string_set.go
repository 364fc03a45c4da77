package entities

import (
	"sort"
	"strings"
)

// NormalizeSetValue canonicalizes a facet value: lower case, single spaces.
func NormalizeSetValue(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}

// NormalizeSet canonicalizes, de-duplicates and sorts facet values. Empty input yields nil.
func NormalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := NormalizeSetValue(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// UnionSets merges two normalized sets.
func UnionSets(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return append([]string(nil), b...)
	}
	return NormalizeSet(append(append([]string(nil), a...), b...))
}

// Intersects reports whether any normalized value in values is in allowed.
func Intersects(values []string, allowed map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := allowed[NormalizeSetValue(v)]; ok {
			return true
		}
	}
	return false
}
