package model

import (
	"sort"

	"golang.org/x/exp/maps"
)

// Primitive names a coarse scripting-language type (spec.md §4.3's
// candidate set plus the nil/boolean-literal refinements finalization
// collapses). Synthetic IDs (ids.ID as a string) also flow through a
// TypeSet before internal/finalizer resolves them to these or to a class
// name.
type Primitive string

const (
	Boolean  Primitive = "boolean"
	Function Primitive = "function"
	Number   Primitive = "number"
	String   Primitive = "string"
	Table    Primitive = "table"
	Nil      Primitive = "nil"
	True     Primitive = "true"
	False    Primitive = "false"
	Unknown  Primitive = "unknown"
)

// TypeSet is an unordered set of type names: primitives, or synthetic IDs
// serialized to string (spec.md §3: "synthetic IDs... leak into type sets
// as pre-resolution type markers").
type TypeSet map[string]struct{}

// NewTypeSet builds a TypeSet from the given members.
func NewTypeSet(members ...string) TypeSet {
	s := make(TypeSet, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Add inserts member into the set, returning the set for chaining.
func (s TypeSet) Add(member string) TypeSet {
	s[member] = struct{}{}
	return s
}

// Union returns a new TypeSet containing every member of s and other.
func (s TypeSet) Union(other TypeSet) TypeSet {
	out := make(TypeSet, len(s)+len(other))
	maps.Copy(out, s)
	maps.Copy(out, other)
	return out
}

// Contains reports whether member is in the set.
func (s TypeSet) Contains(member string) bool {
	_, ok := s[member]
	return ok
}

// Clone returns a shallow copy.
func (s TypeSet) Clone() TypeSet {
	out := make(TypeSet, len(s))
	maps.Copy(out, s)
	return out
}

// Sorted returns the set's members in a deterministic order, for stable
// output and test assertions.
func (s TypeSet) Sorted() []string {
	out := maps.Keys(s)
	sort.Strings(out)
	return out
}

// CollapseBooleans merges {true, false} into {boolean}, per spec.md §4.3
// "Boolean collapse" and testable property 2.
func (s TypeSet) CollapseBooleans() TypeSet {
	if s.Contains(string(True)) && s.Contains(string(False)) {
		out := s.Clone()
		delete(out, string(True))
		delete(out, string(False))
		out[string(Boolean)] = struct{}{}
		return out
	}
	return s
}

// coarseKind maps a TypeSet member (primitive or synthetic ID) to the
// coarse kind used by usage-based narrowing: function IDs behave like
// "function", table IDs like "table", primitives behave like themselves.
func coarseKind(member string) string {
	switch member {
	case string(True), string(False):
		return string(Boolean)
	}
	if len(member) > 0 && member[0] == '@' {
		// Synthetic ID: @table(...) behaves as table, @function(...) as
		// function; everything else (parameter/self/instance/module/local)
		// is left opaque and never narrowed away, since usage facts don't
		// apply to those markers directly.
		for _, kind := range []string{"@table", "@function"} {
			if len(member) >= len(kind) && member[:len(kind)] == kind {
				return kind[1:]
			}
		}
		return member
	}
	return member
}

// Narrow keeps only members whose coarse kind appears in usage, per
// spec.md §4.3: "After unioning, the resolver narrows the result against
// the usage record (if present and non-trivial, i.e. size in 1..4): keep
// only types whose coarse kind is in the usage set... If narrowing would
// empty the set, the narrowing is skipped."
func (s TypeSet) Narrow(usage TypeSet) TypeSet {
	if len(usage) < 1 || len(usage) > 4 {
		return s
	}
	out := make(TypeSet, len(s))
	for member := range s {
		if usage.Contains(coarseKind(member)) {
			out[member] = struct{}{}
		}
	}
	if len(out) == 0 {
		return s
	}
	return out
}
