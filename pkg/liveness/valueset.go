package liveness

import (
	"sort"

	"github.com/raymyers/ralph-cf/pkg/ssa"
)

// ValueSet is a set of SSA values.
type ValueSet map[ssa.ValueID]struct{}

// NewValueSet creates an empty set
func NewValueSet() ValueSet {
	return make(ValueSet)
}

// Add inserts v
func (s ValueSet) Add(v ssa.ValueID) {
	s[v] = struct{}{}
}

// Remove deletes v
func (s ValueSet) Remove(v ssa.ValueID) {
	delete(s, v)
}

// Contains returns true if v is in the set
func (s ValueSet) Contains(v ssa.ValueID) bool {
	_, ok := s[v]
	return ok
}

// Copy returns an independent copy
func (s ValueSet) Copy() ValueSet {
	c := make(ValueSet, len(s))
	for v := range s {
		c[v] = struct{}{}
	}
	return c
}

// Union returns a new set containing the elements of both sets
func (s ValueSet) Union(o ValueSet) ValueSet {
	u := s.Copy()
	for v := range o {
		u[v] = struct{}{}
	}
	return u
}

// Minus returns a new set with the elements of s not in o
func (s ValueSet) Minus(o ValueSet) ValueSet {
	d := make(ValueSet, len(s))
	for v := range s {
		if !o.Contains(v) {
			d[v] = struct{}{}
		}
	}
	return d
}

// Equal returns true if both sets have the same elements
func (s ValueSet) Equal(o ValueSet) bool {
	if len(s) != len(o) {
		return false
	}
	for v := range s {
		if !o.Contains(v) {
			return false
		}
	}
	return true
}

// Slice returns the elements in ascending order
func (s ValueSet) Slice() []ssa.ValueID {
	out := make([]ssa.ValueID, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
