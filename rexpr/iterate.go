// Copyright (C) 2024 The rexpr Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package rexpr

import "github.com/dynacore/rexpr/term"

// Iterator binds one variable over a finite set of candidate values
// (spec.md §4.7). Loop drives it to completion, calling emit once per
// candidate with f holding that candidate's binding; emit returns
// true to request early termination, which UnionIterator honours by
// not starting its remaining sub-iterators. The Loop driver below
// always returns false.
type Iterator interface {
	Variable() Variable
	Loop(f *Frame, emit func(f *Frame) bool)
	// Bind reports whether this iterator would have emitted x for its
	// variable, used by UnionIterator to de-duplicate across
	// sub-iterators (spec.md §4.7).
	Bind(f *Frame, x term.Value) bool
}

// SingleIterator emits exactly one candidate binding v to x.
type SingleIterator struct {
	V Variable
	X term.Value
}

func (s *SingleIterator) Variable() Variable { return s.V }

func (s *SingleIterator) Bind(f *Frame, x term.Value) bool { return x.Equals(s.X) }

func (s *SingleIterator) Loop(f *Frame, emit func(f *Frame) bool) {
	branch := f.Clone()
	if s.V.IsBound(branch) {
		cur, _ := s.V.Get(branch)
		if !cur.Equals(s.X) {
			return
		}
		emit(branch)
		return
	}
	if err := s.V.Set(branch, s.X); err != nil {
		return
	}
	emit(branch)
}

// UnionIterator emits the de-duplicated union of its sub-iterators'
// candidates for the same variable: a value already emitted by an
// earlier sub-iterator is skipped when a later one would repeat it
// (spec.md §4.7, §5 "breaking ties in favour of the earlier
// sub-iterator").
type UnionIterator struct {
	V        Variable
	Branches []Iterator
}

func (u *UnionIterator) Variable() Variable { return u.V }

func (u *UnionIterator) Bind(f *Frame, x term.Value) bool {
	for _, b := range u.Branches {
		if b.Bind(f, x) {
			return true
		}
	}
	return false
}

func (u *UnionIterator) Loop(f *Frame, emit func(f *Frame) bool) {
	for i, b := range u.Branches {
		stop := false
		b.Loop(f, func(branch *Frame) bool {
			v, ok := u.V.Get(branch)
			if ok {
				for _, earlier := range u.Branches[:i] {
					if earlier.Bind(f, v) {
						return false // de-duped, not a stop request
					}
				}
			}
			if emit(branch) {
				stop = true
				return true
			}
			return false
		})
		if stop {
			return
		}
	}
}

// RemapVarIterator wraps an inner iterator whose candidates bind a
// different (e.g. alpha-renamed) variable, translating each
// candidate's binding back to the caller's variable before invoking
// emit (spec.md §4.6's call-inlining, §4.7's "renamed iterator"
// wrapper).
type RemapVarIterator struct {
	Inner  Iterator
	Outer  Variable
}

func (r *RemapVarIterator) Variable() Variable { return r.Outer }

func (r *RemapVarIterator) Bind(f *Frame, x term.Value) bool {
	return r.Inner.Bind(f, x)
}

func (r *RemapVarIterator) Loop(f *Frame, emit func(f *Frame) bool) {
	r.Inner.Loop(f, func(inner *Frame) bool {
		branch := f.Clone()
		if v, ok := r.Inner.Variable().Get(inner); ok {
			if err := r.Outer.Set(branch, v); err != nil {
				return false
			}
		}
		return emit(branch)
	})
}

// GetPartitions is the get-partitions visitor of spec.md §4.7: it
// descends into n looking for a Partition column that is not already
// bound in f and for which every row supplies either a concrete key
// value or (via wildcard rows, which apply under every value) no
// constraint, yielding a UnionIterator over the per-value candidates.
// Intersect descends into its children in order, returning the first
// column any child can offer.
func GetPartitions(n Node, f *Frame) []Iterator {
	switch x := n.(type) {
	case *Partition:
		var its []Iterator
		for ci, col := range x.Cols {
			if col.IsBound(f) {
				continue
			}
			groups, _ := partitionMultimap(x.Rows, ci)
			if len(groups) == 0 {
				continue
			}
			var branches []Iterator
			for _, g := range groups {
				branches = append(branches, &SingleIterator{V: col, X: g.value})
			}
			its = append(its, &UnionIterator{V: col, Branches: branches})
		}
		return its
	case *Intersect:
		for _, c := range x.Children {
			if its := GetPartitions(c, f); len(its) > 0 {
				return its
			}
		}
	}
	return nil
}

// IsFinal reports whether n is a state the loop driver (and Query.Run)
// treats as needing no further iteration: a terminal multiplicity or a
// preserved error leaf (spec.md §4.7 "If R is a final state").
func IsFinal(n Node) bool {
	switch n.(type) {
	case *Terminal, *Error:
		return true
	default:
		return false
	}
}

// Loop is the push-style loop driver of spec.md §4.7: if n is already
// final, cb is invoked once with n and f directly; otherwise an
// iterator is picked from GetPartitions(n, f) (the first one found;
// any choice is legal per spec.md §4.7), and for every candidate
// binding it clones f, commits the binding, saturates n under the
// clone, and either recurses (tillTerminal) or invokes cb on the
// possibly-non-final result. A Partition/Intersect residue with no
// iterator available (e.g. every column already bound, or no row
// constrains it) is itself treated as a final state for cb's purposes,
// since this driver cannot make further progress on it.
func Loop(n Node, f *Frame, cb func(n Node, f *Frame), tillTerminal bool) {
	if IsFinal(n) {
		cb(n, f)
		return
	}
	its := GetPartitions(n, f)
	if len(its) == 0 {
		cb(n, f)
		return
	}
	it := its[0]
	it.Loop(f, func(branch *Frame) bool {
		next := Saturate(n, branch)
		if tillTerminal && !IsFinal(next) {
			Loop(next, branch, cb, true)
		} else {
			cb(next, branch)
		}
		return false
	})
}
