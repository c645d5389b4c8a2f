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

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"

	"github.com/dynacore/rexpr/term"
)

// VarKind discriminates the three variants of Variable (spec.md §3.1).
type VarKind uint8

const (
	// Named identifies a variable by an opaque string key; two
	// occurrences with the same key denote the same logical variable.
	Named VarKind = iota
	// Constant carries an immediate value and is always bound.
	Constant
	// Unitary is fresh, write-only, and never read.
	Unitary
)

// Variable is one of Named, Constant, or Unitary (spec.md §3.1).
// It is a small value type, not an interface, following the teacher's
// preference for closed discriminated structs (expr.CmpOp, expr.ArithOp)
// over an interface hierarchy when the set of cases is fixed.
type Variable struct {
	Kind VarKind
	Key  string
	val  term.Value // only meaningful when Kind == Constant
}

// NewNamed returns a named variable identified by key.
func NewNamed(key string) Variable {
	return Variable{Kind: Named, Key: key}
}

// NewConstant returns a variable that is permanently bound to v.
func NewConstant(v term.Value) Variable {
	return Variable{Kind: Constant, val: v}
}

// NewUnitary returns a fresh write-only variable. Each call produces a
// distinct identity so two unitary variables are never mistaken for
// the same logical slot.
func NewUnitary() Variable {
	return Variable{Kind: Unitary, Key: "_" + uuid.NewString()}
}

// Fresh mints a named variable with a globally unique key, used by
// rename_vars_unique (spec.md §4.3) to alpha-rename internal variables
// of an inlined relation body (spec.md §4.6).
func Fresh() Variable {
	return Variable{Kind: Named, Key: "_g" + uuid.NewString()}
}

// Equals reports whether v and o denote the same logical variable.
func (v Variable) Equals(o Variable) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Named, Unitary:
		return v.Key == o.Key
	case Constant:
		return v.val.Equals(o.val)
	}
	return false
}

func (v Variable) String() string {
	switch v.Kind {
	case Named:
		return v.Key
	case Unitary:
		return "_"
	case Constant:
		return v.val.String()
	}
	return "?"
}

// sentinel is the INVALID marker returned by Get when a variable is
// not bound (spec.md §4.1).
var sentinel = term.Value{}

// IsBound reports whether v has a binding in f (spec.md §4.1).
func (v Variable) IsBound(f *Frame) bool {
	switch v.Kind {
	case Constant:
		return true
	case Unitary:
		return false
	default:
		_, ok := f.bind[v.Key]
		return ok
	}
}

// Get returns v's bound value, or (sentinel, false) if unbound.
func (v Variable) Get(f *Frame) (term.Value, bool) {
	switch v.Kind {
	case Constant:
		return v.val, true
	case Unitary:
		return sentinel, false
	default:
		x, ok := f.bind[v.Key]
		return x, ok
	}
}

// errConflict is returned by Set when v is already bound to a value
// unequal to x (spec.md §4.1's unification-failure). It is a plain
// value-level error, not a panic: each simplify method that issues a
// Set checks this error itself and reports Terminal(0) at that exact
// point, which is what spec.md §4.4 means by "the nearest boundary"
// (see SPEC_FULL.md's ambient-stack notes).
type errConflict struct {
	Var Variable
	Old term.Value
	New term.Value
}

func (e *errConflict) Error() string {
	return fmt.Sprintf("unification failure: %s already bound to %s, cannot set to %s", e.Var, e.Old, e.New)
}

// Set binds v to x in f. Constants check x against their fixed value;
// unitary variables silently ignore the set; named variables fail
// with errConflict if already bound to a different value (spec.md §4.1).
func (v Variable) Set(f *Frame, x term.Value) error {
	switch v.Kind {
	case Constant:
		if !v.val.Equals(x) {
			return &errConflict{Var: v, Old: v.val, New: x}
		}
		return nil
	case Unitary:
		return nil
	default:
		if old, ok := f.bind[v.Key]; ok {
			if !old.Equals(x) {
				return &errConflict{Var: v, Old: old, New: x}
			}
			return nil
		}
		f.bind[v.Key] = x
		return nil
	}
}

// Unset removes v's binding from f (spec.md §4.1). Nothing in this
// module calls it: the partition rewriter probes rows on a cloned
// frame instead of rolling bindings back.
func (v Variable) Unset(f *Frame) {
	if v.Kind == Named {
		delete(f.bind, v.Key)
	}
}

// CallKey identifies one entry on a Frame's recursion-blocker stack:
// a relation name/arity plus the ground values of its bound arguments
// at the time of the call (spec.md §4.6 step 2).
type CallKey struct {
	Name  string
	Arity int
	Mode  string // bitmask of which args were bound, as "101..." text
	Args  string // stable encoding of the bound argument values
}

// Frame maps variable keys to values, plus the call-stack used by the
// recursion guard (spec.md §3.2).
type Frame struct {
	bind  map[string]term.Value
	Stack []CallKey
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{bind: make(map[string]term.Value)}
}

// Clone performs the copy-on-branch duplication the loop driver needs
// before committing a choice (spec.md §4.7 step 1): a shallow copy of
// the bindings map plus a fresh copy of the call stack, mirroring
// ion.Symtab.CloneInto's shallow-copy-then-mutate discipline in the
// teacher.
func (f *Frame) Clone() *Frame {
	nb := maps.Clone(f.bind)
	if nb == nil {
		nb = make(map[string]term.Value)
	}
	ns := make([]CallKey, len(f.Stack))
	copy(ns, f.Stack)
	return &Frame{bind: nb, Stack: ns}
}

// Snapshot returns the set of keys from vars that are currently bound
// (spec.md §4.5 step 2). Nothing in this module calls it.
func (f *Frame) Snapshot(vars []Variable) []bool {
	out := make([]bool, len(vars))
	for i, v := range vars {
		out[i] = v.IsBound(f)
	}
	return out
}
