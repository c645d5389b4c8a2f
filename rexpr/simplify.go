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
	"github.com/dynacore/rexpr/term"
)

// Simplify is the type-indexed rewriter of spec.md §4.4: it returns a
// new R-expression (possibly n itself), mutating f by adding bindings
// along the way. The visitor table below is the Go rendition of the
// per-class rewrite-handler registration described in DESIGN NOTES
// §9 — a single switch keyed on the concrete type, rather than an
// open-class extension mechanism, since the set of node kinds is
// closed.
func Simplify(n Node, f *Frame) Node {
	switch x := n.(type) {
	case *Terminal:
		return x
	case *Error:
		return x
	case *Intersect:
		return simplifyIntersect(x, f)
	case *Unify:
		return simplifyUnify(x, f)
	case *BuildStructure:
		return simplifyBuildStructure(x, f)
	case *ReflectStructure:
		return simplifyReflectStructure(x, f)
	case *Evaluate:
		return simplifyEvaluate(x, f)
	case *Partition:
		return simplifyPartition(x, f)
	case *Aggregator:
		return simplifyAggregator(x, f)
	case *Call:
		return simplifyCall(x, f)
	case *ModedOp:
		return simplifyModedOp(x, f)
	case *AssumptionWrapper:
		return simplifyAssumptionWrapper(x, f)
	default:
		return n
	}
}

// Saturate repeatedly simplifies n under f until a fixed point
// (structural equality) is reached (spec.md §4.4).
func Saturate(n Node, f *Frame) Node {
	cur := n
	for {
		next := Simplify(cur, f)
		if Equal(next, cur) {
			return next
		}
		cur = next
	}
}

func simplifyIntersect(x *Intersect, f *Frame) Node {
	results := make([]Node, 0, len(x.Children))
	for _, c := range x.Children {
		r := Simplify(c, f)
		if t, ok := r.(*Terminal); ok && t.Empty() {
			return r // short-circuit (spec.md §4.4, §8 property 7)
		}
		results = append(results, r)
	}
	return NewIntersect(results...)
}

func simplifyUnify(x *Unify, f *Frame) Node {
	if x.A.IsBound(f) {
		va, _ := x.A.Get(f)
		if err := x.B.Set(f, va); err != nil {
			return Zero
		}
		return One
	}
	if x.B.IsBound(f) {
		vb, _ := x.B.Get(f)
		if err := x.A.Set(f, vb); err != nil {
			return Zero
		}
		return One
	}
	return x
}

func simplifyBuildStructure(x *BuildStructure, f *Frame) Node {
	if x.Result.IsBound(f) {
		v, _ := x.Result.Get(f)
		t, ok := v.Term()
		if !ok || t.Name != x.Name || t.Arity() != len(x.Args) {
			return Zero
		}
		for i, a := range x.Args {
			if err := a.Set(f, t.Args[i]); err != nil {
				return Zero
			}
		}
		return One
	}
	allBound := true
	args := make([]term.Value, len(x.Args))
	for i, a := range x.Args {
		v, ok := a.Get(f)
		if !ok {
			allBound = false
			break
		}
		args[i] = v
	}
	if allBound {
		t := term.NewTerm(x.Name, args...)
		if err := x.Result.Set(f, term.FromTerm(t)); err != nil {
			return Zero
		}
		return One
	}
	return x
}

func simplifyReflectStructure(x *ReflectStructure, f *Frame) Node {
	if x.Result.IsBound(f) {
		v, _ := x.Result.Get(f)
		t, ok := v.Term()
		if !ok {
			return Zero
		}
		if err := x.NameVar.Set(f, term.String(t.Name)); err != nil {
			return Zero
		}
		if err := x.ArityVar.Set(f, term.Int(int64(t.Arity()))); err != nil {
			return Zero
		}
		lst := term.ListFromSlice(t.Args)
		if err := x.ListVar.Set(f, lst); err != nil {
			return Zero
		}
		return One
	}
	if x.NameVar.IsBound(f) && x.ListVar.IsBound(f) {
		nameV, _ := x.NameVar.Get(f)
		name, ok := nameV.Str()
		if !ok {
			return Zero
		}
		listV, _ := x.ListVar.Get(f)
		items, ok := term.SliceFromList(listV)
		if !ok {
			return Zero
		}
		t := term.NewTerm(name, items...)
		if err := x.ArityVar.Set(f, term.Int(int64(len(items)))); err != nil {
			return Zero
		}
		if err := x.Result.Set(f, term.FromTerm(t)); err != nil {
			return Zero
		}
		return One
	}
	if x.NameVar.IsBound(f) && x.ArityVar.IsBound(f) && !x.ListVar.IsBound(f) {
		nameV, _ := x.NameVar.Get(f)
		name, ok := nameV.Str()
		if !ok {
			return Zero
		}
		arityV, _ := x.ArityVar.Get(f)
		arity, ok := arityV.Int()
		if !ok || arity < 0 {
			return Zero
		}
		// Expand into a BuildStructure on k fresh argument variables
		// plus a cons chain binding ListVar, then re-simplify
		// (spec.md §4.4; no cap on arity, Open Question 5 resolved in
		// SPEC_FULL.md).
		argVars := make([]Variable, arity)
		for i := range argVars {
			argVars[i] = Fresh()
		}
		build := NewBuildStructure(name, x.Result, argVars...)
		listExpr := consChain(argVars, x.ListVar)
		return Simplify(NewIntersect(build, listExpr), f)
	}
	return x
}

// consChain builds the Intersect of cons BuildStructure constraints,
// closed by a Unify with nil(), that bind list to the cons-list
// .(argVars[0], .(argVars[1], ... nil())).
func consChain(argVars []Variable, list Variable) Node {
	tailVar := list
	nodes := make([]Node, 0, len(argVars)+1)
	cur := list
	for i, av := range argVars {
		headVar := av
		var next Variable
		if i == len(argVars)-1 {
			next = Fresh()
			nodes = append(nodes, NewBuildStructure(".", cur, headVar, next))
			nodes = append(nodes, NewUnify(next, nilVar()))
		} else {
			next = Fresh()
			nodes = append(nodes, NewBuildStructure(".", cur, headVar, next))
		}
		cur = next
	}
	if len(argVars) == 0 {
		nodes = append(nodes, NewUnify(tailVar, nilVar()))
	}
	return NewIntersect(nodes...)
}

func nilVar() Variable {
	return NewConstant(term.Nil())
}

func simplifyEvaluate(x *Evaluate, f *Frame) Node {
	if !x.TermVar.IsBound(f) {
		return x // delay
	}
	v, _ := x.TermVar.Get(f)
	t, ok := v.Term()
	if !ok {
		// Non-term ground value: Terminal(0) (Open Question 4,
		// resolved per spec.md's own text in SPEC_FULL.md).
		return Zero
	}
	args := make([]Variable, len(t.Args))
	for i, a := range t.Args {
		args[i] = NewConstant(a)
	}
	call := NewCall(x.Ret, args, x.System, t.Name, len(t.Args))
	return Simplify(call, f)
}

func simplifyModedOp(x *ModedOp, f *Frame) Node {
	mask := maskOf(f, x.Vars)
	impl, ok := x.table[mask.Key()]
	if !ok {
		return x // left as residue
	}
	values, mult, ok := impl(f, x.Vars)
	if !ok {
		return Zero
	}
	for idx, v := range values {
		if err := x.Vars[idx].Set(f, v); err != nil {
			return Zero
		}
	}
	return term0(mult)
}

func simplifyAssumptionWrapper(x *AssumptionWrapper, f *Frame) Node {
	if !x.Assumption.Valid() {
		// Stale: the holder of this node is responsible for
		// re-resolving via System.LookupTerm; we cannot do that
		// ourselves since we were not given a name/arity (spec.md
		// §4.6 Assumption lifecycle).
		return x
	}
	return Simplify(x.Child, f)
}
