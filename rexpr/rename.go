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

// Phi maps a variable key to its replacement. Lookup returns the
// replacement and reports whether the key has a mapping.
type Phi interface {
	Lookup(key string) (Variable, bool)
}

// PhiMap is a Phi backed by a plain map, with an optional fallback
// for unmapped keys (used by rename_vars_unique below).
type PhiMap struct {
	M map[string]Variable
	// Fresh, if set, is called for any key not present in M and its
	// result is cached back into M (rename_vars_unique semantics).
	Fresh func() Variable
}

func (p *PhiMap) Lookup(key string) (Variable, bool) {
	if v, ok := p.M[key]; ok {
		return v, true
	}
	if p.Fresh == nil {
		return Variable{}, false
	}
	v := p.Fresh()
	p.M[key] = v
	return v, true
}

func renameVar(v Variable, phi Phi) Variable {
	if v.Kind != Named {
		return v
	}
	if nv, ok := phi.Lookup(v.Key); ok {
		return nv
	}
	return v
}

// RenameVars rewrites every named-variable occurrence in n through
// phi, recursively (spec.md §4.3). Variables phi has no mapping for
// are left untouched; constants and unitary variables always pass
// through.
func RenameVars(n Node, phi Phi) Node {
	switch x := n.(type) {
	case *Terminal, *Error:
		return n
	case *Intersect:
		children := make([]Node, len(x.Children))
		for i, c := range x.Children {
			children[i] = RenameVars(c, phi)
		}
		return NewIntersect(children...)
	case *Unify:
		return NewUnify(renameVar(x.A, phi), renameVar(x.B, phi))
	case *BuildStructure:
		args := make([]Variable, len(x.Args))
		for i, a := range x.Args {
			args[i] = renameVar(a, phi)
		}
		return NewBuildStructure(x.Name, renameVar(x.Result, phi), args...)
	case *ReflectStructure:
		return NewReflectStructure(renameVar(x.Result, phi), renameVar(x.NameVar, phi), renameVar(x.ArityVar, phi), renameVar(x.ListVar, phi))
	case *Evaluate:
		return NewEvaluate(renameVar(x.Ret, phi), renameVar(x.TermVar, phi), x.System)
	case *Aggregator:
		heads := make([]Variable, len(x.HeadVars))
		for i, v := range x.HeadVars {
			heads[i] = renameVar(v, phi)
		}
		return NewAggregator(renameVar(x.Result, phi), heads, renameVar(x.BodyRes, phi), x.Op, RenameVars(x.Body, phi))
	case *Call:
		args := make([]Variable, len(x.Args))
		for i, a := range x.Args {
			args[i] = renameVar(a, phi)
		}
		return NewCall(renameVar(x.Ret, phi), args, x.System, x.Name, x.Arity)
	case *ModedOp:
		vars := make([]Variable, len(x.Vars))
		for i, v := range x.Vars {
			vars[i] = renameVar(v, phi)
		}
		return NewModedOp(x.Name, vars, x.table)
	case *AssumptionWrapper:
		return NewAssumptionWrapper(x.Assumption, RenameVars(x.Child, phi))
	case *Partition:
		cols := make([]Variable, len(x.Cols))
		for i, c := range x.Cols {
			cols[i] = renameVar(c, phi)
		}
		rows := make([]PartitionRow, len(x.Rows))
		for i, r := range x.Rows {
			rows[i] = PartitionRow{Key: r.Key, Body: RenameVars(r.Body, phi)}
		}
		return NewPartition(cols, rows)
	}
	return n
}

// RenameVarsUnique renames like RenameVars, but any variable phi has
// no explicit mapping for receives a fresh, globally unique name
// (spec.md §4.3). This is the mechanism Call inlining uses to treat an
// R-expression like a procedure: the caller supplies bindings for the
// formal parameters and Return, and every other internal variable is
// alpha-renamed fresh so the inlined copy cannot alias the caller's
// variables or a sibling inlining of the same relation.
func RenameVarsUnique(n Node, explicit map[string]Variable) Node {
	phi := &PhiMap{M: map[string]Variable{}, Fresh: Fresh}
	for k, v := range explicit {
		phi.M[k] = v
	}
	return RenameVars(n, phi)
}
