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

package system

import (
	"github.com/dynacore/rexpr"
	"github.com/dynacore/rexpr/term"
)

// Query is an R-expression plus a named Return variable and the
// positional placeholder variables an embedder binds arguments to
// before invoking (spec.md §6 "Query surface"). Building one from
// parsed source text is an embedder concern; this core only runs
// the already-constructed R-expression.
type Query struct {
	Body   rexpr.Node
	Return rexpr.Variable
	Slots  []rexpr.Variable
}

// Result is the outcome of running a Query (spec.md §6).
type Result struct {
	// None is true when the query simplified to Terminal(0).
	None bool
	// Value holds Return's bound value when the query simplified to
	// Terminal(1).
	Value term.Value
	// Residue holds the irreducible R-expression when simplification
	// did not reach a terminal multiplicity and the caller opted into
	// receiving it via Run's allowResidue argument.
	Residue rexpr.Node
	// Solutions holds every Return binding found while enumerating an
	// unsaturated query with unbound slots (spec.md §6).
	Solutions []term.Value
}

// Run binds args positionally to q.Slots (slots past the end of args
// stay unbound), saturates q.Body under a fresh Frame, and classifies
// the outcome per spec.md §6:
//   - Terminal(0) -> Result{None: true}
//   - Terminal(1) -> Result{Value: <bound Return>}
//   - otherwise, if every slot was bound: either allowResidue surfaces
//     the residue, or an *IncompleteComputationError is returned
//   - otherwise (some slot unbound): enumerate all solutions via the
//     partition/loop machinery
func (c *Context) Run(q Query, args []term.Value, allowResidue bool) (Result, error) {
	f := rexpr.NewFrame()
	allBound := true
	for i, s := range q.Slots {
		if i >= len(args) {
			allBound = false
			continue
		}
		if err := s.Set(f, args[i]); err != nil {
			return Result{}, err
		}
	}

	saturated := rexpr.Saturate(q.Body, f)
	if t, ok := saturated.(*rexpr.Terminal); ok {
		if t.N == 0 {
			return Result{None: true}, nil
		}
		v, _ := q.Return.Get(f)
		return Result{Value: v}, nil
	}

	if allBound {
		if allowResidue {
			return Result{Residue: saturated}, nil
		}
		return Result{}, &IncompleteComputationError{Residue: saturated}
	}

	var solutions []term.Value
	rexpr.Loop(saturated, f, func(n rexpr.Node, branch *rexpr.Frame) {
		t, ok := n.(*rexpr.Terminal)
		if !ok || t.N == 0 {
			return
		}
		v, ok := q.Return.Get(branch)
		if !ok {
			return
		}
		for k := int64(0); k < t.N; k++ {
			solutions = append(solutions, v)
		}
	}, true)
	return Result{Solutions: solutions}, nil
}
