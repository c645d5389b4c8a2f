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
	"testing"

	"github.com/dynacore/rexpr"
	"github.com/dynacore/rexpr/builtin"
	"github.com/dynacore/rexpr/term"
)

func TestRunSingleSolution(t *testing.T) {
	ctx := NewContext()
	a, b, ret := rexpr.NewNamed("A"), rexpr.NewNamed("B"), rexpr.NewNamed("Ret")
	q := Query{Body: builtin.Add(a, b, ret), Return: ret, Slots: []rexpr.Variable{a, b}}
	res, err := ctx.Run(q, []term.Value{term.Int(2), term.Int(3)}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Value.Equals(term.Int(5)) {
		t.Fatalf("Run.Value = %s, want 5", res.Value)
	}
}

func TestRunNoSolution(t *testing.T) {
	ctx := NewContext()
	a, b, ret := rexpr.NewNamed("A"), rexpr.NewNamed("B"), rexpr.NewNamed("Ret")
	q := Query{Body: builtin.Eq(a, b), Return: ret, Slots: []rexpr.Variable{a, b}}
	res, err := ctx.Run(q, []term.Value{term.Int(1), term.Int(2)}, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.None {
		t.Fatalf("Run.None = false, want true for a mismatched eq/2")
	}
}

func TestRunIncompleteComputationErrorsWithoutResidue(t *testing.T) {
	ctx := NewContext()
	x, ret := rexpr.NewNamed("X"), rexpr.NewNamed("Ret")
	// No slots (so none is left unbound), but the body is an unrelated
	// unbound Unify: it can't reduce to a terminal multiplicity.
	q := Query{Body: rexpr.NewUnify(x, rexpr.NewNamed("Y")), Return: ret, Slots: []rexpr.Variable{}}
	_, err := ctx.Run(q, nil, false)
	if err == nil {
		t.Fatal("expected an IncompleteComputationError")
	}
	if _, ok := err.(*IncompleteComputationError); !ok {
		t.Fatalf("got %T, want *IncompleteComputationError", err)
	}
}

func TestRunAllowResidueSurfacesResidue(t *testing.T) {
	ctx := NewContext()
	x, ret := rexpr.NewNamed("X"), rexpr.NewNamed("Ret")
	q := Query{Body: rexpr.NewUnify(x, rexpr.NewNamed("Y")), Return: ret, Slots: []rexpr.Variable{}}
	res, err := ctx.Run(q, nil, true)
	if err != nil {
		t.Fatalf("Run with allowResidue: %v", err)
	}
	if res.Residue == nil {
		t.Fatal("expected a non-nil residue")
	}
}

func TestRunEnumeratesSolutionsWhenSlotUnbound(t *testing.T) {
	ctx := NewContext()
	h, ret := rexpr.NewNamed("H"), rexpr.NewNamed("Ret")
	body := rexpr.NewPartition([]rexpr.Variable{h}, []rexpr.PartitionRow{
		{Key: []rexpr.KeySlot{rexpr.Ground(term.Int(1))}, Body: rexpr.NewIntersect(
			rexpr.NewUnify(h, rexpr.NewConstant(term.Int(1))),
			rexpr.NewUnify(ret, rexpr.NewConstant(term.Int(100))),
		)},
		{Key: []rexpr.KeySlot{rexpr.Ground(term.Int(2))}, Body: rexpr.NewIntersect(
			rexpr.NewUnify(h, rexpr.NewConstant(term.Int(2))),
			rexpr.NewUnify(ret, rexpr.NewConstant(term.Int(200))),
		)},
	})
	q := Query{Body: body, Return: ret, Slots: []rexpr.Variable{h}}
	res, err := ctx.Run(q, nil, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Solutions) != 2 {
		t.Fatalf("Solutions = %v, want 2 entries", res.Solutions)
	}
}
