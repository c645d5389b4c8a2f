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

package builtin

import (
	"testing"

	"github.com/dynacore/rexpr"
	"github.com/dynacore/rexpr/term"
)

func mustSet(t *testing.T, f *rexpr.Frame, v rexpr.Variable, val term.Value) {
	t.Helper()
	if err := v.Set(f, val); err != nil {
		t.Fatalf("unexpected error setting %v: %v", val, err)
	}
}

func TestAddForwardMode(t *testing.T) {
	f := rexpr.NewFrame()
	a, b, c := rexpr.NewNamed("A"), rexpr.NewNamed("B"), rexpr.NewNamed("C")
	mustSet(t, f, a, term.Int(2))
	mustSet(t, f, b, term.Int(3))
	got := rexpr.Saturate(Add(a, b, c), f)
	if got != rexpr.Node(rexpr.One) {
		t.Fatalf("Saturate(add) = %s, want One", got)
	}
	cv, ok := c.Get(f)
	if !ok || !cv.Equals(term.Int(5)) {
		t.Fatalf("C = %s, want 5", cv)
	}
}

func TestAddInverseModeSolvesForEitherOperand(t *testing.T) {
	f := rexpr.NewFrame()
	a, b, c := rexpr.NewNamed("A"), rexpr.NewNamed("B"), rexpr.NewNamed("C")
	mustSet(t, f, a, term.Int(2))
	mustSet(t, f, c, term.Int(5))
	got := rexpr.Saturate(Add(a, b, c), f)
	if got != rexpr.Node(rexpr.One) {
		t.Fatalf("Saturate(add) = %s, want One", got)
	}
	bv, ok := b.Get(f)
	if !ok || !bv.Equals(term.Int(3)) {
		t.Fatalf("B = %s, want 3", bv)
	}
}

func TestAddAllBoundChecksConsistency(t *testing.T) {
	f := rexpr.NewFrame()
	a, b, c := rexpr.NewNamed("A"), rexpr.NewNamed("B"), rexpr.NewNamed("C")
	mustSet(t, f, a, term.Int(2))
	mustSet(t, f, b, term.Int(3))
	mustSet(t, f, c, term.Int(5))
	if got := rexpr.Saturate(Add(a, b, c), f); got != rexpr.Node(rexpr.One) {
		t.Fatalf("Saturate(add) with consistent bindings = %s, want One", got)
	}

	f2 := rexpr.NewFrame()
	mustSet(t, f2, a, term.Int(2))
	mustSet(t, f2, b, term.Int(3))
	mustSet(t, f2, c, term.Int(99))
	if got := rexpr.Saturate(Add(a, b, c), f2); got != rexpr.Node(rexpr.Zero) {
		t.Fatalf("Saturate(add) with inconsistent bindings = %s, want Zero", got)
	}
}

func TestMulByZeroInverseModeHasNoSolution(t *testing.T) {
	f := rexpr.NewFrame()
	a, b, c := rexpr.NewNamed("A"), rexpr.NewNamed("B"), rexpr.NewNamed("C")
	mustSet(t, f, a, term.Int(0))
	mustSet(t, f, c, term.Int(10))
	got := rexpr.Saturate(Mul(a, b, c), f)
	if got != rexpr.Node(rexpr.Zero) {
		t.Fatalf("Saturate(mul) with zero known factor = %s, want Zero", got)
	}
}

func TestDivByZeroHasNoSolution(t *testing.T) {
	f := rexpr.NewFrame()
	a, b, c := rexpr.NewNamed("A"), rexpr.NewNamed("B"), rexpr.NewNamed("C")
	mustSet(t, f, a, term.Int(10))
	mustSet(t, f, b, term.Int(0))
	got := rexpr.Saturate(Div(a, b, c), f)
	if got != rexpr.Node(rexpr.Zero) {
		t.Fatalf("Saturate(div) by zero = %s, want Zero", got)
	}
}

func TestNegRoundTrip(t *testing.T) {
	f := rexpr.NewFrame()
	a, b := rexpr.NewNamed("A"), rexpr.NewNamed("B")
	mustSet(t, f, a, term.Int(7))
	got := rexpr.Saturate(Neg(a, b), f)
	if got != rexpr.Node(rexpr.One) {
		t.Fatalf("Saturate(neg) = %s, want One", got)
	}
	bv, _ := b.Get(f)
	if !bv.Equals(term.Int(-7)) {
		t.Fatalf("B = %s, want -7", bv)
	}
}
