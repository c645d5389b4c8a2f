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
	"testing"

	"github.com/dynacore/rexpr/term"
)

func TestIntersectSmartConstructorAbsorbsZero(t *testing.T) {
	got := NewIntersect(One, Zero, NewUnify(NewNamed("X"), NewNamed("X")))
	if got != Node(Zero) {
		t.Fatalf("Intersect containing Terminal(0) should collapse to Zero, got %s", got)
	}
}

func TestIntersectSmartConstructorMultipliesTerminals(t *testing.T) {
	got := NewIntersect(term0(2), term0(3))
	tm, ok := got.(*Terminal)
	if !ok || tm.N != 6 {
		t.Fatalf("Intersect of Terminal(2), Terminal(3) = %s, want Terminal(6)", got)
	}
}

func TestIntersectSmartConstructorFlattensSingleChild(t *testing.T) {
	x := NewNamed("X")
	got := NewIntersect(NewUnify(x, x))
	if got != Node(One) {
		t.Fatalf("Intersect([Unify(X,X)]) should collapse to One via Unify's own simplification, got %s", got)
	}
}

func TestUnifySameVariableIsOne(t *testing.T) {
	x := NewNamed("X")
	if NewUnify(x, x) != Node(One) {
		t.Fatal("Unify(X, X) should collapse to One")
	}
}

func TestUnifyDistinctConstants(t *testing.T) {
	a := NewConstant(term.Int(1))
	b := NewConstant(term.Int(2))
	if NewUnify(a, b) != Node(Zero) {
		t.Fatal("Unify of two distinct constants should collapse to Zero")
	}
	c := NewConstant(term.Int(1))
	if NewUnify(a, c) != Node(One) {
		t.Fatal("Unify of two equal constants should collapse to One")
	}
}

func TestPartitionAllTerminalCollapses(t *testing.T) {
	got := NewPartition(nil, []PartitionRow{
		{Body: term0(2)},
		{Body: term0(3)},
	})
	tm, ok := got.(*Terminal)
	if !ok || tm.N != 5 {
		t.Fatalf("Partition of all-Terminal rows = %s, want Terminal(5)", got)
	}
}

func TestEqualStructural(t *testing.T) {
	x, y := NewNamed("X"), NewNamed("Y")
	a := NewBuildStructure("point", x, y)
	b := NewBuildStructure("point", x, y)
	c := NewBuildStructure("point", y, x)
	if !Equal(a, b) {
		t.Fatal("structurally identical BuildStructure nodes should be equal")
	}
	if Equal(a, c) {
		t.Fatal("BuildStructure nodes differing in variable order should not be equal")
	}
}

func TestVarsDeduplicatesAndOrders(t *testing.T) {
	x, y := NewNamed("X"), NewNamed("Y")
	n := NewIntersect(NewUnify(x, y), NewUnify(x, x))
	vars := Vars(n)
	if len(vars) != 2 {
		t.Fatalf("Vars should dedupe to 2 entries, got %d: %v", len(vars), vars)
	}
	if vars[0].Key != "X" || vars[1].Key != "Y" {
		t.Fatalf("Vars should be sorted by key, got %v", vars)
	}
}

func TestVarsIgnoresConstants(t *testing.T) {
	n := NewUnify(NewNamed("X"), NewConstant(term.Int(1)))
	vars := Vars(n)
	if len(vars) != 1 || vars[0].Key != "X" {
		t.Fatalf("Vars should skip constants, got %v", vars)
	}
}
