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

func TestDefineAndCallTerm(t *testing.T) {
	ctx := NewContext()
	ret, x, y := rexpr.NewNamed("Ret"), rexpr.NewNamed("X"), rexpr.NewNamed("Y")
	body := builtin.Add(x, y, ret)
	if err := ctx.DefineTerm("add2", 2, body, ret, []rexpr.Variable{x, y}); err != nil {
		t.Fatalf("DefineTerm: %v", err)
	}

	f := rexpr.NewFrame()
	a, b, r := rexpr.NewNamed("A"), rexpr.NewNamed("B"), rexpr.NewNamed("R")
	if err := a.Set(f, term.Int(2)); err != nil {
		t.Fatal(err)
	}
	if err := b.Set(f, term.Int(3)); err != nil {
		t.Fatal(err)
	}
	call := ctx.CallTerm("add2", 2, r, []rexpr.Variable{a, b})
	got := rexpr.Saturate(call, f)
	if got != rexpr.Node(rexpr.One) {
		t.Fatalf("Saturate(call add2) = %s, want One", got)
	}
	rv, ok := r.Get(f)
	if !ok || !rv.Equals(term.Int(5)) {
		t.Fatalf("R = %s, want 5", rv)
	}
}

func TestDefineTermRejectsDuplicate(t *testing.T) {
	ctx := NewContext()
	ret := rexpr.NewNamed("Ret")
	if err := ctx.DefineTerm("foo", 0, rexpr.One, ret, nil); err != nil {
		t.Fatalf("first DefineTerm: %v", err)
	}
	if err := ctx.DefineTerm("foo", 0, rexpr.One, ret, nil); err == nil {
		t.Fatal("redefining foo/0 should error")
	}
}

func TestAddToTermMergesContributions(t *testing.T) {
	ctx := NewContext()
	ret, h := rexpr.NewNamed("Ret"), rexpr.NewNamed("H")
	row1 := rexpr.NewIntersect(rexpr.NewUnify(h, rexpr.NewConstant(term.Int(1))), rexpr.NewUnify(ret, rexpr.NewConstant(term.Int(10))))
	row2 := rexpr.NewIntersect(rexpr.NewUnify(h, rexpr.NewConstant(term.Int(1))), rexpr.NewUnify(ret, rexpr.NewConstant(term.Int(20))))
	if err := ctx.AddToTerm("total", 1, rexpr.OpSum, row1, ret, []rexpr.Variable{h}); err != nil {
		t.Fatalf("first AddToTerm: %v", err)
	}
	if err := ctx.AddToTerm("total", 1, rexpr.OpSum, row2, ret, []rexpr.Variable{h}); err != nil {
		t.Fatalf("second AddToTerm: %v", err)
	}
	if ctx.TermAssumption("total", 1) == nil {
		t.Fatal("expected an assumption token for total/1")
	}
}

func TestAddToTermRejectsMismatchedAggregator(t *testing.T) {
	ctx := NewContext()
	ret := rexpr.NewNamed("Ret")
	if err := ctx.AddToTerm("tot", 0, rexpr.OpSum, rexpr.One, ret, nil); err != nil {
		t.Fatalf("first AddToTerm: %v", err)
	}
	if err := ctx.AddToTerm("tot", 0, rexpr.OpOr, rexpr.One, ret, nil); err == nil {
		t.Fatal("mismatched aggregator op should error")
	}
}

func TestDeleteTermInvalidatesAssumption(t *testing.T) {
	ctx := NewContext()
	ret := rexpr.NewNamed("Ret")
	if err := ctx.DefineTerm("gone", 0, rexpr.One, ret, nil); err != nil {
		t.Fatal(err)
	}
	a := ctx.TermAssumption("gone", 0)
	if !a.Valid() {
		t.Fatal("fresh assumption should start valid")
	}
	if err := ctx.DeleteTerm("gone", 0); err != nil {
		t.Fatal(err)
	}
	if a.Valid() {
		t.Fatal("assumption should be invalidated after DeleteTerm")
	}
	// After deletion, LookupTerm resolves to a fresh placeholder rather
	// than nil (spec.md §4.6): Terminal(0) wrapped in a new, currently
	// valid assumption, ready to be invalidated by a future redefinition.
	w := ctx.LookupTerm("gone", 0)
	if w == nil {
		t.Fatal("LookupTerm should never return nil")
	}
	if w.Assumption == a || !w.Assumption.Valid() {
		t.Fatal("LookupTerm after DeleteTerm should mint a fresh, valid placeholder assumption")
	}
}

func TestLookupTermUndefinedResolvesToPlaceholderThatInvalidatesOnDefine(t *testing.T) {
	ctx := NewContext()
	w := ctx.LookupTerm("later", 0)
	if w == nil {
		t.Fatal("LookupTerm should never return nil")
	}
	if !w.Assumption.Valid() {
		t.Fatal("a never-defined relation's placeholder assumption should start valid")
	}
	ret := rexpr.NewNamed("Ret")
	if err := ctx.DefineTerm("later", 0, rexpr.One, ret, nil); err != nil {
		t.Fatal(err)
	}
	if w.Assumption.Valid() {
		t.Fatal("defining a relation should invalidate any placeholder assumption handed out for it earlier")
	}
}

func TestDeleteTermUndefinedErrors(t *testing.T) {
	ctx := NewContext()
	if err := ctx.DeleteTerm("nope", 0); err == nil {
		t.Fatal("deleting an undefined relation should error")
	}
}

func TestMaxCallDepthOption(t *testing.T) {
	ctx := NewContext(WithMaxCallDepth(3))
	if ctx.MaxCallDepth() != 3 {
		t.Fatalf("MaxCallDepth() = %d, want 3", ctx.MaxCallDepth())
	}
	if NewContext().MaxCallDepth() != 4096 {
		t.Fatal("default MaxCallDepth should be 4096")
	}
}
