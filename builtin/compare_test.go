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

func TestComparisonOpsNumeric(t *testing.T) {
	cases := []struct {
		name string
		op   func(a, b rexpr.Variable) rexpr.Node
		a, b int64
		want bool
	}{
		{"lt true", Lt, 1, 2, true},
		{"lt false", Lt, 2, 1, false},
		{"le equal", Le, 2, 2, true},
		{"gt true", Gt, 5, 2, true},
		{"ge equal", Ge, 2, 2, true},
		{"eq true", Eq, 3, 3, true},
		{"ne true", Ne, 3, 4, true},
		{"ne false", Ne, 3, 3, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := rexpr.NewFrame()
			a, b := rexpr.NewNamed("A"), rexpr.NewNamed("B")
			mustSet(t, f, a, term.Int(c.a))
			mustSet(t, f, b, term.Int(c.b))
			got := rexpr.Saturate(c.op(a, b), f)
			want := rexpr.Node(rexpr.Zero)
			if c.want {
				want = rexpr.One
			}
			if got != want {
				t.Fatalf("%s: got %s, want %s", c.name, got, want)
			}
		})
	}
}

func TestComparisonOpLexicalStrings(t *testing.T) {
	f := rexpr.NewFrame()
	a, b := rexpr.NewNamed("A"), rexpr.NewNamed("B")
	mustSet(t, f, a, term.String("apple"))
	mustSet(t, f, b, term.String("banana"))
	if got := rexpr.Saturate(Lt(a, b), f); got != rexpr.Node(rexpr.One) {
		t.Fatalf("Saturate(lt) on strings = %s, want One", got)
	}
}

func TestComparisonOpLeavesResidueWhenUnbound(t *testing.T) {
	f := rexpr.NewFrame()
	a, b := rexpr.NewNamed("A"), rexpr.NewNamed("B")
	mustSet(t, f, a, term.Int(1))
	n := Lt(a, b)
	got := rexpr.Saturate(n, f)
	if _, ok := got.(*rexpr.ModedOp); !ok {
		t.Fatalf("Saturate(lt) with B unbound = %s, want it left as residue", got)
	}
}
