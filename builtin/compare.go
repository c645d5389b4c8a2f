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
	"github.com/dynacore/rexpr"
	"github.com/dynacore/rexpr/term"
)

// cmp returns -1, 0, 1 comparing a and b numerically, or lexically if
// both are strings.
func cmp(a, b term.Value) int {
	if as, ok := a.Str(); ok {
		if bs, ok := b.Str(); ok {
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		}
	}
	af, bf := asFloat(a), asFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

// comparisonOp builds a 2-ary ModedOp that only fires once both
// operands are bound (spec.md §4.8): comparisons don't solve for an
// unknown operand, they only check.
func comparisonOp(name string, ok func(int) bool) func(a, b rexpr.Variable) rexpr.Node {
	return func(a, b rexpr.Variable) rexpr.Node {
		table := map[string]rexpr.ModedImpl{
			"11": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
				av, _ := v[0].Get(f)
				bv, _ := v[1].Get(f)
				if ok(cmp(av, bv)) {
					return nil, 1, true
				}
				return nil, 0, true
			},
		}
		return rexpr.NewModedOp(name, []rexpr.Variable{a, b}, table)
	}
}

var (
	// Lt constructs the moded `lt(A, B)` primitive: true iff A < B.
	Lt = comparisonOp("lt", func(c int) bool { return c < 0 })
	// Le constructs the moded `le(A, B)` primitive: true iff A <= B.
	Le = comparisonOp("le", func(c int) bool { return c <= 0 })
	// Gt constructs the moded `gt(A, B)` primitive: true iff A > B.
	Gt = comparisonOp("gt", func(c int) bool { return c > 0 })
	// Ge constructs the moded `ge(A, B)` primitive: true iff A >= B.
	Ge = comparisonOp("ge", func(c int) bool { return c >= 0 })
	// Eq constructs the moded `eq(A, B)` primitive: true iff A == B.
	Eq = comparisonOp("eq", func(c int) bool { return c == 0 })
	// Ne constructs the moded `ne(A, B)` primitive: true iff A != B.
	Ne = comparisonOp("ne", func(c int) bool { return c != 0 })
)
