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

// Package builtin supplies the moded arithmetic and comparison
// primitives an R-expression's ModedOp nodes dispatch to, grounded on
// expr/builtin.go and expr/math.go's constant-folding rules (spec.md
// §4.8).
package builtin

import (
	"github.com/dynacore/rexpr"
	"github.com/dynacore/rexpr/term"
)

func numAdd(a, b term.Value) term.Value {
	if ai, ok := a.Int(); ok {
		if bi, ok := b.Int(); ok {
			return term.Int(ai + bi)
		}
	}
	return term.Float(asFloat(a) + asFloat(b))
}

func numSub(a, b term.Value) term.Value {
	if ai, ok := a.Int(); ok {
		if bi, ok := b.Int(); ok {
			return term.Int(ai - bi)
		}
	}
	return term.Float(asFloat(a) - asFloat(b))
}

func numMul(a, b term.Value) term.Value {
	if ai, ok := a.Int(); ok {
		if bi, ok := b.Int(); ok {
			return term.Int(ai * bi)
		}
	}
	return term.Float(asFloat(a) * asFloat(b))
}

func asFloat(v term.Value) float64 {
	if i, ok := v.Int(); ok {
		return float64(i)
	}
	f, _ := v.Float()
	return f
}

func isZero(v term.Value) bool {
	if i, ok := v.Int(); ok {
		return i == 0
	}
	f, _ := v.Float()
	return f == 0
}

// Add constructs the moded `add(A, B, C)` primitive: C = A + B, with
// every single-unbound-slot mode solvable (spec.md §4.8, end-to-end
// scenario a).
func Add(a, b, c rexpr.Variable) rexpr.Node {
	table := map[string]rexpr.ModedImpl{
		"110": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			bv, _ := v[1].Get(f)
			return map[int]term.Value{2: numAdd(av, bv)}, 1, true
		},
		"101": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			cv, _ := v[2].Get(f)
			return map[int]term.Value{1: numSub(cv, av)}, 1, true
		},
		"011": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			bv, _ := v[1].Get(f)
			cv, _ := v[2].Get(f)
			return map[int]term.Value{0: numSub(cv, bv)}, 1, true
		},
		"111": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			bv, _ := v[1].Get(f)
			cv, _ := v[2].Get(f)
			if numAdd(av, bv).Equals(cv) {
				return nil, 1, true
			}
			return nil, 0, true
		},
	}
	return rexpr.NewModedOp("add", []rexpr.Variable{a, b, c}, table)
}

// Sub constructs the moded `sub(A, B, C)` primitive: C = A - B.
func Sub(a, b, c rexpr.Variable) rexpr.Node {
	table := map[string]rexpr.ModedImpl{
		"110": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			bv, _ := v[1].Get(f)
			return map[int]term.Value{2: numSub(av, bv)}, 1, true
		},
		"101": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			cv, _ := v[2].Get(f)
			return map[int]term.Value{1: numSub(av, cv)}, 1, true
		},
		"011": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			bv, _ := v[1].Get(f)
			cv, _ := v[2].Get(f)
			return map[int]term.Value{0: numAdd(cv, bv)}, 1, true
		},
		"111": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			bv, _ := v[1].Get(f)
			cv, _ := v[2].Get(f)
			if numSub(av, bv).Equals(cv) {
				return nil, 1, true
			}
			return nil, 0, true
		},
	}
	return rexpr.NewModedOp("sub", []rexpr.Variable{a, b, c}, table)
}

// Mul constructs the moded `mul(A, B, C)` primitive: C = A * B. The
// inverse modes ("101", "011") report no solution (Terminal(0)) when
// the known factor is zero, since the missing factor is then
// unconstrained rather than computable.
func Mul(a, b, c rexpr.Variable) rexpr.Node {
	table := map[string]rexpr.ModedImpl{
		"110": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			bv, _ := v[1].Get(f)
			return map[int]term.Value{2: numMul(av, bv)}, 1, true
		},
		"101": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			if isZero(av) {
				return nil, 0, false
			}
			cv, _ := v[2].Get(f)
			return map[int]term.Value{1: term.Float(asFloat(cv) / asFloat(av))}, 1, true
		},
		"011": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			bv, _ := v[1].Get(f)
			if isZero(bv) {
				return nil, 0, false
			}
			cv, _ := v[2].Get(f)
			return map[int]term.Value{0: term.Float(asFloat(cv) / asFloat(bv))}, 1, true
		},
		"111": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			bv, _ := v[1].Get(f)
			cv, _ := v[2].Get(f)
			if numMul(av, bv).Equals(cv) {
				return nil, 1, true
			}
			return nil, 0, true
		},
	}
	return rexpr.NewModedOp("mul", []rexpr.Variable{a, b, c}, table)
}

// Div constructs the moded `div(A, B, C)` primitive: C = A / B
// (float division; a zero divisor reports no solution, Terminal(0),
// rather than dividing by zero).
func Div(a, b, c rexpr.Variable) rexpr.Node {
	table := map[string]rexpr.ModedImpl{
		"110": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			bv, _ := v[1].Get(f)
			if isZero(bv) {
				return nil, 0, false
			}
			return map[int]term.Value{2: term.Float(asFloat(av) / asFloat(bv))}, 1, true
		},
		"101": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			cv, _ := v[2].Get(f)
			if isZero(cv) {
				return nil, 0, false
			}
			return map[int]term.Value{1: term.Float(asFloat(av) / asFloat(cv))}, 1, true
		},
		"011": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			bv, _ := v[1].Get(f)
			cv, _ := v[2].Get(f)
			return map[int]term.Value{0: term.Float(asFloat(cv) * asFloat(bv))}, 1, true
		},
		"111": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			bv, _ := v[1].Get(f)
			cv, _ := v[2].Get(f)
			if isZero(bv) {
				return nil, 0, false
			}
			if term.Float(asFloat(av)/asFloat(bv)).Equals(cv) {
				return nil, 1, true
			}
			return nil, 0, true
		},
	}
	return rexpr.NewModedOp("div", []rexpr.Variable{a, b, c}, table)
}

// Neg constructs the moded `neg(A, B)` primitive: B = -A.
func Neg(a, b rexpr.Variable) rexpr.Node {
	table := map[string]rexpr.ModedImpl{
		"10": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			return map[int]term.Value{1: numSub(term.Int(0), av)}, 1, true
		},
		"01": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			bv, _ := v[1].Get(f)
			return map[int]term.Value{0: numSub(term.Int(0), bv)}, 1, true
		},
		"11": func(f *rexpr.Frame, v []rexpr.Variable) (map[int]term.Value, int64, bool) {
			av, _ := v[0].Get(f)
			bv, _ := v[1].Get(f)
			if numSub(term.Int(0), av).Equals(bv) {
				return nil, 1, true
			}
			return nil, 0, true
		},
	}
	return rexpr.NewModedOp("neg", []rexpr.Variable{a, b}, table)
}
