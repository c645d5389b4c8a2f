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

// Command rexprsh is a small driver for exercising a system.Context
// outside of tests: it wires together the add, range-sum, and fib
// scenarios from spec.md §8's end-to-end list and runs whichever one
// is named on the command line.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dynacore/rexpr"
	"github.com/dynacore/rexpr/builtin"
	"github.com/dynacore/rexpr/system"
	"github.com/dynacore/rexpr/term"
)

func main() {
	maxDepth := flag.Int("max-call-depth", 4096, "recursion-blocker depth limit")
	scenario := flag.String("scenario", "add", "one of: add, rangesum, fib")
	a := flag.Int64("a", 7, "first argument")
	b := flag.Int64("b", 8, "second argument (ignored by fib)")
	flag.Parse()

	ctx := system.NewContext(system.WithMaxCallDepth(*maxDepth))

	switch *scenario {
	case "add":
		runAdd(ctx, *a, *b)
	case "rangesum":
		defineRangeSum(ctx)
		runRangeSum(ctx, *a, *b)
	case "fib":
		defineFib(ctx)
		runFib(ctx, *a)
	default:
		log.Fatalf("unknown scenario %q", *scenario)
	}
}

// runAdd mirrors spec.md §8 scenario (a): add(7, 8) -> 15.
func runAdd(ctx *system.Context, a, b int64) {
	av, bv, cv := rexpr.NewNamed("A"), rexpr.NewNamed("B"), rexpr.NewNamed("C")
	body := builtin.Add(av, bv, cv)
	f := rexpr.NewFrame()
	must(av.Set(f, term.Int(a)))
	must(bv.Set(f, term.Int(b)))
	result := rexpr.Saturate(body, f)
	report(cv, f, result)
}

// defineRangeSum installs `rangesum(Lo, Hi) += R for R in [Lo, Hi)`
// (spec.md §8 scenario b), expressed as a recursive relation: the sum
// over [Lo, Hi) is Lo + rangesum(Lo+1, Hi) when Lo < Hi, else 0.
func defineRangeSum(ctx *system.Context) {
	lo, hi, ret := rexpr.NewNamed("Lo"), rexpr.NewNamed("Hi"), rexpr.NewNamed("Ret")
	nextLo := rexpr.NewNamed("nextLo")
	tailRet := rexpr.NewNamed("tailRet")

	recurse := rexpr.NewIntersect(
		builtin.Lt(lo, hi),
		builtin.Add(lo, rexpr.NewConstant(term.Int(1)), nextLo),
		ctx.CallTerm("rangesum", 2, tailRet, []rexpr.Variable{nextLo, hi}),
		builtin.Add(lo, tailRet, ret),
	)
	base := rexpr.NewIntersect(
		builtin.Ge(lo, hi),
		rexpr.NewUnify(ret, rexpr.NewConstant(term.Int(0))),
	)
	body := rexpr.NewPartition(nil, []rexpr.PartitionRow{
		{Key: nil, Body: recurse},
		{Key: nil, Body: base},
	})
	must(ctx.DefineTerm("rangesum", 2, body, ret, []rexpr.Variable{lo, hi}))
}

func runRangeSum(ctx *system.Context, lo, hi int64) {
	ret := rexpr.NewNamed("Ret")
	call := ctx.CallTerm("rangesum", 2, ret, []rexpr.Variable{
		rexpr.NewConstant(term.Int(lo)),
		rexpr.NewConstant(term.Int(hi)),
	})
	f := rexpr.NewFrame()
	result := rexpr.Saturate(call, f)
	report(ret, f, result)
}

// defineFib installs `fib(N) = R` via the naive recursive definition
// fib(0)=0, fib(1)=1, fib(N)=fib(N-1)+fib(N-2) (spec.md §8 scenario e).
// The -a flag controls which N is actually run; fib(40) as named in
// the scenario text is impractical here since this relation carries
// no memoisation (each recursive Call re-simplifies fib(N-1) and
// fib(N-2) from scratch), making the naive double-recursion
// exponential in N.
func defineFib(ctx *system.Context) {
	n, ret := rexpr.NewNamed("N"), rexpr.NewNamed("Ret")
	nMinus1, nMinus2 := rexpr.NewNamed("nMinus1"), rexpr.NewNamed("nMinus2")
	r1, r2 := rexpr.NewNamed("r1"), rexpr.NewNamed("r2")

	baseZero := rexpr.NewIntersect(rexpr.NewUnify(n, rexpr.NewConstant(term.Int(0))), rexpr.NewUnify(ret, rexpr.NewConstant(term.Int(0))))
	baseOne := rexpr.NewIntersect(rexpr.NewUnify(n, rexpr.NewConstant(term.Int(1))), rexpr.NewUnify(ret, rexpr.NewConstant(term.Int(1))))
	recurse := rexpr.NewIntersect(
		builtin.Ge(n, rexpr.NewConstant(term.Int(2))),
		builtin.Sub(n, rexpr.NewConstant(term.Int(1)), nMinus1),
		builtin.Sub(n, rexpr.NewConstant(term.Int(2)), nMinus2),
		ctx.CallTerm("fib", 1, r1, []rexpr.Variable{nMinus1}),
		ctx.CallTerm("fib", 1, r2, []rexpr.Variable{nMinus2}),
		builtin.Add(r1, r2, ret),
	)
	body := rexpr.NewPartition(nil, []rexpr.PartitionRow{
		{Key: nil, Body: baseZero},
		{Key: nil, Body: baseOne},
		{Key: nil, Body: recurse},
	})
	must(ctx.DefineTerm("fib", 1, body, ret, []rexpr.Variable{n}))
}

func runFib(ctx *system.Context, n int64) {
	ret := rexpr.NewNamed("Ret")
	call := ctx.CallTerm("fib", 1, ret, []rexpr.Variable{rexpr.NewConstant(term.Int(n))})
	f := rexpr.NewFrame()
	result := rexpr.Saturate(call, f)
	report(ret, f, result)
}

func report(ret rexpr.Variable, f *rexpr.Frame, result rexpr.Node) {
	if t, ok := result.(*rexpr.Terminal); ok {
		if t.N == 0 {
			fmt.Println("no solution")
			return
		}
		v, _ := ret.Get(f)
		fmt.Printf("Return = %s (multiplicity %d)\n", v, t.N)
		return
	}
	fmt.Printf("incomplete computation, residue: %s\n", result)
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
