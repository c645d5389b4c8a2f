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
	"fmt"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/dynacore/rexpr/term"
)

// ordMax and ordMin are the generic comparisons `max=`/`min=` fold
// over once values have been coerced to a common numeric type,
// grounded on the teacher's numeric-aggregate families in
// vm/aggregate.go being keyed by op over a constrained numeric kind
// (SPEC_FULL.md DOMAIN STACK).
func ordMax[T constraints.Ordered](a, b T) T {
	if b > a {
		return b
	}
	return a
}

func ordMin[T constraints.Ordered](a, b T) T {
	if b < a {
		return b
	}
	return a
}

// AggOp is the lift/combine/combine_multiplicity/lower protocol of
// spec.md §4.5. Combine folds one contributor's value into the
// running accumulator; CombineMultiplicity folds mult identical
// copies at once (an optimization over calling Combine mult times,
// required for the `:-`/`|=` saturation short-circuit and for `*=`
// over a large multiplicity). Lower turns the final accumulator into
// the bound result value; seen=false means no contributor was ever
// folded in (the aggregation is empty).
type AggOp interface {
	Name() string
	Lift(v term.Value) term.Value
	// Unit is the accumulator's starting value before any contributor
	// has been folded in. CombineMultiplicity is always called against
	// it, even for the first contributor, so saturating ops (boolOp)
	// never need a separate first-contributor code path.
	Unit() term.Value
	Combine(acc term.Value, v term.Value) (term.Value, error)
	CombineMultiplicity(acc term.Value, v term.Value, mult int64) (next term.Value, saturated bool, err error)
	Lower(acc term.Value, seen bool) (term.Value, error)
}

type aggErr struct{ msg string }

func (e *aggErr) Error() string { return e.msg }

// unsetMarker is equalsOp's and lastWinsOp's Unit: a sentinel distinct
// from every real term.Value, so CombineMultiplicity can tell "nothing
// folded in yet" from "a real value equal to this one was folded in".
type unsetMarker struct{}

func (unsetMarker) OpaqueEqual(o term.Opaque) bool { _, ok := o.(unsetMarker); return ok }
func (unsetMarker) OpaqueHash() uint64              { return 0x756e736574 }

var unsetValue = term.FromOpaque(unsetMarker{})

// equalsOp is `=`: every contributor must agree on the same value
// (spec.md §4.5 table, §9 resolved: agreeing contributors are not an
// error, only disagreement is).
type equalsOp struct{}

func (equalsOp) Name() string                  { return "=" }
func (equalsOp) Lift(v term.Value) term.Value  { return v }
func (equalsOp) Unit() term.Value              { return unsetValue }
func (equalsOp) Combine(acc, v term.Value) (term.Value, error) {
	if acc.Equals(unsetValue) {
		return v, nil
	}
	if !acc.Equals(v) {
		return term.Value{}, &aggErr{fmt.Sprintf("= aggregator: conflicting contributions %s and %s", acc, v)}
	}
	return acc, nil
}
func (o equalsOp) CombineMultiplicity(acc, v term.Value, mult int64) (term.Value, bool, error) {
	next, err := o.Combine(acc, v)
	return next, false, err
}
func (equalsOp) Lower(acc term.Value, seen bool) (term.Value, error) {
	if !seen {
		return term.Value{}, &aggErr{"= aggregator: no contributors"}
	}
	return acc, nil
}

// numericOp implements the four arithmetic folds `+=`, `*=`, `max=`,
// `min=` (spec.md §4.5 table) over int/float values, promoting to
// float if either operand is float.
type numericOp struct {
	name string
	fold func(a, b term.Value) term.Value
	unit term.Value
}

func (n numericOp) Name() string                { return n.name }
func (n numericOp) Lift(v term.Value) term.Value { return v }
func (n numericOp) Unit() term.Value             { return n.unit }
func (n numericOp) Combine(acc, v term.Value) (term.Value, error) {
	return n.fold(acc, v), nil
}
func (n numericOp) CombineMultiplicity(acc, v term.Value, mult int64) (term.Value, bool, error) {
	if n.name == "+=" {
		scaled := scaleNumeric(v, mult)
		return n.fold(acc, scaled), false, nil
	}
	if n.name == "*=" {
		scaled := powNumeric(v, mult)
		return n.fold(acc, scaled), false, nil
	}
	// max=/min= are idempotent under repetition.
	return n.fold(acc, v), false, nil
}
func (n numericOp) Lower(acc term.Value, seen bool) (term.Value, error) {
	if !seen {
		return n.unit, nil
	}
	return acc, nil
}

func scaleNumeric(v term.Value, mult int64) term.Value {
	if i, ok := v.Int(); ok {
		return term.Int(i * mult)
	}
	if fv, ok := v.Float(); ok {
		return term.Float(fv * float64(mult))
	}
	return v
}

func powNumeric(v term.Value, mult int64) term.Value {
	if i, ok := v.Int(); ok {
		r := int64(1)
		for k := int64(0); k < mult; k++ {
			r *= i
		}
		return term.Int(r)
	}
	if fv, ok := v.Float(); ok {
		r := 1.0
		for k := int64(0); k < mult; k++ {
			r *= fv
		}
		return term.Float(r)
	}
	return v
}

func addFold(a, b term.Value) term.Value {
	if ai, aok := a.Int(); aok {
		if bi, bok := b.Int(); bok {
			return term.Int(ai + bi)
		}
	}
	return term.Float(numOf(a) + numOf(b))
}

func mulFold(a, b term.Value) term.Value {
	if ai, aok := a.Int(); aok {
		if bi, bok := b.Int(); bok {
			return term.Int(ai * bi)
		}
	}
	return term.Float(numOf(a) * numOf(b))
}

func maxFold(a, b term.Value) term.Value {
	if ai, aok := a.Int(); aok {
		if bi, bok := b.Int(); bok {
			if ordMax(ai, bi) == bi {
				return b
			}
			return a
		}
	}
	if ordMax(numOf(a), numOf(b)) == numOf(b) {
		return b
	}
	return a
}

func minFold(a, b term.Value) term.Value {
	if ai, aok := a.Int(); aok {
		if bi, bok := b.Int(); bok {
			if ordMin(ai, bi) == bi {
				return b
			}
			return a
		}
	}
	if ordMin(numOf(a), numOf(b)) == numOf(b) {
		return b
	}
	return a
}

func numOf(v term.Value) float64 {
	if i, ok := v.Int(); ok {
		return float64(i)
	}
	f, _ := v.Float()
	return f
}

// boolOp implements the saturating boolean folds `:-`/`|=` (logical
// or, short-circuits on the first truthy contributor) and `&=`
// (logical and, short-circuits on the first falsy contributor),
// spec.md §4.5 table and §9 Open Question 1 (truthiness coercion).
type boolOp struct {
	name      string
	satisfied func(bool) bool // whether this truth value short-circuits
	combine   func(a, b bool) bool
	unit      bool
}

func (b boolOp) Name() string                  { return b.name }
func (b boolOp) Lift(v term.Value) term.Value  { return term.Bool(v.Truthy()) }
func (b boolOp) Unit() term.Value              { return term.Bool(b.unit) }
func (b boolOp) Combine(acc, v term.Value) (term.Value, error) {
	av, _ := acc.Bool()
	bv, _ := v.Bool()
	return term.Bool(b.combine(av, bv)), nil
}
func (b boolOp) CombineMultiplicity(acc, v term.Value, mult int64) (term.Value, bool, error) {
	if mult == 0 {
		return acc, false, nil
	}
	bv, _ := v.Bool()
	if b.satisfied(bv) {
		return term.Bool(bv), true, nil
	}
	next, err := b.Combine(acc, v)
	return next, false, err
}
func (b boolOp) Lower(acc term.Value, seen bool) (term.Value, error) {
	if !seen {
		return term.Bool(b.unit), nil
	}
	return acc, nil
}

// lastWinsOp implements `:=`: the last contributor combined wins, in
// the order simplifyAggregator walks the body's rows. Contributors
// carry no source-line tag, so that enumeration order is the only
// thing that decides the winner, and a $null contributor is combined
// like any other value (Open Question 3 in SPEC_FULL.md).
type lastWinsOp struct{}

func (lastWinsOp) Name() string                 { return ":=" }
func (lastWinsOp) Lift(v term.Value) term.Value { return v }
func (lastWinsOp) Unit() term.Value             { return unsetValue }
func (lastWinsOp) Combine(acc, v term.Value) (term.Value, error) { return v, nil }
func (o lastWinsOp) CombineMultiplicity(acc, v term.Value, mult int64) (term.Value, bool, error) {
	return v, false, nil
}
func (lastWinsOp) Lower(acc term.Value, seen bool) (term.Value, error) {
	if !seen {
		return term.Value{}, &aggErr{":= aggregator: no contributors"}
	}
	return acc, nil
}

// countOp is the supplemental `count=` aggregator (SPEC_FULL.md §4.5
// supplement): counts contributors, respecting multiplicity.
type countOp struct{}

func (countOp) Name() string                { return "count=" }
func (countOp) Lift(term.Value) term.Value  { return term.Int(1) }
func (countOp) Unit() term.Value            { return term.Int(0) }
func (countOp) Combine(acc, v term.Value) (term.Value, error) {
	ai, _ := acc.Int()
	return term.Int(ai + 1), nil
}
func (o countOp) CombineMultiplicity(acc, v term.Value, mult int64) (term.Value, bool, error) {
	ai, _ := acc.Int()
	return term.Int(ai + mult), false, nil
}
func (countOp) Lower(acc term.Value, seen bool) (term.Value, error) {
	if !seen {
		return term.Int(0), nil
	}
	return acc, nil
}

// listOp is the supplemental `list=` aggregator (SPEC_FULL.md §4.5
// supplement): collects every contributor into a cons-list, in
// enumeration order, each repeated per its multiplicity.
type listOp struct{}

func (listOp) Name() string                 { return "list=" }
func (listOp) Lift(v term.Value) term.Value { return v }
func (listOp) Unit() term.Value             { return term.Nil() }
func (listOp) Combine(acc, v term.Value) (term.Value, error) {
	items, _ := term.SliceFromList(acc)
	return term.ListFromSlice(append(items, v)), nil
}
func (o listOp) CombineMultiplicity(acc, v term.Value, mult int64) (term.Value, bool, error) {
	items, _ := term.SliceFromList(acc)
	for k := int64(0); k < mult; k++ {
		items = append(items, v)
	}
	return term.ListFromSlice(items), false, nil
}
func (listOp) Lower(acc term.Value, seen bool) (term.Value, error) {
	if !seen {
		return term.Nil(), nil
	}
	return acc, nil
}

// Built-in aggregator operators (spec.md §4.5 table, plus the
// count=/list= supplement).
var (
	OpEquals  AggOp = equalsOp{}
	OpSum     AggOp = numericOp{name: "+=", fold: addFold, unit: term.Int(0)}
	OpProduct AggOp = numericOp{name: "*=", fold: mulFold, unit: term.Int(1)}
	OpMax     AggOp = numericOp{name: "max=", fold: maxFold, unit: term.Float(math.Inf(-1))}
	OpMin     AggOp = numericOp{name: "min=", fold: minFold, unit: term.Float(math.Inf(1))}
	OpOr      AggOp = boolOp{name: "|=", satisfied: func(b bool) bool { return b }, combine: func(a, b bool) bool { return a || b }, unit: false}
	OpAnd     AggOp = boolOp{name: "&=", satisfied: func(b bool) bool { return !b }, combine: func(a, b bool) bool { return a && b }, unit: true}
	OpLast    AggOp = lastWinsOp{}
	OpCount   AggOp = countOp{}
	OpList    AggOp = listOp{}
)

// simplifyAggregator implements the Aggregator rewrite of spec.md
// §4.5: enumerate the body's partition branches, each under its own
// frame clone so one contributor's bindings (in particular BodyRes)
// never leak into another, fold each branch's BodyRes value (scaled
// by that branch's multiplicity) into the running accumulator
// through Op, and bind Result once enumeration completes or Op
// signals saturation. Branches must be walked on independent clones
// rather than through the shared-frame generic Partition rewrite,
// since that rewrite is free to collapse a row to a bare Terminal and
// discard the very bindings aggregation needs to read (spec.md §4.7's
// copy-on-branch discipline, applied here rather than deferred to a
// prior generic simplify pass).
func simplifyAggregator(x *Aggregator, f *Frame) Node {
	for _, hv := range x.HeadVars {
		if !hv.IsBound(f) {
			return x // delay until the grouping key is known
		}
	}

	acc := x.Op.Unit()
	seen := false
	complete := true
	var foldErr error

	// fold absorbs one branch's terminal multiplicity t into the
	// running accumulator, returning true if Op asked to stop (spec.md
	// §4.5's saturation short-circuit, e.g. `|=` hitting a true
	// contributor). CombineMultiplicity always runs against acc, even
	// for the very first contributor, so a saturating op never misses
	// the check and a conflicting op (`=`) never gets silently ignored.
	fold := func(t *Terminal, branch *Frame) bool {
		if t.N == 0 {
			return false
		}
		v, ok := x.BodyRes.Get(branch)
		if !ok {
			return false
		}
		seen = true
		lifted := x.Op.Lift(v)
		next, stop, err := x.Op.CombineMultiplicity(acc, lifted, t.N)
		if err != nil {
			foldErr = err
			return true
		}
		acc = next
		return stop
	}

	// enumerate walks n under branch, recursing into nested partitions
	// and folding every terminal leaf it reaches. Unlike the generic
	// Partition rewrite in simplifyPartition, a Partition's rows are
	// never saturated against a frame shared with their siblings: each
	// row gets its own clone of branch, so one contributor's bindings
	// (in particular BodyRes) can never leak into the next. It marks
	// complete=false if it meets a residue it cannot reduce, which
	// makes the Aggregator as a whole stay a residue.
	var enumerate func(n Node, branch *Frame) bool // returns true to stop entirely
	enumerate = func(n Node, branch *Frame) bool {
		if p, ok := n.(*Partition); ok {
			for _, row := range p.Rows {
				sub := branch.Clone()
				ok := true
				for i, col := range p.Cols {
					slot := row.Key[i]
					if !slot.Ground {
						continue
					}
					if col.IsBound(sub) {
						cur, _ := col.Get(sub)
						if !cur.Equals(slot.Value) {
							ok = false
							break
						}
						continue
					}
					if err := col.Set(sub, slot.Value); err != nil {
						ok = false
						break
					}
				}
				if !ok {
					continue
				}
				if enumerate(row.Body, sub) {
					return true
				}
			}
			return false
		}
		satd := Saturate(n, branch)
		switch b := satd.(type) {
		case *Terminal:
			return fold(b, branch)
		case *Partition:
			return enumerate(b, branch)
		default:
			complete = false
			return false
		}
	}

	enumerate(x.Body, f.Clone())
	if foldErr != nil {
		// A combine conflict (e.g. `=` seeing two distinct contributors)
		// is an error-typed value, not an empty aggregation: spec.md
		// §4.5 table ("= | error term"), §5 ("yields an $error term,
		// not an exception"), §9 (distinct contributors are an error).
		// Terminal(0) would be indistinguishable from a relation with no
		// contributors at all, so this must stay an Error node instead.
		return NewError(foldErr.Error())
	}
	if !complete {
		return x
	}

	result, err := x.Op.Lower(acc, seen)
	if err != nil {
		return Zero
	}
	if err := x.Result.Set(f, result); err != nil {
		return Zero
	}
	return One
}
