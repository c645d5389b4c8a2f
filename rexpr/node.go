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

// Package rexpr implements the R-expression algebra: the tagged-variant
// tree that a query (an R-expression plus a frame) is simplified
// against, along with the visitor dispatch, partition/iterator
// machinery, aggregator protocol, and call-inlining discipline that
// drive that simplification to a terminal multiplicity or an
// irreducible residue.
package rexpr

import (
	"fmt"
	"strings"

	"github.com/dchest/siphash"
	"golang.org/x/exp/slices"

	"github.com/dynacore/rexpr/term"
)

// Node is an R-expression node (spec.md §3.3). It is a closed sum
// type: the unexported sentinel method restricts implementers to
// this package, the same way expr.Node's unexported walk method
// seals the teacher's AST interface.
type Node interface {
	fmt.Stringer
	rexprNode()
	// Equals reports structural equality with another node.
	Equals(Node) bool
	// Hash returns a structural hash, recomputed on each call.
	Hash() uint64
}

// System is the boundary a Call/Evaluate node uses to resolve a
// relation name/arity to its current definition (spec.md §4.6, §6).
// It is declared here (the consumer) and implemented by package
// system, avoiding an import cycle the way expr.Hint is declared in
// expr but implemented by callers such as plan/pir.Trace.
type System interface {
	LookupTerm(name string, arity int) *AssumptionWrapper
	// MaxCallDepth bounds how many nested Call inlinings the recursion
	// guard permits before reporting a recursion-limit error instead of
	// inlining further (spec.md §5, §7).
	MaxCallDepth() int
}

// ---- Terminal ----

// Terminal is a leaf contributing a multiplicity n to aggregation;
// n=0 is empty (absorbing for intersection), n=1 is the unit
// (spec.md §3.3).
type Terminal struct {
	N int64
}

func (*Terminal) rexprNode() {}

func NewTerminal(n int64) *Terminal { return &Terminal{N: n} }

// Zero and One are the two multiplicities used throughout the
// algebra; sharing them keeps equality checks cheap, the way the
// teacher shares small Builtin constant nodes.
var (
	Zero = &Terminal{N: 0}
	One  = &Terminal{N: 1}
)

func term0(n int64) *Terminal {
	switch n {
	case 0:
		return Zero
	case 1:
		return One
	default:
		return &Terminal{N: n}
	}
}

func (t *Terminal) Empty() bool { return t.N == 0 }

func (t *Terminal) Equals(o Node) bool {
	u, ok := o.(*Terminal)
	return ok && u.N == t.N
}

func (t *Terminal) Hash() uint64 {
	return siphash.Hash(tagTerminal, uint64(t.N), nil)
}

func (t *Terminal) String() string { return fmt.Sprintf("Terminal(%d)", t.N) }

// ---- Error ----

// Error is a semantic error leaf: empty like Terminal(0) until
// disproved, but preserved rather than discarded (spec.md §3.3).
type Error struct {
	Msg string
}

func (*Error) rexprNode() {}

func NewError(msg string) *Error { return &Error{Msg: msg} }

func (e *Error) Equals(o Node) bool {
	u, ok := o.(*Error)
	return ok && u.Msg == e.Msg
}

func (e *Error) Hash() uint64 {
	return siphash.Hash(tagError, 0, []byte(e.Msg))
}

func (e *Error) String() string { return fmt.Sprintf("Error(%q)", e.Msg) }

// ---- Intersect ----

// Intersect is logical AND: its value is the product of its
// children's multiplicities, empty if any child is empty
// (spec.md §3.3).
type Intersect struct {
	Children []Node
}

func (*Intersect) rexprNode() {}

// NewIntersect is the intersect(...) smart constructor (spec.md §4.3):
// it multiplies Terminals together, short-circuits to Zero if any
// Terminal is empty, drops Terminal(1) children, and flattens to a
// bare child when only one remains.
func NewIntersect(children ...Node) Node {
	var kept []Node
	mult := int64(1)
	for _, c := range children {
		if t, ok := c.(*Terminal); ok {
			if t.N == 0 {
				return Zero
			}
			mult *= t.N
			continue
		}
		if ic, ok := c.(*Intersect); ok {
			kept = append(kept, ic.Children...)
			continue
		}
		kept = append(kept, c)
	}
	if mult != 1 {
		kept = append(kept, term0(mult))
	}
	switch len(kept) {
	case 0:
		return One
	case 1:
		return kept[0]
	default:
		return &Intersect{Children: kept}
	}
}

func (i *Intersect) Equals(o Node) bool {
	u, ok := o.(*Intersect)
	if !ok || len(u.Children) != len(i.Children) {
		return false
	}
	for k := range i.Children {
		if !i.Children[k].Equals(u.Children[k]) {
			return false
		}
	}
	return true
}

func (i *Intersect) Hash() uint64 {
	h := uint64(tagIntersect)
	for _, c := range i.Children {
		h = mixHash(h, c.Hash())
	}
	return h
}

func (i *Intersect) String() string {
	parts := make([]string, len(i.Children))
	for k, c := range i.Children {
		parts[k] = c.String()
	}
	return "Intersect(" + strings.Join(parts, ", ") + ")"
}

// ---- Unify ----

// Unify is the equality constraint a == b (spec.md §3.3).
type Unify struct {
	A, B Variable
}

func (*Unify) rexprNode() {}

// NewUnify is the unify(a,b) smart constructor: syntactically equal
// variables collapse to One, two constants compare immediately
// (spec.md §4.3).
func NewUnify(a, b Variable) Node {
	if a.Equals(b) {
		return One
	}
	if a.Kind == Constant && b.Kind == Constant {
		va, _ := a.Get(nil)
		vb, _ := b.Get(nil)
		if va.Equals(vb) {
			return One
		}
		return Zero
	}
	return &Unify{A: a, B: b}
}

func (u *Unify) Equals(o Node) bool {
	v, ok := o.(*Unify)
	return ok && u.A.Equals(v.A) && u.B.Equals(v.B)
}

func (u *Unify) Hash() uint64 {
	return mixHash(mixHash(tagUnify, hashVar(u.A)), hashVar(u.B))
}

func (u *Unify) String() string { return fmt.Sprintf("Unify(%s, %s)", u.A, u.B) }

// ---- BuildStructure ----

// BuildStructure is the bidirectional constraint result = name(args...)
// (spec.md §3.3).
type BuildStructure struct {
	Name   string
	Result Variable
	Args   []Variable
}

func (*BuildStructure) rexprNode() {}

func NewBuildStructure(name string, result Variable, args ...Variable) *BuildStructure {
	return &BuildStructure{Name: name, Result: result, Args: append([]Variable(nil), args...)}
}

func (b *BuildStructure) Equals(o Node) bool {
	u, ok := o.(*BuildStructure)
	if !ok || u.Name != b.Name || !u.Result.Equals(b.Result) || len(u.Args) != len(b.Args) {
		return false
	}
	for i := range b.Args {
		if !b.Args[i].Equals(u.Args[i]) {
			return false
		}
	}
	return true
}

func (b *BuildStructure) Hash() uint64 {
	h := mixHash(siphash.Hash(tagBuildStructure, 0, []byte(b.Name)), hashVar(b.Result))
	for _, a := range b.Args {
		h = mixHash(h, hashVar(a))
	}
	return h
}

func (b *BuildStructure) String() string {
	parts := make([]string, len(b.Args))
	for i, a := range b.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("BuildStructure(%s, %s, [%s])", b.Name, b.Result, strings.Join(parts, ", "))
}

// ---- ReflectStructure ----

// ReflectStructure exposes a term's constructor name, arity, and
// argument list as logical variables (spec.md §3.3).
type ReflectStructure struct {
	Result   Variable
	NameVar  Variable
	ArityVar Variable
	ListVar  Variable
}

func (*ReflectStructure) rexprNode() {}

func NewReflectStructure(result, nameVar, arityVar, listVar Variable) *ReflectStructure {
	return &ReflectStructure{Result: result, NameVar: nameVar, ArityVar: arityVar, ListVar: listVar}
}

func (r *ReflectStructure) Equals(o Node) bool {
	u, ok := o.(*ReflectStructure)
	return ok && u.Result.Equals(r.Result) && u.NameVar.Equals(r.NameVar) &&
		u.ArityVar.Equals(r.ArityVar) && u.ListVar.Equals(r.ListVar)
}

func (r *ReflectStructure) Hash() uint64 {
	h := uint64(tagReflectStructure)
	for _, v := range []Variable{r.Result, r.NameVar, r.ArityVar, r.ListVar} {
		h = mixHash(h, hashVar(v))
	}
	return h
}

func (r *ReflectStructure) String() string {
	return fmt.Sprintf("ReflectStructure(%s, %s, %s, %s)", r.Result, r.NameVar, r.ArityVar, r.ListVar)
}

// ---- Evaluate ----

// Evaluate rewrites a ground term name(args...) into a Call on that
// name/arity (spec.md §3.3).
type Evaluate struct {
	Ret     Variable
	TermVar Variable
	System  System
}

func (*Evaluate) rexprNode() {}

func NewEvaluate(ret, termVar Variable, sys System) *Evaluate {
	return &Evaluate{Ret: ret, TermVar: termVar, System: sys}
}

func (e *Evaluate) Equals(o Node) bool {
	u, ok := o.(*Evaluate)
	return ok && u.Ret.Equals(e.Ret) && u.TermVar.Equals(e.TermVar)
}

func (e *Evaluate) Hash() uint64 {
	return mixHash(mixHash(tagEvaluate, hashVar(e.Ret)), hashVar(e.TermVar))
}

func (e *Evaluate) String() string { return fmt.Sprintf("Evaluate(%s, %s)", e.Ret, e.TermVar) }

// ---- Aggregator ----

// Aggregator combines the body-result values produced for each
// distinct binding of head-vars under op, binding the combined value
// to result (spec.md §3.3, §4.5).
type Aggregator struct {
	Result   Variable
	HeadVars []Variable
	BodyRes  Variable
	Op       AggOp
	Body     Node
}

func (*Aggregator) rexprNode() {}

func NewAggregator(result Variable, headVars []Variable, bodyRes Variable, op AggOp, body Node) *Aggregator {
	return &Aggregator{Result: result, HeadVars: append([]Variable(nil), headVars...), BodyRes: bodyRes, Op: op, Body: body}
}

func (a *Aggregator) Equals(o Node) bool {
	u, ok := o.(*Aggregator)
	if !ok || u.Op.Name() != a.Op.Name() || !u.Result.Equals(a.Result) || !u.BodyRes.Equals(a.BodyRes) ||
		len(u.HeadVars) != len(a.HeadVars) || !u.Body.Equals(a.Body) {
		return false
	}
	for i := range a.HeadVars {
		if !a.HeadVars[i].Equals(u.HeadVars[i]) {
			return false
		}
	}
	return true
}

func (a *Aggregator) Hash() uint64 {
	h := mixHash(siphash.Hash(tagAggregator, 0, []byte(a.Op.Name())), hashVar(a.Result))
	h = mixHash(h, hashVar(a.BodyRes))
	for _, v := range a.HeadVars {
		h = mixHash(h, hashVar(v))
	}
	return mixHash(h, a.Body.Hash())
}

func (a *Aggregator) String() string {
	parts := make([]string, len(a.HeadVars))
	for i, v := range a.HeadVars {
		parts[i] = v.String()
	}
	return fmt.Sprintf("Aggregator(%s %s= %s for [%s] <- %s)", a.Result, a.Op.Name(), a.BodyRes, strings.Join(parts, ", "), a.Body)
}

// ---- Call ----

// Call is a deferred named-relation invocation (spec.md §3.3, §4.6).
type Call struct {
	Ret    Variable
	Args   []Variable
	System System
	Name   string
	Arity  int

	// blocked holds the recursion-blocker entries (spec.md §4.6 step
	// 2) this call has been told about by an enclosing inlining pass;
	// it is populated by the call machinery, not by callers.
	blocked []CallKey
}

func (*Call) rexprNode() {}

func NewCall(ret Variable, args []Variable, sys System, name string, arity int) *Call {
	return &Call{Ret: ret, Args: append([]Variable(nil), args...), System: sys, Name: name, Arity: arity}
}

func (c *Call) Equals(o Node) bool {
	u, ok := o.(*Call)
	if !ok || u.Name != c.Name || u.Arity != c.Arity || !u.Ret.Equals(c.Ret) || len(u.Args) != len(c.Args) {
		return false
	}
	for i := range c.Args {
		if !c.Args[i].Equals(u.Args[i]) {
			return false
		}
	}
	return true
}

func (c *Call) Hash() uint64 {
	h := mixHash(siphash.Hash(tagCall, uint64(c.Arity), []byte(c.Name)), hashVar(c.Ret))
	for _, a := range c.Args {
		h = mixHash(h, hashVar(a))
	}
	return h
}

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("Call(%s/%d, [%s], -> %s)", c.Name, c.Arity, strings.Join(parts, ", "), c.Ret)
}

// ---- ModedOp ----

// ModedImpl runs a primitive's implementation given the current frame
// and its variables, returning the values newly computed for
// previously-unbound variables and the multiplicity of the result
// (spec.md §4.8).
type ModedImpl func(f *Frame, vars []Variable) (newValues map[int]term.Value, mult int64, ok bool)

// ModedOp is a primitive whose implementation is selected by which of
// its variables are currently bound (spec.md §3.3, §4.8).
type ModedOp struct {
	Name  string
	Vars  []Variable
	table map[string]ModedImpl
}

func (*ModedOp) rexprNode() {}

// NewModedOp constructs a moded operator over vars; table maps a
// bound-mask (see BoundMask.Key) to the implementation used for that
// mask.
func NewModedOp(name string, vars []Variable, table map[string]ModedImpl) *ModedOp {
	return &ModedOp{Name: name, Vars: append([]Variable(nil), vars...), table: table}
}

func (m *ModedOp) Equals(o Node) bool {
	u, ok := o.(*ModedOp)
	if !ok || u.Name != m.Name || len(u.Vars) != len(m.Vars) {
		return false
	}
	for i := range m.Vars {
		if !m.Vars[i].Equals(u.Vars[i]) {
			return false
		}
	}
	return true
}

func (m *ModedOp) Hash() uint64 {
	h := siphash.Hash(tagModedOp, 0, []byte(m.Name))
	for _, v := range m.Vars {
		h = mixHash(h, hashVar(v))
	}
	return h
}

func (m *ModedOp) String() string {
	parts := make([]string, len(m.Vars))
	for i, v := range m.Vars {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s(%s)", m.Name, strings.Join(parts, ", "))
}

// BoundMask is the bound/unbound mask of a ModedOp's variables.
type BoundMask []bool

// Key returns a stable map key for mask, e.g. "bu b" style compacted
// to "101".
func (m BoundMask) Key() string {
	var b strings.Builder
	for _, bit := range m {
		if bit {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func maskOf(f *Frame, vars []Variable) BoundMask {
	mask := make(BoundMask, len(vars))
	for i, v := range vars {
		mask[i] = v.IsBound(f)
	}
	return mask
}

// ---- AssumptionWrapper ----

// AssumptionWrapper makes a child re-checkable: when assumption is
// invalidated, the wrapped child must be re-looked-up rather than
// reused (spec.md §3.3, §4.6).
type AssumptionWrapper struct {
	Assumption *Assumption
	Child      Node
}

func (*AssumptionWrapper) rexprNode() {}

func NewAssumptionWrapper(a *Assumption, child Node) *AssumptionWrapper {
	return &AssumptionWrapper{Assumption: a, Child: child}
}

func (a *AssumptionWrapper) Equals(o Node) bool {
	u, ok := o.(*AssumptionWrapper)
	return ok && u.Assumption == a.Assumption && u.Child.Equals(a.Child)
}

func (a *AssumptionWrapper) Hash() uint64 {
	return mixHash(tagAssumptionWrapper, a.Child.Hash())
}

func (a *AssumptionWrapper) String() string {
	return fmt.Sprintf("AssumptionWrapper(%s)", a.Child)
}

// ---- Partition ----

// KeySlot is one column's entry in a partition row: either a concrete
// ground value or bottom (unconstrained), spec.md §3.3.
type KeySlot struct {
	Ground bool
	Value  term.Value
}

// Bottom is the unconstrained key slot (⊥ in spec.md §3.3).
var Bottom = KeySlot{}

// Ground wraps v as a ground key slot.
func Ground(v term.Value) KeySlot { return KeySlot{Ground: true, Value: v} }

func (k KeySlot) Equals(o KeySlot) bool {
	if k.Ground != o.Ground {
		return false
	}
	return !k.Ground || k.Value.Equals(o.Value)
}

// PartitionRow is one branch of a Partition: a key-tuple aligned with
// the partition's columns, plus the branch's body R-expression
// (spec.md §3.3).
type PartitionRow struct {
	Key  []KeySlot
	Body Node
}

// Partition is logical OR with per-branch optional ground
// restrictions on a tuple of column variables (spec.md §3.3).
type Partition struct {
	Cols []Variable
	Rows []PartitionRow
}

func (*Partition) rexprNode() {}

// NewPartition is the partition(cols, branches) smart constructor: if
// every branch is already a Terminal, the partition collapses to
// Terminal(sum) (spec.md §4.3).
func NewPartition(cols []Variable, rows []PartitionRow) Node {
	sum := int64(0)
	allTerminal := true
	for _, r := range rows {
		t, ok := r.Body.(*Terminal)
		if !ok {
			allTerminal = false
			break
		}
		sum += t.N
	}
	if allTerminal {
		return term0(sum)
	}
	return &Partition{Cols: append([]Variable(nil), cols...), Rows: rows}
}

func (p *Partition) Equals(o Node) bool {
	u, ok := o.(*Partition)
	if !ok || len(u.Cols) != len(p.Cols) || len(u.Rows) != len(p.Rows) {
		return false
	}
	for i := range p.Cols {
		if !p.Cols[i].Equals(u.Cols[i]) {
			return false
		}
	}
	for i := range p.Rows {
		if len(p.Rows[i].Key) != len(u.Rows[i].Key) || !p.Rows[i].Body.Equals(u.Rows[i].Body) {
			return false
		}
		for j := range p.Rows[i].Key {
			if !p.Rows[i].Key[j].Equals(u.Rows[i].Key[j]) {
				return false
			}
		}
	}
	return true
}

func (p *Partition) Hash() uint64 {
	h := uint64(tagPartition)
	for _, c := range p.Cols {
		h = mixHash(h, hashVar(c))
	}
	for _, r := range p.Rows {
		rh := uint64(0)
		for _, k := range r.Key {
			if k.Ground {
				rh = mixHash(rh, k.Value.Hash())
			} else {
				rh = mixHash(rh, 0xB07707)
			}
		}
		h = mixHash(h, mixHash(rh, r.Body.Hash()))
	}
	return h
}

func (p *Partition) String() string {
	cols := make([]string, len(p.Cols))
	for i, c := range p.Cols {
		cols[i] = c.String()
	}
	rows := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		keys := make([]string, len(r.Key))
		for j, k := range r.Key {
			if k.Ground {
				keys[j] = k.Value.String()
			} else {
				keys[j] = "_"
			}
		}
		rows[i] = fmt.Sprintf("(%s) -> %s", strings.Join(keys, ", "), r.Body)
	}
	return fmt.Sprintf("Partition([%s], {%s})", strings.Join(cols, ", "), strings.Join(rows, "; "))
}

// tags seed the structural hash per node kind so different variants
// with coincidentally-similar fields don't collide.
const (
	tagTerminal uint64 = iota + 1
	tagError
	tagIntersect
	tagUnify
	tagBuildStructure
	tagReflectStructure
	tagEvaluate
	tagAggregator
	tagCall
	tagModedOp
	tagAssumptionWrapper
	tagPartition
)

func mixHash(a, b uint64) uint64 {
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(a >> (8 * i))
		buf[8+i] = byte(b >> (8 * i))
	}
	return siphash.Hash(0, 1, buf[:])
}

func hashVar(v Variable) uint64 {
	switch v.Kind {
	case Constant:
		val, _ := v.Get(nil)
		return mixHash(uint64(Constant), val.Hash())
	default:
		return mixHash(uint64(v.Kind), siphash.Hash(0, 1, []byte(v.Key)))
	}
}

// Equal reports whether a and b are equivalent, tolerating nil
// (spec.md §3.3's structural-equality contract).
func Equal(a, b Node) bool {
	if a == nil {
		return b == nil
	}
	return b != nil && a.Equals(b)
}

// Vars returns the free variable occurrences in n in a stable,
// deduplicated order (used by rename and by get-partitions).
func Vars(n Node) []Variable {
	var out []Variable
	seen := map[string]bool{}
	add := func(v Variable) {
		if v.Kind == Constant {
			return
		}
		key := fmt.Sprintf("%d:%s", v.Kind, v.Key)
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}
	var walk func(Node)
	walk = func(n Node) {
		switch x := n.(type) {
		case *Terminal, *Error:
		case *Intersect:
			for _, c := range x.Children {
				walk(c)
			}
		case *Unify:
			add(x.A)
			add(x.B)
		case *BuildStructure:
			add(x.Result)
			for _, a := range x.Args {
				add(a)
			}
		case *ReflectStructure:
			add(x.Result)
			add(x.NameVar)
			add(x.ArityVar)
			add(x.ListVar)
		case *Evaluate:
			add(x.Ret)
			add(x.TermVar)
		case *Aggregator:
			add(x.Result)
			add(x.BodyRes)
			for _, v := range x.HeadVars {
				add(v)
			}
			walk(x.Body)
		case *Call:
			add(x.Ret)
			for _, a := range x.Args {
				add(a)
			}
		case *ModedOp:
			for _, v := range x.Vars {
				add(v)
			}
		case *AssumptionWrapper:
			walk(x.Child)
		case *Partition:
			for _, c := range x.Cols {
				add(c)
			}
			for _, r := range x.Rows {
				walk(r.Body)
			}
		}
	}
	walk(n)
	slices.SortFunc(out, func(a, b Variable) bool { return a.Key < b.Key })
	return out
}
