// Package term implements the immutable value universe that variables
// are bound to: numbers, strings, booleans, structured terms, and
// opaque host objects.
package term

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dchest/siphash"
)

// Kind discriminates the variants of Value.
type Kind uint8

const (
	// KindNull is the absence of a value ($null in colon-equals
	// aggregation, see spec.md §4.5 table).
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTerm
	// KindOpaque wraps a host object that lacks a stable hash; identity
	// equality is exposed as value equality (spec.md §4.2, §9).
	KindOpaque
)

// Value is an immutable, structurally hashable value that a variable
// may be bound to. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	term *Term
	opq  Opaque
}

// Opaque is a host object wrapped so reference identity can stand in
// for value equality and hashing (spec.md §4.2, §9).
type Opaque interface {
	// OpaqueEqual reports whether o is the same host object as this one.
	OpaqueEqual(o Opaque) bool
	// OpaqueHash returns a stable hash for this object's identity.
	OpaqueHash() uint64
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(i int64) Value          { return Value{kind: KindInt, i: i} }
func Float(f float64) Value      { return Value{kind: KindFloat, f: f} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func FromTerm(t *Term) Value     { return Value{kind: KindTerm, term: t} }
func FromOpaque(o Opaque) Value  { return Value{kind: KindOpaque, opq: o} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) Float() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// Str returns v's string payload, or ("", false) if v is not a string.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) Term() (*Term, bool) {
	if v.kind != KindTerm {
		return nil, false
	}
	return v.term, true
}

func (v Value) Opaque() (Opaque, bool) {
	if v.kind != KindOpaque {
		return nil, false
	}
	return v.opq, true
}

// Truthy implements the truthiness coercion resolved for the `:-`/`|=`
// aggregators in spec.md §9 (Open Question 1; decision in DESIGN.md):
// 0, Null, "", and nil() are false, everything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindTerm:
		return !(v.term.Name == "nil" && len(v.term.Args) == 0)
	default:
		return true
	}
}

// Equals reports structural equality between two values.
func (v Value) Equals(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindTerm:
		return v.term.Equals(o.term)
	case KindOpaque:
		return v.opq.OpaqueEqual(o.opq)
	}
	return false
}

// Hash returns a structural hash of v, stable across process restarts
// given the same siphash keys (spec.md §3.3 "hashes may be cached").
func (v Value) Hash() uint64 {
	var buf []byte
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case KindBool:
		if v.b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt:
		buf = appendUint64(buf, uint64(v.i))
	case KindFloat:
		buf = appendUint64(buf, math.Float64bits(v.f))
	case KindString:
		buf = append(buf, v.s...)
	case KindTerm:
		return mix(siphash.Hash(0, 1, buf), v.term.Hash())
	case KindOpaque:
		return mix(siphash.Hash(0, 1, buf), v.opq.OpaqueHash())
	}
	return siphash.Hash(0, 1, buf)
}

func mix(a, b uint64) uint64 {
	return siphash.Hash(a, b, nil)
}

func appendUint64(buf []byte, x uint64) []byte {
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(x>>(8*i)))
	}
	return buf
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "$null"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindTerm:
		return v.term.String()
	default:
		return "<opaque>"
	}
}

// Term is an immutable named tuple: name(args...). Structural equality
// and hashing follow spec.md §4.2.
type Term struct {
	Name string
	Args []Value

	hash     uint64
	hashed   bool
}

// NewTerm constructs a term, copying args so the result is immutable.
func NewTerm(name string, args ...Value) *Term {
	cp := make([]Value, len(args))
	copy(cp, args)
	return &Term{Name: name, Args: cp}
}

func (t *Term) Arity() int { return len(t.Args) }

func (t *Term) Equals(o *Term) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	if t.Name != o.Name || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equals(o.Args[i]) {
			return false
		}
	}
	return true
}

func (t *Term) Hash() uint64 {
	if t.hashed {
		return t.hash
	}
	h := siphash.Hash(0, 1, []byte(t.Name))
	for i := range t.Args {
		h = mix(h, t.Args[i].Hash())
	}
	t.hash = h
	t.hashed = true
	return h
}

func (t *Term) String() string {
	var b strings.Builder
	b.WriteString(t.Name)
	b.WriteByte('(')
	for i, a := range t.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Cons builds the cons-list sugar .(head, tail) used to convert
// host sequences to/from terms (spec.md §4.2).
func Cons(head Value, tail Value) Value {
	return FromTerm(NewTerm(".", head, tail))
}

// Nil is the empty-list term nil().
func Nil() Value {
	return FromTerm(NewTerm("nil"))
}

// IsCons reports whether v is a .(head,tail) term and returns its parts.
func IsCons(v Value) (head, tail Value, ok bool) {
	t, isTerm := v.Term()
	if !isTerm || t.Name != "." || len(t.Args) != 2 {
		return Value{}, Value{}, false
	}
	return t.Args[0], t.Args[1], true
}

// IsNil reports whether v is the empty-list term nil().
func IsNil(v Value) bool {
	t, isTerm := v.Term()
	return isTerm && t.Name == "nil" && len(t.Args) == 0
}

// ListFromSlice converts a host sequence into cons-list sugar.
func ListFromSlice(items []Value) Value {
	out := Nil()
	for i := len(items) - 1; i >= 0; i-- {
		out = Cons(items[i], out)
	}
	return out
}

// SliceFromList converts cons-list sugar back into a host sequence.
// ok is false if v is not a proper (nil-terminated) list.
func SliceFromList(v Value) (items []Value, ok bool) {
	for {
		if IsNil(v) {
			return items, true
		}
		h, t, isCons := IsCons(v)
		if !isCons {
			return nil, false
		}
		items = append(items, h)
		v = t
	}
}

// SortValues sorts a slice of values by kind then by a kind-specific
// ordering (bool, term and opaque values keep no order within their
// kind). Nothing in this module calls it; the aggregators and the
// partition rewriter enumerate rows in their stored order.
func SortValues(vs []Value) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].kind != vs[j].kind {
			return vs[i].kind < vs[j].kind
		}
		switch vs[i].kind {
		case KindInt:
			return vs[i].i < vs[j].i
		case KindFloat:
			return vs[i].f < vs[j].f
		case KindString:
			return vs[i].s < vs[j].s
		default:
			return false
		}
	})
}
