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
	"strings"

	"github.com/dynacore/rexpr/term"
)

// simplifyPartition implements the partition rewrite of spec.md §4.5:
// for each row whose key slots are compatible with the columns'
// current bindings, bind any ground slots, simplify the row body
// under those bindings, and record the row's new key (the columns'
// values after simplification, ⊥ where still unbound). Empty results
// are dropped; survivors are grouped by new key, Terminal rows within
// a group are merged by summing multiplicities, any column that
// agrees on a ground value across every surviving row is bound
// eagerly, and a single surviving row collapses the Partition to its
// body outright.
//
// A row that would need to introduce a column binding not already
// present in f is only ever probed against a throwaway clone of f: two
// rows of a genuinely disjunctive partition (spec.md §8's "deleteone",
// for instance) can both survive simultaneously with different
// bindings for the same free variable, and running them one after
// another directly against the shared f would let the first row's
// bindings leak into the second's evaluation — corrupting or
// wrongly failing a sibling alternative that was never meant to share
// state with it. Only a row whose ground slots are already genuinely
// bound in f (nothing left to introduce) is simplified against the
// real frame, since there both its own correctness and the eventual
// "single survivor collapses" shortcut depend on bindings that are
// already committed, not merely hypothetical.
func simplifyPartition(x *Partition, f *Frame) Node {
	var rows []PartitionRow
	for _, row := range x.Rows {
		speculative := false
		for i, col := range x.Cols {
			if row.Key[i].Ground && !col.IsBound(f) {
				speculative = true
				break
			}
		}

		work := f
		if speculative {
			work = f.Clone()
		}

		ok := true
		for i, col := range x.Cols {
			slot := row.Key[i]
			if !slot.Ground {
				continue
			}
			if col.IsBound(work) {
				cur, _ := col.Get(work)
				if !cur.Equals(slot.Value) {
					ok = false
					break
				}
				continue
			}
			if err := col.Set(work, slot.Value); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		simplified := Simplify(row.Body, work)
		if t, isT := simplified.(*Terminal); isT && t.Empty() {
			continue
		}

		newKey := make([]KeySlot, len(x.Cols))
		for i, col := range x.Cols {
			if v, bound := col.Get(work); bound {
				newKey[i] = Ground(v)
			} else {
				newKey[i] = Bottom
			}
		}

		// A speculative row's bindings only live on the discarded
		// clone: keep the original, unsimplified body so a later pass
		// (once the column is genuinely committed, via this function
		// again or via the get-partitions/loop driver) redoes the real
		// work against a frame it's actually allowed to mutate.
		body := simplified
		if speculative {
			body = row.Body
		}
		rows = append(rows, PartitionRow{Key: newKey, Body: body})
	}

	if len(rows) == 0 {
		return Zero
	}

	// Group by new key, merging Terminal rows within a group by summing
	// multiplicities (spec.md §4.5 steps 4-6).
	type bucket struct {
		key   []KeySlot
		sum   int64
		hasT  bool
		other []Node
	}
	var order []string
	buckets := map[string]*bucket{}
	for _, r := range rows {
		kk := keyString(r.Key)
		b, seen := buckets[kk]
		if !seen {
			b = &bucket{key: r.Key}
			buckets[kk] = b
			order = append(order, kk)
		}
		if t, isT := r.Body.(*Terminal); isT {
			b.sum += t.N
			b.hasT = true
		} else {
			b.other = append(b.other, r.Body)
		}
	}

	// A column whose surviving rows all agree on a ground value can be
	// bound now: it held on every branch that survived (spec.md §4.5's
	// "common value" notion).
	for ci, col := range x.Cols {
		if col.IsBound(f) {
			continue
		}
		if v, ok := commonGroundValue(rows, ci); ok {
			_ = col.Set(f, v)
		}
	}

	var outRows []PartitionRow
	for _, kk := range order {
		b := buckets[kk]
		if b.hasT {
			outRows = append(outRows, PartitionRow{Key: b.key, Body: term0(b.sum)})
		}
		for _, o := range b.other {
			outRows = append(outRows, PartitionRow{Key: b.key, Body: o})
		}
	}

	if len(outRows) == 1 && keyImplied(outRows[0].Key, x.Cols, f) {
		return outRows[0].Body
	}

	return NewPartition(x.Cols, outRows)
}

// keyString is a stable grouping key for a row's key-tuple, used to
// bucket rows that share the same new key (spec.md §4.5 step 6).
func keyString(key []KeySlot) string {
	var b strings.Builder
	for _, k := range key {
		if k.Ground {
			fmt.Fprintf(&b, "|%d:%s", k.Value.Kind(), k.Value.String())
		} else {
			b.WriteString("|_")
		}
	}
	return b.String()
}

// keyImplied reports whether every ground slot in key is already the
// column's current bound value in f (so reconstituting a one-row
// Partition around it would be redundant) and every bottom slot's
// column remains unbound, per spec.md §4.5's "key is all ⊥ or implied
// by the newly bound cols" collapse condition.
func keyImplied(key []KeySlot, cols []Variable, f *Frame) bool {
	for i, k := range key {
		bound := cols[i].IsBound(f)
		if !k.Ground {
			if bound {
				return false
			}
			continue
		}
		if !bound {
			return false
		}
		cur, _ := cols[i].Get(f)
		if !cur.Equals(k.Value) {
			return false
		}
	}
	return true
}

// commonGroundValue returns the single ground value shared by every
// row's slot at column idx, or (zero, false) if the column is
// unconstrained or rows disagree (spec.md §4.5's "common value"
// notion used when deciding whether a column can be eagerly bound
// before recursing into row bodies).
func commonGroundValue(rows []PartitionRow, idx int) (term.Value, bool) {
	var v term.Value
	set := false
	for _, r := range rows {
		s := r.Key[idx]
		if !s.Ground {
			return term.Value{}, false
		}
		if !set {
			v = s.Value
			set = true
			continue
		}
		if !v.Equals(s.Value) {
			return term.Value{}, false
		}
	}
	return v, set
}

// valueGroup is one distinct ground value seen at a partition column,
// together with the rows whose key slot holds it.
type valueGroup struct {
	value term.Value
	rows  []PartitionRow
}

// partitionMultimap groups rows by the ground value at column idx.
// Rows with a bottom slot at idx (which apply regardless of that
// column's value) are not added to any group; they are returned
// separately as the second result. This is the bucketing
// step get-partitions uses to turn a Partition into candidate
// iterators (spec.md §4.5, §4.7).
//
// Grouping is done by Value.Hash() with an Equals tie-break, the same
// discipline node.go's hashing and SingleIterator.Bind use elsewhere,
// rather than a map[term.Value]..., since term.Value's Term pointer
// and Opaque field make Go's own `==` both structurally wrong
// (pointer-distinct but Equals-equal values would bucket apart) and,
// for a column carrying a non-comparable Opaque, a panic on insertion.
func partitionMultimap(rows []PartitionRow, idx int) ([]valueGroup, []PartitionRow) {
	var groups []valueGroup
	buckets := map[uint64][]int{}
	var wildcard []PartitionRow
	for _, r := range rows {
		s := r.Key[idx]
		if !s.Ground {
			wildcard = append(wildcard, r)
			continue
		}
		h := s.Value.Hash()
		gi := -1
		for _, candidate := range buckets[h] {
			if groups[candidate].value.Equals(s.Value) {
				gi = candidate
				break
			}
		}
		if gi < 0 {
			gi = len(groups)
			groups = append(groups, valueGroup{value: s.Value})
			buckets[h] = append(buckets[h], gi)
		}
		groups[gi].rows = append(groups[gi].rows, r)
	}
	return groups, wildcard
}
