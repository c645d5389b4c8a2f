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

// Package system implements the boundary object a query runs against:
// the table of named-relation definitions, their assumption tokens,
// and the call/lookup surface rexpr.Call and rexpr.Evaluate resolve
// through (spec.md §6).
package system

import (
	"fmt"
	"sync"

	"github.com/dynacore/rexpr"
)

type relKey struct {
	name  string
	arity int
}

type relation struct {
	body       rexpr.Node
	ret        rexpr.Variable
	args       []rexpr.Variable
	op         rexpr.AggOp // set if this relation was built via add_to_term aggregation; nil otherwise
	assumption *rexpr.Assumption
}

// DefinitionError reports a problem with define_term/add_to_term/
// delete_term (spec.md §7 "Definition errors").
type DefinitionError struct {
	Name  string
	Arity int
	Msg   string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s/%d: %s", e.Name, e.Arity, e.Msg)
}

// IncompleteComputationError reports that a query simplified to a
// non-terminal residue and the caller did not opt into receiving it
// (spec.md §6's query surface, §7).
type IncompleteComputationError struct {
	Residue rexpr.Node
}

func (e *IncompleteComputationError) Error() string {
	return fmt.Sprintf("incomplete computation: residue %s", e.Residue)
}

// RecursionLimitError describes call inlining exceeding the configured
// call-stack depth (spec.md §5 "host-level stack-recursion-limit", §7
// "recursion-limit exceeded"). Nothing in this module constructs it:
// the limit surfaces as an rexpr.Error node in the simplified result.
type RecursionLimitError struct {
	Name  string
	Arity int
	Limit int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit (%d) exceeded calling %s/%d", e.Limit, e.Name, e.Arity)
}

// Option configures a Context at construction time, following the
// teacher's functional-option convention (e.g. plan/pir's optimizer
// passes, vm's query-option constructors).
type Option func(*Context)

// WithMaxCallDepth bounds how deep Call inlining may recurse before a
// Call simplifies to an rexpr.Error node instead of inlining further,
// rather than the host stack simply overflowing (spec.md §5, §7). The
// default is 4096.
func WithMaxCallDepth(n int) Option {
	return func(c *Context) { c.maxDepth = n }
}

// Context is the concrete rexpr.System: it owns the relation table,
// assumption tokens, and recursion depth bookkeeping (spec.md §6).
type Context struct {
	mu        sync.RWMutex
	relations map[relKey]*relation
	// pending holds an assumption token minted for a name/arity that
	// has been looked up before any definition exists, so a later
	// DefineTerm/AddToTerm can invalidate it and force re-resolution of
	// anything that inlined the Terminal(0) placeholder (spec.md §4.6
	// "Lookup ... if undefined, returns Terminal(0) wrapped under a
	// fresh assumption").
	pending  map[relKey]*rexpr.Assumption
	maxDepth int
	agenda   Agenda
}

// NewContext returns an empty system context.
func NewContext(opts ...Option) *Context {
	c := &Context{
		relations: make(map[relKey]*relation),
		pending:   make(map[relKey]*rexpr.Assumption),
		maxDepth:  4096,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// invalidatePending invalidates and clears any placeholder assumption
// minted by a prior undefined LookupTerm for k, since k now has (or
// again lacks) a real definition.
func (c *Context) invalidatePending(k relKey) {
	if a, ok := c.pending[k]; ok {
		a.Invalidate()
		delete(c.pending, k)
	}
}

// DefineTerm installs a fresh relation definition (spec.md §6
// `define_term`). It errors if the name/arity is already defined;
// use AddToTerm to merge into an aggregator. The body is kept raw
// (not yet wrapped in a definitionBody header) so AddToTerm can later
// splice another contribution's body in as a sibling Partition row
// without needing to reach inside an opaque wrapper; LookupTerm adds
// the header at resolution time.
func (c *Context) DefineTerm(name string, arity int, body rexpr.Node, ret rexpr.Variable, args []rexpr.Variable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := relKey{name, arity}
	if _, ok := c.relations[k]; ok {
		return &DefinitionError{Name: name, Arity: arity, Msg: "already defined"}
	}
	c.invalidatePending(k)
	c.relations[k] = &relation{
		body:       body,
		ret:        ret,
		args:       args,
		assumption: rexpr.NewAssumption(),
	}
	return nil
}

// AddToTerm merges an additional contribution into an existing
// aggregator-backed definition (spec.md §6 `add_to_term`, §4.6): the
// incoming body is alpha-renamed so its formal Return/args line up
// with the relation's existing formals, then unioned with the
// existing body as a sibling Partition row under the same aggregator
// op (spec.md §4.6 "Relation combine": "their rows are unioned in
// place"). If no definition exists yet, the contribution is installed
// as the first one under op. It errors if the existing definition was
// not built with an aggregator (it came from DefineTerm), or if op
// disagrees with the one already in use.
func (c *Context) AddToTerm(name string, arity int, op rexpr.AggOp, contribution rexpr.Node, ret rexpr.Variable, args []rexpr.Variable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := relKey{name, arity}
	existing, ok := c.relations[k]
	if !ok {
		c.invalidatePending(k)
		c.relations[k] = &relation{
			body:       contribution,
			ret:        ret,
			args:       args,
			op:         op,
			assumption: rexpr.NewAssumption(),
		}
		return nil
	}
	if existing.op == nil {
		return &DefinitionError{Name: name, Arity: arity, Msg: "not defined via add_to_term aggregation"}
	}
	if existing.op.Name() != op.Name() {
		return &DefinitionError{Name: name, Arity: arity, Msg: fmt.Sprintf("mismatched aggregator: have %s, got %s", existing.op.Name(), op.Name())}
	}
	// Rename the incoming contribution's formals onto the existing
	// relation's canonical Return/args variables, so both rows see the
	// same identities for the positions a caller binds; every other
	// (internal) variable in the contribution is alpha-renamed fresh by
	// RenameVarsUnique so it cannot collide with an identically-named
	// internal variable in the existing body (spec.md §4.3).
	explicit := map[string]rexpr.Variable{}
	if ret.Kind == rexpr.Named {
		explicit[ret.Key] = existing.ret
	}
	for i, a := range args {
		if a.Kind == rexpr.Named && i < len(existing.args) {
			explicit[a.Key] = existing.args[i]
		}
	}
	renamed := rexpr.RenameVarsUnique(contribution, explicit)
	merged := rexpr.NewPartition(nil, []rexpr.PartitionRow{
		{Key: nil, Body: existing.body},
		{Key: nil, Body: renamed},
	})
	existing.assumption.Invalidate()
	c.relations[k] = &relation{
		body:       merged,
		ret:        existing.ret,
		args:       existing.args,
		op:         op,
		assumption: rexpr.NewAssumption(),
	}
	return nil
}

// DeleteTerm removes a relation definition and invalidates its
// assumption, forcing every Call holding a stale AssumptionWrapper to
// re-resolve (spec.md §6 `delete_term`, §8 property 9).
func (c *Context) DeleteTerm(name string, arity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := relKey{name, arity}
	r, ok := c.relations[k]
	if !ok {
		return &DefinitionError{Name: name, Arity: arity, Msg: "not defined"}
	}
	r.assumption.Invalidate()
	delete(c.relations, k)
	return nil
}

// CallTerm returns a Call node bound to ret/args, suitable for
// composing into a larger R-expression (spec.md §6 `call_term`).
func (c *Context) CallTerm(name string, arity int, ret rexpr.Variable, args []rexpr.Variable) rexpr.Node {
	return rexpr.NewCall(ret, args, c, name, arity)
}

// LookupTerm implements rexpr.System: it is the boundary Call uses
// during simplification to resolve a name/arity to its current
// AssumptionWrapper-wrapped body (spec.md §6 `lookup_term`). An
// undefined name/arity resolves to Terminal(0) wrapped in a fresh
// assumption rather than nil, so that a later DefineTerm/AddToTerm for
// that name invalidates it and forces whatever inlined the
// placeholder to re-resolve (spec.md §4.6).
func (c *Context) LookupTerm(name string, arity int) *rexpr.AssumptionWrapper {
	k := relKey{name, arity}
	c.mu.RLock()
	r, ok := c.relations[k]
	if ok {
		defer c.mu.RUnlock()
		return rexpr.NewAssumptionWrapper(r.assumption, rexpr.NewDefinitionBody(r.body, r.ret, r.args))
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.relations[k]; ok {
		return rexpr.NewAssumptionWrapper(r.assumption, rexpr.NewDefinitionBody(r.body, r.ret, r.args))
	}
	a, ok := c.pending[k]
	if !ok {
		a = rexpr.NewAssumption()
		c.pending[k] = a
	}
	return rexpr.NewAssumptionWrapper(a, rexpr.NewDefinitionBody(rexpr.Zero, rexpr.NewUnitary(), nil))
}

// TermAssumption returns the current assumption token for name/arity,
// or nil if undefined (spec.md §6 `term_assumption`).
func (c *Context) TermAssumption(name string, arity int) *rexpr.Assumption {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.relations[relKey{name, arity}]
	if !ok {
		return nil
	}
	return r.assumption
}

// MaxCallDepth reports the configured recursion-blocker depth bound
// (spec.md §5, §7).
func (c *Context) MaxCallDepth() int { return c.maxDepth }
