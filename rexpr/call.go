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

import "fmt"

// BlockedError describes a Call that would recurse into an identical
// pending invocation without making progress (spec.md §4.6 step 2's
// recursion guard). simplifyCall does not construct it: a blocked
// Call is reported by returning the Call node itself, uninlined.
type BlockedError struct {
	Key CallKey
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked: recursive call to %s/%d already pending with mode %s", e.Key.Name, e.Key.Arity, e.Key.Mode)
}

// simplifyCall implements the call-inlining rewrite of spec.md §4.6:
//  1. compute this invocation's CallKey from the currently-bound
//     arguments;
//  2. if an identical key is already on the frame's blocker stack,
//     leave the Call in place (no progress to be made by inlining
//     again);
//  3. otherwise resolve name/arity via System.LookupTerm, which
//     returns an AssumptionWrapper;
//  4. alpha-rename the wrapped body's internal variables fresh,
//     mapping its formal Return/argument variables to this call's Ret
//     and Args;
//  5. push this call's key onto the blocker stack for the duration of
//     simplifying the inlined body, then pop it.
func simplifyCall(c *Call, f *Frame) Node {
	key := callKeyFor(c, f)
	for _, k := range f.Stack {
		if k == key {
			return c // blocked: recursing without new information
		}
	}
	if c.System == nil {
		return NewError(fmt.Sprintf("call to %s/%d: no system bound", c.Name, c.Arity))
	}
	if limit := c.System.MaxCallDepth(); limit > 0 && len(f.Stack) >= limit {
		return NewError(fmt.Sprintf("recursion limit (%d) exceeded calling %s/%d", limit, c.Name, c.Arity))
	}
	wrapper := c.System.LookupTerm(c.Name, c.Arity)
	if wrapper == nil {
		return NewError(fmt.Sprintf("undefined relation %s/%d", c.Name, c.Arity))
	}

	explicit := map[string]Variable{}
	body, formalRet, formalArgs := unwrapRelationBody(wrapper.Child)
	if formalRet.Kind == Named {
		explicit[formalRet.Key] = c.Ret
	}
	for i, fa := range formalArgs {
		if fa.Kind == Named && i < len(c.Args) {
			explicit[fa.Key] = c.Args[i]
		}
	}
	inlined := RenameVarsUnique(body, explicit)

	f.Stack = append(f.Stack, key)
	result := Simplify(NewAssumptionWrapper(wrapper.Assumption, inlined), f)
	f.Stack = f.Stack[:len(f.Stack)-1]
	if aw, ok := result.(*AssumptionWrapper); ok {
		return aw.Child
	}
	return result
}

// callKeyFor computes the recursion-blocker key for a call under the
// currently bound arguments: the relation name/arity, a bound-mask
// string, and a stable string encoding of the bound argument values
// (spec.md §4.6 step 2).
func callKeyFor(c *Call, f *Frame) CallKey {
	mode := make([]byte, len(c.Args))
	var argsEnc string
	for i, a := range c.Args {
		if a.IsBound(f) {
			mode[i] = '1'
			v, _ := a.Get(f)
			argsEnc += fmt.Sprintf("|%d:%s", v.Kind(), v.String())
		} else {
			mode[i] = '0'
		}
	}
	return CallKey{Name: c.Name, Arity: c.Arity, Mode: string(mode), Args: argsEnc}
}

// unwrapRelationBody splits a relation definition's R-expression into
// its body, formal return variable, and formal argument variables.
// Relation definitions arrive as a *definitionBody header (built by
// package system's LookupTerm via NewDefinitionBody) recording the
// formal Return/Args alongside the body (spec.md §4.6, §6). Any other
// node is returned as the body with no formals, so every variable in
// it is then renamed fresh.
func unwrapRelationBody(n Node) (body Node, ret Variable, args []Variable) {
	if d, ok := n.(*definitionBody); ok {
		return d.Body, d.Ret, d.Args
	}
	return n, Variable{}, nil
}

// definitionBody wraps a relation's body R-expression together with
// its formal Return/argument variables, as produced by package
// system's relation table (spec.md §6). It is not itself a semantic
// Node kind usable inside a general R-expression; Call unwraps it
// immediately during inlining.
type definitionBody struct {
	Body Node
	Ret  Variable
	Args []Variable
}

func (*definitionBody) rexprNode() {}
func (d *definitionBody) Equals(o Node) bool {
	u, ok := o.(*definitionBody)
	return ok && d.Body.Equals(u.Body)
}
func (d *definitionBody) Hash() uint64  { return mixHash(0xDEF1717, d.Body.Hash()) }
func (d *definitionBody) String() string { return fmt.Sprintf("Definition(%s)", d.Body) }

// NewDefinitionBody constructs a relation definition record: ret and
// args are the formal parameters that Call's alpha-renaming binds to
// the caller's actual Ret/Args (spec.md §4.6, §6).
func NewDefinitionBody(body Node, ret Variable, args []Variable) Node {
	return &definitionBody{Body: body, Ret: ret, Args: append([]Variable(nil), args...)}
}
