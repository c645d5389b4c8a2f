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
	"sync"

	"github.com/google/uuid"
)

// Assumption is a token whose invalidation forces anything wrapped in
// it (directly, via AssumptionWrapper, or transitively through a
// compiled/cached artifact held by an external subsystem) to
// re-resolve (spec.md §4.6, §5).
type Assumption struct {
	id uuid.UUID

	mu    sync.Mutex
	valid bool
}

// NewAssumption mints a fresh, valid assumption token.
func NewAssumption() *Assumption {
	return &Assumption{id: uuid.New(), valid: true}
}

// Valid reports whether this assumption has not been invalidated.
func (a *Assumption) Valid() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.valid
}

// Invalidate marks the assumption stale. It is idempotent.
func (a *Assumption) Invalidate() {
	a.mu.Lock()
	a.valid = false
	a.mu.Unlock()
}

func (a *Assumption) String() string { return "Assumption(" + a.id.String() + ")" }
