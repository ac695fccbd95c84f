/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package rowcount tracks how many rows of a forward-only table have been
// seen and whether that number is the final total.
//
// The tracker has two states. While Provisional the count is a lower bound
// that can grow with every read. Final is reached when the iterator is
// exhausted, when the source reports its size up front, or when a caller
// asserts the count with isFinal set. A Final count only changes through
// Assert with a strictly larger value.
package rowcount

import (
	"fmt"
	"sync"

	"github.com/rulego/rowcache/types"
)

// State of a tracker
type State int

const (
	Provisional State = iota
	Final
)

func (s State) String() string {
	switch s {
	case Provisional:
		return "PROVISIONAL"
	case Final:
		return "FINAL"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tracker is safe for concurrent use
type Tracker struct {
	mu       sync.Mutex
	observed int64
	state    State
	// onFinal is called outside the lock after a transition to Final
	onFinal func(count int64)
}

// NewTracker returns a provisional tracker with nothing observed
func NewTracker() *Tracker {
	return &Tracker{}
}

// NewFinalTracker returns a tracker for a source of known size
func NewFinalTracker(count int64) *Tracker {
	return &Tracker{observed: count, state: Final}
}

// OnFinal registers a callback for the transition to Final
func (t *Tracker) OnFinal(fn func(count int64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFinal = fn
}

// Observe raises the observed count to n. Ignored once Final.
func (t *Tracker) Observe(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Final {
		return
	}
	if n > t.observed {
		t.observed = n
	}
}

// Exhausted records that an iterator ended after n rows, which makes the
// count final. Ignored once Final.
func (t *Tracker) Exhausted(n int64) {
	t.mu.Lock()
	if t.state == Final {
		t.mu.Unlock()
		return
	}
	if n > t.observed {
		t.observed = n
	}
	t.state = Final
	count, fn := t.observed, t.onFinal
	t.mu.Unlock()

	if fn != nil {
		fn(count)
	}
}

// Assert applies an externally known count. The update is ignored unless
// count is strictly larger than the observed count; the resulting state is
// exactly isFinal. Returns whether the update was applied.
func (t *Tracker) Assert(count int64, isFinal bool) bool {
	t.mu.Lock()
	if count <= t.observed {
		t.mu.Unlock()
		return false
	}
	becameFinal := isFinal && t.state != Final
	t.observed = count
	if isFinal {
		t.state = Final
	} else {
		t.state = Provisional
	}
	fn := t.onFinal
	t.mu.Unlock()

	if becameFinal && fn != nil {
		fn(count)
	}
	return true
}

// Observed returns the rows seen so far, a lower bound while Provisional
func (t *Tracker) Observed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observed
}

// State returns the current state
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsFinal reports whether the count is the true total
func (t *Tracker) IsFinal() bool {
	return t.State() == Final
}

// Count returns the final row count or types.ErrUnknownCount
func (t *Tracker) Count() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Final {
		return 0, fmt.Errorf("%w: at least %d rows", types.ErrUnknownCount, t.observed)
	}
	return t.observed, nil
}

// Snapshot returns the observed count and the state under one lock
func (t *Tracker) Snapshot() (int64, State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observed, t.state
}
