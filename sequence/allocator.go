// Package sequence issues globally unique 64-bit identifiers from a bounded
// counter range.
//
// Deployments that run more than one allocator instance must partition the id
// space explicitly by handing each instance a disjoint [start, max] range;
// the library applies no partitioning policy of its own.
package sequence

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/strata/core"
)

// ErrExhausted is returned once the allocator has issued its configured max.
// It is fatal for the instance: ids are never wrapped or reused.
var ErrExhausted = errors.New("sequence: id range exhausted")

// Allocator hands out monotonically increasing ids with an allocate-once
// guarantee under concurrent callers. There is no reservation or rollback:
// an id consumed by a failed write is permanently burned.
type Allocator struct {
	next atomic.Int64
	max  int64
}

// New creates an allocator issuing ids from start up to and including max.
func New(start, max core.ID) (*Allocator, error) {
	if start <= 0 || max < start {
		return nil, fmt.Errorf("sequence: invalid range [%d, %d]", start, max)
	}
	a := &Allocator{max: int64(max)}
	a.next.Store(int64(start))
	return a, nil
}

// Next returns the next unused id, or ErrExhausted once the range is spent.
func (a *Allocator) Next() (core.ID, error) {
	for {
		cur := a.next.Load()
		// A negative counter means issuing max overflowed the increment; the
		// range ended exactly at MaxInt64 and is spent.
		if cur > a.max || cur < 0 {
			return 0, ErrExhausted
		}
		if a.next.CompareAndSwap(cur, cur+1) {
			return core.ID(cur), nil
		}
	}
}

// Advance moves the counter past id if it has not been issued yet. Recovery
// uses it to re-synchronize the allocator with replayed history; it never
// moves the counter backwards.
func (a *Allocator) Advance(id core.ID) {
	for {
		cur := a.next.Load()
		if int64(id) < cur {
			return
		}
		if a.next.CompareAndSwap(cur, int64(id)+1) {
			return
		}
	}
}

// Peek returns the next id that would be issued, without consuming it.
func (a *Allocator) Peek() core.ID {
	return core.ID(a.next.Load())
}

// Remaining returns the number of ids still available.
func (a *Allocator) Remaining() int64 {
	n := a.max - a.next.Load() + 1
	if n < 0 {
		return 0
	}
	return n
}
