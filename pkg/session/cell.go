package session

import (
	"sort"
	"sync"

	"github.com/aretw0/canopy/pkg/elements"
	"github.com/aretw0/canopy/pkg/rsc"
)

// Cell is a reactive holder of the current Elements handle.
// Subscribers are notified after every change, in subscription order.
type Cell struct {
	mu     sync.Mutex
	value  *elements.Future
	subs   map[int]func(*elements.Future)
	nextID int
}

// NewCell creates a Cell holding initial.
func NewCell(initial *elements.Future) *Cell {
	return &Cell{
		value: initial,
		subs:  make(map[int]func(*elements.Future)),
	}
}

// Get returns the current handle.
func (c *Cell) Get() *elements.Future {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the current handle.
func (c *Cell) Set(next *elements.Future) {
	c.Update(func(*elements.Future) *elements.Future { return next })
}

// Update replaces the current handle with u(current) and returns both.
// Concurrent updates are applied one at a time, each seeing the previous result.
func (c *Cell) Update(u rsc.Updater) (prev, next *elements.Future) {
	c.mu.Lock()
	prev = c.value
	next = u(prev)
	c.value = next
	subs := c.snapshotSubs()
	c.mu.Unlock()

	if next != prev {
		for _, fn := range subs {
			fn(next)
		}
	}
	return prev, next
}

// Subscribe registers fn for change notifications and returns its cancel function.
func (c *Cell) Subscribe(fn func(*elements.Future)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Cell) snapshotSubs() []func(*elements.Future) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(*elements.Future), 0, len(ids))
	for _, id := range ids {
		out = append(out, c.subs[id])
	}
	return out
}
