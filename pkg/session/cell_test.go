package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
	"github.com/aretw0/canopy/pkg/session"
	"github.com/stretchr/testify/assert"
)

func TestCell_NotifiesInSubscriptionOrder(t *testing.T) {
	initial := elements.Resolved(domain.Elements{"App": "a"})
	cell := session.NewCell(initial)

	var order []int
	cell.Subscribe(func(*elements.Future) { order = append(order, 1) })
	cancel := cell.Subscribe(func(*elements.Future) { order = append(order, 2) })
	cell.Subscribe(func(*elements.Future) { order = append(order, 3) })

	next := elements.Resolved(domain.Elements{"App": "b"})
	cell.Set(next)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Same(t, next, cell.Get())

	cancel()
	cell.Set(elements.Resolved(nil))
	assert.Equal(t, []int{1, 2, 3, 1, 3}, order)
}

func TestCell_UpdateSeesPrevious(t *testing.T) {
	initial := elements.Resolved(nil)
	cell := session.NewCell(initial)

	calls := 0
	cell.Subscribe(func(*elements.Future) { calls++ })

	prev, next := cell.Update(func(p *elements.Future) *elements.Future { return p })
	assert.Same(t, initial, prev)
	assert.Same(t, initial, next)
	assert.Zero(t, calls, "unchanged value must not notify")
}

func TestCell_BlockedSubscriberDoesNotStallOtherUpdates(t *testing.T) {
	cell := session.NewCell(elements.Resolved(nil))
	pending, settle := elements.Pending()

	entered := make(chan struct{})
	var once sync.Once
	cell.Subscribe(func(f *elements.Future) {
		if f != pending {
			return
		}
		once.Do(func() { close(entered) })
		_, _ = f.Wait(context.Background())
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		cell.Set(pending)
	}()
	<-entered

	// The first subscriber is still waiting on network-bound data.
	next := elements.Resolved(domain.Elements{"App": "b"})
	prev, got := cell.Update(func(*elements.Future) *elements.Future { return next })
	assert.Same(t, pending, prev)
	assert.Same(t, next, got)
	assert.Same(t, next, cell.Get())

	settle(domain.Elements{"App": "a"}, nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber never returned")
	}
}
