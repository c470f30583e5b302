package elements

import (
	"context"
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// Merger combines Elements handles and memoizes each result per exact (a, b) pair.
// Entries live until Forget or Reset drops them.
type Merger struct {
	mu   sync.Mutex
	memo map[*Future]map[*Future]*Future
}

// NewMerger creates an empty merge engine.
func NewMerger() *Merger {
	return &Merger{
		memo: make(map[*Future]map[*Future]*Future),
	}
}

// Merge returns a Future resolving to b's keys shallow-merged over a's, with the
// reserved side-channel key removed. If either input rejects, the result rejects
// with the first observed cause. A nil operand counts as an empty tree.
// Concurrent callers with the same pair share one result.
func (m *Merger) Merge(a, b *Future) *Future {
	m.mu.Lock()
	defer m.mu.Unlock()

	inner, ok := m.memo[a]
	if !ok {
		inner = make(map[*Future]*Future)
		m.memo[a] = inner
	}
	if merged, ok := inner[b]; ok {
		return merged
	}
	merged := merge(a, b)
	inner[b] = merged
	return merged
}

// Forget drops every memoized result that has f as either operand.
func (m *Merger) Forget(f *Future) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.memo, f)
	for a, inner := range m.memo {
		delete(inner, f)
		if len(inner) == 0 {
			delete(m.memo, a)
		}
	}
}

// Reset drops every memoized result.
func (m *Merger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memo = make(map[*Future]map[*Future]*Future)
}

// Len returns the number of memoized pairs.
func (m *Merger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, inner := range m.memo {
		n += len(inner)
	}
	return n
}

func merge(a, b *Future) *Future {
	return Go(context.Background(), func(ctx context.Context) (domain.Elements, error) {
		var left, right domain.Elements
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			left, err = waitOrEmpty(gctx, a)
			return err
		})
		g.Go(func() (err error) {
			right, err = waitOrEmpty(gctx, b)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		next := make(domain.Elements, len(left)+len(right))
		for k, v := range left {
			next[k] = v
		}
		for k, v := range right {
			next[k] = v
		}
		delete(next, domain.KeyValue)
		return next, nil
	})
}

// waitOrEmpty treats a nil handle as an empty tree.
func waitOrEmpty(ctx context.Context, f *Future) (domain.Elements, error) {
	if f == nil {
		return domain.Elements{}, nil
	}
	return f.Wait(ctx)
}
