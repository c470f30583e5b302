package session

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
)

type childrenKey struct{}

// SlotView is one resolved slot: the subtree the server returned for ID and the
// children its parent injected.
type SlotView struct {
	ID       string
	Element  any
	Children any
}

// Context returns ctx carrying the view's children for Children to retrieve.
func (v *SlotView) Context(ctx context.Context) context.Context {
	return WithChildren(ctx, v.Children)
}

// ResolveSlot blocks until f settles and extracts id. It fails with a
// *domain.SlotError when id is absent, and with domain.ErrMissingRoot when
// there is no tree at all. Every call against a pending f blocks the same way.
func ResolveSlot(ctx context.Context, f *elements.Future, id string, children any) (*SlotView, error) {
	if f == nil {
		return nil, domain.ErrMissingRoot
	}
	tree, err := f.Wait(ctx)
	if err != nil {
		return nil, err
	}
	el, ok := tree[id]
	if !ok {
		return nil, &domain.SlotError{ID: id}
	}
	return &SlotView{ID: id, Element: el, Children: children}, nil
}

// Slot resolves id from the root carried by ctx.
func Slot(ctx context.Context, id string, children any) (*SlotView, error) {
	root, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return root.Slot(ctx, id, children)
}

// WithChildren returns ctx carrying children for the subtree rendered beneath it.
func WithChildren(ctx context.Context, children any) context.Context {
	return context.WithValue(ctx, childrenKey{}, children)
}

// Children returns the children injected by the nearest enclosing slot, or nil.
func Children(ctx context.Context) any {
	return ctx.Value(childrenKey{})
}
