package session

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
)

type rootKey struct{}

// NewContext returns ctx carrying root.
func NewContext(ctx context.Context, root *Root) context.Context {
	return context.WithValue(ctx, rootKey{}, root)
}

// FromContext returns the root carried by ctx, or domain.ErrMissingRoot.
func FromContext(ctx context.Context) (*Root, error) {
	root, ok := ctx.Value(rootKey{}).(*Root)
	if !ok || root == nil {
		return nil, domain.ErrMissingRoot
	}
	return root, nil
}

// Refetch refetches through the root carried by ctx.
func Refetch(ctx context.Context, path string, params any) (*elements.Future, error) {
	root, err := FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return root.Refetch(ctx, path, params), nil
}
