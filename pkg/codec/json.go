package codec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// Marker keys for nested remote calls.
const (
	CallKey = "$call"
	ArgsKey = "args"
)

// ErrNoRemoteCaller is returned when a stream requests a remote call and no caller is wired.
var ErrNoRemoteCaller = errors.New("stream requested a remote call but no caller is configured")

// JSONDecoder implements ports.Decoder for JSON object streams.
type JSONDecoder struct{}

var _ ports.Decoder = JSONDecoder{}

// Decode reads a single JSON object from r and resolves nested remote calls.
func (JSONDecoder) Decode(ctx context.Context, r io.Reader, opts ports.DecodeOptions) (domain.Elements, error) {
	var raw map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode elements: expected object, got null")
	}

	out := make(domain.Elements, len(raw))
	for k, v := range raw {
		resolved, err := resolveCalls(ctx, v, opts)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

func resolveCalls(ctx context.Context, v any, opts ports.DecodeOptions) (any, error) {
	switch node := v.(type) {
	case map[string]any:
		if funcID, ok := node[CallKey].(string); ok {
			args, _ := node[ArgsKey].([]any)
			if opts.OnRemoteCall == nil {
				return nil, ErrNoRemoteCaller
			}
			val, err := opts.OnRemoteCall(ctx, funcID, args)
			if err != nil {
				return nil, fmt.Errorf("nested call %s: %w", funcID, err)
			}
			return val, nil
		}
		for k, child := range node {
			resolved, err := resolveCalls(ctx, child, opts)
			if err != nil {
				return nil, err
			}
			node[k] = resolved
		}
		return node, nil
	case []any:
		for i, child := range node {
			resolved, err := resolveCalls(ctx, child, opts)
			if err != nil {
				return nil, err
			}
			node[i] = resolved
		}
		return node, nil
	default:
		return v, nil
	}
}
