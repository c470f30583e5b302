package ports

import (
	"context"
	"io"

	"github.com/aretw0/canopy/pkg/domain"
)

// RemoteCaller invokes a server-defined function by identifier and returns its value.
type RemoteCaller func(ctx context.Context, funcID string, args []any) (any, error)

// DecodeOptions carries the side channels available while decoding a stream.
type DecodeOptions struct {
	// OnRemoteCall is invoked when the stream itself requests a nested remote call.
	OnRemoteCall RemoteCaller
}

// Decoder turns a response body into a resolved Elements mapping.
// The wire grammar is owned by the implementation.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader, opts DecodeOptions) (domain.Elements, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, r io.Reader, opts DecodeOptions) (domain.Elements, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, r io.Reader, opts DecodeOptions) (domain.Elements, error) {
	return f(ctx, r, opts)
}

// ArgsEncoder serializes remote-call arguments into a request body.
type ArgsEncoder interface {
	Encode(args []any) (body io.Reader, contentType string, err error)
}
