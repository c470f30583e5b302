package middleware

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Request is the read-only view of the incoming request.
// Body is never nil; an absent body is http.NoBody.
type Request struct {
	Body    io.Reader
	URL     *url.URL
	Method  string
	Headers map[string]string
}

// Response is filled in by handlers. All fields start unset.
type Response struct {
	Body    io.Reader
	Status  int
	Headers map[string]string
}

// Written reports whether any handler produced a response.
func (r *Response) Written() bool {
	return r.Body != nil || r.Status != 0
}

// SetHeader sets a response header, allocating the map on first use.
func (r *Response) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
}

// HandlerContext is the per-request state shared by every handler in the chain.
// Context is a side channel for host-specific values.
type HandlerContext struct {
	Req     *Request
	Res     *Response
	Context map[string]any
}

// NewHandlerContext builds a context for one request. A nil body becomes http.NoBody.
func NewHandlerContext(method string, u *url.URL, headers map[string]string, body io.Reader) *HandlerContext {
	if body == nil {
		body = http.NoBody
	}
	if headers == nil {
		headers = map[string]string{}
	}
	return &HandlerContext{
		Req: &Request{
			Body:    body,
			URL:     u,
			Method:  method,
			Headers: headers,
		},
		Res:     &Response{},
		Context: make(map[string]any),
	}
}

// Next continues the chain. Only the first call has an effect.
type Next func(ctx context.Context) error

// Handler is one link of the chain.
type Handler func(ctx context.Context, hc *HandlerContext, next Next) error

// Factory builds a Handler from the runner options and its own config entry.
type Factory func(opts Options, spec Spec) (Handler, error)
