package rsc

import (
	"context"
	"io"
	"net/http"
	"sync"
)

// FetchFunc performs one HTTP round trip. http.Client.Do satisfies it.
type FetchFunc func(req *http.Request) (*http.Response, error)

// EnhanceFetch wraps the transport, e.g. to add headers or record requests.
type EnhanceFetch func(FetchFunc) FetchFunc

// Response is an in-flight or completed HTTP response.
type Response struct {
	done chan struct{}
	once sync.Once
	resp *http.Response
	err  error
}

func newResponse() *Response {
	return &Response{done: make(chan struct{})}
}

// ResponseOf returns an already completed Response, e.g. for hydration.
func ResponseOf(resp *http.Response, err error) *Response {
	r := newResponse()
	r.settle(resp, err)
	return r
}

func (r *Response) settle(resp *http.Response, err error) {
	r.once.Do(func() {
		r.resp, r.err = resp, err
		close(r.done)
	})
}

// Wait blocks until the response arrives or ctx is done.
func (r *Response) Wait(ctx context.Context) (*http.Response, error) {
	select {
	case <-r.done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// discard closes the body of a response nobody will read.
func (r *Response) discard() {
	go func() {
		<-r.done
		if r.resp != nil && r.resp.Body != nil {
			_, _ = io.Copy(io.Discard, r.resp.Body)
			r.resp.Body.Close()
		}
	}()
}
