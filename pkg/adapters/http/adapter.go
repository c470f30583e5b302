package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/middleware"
)

// Side-channel keys under which the adapter stashes the host objects.
const (
	hostRequestKey = "__http_request"
	hostWriterKey  = "__http_response_writer"
)

// AdapterOption configures Middleware.
type AdapterOption func(*adapter)

// WithLogger sets the logger used to report chain failures.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *adapter) {
		a.logger = logger
	}
}

type adapter struct {
	runner *middleware.Runner
	logger *slog.Logger
}

// Middleware mounts runner in front of next. When the chain leaves a response
// it is written with status 200 unless one was set; otherwise next serves the
// request. Chain errors become a 500.
func Middleware(runner *middleware.Runner, opts ...AdapterOption) func(http.Handler) http.Handler {
	a := &adapter{runner: runner, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a.wrap
}

func (a *adapter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hc := NewHandlerContext(w, r)
		if err := a.runner.Run(r.Context(), hc); err != nil {
			a.logger.Error("Middleware chain failed", "method", r.Method, "path", r.URL.Path, "err", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if !hc.Res.Written() {
			next.ServeHTTP(w, r)
			return
		}
		if err := WriteResponse(w, hc.Res); err != nil {
			a.logger.Warn("Failed to write response", "path", r.URL.Path, "err", err)
		}
	})
}

// NewHandlerContext translates r into a host-neutral context. Headers keep
// their first value under the canonical key; the full URL is rebuilt from Host.
func NewHandlerContext(w http.ResponseWriter, r *http.Request) *middleware.HandlerContext {
	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[http.CanonicalHeaderKey(k)] = v[0]
		}
	}

	u := *r.URL
	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" {
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
	}

	var body io.Reader = r.Body
	if r.Body == nil {
		body = http.NoBody
	}
	hc := middleware.NewHandlerContext(r.Method, &u, headers, body)
	hc.Context[hostRequestKey] = r
	hc.Context[hostWriterKey] = w
	return hc
}

// WriteResponse copies res onto w.
func WriteResponse(w http.ResponseWriter, res *middleware.Response) error {
	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if res.Body == nil {
		return nil
	}
	if c, ok := res.Body.(io.Closer); ok {
		defer c.Close()
	}
	_, err := io.Copy(w, res.Body)
	return err
}

// HostRequest returns the *http.Request behind hc.
func HostRequest(hc *middleware.HandlerContext) (*http.Request, error) {
	r, ok := hc.Context[hostRequestKey].(*http.Request)
	if !ok {
		return nil, domain.ErrHostContext
	}
	return r, nil
}

// HostResponseWriter returns the http.ResponseWriter behind hc.
func HostResponseWriter(hc *middleware.HandlerContext) (http.ResponseWriter, error) {
	w, ok := hc.Context[hostWriterKey].(http.ResponseWriter)
	if !ok {
		return nil, domain.ErrHostContext
	}
	return w, nil
}
