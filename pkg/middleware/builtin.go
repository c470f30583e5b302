package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/canopy/pkg/codec"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/rsc"
)

// Built-in middleware names.
const (
	NameRequestID = "requestid"
	NameHeaders   = "headers"
	NameLogger    = "logger"
	NameStatic    = "static"
)

// ContextRequestID is the side-channel key holding the request ID.
const ContextRequestID = "request_id"

// RequestIDOptions configures the requestid middleware.
type RequestIDOptions struct {
	Header string `mapstructure:"header"`
}

// RequestID tags every request with an ID, reusing an incoming one when present.
// The ID is stored under ContextRequestID and echoed on written responses.
func RequestID(_ Options, spec Spec) (Handler, error) {
	o := RequestIDOptions{Header: "X-Request-Id"}
	if err := DecodeOptions(spec.Options, &o); err != nil {
		return nil, err
	}
	header := http.CanonicalHeaderKey(o.Header)

	return func(ctx context.Context, hc *HandlerContext, next Next) error {
		id := hc.Req.Headers[header]
		if id == "" {
			id = uuid.NewString()
		}
		hc.Context[ContextRequestID] = id
		if err := next(ctx); err != nil {
			return err
		}
		if hc.Res.Written() {
			hc.Res.SetHeader(header, id)
		}
		return nil
	}, nil
}

// HeadersOptions configures the headers middleware.
type HeadersOptions struct {
	Set map[string]string `mapstructure:"set"`
}

// Headers adds fixed headers to every written response.
func Headers(_ Options, spec Spec) (Handler, error) {
	var o HeadersOptions
	if err := DecodeOptions(spec.Options, &o); err != nil {
		return nil, err
	}

	return func(ctx context.Context, hc *HandlerContext, next Next) error {
		if err := next(ctx); err != nil {
			return err
		}
		if !hc.Res.Written() {
			return nil
		}
		for k, v := range o.Set {
			hc.Res.SetHeader(k, v)
		}
		return nil
	}, nil
}

// LoggerOptions configures the logger middleware.
type LoggerOptions struct {
	Level string `mapstructure:"level"`
}

// Logger logs one line per request once the rest of the chain has run.
func Logger(opts Options, spec Spec) (Handler, error) {
	o := LoggerOptions{Level: "info"}
	if err := DecodeOptions(spec.Options, &o); err != nil {
		return nil, err
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}
	logger := opts.Logger

	return func(ctx context.Context, hc *HandlerContext, next Next) error {
		start := time.Now()
		err := next(ctx)

		attrs := []any{
			"method", hc.Req.Method,
			"path", hc.Req.URL.Path,
			"status", hc.Res.Status,
			"duration", time.Since(start),
		}
		if id, ok := hc.Context[ContextRequestID]; ok {
			attrs = append(attrs, "request_id", id)
		}
		if err != nil {
			logger.Error("Request failed", append(attrs, "err", err)...)
			return err
		}
		logger.Log(ctx, level, "Request handled", attrs...)
		return nil
	}, nil
}

// StaticOptions configures the static middleware. Pages are keyed by element
// path ("/", "/about"), functions by ID ("file#name"). File names a YAML
// document with the same two keys, merged under the inline entries.
type StaticOptions struct {
	File      string                    `mapstructure:"file"`
	Pages     map[string]map[string]any `mapstructure:"pages"`
	Functions map[string]map[string]any `mapstructure:"functions"`
}

type staticFixture struct {
	Pages     map[string]map[string]any `yaml:"pages"`
	Functions map[string]map[string]any `yaml:"functions"`
}

// Static answers RSC requests from fixed element trees. A function fixture
// without a "_value" echoes the decoded call arguments as its value.
// Unknown paths fall through to the rest of the chain.
func Static(opts Options, spec Spec) (Handler, error) {
	var o StaticOptions
	if err := DecodeOptions(spec.Options, &o); err != nil {
		return nil, err
	}
	fixture := staticFixture{
		Pages:     map[string]map[string]any{},
		Functions: map[string]map[string]any{},
	}
	if o.File != "" {
		data, err := os.ReadFile(o.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read static fixture: %w", err)
		}
		if err := yaml.Unmarshal(data, &fixture); err != nil {
			return nil, fmt.Errorf("failed to parse static fixture: %w", err)
		}
		if fixture.Pages == nil {
			fixture.Pages = map[string]map[string]any{}
		}
		if fixture.Functions == nil {
			fixture.Functions = map[string]map[string]any{}
		}
	}
	for k, v := range o.Pages {
		fixture.Pages[k] = v
	}
	for k, v := range o.Functions {
		fixture.Functions[k] = v
	}

	cfg := ResolveConfig(opts.Config)
	base := rsc.BasePath(cfg.BasePath, cfg.RSCBase)

	return func(ctx context.Context, hc *HandlerContext, next Next) error {
		encoded, ok := strings.CutPrefix(hc.Req.URL.Path, base)
		if !ok {
			return next(ctx)
		}

		var tree domain.Elements
		if funcID, isFunc := rsc.DecodeFuncID(strings.TrimSuffix(encoded, ".txt")); isFunc {
			fn, found := fixture.Functions[funcID]
			if !found {
				return next(ctx)
			}
			tree = domain.Elements(fn).Clone()
			if !tree.Has(domain.KeyValue) {
				args, err := staticArgs(hc.Req)
				if err != nil {
					return err
				}
				tree[domain.KeyValue] = args
			}
		} else {
			path, err := rsc.DecodeRSCPath(encoded)
			if err != nil {
				return next(ctx)
			}
			page, found := fixture.Pages[path]
			if !found {
				return next(ctx)
			}
			tree = domain.Elements(page)
		}

		body, err := json.Marshal(tree)
		if err != nil {
			return fmt.Errorf("static: encode elements: %w", err)
		}
		hc.Res.Body = bytes.NewReader(body)
		hc.Res.Status = http.StatusOK
		hc.Res.SetHeader("Content-Type", "application/json")
		return nil
	}, nil
}

func staticArgs(req *Request) ([]any, error) {
	if req.Method == http.MethodGet {
		return []any{req.URL.Query()}, nil
	}
	return codec.DecodeArgsFrom(req.Headers["Content-Type"], req.Body)
}
