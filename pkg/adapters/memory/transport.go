package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// Transport answers RSC requests from an in-memory map of raw bodies keyed by
// URL path. It satisfies rsc.FetchFunc through its Fetch method.
type Transport struct {
	bodies map[string][]byte
}

// NewTransport creates a Transport from raw JSON strings keyed by URL path.
func NewTransport(data map[string]string) *Transport {
	bodies := make(map[string][]byte)
	for k, v := range data {
		bodies[k] = []byte(v)
	}
	return &Transport{bodies: bodies}
}

// NewFromElements creates a Transport from trees keyed by URL path.
// This handles serialization automatically.
func NewFromElements(trees map[string]any) (*Transport, error) {
	bodies := make(map[string][]byte)
	for path, tree := range trees {
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("path must be absolute: %s", path)
		}
		data, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal elements for %s: %w", path, err)
		}
		bodies[path] = data
	}
	return &Transport{bodies: bodies}, nil
}

// Fetch serves req from memory. Unknown paths answer 404.
func (t *Transport) Fetch(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	body, ok := t.bodies[req.URL.Path]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
		body = []byte(fmt.Sprintf("not found: %s", req.URL.Path))
	}
	return &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, nil
}

// Paths returns all served paths.
func (t *Transport) Paths() []string {
	keys := make([]string, 0, len(t.bodies))
	for k := range t.bodies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
