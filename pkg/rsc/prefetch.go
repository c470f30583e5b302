package rsc

import (
	"sync"
)

type prefetchEntry struct {
	resp *Response
	// tagged is false for seeded entries that were never associated with params.
	tagged bool
	params any
}

// PrefetchStore maps fully-qualified request URLs to in-flight responses.
// It is shared by every session of one Runtime. Each entry is consumed at most once.
type PrefetchStore struct {
	mu      sync.Mutex
	entries map[string]*prefetchEntry
}

// NewPrefetchStore creates an empty store.
func NewPrefetchStore() *PrefetchStore {
	return &PrefetchStore{
		entries: make(map[string]*prefetchEntry),
	}
}

// Seed stores a response that is not associated with any params, such as one
// issued during initial page load before params were known. It never overwrites
// an existing entry.
func (s *PrefetchStore) Seed(url string, resp *Response) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[url]; exists {
		return false
	}
	s.entries[url] = &prefetchEntry{resp: resp}
	return true
}

// start stores the response produced by issue, tagged with params, unless an
// entry already exists for url. issue runs under the lock so a URL is requested once.
func (s *PrefetchStore) start(url string, params any, issue func() *Response) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[url]; exists {
		return false
	}
	s.entries[url] = &prefetchEntry{resp: issue(), tagged: true, params: params}
	return true
}

// consume removes the entry for url unconditionally and returns its response
// if it may serve params: the entry was never associated with params, or its
// params match. A removed entry that cannot serve is discarded.
func (s *PrefetchStore) consume(url string, params any) (*Response, bool) {
	s.mu.Lock()
	entry, exists := s.entries[url]
	delete(s.entries, url)
	s.mu.Unlock()

	if !exists {
		return nil, false
	}
	if !entry.tagged || sameParams(entry.params, params) {
		return entry.resp, true
	}
	entry.resp.discard()
	return nil, false
}

// Has reports whether an unconsumed entry exists for url.
func (s *PrefetchStore) Has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.entries[url]
	return exists
}

// Len returns the number of unconsumed entries.
func (s *PrefetchStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear drops every entry and releases their responses.
func (s *PrefetchStore) Clear() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*prefetchEntry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.resp.discard()
	}
}
