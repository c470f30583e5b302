package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRequest     EventType = "request"
	EventCacheHit    EventType = "cache_hit"
	EventPrefetchHit EventType = "prefetch_hit"
	EventRemoteCall  EventType = "remote_call"
	EventDecodeError EventType = "decode_error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// FetchEvent describes one element fetch, whether served from the network,
// the single-entry memo or a consumed prefetch.
type FetchEvent struct {
	EventBase
	Path     string        `json:"path"`
	URL      string        `json:"url,omitempty"`
	Method   string        `json:"method,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// RemoteCallEvent describes one remote function invocation.
type RemoteCallEvent struct {
	EventBase
	FuncID   string        `json:"func_id"`
	Method   string        `json:"method"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for fetch engine observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnRequest     func(context.Context, *FetchEvent)
	OnCacheHit    func(context.Context, *FetchEvent)
	OnPrefetchHit func(context.Context, *FetchEvent)
	OnDecodeError func(context.Context, *FetchEvent)
	OnRemoteCall  func(context.Context, *RemoteCallEvent)
}
