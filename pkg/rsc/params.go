package rsc

import (
	"net/url"
	"reflect"
)

// sameParams compares request params the way the single-entry memo and the
// prefetch store require: reference identity for maps, slices, pointers and
// funcs (url.Values included), value equality for everything else.
func sameParams(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}

	if !va.Type().Comparable() {
		return false
	}
	// Structs with interface fields can still panic on ==.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// queryParams reports whether params travel as a GET query string.
func queryParams(params any) (url.Values, bool) {
	q, ok := params.(url.Values)
	return q, ok
}
