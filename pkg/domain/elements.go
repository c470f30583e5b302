package domain

// Elements is a resolved server response: slot identifier to opaque UI subtree.
// Values are treated as read-only; updates always produce a new Elements.
type Elements map[string]any

// Clone returns a shallow copy of e.
func (e Elements) Clone() Elements {
	out := make(Elements, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Has reports whether id is present.
func (e Elements) Has(id string) bool {
	_, ok := e[id]
	return ok
}

// Value returns the remote-call side-channel value, if any.
func (e Elements) Value() (any, bool) {
	v, ok := e[KeyValue]
	return v, ok
}

// IDs returns the slot identifiers, excluding the reserved side-channel key.
func (e Elements) IDs() []string {
	ids := make([]string, 0, len(e))
	for k := range e {
		if k == KeyValue {
			continue
		}
		ids = append(ids, k)
	}
	return ids
}
