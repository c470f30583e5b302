package domain

import (
	"reflect"
	"sort"
)

// ElementsDiff represents the changes between two resolved trees.
// It is designed to be serialized to JSON for change notifications.
type ElementsDiff struct {
	// Added lists slot IDs present only in the new tree.
	Added []string `json:"added,omitempty"`

	// Removed lists slot IDs present only in the old tree.
	Removed []string `json:"removed,omitempty"`

	// Changed lists slot IDs present in both with a different subtree.
	Changed []string `json:"changed,omitempty"`
}

// Diff calculates the difference between oldTree and newTree.
// If oldTree is nil, every slot of newTree is reported as added (initial load).
// The reserved side-channel key is ignored. Returns nil when nothing changed.
func Diff(oldTree, newTree Elements) *ElementsDiff {
	diff := &ElementsDiff{}

	for k, newVal := range newTree {
		if k == KeyValue {
			continue
		}
		oldVal, exists := oldTree[k]
		if !exists {
			diff.Added = append(diff.Added, k)
		} else if !reflect.DeepEqual(oldVal, newVal) {
			diff.Changed = append(diff.Changed, k)
		}
	}

	for k := range oldTree {
		if k == KeyValue {
			continue
		}
		if _, exists := newTree[k]; !exists {
			diff.Removed = append(diff.Removed, k)
		}
	}

	if diff.IsEmpty() {
		return nil
	}

	// Map iteration order is random; keep the output stable for consumers.
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Changed)
	return diff
}

// IsEmpty checks if the diff contains any changes.
func (d *ElementsDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}
