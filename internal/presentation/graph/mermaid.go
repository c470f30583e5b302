package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// RootID is the Mermaid node every slot hangs off.
const RootID = "root"

// GenerateMermaid produces a Mermaid flowchart of a resolved tree: the root,
// one node per slot and, below each slot, the keys of a map-valued subtree.
// Slots listed in diff are styled as added or changed.
// Shapes:
//   - root: ((Circle))
//   - map-valued slot: [[Subroutine]]
//   - leaf slot: [Rectangle]
func GenerateMermaid(tree domain.Elements, diff *domain.ElementsDiff) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", RootID, RootID)

	for _, id := range sortedKeys(tree) {
		if id == domain.KeyValue {
			continue
		}
		safeID := "slot_" + sanitizeMermaidID(id)
		children, nested := tree[id].(map[string]any)

		opener, closer := "[", "]"
		if nested {
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(id), closer)
		fmt.Fprintf(&sb, "    %s --> %s\n", RootID, safeID)

		for _, key := range sortedKeys(children) {
			child := safeID + "__" + sanitizeMermaidID(key)
			fmt.Fprintf(&sb, "    %s(\"%s\")\n", child, escapeLabel(key))
			fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, child)
		}
	}

	if diff != nil {
		sb.WriteString("\n    %% Diff Styles\n")
		// Black text keeps labels readable on both light and dark themes.
		sb.WriteString("    classDef added fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef changed fill:#fff8e1,stroke:#f9a825,stroke-width:3px,color:#000;\n")
		for _, id := range diff.Added {
			if _, ok := tree[id]; ok {
				fmt.Fprintf(&sb, "    class slot_%s added;\n", sanitizeMermaidID(id))
			}
		}
		for _, id := range diff.Changed {
			if _, ok := tree[id]; ok {
				fmt.Fprintf(&sb, "    class slot_%s changed;\n", sanitizeMermaidID(id))
			}
		}
	}

	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, id)
}
