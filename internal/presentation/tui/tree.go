package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/canopy/pkg/domain"
)

// TreePrinter writes resolved element trees as an indented outline.
// Slot names, keys and scalar values are colored per the terminal's profile.
type TreePrinter struct {
	w       io.Writer
	profile termenv.Profile
}

// NewTreePrinter creates a printer for w. Pass termenv.Ascii to disable color.
func NewTreePrinter(w io.Writer, profile termenv.Profile) *TreePrinter {
	return &TreePrinter{w: w, profile: profile}
}

// NewAutoTreePrinter detects the color profile from the environment.
func NewAutoTreePrinter(w io.Writer) *TreePrinter {
	return NewTreePrinter(w, termenv.EnvColorProfile())
}

func (p *TreePrinter) style(s, color string) termenv.Style {
	return p.profile.String(s).Foreground(p.profile.Color(color))
}

// Print writes tree, one slot per top-level line. The side-channel value is
// printed first under its reserved key when present.
func (p *TreePrinter) Print(tree domain.Elements) {
	if v, ok := tree[domain.KeyValue]; ok {
		fmt.Fprintf(p.w, "%s %s\n", p.style(domain.KeyValue, "#f59e0b").Bold(), p.scalar(v))
	}
	for _, id := range sortedKeys(tree) {
		if id == domain.KeyValue {
			continue
		}
		p.node(p.style(id, "#10b981").Bold().String(), tree[id], 0)
	}
}

// PrintDiff writes one line per changed slot, prefixed with +, - or ~.
func (p *TreePrinter) PrintDiff(diff *domain.ElementsDiff) {
	if diff == nil {
		fmt.Fprintln(p.w, p.style("no changes", "#6b7280"))
		return
	}
	for _, id := range diff.Added {
		fmt.Fprintln(p.w, p.style("+ "+id, "#22c55e"))
	}
	for _, id := range diff.Removed {
		fmt.Fprintln(p.w, p.style("- "+id, "#ef4444"))
	}
	for _, id := range diff.Changed {
		fmt.Fprintln(p.w, p.style("~ "+id, "#eab308"))
	}
}

func (p *TreePrinter) node(label string, v any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch val := v.(type) {
	case map[string]any:
		fmt.Fprintf(p.w, "%s%s\n", indent, label)
		for _, k := range sortedKeys(val) {
			p.node(p.style(k, "#60a5fa").String(), val[k], depth+1)
		}
	case []any:
		fmt.Fprintf(p.w, "%s%s %s\n", indent, label, p.style(fmt.Sprintf("[%d]", len(val)), "#6b7280"))
		for i, item := range val {
			p.node(p.style(fmt.Sprintf("%d", i), "#6b7280").String(), item, depth+1)
		}
	default:
		fmt.Fprintf(p.w, "%s%s %s\n", indent, label, p.scalar(val))
	}
}

func (p *TreePrinter) scalar(v any) termenv.Style {
	switch val := v.(type) {
	case string:
		return p.style(fmt.Sprintf("%q", val), "#fbbf24")
	case json.Number, float64, int, int64, bool:
		return p.style(fmt.Sprint(val), "#c084fc")
	case nil:
		return p.style("null", "#6b7280")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return p.style(fmt.Sprint(v), "#e5e7eb")
	}
	return p.style(string(data), "#e5e7eb")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
