package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
)

// Output formats accepted by --output.
const (
	OutputTree    = "tree"
	OutputJSON    = "json"
	OutputMermaid = "mermaid"
)

// WriteTree renders tree to w in the given format.
func WriteTree(w io.Writer, tree domain.Elements, format string) error {
	switch format {
	case "", OutputTree:
		tui.NewAutoTreePrinter(w).Print(tree)
		return nil
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	case OutputMermaid:
		_, err := io.WriteString(w, graph.GenerateMermaid(tree, nil))
		return err
	}
	return fmt.Errorf("unknown output format: %q", format)
}

// WriteValue renders a remote call result.
func WriteValue(w io.Writer, value any, format string) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	if s, ok := value.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
