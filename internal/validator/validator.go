package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/middleware"
	"github.com/aretw0/canopy/pkg/rsc"
)

// ValidateConfig checks that every middleware in cfg is registered and can be
// built from its options, and that static fixtures name encodable paths and
// function IDs. All problems are reported together.
func ValidateConfig(cfg *middleware.Config, registry *middleware.Registry) error {
	cfg = middleware.ResolveConfig(cfg)
	if registry == nil {
		registry = middleware.NewDefaultRegistry()
	}

	var problems []string
	if !strings.HasPrefix(cfg.BasePath, "/") {
		problems = append(problems, fmt.Sprintf("base_path must be absolute: '%s'", cfg.BasePath))
	}

	opts := middleware.Options{Cmd: middleware.CmdDev, Config: cfg, Registry: registry, Logger: logging.NewNop()}
	for i, spec := range cfg.Middleware {
		factory, err := registry.Lookup(spec.Name)
		if err != nil {
			problems = append(problems, fmt.Sprintf("middleware[%d]: %v", i, err))
			continue
		}
		if _, err := factory(opts, spec); err != nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] %s: %v", i, spec.Name, err))
			continue
		}
		if spec.Name == middleware.NameStatic {
			problems = append(problems, checkStatic(i, spec)...)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}

func checkStatic(i int, spec middleware.Spec) []string {
	var o middleware.StaticOptions
	if err := middleware.DecodeOptions(spec.Options, &o); err != nil {
		return []string{fmt.Sprintf("middleware[%d] static: %v", i, err)}
	}

	var problems []string
	for _, path := range sortedKeys(o.Pages) {
		if !strings.HasPrefix(path, "/") {
			problems = append(problems, fmt.Sprintf("middleware[%d] static: page path must be absolute: '%s'", i, path))
			continue
		}
		if _, err := rsc.EncodeRSCPath(path); err != nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] static: page '%s': %v", i, path, err))
		}
	}
	for _, id := range sortedKeys(o.Functions) {
		if _, err := rsc.EncodeFuncID(id); err != nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] static: function '%s': %v", i, id, err))
		}
	}
	return problems
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
