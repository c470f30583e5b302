package validator

import (
	"strings"
	"testing"

	"github.com/aretw0/canopy/pkg/middleware"
)

func TestValidateConfig(t *testing.T) {
	// Scenario A: defaults are valid
	if err := ValidateConfig(nil, nil); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}

	// Scenario B: valid static chain
	valid, err := middleware.ParseConfig([]byte(`
middleware:
  - name: requestid
  - name: static
    options:
      pages:
        /: {App: home}
        /about: {App: about}
      functions:
        actions#submit: {_value: 1}
`))
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateConfig(valid, nil); err != nil {
		t.Errorf("Expected valid config, got: %v", err)
	}

	// Scenario C: every problem is reported
	broken, err := middleware.ParseConfig([]byte(`
base_path: app
middleware:
  - name: nope
  - name: logger
    options:
      level: {nested: true}
  - name: static
    options:
      pages:
        about: {App: about}
        /draft_: {App: draft}
      functions:
        submit: {}
`))
	if err != nil {
		t.Fatal(err)
	}
	err = ValidateConfig(broken, nil)
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"found 6 errors",
		"base_path must be absolute",
		"middleware not found: nope",
		"middleware[1] logger",
		"page path must be absolute: 'about'",
		"page '/draft_'",
		"function 'submit'",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected error to mention %q, got:\n%s", want, msg)
		}
	}
}
