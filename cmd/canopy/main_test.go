package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/testutils"
	"github.com/aretw0/canopy/pkg/adapters/file"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	base := []string{"--env-file", filepath.Join(t.TempDir(), "none.env"), "--config", filepath.Join(t.TempDir(), "none.yaml")}
	rootCmd.SetArgs(append(args[:1:1], append(base, args[1:]...)...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newServer(t *testing.T) *testutils.RSCServer {
	srv := testutils.NewRSCServer(t)
	srv.Handle("/RSC/_/_.txt", http.StatusOK, `{"App":"home","Nav":"menu"}`)
	srv.Handle("/RSC/_/about.txt", http.StatusOK, `{"App":"about"}`)
	srv.Handle("/RSC/F/actions/submit.txt", http.StatusOK, `{"_value":{"ok":true},"Toast":"saved"}`)
	return srv
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "canopy version "+canopy.Version+"\n", out)
}

func TestFetch_JSON(t *testing.T) {
	srv := newServer(t)
	out, err := runCLI(t, "fetch", "--origin", srv.URL, "-o", "json", "--diff=false", "/")
	require.NoError(t, err)

	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	assert.Equal(t, "home", tree["App"])
}

func TestFetch_NavigateDiff(t *testing.T) {
	srv := newServer(t)
	out, err := runCLI(t, "fetch", "--origin", srv.URL, "-o", "json", "--diff", "/", "/about")
	require.NoError(t, err)
	assert.Contains(t, out, "--- /about\n~ App\n")
}

func TestFetch_MissingOrigin(t *testing.T) {
	t.Setenv("CANOPY_ORIGIN", "")
	_, err := runCLI(t, "fetch", "--origin", "", "/")
	assert.Error(t, err)
}

func TestCall_PersistsSession(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	t.Setenv("CANOPY_REDIS_ADDR", "")
	t.Setenv("CANOPY_PII_KEYS", "")
	t.Setenv("CANOPY_ENCRYPTION_KEY", "")

	out, err := runCLI(t, "call", "--origin", srv.URL, "--dir", dir, "-s", "s1", "-o", "json", "--query=false", "actions#submit", `"x"`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)

	snap, err := file.New(dir).Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "saved", snap.Elements["Toast"])
	assert.Equal(t, "menu", snap.Elements["Nav"])
}

func TestParseCallArgs(t *testing.T) {
	args, err := parseCallArgs([]string{"42", "plain", `{"a":1}`}, false)
	require.NoError(t, err)
	assert.Equal(t, []any{float64(42), "plain", map[string]any{"a": float64(1)}}, args)

	args, err = parseCallArgs([]string{"q=x", "q=y&page=2"}, true)
	require.NoError(t, err)
	assert.Equal(t, []any{url.Values{"q": {"x", "y"}, "page": {"2"}}}, args)
}

func TestValidate_Defaults(t *testing.T) {
	out, err := runCLI(t, "validate")
	require.NoError(t, err)
	assert.Equal(t, "Configuration is valid.\n", out)
}
