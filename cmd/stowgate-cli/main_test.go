package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sagarc03/stowgate"
	"github.com/sagarc03/stowgate/clientcli"
	"github.com/sagarc03/stowgate/filesystem"
	gatehttp "github.com/sagarc03/stowgate/http"
	"github.com/sagarc03/stowgate/keybackend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "s3cret"
	testAccessKey = "AKIASHARE"
	testSecretKey = "sharesecretkey"
)

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()

	root, err := os.OpenRoot(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	store, err := filesystem.NewStore(root)
	require.NoError(t, err)
	service, err := stowgate.NewService(store, stowgate.ServiceConfig{})
	require.NoError(t, err)

	verifier := stowgate.NewPresignVerifier("us-east-1", "s3",
		keybackend.NewMapSecretStore(map[string]string{testAccessKey: testSecretKey}))

	handler := gatehttp.NewHandler(&gatehttp.HandlerConfig{
		Authorizer: stowgate.AnyAuthorizer{
			stowgate.NewSecretAuthorizer(testSecret, ""),
			stowgate.NewPresignAuthorizer(verifier),
		},
		ListEnabled: true,
	}, service)

	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server
}

// run executes the CLI, resetting the global output flags first.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	jsonOutput, quiet = false, false
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err = rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestValidateEndpoint(t *testing.T) {
	assert.NoError(t, validateEndpoint("http://localhost:5708"))
	assert.NoError(t, validateEndpoint("https://files.example.com"))
	assert.ErrorContains(t, validateEndpoint(""), "required")
	assert.ErrorContains(t, validateEndpoint("ftp://x"), "http://")
	assert.ErrorContains(t, validateEndpoint("http://"), "host")
}

func TestBuildConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	file := &clientcli.ConfigFile{Profiles: []clientcli.Profile{
		{Name: "local", Endpoint: "http://localhost:5708", Secret: "local-secret", Default: true},
		{Name: "prod", Endpoint: "https://files.example.com", Secret: "prod-secret", AccessKey: "AKIAPROD", SecretKey: "prodkey"},
	}}
	require.NoError(t, file.Save(path))

	t.Cleanup(func() { cfgFile, profile, endpoint, secret = "", "", "", "" })

	t.Run("default profile", func(t *testing.T) {
		cfgFile = path
		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:5708", cfg.Endpoint)
		assert.Equal(t, "local-secret", cfg.Secret)
	})

	t.Run("named profile from env, flag wins", func(t *testing.T) {
		cfgFile = path
		t.Setenv("STOWGATE_PROFILE", "prod")
		secret = "flag-secret"
		defer func() { secret = "" }()

		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, "https://files.example.com", cfg.Endpoint)
		assert.Equal(t, "flag-secret", cfg.Secret)
		assert.Equal(t, "AKIAPROD", cfg.AccessKey)
	})

	t.Run("unknown profile", func(t *testing.T) {
		cfgFile = path
		profile = "staging"
		defer func() { profile = "" }()

		_, err := buildConfig()
		assert.ErrorIs(t, err, clientcli.ErrProfileNotFound)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := buildConfig()
		assert.Error(t, err)
	})

	t.Run("missing default file is ignored", func(t *testing.T) {
		cfgFile = ""
		t.Setenv("HOME", t.TempDir())
		t.Setenv("STOWGATE_ENDPOINT", "http://env:5708")

		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://env:5708", cfg.Endpoint)
	})
}

func TestCLI_ObjectLifecycle(t *testing.T) {
	server := newGateway(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STOWGATE_ENDPOINT", server.URL)
	t.Setenv("STOWGATE_SECRET", testSecret)
	t.Setenv("STOWGATE_ACCESS_KEY", testAccessKey)
	t.Setenv("STOWGATE_SECRET_KEY", testSecretKey)

	local := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(local, []byte("# hello"), 0o600))

	stdout, _, err := run(t, "upload", "--text", local, "docs/notes.md")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Uploaded: docs/notes.md (7 B, private)")

	// private objects are hidden from anonymous readers
	resp, err := http.Get(server.URL + "/docs/notes.md") //nolint:noctx // test request
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	stdout, _, err = run(t, "share", "-q", "--expires", "10m", "docs/notes.md")
	require.NoError(t, err)
	link := strings.TrimSpace(stdout)
	require.True(t, strings.HasPrefix(link, server.URL+"/docs/notes.md?"))

	resp, err = http.Get(link) //nolint:noctx // test request
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "# hello", string(body))

	stdout, _, err = run(t, "visibility", "--text", "docs/notes.md", "public")
	require.NoError(t, err)
	assert.Equal(t, "Updated: docs/notes.md (public, text)\n", stdout)

	resp, err = http.Get(server.URL + "/docs/notes.md") //nolint:noctx // test request
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, stowgate.ContentTypeText, resp.Header.Get("Content-Type"))

	_, _, err = run(t, "visibility", "docs/notes.md", "hidden")
	assert.ErrorContains(t, err, "invalid visibility")

	stdout, _, err = run(t, "download", "--stdout", "docs/notes.md")
	require.NoError(t, err)
	assert.Equal(t, "# hello", stdout)

	stdout, _, err = run(t, "--json", "list", "docs/")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"key": "docs/notes.md"`)

	stdout, _, err = run(t, "delete", "docs/notes.md")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Deleted: docs/notes.md")

	_, stderr, err := run(t, "download", "--stdout", "docs/notes.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, clientcli.ErrNotFound)
	assert.Contains(t, stderr, "404")
}

func TestCLI_UploadWithoutSecret(t *testing.T) {
	server := newGateway(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STOWGATE_ENDPOINT", server.URL)

	local := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(local, []byte("a"), 0o600))

	_, stderr, err := run(t, "upload", local, "a.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, clientcli.ErrUnauthorized)
	assert.Contains(t, stderr, "401")
}

func TestConfigure_ListAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { cfgFile = "" })

	stdout, _, err := run(t, "--config", path, "configure", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No profiles configured.")

	file := &clientcli.ConfigFile{Profiles: []clientcli.Profile{
		{Name: "local", Endpoint: "http://localhost:5708", Secret: "local-secret-value"},
		{Name: "prod", Endpoint: "https://files.example.com", Default: true},
	}}
	require.NoError(t, file.Save(path))

	stdout, _, err = run(t, "--config", path, "configure", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "* prod")
	assert.Contains(t, stdout, "loca...alue")

	_, _, err = run(t, "--config", path, "configure", "set-default", "local")
	require.NoError(t, err)

	stdout, _, err = run(t, "--config", path, "configure", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Name:       local (default)")
	assert.NotContains(t, stdout, "local-secret-value")
}
