package clientcli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sagarc03/stowgate/clientcli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := (&clientcli.Config{}).WithDefaults()
	assert.Equal(t, clientcli.DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, clientcli.DefaultRegion, cfg.Region)
	assert.Equal(t, clientcli.DefaultService, cfg.Service)

	orig := &clientcli.Config{Endpoint: "https://files.example.com", Region: "eu-west-1"}
	cfg = orig.WithDefaults()
	assert.Equal(t, "https://files.example.com", cfg.Endpoint)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Empty(t, orig.Service, "original is not mutated")
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, (&clientcli.Config{}).ValidateWithSecret(), clientcli.ErrSecretRequired)
	assert.NoError(t, (&clientcli.Config{Secret: "s"}).ValidateWithSecret())

	assert.ErrorIs(t, (&clientcli.Config{SecretKey: "s"}).ValidateForShare(), clientcli.ErrAccessKeyRequired)
	assert.ErrorIs(t, (&clientcli.Config{AccessKey: "a"}).ValidateForShare(), clientcli.ErrSecretKeyRequired)
	assert.NoError(t, (&clientcli.Config{AccessKey: "a", SecretKey: "s"}).ValidateForShare())
}

func TestConfigFile_Profiles(t *testing.T) {
	cf := &clientcli.ConfigFile{}

	_, err := cf.GetProfile("")
	assert.ErrorIs(t, err, clientcli.ErrNoProfiles)

	require.NoError(t, cf.AddProfile(clientcli.Profile{Name: "local", Endpoint: "http://localhost:5708"}))
	require.NoError(t, cf.AddProfile(clientcli.Profile{Name: "prod", Endpoint: "https://files.example.com", Secret: "s3cret"}))
	assert.ErrorIs(t, cf.AddProfile(clientcli.Profile{Name: "prod"}), clientcli.ErrProfileExists)

	p, err := cf.GetProfile("")
	require.NoError(t, err)
	assert.Equal(t, "local", p.Name, "first profile is the default when none is marked")

	require.NoError(t, cf.SetDefault("prod"))
	p, err = cf.GetDefaultProfile()
	require.NoError(t, err)
	assert.Equal(t, "prod", p.Name)
	assert.False(t, cf.Profiles[0].Default)

	assert.ErrorIs(t, cf.SetDefault("missing"), clientcli.ErrProfileNotFound)

	require.NoError(t, cf.UpdateProfile(clientcli.Profile{Name: "local", Endpoint: "http://127.0.0.1:5708"}))
	p, err = cf.GetProfile("local")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5708", p.Endpoint)
	assert.ErrorIs(t, cf.UpdateProfile(clientcli.Profile{Name: "missing"}), clientcli.ErrProfileNotFound)

	assert.Equal(t, []string{"local", "prod"}, cf.ProfileNames())

	require.NoError(t, cf.RemoveProfile("local"))
	assert.ErrorIs(t, cf.RemoveProfile("local"), clientcli.ErrProfileNotFound)
	_, err = cf.GetProfile("local")
	assert.ErrorIs(t, err, clientcli.ErrProfileNotFound)
}

func TestConfigFile_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cf := &clientcli.ConfigFile{Profiles: []clientcli.Profile{
		{
			Name:      "prod",
			Endpoint:  "https://files.example.com",
			Secret:    "s3cret",
			AccessKey: "AKIASHARE",
			SecretKey: "sharesecret",
			Region:    "eu-west-1",
			Default:   true,
		},
	}}
	require.NoError(t, cf.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := clientcli.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, cf.Profiles, loaded.Profiles)

	cfg := clientcli.ConfigFromProfile(&loaded.Profiles[0])
	assert.Equal(t, "https://files.example.com", cfg.Endpoint)
	assert.Equal(t, "s3cret", cfg.Secret)
	assert.Equal(t, "AKIASHARE", cfg.AccessKey)
	assert.Equal(t, "sharesecret", cfg.SecretKey)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	_, err := clientcli.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [unclosed"), 0o600))
	_, err = clientcli.LoadConfigFile(path)
	assert.ErrorContains(t, err, "parse config file")
}

func TestConfigFromProfile_Nil(t *testing.T) {
	assert.Equal(t, &clientcli.Config{}, clientcli.ConfigFromProfile(nil))
}

func TestMergeConfig(t *testing.T) {
	merged := clientcli.MergeConfig(
		&clientcli.Config{Endpoint: "http://profile", Secret: "profile-secret", Region: "us-east-1"},
		nil,
		&clientcli.Config{Secret: "env-secret"},
		&clientcli.Config{Endpoint: "http://flag", AccessKey: "AKIA", SecretKey: "sk", Service: "s3"},
	)

	assert.Equal(t, &clientcli.Config{
		Endpoint:  "http://flag",
		Secret:    "env-secret",
		AccessKey: "AKIA",
		SecretKey: "sk",
		Region:    "us-east-1",
		Service:   "s3",
	}, merged)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STOWGATE_ENDPOINT", "http://env:5708")
	t.Setenv("STOWGATE_SECRET", "env-secret")
	t.Setenv("STOWGATE_ACCESS_KEY", "AKIAENV")
	t.Setenv("STOWGATE_SECRET_KEY", "envsecretkey")
	t.Setenv("STOWGATE_REGION", "ap-south-1")
	t.Setenv("STOWGATE_PROFILE", "staging")
	t.Setenv("STOWGATE_CONFIG", "/tmp/stowgate.yaml")

	cfg := clientcli.ConfigFromEnv()
	assert.Equal(t, "http://env:5708", cfg.Endpoint)
	assert.Equal(t, "env-secret", cfg.Secret)
	assert.Equal(t, "AKIAENV", cfg.AccessKey)
	assert.Equal(t, "envsecretkey", cfg.SecretKey)
	assert.Equal(t, "ap-south-1", cfg.Region)
	assert.Equal(t, "staging", clientcli.ProfileFromEnv())
	assert.Equal(t, "/tmp/stowgate.yaml", clientcli.ConfigPathFromEnv())
}
