package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sagarc03/stowgate/clientcli"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	cfgFile    string
	profile    string
	endpoint   string
	secret     string
	accessKey  string
	secretKey  string
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "stowgate-cli",
	Version: version,
	Short:   "Client for the stowgate object gateway",
	Long: `stowgate-cli - Client for the stowgate object gateway

Uploads, downloads, lists and deletes objects, changes their visibility and
creates share links for private objects.

Mutations need the server's shared secret (--secret). Share links are signed
locally with an access key pair the server knows (--access-key/--secret-key).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.stowgate/config.yaml, env: STOWGATE_CONFIG)")
	flags.StringVarP(&profile, "profile", "p", "", "profile name (default: the default profile, env: STOWGATE_PROFILE)")
	flags.StringVarP(&endpoint, "endpoint", "e", "", "server URL (default: http://localhost:5708, env: STOWGATE_ENDPOINT)")
	flags.StringVarP(&secret, "secret", "s", "", "shared secret (env: STOWGATE_SECRET)")
	flags.StringVarP(&accessKey, "access-key", "a", "", "access key for share links (env: STOWGATE_ACCESS_KEY)")
	flags.StringVarP(&secretKey, "secret-key", "k", "", "secret key for share links (env: STOWGATE_SECRET_KEY)")
	flags.BoolVar(&jsonOutput, "json", false, "output as JSON")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(visibilityCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(configureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// getConfigPath resolves the profiles file: flag, then env, then default.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := clientcli.ConfigPathFromEnv(); p != "" {
		return p
	}
	return clientcli.DefaultConfigPath()
}

// buildConfig merges the selected profile, env vars and flags, in increasing
// precedence.
func buildConfig() (*clientcli.Config, error) {
	var configs []*clientcli.Config

	profileName := profile
	if profileName == "" {
		profileName = clientcli.ProfileFromEnv()
	}
	explicit := profileName != "" || cfgFile != ""

	if configPath := getConfigPath(); configPath != "" {
		file, err := clientcli.LoadConfigFile(configPath)
		switch {
		case err == nil:
			p, profileErr := file.GetProfile(profileName)
			if profileErr != nil && (explicit || !errors.Is(profileErr, clientcli.ErrNoProfiles)) {
				return nil, profileErr
			}
			configs = append(configs, clientcli.ConfigFromProfile(p))
		case explicit:
			// a missing default file is fine, a missing requested one is not
			return nil, err
		}
	}

	configs = append(configs,
		clientcli.ConfigFromEnv(),
		&clientcli.Config{
			Endpoint:  endpoint,
			Secret:    secret,
			AccessKey: accessKey,
			SecretKey: secretKey,
		},
	)

	return clientcli.MergeConfig(configs...), nil
}

func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}

func getClient() (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	return clientcli.New(cfg)
}

// handleError prints err with the active formatter and returns an exitError
// so that it is not printed twice.
func handleError(w io.Writer, err error) error {
	_ = getFormatter().FormatError(w, err)
	return &exitError{code: 1, err: err}
}

// exitError is returned when we want to exit with a specific code
// but don't want the error printed again.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}
