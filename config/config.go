package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/stowgate/backend"
	stowgatehttp "github.com/sagarc03/stowgate/http"
	"github.com/sagarc03/stowgate/keybackend"
	"github.com/sagarc03/stowgate/tracing"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STOWGATE"

type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration of the stowgate server.
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Backend  backend.Config          `mapstructure:"backend"`
	Auth     AuthConfig              `mapstructure:"auth"`
	Metadata MetadataConfig          `mapstructure:"metadata"`
	Delete   DeleteConfig            `mapstructure:"delete"`
	CORS     stowgatehttp.CORSConfig `mapstructure:"cors"`
	Metrics  MetricsConfig           `mapstructure:"metrics"`
	Tracing  tracing.Config          `mapstructure:"tracing"`
	Log      LogConfig               `mapstructure:"log"`
	// Env selects the log format: tinted text for dev, JSON for prod.
	Env string `mapstructure:"env" validate:"required,oneof=dev prod"`
}

type ServerConfig struct {
	Port          int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"min=0"`
	ListEnabled   bool  `mapstructure:"list_enabled"`
	// ShutdownTimeout is the graceful shutdown deadline in seconds.
	ShutdownTimeout int `mapstructure:"shutdown_timeout" validate:"min=1"`
}

type AuthConfig struct {
	// Secret is the shared secret for mutations and private reads. Empty
	// rejects every authenticated request.
	Secret  string        `mapstructure:"secret"`
	Cookie  string        `mapstructure:"cookie" validate:"required"`
	Presign PresignConfig `mapstructure:"presign"`
}

// PresignConfig configures verification of presigned share links.
type PresignConfig struct {
	Region  string                `mapstructure:"region" validate:"required"`
	Service string                `mapstructure:"service" validate:"required"`
	Keys    keybackend.KeysConfig `mapstructure:"keys"`
}

type MetadataConfig struct {
	// ExtraKeys are additional x-store-* headers stored verbatim.
	ExtraKeys []string `mapstructure:"extra_keys"`
}

type DeleteConfig struct {
	// ProbeOnError checks for the key after a failed delete and reports
	// success when it is gone.
	ProbeOnError bool `mapstructure:"probe_on_error"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// SlogLevel returns Level as a slog.Level. Load has validated it, so only a
// hand-built config can fall back to info.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// IsProd reports whether logs should be machine readable.
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":         "server.port",
	"backend":      "backend.type",
	"bucket":       "backend.bucket",
	"endpoint":     "backend.endpoint",
	"data-path":    "backend.path",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
}

// bindFlags binds explicitly set CLI flags to viper keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults registers every key, so each one can also be set from the
// environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5708)
	v.SetDefault("server.max_upload_size", 0) // 0 means no limit
	v.SetDefault("server.list_enabled", false)
	v.SetDefault("server.shutdown_timeout", 10)

	v.SetDefault("backend.type", "filesystem")
	v.SetDefault("backend.bucket", "")
	v.SetDefault("backend.endpoint", "")
	v.SetDefault("backend.region", "us-east-1")
	v.SetDefault("backend.access_key", "")
	v.SetDefault("backend.secret_key", "")
	v.SetDefault("backend.use_path_style", false)
	v.SetDefault("backend.use_ssl", false)
	v.SetDefault("backend.path", "./data")
	v.SetDefault("backend.part_size", 5*1024*1024)
	v.SetDefault("backend.concurrency", 4)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.cookie", "auth")
	v.SetDefault("auth.presign.region", "us-east-1")
	v.SetDefault("auth.presign.service", "s3")
	v.SetDefault("auth.presign.keys.file", "")

	v.SetDefault("metadata.extra_keys", []string{})

	v.SetDefault("delete.probe_on_error", true)

	v.SetDefault("cors.enabled", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.protocol", "grpc")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.service_name", "stowgate")

	v.SetDefault("log.level", "info")
	v.SetDefault("env", "dev")
}

// Load reads configuration and returns a validated Config.
// Precedence, highest first: flags > env > config files > defaults.
//
// Later configFiles override earlier ones. Without files, ./config.yaml is
// read if present. flags may be nil.
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
