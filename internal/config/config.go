// Package config resolves the generator settings from flags, FCODEC_*
// environment variables and an optional fcodec.yaml, in that order of
// precedence.
package config

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rawbytedev/fcodec/internal/logging"
)

const (
	ConfigKey    = "config"
	SchemaKey    = "schema"
	OutputKey    = "out"
	LockKey      = "lock"
	PackageKey   = "package"
	HeaderKey    = "header"
	LogLevelKey  = "log-level"
	LogFormatKey = "log-format"
	LogFileKey   = "log-file"

	EnvPrefix = "FCODEC"
	FileName  = "fcodec"
)

var ErrNoSchema = errors.New("config: no schema file given")

// Config holds the settings of one generator run.
type Config struct {
	Schema string
	Output string
	// LockFile defaults to the schema path with a .lock.yaml extension.
	LockFile string
	// Package overrides the schema namespace as the generated package name.
	Package string
	Header  string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Flags registers every setting on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String(ConfigKey, "", "Config file (default ./fcodec.yaml when present)")
	fs.StringP(SchemaKey, "s", "", "Schema definition file")
	fs.StringP(OutputKey, "o", ".", "Output directory for generated code")
	fs.String(LockKey, "", "Lock file (default <schema>.lock.yaml)")
	fs.StringP(PackageKey, "p", "", "Generated package name (default the schema namespace)")
	fs.String(HeaderKey, "", "Comment placed under the generated-code notice")
	fs.String(LogLevelKey, "info", "Log level: debug, info, warn, error")
	fs.String(LogFormatKey, logging.FormatConsole, "Log format: console or json")
	fs.String(LogFileKey, "", "Also write JSON logs to this rotating file")
}

// Load reads the settings. fs must have been set up by Flags and parsed.
func Load(fs *pflag.FlagSet) (Config, error) {
	v, err := newViper(fs)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Schema:    v.GetString(SchemaKey),
		Output:    v.GetString(OutputKey),
		LockFile:  v.GetString(LockKey),
		Package:   v.GetString(PackageKey),
		Header:    v.GetString(HeaderKey),
		LogLevel:  v.GetString(LogLevelKey),
		LogFormat: v.GetString(LogFormatKey),
		LogFile:   v.GetString(LogFileKey),
	}
	if cfg.LockFile == "" && cfg.Schema != "" {
		cfg.LockFile = LockPath(cfg.Schema)
	}
	return cfg, nil
}

func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "config: bind flags")
	}

	if file := v.GetString(ConfigKey); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", file)
		}
		return v, nil
	}
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "config: read fcodec.yaml")
		}
	}
	return v, nil
}

// LockPath derives the default lock file location from a schema path.
func LockPath(schema string) string {
	ext := filepath.Ext(schema)
	return strings.TrimSuffix(schema, ext) + ".lock.yaml"
}

// Validate reports settings a generator run cannot do without.
func (c Config) Validate() error {
	if c.Schema == "" {
		return ErrNoSchema
	}
	return nil
}

// Logging maps the log settings onto a logging.Config.
func (c Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	if c.LogLevel != "" {
		lc.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		lc.Format = c.LogFormat
	}
	lc.File = c.LogFile
	return lc
}
