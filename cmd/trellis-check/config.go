package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the resolved settings of one run.
type Config struct {
	Manifest    string `mapstructure:"manifest"`
	Format      string `mapstructure:"format"`
	LogLevel    string `mapstructure:"log_level"`
	Threadsafe  bool   `mapstructure:"threadsafe"`
	Instantiate bool   `mapstructure:"instantiate"`
}

// newFlagSet declares the command line flags.
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("trellis-check", pflag.ContinueOnError)
	fs.StringP("manifest", "m", "", "Path to the binding manifest (YAML)")
	fs.StringP("format", "f", "text", "Report format (text, yaml)")
	fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	fs.Bool("threadsafe", true, "Compile a synchronized injector")
	fs.Bool("instantiate", false, "Resolve every root binding after compiling")
	fs.String("config", "", "Optional configuration file")

	return fs
}

// loadConfig merges defaults, an optional config file, TRELLIS_* environment
// variables and flags, in increasing precedence.
func loadConfig(args []string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("TRELLIS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"manifest", "format", "threadsafe", "instantiate"} {
		if err := v.BindPFlag(name, fs.Lookup(name)); err != nil {
			return nil, err
		}
	}

	if err := v.BindPFlag("log_level", fs.Lookup("log-level")); err != nil {
		return nil, err
	}

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	if fs.NArg() > 0 && v.GetString("manifest") == "" {
		v.Set("manifest", fs.Arg(0))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Manifest == "" {
		return nil, fmt.Errorf("no manifest given, use --manifest or TRELLIS_MANIFEST")
	}

	switch cfg.Format {
	case "text", "yaml":
	default:
		return nil, fmt.Errorf("unknown format %q", cfg.Format)
	}

	return &cfg, nil
}

// newLogger builds a console logger on stderr at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true

	return zc.Build()
}
