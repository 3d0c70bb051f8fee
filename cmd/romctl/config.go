package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Redis    string `mapstructure:"redis"`
	Bolt     string `mapstructure:"bolt"`
	Prefix   string `mapstructure:"prefix"`
	LogLevel string `mapstructure:"logLevel"`
	Verbose  bool   `mapstructure:"verbose"`
}

// loadConfig merges, from lowest to highest precedence: defaults, the config
// file, ROM_* environment variables and command-line flags.
func loadConfig(args []string) (*Config, []string, error) {
	fs := pflag.NewFlagSet("romctl", pflag.ContinueOnError)
	fs.String("config", "", "config file (default: ./romctl.{yaml,json,toml} if present)")
	fs.String("redis", "", "Redis address, host:port")
	fs.String("bolt", "", "Bolt database file")
	fs.String("prefix", "rom", "reserved key prefix")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.BoolP("verbose", "v", false, "log every store operation")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: romctl [flags] <command> [args]\n\nCommands:\n%s\nFlags:\n", commandsUsage())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.SetDefault("prefix", "rom")
	v.SetDefault("logLevel", "info")
	v.SetEnvPrefix("ROM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, flag := range map[string]string{
		"redis":    "redis",
		"bolt":     "bolt",
		"prefix":   "prefix",
		"logLevel": "log-level",
		"verbose":  "verbose",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, nil, err
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", path, err)
		}
	} else {
		v.SetConfigName("romctl")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config: %w", err)
	}
	if (cfg.Redis == "") == (cfg.Bolt == "") {
		return nil, nil, errors.New("exactly one of --redis or --bolt is required")
	}
	return &cfg, fs.Args(), nil
}
