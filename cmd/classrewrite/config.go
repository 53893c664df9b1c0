package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// settings are the resolved tool options. Precedence is flag, then
// CLASSREWRITE_* environment variable, then settings file, then default.
type settings struct {
	Rules       string   `mapstructure:"rules"`
	In          string   `mapstructure:"in"`
	Out         string   `mapstructure:"out"`
	LogLevel    string   `mapstructure:"log-level"`
	Scopes      []string `mapstructure:"scope"`
	Workers     int      `mapstructure:"workers"`
	Incremental bool     `mapstructure:"incremental"`
	FailFast    bool     `mapstructure:"fail-fast"`
	Interactive bool     `mapstructure:"interactive"`
	NoColor     bool     `mapstructure:"no-color"`
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	v := viper.New()

	v.SetDefault("log-level", "warn")
	v.SetDefault("scope", []string{"project"})

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("classrewrite")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CLASSREWRITE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &s, nil
}

func (s *settings) require(names ...string) error {
	for _, n := range names {
		var val string
		switch n {
		case "rules":
			val = s.Rules
		case "in":
			val = s.In
		case "out":
			val = s.Out
		}
		if val == "" {
			return fmt.Errorf("--%s is required (or set CLASSREWRITE_%s)", n, strings.ToUpper(n))
		}
	}
	return nil
}
