package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jpalmerr/serverwatch/config"
)

const envPrefix = "SERVERWATCH"

// addConfigFlags registers the flags shared by serve and validate.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file (or $SERVERWATCH_CONFIG)")
	cmd.Flags().IntP("port", "p", 0, "override the configured port (or $SERVERWATCH_PORT)")
}

// loadConfig resolves the config path and port override from flags and
// environment, then loads and validates the file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlag("config", cmd.Flags().Lookup("config")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("port", cmd.Flags().Lookup("port")); err != nil {
		return nil, err
	}

	path := strings.TrimSpace(v.GetString("config"))
	if path == "" {
		return nil, errors.New("a config file is required (--config or $SERVERWATCH_CONFIG)")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v.IsSet("port") {
		port := v.GetInt("port")
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
		cfg.Port = port
	}

	return cfg, nil
}
